package bdkeeper_test

import (
	"context"
	"database/sql"
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wurt83ow/netalerte-client/pkg/bdkeeper"
)

func setup(t *testing.T) *bdkeeper.Keeper {
	t.Helper()
	keeper, err := bdkeeper.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := keeper.Close(); err != nil {
			t.Logf("error closing database: %v", err)
		}
	})
	return keeper
}

func TestGet_MissingRecord(t *testing.T) {
	keeper := setup(t)

	value, ok, err := keeper.Get(context.Background(), "offlineReports")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestPut_InsertsAndOverwrites(t *testing.T) {
	keeper := setup(t)
	ctx := context.Background()

	require.NoError(t, keeper.Put(ctx, "offlineReports", []byte(`[1]`)))
	require.NoError(t, keeper.Put(ctx, "offlineReports", []byte(`[1,2]`)))

	value, ok, err := keeper.Get(ctx, "offlineReports")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[1,2]`), value)
}

func TestDelete(t *testing.T) {
	keeper := setup(t)
	ctx := context.Background()

	require.NoError(t, keeper.Put(ctx, "k", []byte("v")))
	require.NoError(t, keeper.Delete(ctx, "k"))
	require.NoError(t, keeper.Delete(ctx, "k"), "deleting a missing record")

	_, ok, err := keeper.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	k1, err := bdkeeper.Open(path)
	require.NoError(t, err)
	require.NoError(t, k1.Put(ctx, "k", []byte("v")))
	require.NoError(t, k1.Close())

	k2, err := bdkeeper.Open(path)
	require.NoError(t, err)
	defer k2.Close()

	value, ok, err := k2.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)
}

func TestNewKeeperWithMigratedDB(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	require.NoError(t, bdkeeper.Migrate(db))
	keeper := bdkeeper.NewKeeper(db)

	require.NoError(t, keeper.Put(context.Background(), "k", []byte("v")))
	_, ok, err := keeper.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_MigrationsAreSilent(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w

	var stdlog bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&stdlog)

	keeper, openErr := bdkeeper.Open(filepath.Join(t.TempDir(), "quiet.db"))

	log.SetOutput(prev)
	os.Stdout = stdout
	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)

	require.NoError(t, openErr)
	defer keeper.Close()
	assert.Empty(t, string(out))
	assert.Empty(t, stdlog.String())
}
