package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wurt83ow/netalerte-client/pkg/models"
)

type ingestion struct {
	mu      sync.Mutex
	reports []map[string]any
	auth    []string
	status  int
}

func (s *ingestion) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.reports = append(s.reports, body)
	s.auth = append(s.auth, r.Header.Get("Authorization"))
	w.WriteHeader(http.StatusCreated)
}

func (s *ingestion) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func setup(t *testing.T) *ingestion {
	t.Helper()
	srv := &ingestion{}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	t.Setenv("NETALERTE_SERVER_URL", ts.URL)
	t.Setenv("NETALERTE_SERVER_AUTH_TOKEN", "static-token")
	t.Setenv("NETALERTE_STORAGE_PATH", filepath.Join(dir, "netalerte.db"))
	t.Setenv("NETALERTE_STORAGE_SYNCINFO_PATH", filepath.Join(dir, "syncinfo.dat"))
	t.Setenv("NETALERTE_SYNC_BASE_RETRY_DELAY", "1ms")
	t.Setenv("NETALERTE_POWER_FIXED_LEVEL", "80")
	t.Setenv("NETALERTE_LOGGING_LEVEL", "error")
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestEnqueueSyncStatus(t *testing.T) {
	srv := setup(t)

	out, err := execute(t, "enqueue", "--operator", "MTN", "--problem", models.ProblemOutage, "--signal", "25", "--lat", "3.848")
	require.NoError(t, err)
	assert.Contains(t, out, "queued (1 pending)")

	_, err = execute(t, "enqueue", "--operator", "Orange", "--problem", models.ProblemSMS)
	require.NoError(t, err)
	assert.Zero(t, srv.count())

	out, err = execute(t, "status", "--json")
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, 2, st.Pending)
	assert.Nil(t, st.LastSync)

	out, err = execute(t, "sync")
	require.NoError(t, err)
	var outcome models.SyncOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, models.SyncOutcome{Success: true, Synced: 2}, outcome)

	require.Equal(t, 2, srv.count())
	operators := []any{srv.reports[0]["operator"], srv.reports[1]["operator"]}
	assert.ElementsMatch(t, []any{"MTN", "Orange"}, operators)
	assert.Equal(t, []string{"Bearer static-token", "Bearer static-token"}, srv.auth)

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending reports: 0")
	assert.NotContains(t, out, "never")
}

func TestSync_FailureKeepsQueue(t *testing.T) {
	srv := setup(t)
	srv.status = http.StatusServiceUnavailable

	_, err := execute(t, "enqueue", "--operator", "Camtel", "--problem", models.ProblemCallFailure)
	require.NoError(t, err)

	out, err := execute(t, "sync")
	require.NoError(t, err)
	var outcome models.SyncOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, models.SyncOutcome{Success: true, Failed: 1}, outcome)

	out, err = execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Pending reports: 1")
}

func TestSync_LowPower(t *testing.T) {
	setup(t)
	t.Setenv("NETALERTE_POWER_FIXED_LEVEL", "20")

	out, err := execute(t, "sync")
	assert.Error(t, err)
	assert.Contains(t, out, "power too low")
}

func TestEnqueue_SendWithTokenFlag(t *testing.T) {
	srv := setup(t)

	out, err := execute(t, "--token", "session-token", "enqueue", "--operator", "Nexttel", "--problem", models.ProblemSlowInternet, "--send")
	require.NoError(t, err)
	assert.Contains(t, out, "sent")
	require.Equal(t, 1, srv.count())
	assert.Equal(t, "Bearer session-token", srv.auth[0])
}

func TestEnqueue_Invalid(t *testing.T) {
	setup(t)

	_, err := execute(t, "enqueue", "--operator", "Vodacom", "--problem", models.ProblemOutage)
	assert.ErrorIs(t, err, models.ErrInvalidReport)

	_, err = execute(t, "enqueue", "--problem", models.ProblemOutage)
	assert.Error(t, err)
}
