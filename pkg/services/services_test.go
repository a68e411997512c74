package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wurt83ow/netalerte-client/pkg/bdkeeper"
	"github.com/wurt83ow/netalerte-client/pkg/models"
	"github.com/wurt83ow/netalerte-client/pkg/services"
	"github.com/wurt83ow/netalerte-client/pkg/storage"
	"github.com/wurt83ow/netalerte-client/pkg/syncinfo"
)

type online bool

func (o online) IsConnected() bool { return bool(o) }

type direct struct {
	err  error
	sent []models.PendingReport
}

func (d *direct) SubmitReport(_ context.Context, r models.PendingReport) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, r)
	return nil
}

type syncer struct {
	out   models.SyncOutcome
	calls int
}

func (s *syncer) RunOnce(context.Context) models.SyncOutcome {
	s.calls++
	return s.out
}

var fixedNow = time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) *storage.Queue {
	t.Helper()
	keeper, err := bdkeeper.Open(filepath.Join(t.TempDir(), "netalerte.db"))
	require.NoError(t, err)
	t.Cleanup(func() { keeper.Close() })
	return storage.New(keeper)
}

func draft() models.PendingReport {
	return models.PendingReport{
		Operator:       models.OperatorCamtel,
		ProblemType:    models.ProblemCallFailure,
		SignalStrength: models.Float(25),
		NetworkType:    "3G",
		Latitude:       models.Float(3.848),
		Longitude:      models.Float(11.502),
	}
}

func newService(q services.Queue, d services.DirectSender, conn services.Connectivity, opts ...services.Option) *services.Service {
	opts = append([]services.Option{
		services.WithClock(func() time.Time { return fixedNow }),
		services.WithIDGenerator(func() string { return "id-1" }),
	}, opts...)
	return services.NewServices(q, d, conn, &syncer{}, opts...)
}

func TestSubmitReport_Online(t *testing.T) {
	q := setup(t)
	d := &direct{}
	svc := newService(q, d, online(true))

	r, delivery, err := svc.SubmitReport(context.Background(), draft())
	require.NoError(t, err)

	assert.Equal(t, services.Sent, delivery)
	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, fixedNow, r.EnqueuedAt)
	require.Len(t, d.sent, 1)
	assert.Equal(t, r, d.sent[0])
	assert.Zero(t, svc.PendingCount(context.Background()))
}

func TestSubmitReport_Offline(t *testing.T) {
	q := setup(t)
	d := &direct{}
	svc := newService(q, d, online(false))

	r, delivery, err := svc.SubmitReport(context.Background(), draft())
	require.NoError(t, err)

	assert.Equal(t, services.Queued, delivery)
	assert.Empty(t, d.sent)
	assert.Equal(t, []models.PendingReport{r}, q.Load(context.Background()))
}

func TestSubmitReport_DirectFailureQueues(t *testing.T) {
	q := setup(t)
	svc := newService(q, &direct{err: errors.New("502")}, online(true))

	_, delivery, err := svc.SubmitReport(context.Background(), draft())
	require.NoError(t, err)

	assert.Equal(t, services.Queued, delivery)
	assert.Equal(t, 1, svc.PendingCount(context.Background()))
}

func TestSubmitReport_Invalid(t *testing.T) {
	q := setup(t)
	svc := newService(q, &direct{}, online(true))

	bad := draft()
	bad.Operator = "Vodafone"
	_, _, err := svc.SubmitReport(context.Background(), bad)

	assert.ErrorIs(t, err, models.ErrInvalidReport)
	assert.Zero(t, svc.PendingCount(context.Background()))
}

func TestEnqueue_KeepsFIFO(t *testing.T) {
	q := setup(t)
	n := 0
	svc := services.NewServices(q, nil, nil, &syncer{}, services.WithIDGenerator(func() string {
		n++
		return []string{"a", "b", "c"}[n-1]
	}))

	for i := 0; i < 3; i++ {
		_, err := svc.Enqueue(context.Background(), draft())
		require.NoError(t, err)
	}

	var got []string
	for _, r := range q.Load(context.Background()) {
		got = append(got, r.ID)
		assert.False(t, r.EnqueuedAt.IsZero())
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestPrepare_KeepsExistingIdentity(t *testing.T) {
	svc := newService(setup(t), nil, nil)

	d := draft()
	d.ID = "given"
	d.EnqueuedAt = fixedNow.Add(-time.Hour)

	r, err := svc.Prepare(d)
	require.NoError(t, err)
	assert.Equal(t, "given", r.ID)
	assert.Equal(t, fixedNow.Add(-time.Hour), r.EnqueuedAt)
}

func TestSyncNow_Delegates(t *testing.T) {
	s := &syncer{out: models.SyncOutcome{Success: true, Synced: 4}}
	svc := services.NewServices(setup(t), nil, nil, s)

	assert.Equal(t, models.SyncOutcome{Success: true, Synced: 4}, svc.SyncNow(context.Background()))
	assert.Equal(t, 1, s.calls)
}

func TestLastSync(t *testing.T) {
	svc := services.NewServices(setup(t), nil, nil, &syncer{})
	_, ok := svc.LastSync()
	assert.False(t, ok)

	sm, err := syncinfo.NewSyncManager(filepath.Join(t.TempDir(), "syncinfo.dat"))
	require.NoError(t, err)
	svc = services.NewServices(setup(t), nil, nil, &syncer{}, services.WithLastSync(sm))

	_, ok = svc.LastSync()
	assert.False(t, ok)

	require.NoError(t, sm.Record(fixedNow))
	got, ok := svc.LastSync()
	assert.True(t, ok)
	assert.Equal(t, fixedNow, got)
}

func TestDeliveryString(t *testing.T) {
	assert.Equal(t, "sent", services.Sent.String())
	assert.Equal(t, "queued", services.Queued.String())
	assert.Equal(t, "unknown", services.Delivery(0).String())
}
