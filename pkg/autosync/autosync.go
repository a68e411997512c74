// Package autosync decides when the offline queue may be flushed and drives
// the flush: gate on connectivity and power, submit, reconcile.
package autosync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/wurt83ow/netalerte-client/pkg/appcontext"
	"github.com/wurt83ow/netalerte-client/pkg/batch"
	"github.com/wurt83ow/netalerte-client/pkg/models"
)

// Failure reasons reported in SyncOutcome.Error.
const (
	ReasonNoConnectivity = "no connectivity"
	ReasonLowPower       = "power too low"
	ReasonInProgress     = "sync already in progress"
)

const (
	DefaultLowPowerThreshold = 20
	DefaultInterval          = 5 * time.Minute
)

// Connectivity is the network gate and the reconnect trigger.
type Connectivity interface {
	IsConnected() bool
	OnReconnect(cb func()) (unsubscribe func())
}

// PowerSource reports battery charge in [0,100].
type PowerSource interface {
	Level() int
}

// QueueStore is the part of the persisted queue a run needs. Reconcile drops
// delivered from the stored queue; exhausted is what it writes when the stored
// queue cannot be re-read.
type QueueStore interface {
	Load(ctx context.Context) []models.PendingReport
	Reconcile(ctx context.Context, delivered, exhausted []models.PendingReport) error
}

// Submitter delivers a loaded queue.
type Submitter interface {
	Submit(ctx context.Context, reports []models.PendingReport) batch.Result
}

// Recorder remembers when the last successful run finished.
type Recorder interface {
	Record(t time.Time) error
}

// Config holds the gate threshold and the timer period.
type Config struct {
	// LowPowerThreshold blocks runs while Level() <= LowPowerThreshold.
	LowPowerThreshold int
	Interval          time.Duration
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{LowPowerThreshold: DefaultLowPowerThreshold, Interval: DefaultInterval}
}

// State is the phase of the current run.
type State int32

const (
	Idle State = iota
	Gating
	Submitting
	Reconciling
)

// String returns the lower-case phase name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Gating:
		return "gating"
	case Submitting:
		return "submitting"
	case Reconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// Manager runs at most one sync at a time.
type Manager struct {
	cfg       Config
	conn      Connectivity
	power     PowerSource
	queue     QueueStore
	submitter Submitter
	recorder  Recorder
	now       func() time.Time
	log       zerolog.Logger

	running atomic.Bool
	state   atomic.Int32
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithRecorder stores the completion time of every successful run.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithNow replaces time.Now for recorded sync times.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New wires a manager. A non-positive Interval takes the default.
func New(cfg Config, conn Connectivity, power PowerSource, queue QueueStore, submitter Submitter, opts ...Option) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	m := &Manager{
		cfg:       cfg,
		conn:      conn,
		power:     power,
		queue:     queue,
		submitter: submitter,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With().Str("component", "autosync").Logger()
	return m
}

// State returns the phase of the run in flight, or Idle.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Running reports whether a run is in flight.
func (m *Manager) Running() bool {
	return m.running.Load()
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
}

// RunOnce performs one gated sync. It never returns an error; every failure
// is folded into the outcome.
func (m *Manager) RunOnce(ctx context.Context) models.SyncOutcome {
	if !m.running.CompareAndSwap(false, true) {
		return models.SyncOutcome{Error: ReasonInProgress}
	}
	defer func() {
		m.setState(Idle)
		m.running.Store(false)
	}()

	log := m.log.With().Str("trigger", appcontext.Trigger(ctx)).Logger()
	m.setState(Gating)
	if !m.conn.IsConnected() {
		log.Warn().Msg("sync skipped: " + ReasonNoConnectivity)
		return models.SyncOutcome{Error: ReasonNoConnectivity}
	}
	if level := m.power.Level(); level <= m.cfg.LowPowerThreshold {
		log.Warn().Int("level", level).Int("threshold", m.cfg.LowPowerThreshold).Msg("sync skipped: " + ReasonLowPower)
		return models.SyncOutcome{Error: ReasonLowPower}
	}

	pending := m.queue.Load(ctx)
	if len(pending) == 0 {
		log.Debug().Msg("queue empty")
		m.record()
		return models.SyncOutcome{Success: true}
	}

	m.setState(Submitting)
	res := m.submitter.Submit(ctx, pending)

	// Once submitted, the outcome must reach the store even if the caller
	// has been cancelled, or accepted reports would be sent again.
	m.setState(Reconciling)
	out := models.SyncOutcome{Synced: len(res.Delivered), Failed: len(res.Exhausted)}
	if err := m.queue.Reconcile(context.WithoutCancel(ctx), res.Delivered, res.Exhausted); err != nil {
		log.Error().Err(err).Int("synced", out.Synced).Int("failed", out.Failed).Msg("reconcile failed")
		out.Error = err.Error()
		return out
	}

	out.Success = true
	m.record()
	log.Info().Int("synced", out.Synced).Int("failed", out.Failed).Msg("sync finished")
	return out
}

func (m *Manager) record() {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.Record(m.now()); err != nil {
		m.log.Warn().Err(err).Msg("record sync time failed")
	}
}

// trigger runs once on behalf of an automatic source. Overlapping triggers are
// dropped.
func (m *Manager) trigger(ctx context.Context, source string) {
	out := m.RunOnce(appcontext.WithTrigger(ctx, source))
	if out.Error == ReasonInProgress {
		m.log.Debug().Str("trigger", source).Msg("run in flight, trigger dropped")
		return
	}
	m.log.Debug().Str("trigger", source).Bool("success", out.Success).Msg("triggered run done")
}

// Start runs once now, again on every reconnect and every Interval. The
// returned stop is idempotent and waits for the driver goroutines.
func (m *Manager) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	d := &driver{}

	d.spawn(func() { m.trigger(ctx, "startup") })

	unsubscribe := m.conn.OnReconnect(func() {
		d.spawn(func() { m.trigger(ctx, "reconnect") })
	})

	d.spawn(func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.trigger(ctx, "timer")
			}
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			cancel()
			d.close()
			m.log.Debug().Msg("autosync stopped")
		})
	}
}

// driver tracks goroutines and refuses new ones once closed.
type driver struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (d *driver) spawn(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		f()
	}()
}

func (d *driver) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
