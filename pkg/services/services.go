// Package services is the report flow used by the CLI: validate a draft, try
// to send it right away, fall back to the offline queue.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wurt83ow/netalerte-client/pkg/models"
	"github.com/wurt83ow/netalerte-client/pkg/syncinfo"
)

// Delivery says what happened to a submitted report.
type Delivery int

const (
	Sent Delivery = iota + 1
	Queued
)

// String returns the lower-case name printed by the CLI.
func (d Delivery) String() string {
	switch d {
	case Sent:
		return "sent"
	case Queued:
		return "queued"
	default:
		return "unknown"
	}
}

// Queue is the offline store.
type Queue interface {
	Append(ctx context.Context, r models.PendingReport) error
	Len(ctx context.Context) int
}

// DirectSender delivers one report immediately.
type DirectSender interface {
	SubmitReport(ctx context.Context, r models.PendingReport) error
}

// Connectivity reports the current network level.
type Connectivity interface {
	IsConnected() bool
}

// Syncer flushes the queue.
type Syncer interface {
	RunOnce(ctx context.Context) models.SyncOutcome
}

// LastSyncSource returns the time of the last successful flush.
type LastSyncSource interface {
	LastSync() (time.Time, error)
}

// Service is the report flow behind every CLI command.
type Service struct {
	queue    Queue          // offline queue, the fallback for every report
	direct   DirectSender   // nil disables direct sends
	conn     Connectivity   // nil means always offline
	syncer   Syncer         // flushes the queue on demand
	lastSync LastSyncSource // nil means no last-sync bookkeeping
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithLastSync sets where LastSync reads from.
func WithLastSync(src LastSyncSource) Option {
	return func(s *Service) { s.lastSync = src }
}

// WithClock replaces time.Now for stamping reports.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewServices wires the flow. direct and conn may be nil, in which case
// every report is queued.
func NewServices(queue Queue, direct DirectSender, conn Connectivity, syncer Syncer, opts ...Option) *Service {
	s := &Service{
		queue:  queue,
		direct: direct,
		conn:   conn,
		syncer: syncer,
		now:    time.Now,
		newID:  uuid.NewString,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("component", "services").Logger()
	return s
}

// Prepare validates draft and stamps its identity and creation time.
func (s *Service) Prepare(draft models.PendingReport) (models.PendingReport, error) {
	if err := draft.Validate(); err != nil {
		return models.PendingReport{}, err
	}
	r := draft
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.EnqueuedAt.IsZero() {
		r.EnqueuedAt = s.now().UTC()
	}
	return r, nil
}

// SubmitReport sends the report when online and queues it otherwise, or
// when the direct attempt fails.
func (s *Service) SubmitReport(ctx context.Context, draft models.PendingReport) (models.PendingReport, Delivery, error) {
	r, err := s.Prepare(draft)
	if err != nil {
		return models.PendingReport{}, 0, err
	}

	if s.direct != nil && s.conn != nil && s.conn.IsConnected() {
		err := s.direct.SubmitReport(ctx, r)
		if err == nil {
			s.log.Info().Str("report", r.ID).Msg("report sent")
			return r, Sent, nil
		}
		s.log.Warn().Err(err).Str("report", r.ID).Msg("direct send failed, queueing")
	}

	if err := s.queue.Append(ctx, r); err != nil {
		return models.PendingReport{}, 0, fmt.Errorf("queue report: %w", err)
	}
	s.log.Info().Str("report", r.ID).Msg("report queued")
	return r, Queued, nil
}

// Enqueue validates and queues the report without trying the network.
func (s *Service) Enqueue(ctx context.Context, draft models.PendingReport) (models.PendingReport, error) {
	r, err := s.Prepare(draft)
	if err != nil {
		return models.PendingReport{}, err
	}
	if err := s.queue.Append(ctx, r); err != nil {
		return models.PendingReport{}, fmt.Errorf("queue report: %w", err)
	}
	s.log.Info().Str("report", r.ID).Msg("report queued")
	return r, nil
}

// PendingCount returns the number of queued reports.
func (s *Service) PendingCount(ctx context.Context) int {
	return s.queue.Len(ctx)
}

// SyncNow runs one flush on demand.
func (s *Service) SyncNow(ctx context.Context) models.SyncOutcome {
	return s.syncer.RunOnce(ctx)
}

// LastSync returns the last successful flush time. ok is false when none was
// recorded.
func (s *Service) LastSync() (t time.Time, ok bool) {
	if s.lastSync == nil {
		return time.Time{}, false
	}
	t, err := s.lastSync.LastSync()
	if err != nil {
		if !errors.Is(err, syncinfo.ErrNeverSynced) {
			s.log.Warn().Err(err).Msg("read last sync failed")
		}
		return time.Time{}, false
	}
	return t, true
}
