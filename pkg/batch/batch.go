// Package batch delivers queued reports in bounded concurrent batches with
// per-report retry.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wurt83ow/netalerte-client/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Defaults.
const (
	DefaultBatchSize   = 5
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Sender delivers a single report. A nil error means the service accepted it.
type Sender interface {
	SubmitReport(ctx context.Context, r models.PendingReport) error
}

// Clock schedules the waits between attempts.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Config bounds batch width and retries.
type Config struct {
	BatchSize   int
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		BatchSize:   DefaultBatchSize,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// Result partitions the input. Both slices keep the input's relative order.
type Result struct {
	Delivered []models.PendingReport
	Exhausted []models.PendingReport
}

// Submitter runs the batches. It does no storage I/O.
type Submitter struct {
	cfg    Config
	sender Sender
	clock  Clock
	log    zerolog.Logger
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithClock replaces the wall clock used for retry waits.
func WithClock(c Clock) Option {
	return func(s *Submitter) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Submitter) { s.log = l }
}

// New returns a submitter. Zero fields in cfg take the defaults.
func New(sender Sender, cfg Config, opts ...Option) *Submitter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}

	s := &Submitter{
		cfg:    cfg,
		sender: sender,
		clock:  realClock{},
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("component", "batch").Logger()
	return s
}

// RetryDelay is the wait before the attempt following failed attempt number
// attempt (1-based): attempt × base.
func RetryDelay(attempt int, base time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * base
}

// Partition splits reports into consecutive slices of at most size elements.
func Partition(reports []models.PendingReport, size int) [][]models.PendingReport {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]models.PendingReport, 0, (len(reports)+size-1)/size)
	for start := 0; start < len(reports); start += size {
		end := start + size
		if end > len(reports) {
			end = len(reports)
		}
		batches = append(batches, reports[start:end:end])
	}
	return batches
}

// Submit delivers reports batch by batch. Batch N+1 starts only after every
// member of batch N is delivered or exhausted.
func (s *Submitter) Submit(ctx context.Context, reports []models.PendingReport) Result {
	delivered := make([]bool, len(reports))

	offset := 0
	for i, batch := range Partition(reports, s.cfg.BatchSize) {
		s.log.Debug().Int("batch", i).Int("size", len(batch)).Msg("dispatching batch")

		// A failed member does not stop its siblings; Wait only reports the
		// first exhaustion for the batch summary.
		var g errgroup.Group
		for j := range batch {
			idx := offset + j
			r := batch[j]
			g.Go(func() error {
				err := s.deliver(ctx, r)
				delivered[idx] = err == nil
				return err
			})
		}
		if err := g.Wait(); err != nil {
			s.log.Warn().Err(err).Int("batch", i).Msg("batch finished with undelivered reports")
		}
		offset += len(batch)
	}

	var res Result
	for i, r := range reports {
		if delivered[i] {
			res.Delivered = append(res.Delivered, r)
		} else {
			res.Exhausted = append(res.Exhausted, r)
		}
	}
	return res
}

// deliver retries r until it is accepted or the attempts run out. It returns
// the last delivery error when r is exhausted.
func (s *Submitter) deliver(ctx context.Context, r models.PendingReport) error {
	for attempt := 1; ; attempt++ {
		err := s.sender.SubmitReport(ctx, r)
		if err == nil {
			s.log.Debug().Str("report", r.ID).Int("attempt", attempt).Msg("report delivered")
			return nil
		}

		if attempt >= s.cfg.MaxAttempts {
			s.log.Warn().Err(err).Str("report", r.ID).Int("attempts", attempt).Msg("delivery attempts exhausted")
			return fmt.Errorf("report %s: %w", r.ID, err)
		}

		delay := RetryDelay(attempt, s.cfg.BaseDelay)
		s.log.Debug().Err(err).Str("report", r.ID).Int("attempt", attempt).Dur("retry_in", delay).Msg("delivery failed, will retry")

		select {
		case <-s.clock.After(delay):
		case <-ctx.Done():
			s.log.Warn().Str("report", r.ID).Int("attempts", attempt).Msg("context cancelled during backoff")
			return fmt.Errorf("report %s: %w", r.ID, ctx.Err())
		}
	}
}
