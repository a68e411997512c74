// Package storage is the persisted queue of reports waiting for delivery.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wurt83ow/netalerte-client/pkg/models"
)

// DefaultKey is the record key holding the queue.
const DefaultKey = "offlineReports"

// ErrCorruptRecord is wrapped when the stored queue cannot be decrypted or
// decoded.
var ErrCorruptRecord = errors.New("corrupt queue record")

// Keeper is the durable record backend.
type Keeper interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Codec transforms the serialized queue before it reaches the keeper.
type Codec interface {
	Seal(plain []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Queue is a FIFO of pending reports stored as one serialized record.
// Every write goes through mu so an append can never interleave with a
// reconciliation.
type Queue struct {
	mu     sync.Mutex
	keeper Keeper
	codec  Codec
	key    string
	log    zerolog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(q *Queue) { q.key = key }
}

// WithCodec seals the record at rest.
func WithCodec(c Codec) Option {
	return func(q *Queue) { q.codec = c }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// New returns a queue over keeper.
func New(keeper Keeper, opts ...Option) *Queue {
	q := &Queue{
		keeper: keeper,
		key:    DefaultKey,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(q)
	}
	q.log = q.log.With().Str("component", "queue").Str("key", q.key).Logger()
	return q
}

// Load returns the persisted queue. A missing, unreadable or malformed record
// yields an empty queue.
func (q *Queue) Load(ctx context.Context) []models.PendingReport {
	return q.load(ctx)
}

// Len returns the number of pending reports.
func (q *Queue) Len(ctx context.Context) int {
	return len(q.load(ctx))
}

// Append adds r at the tail. A keeper read failure aborts the append so the
// existing queue is never overwritten; a corrupt record is replaced.
func (q *Queue) Append(ctx context.Context, r models.PendingReport) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	reports, err := q.read(ctx)
	if err != nil {
		if !errors.Is(err, ErrCorruptRecord) {
			return err
		}
		q.log.Warn().Err(err).Msg("discarding unreadable queue record")
		reports = nil
	}
	reports = append(reports, r)
	return q.write(ctx, reports)
}

// Replace overwrites the queue. An empty slice removes the record.
func (q *Queue) Replace(ctx context.Context, reports []models.PendingReport) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.write(ctx, reports)
}

// Clear removes the record.
func (q *Queue) Clear(ctx context.Context) error {
	return q.Replace(ctx, nil)
}

// Reconcile removes the delivered reports from the current record, keeping the
// order of everything else. Reports appended after the caller loaded the queue
// survive. When the current record cannot be read the queue is replaced with
// exhausted, the reports the caller knows are still undelivered.
func (q *Queue) Reconcile(ctx context.Context, delivered, exhausted []models.PendingReport) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	current, err := q.read(ctx)
	if err != nil {
		q.log.Warn().Err(err).Int("exhausted", len(exhausted)).Msg("re-read failed, writing undelivered reports")
		return q.write(ctx, exhausted)
	}

	done := make(map[string]struct{}, len(delivered))
	for _, r := range delivered {
		done[r.Key()] = struct{}{}
	}

	remaining := make([]models.PendingReport, 0, len(current))
	for _, r := range current {
		if _, ok := done[r.Key()]; ok {
			continue
		}
		remaining = append(remaining, r)
	}
	return q.write(ctx, remaining)
}

// load is read for callers that only display or submit: any failure is an
// empty queue.
func (q *Queue) load(ctx context.Context) []models.PendingReport {
	reports, err := q.read(ctx)
	if err != nil {
		q.log.Warn().Err(err).Msg("read queue failed, treating as empty")
		return nil
	}
	return reports
}

// read returns the stored queue. A missing record is an empty queue, not an
// error. Decrypt and decode failures wrap ErrCorruptRecord.
func (q *Queue) read(ctx context.Context) ([]models.PendingReport, error) {
	raw, ok, err := q.keeper.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	if q.codec != nil {
		raw, err = q.codec.Open(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decrypt: %v", ErrCorruptRecord, err)
		}
	}

	var reports []models.PendingReport
	if err := json.Unmarshal(raw, &reports); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return reports, nil
}

func (q *Queue) write(ctx context.Context, reports []models.PendingReport) error {
	if len(reports) == 0 {
		if err := q.keeper.Delete(ctx, q.key); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		return nil
	}

	raw, err := Marshal(reports)
	if err != nil {
		return err
	}
	if q.codec != nil {
		raw, err = q.codec.Seal(raw)
		if err != nil {
			return fmt.Errorf("encrypt queue: %w", err)
		}
	}
	if err := q.keeper.Put(ctx, q.key, raw); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}

// Marshal is the wire format of the persisted queue.
func Marshal(reports []models.PendingReport) ([]byte, error) {
	raw, err := json.Marshal(reports)
	if err != nil {
		return nil, fmt.Errorf("marshal queue: %w", err)
	}
	return raw, nil
}
