// Package instrumented wraps an event store with structured logging and
// prometheus metrics. It changes no behavior of the wrapped store.
package instrumented

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"dlcoracle/internal/models"
	"dlcoracle/internal/repository"
)

type Store struct {
	next    repository.Store
	backend string
	metrics *Metrics
	logger  *zap.Logger
}

var _ repository.Store = (*Store)(nil)

func New(next repository.Store, backend string, metrics *Metrics, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{next: next, backend: backend, metrics: metrics, logger: logger}
}

func (s *Store) NextNonceIndexes(ctx context.Context, num int) ([]uint32, error) {
	start := time.Now()
	out, err := s.next.NextNonceIndexes(ctx, num)
	s.observe("next_nonce_indexes", start, err, zap.Int("count", num))
	if err == nil && s.metrics != nil {
		s.metrics.allocated.WithLabelValues(s.backend).Add(float64(len(out)))
	}
	return out, err
}

func (s *Store) SaveAnnouncement(ctx context.Context, ann models.OracleAnnouncement, indexes []uint32) (string, error) {
	start := time.Now()
	id, err := s.next.SaveAnnouncement(ctx, ann, indexes)
	s.observe("save_announcement", start, err,
		zap.String("event_id", ann.OracleEvent.EventID),
		zap.Int("nonces", len(indexes)),
	)
	return id, err
}

func (s *Store) SaveSignatures(ctx context.Context, eventID string, sigs []models.OutcomeSignature) (*models.OracleEventData, error) {
	start := time.Now()
	out, err := s.next.SaveSignatures(ctx, eventID, sigs)
	s.observe("save_signatures", start, err,
		zap.String("event_id", eventID),
		zap.Int("signatures", len(sigs)),
	)
	return out, err
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.OracleEventData, error) {
	start := time.Now()
	out, err := s.next.GetEvent(ctx, eventID)
	s.observe("get_event", start, err, zap.String("event_id", eventID), zap.Bool("found", out != nil))
	return out, err
}

func (s *Store) ListEvents(ctx context.Context) ([]models.OracleEventData, error) {
	start := time.Now()
	out, err := s.next.ListEvents(ctx)
	s.observe("list_events", start, err, zap.Int("events", len(out)))
	return out, err
}

func (s *Store) AddAnnouncementEventID(ctx context.Context, eventID string, publicationID string) error {
	start := time.Now()
	err := s.next.AddAnnouncementEventID(ctx, eventID, publicationID)
	s.observe("add_announcement_event_id", start, err, zap.String("event_id", eventID))
	return err
}

func (s *Store) AddAttestationEventID(ctx context.Context, eventID string, publicationID string) error {
	start := time.Now()
	err := s.next.AddAttestationEventID(ctx, eventID, publicationID)
	s.observe("add_attestation_event_id", start, err, zap.String("event_id", eventID))
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Store) Close() error {
	return s.next.Close()
}

// NextIndex reports the allocator cursor when the wrapped store exposes one.
func (s *Store) NextIndex() (uint64, bool) {
	c, ok := s.next.(interface{ NextIndex() uint64 })
	if !ok {
		return 0, false
	}
	return c.NextIndex(), true
}

// RefreshStats recounts stored events and updates the gauges. It reads the
// wrapped store directly so the scan is not counted as a list operation.
func (s *Store) RefreshStats(ctx context.Context) error {
	events, err := s.next.ListEvents(ctx)
	if err != nil {
		return err
	}
	var signed int
	for _, e := range events {
		if e.IsSigned() {
			signed++
		}
	}
	if s.metrics != nil {
		s.metrics.events.WithLabelValues(s.backend, "signed").Set(float64(signed))
		s.metrics.events.WithLabelValues(s.backend, "unsigned").Set(float64(len(events) - signed))
		if next, ok := s.NextIndex(); ok {
			s.metrics.nextIndex.WithLabelValues(s.backend).Set(float64(next))
		}
	}
	s.logger.Debug("store stats refreshed",
		zap.String("backend", s.backend),
		zap.Int("events", len(events)),
		zap.Int("signed", signed),
	)
	return nil
}

func (s *Store) observe(op string, start time.Time, err error, fields ...zap.Field) {
	elapsed := time.Since(start)
	result := resultLabel(err)
	if s.metrics != nil {
		s.metrics.ops.WithLabelValues(s.backend, op, result).Inc()
		s.metrics.latency.WithLabelValues(s.backend, op).Observe(elapsed.Seconds())
	}
	fields = append(fields,
		zap.String("backend", s.backend),
		zap.String("op", op),
		zap.Duration("elapsed", elapsed),
	)
	if err != nil {
		s.logger.Warn("store operation failed", append(fields, zap.String("result", result), zap.Error(err))...)
		return
	}
	s.logger.Debug("store operation", fields...)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repository.ErrEventAlreadySigned):
		return "already_signed"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrInvalidOutcome):
		return "invalid_outcome"
	case errors.Is(err, repository.ErrInvalidPublicationID):
		return "invalid_publication_id"
	case errors.Is(err, repository.ErrStorageFailure):
		return "storage_failure"
	case errors.Is(err, repository.ErrInternal):
		return "internal"
	default:
		return "error"
	}
}
