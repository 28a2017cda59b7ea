// Package memory keeps oracle events in process memory. Nothing survives a
// restart, and the nonce cursor starts again at zero, so it is meant for tests
// and throwaway oracles.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dlcoracle/internal/models"
	"dlcoracle/internal/repository"
)

type Store struct {
	alloc *repository.NonceAllocator
	now   func() time.Time

	mu        sync.RWMutex
	events    map[uint32]*models.OracleEventData
	byEventID map[string]uint32
	bound     map[uint32]string
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		alloc:     repository.NewNonceAllocator(0, nil),
		now:       time.Now,
		events:    map[uint32]*models.OracleEventData{},
		byEventID: map[string]uint32{},
		bound:     map[uint32]string{},
	}
}

func (s *Store) NextNonceIndexes(ctx context.Context, num int) ([]uint32, error) {
	return s.alloc.Allocate(ctx, num)
}

func (s *Store) SaveAnnouncement(ctx context.Context, ann models.OracleAnnouncement, indexes []uint32) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", repository.MapError("save announcement", err)
	}
	if err := repository.CheckAnnouncement(ann, indexes, s.alloc.Next()); err != nil {
		return "", err
	}
	eventID := ann.OracleEvent.EventID

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEventID[eventID]; ok {
		return "", fmt.Errorf("save announcement: %w: event %s already exists", repository.ErrStorageFailure, eventID)
	}
	for _, idx := range indexes {
		if owner, ok := s.bound[idx]; ok {
			return "", fmt.Errorf("save announcement: %w: nonce index %d already bound to %s", repository.ErrStorageFailure, idx, owner)
		}
	}
	key, err := repository.RandomEventKey(func(k uint32) (bool, error) {
		_, used := s.events[k]
		return used, nil
	})
	if err != nil {
		return "", err
	}

	data := repository.NewEventData(ann, indexes, s.now())
	s.events[key] = &data
	s.byEventID[eventID] = key
	for _, idx := range indexes {
		s.bound[idx] = eventID
	}
	return eventID, nil
}

func (s *Store) SaveSignatures(ctx context.Context, eventID string, sigs []models.OutcomeSignature) (*models.OracleEventData, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.MapError("save signatures", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.lookup(eventID)
	if data == nil {
		return nil, fmt.Errorf("event %s: %w", eventID, repository.ErrNotFound)
	}
	if err := repository.CheckSignatures(eventID, len(data.Indexes), data.IsSigned(), sigs); err != nil {
		return nil, err
	}
	data.Signatures = append([]models.OutcomeSignature(nil), sigs...)
	out := data.Clone()
	return &out, nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.OracleEventData, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.MapError("get event", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data := s.lookup(eventID)
	if data == nil {
		return nil, nil
	}
	out := data.Clone()
	return &out, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]models.OracleEventData, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.MapError("list events", err)
	}

	s.mu.RLock()
	out := make([]models.OracleEventData, 0, len(s.events))
	for _, data := range s.events {
		out = append(out, data.Clone())
	}
	s.mu.RUnlock()

	repository.SortEvents(out)
	return out, nil
}

func (s *Store) AddAnnouncementEventID(ctx context.Context, eventID string, publicationID string) error {
	return s.setPublicationID(ctx, eventID, publicationID, func(d *models.OracleEventData, id string) {
		d.AnnouncementEventID = &id
	})
}

func (s *Store) AddAttestationEventID(ctx context.Context, eventID string, publicationID string) error {
	return s.setPublicationID(ctx, eventID, publicationID, func(d *models.OracleEventData, id string) {
		d.AttestationEventID = &id
	})
}

func (s *Store) setPublicationID(ctx context.Context, eventID, publicationID string, set func(*models.OracleEventData, string)) error {
	if err := ctx.Err(); err != nil {
		return repository.MapError("add publication id", err)
	}
	raw, err := repository.ParsePublicationID(publicationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.lookup(eventID)
	if data == nil {
		return fmt.Errorf("event %s: %w", eventID, repository.ErrNotFound)
	}
	set(data, fmt.Sprintf("%x", raw))
	return nil
}

// lookup must be called with mu held.
func (s *Store) lookup(eventID string) *models.OracleEventData {
	key, ok := s.byEventID[eventID]
	if !ok {
		return nil
	}
	return s.events[key]
}

func (s *Store) Ping(ctx context.Context) error {
	return repository.MapError("ping", ctx.Err())
}

func (s *Store) Close() error {
	return nil
}

// NextIndex reports the allocator cursor.
func (s *Store) NextIndex() uint64 {
	return s.alloc.Next()
}
