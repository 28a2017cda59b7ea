// Package leveldbrepository stores oracle events in a local goleveldb
// database, one msgpack blob per event.
//
// The database must have a single writer: one process opens the directory
// (goleveldb holds a file lock) and every write goes through one leveldb
// transaction, which goleveldb runs one at a time.
package leveldbrepository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"dlcoracle/internal/models"
	"dlcoracle/internal/repository"
)

type Options struct {
	Logger *zap.Logger
}

type Store struct {
	db     *leveldb.DB
	alloc  *repository.NonceAllocator
	logger *zap.Logger
	now    func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Open opens or creates the database directory at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, repository.MapError("open leveldb", err)
	}
	s, err := New(db, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and recovers the nonce cursor from it.
func New(db *leveldb.DB, opts Options) (*Store, error) {
	s := &Store{db: db, logger: opts.Logger, now: time.Now}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	next, err := s.recoverNextIndex()
	if err != nil {
		return nil, repository.MapError("recover nonce cursor", err)
	}
	s.alloc = repository.NewNonceAllocator(next, repository.CursorSinkFunc(s.persistCursor))
	s.logger.Info("nonce cursor recovered", zap.Uint64("next_index", next))
	return s, nil
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
	now := s.now().UTC()

	err := s.update(func(tr *leveldb.Transaction) error {
		exists, err := tr.Has(eventIDKey(eventID), nil)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: event %s already exists", repository.ErrStorageFailure, eventID)
		}
		for _, idx := range indexes {
			bound, err := tr.Has(slotKey(idx), nil)
			if err != nil {
				return err
			}
			if bound {
				return fmt.Errorf("%w: nonce index %d already bound", repository.ErrStorageFailure, idx)
			}
		}
		key, err := repository.RandomEventKey(func(k uint32) (bool, error) {
			return tr.Has(eventKey(k), nil)
		})
		if err != nil {
			return err
		}

		blob, err := encodeRecord(record{
			Key:       key,
			CreatedAt: now.UnixNano(),
			Data:      repository.NewEventData(ann, indexes, now),
		})
		if err != nil {
			return err
		}
		if err := tr.Put(eventKey(key), blob, nil); err != nil {
			return err
		}
		if err := tr.Put(eventIDKey(eventID), uint32ToBytes(key), nil); err != nil {
			return err
		}
		for _, idx := range indexes {
			if err := tr.Put(slotKey(idx), []byte(eventID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", repository.MapError("save announcement", err)
	}
	return eventID, nil
}

func (s *Store) SaveSignatures(ctx context.Context, eventID string, sigs []models.OutcomeSignature) (*models.OracleEventData, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.MapError("save signatures", err)
	}
	var out *models.OracleEventData
	err := s.update(func(tr *leveldb.Transaction) error {
		rec, err := loadRecord(tr, eventID)
		if err != nil {
			return err
		}
		data := rec.Data
		if err := repository.CheckSignatures(eventID, len(data.Indexes), data.IsSigned(), sigs); err != nil {
			return err
		}
		data.Signatures = append([]models.OutcomeSignature(nil), sigs...)
		rec.Data = data
		if err := putRecord(tr, rec); err != nil {
			return err
		}
		out = projection(rec)
		return nil
	})
	if err != nil {
		return nil, repository.MapError("save signatures", err)
	}
	return out, nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.OracleEventData, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.MapError("get event", err)
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, repository.MapError("get event", err)
	}
	defer snap.Release()

	rec, err := loadRecord(snap, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, repository.MapError("get event", err)
	}
	return projection(rec), nil
}

func (s *Store) ListEvents(ctx context.Context) ([]models.OracleEventData, error) {
	if err := ctx.Err(); err != nil {
		return nil, repository.MapError("list events", err)
	}
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, repository.MapError("list events", err)
	}
	defer snap.Release()

	it := snap.NewIterator(util.BytesPrefix(eventKeyPrefix), nil)
	defer it.Release()

	out := []models.OracleEventData{}
	for it.Next() {
		rec, err := decodeRecord(it.Value())
		if err != nil {
			return nil, repository.MapError("list events", err)
		}
		out = append(out, *projection(rec))
	}
	if err := it.Error(); err != nil {
		return nil, repository.MapError("list events", err)
	}
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
	err = s.update(func(tr *leveldb.Transaction) error {
		rec, err := loadRecord(tr, eventID)
		if err != nil {
			return err
		}
		set(&rec.Data, fmt.Sprintf("%x", raw))
		return putRecord(tr, rec)
	})
	return repository.MapError("add publication id", err)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return repository.MapError("ping", err)
	}
	_, err := s.db.GetProperty("leveldb.num-files-at-level0")
	return repository.MapError("ping", err)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NextIndex reports the allocator cursor.
func (s *Store) NextIndex() uint64 {
	return s.alloc.Next()
}

// persistCursor raises the stored cursor to next. Allocations reserve their
// range before persisting, so calls may arrive out of order and a lower value
// must not overwrite a higher one.
func (s *Store) persistCursor(ctx context.Context, next uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(tr *leveldb.Transaction) error {
		cur, err := readCursor(tr)
		if err != nil {
			return err
		}
		if next <= cur {
			return nil
		}
		return tr.Put(cursorKey, uint64ToBytes(next), nil)
	})
}

// recoverNextIndex takes the persisted cursor, raised past the highest bound
// slot in case the cursor record is behind.
func (s *Store) recoverNextIndex() (uint64, error) {
	next, err := readCursor(s.db)
	if err != nil {
		return 0, err
	}
	it := s.db.NewIterator(util.BytesPrefix(slotKeyPrefix), nil)
	defer it.Release()
	if it.Last() {
		key := it.Key()[len(slotKeyPrefix):]
		if highest := uint64(binary.BigEndian.Uint32(key)) + 1; highest > next {
			next = highest
		}
	}
	return next, it.Error()
}

func (s *Store) update(fn func(tr *leveldb.Transaction) error) error {
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return err
	}
	if err := fn(tr); err != nil {
		tr.Discard()
		return err
	}
	return tr.Commit()
}

type getter interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
}

func readCursor(r getter) (uint64, error) {
	v, err := r.Get(cursorKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("%w: nonce cursor has %d bytes", repository.ErrInternal, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func loadRecord(r getter, eventID string) (record, error) {
	k, err := r.Get(eventIDKey(eventID), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return record{}, fmt.Errorf("event %s: %w", eventID, repository.ErrNotFound)
	}
	if err != nil {
		return record{}, err
	}
	if len(k) != 4 {
		return record{}, fmt.Errorf("%w: event %s has a %d byte key", repository.ErrInternal, eventID, len(k))
	}
	blob, err := r.Get(eventKey(binary.BigEndian.Uint32(k)), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return record{}, fmt.Errorf("%w: event %s index points at a missing record", repository.ErrInternal, eventID)
	}
	if err != nil {
		return record{}, err
	}
	return decodeRecord(blob)
}

type putter interface {
	Put(key, value []byte, wo *opt.WriteOptions) error
}

func putRecord(w putter, rec record) error {
	blob, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return w.Put(eventKey(rec.Key), blob, nil)
}

func projection(rec record) *models.OracleEventData {
	data := rec.Data.Clone()
	data.CreatedAt = time.Unix(0, rec.CreatedAt).UTC()
	return &data
}
