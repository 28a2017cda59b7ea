package gormrepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dlcoracle/internal/models"
	"dlcoracle/internal/repository"
)

type Options struct {
	// OracleKey is the public key announcements are reconstructed with; it is
	// not stored per event.
	OracleKey models.XOnlyPublicKey
	// OpTimeout bounds each operation, including the wait for a pooled
	// connection. Zero means no bound beyond the caller's context.
	OpTimeout time.Duration
	Logger    *zap.Logger
}

type Store struct {
	db        *gorm.DB
	oracleKey models.XOnlyPublicKey
	opTimeout time.Duration
	alloc     *repository.NonceAllocator
	logger    *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// New recovers the nonce cursor from the database and returns a ready store.
// The schema must already exist (see db.AutoMigrate).
func New(ctx context.Context, db *gorm.DB, opts Options) (*Store, error) {
	s := &Store{
		db:        db,
		oracleKey: opts.OracleKey,
		opTimeout: opts.OpTimeout,
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	next, err := s.recoverNextIndex(ctx)
	if err != nil {
		return nil, repository.MapError("recover nonce cursor", err)
	}
	s.alloc = repository.NewNonceAllocator(next, repository.CursorSinkFunc(s.persistCursor))
	s.logger.Info("nonce cursor recovered", zap.Uint64("next_index", next))
	return s, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Store) NextNonceIndexes(ctx context.Context, num int) ([]uint32, error) {
	return s.alloc.Allocate(ctx, num)
}

func (s *Store) SaveAnnouncement(ctx context.Context, ann models.OracleAnnouncement, indexes []uint32) (string, error) {
	if err := repository.CheckAnnouncement(ann, indexes, s.alloc.Next()); err != nil {
		return "", err
	}
	if ann.OraclePublicKey != s.oracleKey {
		return "", fmt.Errorf("%w: announcement key %s is not the oracle key %s", repository.ErrInternal, ann.OraclePublicKey, s.oracleKey)
	}
	payload, err := json.Marshal(ann.OracleEvent)
	if err != nil {
		return "", repository.MapError("save announcement", err)
	}

	now := time.Now().UTC()
	ev := ann.OracleEvent
	row := models.Event{
		EventID:               ev.EventID,
		AnnouncementSignature: append([]byte(nil), ann.AnnouncementSignature[:]...),
		OracleEvent:           datatypes.JSON(payload),
		Name:                  ev.EventID,
		IsEnum:                ev.EventDescriptor.IsEnum(),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	slots := repository.PairSlots(ann, indexes)
	nonces := make([]models.EventNonce, len(slots))
	for i, slot := range slots {
		nonces[i] = models.EventNonce{
			EventID:    ev.EventID,
			NonceIndex: int64(slot.Index),
			Nonce:      append([]byte(nil), slot.Nonce[:]...),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	err = s.inTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return err
		}
		return createInBatches(tx, nonces, 200)
	})
	if err != nil {
		return "", repository.MapError("save announcement", err)
	}
	return row.EventID, nil
}

func (s *Store) SaveSignatures(ctx context.Context, eventID string, sigs []models.OutcomeSignature) (*models.OracleEventData, error) {
	var out *models.OracleEventData
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var row models.Event
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("event_id = ?", eventID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("event %s: %w", eventID, repository.ErrNotFound)
		}
		if err != nil {
			return err
		}

		var nonces []models.EventNonce
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("event_id = ?", eventID).
			Order("nonce_index asc").
			Find(&nonces).Error; err != nil {
			return err
		}
		signed := false
		for _, n := range nonces {
			signed = signed || n.Signed()
		}
		if err := repository.CheckSignatures(eventID, len(nonces), signed, sigs); err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range nonces {
			outcome := sigs[i].Outcome
			signature := append([]byte(nil), sigs[i].Signature[:]...)
			res := tx.Model(&models.EventNonce{}).
				Where("id = ? AND signature IS NULL", nonces[i].ID).
				Updates(map[string]any{
					"outcome":    outcome,
					"signature":  signature,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("event %s: nonce %d: %w", eventID, nonces[i].NonceIndex, repository.ErrEventAlreadySigned)
			}
			nonces[i].Outcome = &outcome
			nonces[i].Signature = signature
			nonces[i].UpdatedAt = now
		}

		row.Nonces = nonces
		data, err := s.toEventData(row)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		return nil, repository.MapError("save signatures", err)
	}
	return out, nil
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.OracleEventData, error) {
	var out *models.OracleEventData
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var row models.Event
		err := tx.Preload("Nonces", orderByIndex).
			Where("event_id = ?", eventID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = s.toEventData(row)
		return err
	})
	if err != nil {
		return nil, repository.MapError("get event", err)
	}
	return out, nil
}

func (s *Store) ListEvents(ctx context.Context) ([]models.OracleEventData, error) {
	var out []models.OracleEventData
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		var rows []models.Event
		if err := tx.Preload("Nonces", orderByIndex).
			Order("created_at asc").
			Order("event_id asc").
			Find(&rows).Error; err != nil {
			return err
		}
		out = make([]models.OracleEventData, 0, len(rows))
		for _, row := range rows {
			data, err := s.toEventData(row)
			if err != nil {
				return err
			}
			out = append(out, *data)
		}
		return nil
	})
	if err != nil {
		return nil, repository.MapError("list events", err)
	}
	return out, nil
}

func (s *Store) AddAnnouncementEventID(ctx context.Context, eventID string, publicationID string) error {
	return s.setPublicationID(ctx, "announcement_event_id", eventID, publicationID)
}

func (s *Store) AddAttestationEventID(ctx context.Context, eventID string, publicationID string) error {
	return s.setPublicationID(ctx, "attestation_event_id", eventID, publicationID)
}

func (s *Store) setPublicationID(ctx context.Context, column, eventID, publicationID string) error {
	raw, err := repository.ParsePublicationID(publicationID)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			column:       raw,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return repository.MapError("add "+column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("event %s: %w", eventID, repository.ErrNotFound)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return repository.MapError("ping", err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return repository.MapError("ping", sqlDB.PingContext(ctx))
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NextIndex reports the allocator cursor.
func (s *Store) NextIndex() uint64 {
	return s.alloc.Next()
}

// recoverNextIndex resumes one past the highest bound index, or at the
// persisted cursor when allocations ran ahead of announcements.
func (s *Store) recoverNextIndex(ctx context.Context) (uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var maxIndex sql.NullInt64
	if err := s.db.WithContext(ctx).
		Raw("SELECT MAX(nonce_index) FROM event_nonces").
		Row().
		Scan(&maxIndex); err != nil {
		return 0, fmt.Errorf("max nonce index: %w", err)
	}
	var cursor sql.NullInt64
	err := s.db.WithContext(ctx).
		Raw("SELECT next_index FROM nonce_cursors WHERE id = ?", models.NonceCursorID).
		Row().
		Scan(&cursor)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("nonce cursor: %w", err)
	}

	var next uint64
	if maxIndex.Valid {
		next = uint64(maxIndex.Int64) + 1
	}
	if cursor.Valid && uint64(cursor.Int64) > next {
		next = uint64(cursor.Int64)
	}
	return next, nil
}

// persistCursor upserts the cursor row; the update never lowers next_index.
func (s *Store) persistCursor(ctx context.Context, next uint64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	row := models.NonceCursor{
		ID:        models.NonceCursorID,
		NextIndex: int64(next),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"next_index": gorm.Expr("CASE WHEN nonce_cursors.next_index < excluded.next_index THEN excluded.next_index ELSE nonce_cursors.next_index END"),
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func orderByIndex(db *gorm.DB) *gorm.DB {
	return db.Order("nonce_index asc")
}

func createInBatches[T any](db *gorm.DB, items []T, batchSize int) error {
	if len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := db.CreateInBatches(items[i:end], batchSize).Error; err != nil {
			return err
		}
	}
	return nil
}
