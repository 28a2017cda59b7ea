package repository

import (
	"context"

	"dlcoracle/internal/models"
)

// EventStore allocates nonce indexes and records announcements and their
// attestations.
//
// SaveSignatures matches sigs positionally against the event's nonce slots
// sorted by ascending allocation index, so callers must supply the pairs in
// that order. Indexes passed to SaveAnnouncement must have been returned by
// NextNonceIndexes of the same store.
type EventStore interface {
	NextNonceIndexes(ctx context.Context, num int) ([]uint32, error)
	SaveAnnouncement(ctx context.Context, ann models.OracleAnnouncement, indexes []uint32) (string, error)
	SaveSignatures(ctx context.Context, eventID string, sigs []models.OutcomeSignature) (*models.OracleEventData, error)
	// GetEvent returns nil without error when the event does not exist.
	GetEvent(ctx context.Context, eventID string) (*models.OracleEventData, error)
	ListEvents(ctx context.Context) ([]models.OracleEventData, error)
}

// PublicationRecorder stores the relay ids under which an announcement or an
// attestation was broadcast. Later calls overwrite earlier values.
type PublicationRecorder interface {
	AddAnnouncementEventID(ctx context.Context, eventID string, publicationID string) error
	AddAttestationEventID(ctx context.Context, eventID string, publicationID string) error
}

// Store is what a backend hands to the rest of the process.
type Store interface {
	EventStore
	PublicationRecorder
	Ping(ctx context.Context) error
	Close() error
}
