package models

import (
	"time"

	"gorm.io/datatypes"
)

// Event is the persisted announcement row. Announcement fields are written once
// on insert; only the publication ids are filled afterwards.
type Event struct {
	EventID               string         `gorm:"primaryKey;type:text;comment:external event identifier"`
	AnnouncementSignature []byte         `gorm:"not null;comment:announcement signature"`
	OracleEvent           datatypes.JSON `gorm:"not null;comment:serialized oracle event"`
	Name                  string         `gorm:"type:text;not null;comment:event name"`
	IsEnum                bool           `gorm:"not null;comment:enum or digit decomposition"`
	AnnouncementEventID   []byte         `gorm:"comment:relay id of the published announcement"`
	AttestationEventID    []byte         `gorm:"comment:relay id of the published attestation"`
	CreatedAt             time.Time      `gorm:"not null;index"`
	UpdatedAt             time.Time      `gorm:"not null"`

	Nonces []EventNonce `gorm:"foreignKey:EventID;references:EventID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (Event) TableName() string {
	return "events"
}
