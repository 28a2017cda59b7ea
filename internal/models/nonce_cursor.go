package models

import "time"

// NonceCursorID is the primary key of the single cursor row.
const NonceCursorID = 1

type NonceCursor struct {
	ID        int       `gorm:"primaryKey;autoIncrement:false"`
	NextIndex int64     `gorm:"not null;comment:next unissued allocation index"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (NonceCursor) TableName() string {
	return "nonce_cursors"
}
