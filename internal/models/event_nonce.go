package models

import "time"

// EventNonce is one allocated nonce slot bound to an event.
type EventNonce struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	EventID    string    `gorm:"type:text;not null;index;comment:owning event"`
	NonceIndex int64     `gorm:"not null;uniqueIndex;comment:allocation index"`
	Nonce      []byte    `gorm:"not null;comment:public nonce point"`
	Outcome    *string   `gorm:"type:text;comment:attested outcome"`
	Signature  []byte    `gorm:"comment:attestation signature"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (EventNonce) TableName() string {
	return "event_nonces"
}

func (n EventNonce) Signed() bool {
	return n.Signature != nil
}
