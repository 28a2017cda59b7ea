package repository

import (
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"dlcoracle/internal/models"
)

// NonceSlot pairs an allocation index with the nonce point committed for it.
type NonceSlot struct {
	Index uint32
	Nonce models.NoncePoint
}

// CheckAnnouncement validates an announcement against the indexes reserved
// for it. next is the allocator cursor of the store.
func CheckAnnouncement(ann models.OracleAnnouncement, indexes []uint32, next uint64) error {
	ev := ann.OracleEvent
	if strings.TrimSpace(ev.EventID) == "" {
		return internalf("announcement without event id")
	}
	if err := ev.EventDescriptor.Validate(); err != nil {
		return internalf("%s", err)
	}
	if len(ev.OracleNonces) == 0 {
		return internalf("event %s: announcement without nonces", ev.EventID)
	}
	if len(indexes) != len(ev.OracleNonces) {
		return invalidOutcomef("event %s: %d indexes for %d nonces", ev.EventID, len(indexes), len(ev.OracleNonces))
	}
	seen := make(map[uint32]struct{}, len(indexes))
	for _, idx := range indexes {
		if uint64(idx) >= next {
			return internalf("event %s: nonce index %d was never allocated", ev.EventID, idx)
		}
		if _, dup := seen[idx]; dup {
			return internalf("event %s: nonce index %d repeated", ev.EventID, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

// PairSlots zips indexes with the announcement nonces and sorts the result by
// allocation index.
func PairSlots(ann models.OracleAnnouncement, indexes []uint32) []NonceSlot {
	slots := make([]NonceSlot, len(indexes))
	for i, idx := range indexes {
		slots[i] = NonceSlot{Index: idx, Nonce: ann.OracleEvent.OracleNonces[i]}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Index < slots[j].Index })
	return slots
}

// CheckSignatures applies the attestation rules shared by all backends.
func CheckSignatures(eventID string, slots int, signed bool, sigs []models.OutcomeSignature) error {
	if signed {
		return fmt.Errorf("event %s: %w", eventID, ErrEventAlreadySigned)
	}
	if len(sigs) != slots {
		return invalidOutcomef("event %s: %d signatures for %d nonces", eventID, len(sigs), slots)
	}
	return nil
}

// NewEventData builds the unsigned projection stored by the blob backends.
func NewEventData(ann models.OracleAnnouncement, indexes []uint32, now time.Time) models.OracleEventData {
	slots := PairSlots(ann, indexes)
	sorted := make([]uint32, len(slots))
	for i, s := range slots {
		sorted[i] = s.Index
	}
	data := models.OracleEventData{
		EventID:      ann.OracleEvent.EventID,
		Announcement: ann,
		Indexes:      sorted,
		Signatures:   []models.OutcomeSignature{},
		CreatedAt:    now.UTC(),
	}
	return data.Clone()
}

// SortEvents orders projections by creation time, then event id.
func SortEvents(events []models.OracleEventData) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].EventID < events[j].EventID
	})
}

// ParsePublicationID validates a relay event id and returns its raw bytes.
func ParsePublicationID(id string) ([]byte, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !nostr.IsValid32ByteHex(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPublicationID, id)
	}
	raw, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPublicationID, id)
	}
	return raw, nil
}

const maxKeyAttempts = 16

// RandomEventKey draws random 32-bit keys until taken reports a free one.
func RandomEventKey(taken func(uint32) (bool, error)) (uint32, error) {
	for range maxKeyAttempts {
		key := rand.Uint32()
		used, err := taken(key)
		if err != nil {
			return 0, err
		}
		if !used {
			return key, nil
		}
	}
	return 0, internalf("no free event key after %d attempts", maxKeyAttempts)
}
