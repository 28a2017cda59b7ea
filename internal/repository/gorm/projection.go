package gormrepository

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"dlcoracle/internal/models"
	"dlcoracle/internal/repository"
)

// toEventData joins an event row with its nonce rows, which must be sorted by
// allocation index.
func (s *Store) toEventData(row models.Event) (*models.OracleEventData, error) {
	var ev models.OracleEvent
	if err := json.Unmarshal(row.OracleEvent, &ev); err != nil {
		return nil, fmt.Errorf("event %s: decode oracle event: %w", row.EventID, err)
	}
	annSig, err := models.SignatureFromBytes(row.AnnouncementSignature)
	if err != nil {
		return nil, fmt.Errorf("event %s: announcement %w", row.EventID, err)
	}
	if err := checkStoredNonces(row, ev.OracleNonces); err != nil {
		return nil, err
	}

	data := &models.OracleEventData{
		EventID: row.EventID,
		Announcement: models.OracleAnnouncement{
			AnnouncementSignature: annSig,
			OraclePublicKey:       s.oracleKey,
			OracleEvent:           ev,
		},
		Indexes:             make([]uint32, 0, len(row.Nonces)),
		Signatures:          []models.OutcomeSignature{},
		AnnouncementEventID: hexOrNil(row.AnnouncementEventID),
		AttestationEventID:  hexOrNil(row.AttestationEventID),
		CreatedAt:           row.CreatedAt.UTC(),
	}
	for _, n := range row.Nonces {
		data.Indexes = append(data.Indexes, uint32(n.NonceIndex))
		if !n.Signed() {
			continue
		}
		sig, err := models.SignatureFromBytes(n.Signature)
		if err != nil {
			return nil, fmt.Errorf("event %s: nonce %d: %w", row.EventID, n.NonceIndex, err)
		}
		var outcome string
		if n.Outcome != nil {
			outcome = *n.Outcome
		}
		data.Signatures = append(data.Signatures, models.OutcomeSignature{Outcome: outcome, Signature: sig})
	}
	return data, nil
}

// checkStoredNonces verifies the slot rows hold exactly the nonces of the
// announcement payload. Rows are in index order, the payload in announcement
// order, so the comparison is by multiset.
func checkStoredNonces(row models.Event, payload []models.NoncePoint) error {
	if len(row.Nonces) != len(payload) {
		return fmt.Errorf("%w: event %s has %d nonce rows for %d announced nonces",
			repository.ErrInternal, row.EventID, len(row.Nonces), len(payload))
	}
	want := make(map[models.NoncePoint]int, len(payload))
	for _, p := range payload {
		want[p]++
	}
	for _, n := range row.Nonces {
		p, err := models.NoncePointFromBytes(n.Nonce)
		if err != nil {
			return fmt.Errorf("%w: event %s: nonce %d: %s", repository.ErrInternal, row.EventID, n.NonceIndex, err)
		}
		if want[p] == 0 {
			return fmt.Errorf("%w: event %s: nonce %d is not in the announcement", repository.ErrInternal, row.EventID, n.NonceIndex)
		}
		want[p]--
	}
	return nil
}

func hexOrNil(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	s := hex.EncodeToString(b)
	return &s
}
