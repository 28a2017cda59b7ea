package models

import "time"

// OracleEventData is the read model of one event joined with its nonce slots
// ordered by allocation index.
type OracleEventData struct {
	EventID             string             `json:"event_id"`
	Announcement        OracleAnnouncement `json:"announcement"`
	Indexes             []uint32           `json:"indexes"`
	Signatures          []OutcomeSignature `json:"signatures"`
	AnnouncementEventID *string            `json:"announcement_event_id,omitempty"`
	AttestationEventID  *string            `json:"attestation_event_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at" codec:"-"`
}

func (d OracleEventData) IsSigned() bool {
	return len(d.Signatures) > 0
}

// Clone returns a deep copy.
func (d OracleEventData) Clone() OracleEventData {
	out := d
	out.Announcement.OracleEvent = d.Announcement.OracleEvent.clone()
	out.Indexes = make([]uint32, len(d.Indexes))
	copy(out.Indexes, d.Indexes)
	out.Signatures = make([]OutcomeSignature, len(d.Signatures))
	copy(out.Signatures, d.Signatures)
	out.AnnouncementEventID = cloneString(d.AnnouncementEventID)
	out.AttestationEventID = cloneString(d.AttestationEventID)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
