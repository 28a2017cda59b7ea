package models

import "fmt"

type EnumEventDescriptor struct {
	Outcomes []string `json:"outcomes"`
}

type DigitDecompositionEventDescriptor struct {
	Base      uint16 `json:"base"`
	IsSigned  bool   `json:"is_signed"`
	Unit      string `json:"unit"`
	Precision int32  `json:"precision"`
	NbDigits  uint16 `json:"nb_digits"`
}

// EventDescriptor holds exactly one of the two descriptor kinds.
type EventDescriptor struct {
	Enum               *EnumEventDescriptor               `json:"enum,omitempty"`
	DigitDecomposition *DigitDecompositionEventDescriptor `json:"digit_decomposition,omitempty"`
}

func (d EventDescriptor) IsEnum() bool {
	return d.Enum != nil
}

func (d EventDescriptor) Validate() error {
	switch {
	case d.Enum != nil && d.DigitDecomposition != nil:
		return fmt.Errorf("event descriptor: both enum and digit decomposition set")
	case d.Enum == nil && d.DigitDecomposition == nil:
		return fmt.Errorf("event descriptor: empty")
	}
	return nil
}

type OracleEvent struct {
	OracleNonces       []NoncePoint    `json:"oracle_nonces"`
	EventMaturityEpoch uint32          `json:"event_maturity_epoch"`
	EventDescriptor    EventDescriptor `json:"event_descriptor"`
	EventID            string          `json:"event_id"`
}

type OracleAnnouncement struct {
	AnnouncementSignature Signature      `json:"announcement_signature"`
	OraclePublicKey       XOnlyPublicKey `json:"oracle_public_key"`
	OracleEvent           OracleEvent    `json:"oracle_event"`
}

// OutcomeSignature is the attestation for one nonce slot.
type OutcomeSignature struct {
	Outcome   string    `json:"outcome"`
	Signature Signature `json:"signature"`
}

func (e OracleEvent) clone() OracleEvent {
	out := e
	out.OracleNonces = append([]NoncePoint(nil), e.OracleNonces...)
	if e.EventDescriptor.Enum != nil {
		outcomes := append([]string(nil), e.EventDescriptor.Enum.Outcomes...)
		out.EventDescriptor.Enum = &EnumEventDescriptor{Outcomes: outcomes}
	}
	if e.EventDescriptor.DigitDecomposition != nil {
		dd := *e.EventDescriptor.DigitDecomposition
		out.EventDescriptor.DigitDecomposition = &dd
	}
	return out
}
