// Package repositorytest holds the behavior every event store backend must
// share, as a reusable test suite plus fixtures.
package repositorytest

import (
	"fmt"

	"dlcoracle/internal/models"
)

// OracleKey is the public key fixtures are announced under. Relational stores
// under test must be configured with it.
var OracleKey = models.XOnlyPublicKey{
	0x79, 0xbe, 0x66, 0x7e, 0xf9, 0xdc, 0xbb, 0xac, 0x55, 0xa0, 0x62, 0x95, 0xce, 0x87, 0x0b, 0x07,
	0x02, 0x9b, 0xfc, 0xdb, 0x2d, 0xce, 0x28, 0xd9, 0x59, 0xf2, 0x81, 0x5b, 0x16, 0xf8, 0x17, 0x98,
}

// EnumAnnouncement builds an enum event with one nonce per outcome slot.
func EnumAnnouncement(eventID string, nonces int) models.OracleAnnouncement {
	ann := baseAnnouncement(eventID, nonces)
	ann.OracleEvent.EventDescriptor.Enum = &models.EnumEventDescriptor{
		Outcomes: []string{"yes", "no"},
	}
	return ann
}

// DigitAnnouncement builds a digit decomposition event with one nonce per digit.
func DigitAnnouncement(eventID string, digits int) models.OracleAnnouncement {
	ann := baseAnnouncement(eventID, digits)
	ann.OracleEvent.EventDescriptor.DigitDecomposition = &models.DigitDecompositionEventDescriptor{
		Base:      2,
		IsSigned:  false,
		Unit:      "usd/btc",
		Precision: 0,
		NbDigits:  uint16(digits),
	}
	return ann
}

func baseAnnouncement(eventID string, nonces int) models.OracleAnnouncement {
	ann := models.OracleAnnouncement{
		OraclePublicKey: OracleKey,
		OracleEvent: models.OracleEvent{
			OracleNonces:       make([]models.NoncePoint, nonces),
			EventMaturityEpoch: 1_700_000_000,
			EventID:            eventID,
		},
	}
	for i := range ann.OracleEvent.OracleNonces {
		fill(ann.OracleEvent.OracleNonces[i][:], eventID, i)
	}
	fill(ann.AnnouncementSignature[:], eventID, -1)
	return ann
}

// Signatures builds n distinct outcome signatures for eventID.
func Signatures(eventID string, n int) []models.OutcomeSignature {
	out := make([]models.OutcomeSignature, n)
	for i := range out {
		out[i].Outcome = fmt.Sprintf("%d", i%2)
		fill(out[i].Signature[:], "sig/"+eventID, i)
	}
	return out
}

// PublicationID returns a valid relay event id derived from seed.
func PublicationID(seed byte) string {
	b := make([]byte, 32)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return fmt.Sprintf("%x", b)
}

func fill(dst []byte, seed string, n int) {
	if seed == "" {
		seed = "-"
	}
	for i := range dst {
		dst[i] = byte(i*31+n*7) ^ seed[i%len(seed)]
	}
}
