package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseXOnlyPublicKey(t *testing.T) {
	hexKey := "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	k, err := ParseXOnlyPublicKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, byte(0x79), k[0])
	assert.Equal(t, hexKey, k.String())

	_, err = ParseXOnlyPublicKey(hexKey[:62])
	assert.Error(t, err)
	_, err = ParseXOnlyPublicKey(strings.Repeat("g", 64))
	assert.Error(t, err)
}

func TestFromBytesChecksLength(t *testing.T) {
	_, err := SignatureFromBytes(make([]byte, 63))
	assert.Error(t, err)
	sig, err := SignatureFromBytes(append(make([]byte, 63), 9))
	require.NoError(t, err)
	assert.Equal(t, byte(9), sig[63])

	_, err = NoncePointFromBytes(make([]byte, 33))
	assert.Error(t, err)
}

func TestAnnouncementJSONUsesHex(t *testing.T) {
	ann := OracleAnnouncement{
		OracleEvent: OracleEvent{
			OracleNonces: []NoncePoint{{1}},
			EventID:      "e",
			EventDescriptor: EventDescriptor{
				DigitDecomposition: &DigitDecompositionEventDescriptor{Base: 10, NbDigits: 5},
			},
		},
	}
	b, err := json.Marshal(ann)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"oracle_nonces":["01`+strings.Repeat("0", 62)+`"]`)
	assert.NotContains(t, string(b), `"enum"`)

	var back OracleAnnouncement
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, ann, back)
}

func TestEventDescriptorValidate(t *testing.T) {
	assert.Error(t, EventDescriptor{}.Validate())
	assert.Error(t, EventDescriptor{
		Enum:               &EnumEventDescriptor{},
		DigitDecomposition: &DigitDecompositionEventDescriptor{},
	}.Validate())
	assert.NoError(t, EventDescriptor{Enum: &EnumEventDescriptor{Outcomes: []string{"x"}}}.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	id := "pub"
	d := OracleEventData{
		EventID: "e",
		Announcement: OracleAnnouncement{OracleEvent: OracleEvent{
			OracleNonces:    []NoncePoint{{1}},
			EventDescriptor: EventDescriptor{Enum: &EnumEventDescriptor{Outcomes: []string{"a"}}},
		}},
		Indexes:             []uint32{1},
		Signatures:          []OutcomeSignature{{Outcome: "a"}},
		AnnouncementEventID: &id,
	}
	c := d.Clone()
	c.Indexes[0] = 2
	c.Signatures[0].Outcome = "b"
	c.Announcement.OracleEvent.OracleNonces[0][0] = 2
	c.Announcement.OracleEvent.EventDescriptor.Enum.Outcomes[0] = "b"
	*c.AnnouncementEventID = "other"

	assert.Equal(t, uint32(1), d.Indexes[0])
	assert.Equal(t, "a", d.Signatures[0].Outcome)
	assert.Equal(t, byte(1), d.Announcement.OracleEvent.OracleNonces[0][0])
	assert.Equal(t, "a", d.Announcement.OracleEvent.EventDescriptor.Enum.Outcomes[0])
	assert.Equal(t, "pub", *d.AnnouncementEventID)
	assert.True(t, d.IsSigned())
	assert.False(t, OracleEventData{Signatures: []OutcomeSignature{}}.IsSigned())
}
