package leveldbrepository

import (
	"bytes"
	"encoding/binary"

	"github.com/ugorji/go/codec"

	"dlcoracle/internal/models"
)

var msgpackHandle = &codec.MsgpackHandle{
	WriteExt: true,
}

// record is the stored blob: the whole projection plus the bookkeeping that
// is not part of it.
type record struct {
	Key       uint32                 `codec:"key"`
	CreatedAt int64                  `codec:"created_at"`
	Data      models.OracleEventData `codec:"data"`
}

func encodeRecord(r record) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := codec.NewEncoder(buf, msgpackHandle).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(b []byte) (record, error) {
	var r record
	err := codec.NewDecoder(bytes.NewReader(b), msgpackHandle).Decode(&r)
	return r, err
}

var (
	// cursorKey holds the next unissued nonce index.
	cursorKey = []byte{'N', 'C'}
	// eventKeyPrefix + uint32 key -> record.
	eventKeyPrefix = []byte{'E', 'V'}
	// eventIDKeyPrefix + external id -> uint32 key.
	eventIDKeyPrefix = []byte{'E', 'I'}
	// slotKeyPrefix + uint32 nonce index -> external id.
	slotKeyPrefix = []byte{'N', 'S'}
)

func eventKey(key uint32) []byte {
	return append(append([]byte(nil), eventKeyPrefix...), uint32ToBytes(key)...)
}

func eventIDKey(eventID string) []byte {
	return append(append([]byte(nil), eventIDKeyPrefix...), eventID...)
}

func slotKey(index uint32) []byte {
	return append(append([]byte(nil), slotKeyPrefix...), uint32ToBytes(index)...)
}

func uint32ToBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
