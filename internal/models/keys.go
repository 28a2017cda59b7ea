package models

import (
	"encoding/hex"
	"fmt"
)

// XOnlyPublicKey is a BIP-340 x-only public key.
type XOnlyPublicKey [32]byte

// NoncePoint is the x-only public point of a committed signing nonce.
type NoncePoint [32]byte

// Signature is a BIP-340 Schnorr signature.
type Signature [64]byte

func (k XOnlyPublicKey) String() string { return hex.EncodeToString(k[:]) }
func (p NoncePoint) String() string     { return hex.EncodeToString(p[:]) }
func (s Signature) String() string      { return hex.EncodeToString(s[:]) }

func (k XOnlyPublicKey) MarshalText() ([]byte, error) { return marshalHex(k[:]), nil }
func (p NoncePoint) MarshalText() ([]byte, error)     { return marshalHex(p[:]), nil }
func (s Signature) MarshalText() ([]byte, error)      { return marshalHex(s[:]), nil }

func (k *XOnlyPublicKey) UnmarshalText(text []byte) error { return unmarshalHex(k[:], text) }
func (p *NoncePoint) UnmarshalText(text []byte) error     { return unmarshalHex(p[:], text) }
func (s *Signature) UnmarshalText(text []byte) error      { return unmarshalHex(s[:], text) }

// ParseXOnlyPublicKey decodes a 64 character hex string.
func ParseXOnlyPublicKey(s string) (XOnlyPublicKey, error) {
	var k XOnlyPublicKey
	err := k.UnmarshalText([]byte(s))
	return k, err
}

// SignatureFromBytes copies a stored 64 byte signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != len(s) {
		return s, fmt.Errorf("signature: want %d bytes, got %d", len(s), len(b))
	}
	copy(s[:], b)
	return s, nil
}

// NoncePointFromBytes copies a stored 32 byte nonce point.
func NoncePointFromBytes(b []byte) (NoncePoint, error) {
	var p NoncePoint
	if len(b) != len(p) {
		return p, fmt.Errorf("nonce point: want %d bytes, got %d", len(p), len(b))
	}
	copy(p[:], b)
	return p, nil
}

func marshalHex(b []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(out, b)
	return out
}

func unmarshalHex(dst []byte, text []byte) error {
	if hex.DecodedLen(len(text)) != len(dst) {
		return fmt.Errorf("hex: want %d bytes, got %d characters", len(dst), len(text))
	}
	if _, err := hex.Decode(dst, text); err != nil {
		return fmt.Errorf("hex: %w", err)
	}
	return nil
}
