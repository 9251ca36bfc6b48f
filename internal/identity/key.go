// Package identity provides the peer-key and component-tag vocabulary
// shared by every layer of the hop-routing engine.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// KeySize is the size of a peer's long-term public key in bytes.
const KeySize = 32

// ErrInvalidKeyLength is returned when a key is the wrong length.
var ErrInvalidKeyLength = errors.New("invalid key length: expected 32 bytes")

// Key is an opaque byte string identifying a peer's long-term public
// key. Equality is byte-equal.
type Key [KeySize]byte

// ZeroKey is the uninitialized key value.
var ZeroKey = Key{}

// ParseKey parses a Key from a hex string, tolerating a "0x" prefix
// and surrounding whitespace.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")

	if len(s) != KeySize*2 {
		return ZeroKey, fmt.Errorf("%w: got %d hex chars, expected %d", ErrInvalidKeyLength, len(s), KeySize*2)
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroKey, fmt.Errorf("invalid hex key: %w", err)
	}

	var k Key
	copy(k[:], b)
	return k, nil
}

// KeyFromBytes builds a Key from a byte slice of the correct length.
func KeyFromBytes(b []byte) (Key, error) {
	if len(b) != KeySize {
		return ZeroKey, fmt.Errorf("%w: got %d bytes", ErrInvalidKeyLength, len(b))
	}
	var k Key
	copy(k[:], b)
	return k, nil
}

// String returns the full hex representation of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ShortString returns a shortened hex representation for logs.
func (k Key) ShortString() string {
	return hex.EncodeToString(k[:4])
}

// Bytes returns the key as a byte slice.
func (k Key) Bytes() []byte {
	return k[:]
}

// IsZero reports whether the key is uninitialized.
func (k Key) IsZero() bool {
	return k == ZeroKey
}

// Equal reports whether two keys are byte-equal.
func (k Key) Equal(other Key) bool {
	return k == other
}

// MarshalText implements encoding.TextMarshaler, used by the YAML
// config loader and CBOR codec map keys.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalCBOR encodes the key as a raw 32-byte CBOR byte string rather
// than relying on the reflect-based array encoding, so every key in a
// route occupies exactly the same number of wire bytes regardless of
// CBOR library version or struct layout.
func (k Key) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(k[:])
}

// UnmarshalCBOR decodes a key previously produced by MarshalCBOR.
func (k *Key) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	parsed, err := KeyFromBytes(b)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
