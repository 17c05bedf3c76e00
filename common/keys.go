package common

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the size of an identity public key in bytes.
const PublicKeySize = 32

// PublicKey is an identity public key (an account owner, a validator, or a
// program). Its text form is base58.
//
// The all-zero key is the "unset" sentinel, e.g. the delegate validator of a
// vault that is not delegated.
type PublicKey [PublicKeySize]byte

// ZeroPublicKey is the sentinel value used when no key is set.
var ZeroPublicKey PublicKey

// NewPublicKeyFromBytes copies raw key bytes into a PublicKey.
func NewPublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("malformed public key: expected %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return ZeroPublicKey, fmt.Errorf("malformed public key '%s': %w", s, err)
	}
	return NewPublicKeyFromBytes(raw)
}

// MustParsePublicKey is like ParsePublicKey but panics on malformed input.
// Only use it for compile-time constants.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// IsZero returns true iff the key is the unset sentinel.
func (pk PublicKey) IsZero() bool {
	return pk == ZeroPublicKey
}

// Equal compares two keys.
func (pk PublicKey) Equal(other PublicKey) bool {
	return bytes.Equal(pk[:], other[:])
}

func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

func (pk *PublicKey) UnmarshalJSON(text []byte) error {
	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		return fmt.Errorf("public key must be a string: %w", err)
	}
	return pk.UnmarshalText([]byte(s))
}

// MarshalBinary returns the raw key bytes.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), pk[:]...), nil
}

// UnmarshalBinary decodes raw key bytes.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	parsed, err := NewPublicKeyFromBytes(data)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}
