// Package common holds the small fixed-size value types shared by every
// other package: hashes, addresses, and a clock abstraction that lets
// time-sensitive logic (time rules, TTL sweeps, backoff) be tested without
// sleeping.
package common

import (
	"encoding/hex"
	"errors"
	"time"
)

const (
	HashLength    = 32
	AddressLength = 20
)

// Hash is a 32-byte PoW digest / tx hash / merkle node.
type Hash [HashLength]byte

// BytesToHash right-aligns b into a Hash, truncating from the left if b is
// longer than HashLength.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) Hex() string   { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool {
	return h == Hash{}
}

func HexToHash(s string) (Hash, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Hash{}, err
	}
	if len(b) != HashLength {
		return Hash{}, errors.New("common: hash hex has wrong length")
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Address is a 20-byte account identifier, derived from a public key hash.
type Address [AddressLength]byte

func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) Bytes() []byte   { return a[:] }
func (a Address) Hex() string     { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string  { return a.Hex() }
func (a Address) IsZero() bool    { return a == Address{} }

func HexToAddress(s string) (Address, error) {
	b, err := decodeHex(s)
	if err != nil {
		return Address{}, err
	}
	if len(b) != AddressLength {
		return Address{}, errors.New("common: address hex has wrong length")
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}

// PrettyDuration rounds a duration to a human-friendly precision for logs.
type PrettyDuration time.Duration

func (d PrettyDuration) String() string {
	td := time.Duration(d)
	switch {
	case td > time.Second:
		td = td.Round(time.Millisecond)
	case td > time.Millisecond:
		td = td.Round(time.Microsecond)
	}
	return td.String()
}
