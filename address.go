package quorum

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/quorum/errors"
)

// AddressLength is the length of all addresses. Member keys are ed25519
// public keys and derived addresses are full sha256 digests, both of which
// are 32 bytes long.
const AddressLength = 32

// it must have (?s) flags, otherwise it errors when last section contains 0x20 (newline)
var perm = regexp.MustCompile(`(?s)^([a-zA-Z0-9_\-]{3,8})/([a-zA-Z0-9_\-]{3,16})/(.+)$`)

// Address identifies an account on the ledger. It is either the public key
// of a signer or an address derived from a Condition.
type Address []byte

// ParseAddress decodes a base58 encoded address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return nil, errors.Wrap(errors.ErrInvalidAddress, "empty")
	}
	raw := base58.Decode(s)
	if len(raw) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidAddress, "not base58: %q", s)
	}
	addr := Address(raw)
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	return addr, nil
}

// MustParseAddress is like ParseAddress but panics on error. Use it only
// for constants and in tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Equals checks if two addresses are the same.
func (a Address) Equals(b Address) bool {
	return bytes.Equal(a, b)
}

// String returns the base58 representation.
func (a Address) String() string {
	if len(a) == 0 {
		return "(nil)"
	}
	return base58.Encode(a)
}

// Validate returns an error if the address is not the valid size.
func (a Address) Validate() error {
	if len(a) != AddressLength {
		return errors.Wrapf(errors.ErrInvalidAddress, "want %d bytes, got %d", AddressLength, len(a))
	}
	return nil
}

// MarshalJSON provides a base58 representation for JSON, to override the
// standard base64 []byte encoding.
func (a Address) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(base58.Encode(a))
}

func (a *Address) UnmarshalJSON(raw []byte) error {
	var enc string
	if err := json.Unmarshal(raw, &enc); err != nil {
		return errors.Wrap(errors.ErrInvalidAddress, err.Error())
	}
	// No value zero the address.
	if enc == "" {
		*a = nil
		return nil
	}
	addr, err := ParseAddress(enc)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// Condition is a specially formatted array, describing a namespaced seed
// from which an address is derived.
// It is of the format:
//
//   sprintf("%s/%s/%s", extension, type, data)
//
// Two conditions with a different extension or type never produce the same
// address, whatever their data is.
type Condition []byte

func NewCondition(ext, typ string, data []byte) Condition {
	pre := fmt.Sprintf("%s/%s/", ext, typ)
	return append([]byte(pre), data...)
}

// Parse will extract the sections from the Condition bytes
// and verify it is properly formatted.
func (c Condition) Parse() (string, string, []byte, error) {
	chunks := perm.FindSubmatch(c)
	if len(chunks) == 0 {
		return "", "", nil, errors.ErrInvalidInput.Newf("condition: %X", []byte(c))
	}
	// returns [all, match1, match2, match3]
	return string(chunks[1]), string(chunks[2]), chunks[3], nil
}

// Address will convert a Condition into an Address.
func (c Condition) Address() Address {
	h := sha256.Sum256(c)
	return h[:]
}

// String returns a human readable string.
func (c Condition) String() string {
	ext, typ, data, err := c.Parse()
	if err != nil {
		return fmt.Sprintf("Invalid Condition: %X", []byte(c))
	}
	return fmt.Sprintf("%s/%s/%X", ext, typ, data)
}

// Validate returns an error if the Condition is not the proper format.
func (c Condition) Validate() error {
	if !perm.Match(c) {
		return errors.ErrInvalidInput.Newf("condition: %X", []byte(c))
	}
	return nil
}
