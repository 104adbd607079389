/*
Package crypto provides the ed25519 keys used to sign transactions.

The public key of a signer is its ledger address.
*/
package crypto

import (
	"encoding/json"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"golang.org/x/crypto/ed25519"
)

// Signer is implemented by anything that can sign a transaction.
type Signer interface {
	Address() quorum.Address
	Sign(message []byte) (quorum.Signature, error)
}

// PrivateKey is an ed25519 private key.
type PrivateKey struct {
	key ed25519.PrivateKey
}

var _ Signer = (*PrivateKey)(nil)

// GenPrivateKey returns a random new private key.
func GenPrivateKey() *PrivateKey {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return &PrivateKey{key: priv}
}

// PrivateKeyFromSeed will deterministically generate a private key from a
// given seed. Use if you have a strong source of external randomness, or for
// deterministic keys in test cases.
func PrivateKeyFromSeed(seed []byte) *PrivateKey {
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}
}

// ParsePrivateKey decodes a private key in one of the formats wallets
// export: a base58 string of the 64 byte key or a JSON array of its bytes.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty private key")
	}

	var raw []byte
	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "private key array: %s", err)
		}
		raw = make([]byte, len(ints))
		for i, n := range ints {
			if n < 0 || n > 255 {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "private key byte %d out of range", i)
			}
			raw[i] = byte(n)
		}
	} else {
		raw = base58.Decode(s)
	}

	switch len(raw) {
	case ed25519.PrivateKeySize:
		return &PrivateKey{key: ed25519.PrivateKey(raw)}, nil
	case ed25519.SeedSize:
		return PrivateKeyFromSeed(raw), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
}

// Address returns the public key, which is the address of this signer.
func (p *PrivateKey) Address() quorum.Address {
	pub := p.key.Public().(ed25519.PublicKey)
	return quorum.Address(pub)
}

// Sign returns a matching signature for this private key.
func (p *PrivateKey) Sign(message []byte) (quorum.Signature, error) {
	return quorum.Signature{
		PubKey:    []byte(p.Address()),
		Signature: ed25519.Sign(p.key, message),
	}, nil
}

// String returns the base58 encoded private key, as accepted by
// ParsePrivateKey.
func (p *PrivateKey) String() string {
	return base58.Encode(p.key)
}

// Verify returns true if the signature was created for given message by the
// owner of the public key it carries.
func Verify(sig quorum.Signature, message []byte) bool {
	if len(sig.PubKey) != ed25519.PublicKeySize || len(sig.Signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(sig.PubKey), message, sig.Signature)
}
