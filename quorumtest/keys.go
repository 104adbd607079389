/*
Package quorumtest provides helpers for tests of the quorum packages.
*/
package quorumtest

import (
	"crypto/rand"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/crypto"
)

// NewKey returns a new random signing key.
func NewKey() *crypto.PrivateKey {
	return crypto.GenPrivateKey()
}

// NewAddress returns a new random address. It can be used as a create key
// or as a plain destination.
func NewAddress() quorum.Address {
	addr := make(quorum.Address, quorum.AddressLength)
	if _, err := rand.Read(addr); err != nil {
		panic(err)
	}
	return addr
}

// SequenceKey returns a deterministic key for given number. Same n always
// produces the same key.
func SequenceKey(n byte) *crypto.PrivateKey {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = n
	}
	return crypto.PrivateKeyFromSeed(seed)
}
