package quorum

import (
	"encoding/binary"

	"github.com/iov-one/quorum/errors"
)

// Extension is the first section of every Condition derived by this
// package.
const Extension = "quorum"

// Derivation namespaces. Each kind of account is derived within its own
// namespace, so that seeds of one kind never collide with another kind.
const (
	NamespaceMultisig        = "multisig"
	NamespaceVault           = "vault"
	NamespaceTransaction     = "transaction"
	NamespaceProposal        = "proposal"
	NamespaceSpendingLimit   = "spending_limit"
	NamespaceEphemeralSigner = "ephemeral"
)

// DeriveMultisig returns the address of the multisig created with given
// one-time create key.
func DeriveMultisig(createKey Address) (Address, error) {
	if err := createKey.Validate(); err != nil {
		return nil, errors.Wrap(err, "create key")
	}
	return NewCondition(Extension, NamespaceMultisig, createKey).Address(), nil
}

// DeriveVault returns the address of the vault with given index, owned by
// the multisig.
func DeriveVault(multisig Address, vaultIndex uint32) (Address, error) {
	if err := multisig.Validate(); err != nil {
		return nil, errors.Wrap(err, "multisig")
	}
	data := make([]byte, AddressLength+4)
	copy(data, multisig)
	binary.BigEndian.PutUint32(data[AddressLength:], vaultIndex)
	return NewCondition(Extension, NamespaceVault, data).Address(), nil
}

// DeriveTransaction returns the address of the transaction with given
// index, created within the multisig.
func DeriveTransaction(multisig Address, index uint64) (Address, error) {
	return indexed(NamespaceTransaction, multisig, index)
}

// DeriveProposal returns the address of the proposal created for the
// transaction with given index.
func DeriveProposal(multisig Address, index uint64) (Address, error) {
	return indexed(NamespaceProposal, multisig, index)
}

// DeriveSpendingLimit returns the address of the spending limit created
// within the multisig with given one-time create key.
func DeriveSpendingLimit(multisig, createKey Address) (Address, error) {
	if err := multisig.Validate(); err != nil {
		return nil, errors.Wrap(err, "multisig")
	}
	if err := createKey.Validate(); err != nil {
		return nil, errors.Wrap(err, "create key")
	}
	data := make([]byte, 0, 2*AddressLength)
	data = append(data, multisig...)
	data = append(data, createKey...)
	return NewCondition(Extension, NamespaceSpendingLimit, data).Address(), nil
}

// DeriveEphemeralSigner returns the address of an additional signer that a
// vault transaction can use while it is executed.
func DeriveEphemeralSigner(transaction Address, signerIndex uint8) (Address, error) {
	if err := transaction.Validate(); err != nil {
		return nil, errors.Wrap(err, "transaction")
	}
	data := make([]byte, AddressLength+1)
	copy(data, transaction)
	data[AddressLength] = signerIndex
	return NewCondition(Extension, NamespaceEphemeralSigner, data).Address(), nil
}

func indexed(namespace string, multisig Address, index uint64) (Address, error) {
	if err := multisig.Validate(); err != nil {
		return nil, errors.Wrap(err, "multisig")
	}
	data := make([]byte, AddressLength+8)
	copy(data, multisig)
	binary.BigEndian.PutUint64(data[AddressLength:], index)
	return NewCondition(Extension, namespace, data).Address(), nil
}
