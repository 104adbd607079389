package quorum

import (
	"crypto/sha256"

	"github.com/iov-one/quorum/errors"
)

// Tx is the envelope submitted to the ledger. It binds the fee payer and a
// recent checkpoint to an ordered list of messages. All messages are
// processed atomically: either all succeed or none is applied.
type Tx struct {
	// Payer is the primary signer of the transaction.
	Payer Address
	// Checkpoint is a recent ledger state hash. A transaction referring to
	// a checkpoint that is too old is refused.
	Checkpoint []byte
	Msgs       []Msg
	Signatures []Signature
}

// Signature is an ed25519 signature of the transaction sign bytes.
type Signature struct {
	PubKey    []byte
	Signature []byte
}

// Signer returns the address of the signature author.
func (s Signature) Signer() Address {
	return Address(s.PubKey)
}

// Unsigned returns a copy of the transaction stripped of its signatures.
// This is what is signed.
func (tx Tx) Unsigned() Tx {
	tx.Signatures = nil
	return tx
}

// Validate performs a stateless check of the envelope and all messages.
func (tx *Tx) Validate() error {
	if err := tx.Payer.Validate(); err != nil {
		return errors.Wrap(err, "payer")
	}
	if len(tx.Checkpoint) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "missing checkpoint")
	}
	if len(tx.Signatures) == 0 {
		return errors.Wrap(errors.ErrUnauthorized, "missing signature")
	}
	return ValidateMsgs(tx.Msgs)
}

// TxID identifies a signed transaction. It is the sha256 digest of the
// serialized transaction, so submitting the same bytes twice always yields
// the same identifier.
type TxID [sha256.Size]byte

// NewTxID computes the identifier of a serialized transaction.
func NewTxID(raw []byte) TxID {
	return sha256.Sum256(raw)
}

func (id TxID) String() string {
	return Address(id[:]).String()
}

// Bytes returns the identifier as a byte slice.
func (id TxID) Bytes() []byte {
	return id[:]
}
