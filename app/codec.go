package app

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/x/bank"
	"github.com/iov-one/quorum/x/multisig"
	amino "github.com/tendermint/go-amino"
)

// MakeCodec returns a codec that knows every message and account of the
// application. Clients must use it too, so that the bytes they sign are
// the bytes the application verifies.
func MakeCodec() *amino.Codec {
	cdc := amino.NewCodec()
	cdc.RegisterInterface((*quorum.Msg)(nil), nil)
	multisig.RegisterCodec(cdc)
	bank.RegisterCodec(cdc)
	return cdc
}

// EncodeTx serializes a transaction.
func EncodeTx(cdc *amino.Codec, tx *quorum.Tx) ([]byte, error) {
	raw, err := cdc.MarshalBinaryBare(tx)
	if err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidInput, err), "encode tx")
	}
	return raw, nil
}

// DecodeTx deserializes a transaction. Malformed input never panics.
func DecodeTx(cdc *amino.Codec, raw []byte) (tx *quorum.Tx, err error) {
	defer errors.Recover(&err)
	var t quorum.Tx
	if err := cdc.UnmarshalBinaryBare(raw, &t); err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidInput, err), "decode tx")
	}
	return &t, nil
}

// signDoc is what every signer of a transaction signs. The chain id
// prevents a transaction from being replayed on another chain.
type signDoc struct {
	ChainID string
	Tx      quorum.Tx
}

// SignBytes returns the bytes a signer must sign for given transaction.
// Signatures already present are ignored.
func SignBytes(cdc *amino.Codec, chainID string, tx *quorum.Tx) ([]byte, error) {
	raw, err := cdc.MarshalBinaryBare(signDoc{ChainID: chainID, Tx: tx.Unsigned()})
	if err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidInput, err), "sign bytes")
	}
	return raw, nil
}

// Sign signs the transaction with every given signer and appends the
// signatures.
func Sign(cdc *amino.Codec, chainID string, tx *quorum.Tx, signers ...crypto.Signer) error {
	msg, err := SignBytes(cdc, chainID, tx)
	if err != nil {
		return err
	}
	for _, s := range signers {
		sig, err := s.Sign(msg)
		if err != nil {
			return errors.Wrapf(err, "sign by %s", s.Address())
		}
		tx.Signatures = append(tx.Signatures, sig)
	}
	return nil
}
