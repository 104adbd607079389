package client

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
)

// Context is everything a client call acts with: the ledger it talks to,
// the key it signs with and the multisig it works on. It is built once per
// invocation, see config.Resolve.
type Context struct {
	Ledger   Ledger
	Signer   crypto.Signer
	Multisig quorum.Address
}

// Validate ensures a ledger and a signer are set. The multisig is optional
// until an operation needs it.
func (c Context) Validate() error {
	var err error
	if c.Ledger == nil {
		err = errors.Append(err, errors.Field("Ledger", errors.ErrInvalidInput, "required"))
	}
	if c.Signer == nil {
		err = errors.Append(err, errors.Field("Signer", errors.ErrInvalidInput, "required"))
	}
	if len(c.Multisig) != 0 {
		err = errors.Append(err, c.Multisig.Validate())
	}
	return err
}

// ActiveMultisig returns the multisig address or an error when none is
// set.
func (c Context) ActiveMultisig() (quorum.Address, error) {
	if len(c.Multisig) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no active multisig")
	}
	return c.Multisig, nil
}
