package multisig

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

// TransactionKind tells which payload a transaction carries.
type TransactionKind int32

const (
	KindVault TransactionKind = iota + 1
	KindConfig
)

func (k TransactionKind) String() string {
	switch k {
	case KindVault:
		return "vault"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// MaxEphemeralSigners limits the additional signers a vault transaction
// may use.
const MaxEphemeralSigners = 8

// Transaction is a proposed change, identified by the multisig and its
// index. It never changes once created.
type Transaction struct {
	Multisig quorum.Address
	Index    uint64
	Creator  quorum.Address
	Kind     TransactionKind
	Memo     string

	// Actions are set for config transactions.
	Actions []Action

	// VaultIndex, Msgs and EphemeralSigners are set for vault
	// transactions. Msgs are executed in order with the vault as the
	// signer.
	VaultIndex       uint32
	Msgs             []quorum.Msg
	EphemeralSigners uint32

	CreatedAt quorum.UnixTime
}

var _ Account = (*Transaction)(nil)

func (t *Transaction) Validate() error {
	if err := t.Multisig.Validate(); err != nil {
		return errors.Wrap(err, "multisig")
	}
	if t.Index == 0 {
		return errors.Wrap(errors.ErrInvalidModel, "index must be at least 1")
	}
	if err := t.Creator.Validate(); err != nil {
		return errors.Wrap(err, "creator")
	}
	switch t.Kind {
	case KindConfig:
		if len(t.Msgs) != 0 {
			return errors.Wrap(errors.ErrInvalidModel, "config transaction with messages")
		}
		return ValidateActions(t.Actions)
	case KindVault:
		if len(t.Actions) != 0 {
			return errors.Wrap(errors.ErrInvalidModel, "vault transaction with actions")
		}
		if t.EphemeralSigners > MaxEphemeralSigners {
			return errors.Wrapf(errors.ErrInvalidModel, "at most %d ephemeral signers", MaxEphemeralSigners)
		}
		return quorum.ValidateMsgs(t.Msgs)
	default:
		return errors.Wrapf(errors.ErrInvalidModel, "unknown kind %d", t.Kind)
	}
}

// Vault returns the address of the vault a vault transaction executes
// with.
func (t *Transaction) Vault() (quorum.Address, error) {
	return quorum.DeriveVault(t.Multisig, t.VaultIndex)
}

// Signers returns every address the inner messages of a vault transaction
// are authorized by: the vault and the ephemeral signers.
func (t *Transaction) Signers() ([]quorum.Address, error) {
	vault, err := t.Vault()
	if err != nil {
		return nil, err
	}
	addr, err := quorum.DeriveTransaction(t.Multisig, t.Index)
	if err != nil {
		return nil, err
	}
	signers := []quorum.Address{vault}
	for i := uint32(0); i < t.EphemeralSigners; i++ {
		s, err := quorum.DeriveEphemeralSigner(addr, uint8(i))
		if err != nil {
			return nil, err
		}
		signers = append(signers, s)
	}
	return signers, nil
}
