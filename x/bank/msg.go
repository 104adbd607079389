package bank

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

const pathSendMsg = "bank/send"

// MaxMemoLength limits the memo of a transfer.
const MaxMemoLength = 128

// SendMsg moves funds from one account to another. The source must sign.
type SendMsg struct {
	From quorum.Address
	To   quorum.Address
	// Mint is empty for the native currency.
	Mint   quorum.Address
	Amount uint64
	Memo   string
}

var _ quorum.Msg = (*SendMsg)(nil)

func (SendMsg) Path() string { return pathSendMsg }

func (m *SendMsg) Validate() error {
	if err := m.From.Validate(); err != nil {
		return errors.Wrap(err, "from")
	}
	if err := m.To.Validate(); err != nil {
		return errors.Wrap(err, "to")
	}
	if err := (Coin{Mint: m.Mint}).Validate(); err != nil {
		return err
	}
	if m.Amount == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "amount must be positive")
	}
	if len(m.Memo) > MaxMemoLength {
		return errors.Wrapf(errors.ErrInvalidMsg, "memo longer than %d", MaxMemoLength)
	}
	return nil
}
