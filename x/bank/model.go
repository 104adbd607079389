package bank

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

// BalancePrefix is prepended to the keys of all balances.
var BalancePrefix = []byte("bal:")

// Coin is an amount of the native currency, when Mint is empty, or of the
// token created by Mint.
type Coin struct {
	Mint   quorum.Address `json:"mint,omitempty"`
	Amount uint64         `json:"amount"`
}

// IsNative returns true for the native currency.
func (c Coin) IsNative() bool {
	return len(c.Mint) == 0
}

func (c Coin) Validate() error {
	if !c.IsNative() {
		if err := c.Mint.Validate(); err != nil {
			return errors.Wrap(err, "mint")
		}
	}
	return nil
}

// BalanceKey returns the store key of the balance of owner in given mint.
func BalanceKey(owner, mint quorum.Address) []byte {
	key := make([]byte, 0, len(BalancePrefix)+len(owner)+len(mint))
	key = append(key, BalancePrefix...)
	key = append(key, owner...)
	return append(key, mint...)
}
