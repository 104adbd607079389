package bank

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

// OptKey is the genesis app_state key holding the funded accounts.
const OptKey = "bank"

// GenesisAccount is used to parse the json from genesis file.
type GenesisAccount struct {
	Address quorum.Address `json:"address"`
	Coins   []Coin         `json:"coins"`
}

// Initializer fulfils the Initializer interface to load data from the
// genesis file.
type Initializer struct {
	Control Controller
}

var _ quorum.Initializer = Initializer{}

// FromGenesis will parse initial balances from genesis and save them.
func (i Initializer) FromGenesis(opts quorum.Options, db quorum.KVStore) error {
	var accts []GenesisAccount
	if err := opts.ReadOptions(OptKey, &accts); err != nil {
		return err
	}
	for _, acct := range accts {
		if err := acct.Address.Validate(); err != nil {
			return errors.Wrap(err, "genesis account")
		}
		for _, c := range acct.Coins {
			if err := c.Validate(); err != nil {
				return errors.Wrapf(err, "genesis account %s", acct.Address)
			}
			if err := i.Control.Credit(db, acct.Address, c.Mint, c.Amount); err != nil {
				return err
			}
		}
	}
	return nil
}
