package bank

import (
	"math"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/store"
	amino "github.com/tendermint/go-amino"
)

// Controller is the only way balances are modified.
type Controller struct {
	cdc *amino.Codec
}

// NewController returns a controller encoding balances with given codec.
func NewController(cdc *amino.Codec) Controller {
	return Controller{cdc: cdc}
}

// Balance returns what owner holds of given mint. An empty mint is the
// native currency.
func (c Controller) Balance(db quorum.ReadOnlyKVStore, owner, mint quorum.Address) (uint64, error) {
	raw := db.Get(BalanceKey(owner, mint))
	if raw == nil {
		return 0, nil
	}
	var coin Coin
	if err := c.cdc.UnmarshalBinaryBare(raw, &coin); err != nil {
		return 0, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "decode balance")
	}
	return coin.Amount, nil
}

// Coins returns every non empty balance of owner, the native currency
// first.
func (c Controller) Coins(db quorum.ReadOnlyKVStore, owner quorum.Address) ([]Coin, error) {
	prefix := BalanceKey(owner, nil)
	it := db.Iterator(prefix, store.PrefixEnd(prefix))
	defer it.Close()

	var coins []Coin
	for ; it.Valid(); it.Next() {
		var coin Coin
		if err := c.cdc.UnmarshalBinaryBare(it.Value(), &coin); err != nil {
			return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "decode balance")
		}
		coins = append(coins, coin)
	}
	return coins, nil
}

// Credit adds amount to the balance of owner.
func (c Controller) Credit(db quorum.KVStore, owner, mint quorum.Address, amount uint64) error {
	have, err := c.Balance(db, owner, mint)
	if err != nil {
		return err
	}
	if amount > math.MaxUint64-have {
		return errors.Wrap(errors.ErrInvalidAmount, "balance overflow")
	}
	return c.save(db, owner, Coin{Mint: mint, Amount: have + amount})
}

// Debit removes amount from the balance of owner.
func (c Controller) Debit(db quorum.KVStore, owner, mint quorum.Address, amount uint64) error {
	have, err := c.Balance(db, owner, mint)
	if err != nil {
		return err
	}
	if amount > have {
		return errors.Wrapf(errors.ErrInsufficientAmount, "%s holds %d, needs %d", owner, have, amount)
	}
	return c.save(db, owner, Coin{Mint: mint, Amount: have - amount})
}

// Transfer moves amount from one owner to another. Nothing is written if
// the sender holds less than amount.
func (c Controller) Transfer(db quorum.KVStore, from, to, mint quorum.Address, amount uint64) error {
	if amount == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "non positive transfer")
	}
	if err := c.Debit(db, from, mint, amount); err != nil {
		return err
	}
	return c.Credit(db, to, mint, amount)
}

func (c Controller) save(db quorum.KVStore, owner quorum.Address, coin Coin) error {
	if err := coin.Validate(); err != nil {
		return err
	}
	key := BalanceKey(owner, coin.Mint)
	if coin.Amount == 0 {
		db.Delete(key)
		return nil
	}
	raw, err := c.cdc.MarshalBinaryBare(coin)
	if err != nil {
		return errors.Wrap(errors.WithKind(errors.ErrHuman, err), "encode balance")
	}
	db.Set(key, raw)
	return nil
}
