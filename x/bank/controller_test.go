package bank

import (
	"math"
	"testing"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
	"github.com/iov-one/quorum/store"
	amino "github.com/tendermint/go-amino"
)

func newController() Controller {
	cdc := amino.NewCodec()
	RegisterCodec(cdc)
	return NewController(cdc)
}

func TestTransfer(t *testing.T) {
	alice, bob := quorumtest.NewAddress(), quorumtest.NewAddress()
	mint := quorumtest.NewAddress()

	cases := map[string]struct {
		mint    quorum.Address
		amount  uint64
		wantErr *errors.Error
		alice   uint64
		bob     uint64
	}{
		"native": {
			amount: 40,
			alice:  60,
			bob:    40,
		},
		"everything": {
			amount: 100,
			alice:  0,
			bob:    100,
		},
		"token": {
			mint:   mint,
			amount: 5,
			alice:  5,
			bob:    5,
		},
		"too much": {
			amount:  101,
			wantErr: errors.ErrInsufficientAmount,
			alice:   100,
		},
		"unknown token": {
			mint:    quorumtest.NewAddress(),
			amount:  1,
			wantErr: errors.ErrInsufficientAmount,
		},
		"zero": {
			amount:  0,
			wantErr: errors.ErrInvalidAmount,
			alice:   100,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			c := newController()
			db := store.MemStore()
			assert.Nil(t, c.Credit(db, alice, nil, 100))
			assert.Nil(t, c.Credit(db, alice, mint, 10))
			assert.Nil(t, c.Credit(db, bob, mint, 0))

			err := c.Transfer(db, alice, bob, tc.mint, tc.amount)
			assert.IsErr(t, tc.wantErr, err)

			got, err := c.Balance(db, alice, tc.mint)
			assert.Nil(t, err)
			assert.Equal(t, tc.alice, got)
			got, err = c.Balance(db, bob, tc.mint)
			assert.Nil(t, err)
			assert.Equal(t, tc.bob, got)
		})
	}
}

func TestCreditOverflow(t *testing.T) {
	c := newController()
	db := store.MemStore()
	owner := quorumtest.NewAddress()
	assert.Nil(t, c.Credit(db, owner, nil, math.MaxUint64-1))
	assert.IsErr(t, errors.ErrInvalidAmount, c.Credit(db, owner, nil, 2))
	got, err := c.Balance(db, owner, nil)
	assert.Nil(t, err)
	assert.Equal(t, uint64(math.MaxUint64-1), got)
}

func TestCoins(t *testing.T) {
	c := newController()
	db := store.MemStore()
	owner, other := quorumtest.NewAddress(), quorumtest.NewAddress()
	mint := quorumtest.NewAddress()

	assert.Nil(t, c.Credit(db, owner, mint, 7))
	assert.Nil(t, c.Credit(db, owner, nil, 3))
	assert.Nil(t, c.Credit(db, other, nil, 1000))

	coins, err := c.Coins(db, owner)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(coins))
	// Native balance sorts first, it has the shortest key.
	assert.Equal(t, true, coins[0].IsNative())
	assert.Equal(t, uint64(3), coins[0].Amount)
	assert.Equal(t, mint, coins[1].Mint)
	assert.Equal(t, uint64(7), coins[1].Amount)

	// Spending everything removes the record.
	assert.Nil(t, c.Debit(db, owner, mint, 7))
	coins, err = c.Coins(db, owner)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(coins))
}
