package multisig

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/store"
	amino "github.com/tendermint/go-amino"
)

// AccountPrefix is prepended to the address of every account in the
// store. The ledger exposes accounts through the "/accounts" query.
var AccountPrefix = []byte("acct:")

// AccountKey returns the store key of the account with given address.
func AccountKey(addr quorum.Address) []byte {
	return append(append([]byte{}, AccountPrefix...), addr...)
}

// Bucket persists accounts of this package, each under its own address.
type Bucket struct {
	cdc *amino.Codec
}

// NewBucket returns a bucket serializing accounts with given codec. The
// codec must know the types registered by RegisterCodec.
func NewBucket(cdc *amino.Codec) Bucket {
	return Bucket{cdc: cdc}
}

// Get returns the account stored under given address or ErrNotFound.
func (b Bucket) Get(db quorum.ReadOnlyKVStore, addr quorum.Address) (Account, error) {
	raw := db.Get(AccountKey(addr))
	if raw == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "account %s", addr)
	}
	return DecodeAccount(b.cdc, raw)
}

// Save validates and stores the account under given address.
func (b Bucket) Save(db quorum.KVStore, addr quorum.Address, acc Account) error {
	if err := acc.Validate(); err != nil {
		return errors.Wrapf(err, "account %s", addr)
	}
	raw, err := b.cdc.MarshalBinaryBare(acc)
	if err != nil {
		return errors.Wrap(errors.WithKind(errors.ErrHuman, err), "encode account")
	}
	db.Set(AccountKey(addr), raw)
	return nil
}

// Delete removes the account stored under given address.
func (b Bucket) Delete(db quorum.KVStore, addr quorum.Address) error {
	key := AccountKey(addr)
	if !db.Has(key) {
		return errors.Wrapf(errors.ErrNotFound, "account %s", addr)
	}
	db.Delete(key)
	return nil
}

// Has returns true if an account exists under given address.
func (b Bucket) Has(db quorum.ReadOnlyKVStore, addr quorum.Address) bool {
	return db.Has(AccountKey(addr))
}

// Multisig returns the multisig stored under given address.
func (b Bucket) Multisig(db quorum.ReadOnlyKVStore, addr quorum.Address) (*Multisig, error) {
	acc, err := b.Get(db, addr)
	if err != nil {
		return nil, err
	}
	return AsMultisig(acc)
}

// Transaction returns the transaction with given index of the multisig.
func (b Bucket) Transaction(db quorum.ReadOnlyKVStore, ms quorum.Address, index uint64) (*Transaction, error) {
	addr, err := quorum.DeriveTransaction(ms, index)
	if err != nil {
		return nil, err
	}
	acc, err := b.Get(db, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "transaction %d", index)
	}
	return AsTransaction(acc)
}

// Proposal returns the proposal for the transaction with given index of
// the multisig.
func (b Bucket) Proposal(db quorum.ReadOnlyKVStore, ms quorum.Address, index uint64) (*Proposal, error) {
	addr, err := quorum.DeriveProposal(ms, index)
	if err != nil {
		return nil, err
	}
	acc, err := b.Get(db, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "proposal %d", index)
	}
	return AsProposal(acc)
}

// SpendingLimit returns the spending limit stored under given address.
func (b Bucket) SpendingLimit(db quorum.ReadOnlyKVStore, addr quorum.Address) (*SpendingLimit, error) {
	acc, err := b.Get(db, addr)
	if err != nil {
		return nil, err
	}
	if s, ok := acc.(*SpendingLimit); ok {
		return s, nil
	}
	return nil, errors.Wrapf(errors.ErrInvalidType, "want spending limit, got %T", acc)
}

// DecodeAccount deserializes an account as stored by a Bucket.
func DecodeAccount(cdc *amino.Codec, raw []byte) (Account, error) {
	var acc Account
	if err := cdc.UnmarshalBinaryBare(raw, &acc); err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "decode account")
	}
	return acc, nil
}

// AsMultisig type asserts the account.
func AsMultisig(acc Account) (*Multisig, error) {
	if ms, ok := acc.(*Multisig); ok {
		return ms, nil
	}
	return nil, errors.Wrapf(errors.ErrInvalidType, "want multisig, got %T", acc)
}

// AsTransaction type asserts the account.
func AsTransaction(acc Account) (*Transaction, error) {
	if tx, ok := acc.(*Transaction); ok {
		return tx, nil
	}
	return nil, errors.Wrapf(errors.ErrInvalidType, "want transaction, got %T", acc)
}

// AsProposal type asserts the account.
func AsProposal(acc Account) (*Proposal, error) {
	if p, ok := acc.(*Proposal); ok {
		return p, nil
	}
	return nil, errors.Wrapf(errors.ErrInvalidType, "want proposal, got %T", acc)
}

// RegisterQuery registers "/accounts", returning the raw account stored
// under the address given as query data. With the "prefix" modifier every
// account whose address starts with the data is returned.
func RegisterQuery(qr quorum.QueryRouter) {
	qr.Register("/accounts", accountQuery{})
}

type accountQuery struct{}

func (accountQuery) Query(db quorum.ReadOnlyKVStore, mod string, data []byte) ([]quorum.Model, error) {
	switch mod {
	case quorum.KeyQueryMod:
		raw := db.Get(AccountKey(data))
		if raw == nil {
			return nil, nil
		}
		return []quorum.Model{quorum.Pair(data, raw)}, nil
	case quorum.PrefixQueryMod:
		prefix := AccountKey(data)
		it := db.Iterator(prefix, store.PrefixEnd(prefix))
		defer it.Close()
		var res []quorum.Model
		for ; it.Valid(); it.Next() {
			res = append(res, quorum.Pair(it.Key()[len(AccountPrefix):], it.Value()))
		}
		return res, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown query modifier %q", mod)
	}
}
