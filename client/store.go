package client

import (
	"context"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/x/bank"
	"github.com/iov-one/quorum/x/multisig"
	amino "github.com/tendermint/go-amino"
)

// ConfigStore reads multisig accounts from a ledger. Every call returns a
// fresh snapshot, nothing is cached.
type ConfigStore struct {
	ledger Ledger
	cdc    *amino.Codec
}

// NewConfigStore returns a store reading from given ledger. The codec must
// know the multisig accounts, see app.MakeCodec.
func NewConfigStore(l Ledger, cdc *amino.Codec) *ConfigStore {
	return &ConfigStore{ledger: l, cdc: cdc}
}

func (s *ConfigStore) account(ctx context.Context, addr quorum.Address) (multisig.Account, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	raw, err := s.ledger.GetAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	return multisig.DecodeAccount(s.cdc, raw)
}

// Fetch returns the multisig stored under given address. ErrNotFound is
// returned if there is none.
func (s *ConfigStore) Fetch(ctx context.Context, addr quorum.Address) (*multisig.Multisig, error) {
	acc, err := s.account(ctx, addr)
	if err != nil {
		return nil, errors.Wrap(err, "multisig")
	}
	return multisig.AsMultisig(acc)
}

// FetchByCreateKey returns the multisig created with given key.
func (s *ConfigStore) FetchByCreateKey(ctx context.Context, createKey quorum.Address) (quorum.Address, *multisig.Multisig, error) {
	addr, err := quorum.DeriveMultisig(createKey)
	if err != nil {
		return nil, nil, err
	}
	ms, err := s.Fetch(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	return addr, ms, nil
}

// FetchTransaction returns the transaction with given index.
func (s *ConfigStore) FetchTransaction(ctx context.Context, ms quorum.Address, index uint64) (*multisig.Transaction, error) {
	addr, err := quorum.DeriveTransaction(ms, index)
	if err != nil {
		return nil, err
	}
	acc, err := s.account(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "transaction %d", index)
	}
	return multisig.AsTransaction(acc)
}

// FetchProposal returns the proposal for the transaction with given index.
func (s *ConfigStore) FetchProposal(ctx context.Context, ms quorum.Address, index uint64) (*multisig.Proposal, error) {
	addr, err := quorum.DeriveProposal(ms, index)
	if err != nil {
		return nil, err
	}
	acc, err := s.account(ctx, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "proposal %d", index)
	}
	return multisig.AsProposal(acc)
}

// FetchSpendingLimit returns the spending limit stored under given address.
func (s *ConfigStore) FetchSpendingLimit(ctx context.Context, addr quorum.Address) (*multisig.SpendingLimit, error) {
	acc, err := s.account(ctx, addr)
	if err != nil {
		return nil, errors.Wrap(err, "spending limit")
	}
	limit, ok := acc.(*multisig.SpendingLimit)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidType, "want spending limit, got %T", acc)
	}
	return limit, nil
}

// ProposalInfo is a proposal along with its status as of the snapshot it
// was read with.
type ProposalInfo struct {
	Index    uint64
	Address  quorum.Address
	Proposal *multisig.Proposal
	Status   multisig.ProposalStatus
}

// Proposals returns every proposal from the stale watermark up to the last
// transaction of the multisig. Transactions without a proposal are
// skipped.
func (s *ConfigStore) Proposals(ctx context.Context, addr quorum.Address) (*multisig.Multisig, []ProposalInfo, error) {
	ms, err := s.Fetch(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	from := ms.StaleTransactionIndex
	if from == 0 {
		from = 1
	}
	var res []ProposalInfo
	for i := from; i <= ms.TransactionIndex; i++ {
		p, err := s.FetchProposal(ctx, addr, i)
		if errors.ErrNotFound.Is(err) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		paddr, err := quorum.DeriveProposal(addr, i)
		if err != nil {
			return nil, nil, err
		}
		res = append(res, ProposalInfo{
			Index:    i,
			Address:  paddr,
			Proposal: p,
			Status:   p.EffectiveStatus(ms),
		})
	}
	return ms, res, nil
}

// Balances returns every balance of the owner, the native currency first.
func (s *ConfigStore) Balances(ctx context.Context, owner quorum.Address) ([]bank.Coin, error) {
	models, err := s.ledger.Query(ctx, "/balances", owner)
	if err != nil {
		return nil, err
	}
	coins := make([]bank.Coin, len(models))
	for i, m := range models {
		if err := s.cdc.UnmarshalBinaryBare(m.Value, &coins[i]); err != nil {
			return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "balance")
		}
	}
	return coins, nil
}
