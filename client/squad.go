package client

import (
	"context"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/x/bank"
	"github.com/iov-one/quorum/x/multisig"
	"github.com/tendermint/tendermint/libs/log"
	"golang.org/x/sync/errgroup"
)

// MaxIndexRetries is how many times a transaction is created again after
// another member took the index first.
const MaxIndexRetries = 3

// Squad runs the multisig workflow for the signer of a context: create a
// multisig, create transactions and proposals, vote and execute.
//
// Every operation reads a fresh snapshot, checks locally that the ledger
// would accept it and then delivers it through the broadcaster. The ledger
// remains the authority, a local check only reports failures early.
type Squad struct {
	env         Context
	store       *ConfigStore
	broadcaster *Broadcaster
	logger      log.Logger
}

// NewSquad returns a squad acting with given context.
func NewSquad(env Context, b *Broadcaster) *Squad {
	return &Squad{
		env:         env,
		store:       NewConfigStore(env.Ledger, b.cdc),
		broadcaster: b,
		logger:      b.logger.With("module", "squad"),
	}
}

// Store returns the store the squad reads with.
func (s *Squad) Store() *ConfigStore {
	return s.store
}

func (s *Squad) member() quorum.Address {
	return s.env.Signer.Address()
}

func (s *Squad) now() quorum.UnixTime {
	return quorum.AsUnixTime(s.broadcaster.Clock().Now())
}

// ActiveMultisig returns the address of the multisig the squad works on.
func (s *Squad) ActiveMultisig() (quorum.Address, error) {
	return s.env.ActiveMultisig()
}

// Multisig returns the active multisig.
func (s *Squad) Multisig(ctx context.Context) (*multisig.Multisig, error) {
	addr, err := s.env.ActiveMultisig()
	if err != nil {
		return nil, err
	}
	return s.store.Fetch(ctx, addr)
}

// CreateMultisigRequest describes a new multisig. The signer becomes a
// member with CreatorPermissions unless Members already lists it.
type CreateMultisigRequest struct {
	Members            []multisig.Member
	CreatorPermissions multisig.Permission
	Threshold          uint32
	TimeLock           uint32
	RentCollector      quorum.Address
	Memo               string
}

// CreatedMultisig is the outcome of CreateMultisig.
type CreatedMultisig struct {
	Address   quorum.Address
	CreateKey quorum.Address
	Vault     quorum.Address
	TxID      quorum.TxID
}

// CreateMultisig creates a multisig with a one time create key. The key
// signs the creation and is discarded.
func (s *Squad) CreateMultisig(ctx context.Context, req CreateMultisigRequest) (*CreatedMultisig, error) {
	createKey := crypto.GenPrivateKey()
	members := append([]multisig.Member{}, req.Members...)
	creator := s.member()
	known := false
	for _, m := range members {
		if m.Key.Equals(creator) {
			known = true
		}
	}
	if !known {
		perms := req.CreatorPermissions
		if perms == 0 {
			perms = multisig.PermAll
		}
		members = append(members, multisig.Member{Key: creator, Permissions: perms})
	}
	msg := &multisig.CreateMultisigMsg{
		CreateKey:     createKey.Address(),
		Members:       members,
		Threshold:     req.Threshold,
		TimeLock:      req.TimeLock,
		RentCollector: req.RentCollector,
		Memo:          req.Memo,
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	addr, err := quorum.DeriveMultisig(msg.CreateKey)
	if err != nil {
		return nil, err
	}
	vault, err := quorum.DeriveVault(addr, 0)
	if err != nil {
		return nil, err
	}
	id, err := s.broadcaster.Submit(ctx, []quorum.Msg{msg}, s.env.Signer, createKey)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Multisig created", "multisig", addr, "members", len(members), "threshold", req.Threshold)
	return &CreatedMultisig{Address: addr, CreateKey: msg.CreateKey, Vault: vault, TxID: id}, nil
}

// Created is the outcome of creating a transaction.
type Created struct {
	Index uint64
	// Transaction is the address of the transaction record.
	Transaction quorum.Address
	// Proposal is the address of the proposal, if one was created.
	Proposal quorum.Address
	TxID     quorum.TxID
}

// VaultTransactionRequest describes messages to execute with a vault as
// signer.
type VaultTransactionRequest struct {
	VaultIndex       uint32
	Msgs             []quorum.Msg
	EphemeralSigners uint32
	Memo             string
	// Propose opens voting on the transaction right away.
	Propose bool
}

// CreateVaultTransaction creates a vault transaction on the active
// multisig.
func (s *Squad) CreateVaultTransaction(ctx context.Context, req VaultTransactionRequest) (*Created, error) {
	return s.createTransaction(ctx, req.Propose, func(ms quorum.Address, index uint64) (quorum.Msg, error) {
		m := &multisig.CreateVaultTransactionMsg{
			Multisig:         ms,
			Index:            index,
			Creator:          s.member(),
			VaultIndex:       req.VaultIndex,
			Msgs:             req.Msgs,
			EphemeralSigners: req.EphemeralSigners,
			Memo:             req.Memo,
		}
		return m, m.Validate()
	})
}

// TransferRequest describes a payment out of a vault.
type TransferRequest struct {
	VaultIndex uint32
	To         quorum.Address
	// Mint is empty for the native currency.
	Mint   quorum.Address
	Amount uint64
	Memo   string
}

// Transfer creates a vault transaction paying from the vault and proposes
// it.
func (s *Squad) Transfer(ctx context.Context, req TransferRequest) (*Created, error) {
	addr, err := s.env.ActiveMultisig()
	if err != nil {
		return nil, err
	}
	vault, err := quorum.DeriveVault(addr, req.VaultIndex)
	if err != nil {
		return nil, err
	}
	send := &bank.SendMsg{From: vault, To: req.To, Mint: req.Mint, Amount: req.Amount, Memo: req.Memo}
	return s.CreateVaultTransaction(ctx, VaultTransactionRequest{
		VaultIndex: req.VaultIndex,
		Msgs:       []quorum.Msg{send},
		Memo:       req.Memo,
		Propose:    true,
	})
}

// CreateConfigTransaction creates a config transaction with given actions
// on the active multisig. The batch is refused if it would leave the
// current configuration inconsistent.
func (s *Squad) CreateConfigTransaction(ctx context.Context, memo string, propose bool, actions ...multisig.Action) (*Created, error) {
	return s.createTransaction(ctx, propose, func(addr quorum.Address, index uint64) (quorum.Msg, error) {
		return multisig.NewConfigTransaction(addr, index, s.member(), memo, actions...)
	})
}

// createTransaction creates a transaction at the next free index. When
// another member takes that index first the multisig is read again and the
// transaction built anew.
func (s *Squad) createTransaction(ctx context.Context, propose bool, build func(ms quorum.Address, index uint64) (quorum.Msg, error)) (*Created, error) {
	addr, err := s.env.ActiveMultisig()
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		ms, err := s.store.Fetch(ctx, addr)
		if err != nil {
			return nil, err
		}
		if err := ms.Authorize(s.member(), multisig.PermInitiate); err != nil {
			return nil, err
		}
		index := ms.NextTransactionIndex()
		msg, err := build(addr, index)
		if err != nil {
			return nil, err
		}
		if c, ok := msg.(*multisig.CreateConfigTransactionMsg); ok {
			if _, err := multisig.ApplyActions(ms, c.Actions); err != nil {
				return nil, err
			}
		}
		msgs := []quorum.Msg{msg}
		if propose {
			msgs = append(msgs, &multisig.CreateProposalMsg{Multisig: addr, Index: index, Creator: s.member()})
		}

		id, err := s.broadcaster.Submit(ctx, msgs, s.env.Signer)
		if errors.ErrIndexConflict.Is(err) && attempt <= MaxIndexRetries {
			s.logger.Info("Transaction index taken", "multisig", addr, "index", index, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		res := &Created{Index: index, TxID: id}
		if res.Transaction, err = quorum.DeriveTransaction(addr, index); err != nil {
			return nil, err
		}
		if propose {
			if res.Proposal, err = quorum.DeriveProposal(addr, index); err != nil {
				return nil, err
			}
		}
		return res, nil
	}
}

// CreateProposal opens voting on an existing transaction.
func (s *Squad) CreateProposal(ctx context.Context, index uint64) (quorum.TxID, error) {
	ms, addr, err := s.active(ctx)
	if err != nil {
		return quorum.TxID{}, err
	}
	if _, err := multisig.NewProposal(ms, addr, index, s.member(), s.now()); err != nil {
		return quorum.TxID{}, err
	}
	if _, err := s.store.FetchTransaction(ctx, addr, index); err != nil {
		return quorum.TxID{}, err
	}
	msg := &multisig.CreateProposalMsg{Multisig: addr, Index: index, Creator: s.member()}
	return s.broadcaster.Submit(ctx, []quorum.Msg{msg}, s.env.Signer)
}

// Approve votes for the proposal of given transaction.
func (s *Squad) Approve(ctx context.Context, index uint64, memo string) (quorum.TxID, error) {
	return s.vote(ctx, index, (*multisig.Proposal).Approve, func(ms quorum.Address, member quorum.Address) quorum.Msg {
		return &multisig.ApproveProposalMsg{Multisig: ms, Index: index, Member: member, Memo: memo}
	})
}

// Reject votes against the proposal of given transaction.
func (s *Squad) Reject(ctx context.Context, index uint64, memo string) (quorum.TxID, error) {
	return s.vote(ctx, index, (*multisig.Proposal).Reject, func(ms quorum.Address, member quorum.Address) quorum.Msg {
		return &multisig.RejectProposalMsg{Multisig: ms, Index: index, Member: member, Memo: memo}
	})
}

// Cancel votes to withdraw the proposal of given transaction.
func (s *Squad) Cancel(ctx context.Context, index uint64, memo string) (quorum.TxID, error) {
	return s.vote(ctx, index, (*multisig.Proposal).Cancel, func(ms quorum.Address, member quorum.Address) quorum.Msg {
		return &multisig.CancelProposalMsg{Multisig: ms, Index: index, Member: member, Memo: memo}
	})
}

type countFn func(*multisig.Proposal, *multisig.Multisig, quorum.Address, quorum.UnixTime) error

func (s *Squad) vote(ctx context.Context, index uint64, count countFn, build func(ms, member quorum.Address) quorum.Msg) (quorum.TxID, error) {
	ms, addr, err := s.active(ctx)
	if err != nil {
		return quorum.TxID{}, err
	}
	p, err := s.store.FetchProposal(ctx, addr, index)
	if err != nil {
		return quorum.TxID{}, err
	}
	if err := count(p, ms, s.member(), s.now()); err != nil {
		return quorum.TxID{}, err
	}
	return s.broadcaster.Submit(ctx, []quorum.Msg{build(addr, s.member())}, s.env.Signer)
}

// Execute executes an approved transaction.
func (s *Squad) Execute(ctx context.Context, index uint64) (quorum.TxID, error) {
	ms, addr, err := s.active(ctx)
	if err != nil {
		return quorum.TxID{}, err
	}
	tx, err := s.store.FetchTransaction(ctx, addr, index)
	if err != nil {
		return quorum.TxID{}, err
	}
	p, err := s.store.FetchProposal(ctx, addr, index)
	if err != nil {
		return quorum.TxID{}, err
	}
	if err := p.CanExecute(ms, s.member(), s.now()); err != nil {
		return quorum.TxID{}, err
	}

	var msg quorum.Msg
	switch tx.Kind {
	case multisig.KindConfig:
		if _, err := multisig.ApplyActions(ms, tx.Actions); err != nil {
			return quorum.TxID{}, err
		}
		msg = &multisig.ExecuteConfigTransactionMsg{Multisig: addr, Index: index, Member: s.member()}
	case multisig.KindVault:
		msg = &multisig.ExecuteVaultTransactionMsg{Multisig: addr, Index: index, Member: s.member()}
	default:
		return quorum.TxID{}, errors.Wrapf(errors.ErrInvalidType, "transaction %d is a %s transaction", index, tx.Kind)
	}
	return s.broadcaster.Submit(ctx, []quorum.Msg{msg}, s.env.Signer)
}

// UseSpendingLimit pays from a vault within a spending limit, without a
// vote.
func (s *Squad) UseSpendingLimit(ctx context.Context, limit, to quorum.Address, amount uint64, memo string) (quorum.TxID, error) {
	l, err := s.store.FetchSpendingLimit(ctx, limit)
	if err != nil {
		return quorum.TxID{}, err
	}
	if !l.HasMember(s.member()) {
		return quorum.TxID{}, errors.Wrapf(errors.ErrPermissionDenied, "%s cannot use this spending limit", s.member())
	}
	if !l.AllowsDestination(to) {
		return quorum.TxID{}, errors.Wrapf(errors.ErrPermissionDenied, "destination %s not allowed", to)
	}
	msg := &multisig.UseSpendingLimitMsg{
		SpendingLimit: limit,
		Member:        s.member(),
		Destination:   to,
		Amount:        amount,
		Memo:          memo,
	}
	return s.broadcaster.Submit(ctx, []quorum.Msg{msg}, s.env.Signer)
}

// FundVault sends funds from the signer to a vault of the active multisig.
func (s *Squad) FundVault(ctx context.Context, vaultIndex uint32, mint quorum.Address, amount uint64) (quorum.TxID, error) {
	addr, err := s.env.ActiveMultisig()
	if err != nil {
		return quorum.TxID{}, err
	}
	vault, err := quorum.DeriveVault(addr, vaultIndex)
	if err != nil {
		return quorum.TxID{}, err
	}
	msg := &bank.SendMsg{From: s.member(), To: vault, Mint: mint, Amount: amount}
	return s.broadcaster.Submit(ctx, []quorum.Msg{msg}, s.env.Signer)
}

// VaultAssets lists the funds of a vault.
type VaultAssets struct {
	Index   uint32
	Address quorum.Address
	Native  uint64
	Tokens  []bank.Coin
}

// Assets returns the funds of given vaults of the active multisig. The
// vaults are read concurrently.
func (s *Squad) Assets(ctx context.Context, vaultIndexes ...uint32) ([]VaultAssets, error) {
	addr, err := s.env.ActiveMultisig()
	if err != nil {
		return nil, err
	}
	res := make([]VaultAssets, len(vaultIndexes))
	grp, gctx := errgroup.WithContext(ctx)
	for i, vi := range vaultIndexes {
		i, vi := i, vi
		grp.Go(func() error {
			vault, err := quorum.DeriveVault(addr, vi)
			if err != nil {
				return err
			}
			coins, err := s.store.Balances(gctx, vault)
			if err != nil {
				return errors.Wrapf(err, "vault %d", vi)
			}
			res[i] = VaultAssets{Index: vi, Address: vault}
			for _, c := range coins {
				if c.IsNative() {
					res[i].Native = c.Amount
				} else {
					res[i].Tokens = append(res[i].Tokens, c)
				}
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// active returns the active multisig and its address.
func (s *Squad) active(ctx context.Context) (*multisig.Multisig, quorum.Address, error) {
	addr, err := s.env.ActiveMultisig()
	if err != nil {
		return nil, nil, err
	}
	ms, err := s.store.Fetch(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	return ms, addr, nil
}
