package multisig

import (
	"context"
	"fmt"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	cmn "github.com/tendermint/tendermint/libs/common"
)

// Transferer moves funds between accounts. It is used to pay out spending
// limits.
type Transferer interface {
	Transfer(db quorum.KVStore, from, to, mint quorum.Address, amount uint64) error
}

// RegisterRoutes will instantiate and register all handlers in this
// package. Inner messages of vault transactions are routed with given
// dispatcher.
func RegisterRoutes(r quorum.Registry, b Bucket, d quorum.Dispatcher, t Transferer) {
	r.Handle(pathCreateMultisigMsg, CreateMultisigHandler{b: b})
	r.Handle(pathCreateConfigTransactionMsg, CreateConfigTransactionHandler{b: b})
	r.Handle(pathCreateVaultTransactionMsg, CreateVaultTransactionHandler{b: b})
	r.Handle(pathCreateProposalMsg, CreateProposalHandler{b: b})
	r.Handle(pathApproveProposalMsg, VoteHandler{b: b})
	r.Handle(pathRejectProposalMsg, VoteHandler{b: b})
	r.Handle(pathCancelProposalMsg, VoteHandler{b: b})
	r.Handle(pathExecuteConfigMsg, ExecuteConfigHandler{b: b})
	r.Handle(pathExecuteVaultMsg, ExecuteVaultHandler{b: b, dispatcher: d})
	r.Handle(pathUseSpendingLimitMsg, UseSpendingLimitHandler{b: b, transferer: t})
}

func blockTime(ctx context.Context) (quorum.UnixTime, error) {
	now, ok := quorum.BlockTime(ctx)
	if !ok {
		return 0, errors.Wrap(errors.ErrHuman, "block time not in context")
	}
	return now, nil
}

func requireSigner(ctx context.Context, addr quorum.Address) error {
	if !quorum.HasSigner(ctx, addr) {
		return errors.Wrapf(errors.ErrUnauthorized, "%s did not sign", addr)
	}
	return nil
}

func tags(ms quorum.Address, action string) []cmn.KVPair {
	return []cmn.KVPair{
		{Key: []byte("multisig"), Value: []byte(ms.String())},
		{Key: []byte("action"), Value: []byte(action)},
	}
}

func indexTag(index uint64) cmn.KVPair {
	return cmn.KVPair{Key: []byte("index"), Value: []byte(fmt.Sprint(index))}
}

// CreateMultisigHandler creates a multisig.
type CreateMultisigHandler struct {
	b Bucket
}

var _ quorum.Handler = CreateMultisigHandler{}

func (h CreateMultisigHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	_, _, err := h.validate(ctx, db, msg)
	return err
}

func (h CreateMultisigHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, addr, err := h.validate(ctx, db, msg)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.b.Save(db, addr, m.multisig(now)); err != nil {
		return nil, err
	}
	return &quorum.DeliverResult{Data: addr, Tags: tags(addr, "create")}, nil
}

// validate does all common pre-processing between Check and Deliver.
func (h CreateMultisigHandler) validate(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*CreateMultisigMsg, quorum.Address, error) {
	m, ok := msg.(*CreateMultisigMsg)
	if !ok {
		return nil, nil, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	if err := requireSigner(ctx, m.CreateKey); err != nil {
		return nil, nil, errors.Wrap(err, "create key")
	}
	addr, err := quorum.DeriveMultisig(m.CreateKey)
	if err != nil {
		return nil, nil, err
	}
	if h.b.Has(db, addr) {
		return nil, nil, errors.Wrapf(errors.ErrDuplicate, "multisig %s", addr)
	}
	return m, addr, nil
}

// checkNewIndex ensures a transaction is created with the next free index.
// Two members creating a transaction at the same time race for the index,
// the loser gets ErrIndexConflict and must read the multisig again.
func checkNewIndex(ms *Multisig, index uint64) error {
	if next := ms.NextTransactionIndex(); index != next {
		return errors.Wrapf(errors.ErrIndexConflict, "want index %d, got %d", next, index)
	}
	return nil
}

// CreateConfigTransactionHandler creates a config transaction.
type CreateConfigTransactionHandler struct {
	b Bucket
}

var _ quorum.Handler = CreateConfigTransactionHandler{}

func (h CreateConfigTransactionHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	_, _, err := h.validate(ctx, db, msg)
	return err
}

func (h CreateConfigTransactionHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, ms, err := h.validate(ctx, db, msg)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	memo := m.Memo
	if memo == "" {
		memo = fmt.Sprintf("%s by %s", DescribeActions(m.Actions), m.Creator)
	}
	tx := &Transaction{
		Multisig:  m.Multisig,
		Index:     m.Index,
		Creator:   m.Creator,
		Kind:      KindConfig,
		Memo:      memo,
		Actions:   m.Actions,
		CreatedAt: now,
	}
	return createTransaction(h.b, db, ms, tx)
}

func (h CreateConfigTransactionHandler) validate(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*CreateConfigTransactionMsg, *Multisig, error) {
	m, ok := msg.(*CreateConfigTransactionMsg)
	if !ok {
		return nil, nil, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	if err := requireSigner(ctx, m.Creator); err != nil {
		return nil, nil, err
	}
	ms, err := h.b.Multisig(db, m.Multisig)
	if err != nil {
		return nil, nil, err
	}
	if err := ms.Authorize(m.Creator, PermInitiate); err != nil {
		return nil, nil, err
	}
	if err := checkNewIndex(ms, m.Index); err != nil {
		return nil, nil, err
	}
	// A batch that would leave the multisig inconsistent given the
	// current configuration is refused right away. It is checked again
	// on execution, against the configuration of that time.
	if _, err := ApplyActions(ms, m.Actions); err != nil {
		return nil, nil, err
	}
	return m, ms, nil
}

// CreateVaultTransactionHandler creates a vault transaction.
type CreateVaultTransactionHandler struct {
	b Bucket
}

var _ quorum.Handler = CreateVaultTransactionHandler{}

func (h CreateVaultTransactionHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	_, _, err := h.validate(ctx, db, msg)
	return err
}

func (h CreateVaultTransactionHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, ms, err := h.validate(ctx, db, msg)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	tx := &Transaction{
		Multisig:         m.Multisig,
		Index:            m.Index,
		Creator:          m.Creator,
		Kind:             KindVault,
		Memo:             m.Memo,
		VaultIndex:       m.VaultIndex,
		Msgs:             m.Msgs,
		EphemeralSigners: m.EphemeralSigners,
		CreatedAt:        now,
	}
	return createTransaction(h.b, db, ms, tx)
}

func (h CreateVaultTransactionHandler) validate(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*CreateVaultTransactionMsg, *Multisig, error) {
	m, ok := msg.(*CreateVaultTransactionMsg)
	if !ok {
		return nil, nil, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	if err := requireSigner(ctx, m.Creator); err != nil {
		return nil, nil, err
	}
	ms, err := h.b.Multisig(db, m.Multisig)
	if err != nil {
		return nil, nil, err
	}
	if err := ms.Authorize(m.Creator, PermInitiate); err != nil {
		return nil, nil, err
	}
	if err := checkNewIndex(ms, m.Index); err != nil {
		return nil, nil, err
	}
	return m, ms, nil
}

func createTransaction(b Bucket, db quorum.KVStore, ms *Multisig, tx *Transaction) (*quorum.DeliverResult, error) {
	addr, err := quorum.DeriveTransaction(tx.Multisig, tx.Index)
	if err != nil {
		return nil, err
	}
	if err := b.Save(db, addr, tx); err != nil {
		return nil, err
	}
	ms.TransactionIndex = tx.Index
	if err := b.Save(db, tx.Multisig, ms); err != nil {
		return nil, err
	}
	t := append(tags(tx.Multisig, "create_"+tx.Kind.String()+"_tx"), indexTag(tx.Index))
	return &quorum.DeliverResult{Data: addr, Tags: t}, nil
}

// CreateProposalHandler opens voting on a transaction.
type CreateProposalHandler struct {
	b Bucket
}

var _ quorum.Handler = CreateProposalHandler{}

func (h CreateProposalHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	_, _, err := h.validate(ctx, db, msg)
	return err
}

func (h CreateProposalHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, ms, err := h.validate(ctx, db, msg)
	if err != nil {
		return nil, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, err
	}
	p, err := NewProposal(ms, m.Multisig, m.Index, m.Creator, now)
	if err != nil {
		return nil, err
	}
	addr, err := quorum.DeriveProposal(m.Multisig, m.Index)
	if err != nil {
		return nil, err
	}
	if err := h.b.Save(db, addr, p); err != nil {
		return nil, err
	}
	t := append(tags(m.Multisig, "create_proposal"), indexTag(m.Index))
	return &quorum.DeliverResult{Data: addr, Tags: t}, nil
}

func (h CreateProposalHandler) validate(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*CreateProposalMsg, *Multisig, error) {
	m, ok := msg.(*CreateProposalMsg)
	if !ok {
		return nil, nil, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, nil, err
	}
	if err := requireSigner(ctx, m.Creator); err != nil {
		return nil, nil, err
	}
	ms, err := h.b.Multisig(db, m.Multisig)
	if err != nil {
		return nil, nil, err
	}
	if err := ms.Authorize(m.Creator, PermInitiate); err != nil {
		return nil, nil, err
	}
	if _, err := h.b.Transaction(db, m.Multisig, m.Index); err != nil {
		return nil, nil, err
	}
	if _, err := h.b.Proposal(db, m.Multisig, m.Index); err == nil {
		return nil, nil, errors.Wrapf(errors.ErrDuplicate, "proposal %d", m.Index)
	} else if !errors.ErrNotFound.Is(err) {
		return nil, nil, err
	}
	return m, ms, nil
}

// VoteHandler processes approvals, rejections and cancellations.
type VoteHandler struct {
	b Bucket
}

var _ quorum.Handler = VoteHandler{}

func (h VoteHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	_, _, err := h.vote(ctx, db, msg)
	return err
}

func (h VoteHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	p, action, err := h.vote(ctx, db, msg)
	if err != nil {
		return nil, err
	}
	addr, err := quorum.DeriveProposal(p.Multisig, p.TransactionIndex)
	if err != nil {
		return nil, err
	}
	if err := h.b.Save(db, addr, p); err != nil {
		return nil, err
	}
	t := append(tags(p.Multisig, action), indexTag(p.TransactionIndex),
		cmn.KVPair{Key: []byte("status"), Value: []byte(p.Status.String())})
	return &quorum.DeliverResult{Data: addr, Tags: t}, nil
}

// vote loads the proposal and counts the vote on it. The returned proposal
// is not persisted.
func (h VoteHandler) vote(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*Proposal, string, error) {
	if err := msg.Validate(); err != nil {
		return nil, "", err
	}
	var (
		multisig quorum.Address
		index    uint64
		member   quorum.Address
		action   string
		count    func(*Proposal, *Multisig, quorum.Address, quorum.UnixTime) error
	)
	switch m := msg.(type) {
	case *ApproveProposalMsg:
		multisig, index, member, action, count = m.Multisig, m.Index, m.Member, "approve", (*Proposal).Approve
	case *RejectProposalMsg:
		multisig, index, member, action, count = m.Multisig, m.Index, m.Member, "reject", (*Proposal).Reject
	case *CancelProposalMsg:
		multisig, index, member, action, count = m.Multisig, m.Index, m.Member, "cancel", (*Proposal).Cancel
	default:
		return nil, "", errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}

	if err := requireSigner(ctx, member); err != nil {
		return nil, "", err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, "", err
	}
	ms, err := h.b.Multisig(db, multisig)
	if err != nil {
		return nil, "", err
	}
	p, err := h.b.Proposal(db, multisig, index)
	if err != nil {
		return nil, "", err
	}
	if err := count(p, ms, member, now); err != nil {
		return nil, "", err
	}
	return p, action, nil
}

// executable loads everything needed to execute a transaction and ensures
// the member may execute it now.
func executable(ctx context.Context, b Bucket, db quorum.KVStore, multisig quorum.Address, index uint64, member quorum.Address, kind TransactionKind) (*Multisig, *Transaction, *Proposal, quorum.UnixTime, error) {
	if err := requireSigner(ctx, member); err != nil {
		return nil, nil, nil, 0, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	ms, err := b.Multisig(db, multisig)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	tx, err := b.Transaction(db, multisig, index)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if tx.Kind != kind {
		return nil, nil, nil, 0, errors.Wrapf(errors.ErrInvalidType, "transaction %d is a %s transaction", index, tx.Kind)
	}
	p, err := b.Proposal(db, multisig, index)
	if err != nil {
		return nil, nil, nil, 0, err
	}
	if err := p.CanExecute(ms, member, now); err != nil {
		return nil, nil, nil, 0, err
	}
	return ms, tx, p, now, nil
}

// ExecuteConfigHandler applies the actions of an approved config
// transaction. The new configuration, the spending limit changes and the
// executed proposal are written together, and every other pending
// proposal becomes stale.
type ExecuteConfigHandler struct {
	b Bucket
}

var _ quorum.Handler = ExecuteConfigHandler{}

func (h ExecuteConfigHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	m, ok := msg.(*ExecuteConfigTransactionMsg)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	ms, tx, _, _, err := executable(ctx, h.b, db, m.Multisig, m.Index, m.Member, KindConfig)
	if err != nil {
		return err
	}
	_, err = ApplyActions(ms, tx.Actions)
	return err
}

func (h ExecuteConfigHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, ok := msg.(*ExecuteConfigTransactionMsg)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	ms, tx, p, now, err := executable(ctx, h.b, db, m.Multisig, m.Index, m.Member, KindConfig)
	if err != nil {
		return nil, err
	}
	next, err := ApplyActions(ms, tx.Actions)
	if err != nil {
		return nil, err
	}
	for _, a := range tx.Actions {
		if err := h.applyRecords(db, m.Multisig, a, now); err != nil {
			return nil, err
		}
	}
	if err := p.MarkExecuted(ms, m.Member, now); err != nil {
		return nil, err
	}
	next.InvalidatePriorTransactions()
	if err := h.b.Save(db, m.Multisig, next); err != nil {
		return nil, err
	}
	addr, err := quorum.DeriveProposal(m.Multisig, m.Index)
	if err != nil {
		return nil, err
	}
	if err := h.b.Save(db, addr, p); err != nil {
		return nil, err
	}
	t := append(tags(m.Multisig, "execute_config_tx"), indexTag(m.Index))
	return &quorum.DeliverResult{Data: addr, Tags: t}, nil
}

// applyRecords performs the effects of an action on records other than the
// multisig itself.
func (h ExecuteConfigHandler) applyRecords(db quorum.KVStore, multisig quorum.Address, a Action, now quorum.UnixTime) error {
	switch a := a.(type) {
	case AddSpendingLimit:
		addr, err := quorum.DeriveSpendingLimit(multisig, a.CreateKey)
		if err != nil {
			return err
		}
		if h.b.Has(db, addr) {
			return errors.Wrapf(errors.ErrDuplicate, "spending limit %s", addr)
		}
		return h.b.Save(db, addr, a.limit(multisig, now))
	case RemoveSpendingLimit:
		limit, err := h.b.SpendingLimit(db, a.SpendingLimit)
		if err != nil {
			return err
		}
		if !limit.Multisig.Equals(multisig) {
			return errors.Wrapf(errors.ErrPermissionDenied, "spending limit %s belongs to another multisig", a.SpendingLimit)
		}
		return h.b.Delete(db, a.SpendingLimit)
	}
	return nil
}

// ExecuteVaultHandler executes the messages of an approved vault
// transaction, with the vault and the ephemeral signers as the only
// signers.
type ExecuteVaultHandler struct {
	b          Bucket
	dispatcher quorum.Dispatcher
}

var _ quorum.Handler = ExecuteVaultHandler{}

func (h ExecuteVaultHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	m, ok := msg.(*ExecuteVaultTransactionMsg)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return err
	}
	_, _, _, _, err := executable(ctx, h.b, db, m.Multisig, m.Index, m.Member, KindVault)
	return err
}

func (h ExecuteVaultHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, ok := msg.(*ExecuteVaultTransactionMsg)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	ms, tx, p, now, err := executable(ctx, h.b, db, m.Multisig, m.Index, m.Member, KindVault)
	if err != nil {
		return nil, err
	}
	if err := p.MarkExecuted(ms, m.Member, now); err != nil {
		return nil, err
	}
	// Saved first, so that an inner message executing the same
	// transaction finds it executed.
	addr, err := quorum.DeriveProposal(m.Multisig, m.Index)
	if err != nil {
		return nil, err
	}
	if err := h.b.Save(db, addr, p); err != nil {
		return nil, err
	}

	signers, err := tx.Signers()
	if err != nil {
		return nil, err
	}
	t := append(tags(m.Multisig, "execute_vault_tx"), indexTag(m.Index))
	vaultCtx := quorum.WithSigners(ctx, signers...)
	for i, inner := range tx.Msgs {
		res, err := h.dispatcher.Dispatch(vaultCtx, db, inner)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d (%s)", i, inner.Path())
		}
		if res != nil {
			t = append(t, res.Tags...)
		}
	}
	return &quorum.DeliverResult{Data: addr, Tags: t}, nil
}

// UseSpendingLimitHandler pays out from a vault within a spending limit.
type UseSpendingLimitHandler struct {
	b          Bucket
	transferer Transferer
}

var _ quorum.Handler = UseSpendingLimitHandler{}

func (h UseSpendingLimitHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	_, _, _, err := h.validate(ctx, db, msg)
	return err
}

func (h UseSpendingLimitHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, limit, now, err := h.validate(ctx, db, msg)
	if err != nil {
		return nil, err
	}
	if err := limit.Use(m.Amount, now); err != nil {
		return nil, err
	}
	vault, err := quorum.DeriveVault(limit.Multisig, limit.VaultIndex)
	if err != nil {
		return nil, err
	}
	if err := h.transferer.Transfer(db, vault, m.Destination, limit.Mint, m.Amount); err != nil {
		return nil, err
	}
	if err := h.b.Save(db, m.SpendingLimit, limit); err != nil {
		return nil, err
	}
	return &quorum.DeliverResult{Data: m.SpendingLimit, Tags: tags(limit.Multisig, "use_spending_limit")}, nil
}

func (h UseSpendingLimitHandler) validate(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*UseSpendingLimitMsg, *SpendingLimit, quorum.UnixTime, error) {
	m, ok := msg.(*UseSpendingLimitMsg)
	if !ok {
		return nil, nil, 0, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, nil, 0, err
	}
	if err := requireSigner(ctx, m.Member); err != nil {
		return nil, nil, 0, err
	}
	now, err := blockTime(ctx)
	if err != nil {
		return nil, nil, 0, err
	}
	limit, err := h.b.SpendingLimit(db, m.SpendingLimit)
	if err != nil {
		return nil, nil, 0, err
	}
	if !limit.HasMember(m.Member) {
		return nil, nil, 0, errors.Wrapf(errors.ErrPermissionDenied, "%s cannot use this spending limit", m.Member)
	}
	if !limit.AllowsDestination(m.Destination) {
		return nil, nil, 0, errors.Wrapf(errors.ErrPermissionDenied, "destination %s not allowed", m.Destination)
	}
	return m, limit, now, nil
}
