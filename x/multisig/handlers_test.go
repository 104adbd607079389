package multisig

import (
	"context"
	"testing"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
	"github.com/iov-one/quorum/store"
	"github.com/stretchr/testify/require"
	amino "github.com/tendermint/go-amino"
)

// recordMsg is executed by vault transactions in tests. Its handler keeps
// the signers it was delivered with.
type recordMsg struct {
	Note string
}

func (recordMsg) Path() string    { return "test/record" }
func (recordMsg) Validate() error { return nil }

type recordHandler struct {
	seen *[][]quorum.Address
}

func (recordHandler) Check(context.Context, quorum.KVStore, quorum.Msg) error { return nil }

func (h recordHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	*h.seen = append(*h.seen, quorum.Signers(ctx))
	return &quorum.DeliverResult{}, nil
}

type testRouter map[string]quorum.Handler

func (r testRouter) Handle(path string, h quorum.Handler) { r[path] = h }

func (r testRouter) Dispatch(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	h, ok := r[msg.Path()]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "path %s", msg.Path())
	}
	if err := h.Check(ctx, db, msg); err != nil {
		return nil, err
	}
	return h.Deliver(ctx, db, msg)
}

type transfer struct {
	From, To, Mint quorum.Address
	Amount         uint64
}

type fakeTransferer struct {
	transfers []transfer
}

func (f *fakeTransferer) Transfer(db quorum.KVStore, from, to, mint quorum.Address, amount uint64) error {
	f.transfers = append(f.transfers, transfer{From: from, To: to, Mint: mint, Amount: amount})
	return nil
}

// harness runs messages through the handlers of this package, the same way
// the application does.
type harness struct {
	t       *testing.T
	db      quorum.KVStore
	router  testRouter
	now     quorum.UnixTime
	seen    [][]quorum.Address
	bank    *fakeTransferer
	bucket  Bucket
	members []quorum.Address
	ms      quorum.Address
}

func newHarness(t *testing.T) *harness {
	cdc := amino.NewCodec()
	cdc.RegisterInterface((*quorum.Msg)(nil), nil)
	RegisterCodec(cdc)
	cdc.RegisterConcrete(&recordMsg{}, "test/recordMsg", nil)

	h := &harness{
		t:      t,
		db:     store.MemStore(),
		router: testRouter{},
		now:    1000,
		bank:   &fakeTransferer{},
		bucket: NewBucket(cdc),
	}
	RegisterRoutes(h.router, h.bucket, h.router, h.bank)
	h.router.Handle("test/record", recordHandler{seen: &h.seen})
	return h
}

func (h *harness) run(msg quorum.Msg, signers ...quorum.Address) (*quorum.DeliverResult, error) {
	ctx := quorum.WithBlockInfo(context.Background(), quorum.BlockInfo{
		ChainID: "test-chain",
		Height:  1,
		Time:    h.now,
	})
	ctx = quorum.WithSigners(ctx, signers...)
	return h.router.Dispatch(ctx, h.db, msg)
}

func (h *harness) mustRun(msg quorum.Msg, signers ...quorum.Address) *quorum.DeliverResult {
	h.t.Helper()
	res, err := h.run(msg, signers...)
	require.NoError(h.t, err)
	return res
}

// createMultisig creates a multisig of three members with all permissions
// and threshold two.
func (h *harness) createMultisig() {
	h.t.Helper()
	createKey := quorumtest.NewAddress()
	h.members = []quorum.Address{quorumtest.NewAddress(), quorumtest.NewAddress(), quorumtest.NewAddress()}
	msg := &CreateMultisigMsg{
		CreateKey: createKey,
		Threshold: 2,
	}
	for _, m := range h.members {
		msg.Members = append(msg.Members, Member{Key: m, Permissions: PermAll})
	}
	res := h.mustRun(msg, createKey)
	want, err := quorum.DeriveMultisig(createKey)
	require.NoError(h.t, err)
	require.Equal(h.t, []byte(want), res.Data)
	h.ms = want

	_, err = h.run(msg, createKey)
	assert.IsErr(h.t, errors.ErrDuplicate, err)
}

func (h *harness) multisig() *Multisig {
	h.t.Helper()
	ms, err := h.bucket.Multisig(h.db, h.ms)
	require.NoError(h.t, err)
	return ms
}

func (h *harness) proposal(index uint64) *Proposal {
	h.t.Helper()
	p, err := h.bucket.Proposal(h.db, h.ms, index)
	require.NoError(h.t, err)
	return p
}

// approve creates the proposal for given index and approves it by the
// first n members.
func (h *harness) approve(index uint64, n int) {
	h.t.Helper()
	h.mustRun(&CreateProposalMsg{Multisig: h.ms, Index: index, Creator: h.members[0]}, h.members[0])
	for _, m := range h.members[:n] {
		h.mustRun(&ApproveProposalMsg{Multisig: h.ms, Index: index, Member: m}, m)
	}
}

func TestVaultTransactionFlow(t *testing.T) {
	h := newHarness(t)
	h.createMultisig()
	a, b, c := h.members[0], h.members[1], h.members[2]

	create := &CreateVaultTransactionMsg{
		Multisig: h.ms,
		Index:    1,
		Creator:  a,
		Msgs:     []quorum.Msg{&recordMsg{Note: "pay"}},
	}
	_, err := h.run(create, b)
	assert.IsErr(t, errors.ErrUnauthorized, err)
	h.mustRun(create, a)

	// The same index cannot be used twice.
	_, err = h.run(create, a)
	assert.IsErr(t, errors.ErrIndexConflict, err)
	assert.Equal(t, uint64(1), h.multisig().TransactionIndex)

	tx, err := h.bucket.Transaction(h.db, h.ms, 1)
	require.NoError(t, err)
	assert.Equal(t, KindVault, tx.Kind)
	assert.Equal(t, 1, len(tx.Msgs))

	execute := &ExecuteVaultTransactionMsg{Multisig: h.ms, Index: 1, Member: c}
	_, err = h.run(execute, c)
	assert.IsErr(t, errors.ErrNotFound, err)

	h.mustRun(&CreateProposalMsg{Multisig: h.ms, Index: 1, Creator: a}, a)
	_, err = h.run(&CreateProposalMsg{Multisig: h.ms, Index: 1, Creator: a}, a)
	assert.IsErr(t, errors.ErrDuplicate, err)

	h.mustRun(&ApproveProposalMsg{Multisig: h.ms, Index: 1, Member: a}, a)
	_, err = h.run(execute, c)
	assert.IsErr(t, errors.ErrThresholdNotMet, err)

	h.mustRun(&ApproveProposalMsg{Multisig: h.ms, Index: 1, Member: b}, b)
	assert.Equal(t, ProposalApproved, h.proposal(1).Status)

	h.mustRun(execute, c)
	assert.Equal(t, ProposalExecuted, h.proposal(1).Status)

	vault, err := quorum.DeriveVault(h.ms, 0)
	require.NoError(t, err)
	require.Len(t, h.seen, 1)
	// The inner message is authorized by the vault only.
	assert.Equal(t, []quorum.Address{vault}, h.seen[0])

	_, err = h.run(execute, c)
	assert.IsErr(t, errors.ErrTerminalState, err)
	assert.Equal(t, 1, len(h.seen))
}

func TestExecuteConfigTransaction(t *testing.T) {
	h := newHarness(t)
	h.createMultisig()
	a, b, c := h.members[0], h.members[1], h.members[2]

	// A batch that leaves the threshold above the member count is
	// refused when created.
	_, err := h.run(&CreateConfigTransactionMsg{
		Multisig: h.ms,
		Index:    1,
		Creator:  a,
		Actions:  []Action{ChangeThreshold{Threshold: 4}},
	}, a)
	assert.IsErr(t, errors.ErrInvalidInput, err)

	h.mustRun(&CreateConfigTransactionMsg{
		Multisig: h.ms,
		Index:    1,
		Creator:  a,
		Actions:  []Action{ChangeThreshold{Threshold: 3}},
	}, a)
	tx, err := h.bucket.Transaction(h.db, h.ms, 1)
	require.NoError(t, err)
	require.Equal(t, "ChangeThreshold by "+a.String(), tx.Memo)

	// A vault transaction created later is pending too.
	h.mustRun(&CreateVaultTransactionMsg{
		Multisig: h.ms,
		Index:    2,
		Creator:  b,
		Msgs:     []quorum.Msg{&recordMsg{}},
	}, b)
	h.approve(2, 1)
	h.approve(1, 2)

	_, err = h.run(&ExecuteVaultTransactionMsg{Multisig: h.ms, Index: 1, Member: c}, c)
	assert.IsErr(t, errors.ErrInvalidType, err)

	h.mustRun(&ExecuteConfigTransactionMsg{Multisig: h.ms, Index: 1, Member: c}, c)
	ms := h.multisig()
	assert.Equal(t, uint32(3), ms.Threshold)
	assert.Equal(t, uint64(2), ms.StaleTransactionIndex)
	assert.Equal(t, ProposalExecuted, h.proposal(1).EffectiveStatus(ms))

	p := h.proposal(2)
	assert.Equal(t, ProposalActive, p.Status)
	assert.Equal(t, ProposalStale, p.EffectiveStatus(ms))
	_, err = h.run(&ApproveProposalMsg{Multisig: h.ms, Index: 2, Member: b}, b)
	assert.IsErr(t, errors.ErrProposalStale, err)

	// New transactions continue the sequence and are not stale.
	h.mustRun(&CreateVaultTransactionMsg{
		Multisig: h.ms,
		Index:    3,
		Creator:  b,
		Msgs:     []quorum.Msg{&recordMsg{}},
	}, b)
	h.approve(3, 2)
	assert.Equal(t, ProposalActive, h.proposal(3).Status)
	h.mustRun(&ApproveProposalMsg{Multisig: h.ms, Index: 3, Member: c}, c)
	assert.Equal(t, ProposalApproved, h.proposal(3).Status)
}

func TestExecuteAfterCancelledApproval(t *testing.T) {
	h := newHarness(t)
	h.createMultisig()
	a, b, c := h.members[0], h.members[1], h.members[2]

	h.mustRun(&CreateVaultTransactionMsg{
		Multisig: h.ms,
		Index:    1,
		Creator:  a,
		Msgs:     []quorum.Msg{&recordMsg{Note: "pay"}},
	}, a)
	h.approve(1, 2)
	assert.Equal(t, ProposalApproved, h.proposal(1).Status)

	h.mustRun(&CancelProposalMsg{Multisig: h.ms, Index: 1, Member: b}, b)
	p := h.proposal(1)
	assert.Equal(t, ProposalActive, p.Status)
	assert.Equal(t, []quorum.Address{a}, p.ApprovedBy)

	execute := &ExecuteVaultTransactionMsg{Multisig: h.ms, Index: 1, Member: c}
	_, err := h.run(execute, c)
	assert.IsErr(t, errors.ErrThresholdNotMet, err)
	assert.Equal(t, 0, len(h.seen))

	// A new approval crosses the threshold again.
	h.mustRun(&ApproveProposalMsg{Multisig: h.ms, Index: 1, Member: c}, c)
	h.mustRun(execute, c)
	assert.Equal(t, ProposalExecuted, h.proposal(1).Status)
	assert.Equal(t, 1, len(h.seen))
}

func TestVaultTransactionCannotExecuteItself(t *testing.T) {
	h := newHarness(t)
	createKey := quorumtest.NewAddress()
	ms, err := quorum.DeriveMultisig(createKey)
	require.NoError(t, err)
	vault, err := quorum.DeriveVault(ms, 0)
	require.NoError(t, err)
	a, b := quorumtest.NewAddress(), quorumtest.NewAddress()

	// The vault itself is an executing member.
	members := []Member{
		{Key: a, Permissions: PermAll},
		{Key: b, Permissions: PermAll},
		{Key: vault, Permissions: PermExecute},
	}
	h.mustRun(&CreateMultisigMsg{CreateKey: createKey, Members: members, Threshold: 2}, createKey)
	h.ms = ms
	h.members = []quorum.Address{a, b}

	h.mustRun(&CreateVaultTransactionMsg{
		Multisig: ms,
		Index:    1,
		Creator:  a,
		Msgs: []quorum.Msg{
			&recordMsg{Note: "pay"},
			&ExecuteVaultTransactionMsg{Multisig: ms, Index: 1, Member: vault},
		},
	}, a)
	h.approve(1, 2)

	_, err = h.run(&ExecuteVaultTransactionMsg{Multisig: ms, Index: 1, Member: a}, a)
	assert.IsErr(t, errors.ErrTerminalState, err)
	assert.Equal(t, 1, len(h.seen))
}

func TestRejectAndCancelHandlers(t *testing.T) {
	h := newHarness(t)
	h.createMultisig()
	a, b, c := h.members[0], h.members[1], h.members[2]

	for i := uint64(1); i <= 2; i++ {
		h.mustRun(&CreateVaultTransactionMsg{
			Multisig: h.ms,
			Index:    i,
			Creator:  a,
			Msgs:     []quorum.Msg{&recordMsg{}},
		}, a)
		h.mustRun(&CreateProposalMsg{Multisig: h.ms, Index: i, Creator: a}, a)
	}

	h.mustRun(&RejectProposalMsg{Multisig: h.ms, Index: 1, Member: a}, a)
	_, err := h.run(&RejectProposalMsg{Multisig: h.ms, Index: 1, Member: a}, a)
	assert.IsErr(t, errors.ErrDuplicateVote, err)
	h.mustRun(&RejectProposalMsg{Multisig: h.ms, Index: 1, Member: b}, b)
	assert.Equal(t, ProposalRejected, h.proposal(1).Status)

	h.mustRun(&CancelProposalMsg{Multisig: h.ms, Index: 2, Member: b}, b)
	h.mustRun(&CancelProposalMsg{Multisig: h.ms, Index: 2, Member: c}, c)
	assert.Equal(t, ProposalCancelled, h.proposal(2).Status)

	outsider := quorumtest.NewAddress()
	_, err = h.run(&ApproveProposalMsg{Multisig: h.ms, Index: 2, Member: outsider}, outsider)
	assert.IsErr(t, errors.ErrPermissionDenied, err)
}

func TestSpendingLimitHandlers(t *testing.T) {
	h := newHarness(t)
	h.createMultisig()
	a, b, c := h.members[0], h.members[1], h.members[2]
	createKey := quorumtest.NewAddress()
	dest := quorumtest.NewAddress()

	h.mustRun(&CreateConfigTransactionMsg{
		Multisig: h.ms,
		Index:    1,
		Creator:  a,
		Actions: []Action{AddSpendingLimit{
			CreateKey: createKey,
			Amount:    100,
			Period:    PeriodDay,
			Members:   []quorum.Address{a},
		}},
	}, a)
	h.approve(1, 2)
	h.mustRun(&ExecuteConfigTransactionMsg{Multisig: h.ms, Index: 1, Member: c}, c)

	limitAddr, err := quorum.DeriveSpendingLimit(h.ms, createKey)
	require.NoError(t, err)
	limit, err := h.bucket.SpendingLimit(h.db, limitAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), limit.Remaining)
	assert.Equal(t, h.now, limit.LastReset)

	use := &UseSpendingLimitMsg{SpendingLimit: limitAddr, Member: a, Destination: dest, Amount: 60}
	h.mustRun(use, a)
	_, err = h.run(use, a)
	assert.IsErr(t, errors.ErrInsufficientAmount, err)

	_, err = h.run(&UseSpendingLimitMsg{SpendingLimit: limitAddr, Member: b, Destination: dest, Amount: 1}, b)
	assert.IsErr(t, errors.ErrPermissionDenied, err)

	vault, err := quorum.DeriveVault(h.ms, 0)
	require.NoError(t, err)
	require.Len(t, h.bank.transfers, 1)
	got := h.bank.transfers[0]
	assert.Equal(t, vault, got.From)
	assert.Equal(t, dest, got.To)
	assert.Equal(t, 0, len(got.Mint))
	assert.Equal(t, uint64(60), got.Amount)

	// Next day the limit is renewed.
	h.now += 24 * 60 * 60
	h.mustRun(use, a)
	assert.Equal(t, 2, len(h.bank.transfers))

	h.mustRun(&CreateConfigTransactionMsg{
		Multisig: h.ms,
		Index:    2,
		Creator:  a,
		Actions:  []Action{RemoveSpendingLimit{SpendingLimit: limitAddr}},
	}, a)
	h.approve(2, 2)
	h.mustRun(&ExecuteConfigTransactionMsg{Multisig: h.ms, Index: 2, Member: c}, c)
	_, err = h.run(use, a)
	assert.IsErr(t, errors.ErrNotFound, err)
}
