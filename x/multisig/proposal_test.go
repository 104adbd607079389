package multisig

import (
	"testing"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
)

// newTestMultisig returns a multisig of n members with all permissions and
// the addresses of the members, in the order they are stored.
func newTestMultisig(t testing.TB, n int, threshold, timeLock uint32) (*Multisig, []quorum.Address) {
	t.Helper()
	members := make([]Member, n)
	for i := range members {
		members[i] = Member{Key: quorumtest.NewAddress(), Permissions: PermAll}
	}
	SortMembers(members)
	ms := &Multisig{
		CreateKey: quorumtest.NewAddress(),
		Members:   members,
		Threshold: threshold,
		TimeLock:  timeLock,
	}
	assert.Nil(t, ms.Validate())
	keys := make([]quorum.Address, n)
	for i, m := range members {
		keys[i] = m.Key
	}
	return ms, keys
}

// newTestProposal creates a transaction slot on the multisig and returns
// an active proposal for it.
func newTestProposal(t testing.TB, ms *Multisig, creator quorum.Address, now quorum.UnixTime) *Proposal {
	t.Helper()
	ms.TransactionIndex++
	p, err := NewProposal(ms, quorumtest.NewAddress(), ms.TransactionIndex, creator, now)
	assert.Nil(t, err)
	return p
}

func TestApproveReachesThreshold(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 0)
	a, b, c := keys[0], keys[1], keys[2]
	p := newTestProposal(t, ms, a, 100)

	assert.Nil(t, p.Approve(ms, a, 101))
	assert.Equal(t, ProposalActive, p.Status)
	assert.Equal(t, quorum.UnixTime(0), p.ThresholdCrossedAt)

	assert.Nil(t, p.Approve(ms, b, 102))
	assert.Equal(t, ProposalApproved, p.Status)
	assert.Equal(t, quorum.UnixTime(102), p.ThresholdCrossedAt)

	// No time lock, execution is possible immediately.
	assert.Nil(t, p.MarkExecuted(ms, c, 102))
	assert.Equal(t, ProposalExecuted, p.Status)

	// Replaying the execution fails cleanly.
	assert.IsErr(t, errors.ErrTerminalState, p.MarkExecuted(ms, c, 103))
}

func TestDuplicateApproval(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 0)
	p := newTestProposal(t, ms, keys[0], 100)

	assert.Nil(t, p.Approve(ms, keys[0], 101))
	assert.IsErr(t, errors.ErrDuplicateVote, p.Approve(ms, keys[0], 102))
	assert.Equal(t, 1, len(p.ApprovedBy))
	assert.Equal(t, ProposalActive, p.Status)

	// A member who approved cannot reject either.
	assert.IsErr(t, errors.ErrDuplicateVote, p.Reject(ms, keys[0], 103))
}

func TestRejectionQuorum(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 0)
	a, b, c := keys[0], keys[1], keys[2]
	p := newTestProposal(t, ms, a, 100)

	assert.Equal(t, 2, ms.RejectionQuorum())

	assert.Nil(t, p.Reject(ms, a, 101))
	assert.Equal(t, ProposalActive, p.Status)
	assert.Nil(t, p.Reject(ms, b, 102))
	assert.Equal(t, ProposalRejected, p.Status)

	assert.IsErr(t, errors.ErrTerminalState, p.Approve(ms, c, 103))
	assert.IsErr(t, errors.ErrTerminalState, p.MarkExecuted(ms, c, 103))
}

func TestQuorumExclusivity(t *testing.T) {
	// For every threshold of a five member multisig, vote until one of the
	// outcomes is reached and make sure the other one is out of reach.
	for threshold := uint32(1); threshold <= 5; threshold++ {
		ms, keys := newTestMultisig(t, 5, threshold, 0)
		for approvals := 0; approvals <= 5; approvals++ {
			p := newTestProposal(t, ms, keys[0], 1)
			var err error
			for i, k := range keys {
				if p.Status != ProposalActive {
					break
				}
				if i < approvals {
					err = p.Approve(ms, k, 2)
				} else {
					err = p.Reject(ms, k, 2)
				}
				assert.Nil(t, err)
			}
			approved := len(p.ApprovedBy) >= int(ms.Threshold)
			rejected := len(p.RejectedBy) >= ms.RejectionQuorum()
			if approved == rejected {
				t.Fatalf("threshold %d, approvals %d: approved=%v rejected=%v", threshold, approvals, approved, rejected)
			}
			if approved && p.Status != ProposalApproved {
				t.Fatalf("threshold %d, approvals %d: want approved, got %s", threshold, approvals, p.Status)
			}
			if rejected && p.Status != ProposalRejected {
				t.Fatalf("threshold %d, approvals %d: want rejected, got %s", threshold, approvals, p.Status)
			}
		}
	}
}

func TestTimeLock(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 600)
	p := newTestProposal(t, ms, keys[0], 1000)

	assert.IsErr(t, errors.ErrThresholdNotMet, p.CanExecute(ms, keys[2], 1000))

	assert.Nil(t, p.Approve(ms, keys[0], 1000))
	assert.Nil(t, p.Approve(ms, keys[1], 1000))
	assert.Equal(t, ProposalApproved, p.Status)
	assert.Equal(t, quorum.UnixTime(1600), p.ExecutableAt(ms))

	assert.IsErr(t, errors.ErrTimeLockNotElapsed, p.MarkExecuted(ms, keys[2], 1599))
	assert.Equal(t, ProposalApproved, p.Status)
	assert.Nil(t, p.MarkExecuted(ms, keys[2], 1600))
	assert.Equal(t, ProposalExecuted, p.Status)
}

func TestStalenessDominates(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 0)

	// Proposals 1 to 3 are pending, 3 has one approval.
	newTestProposal(t, ms, keys[0], 1)
	newTestProposal(t, ms, keys[0], 1)
	p := newTestProposal(t, ms, keys[0], 1)
	assert.Nil(t, p.Approve(ms, keys[0], 2))

	approved := newTestProposal(t, ms, keys[0], 1)
	assert.Nil(t, approved.Approve(ms, keys[0], 2))
	assert.Nil(t, approved.Approve(ms, keys[1], 2))

	// A config transaction created at index 5 gets executed.
	ms.TransactionIndex = 5
	ms.InvalidatePriorTransactions()

	assert.Equal(t, ProposalStale, p.EffectiveStatus(ms))
	assert.IsErr(t, errors.ErrProposalStale, p.Approve(ms, keys[1], 3))
	assert.IsErr(t, errors.ErrProposalStale, p.Reject(ms, keys[1], 3))
	assert.Equal(t, 1, len(p.ApprovedBy))

	// Approved proposals cannot be executed once stale.
	assert.Equal(t, ProposalStale, approved.EffectiveStatus(ms))
	err := approved.MarkExecuted(ms, keys[2], 3)
	assert.IsErr(t, errors.ErrProposalStale, err)
	if errors.ErrTerminalState.Is(err) || errors.ErrPermissionDenied.Is(err) || errors.ErrThresholdNotMet.Is(err) {
		t.Fatalf("staleness must be reported with its own error: %v", err)
	}

	// Terminal records keep their status.
	rejected := &Proposal{TransactionIndex: 2, Status: ProposalRejected}
	assert.Equal(t, ProposalRejected, rejected.EffectiveStatus(ms))

	// A proposal cannot be created for a stale transaction.
	_, err = NewProposal(ms, quorumtest.NewAddress(), 2, keys[0], 3)
	assert.IsErr(t, errors.ErrProposalStale, err)
}

func TestCancel(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 0)
	a, b, c := keys[0], keys[1], keys[2]
	p := newTestProposal(t, ms, a, 1)
	assert.Nil(t, p.Approve(ms, a, 2))
	assert.Nil(t, p.Approve(ms, b, 2))
	assert.Equal(t, ProposalApproved, p.Status)

	// Dropping below the threshold reopens the proposal.
	assert.Nil(t, p.Cancel(ms, a, 3))
	assert.Equal(t, ProposalActive, p.Status)
	assert.Equal(t, quorum.UnixTime(0), p.ThresholdCrossedAt)
	assert.Equal(t, []quorum.Address{b}, p.ApprovedBy)
	assert.Equal(t, []quorum.Address{a}, p.CancelledBy)
	assert.IsErr(t, errors.ErrDuplicateVote, p.Cancel(ms, a, 3))
	assert.IsErr(t, errors.ErrThresholdNotMet, p.MarkExecuted(ms, c, 3))
	assert.Nil(t, p.Validate())

	assert.Nil(t, p.Cancel(ms, c, 4))
	assert.Equal(t, ProposalCancelled, p.Status)
	assert.IsErr(t, errors.ErrTerminalState, p.Approve(ms, b, 5))
	assert.IsErr(t, errors.ErrTerminalState, p.Cancel(ms, b, 5))
	assert.Nil(t, p.Validate())
}

func TestCancelRestartsTimeLock(t *testing.T) {
	ms, keys := newTestMultisig(t, 4, 2, 600)
	a, b, c, d := keys[0], keys[1], keys[2], keys[3]
	p := newTestProposal(t, ms, a, 1)
	assert.Nil(t, p.Approve(ms, a, 100))
	assert.Nil(t, p.Approve(ms, b, 100))
	assert.Equal(t, quorum.UnixTime(700), p.ExecutableAt(ms))

	assert.Nil(t, p.Cancel(ms, b, 200))
	assert.Equal(t, ProposalActive, p.Status)
	assert.IsErr(t, errors.ErrThresholdNotMet, p.CanExecute(ms, d, 800))

	assert.Nil(t, p.Approve(ms, c, 500))
	assert.Equal(t, ProposalApproved, p.Status)
	assert.Equal(t, quorum.UnixTime(1100), p.ExecutableAt(ms))
	assert.IsErr(t, errors.ErrTimeLockNotElapsed, p.CanExecute(ms, d, 800))
	assert.Nil(t, p.MarkExecuted(ms, d, 1100))
}

func TestCanExecuteRequiresThreshold(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 0)
	// A record claiming approval without enough approvals is not trusted.
	p := &Proposal{
		Multisig:           quorumtest.NewAddress(),
		TransactionIndex:   1,
		Status:             ProposalApproved,
		ApprovedBy:         []quorum.Address{keys[0]},
		ThresholdCrossedAt: 1,
	}
	assert.IsErr(t, errors.ErrThresholdNotMet, p.MarkExecuted(ms, keys[1], 10))
	assert.Equal(t, ProposalApproved, p.Status)
}

func TestVotePermissions(t *testing.T) {
	ms, keys := newTestMultisig(t, 3, 2, 0)
	// Third member may only execute.
	for i := range ms.Members {
		if ms.Members[i].Key.Equals(keys[2]) {
			ms.Members[i].Permissions = PermExecute
		}
	}
	p := newTestProposal(t, ms, keys[0], 1)

	outsider := quorumtest.NewAddress()
	cases := map[string]func() error{
		"outsider approves": func() error { return p.Approve(ms, outsider, 2) },
		"outsider rejects":  func() error { return p.Reject(ms, outsider, 2) },
		"executor approves": func() error { return p.Approve(ms, keys[2], 2) },
		"executor cancels":  func() error { return p.Cancel(ms, keys[2], 2) },
		"outsider executes": func() error { return p.CanExecute(ms, outsider, 2) },
	}
	for testName, fn := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.IsErr(t, errors.ErrPermissionDenied, fn())
		})
	}

	_, err := NewProposal(ms, quorumtest.NewAddress(), 1, keys[2], 1)
	assert.IsErr(t, errors.ErrPermissionDenied, err)
	_, err = NewProposal(ms, quorumtest.NewAddress(), 99, keys[0], 1)
	assert.IsErr(t, errors.ErrNotFound, err)
}
