package multisig

import (
	"bytes"
	"sort"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus int32

const (
	ProposalActive ProposalStatus = iota + 1
	ProposalApproved
	ProposalRejected
	ProposalCancelled
	ProposalExecuted
	// ProposalStale is never stored. It is derived from the multisig
	// stale watermark when a proposal is read.
	ProposalStale
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalActive:
		return "Active"
	case ProposalApproved:
		return "Approved"
	case ProposalRejected:
		return "Rejected"
	case ProposalCancelled:
		return "Cancelled"
	case ProposalExecuted:
		return "Executed"
	case ProposalStale:
		return "Stale"
	default:
		return "Unknown"
	}
}

// Terminal returns true if no vote or execution is accepted anymore.
func (s ProposalStatus) Terminal() bool {
	switch s {
	case ProposalRejected, ProposalCancelled, ProposalExecuted, ProposalStale:
		return true
	}
	return false
}

// Proposal collects the votes of the members on one transaction.
//
// A member key appears in at most one of the vote sets. Each set is sorted.
type Proposal struct {
	Multisig         quorum.Address
	TransactionIndex uint64
	Creator          quorum.Address
	Status           ProposalStatus
	ApprovedBy       []quorum.Address
	RejectedBy       []quorum.Address
	CancelledBy      []quorum.Address
	CreatedAt        quorum.UnixTime
	// ThresholdCrossedAt is set when approvals reach the threshold and
	// cleared when a cancellation drops them below it. The time lock
	// counts from it.
	ThresholdCrossedAt quorum.UnixTime
	ExecutedAt         quorum.UnixTime
}

var _ Account = (*Proposal)(nil)

// NewProposal returns an active proposal for the transaction with given
// index. The creator must be allowed to initiate.
func NewProposal(ms *Multisig, msAddr quorum.Address, index uint64, creator quorum.Address, now quorum.UnixTime) (*Proposal, error) {
	if err := ms.Authorize(creator, PermInitiate); err != nil {
		return nil, err
	}
	if index == 0 || index > ms.TransactionIndex {
		return nil, errors.Wrapf(errors.ErrNotFound, "transaction %d", index)
	}
	if ms.IsStale(index) {
		return nil, errors.Wrapf(errors.ErrProposalStale, "transaction %d", index)
	}
	return &Proposal{
		Multisig:         msAddr,
		TransactionIndex: index,
		Creator:          creator,
		Status:           ProposalActive,
		CreatedAt:        now,
	}, nil
}

func (p *Proposal) Validate() error {
	if err := p.Multisig.Validate(); err != nil {
		return errors.Wrap(err, "multisig")
	}
	if p.TransactionIndex == 0 {
		return errors.Wrap(errors.ErrInvalidModel, "transaction index must be at least 1")
	}
	if p.Status < ProposalActive || p.Status > ProposalExecuted {
		return errors.Wrapf(errors.ErrInvalidModel, "cannot store status %s", p.Status)
	}
	seen := make(map[string]struct{})
	for _, set := range [][]quorum.Address{p.ApprovedBy, p.RejectedBy, p.CancelledBy} {
		for _, a := range set {
			if _, ok := seen[string(a)]; ok {
				return errors.Wrapf(errors.ErrInvalidModel, "%s voted more than once", a)
			}
			seen[string(a)] = struct{}{}
		}
	}
	if p.Status == ProposalApproved && p.ThresholdCrossedAt.IsZero() {
		return errors.Wrap(errors.ErrInvalidModel, "approved without threshold time")
	}
	return nil
}

// EffectiveStatus returns the status of the proposal as seen with given
// multisig configuration. A proposal that is not yet terminal becomes
// stale once an executed config transaction moved the stale watermark to
// or past its index.
func (p *Proposal) EffectiveStatus(ms *Multisig) ProposalStatus {
	switch p.Status {
	case ProposalActive, ProposalApproved:
		if ms.IsStale(p.TransactionIndex) {
			return ProposalStale
		}
	}
	return p.Status
}

// ensureOpen returns an error if the proposal no longer accepts votes or
// execution. Staleness is reported with its own error.
func (p *Proposal) ensureOpen(ms *Multisig) error {
	switch s := p.EffectiveStatus(ms); s {
	case ProposalStale:
		return errors.Wrapf(errors.ErrProposalStale, "transaction %d, stale index %d", p.TransactionIndex, ms.StaleTransactionIndex)
	case ProposalRejected, ProposalCancelled, ProposalExecuted:
		return errors.Wrapf(errors.ErrTerminalState, "proposal is %s", s)
	}
	return nil
}

// HasVoted returns true if member is in any of the vote sets.
func (p *Proposal) HasVoted(member quorum.Address) bool {
	return containsSorted(p.ApprovedBy, member) ||
		containsSorted(p.RejectedBy, member) ||
		containsSorted(p.CancelledBy, member)
}

// Approve counts an approval of member. Reaching the threshold records the
// current time and moves the proposal to Approved.
func (p *Proposal) Approve(ms *Multisig, member quorum.Address, now quorum.UnixTime) error {
	if err := ms.Authorize(member, PermVote); err != nil {
		return err
	}
	if err := p.ensureOpen(ms); err != nil {
		return err
	}
	if p.HasVoted(member) {
		return errors.Wrapf(errors.ErrDuplicateVote, "%s already voted", member)
	}
	if p.Status != ProposalActive {
		return errors.Wrapf(errors.ErrInvalidState, "proposal is %s", p.Status)
	}
	p.ApprovedBy = insertSorted(p.ApprovedBy, member)
	if len(p.ApprovedBy) >= int(ms.Threshold) {
		p.Status = ProposalApproved
		p.ThresholdCrossedAt = now
	}
	return nil
}

// Reject counts a rejection of member. Once enough members rejected for
// the threshold to become unreachable, the proposal is Rejected.
func (p *Proposal) Reject(ms *Multisig, member quorum.Address, now quorum.UnixTime) error {
	if err := ms.Authorize(member, PermVote); err != nil {
		return err
	}
	if err := p.ensureOpen(ms); err != nil {
		return err
	}
	if p.HasVoted(member) {
		return errors.Wrapf(errors.ErrDuplicateVote, "%s already voted", member)
	}
	if p.Status != ProposalActive {
		return errors.Wrapf(errors.ErrInvalidState, "proposal is %s", p.Status)
	}
	p.RejectedBy = insertSorted(p.RejectedBy, member)
	if len(p.RejectedBy) >= ms.RejectionQuorum() {
		p.Status = ProposalRejected
	}
	return nil
}

// Cancel counts a cancellation of member. A member that approved or
// rejected before moves to the cancellation set. Reaching the threshold
// cancels the proposal. An approved proposal that no longer holds enough
// approvals becomes active again.
func (p *Proposal) Cancel(ms *Multisig, member quorum.Address, now quorum.UnixTime) error {
	if err := ms.Authorize(member, PermVote); err != nil {
		return err
	}
	if err := p.ensureOpen(ms); err != nil {
		return err
	}
	if containsSorted(p.CancelledBy, member) {
		return errors.Wrapf(errors.ErrDuplicateVote, "%s already cancelled", member)
	}
	p.ApprovedBy = removeSorted(p.ApprovedBy, member)
	p.RejectedBy = removeSorted(p.RejectedBy, member)
	p.CancelledBy = insertSorted(p.CancelledBy, member)
	if len(p.CancelledBy) >= int(ms.Threshold) {
		p.Status = ProposalCancelled
		return nil
	}
	if p.Status == ProposalApproved && len(p.ApprovedBy) < int(ms.Threshold) {
		// Crossing the threshold again restarts the time lock.
		p.Status = ProposalActive
		p.ThresholdCrossedAt = 0
	}
	return nil
}

// ExecutableAt returns the earliest time an approved proposal can be
// executed.
func (p *Proposal) ExecutableAt(ms *Multisig) quorum.UnixTime {
	return p.ThresholdCrossedAt.AddSeconds(ms.TimeLock)
}

// CanExecute returns an error unless executor may execute the proposal
// now.
func (p *Proposal) CanExecute(ms *Multisig, executor quorum.Address, now quorum.UnixTime) error {
	if err := ms.Authorize(executor, PermExecute); err != nil {
		return err
	}
	if err := p.ensureOpen(ms); err != nil {
		return err
	}
	if p.Status != ProposalApproved || len(p.ApprovedBy) < int(ms.Threshold) {
		return errors.Wrapf(errors.ErrThresholdNotMet, "%d of %d approvals", len(p.ApprovedBy), ms.Threshold)
	}
	if at := p.ExecutableAt(ms); now < at {
		return errors.Wrapf(errors.ErrTimeLockNotElapsed, "executable at %s", at)
	}
	return nil
}

// MarkExecuted moves the proposal to Executed. It must be applied in the
// same atomic write as the side effect of the transaction.
func (p *Proposal) MarkExecuted(ms *Multisig, executor quorum.Address, now quorum.UnixTime) error {
	if err := p.CanExecute(ms, executor, now); err != nil {
		return err
	}
	p.Status = ProposalExecuted
	p.ExecutedAt = now
	return nil
}

func searchSorted(set []quorum.Address, a quorum.Address) int {
	return sort.Search(len(set), func(i int) bool {
		return bytes.Compare(set[i], a) >= 0
	})
}

func containsSorted(set []quorum.Address, a quorum.Address) bool {
	i := searchSorted(set, a)
	return i < len(set) && set[i].Equals(a)
}

func insertSorted(set []quorum.Address, a quorum.Address) []quorum.Address {
	i := searchSorted(set, a)
	if i < len(set) && set[i].Equals(a) {
		return set
	}
	res := make([]quorum.Address, 0, len(set)+1)
	res = append(res, set[:i]...)
	res = append(res, copyAddr(a))
	return append(res, set[i:]...)
}

func removeSorted(set []quorum.Address, a quorum.Address) []quorum.Address {
	i := searchSorted(set, a)
	if i == len(set) || !set[i].Equals(a) {
		return set
	}
	res := make([]quorum.Address, 0, len(set)-1)
	res = append(res, set[:i]...)
	return append(res, set[i+1:]...)
}
