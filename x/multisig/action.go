package multisig

import (
	"strings"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

// Action is a single administrative change carried by a config
// transaction. The set of actions is closed: AddMember, RemoveMember,
// ChangeThreshold, SetTimeLock, AddSpendingLimit, RemoveSpendingLimit and
// SetRentCollector.
type Action interface {
	// Kind returns the action name.
	Kind() string
	// Validate checks the action fields alone.
	Validate() error
	// Apply changes the multisig configuration. Actions that manage
	// records other than the multisig leave it unchanged.
	Apply(ms *Multisig) error
}

// AddMember adds a new member to the multisig.
type AddMember struct {
	Member Member
}

func (AddMember) Kind() string { return "AddMember" }

func (a AddMember) Validate() error {
	return a.Member.Validate()
}

func (a AddMember) Apply(ms *Multisig) error {
	if _, ok := ms.Member(a.Member.Key); ok {
		return errors.Wrapf(errors.ErrDuplicate, "%s is already a member", a.Member.Key)
	}
	ms.Members = append(ms.Members, Member{Key: copyAddr(a.Member.Key), Permissions: a.Member.Permissions})
	SortMembers(ms.Members)
	return nil
}

// RemoveMember removes an existing member.
type RemoveMember struct {
	Key quorum.Address
}

func (RemoveMember) Kind() string { return "RemoveMember" }

func (a RemoveMember) Validate() error {
	return errors.Wrap(a.Key.Validate(), "member key")
}

func (a RemoveMember) Apply(ms *Multisig) error {
	for i, m := range ms.Members {
		if m.Key.Equals(a.Key) {
			ms.Members = append(ms.Members[:i:i], ms.Members[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(errors.ErrNotFound, "%s is not a member", a.Key)
}

// ChangeThreshold sets a new approval threshold.
type ChangeThreshold struct {
	Threshold uint32
}

func (ChangeThreshold) Kind() string { return "ChangeThreshold" }

func (a ChangeThreshold) Validate() error {
	if a.Threshold == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "threshold must be at least 1")
	}
	return nil
}

func (a ChangeThreshold) Apply(ms *Multisig) error {
	ms.Threshold = a.Threshold
	return nil
}

// SetTimeLock sets a new time lock, in seconds.
type SetTimeLock struct {
	TimeLock uint32
}

func (SetTimeLock) Kind() string { return "SetTimeLock" }

func (a SetTimeLock) Validate() error {
	if a.TimeLock > MaxTimeLock {
		return errors.Wrapf(errors.ErrInvalidInput, "time lock exceeds %d seconds", MaxTimeLock)
	}
	return nil
}

func (a SetTimeLock) Apply(ms *Multisig) error {
	ms.TimeLock = a.TimeLock
	return nil
}

// AddSpendingLimit creates a spending limit for one of the vaults.
type AddSpendingLimit struct {
	CreateKey    quorum.Address
	VaultIndex   uint32
	Mint         quorum.Address
	Amount       uint64
	Period       Period
	Members      []quorum.Address
	Destinations []quorum.Address
}

func (AddSpendingLimit) Kind() string { return "AddSpendingLimit" }

func (a AddSpendingLimit) Validate() error {
	limit := a.limit(nil, 0)
	// The multisig is unknown here, any valid address does.
	limit.Multisig = a.CreateKey
	return limit.Validate()
}

func (a AddSpendingLimit) Apply(ms *Multisig) error {
	return nil
}

// limit returns the spending limit record this action creates.
func (a AddSpendingLimit) limit(multisig quorum.Address, now quorum.UnixTime) *SpendingLimit {
	return &SpendingLimit{
		Multisig:     multisig,
		CreateKey:    a.CreateKey,
		VaultIndex:   a.VaultIndex,
		Mint:         a.Mint,
		Amount:       a.Amount,
		Period:       a.Period,
		Remaining:    a.Amount,
		LastReset:    now,
		Members:      a.Members,
		Destinations: a.Destinations,
	}
}

// RemoveSpendingLimit deletes a spending limit of the multisig.
type RemoveSpendingLimit struct {
	SpendingLimit quorum.Address
}

func (RemoveSpendingLimit) Kind() string { return "RemoveSpendingLimit" }

func (a RemoveSpendingLimit) Validate() error {
	return errors.Wrap(a.SpendingLimit.Validate(), "spending limit")
}

func (a RemoveSpendingLimit) Apply(ms *Multisig) error {
	return nil
}

// SetRentCollector sets or, with an empty address, unsets the rent
// collector.
type SetRentCollector struct {
	RentCollector quorum.Address
}

func (SetRentCollector) Kind() string { return "SetRentCollector" }

func (a SetRentCollector) Validate() error {
	if len(a.RentCollector) == 0 {
		return nil
	}
	return errors.Wrap(a.RentCollector.Validate(), "rent collector")
}

func (a SetRentCollector) Apply(ms *Multisig) error {
	ms.RentCollector = copyAddr(a.RentCollector)
	return nil
}

// ValidateActions checks every action alone.
func ValidateActions(actions []Action) error {
	if len(actions) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "no actions")
	}
	for i, a := range actions {
		if a == nil {
			return errors.Wrapf(errors.ErrInvalidInput, "action %d is nil", i)
		}
		if err := a.Validate(); err != nil {
			return errors.Wrapf(err, "action %d (%s)", i, a.Kind())
		}
	}
	return nil
}

// ApplyActions applies the actions in order to a copy of the multisig and
// returns it. Each action observes the effects of its predecessors. The
// resulting configuration must be consistent, otherwise the whole batch is
// refused and the original multisig is left untouched.
func ApplyActions(ms *Multisig, actions []Action) (*Multisig, error) {
	if err := ValidateActions(actions); err != nil {
		return nil, err
	}
	next := ms.Copy()
	for i, a := range actions {
		if err := a.Apply(next); err != nil {
			return nil, errors.Wrapf(err, "action %d (%s)", i, a.Kind())
		}
	}
	if err := next.Validate(); err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidInput, err), "resulting configuration")
	}
	return next, nil
}

// DescribeActions returns a short human readable summary, used as the
// default memo of a config transaction.
func DescribeActions(actions []Action) string {
	kinds := make([]string, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind()
	}
	return strings.Join(kinds, ", ")
}
