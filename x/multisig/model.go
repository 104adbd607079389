package multisig

import (
	"bytes"
	"sort"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

const (
	// MaxMembers is the maximum number of members a multisig can have.
	MaxMembers = 65535

	// MaxTimeLock is the longest time lock a multisig can declare, three
	// months in seconds.
	MaxTimeLock = 3 * 30 * 24 * 60 * 60
)

// Account is implemented by every record this package persists.
type Account interface {
	Validate() error
}

// Member is a key allowed to act on behalf of a multisig.
type Member struct {
	Key         quorum.Address
	Permissions Permission
}

// Validate returns an error if the member is malformed.
func (m Member) Validate() error {
	if err := m.Key.Validate(); err != nil {
		return errors.Wrap(err, "member key")
	}
	if err := m.Permissions.Validate(); err != nil {
		return errors.Wrapf(err, "member %s", m.Key)
	}
	return nil
}

// Multisig is the configuration of a threshold governed account. It is the
// single source of truth for the membership and the transaction index
// sequence.
type Multisig struct {
	// CreateKey is the one time key the address was derived from.
	CreateKey quorum.Address
	// ConfigAuthority is always empty: only config transactions approved
	// by the members can change the configuration.
	ConfigAuthority quorum.Address
	// Members are sorted by key.
	Members   []Member
	Threshold uint32
	// TimeLock is the number of seconds between reaching the approval
	// threshold and the earliest execution.
	TimeLock uint32
	// TransactionIndex is the index of the last created transaction.
	TransactionIndex uint64
	// StaleTransactionIndex is the watermark below (and including) which
	// proposals are stale.
	StaleTransactionIndex uint64
	RentCollector         quorum.Address
	CreatedAt             quorum.UnixTime
}

var _ Account = (*Multisig)(nil)

// Validate returns an error if the configuration is inconsistent.
func (m *Multisig) Validate() error {
	var err error
	if e := m.CreateKey.Validate(); e != nil {
		err = errors.Append(err, errors.Wrap(e, "create key"))
	}
	if len(m.ConfigAuthority) != 0 {
		err = errors.Append(err, errors.Wrap(errors.ErrInvalidModel, "config authority is not supported"))
	}
	if len(m.RentCollector) != 0 {
		if e := m.RentCollector.Validate(); e != nil {
			err = errors.Append(err, errors.Wrap(e, "rent collector"))
		}
	}
	if e := validateMembers(m.Members); e != nil {
		err = errors.Append(err, e)
	}
	if m.Threshold == 0 {
		err = errors.Append(err, errors.Wrap(errors.ErrInvalidModel, "threshold must be at least 1"))
	} else if int(m.Threshold) > len(m.Members) {
		err = errors.Append(err, errors.Wrapf(errors.ErrInvalidModel,
			"threshold %d greater than member count %d", m.Threshold, len(m.Members)))
	} else if n := m.countWith(PermVote); int(m.Threshold) > n {
		err = errors.Append(err, errors.Wrapf(errors.ErrInvalidModel,
			"threshold %d greater than voting member count %d", m.Threshold, n))
	}
	if len(m.Members) != 0 {
		if m.countWith(PermInitiate) == 0 {
			err = errors.Append(err, errors.Wrap(errors.ErrInvalidModel, "no member can initiate"))
		}
		if m.countWith(PermExecute) == 0 {
			err = errors.Append(err, errors.Wrap(errors.ErrInvalidModel, "no member can execute"))
		}
	}
	if m.TimeLock > MaxTimeLock {
		err = errors.Append(err, errors.Wrapf(errors.ErrInvalidModel, "time lock exceeds %d seconds", MaxTimeLock))
	}
	if m.StaleTransactionIndex > m.TransactionIndex {
		err = errors.Append(err, errors.Wrap(errors.ErrInvalidModel, "stale index ahead of transaction index"))
	}
	return err
}

func validateMembers(members []Member) error {
	if len(members) == 0 {
		return errors.Wrap(errors.ErrInvalidModel, "no members")
	}
	if len(members) > MaxMembers {
		return errors.Wrapf(errors.ErrInvalidModel, "too many members: %d", len(members))
	}
	for i, m := range members {
		if err := m.Validate(); err != nil {
			return err
		}
		if i > 0 && bytes.Compare(members[i-1].Key, m.Key) >= 0 {
			if members[i-1].Key.Equals(m.Key) {
				return errors.Wrapf(errors.ErrDuplicate, "member %s", m.Key)
			}
			return errors.Wrap(errors.ErrInvalidModel, "members not sorted")
		}
	}
	return nil
}

func (m *Multisig) countWith(p Permission) int {
	var n int
	for _, mem := range m.Members {
		if mem.Permissions.Has(p) {
			n++
		}
	}
	return n
}

// Member returns the member with given key.
func (m *Multisig) Member(key quorum.Address) (Member, bool) {
	i := sort.Search(len(m.Members), func(i int) bool {
		return bytes.Compare(m.Members[i].Key, key) >= 0
	})
	if i < len(m.Members) && m.Members[i].Key.Equals(key) {
		return m.Members[i], true
	}
	return Member{}, false
}

// Authorize returns an error unless key is a member granted the permission.
func (m *Multisig) Authorize(key quorum.Address, p Permission) error {
	mem, ok := m.Member(key)
	if !ok {
		return errors.Wrapf(errors.ErrPermissionDenied, "%s is not a member", key)
	}
	if !mem.Permissions.Has(p) {
		return errors.Wrapf(errors.ErrPermissionDenied, "%s lacks %s permission", key, p)
	}
	return nil
}

// MemberCount returns the number of members.
func (m *Multisig) MemberCount() int {
	return len(m.Members)
}

// RejectionQuorum is the minimal number of rejections that makes reaching
// the approval threshold impossible.
func (m *Multisig) RejectionQuorum() int {
	return len(m.Members) - int(m.Threshold) + 1
}

// NextTransactionIndex returns the index the next created transaction must
// use.
func (m *Multisig) NextTransactionIndex() uint64 {
	return m.TransactionIndex + 1
}

// IsStale returns true if a proposal for the transaction with given index
// was invalidated by an executed config transaction.
func (m *Multisig) IsStale(index uint64) bool {
	return index <= m.StaleTransactionIndex
}

// InvalidatePriorTransactions makes every transaction created so far stale.
func (m *Multisig) InvalidatePriorTransactions() {
	m.StaleTransactionIndex = m.TransactionIndex
}

// Copy returns a deep copy of the multisig.
func (m *Multisig) Copy() *Multisig {
	c := *m
	c.Members = make([]Member, len(m.Members))
	for i, mem := range m.Members {
		c.Members[i] = Member{Key: copyAddr(mem.Key), Permissions: mem.Permissions}
	}
	c.CreateKey = copyAddr(m.CreateKey)
	c.RentCollector = copyAddr(m.RentCollector)
	return &c
}

// SortMembers orders members by key, as a stored multisig requires.
func SortMembers(members []Member) {
	sort.Slice(members, func(i, j int) bool {
		return bytes.Compare(members[i].Key, members[j].Key) < 0
	})
}

func copyAddr(a quorum.Address) quorum.Address {
	if a == nil {
		return nil
	}
	c := make(quorum.Address, len(a))
	copy(c, a)
	return c
}

// Period is the interval after which a spending limit is renewed.
type Period int32

const (
	PeriodOneTime Period = iota
	PeriodDay
	PeriodWeek
	PeriodMonth
)

// Seconds returns the length of the period. One time limits are never
// renewed and return zero.
func (p Period) Seconds() int64 {
	switch p {
	case PeriodDay:
		return 24 * 60 * 60
	case PeriodWeek:
		return 7 * 24 * 60 * 60
	case PeriodMonth:
		return 30 * 24 * 60 * 60
	default:
		return 0
	}
}

func (p Period) Validate() error {
	if p < PeriodOneTime || p > PeriodMonth {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown period %d", p)
	}
	return nil
}

func (p Period) String() string {
	switch p {
	case PeriodOneTime:
		return "one-time"
	case PeriodDay:
		return "day"
	case PeriodWeek:
		return "week"
	case PeriodMonth:
		return "month"
	default:
		return "unknown"
	}
}

// SpendingLimit allows listed members to transfer up to an amount from a
// vault, per period, without a proposal.
type SpendingLimit struct {
	Multisig   quorum.Address
	CreateKey  quorum.Address
	VaultIndex uint32
	// Mint is empty for the native currency.
	Mint   quorum.Address
	Amount uint64
	Period Period
	// Remaining is what can still be spent in the current period.
	Remaining uint64
	LastReset quorum.UnixTime
	Members   []quorum.Address
	// Destinations restricts where funds can go. Empty allows any.
	Destinations []quorum.Address
}

var _ Account = (*SpendingLimit)(nil)

func (s *SpendingLimit) Validate() error {
	if err := s.Multisig.Validate(); err != nil {
		return errors.Wrap(err, "multisig")
	}
	if err := s.CreateKey.Validate(); err != nil {
		return errors.Wrap(err, "create key")
	}
	if len(s.Mint) != 0 {
		if err := s.Mint.Validate(); err != nil {
			return errors.Wrap(err, "mint")
		}
	}
	if s.Amount == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "amount must be positive")
	}
	if s.Remaining > s.Amount {
		return errors.Wrap(errors.ErrInvalidModel, "remaining greater than amount")
	}
	if err := s.Period.Validate(); err != nil {
		return err
	}
	if len(s.Members) == 0 {
		return errors.Wrap(errors.ErrInvalidModel, "no members")
	}
	for _, m := range s.Members {
		if err := m.Validate(); err != nil {
			return errors.Wrap(err, "member")
		}
	}
	for _, d := range s.Destinations {
		if err := d.Validate(); err != nil {
			return errors.Wrap(err, "destination")
		}
	}
	return nil
}

// HasMember returns true if key may use this limit.
func (s *SpendingLimit) HasMember(key quorum.Address) bool {
	return containsAddr(s.Members, key)
}

// AllowsDestination returns true if funds can be sent to given address.
func (s *SpendingLimit) AllowsDestination(to quorum.Address) bool {
	return len(s.Destinations) == 0 || containsAddr(s.Destinations, to)
}

// Use deducts amount from the limit, renewing it first if the period
// passed.
func (s *SpendingLimit) Use(amount uint64, now quorum.UnixTime) error {
	if secs := s.Period.Seconds(); secs > 0 && int64(now-s.LastReset) >= secs {
		passed := int64(now-s.LastReset) / secs
		s.LastReset += quorum.UnixTime(passed * secs)
		s.Remaining = s.Amount
	}
	if amount > s.Remaining {
		return errors.Wrapf(errors.ErrInsufficientAmount, "%d left in the current period", s.Remaining)
	}
	s.Remaining -= amount
	return nil
}

func containsAddr(set []quorum.Address, a quorum.Address) bool {
	for _, s := range set {
		if s.Equals(a) {
			return true
		}
	}
	return false
}
