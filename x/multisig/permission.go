package multisig

import (
	"strings"

	"github.com/iov-one/quorum/errors"
)

// Permission is a set of flags granted to a member.
type Permission uint32

const (
	// PermVote allows to approve, reject and cancel proposals.
	PermVote Permission = 1 << iota
	// PermExecute allows to execute approved proposals.
	PermExecute
	// PermInitiate allows to create transactions and proposals.
	PermInitiate

	// PermAll grants every permission.
	PermAll = PermVote | PermExecute | PermInitiate
)

// Role names, as accepted by ParsePermissions.
const (
	RoleAll      = "ALL"
	RoleVote     = "VOTE"
	RoleExecute  = "EXECUTE"
	RoleInitiate = "INITIATE"
)

// Has returns true if all flags of want are set.
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// Validate returns an error if unknown flags are set.
func (p Permission) Validate() error {
	if p&^PermAll != 0 {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown permission flags %#x", uint32(p))
	}
	return nil
}

func (p Permission) String() string {
	if p == PermAll {
		return RoleAll
	}
	var roles []string
	if p.Has(PermVote) {
		roles = append(roles, RoleVote)
	}
	if p.Has(PermExecute) {
		roles = append(roles, RoleExecute)
	}
	if p.Has(PermInitiate) {
		roles = append(roles, RoleInitiate)
	}
	if len(roles) == 0 {
		return "NONE"
	}
	return strings.Join(roles, ",")
}

// ParsePermissions converts role names into a permission set. No roles or
// the ALL role grant every permission. Names are case insensitive. An
// unknown role name is an error.
func ParsePermissions(roles ...string) (Permission, error) {
	if len(roles) == 0 {
		return PermAll, nil
	}
	var p Permission
	for _, r := range roles {
		switch strings.ToUpper(strings.TrimSpace(r)) {
		case RoleAll:
			p |= PermAll
		case RoleVote:
			p |= PermVote
		case RoleExecute:
			p |= PermExecute
		case RoleInitiate:
			p |= PermInitiate
		default:
			return 0, errors.Wrapf(errors.ErrInvalidInput, "unknown role %q", r)
		}
	}
	return p, nil
}
