package multisig

import (
	"testing"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
)

func TestMultisigValidate(t *testing.T) {
	a, b := quorumtest.NewAddress(), quorumtest.NewAddress()
	members := []Member{{Key: a, Permissions: PermAll}, {Key: b, Permissions: PermVote}}
	SortMembers(members)

	cases := map[string]struct {
		ms      *Multisig
		wantErr *errors.Error
	}{
		"valid": {
			ms: &Multisig{CreateKey: a, Members: members, Threshold: 2},
		},
		"threshold zero": {
			ms:      &Multisig{CreateKey: a, Members: members, Threshold: 0},
			wantErr: errors.ErrInvalidModel,
		},
		"threshold above member count": {
			ms:      &Multisig{CreateKey: a, Members: members, Threshold: 3},
			wantErr: errors.ErrInvalidModel,
		},
		"no members": {
			ms:      &Multisig{CreateKey: a, Threshold: 1},
			wantErr: errors.ErrInvalidModel,
		},
		"duplicated member": {
			ms: &Multisig{CreateKey: a, Threshold: 1, Members: []Member{
				{Key: a, Permissions: PermAll},
				{Key: a, Permissions: PermAll},
			}},
			wantErr: errors.ErrDuplicate,
		},
		"unknown permission": {
			ms: &Multisig{CreateKey: a, Threshold: 1, Members: []Member{
				{Key: a, Permissions: 9},
			}},
			wantErr: errors.ErrInvalidInput,
		},
		"nobody can execute": {
			ms: &Multisig{CreateKey: a, Threshold: 1, Members: []Member{
				{Key: a, Permissions: PermVote | PermInitiate},
			}},
			wantErr: errors.ErrInvalidModel,
		},
		"stale index ahead": {
			ms:      &Multisig{CreateKey: a, Members: members, Threshold: 1, TransactionIndex: 1, StaleTransactionIndex: 2},
			wantErr: errors.ErrInvalidModel,
		},
		"malformed create key": {
			ms:      &Multisig{CreateKey: quorum.Address("short"), Members: members, Threshold: 1},
			wantErr: errors.ErrInvalidAddress,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			assert.IsErr(t, tc.wantErr, tc.ms.Validate())
		})
	}
}

func TestSpendingLimitUse(t *testing.T) {
	limit := &SpendingLimit{
		Multisig:  quorumtest.NewAddress(),
		CreateKey: quorumtest.NewAddress(),
		Amount:    100,
		Remaining: 100,
		Period:    PeriodDay,
		LastReset: 1000,
		Members:   []quorum.Address{quorumtest.NewAddress()},
	}
	assert.Nil(t, limit.Validate())

	assert.Nil(t, limit.Use(60, 1001))
	assert.IsErr(t, errors.ErrInsufficientAmount, limit.Use(60, 1002))
	assert.Equal(t, uint64(40), limit.Remaining)

	// A day later the limit is renewed.
	assert.Nil(t, limit.Use(60, 1000+24*60*60+5))
	assert.Equal(t, uint64(40), limit.Remaining)
	assert.Equal(t, quorum.UnixTime(1000+24*60*60), limit.LastReset)

	once := *limit
	once.Period = PeriodOneTime
	once.Remaining = 10
	assert.IsErr(t, errors.ErrInsufficientAmount, once.Use(20, 1000+365*24*60*60))
}
