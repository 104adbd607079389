package multisig

import (
	"testing"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
)

func TestApplyActions(t *testing.T) {
	newcomer := quorumtest.NewAddress()
	collector := quorumtest.NewAddress()

	cases := map[string]struct {
		// actions receives the member keys of a 3 of 3 multisig.
		actions func(keys []quorum.Address) []Action
		wantErr *errors.Error
		check   func(t *testing.T, ms *Multisig)
	}{
		"remove then lower threshold sees new member count": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{
					RemoveMember{Key: keys[0]},
					ChangeThreshold{Threshold: 2},
				}
			},
			check: func(t *testing.T, ms *Multisig) {
				assert.Equal(t, 2, ms.MemberCount())
				assert.Equal(t, uint32(2), ms.Threshold)
			},
		},
		"removal leaving threshold above member count is refused": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{RemoveMember{Key: keys[0]}}
			},
			wantErr: errors.ErrInvalidInput,
		},
		"add member and raise threshold": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{
					AddMember{Member: Member{Key: newcomer, Permissions: PermVote}},
					ChangeThreshold{Threshold: 4},
				}
			},
			check: func(t *testing.T, ms *Multisig) {
				assert.Equal(t, 4, ms.MemberCount())
				m, ok := ms.Member(newcomer)
				assert.Equal(t, true, ok)
				assert.Equal(t, PermVote, m.Permissions)
			},
		},
		"adding an existing member": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{AddMember{Member: Member{Key: keys[1], Permissions: PermAll}}}
			},
			wantErr: errors.ErrDuplicate,
		},
		"removing a stranger": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{RemoveMember{Key: newcomer}}
			},
			wantErr: errors.ErrNotFound,
		},
		"time lock and rent collector": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{
					SetTimeLock{TimeLock: 3600},
					SetRentCollector{RentCollector: collector},
				}
			},
			check: func(t *testing.T, ms *Multisig) {
				assert.Equal(t, uint32(3600), ms.TimeLock)
				assert.Equal(t, collector, ms.RentCollector)
			},
		},
		"zero threshold": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{ChangeThreshold{Threshold: 0}}
			},
			wantErr: errors.ErrInvalidInput,
		},
		"time lock too long": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{SetTimeLock{TimeLock: MaxTimeLock + 1}}
			},
			wantErr: errors.ErrInvalidInput,
		},
		"no actions": {
			actions: func(keys []quorum.Address) []Action { return nil },
			wantErr: errors.ErrInvalidInput,
		},
		"spending limit with no amount": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{AddSpendingLimit{
					CreateKey: quorumtest.NewAddress(),
					Members:   keys[:1],
				}}
			},
			wantErr: errors.ErrInvalidAmount,
		},
		"spending limit leaves the configuration alone": {
			actions: func(keys []quorum.Address) []Action {
				return []Action{AddSpendingLimit{
					CreateKey: quorumtest.NewAddress(),
					Amount:    10,
					Period:    PeriodDay,
					Members:   keys[:1],
				}}
			},
			check: func(t *testing.T, ms *Multisig) {
				assert.Equal(t, 3, ms.MemberCount())
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			ms, keys := newTestMultisig(t, 3, 3, 0)
			before := ms.Copy()

			next, err := ApplyActions(ms, tc.actions(keys))
			assert.IsErr(t, tc.wantErr, err)
			// The original configuration is never modified.
			assert.Equal(t, before, ms)
			if tc.check != nil {
				tc.check(t, next)
			}
		})
	}
}

func TestDescribeActions(t *testing.T) {
	got := DescribeActions([]Action{ChangeThreshold{Threshold: 1}, SetTimeLock{}})
	assert.Equal(t, "ChangeThreshold, SetTimeLock", got)
}
