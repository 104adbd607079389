package tools

import (
	"encoding/json"
	"testing"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/x/multisig"
	"github.com/stretchr/testify/assert"
)

func auditMultisig(threshold, timeLock uint32, perms ...multisig.Permission) *multisig.Multisig {
	members := make([]multisig.Member, len(perms))
	for i, p := range perms {
		members[i] = multisig.Member{Key: quorumtest.NewAddress(), Permissions: p}
	}
	multisig.SortMembers(members)
	return &multisig.Multisig{
		CreateKey: quorumtest.NewAddress(),
		Members:   members,
		Threshold: threshold,
		TimeLock:  timeLock,
	}
}

func TestAudit(t *testing.T) {
	const (
		proposer = multisig.PermVote | multisig.PermInitiate
		executor = multisig.PermVote | multisig.PermExecute
		all      = multisig.PermAll
	)

	cases := map[string]struct {
		ms         *multisig.Multisig
		typ        MultisigType
		wantScore  int
		wantRating string
		wantIssues int
	}{
		"separated roles, standard": {
			ms:         auditMultisig(2, 0, proposer, executor, executor),
			typ:        TypeStandard,
			wantScore:  100,
			wantRating: RatingExcellent,
		},
		"default type is standard": {
			ms:         auditMultisig(2, 0, proposer, executor, executor),
			wantScore:  100,
			wantRating: RatingExcellent,
		},
		"every member holds every permission": {
			ms:         auditMultisig(2, 0, all, all, all),
			typ:        TypeStandard,
			wantScore:  55,
			wantRating: RatingPoor,
			wantIssues: 4,
		},
		"low threshold": {
			ms:         auditMultisig(2, 0, proposer, executor, executor, executor),
			typ:        TypeStandard,
			wantScore:  90,
			wantRating: RatingExcellent,
			wantIssues: 1,
		},
		"operations without time lock": {
			ms:         auditMultisig(2, 0, proposer, executor, executor),
			typ:        TypeOperations,
			wantScore:  85,
			wantRating: RatingGood,
			wantIssues: 1,
		},
		"operations with short time lock": {
			ms:         auditMultisig(2, 60, proposer, executor, executor),
			typ:        TypeOperations,
			wantScore:  90,
			wantRating: RatingExcellent,
			wantIssues: 1,
		},
		"small reserve": {
			ms:         auditMultisig(2, 3600, proposer, executor, executor),
			typ:        TypeReserve,
			wantScore:  70,
			wantRating: RatingFair,
			wantIssues: 2,
		},
		"well guarded reserve": {
			ms:         auditMultisig(4, 3600, proposer, proposer, proposer, executor, executor, executor),
			typ:        TypeReserve,
			wantScore:  100,
			wantRating: RatingExcellent,
		},
		"program upgrade with one overlapping member": {
			ms:         auditMultisig(4, 600, proposer, proposer, proposer, executor, executor, multisig.PermInitiate|multisig.PermExecute),
			typ:        TypeProgramUpgrade,
			wantScore:  85,
			wantRating: RatingGood,
			wantIssues: 1,
		},
		"score does not go below zero": {
			ms:         auditMultisig(1, 0, all, all, all, all, all),
			typ:        TypeReserve,
			wantScore:  0,
			wantRating: RatingPoor,
			wantIssues: 9,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			addr := quorumtest.NewAddress()
			r := Audit(addr, tc.ms, tc.typ)
			assert.Equal(t, tc.wantScore, r.Score)
			assert.Equal(t, tc.wantRating, r.Rating)
			assert.Len(t, r.Issues, tc.wantIssues)
			assert.Equal(t, tc.wantScore < 70, r.SignificantRisk)
			assert.Equal(t, addr.String(), r.Multisig)
			assert.Len(t, r.Members, len(tc.ms.Members))
			assert.NotEmpty(t, r.Suggestion())
		})
	}
}

func TestAuditRecommendations(t *testing.T) {
	ms := auditMultisig(4, 3600, multisig.PermAll, multisig.PermAll, multisig.PermAll, multisig.PermAll, multisig.PermAll, multisig.PermAll)
	assert.NotEmpty(t, Audit(quorum.Address(nil), ms, TypeReserve).Recommendations)
	assert.NotEmpty(t, Audit(nil, ms, TypeProgramUpgrade).Recommendations)
	assert.Empty(t, Audit(nil, ms, TypeStandard).Recommendations)
}

func TestParseMultisigType(t *testing.T) {
	cases := map[string]MultisigType{
		"ProgramUpgrade":  TypeProgramUpgrade,
		"Program Upgrade": TypeProgramUpgrade,
		"program upgrade": TypeProgramUpgrade,
		" Reserve ":       TypeReserve,
		"operations":      TypeOperations,
		"Standard":        TypeStandard,
		"Treasury":        MultisigType("Treasury"),
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseMultisigType(in))
		})
	}

	var args AuditArgs
	assert.NoError(t, json.Unmarshal([]byte(`{"type":"Program Upgrade"}`), &args))
	assert.Equal(t, TypeProgramUpgrade, args.Type)
}
