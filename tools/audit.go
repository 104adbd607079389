package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/x/multisig"
)

// MultisigType is the purpose of a multisig. Critical types call for more
// members, a higher threshold and a longer time lock.
type MultisigType string

const (
	TypeStandard       MultisigType = "Standard"
	TypeOperations     MultisigType = "Operations"
	TypeReserve        MultisigType = "Reserve"
	TypeProgramUpgrade MultisigType = "ProgramUpgrade"
)

// RecommendedTimeLock is the minimal time lock per multisig type, in
// seconds.
var RecommendedTimeLock = map[MultisigType]uint32{
	TypeStandard:       0,
	TypeOperations:     300,
	TypeProgramUpgrade: 600,
	TypeReserve:        3600,
}

// ParseMultisigType accepts the type names with or without inner spaces,
// in any case, so that "Program Upgrade" reads as ProgramUpgrade. Unknown
// names are returned unchanged for validation to reject.
func ParseMultisigType(s string) MultisigType {
	name := strings.Join(strings.Fields(s), "")
	for t := range RecommendedTimeLock {
		if strings.EqualFold(string(t), name) {
			return t
		}
	}
	return MultisigType(s)
}

// UnmarshalJSON reads a type name as ParseMultisigType does.
func (t *MultisigType) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	*t = ParseMultisigType(s)
	return nil
}

func (t MultisigType) critical() bool {
	return t == TypeReserve || t == TypeProgramUpgrade
}

// Audit ratings, from the best.
const (
	RatingExcellent = "Excellent"
	RatingGood      = "Good"
	RatingFair      = "Fair"
	RatingPoor      = "Poor"
)

// AuditReport is the security assessment of a multisig configuration.
type AuditReport struct {
	Multisig        string       `json:"multisig"`
	Type            MultisigType `json:"type"`
	MemberCount     int          `json:"memberCount"`
	Threshold       uint32       `json:"threshold"`
	TimeLock        uint32       `json:"timeLock"`
	Members         []MemberView `json:"members"`
	Score           int          `json:"score"`
	Rating          string       `json:"rating"`
	Issues          []string     `json:"issues"`
	Recommendations []string     `json:"recommendations"`
	// SignificantRisk is set when the score is below 70.
	SignificantRisk bool `json:"significantRisk"`
}

// Audit scores a multisig configuration out of 100. Points are taken for
// a small or weakly guarded membership, a missing or short time lock,
// members holding every permission and members who can both initiate and
// execute.
func Audit(addr quorum.Address, ms *multisig.Multisig, typ MultisigType) *AuditReport {
	if typ == "" {
		typ = TypeStandard
	}
	r := &AuditReport{
		Multisig:    addressString(addr),
		Type:        typ,
		MemberCount: ms.MemberCount(),
		Threshold:   ms.Threshold,
		TimeLock:    ms.TimeLock,
		Score:       100,
		Members:     make([]MemberView, len(ms.Members)),
	}

	if typ.critical() {
		if r.MemberCount < 6 {
			r.issue(15, "HIGH RISK: fewer than 6 members for a critical multisig")
		}
		if r.Threshold < 4 {
			r.issue(15, fmt.Sprintf("HIGH RISK: threshold below 4 for a %s multisig", typ))
		}
	} else if 2*int(r.Threshold) <= r.MemberCount {
		r.issue(10, "MEDIUM RISK: threshold at or below 50% of members")
	}

	want := RecommendedTimeLock[typ]
	switch {
	case r.TimeLock == 0 && want > 0:
		r.issue(15, fmt.Sprintf("HIGH RISK: no time lock for a %s multisig", typ))
	case r.TimeLock < want:
		r.issue(10, fmt.Sprintf("MEDIUM RISK: time lock (%ds) below recommended %ds", r.TimeLock, want))
	}

	overlap := 0
	for i, m := range ms.Members {
		r.Members[i] = MemberView{Key: m.Key.String(), Permissions: m.Permissions.String()}
		if m.Permissions == multisig.PermAll {
			r.issue(10, fmt.Sprintf("HIGH RISK: member %s has ALL permissions", shortKey(m.Key)))
		}
		if m.Permissions.Has(multisig.PermInitiate) && m.Permissions.Has(multisig.PermExecute) {
			overlap++
		}
	}
	if overlap > 0 {
		r.issue(15, fmt.Sprintf("HIGH RISK: %d members have both INITIATE and EXECUTE permissions", overlap))
	}

	switch typ {
	case TypeReserve:
		r.Recommendations = append(r.Recommendations,
			"Use hardware wallets for all signers",
			"Keep most funds in a reserve vault and a small share in an operations vault",
			"Set up a quarterly key rotation schedule",
			"Use at least 2 different hardware wallet vendors",
		)
	case TypeProgramUpgrade:
		r.Recommendations = append(r.Recommendations,
			"Verify the hash of every upgrade against a reproducible build",
			"Use dedicated hardware keys for the upgrade authority",
		)
	}

	if r.Score < 0 {
		r.Score = 0
	}
	switch {
	case r.Score >= 90:
		r.Rating = RatingExcellent
	case r.Score >= 75:
		r.Rating = RatingGood
	case r.Score >= 60:
		r.Rating = RatingFair
	default:
		r.Rating = RatingPoor
	}
	r.SignificantRisk = r.Score < 70
	return r
}

func (r *AuditReport) issue(penalty int, msg string) {
	r.Score -= penalty
	r.Issues = append(r.Issues, msg)
}

// Suggestion returns the advice following the report.
func (r *AuditReport) Suggestion() string {
	switch {
	case r.SignificantRisk:
		return "Address the high risk issues before using this multisig for critical operations. Separate INITIATE and EXECUTE roles with a config transaction."
	case len(r.Issues) != 0:
		return "Review each issue and fix it with a config transaction."
	default:
		return "No critical issue found. Run the audit again after every configuration change."
	}
}

func shortKey(a quorum.Address) string {
	s := a.String()
	if len(s) <= 10 {
		return s
	}
	return s[:6] + "..." + s[len(s)-4:]
}
