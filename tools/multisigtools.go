package tools

import (
	"context"
	"fmt"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/x/bank"
	"github.com/iov-one/quorum/x/multisig"
)

// MemberArgs is a member and its roles. No roles grant every permission.
type MemberArgs struct {
	Key   string   `json:"key" validate:"required,address"`
	Roles []string `json:"roles,omitempty" validate:"dive,role"`
}

func (m MemberArgs) member() (multisig.Member, error) {
	key, err := quorum.ParseAddress(m.Key)
	if err != nil {
		return multisig.Member{}, err
	}
	perms, err := multisig.ParsePermissions(m.Roles...)
	if err != nil {
		return multisig.Member{}, err
	}
	return multisig.Member{Key: key, Permissions: perms}, nil
}

// CreateMultisigArgs are the arguments of CREATE_MULTISIG.
type CreateMultisigArgs struct {
	Members       []MemberArgs `json:"members" validate:"dive"`
	CreatorRoles  []string     `json:"creatorRoles,omitempty" validate:"dive,role"`
	Threshold     uint32       `json:"threshold" validate:"required,min=1"`
	TimeLock      uint32       `json:"timeLock"`
	RentCollector string       `json:"rentCollector,omitempty" validate:"omitempty,address"`
	Memo          string       `json:"memo,omitempty" validate:"max=256"`
}

// CreatedMultisigView is the outcome of CREATE_MULTISIG.
type CreatedMultisigView struct {
	Address   string `json:"address"`
	CreateKey string `json:"createKey"`
	Vault     string `json:"vault"`
	TxID      string `json:"txId"`
}

// MultisigArgs select a multisig. When empty, the active multisig is used.
type MultisigArgs struct {
	Multisig  string `json:"multisig,omitempty" validate:"omitempty,address"`
	CreateKey string `json:"createKey,omitempty" validate:"omitempty,address"`
}

// ProposalArgs select a proposal of a multisig.
type ProposalArgs struct {
	Multisig string `json:"multisig,omitempty" validate:"omitempty,address"`
	Index    uint64 `json:"index" validate:"required,min=1"`
}

// VoteArgs are the arguments of the voting tools.
type VoteArgs struct {
	Multisig string `json:"multisig,omitempty" validate:"omitempty,address"`
	Index    uint64 `json:"index" validate:"required,min=1"`
	Memo     string `json:"memo,omitempty" validate:"max=256"`
}

// TransferArgs describe a payment.
type TransferArgs struct {
	To     string `json:"to" validate:"required,address"`
	Mint   string `json:"mint,omitempty" validate:"omitempty,address"`
	Amount uint64 `json:"amount" validate:"required,min=1"`
	Memo   string `json:"memo,omitempty" validate:"max=256"`
}

// VaultTransactionArgs are the arguments of CREATE_VAULT_TRANSACTION.
type VaultTransactionArgs struct {
	Multisig         string         `json:"multisig,omitempty" validate:"omitempty,address"`
	VaultIndex       uint32         `json:"vaultIndex"`
	Transfers        []TransferArgs `json:"transfers" validate:"required,min=1,dive"`
	EphemeralSigners uint32         `json:"ephemeralSigners" validate:"max=8"`
	Memo             string         `json:"memo,omitempty" validate:"max=256"`
	Propose          bool           `json:"propose"`
}

// TransferFromVaultArgs are the arguments of TRANSFER_FROM_VAULT.
type TransferFromVaultArgs struct {
	Multisig   string `json:"multisig,omitempty" validate:"omitempty,address"`
	VaultIndex uint32 `json:"vaultIndex"`
	TransferArgs
}

// ActionArgs describe a config action. Type selects which of the other
// fields are used.
type ActionArgs struct {
	Type          string   `json:"type" validate:"required,oneof=AddMember RemoveMember ChangeThreshold SetTimeLock AddSpendingLimit RemoveSpendingLimit SetRentCollector"`
	Member        string   `json:"member,omitempty" validate:"omitempty,address"`
	Roles         []string `json:"roles,omitempty" validate:"dive,role"`
	Threshold     uint32   `json:"threshold,omitempty"`
	TimeLock      uint32   `json:"timeLock,omitempty"`
	RentCollector string   `json:"rentCollector,omitempty" validate:"omitempty,address"`
	SpendingLimit string   `json:"spendingLimit,omitempty" validate:"omitempty,address"`
	VaultIndex    uint32   `json:"vaultIndex,omitempty"`
	Mint          string   `json:"mint,omitempty" validate:"omitempty,address"`
	Amount        uint64   `json:"amount,omitempty"`
	Period        string   `json:"period,omitempty" validate:"omitempty,oneof=one-time day week month"`
	Members       []string `json:"members,omitempty" validate:"dive,address"`
	Destinations  []string `json:"destinations,omitempty" validate:"dive,address"`
}

var periods = map[string]multisig.Period{
	"":         multisig.PeriodOneTime,
	"one-time": multisig.PeriodOneTime,
	"day":      multisig.PeriodDay,
	"week":     multisig.PeriodWeek,
	"month":    multisig.PeriodMonth,
}

func (a ActionArgs) action() (multisig.Action, error) {
	switch a.Type {
	case "AddMember":
		m, err := MemberArgs{Key: a.Member, Roles: a.Roles}.member()
		if err != nil {
			return nil, err
		}
		return multisig.AddMember{Member: m}, nil
	case "RemoveMember":
		key, err := quorum.ParseAddress(a.Member)
		if err != nil {
			return nil, errors.Wrap(err, "member")
		}
		return multisig.RemoveMember{Key: key}, nil
	case "ChangeThreshold":
		return multisig.ChangeThreshold{Threshold: a.Threshold}, nil
	case "SetTimeLock":
		return multisig.SetTimeLock{TimeLock: a.TimeLock}, nil
	case "SetRentCollector":
		rc, err := parseAddress(a.RentCollector)
		if err != nil {
			return nil, err
		}
		return multisig.SetRentCollector{RentCollector: rc}, nil
	case "RemoveSpendingLimit":
		limit, err := quorum.ParseAddress(a.SpendingLimit)
		if err != nil {
			return nil, errors.Wrap(err, "spending limit")
		}
		return multisig.RemoveSpendingLimit{SpendingLimit: limit}, nil
	case "AddSpendingLimit":
		mint, err := parseAddress(a.Mint)
		if err != nil {
			return nil, err
		}
		members, err := parseAddresses(a.Members)
		if err != nil {
			return nil, errors.Wrap(err, "members")
		}
		destinations, err := parseAddresses(a.Destinations)
		if err != nil {
			return nil, errors.Wrap(err, "destinations")
		}
		return multisig.AddSpendingLimit{
			CreateKey:    crypto.GenPrivateKey().Address(),
			VaultIndex:   a.VaultIndex,
			Mint:         mint,
			Amount:       a.Amount,
			Period:       periods[a.Period],
			Members:      members,
			Destinations: destinations,
		}, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown action %q", a.Type)
	}
}

func parseAddresses(set []string) ([]quorum.Address, error) {
	res := make([]quorum.Address, len(set))
	for i, s := range set {
		a, err := quorum.ParseAddress(s)
		if err != nil {
			return nil, err
		}
		res[i] = a
	}
	return res, nil
}

// ConfigTransactionArgs are the arguments of CREATE_CONFIG_TRANSACTION.
type ConfigTransactionArgs struct {
	Multisig string       `json:"multisig,omitempty" validate:"omitempty,address"`
	Actions  []ActionArgs `json:"actions" validate:"required,min=1,dive"`
	Memo     string       `json:"memo,omitempty" validate:"max=256"`
	Propose  bool         `json:"propose"`
}

// ConfigCreatedView is the outcome of CREATE_CONFIG_TRANSACTION.
type ConfigCreatedView struct {
	*CreatedView
	Actions string `json:"actions"`
	// SpendingLimits are the addresses of spending limits the transaction
	// creates when executed.
	SpendingLimits []string `json:"spendingLimits,omitempty"`
}

// FundVaultArgs are the arguments of FUND_VAULT.
type FundVaultArgs struct {
	Multisig   string `json:"multisig,omitempty" validate:"omitempty,address"`
	VaultIndex uint32 `json:"vaultIndex"`
	Mint       string `json:"mint,omitempty" validate:"omitempty,address"`
	Amount     uint64 `json:"amount" validate:"required,min=1"`
}

// AssetsArgs are the arguments of GET_ASSETS.
type AssetsArgs struct {
	Multisig     string   `json:"multisig,omitempty" validate:"omitempty,address"`
	VaultIndexes []uint32 `json:"vaultIndexes,omitempty" validate:"max=16"`
}

// SpendingLimitArgs are the arguments of USE_SPENDING_LIMIT.
type SpendingLimitArgs struct {
	SpendingLimit string `json:"spendingLimit" validate:"required,address"`
	To            string `json:"to" validate:"required,address"`
	Amount        uint64 `json:"amount" validate:"required,min=1"`
	Memo          string `json:"memo,omitempty" validate:"max=256"`
}

// AuditArgs are the arguments of AUDIT_MULTISIG_SECURITY.
type AuditArgs struct {
	Multisig string       `json:"multisig,omitempty" validate:"omitempty,address"`
	Type     MultisigType `json:"type,omitempty" validate:"omitempty,oneof=Standard Operations Reserve ProgramUpgrade"`
}

func multisigTools() []*Tool {
	return []*Tool{
		{
			Name:        "CREATE_MULTISIG",
			Description: "Create a multisig with the wallet as a member and make it the active one.",
			newArgs:     func() interface{} { return &CreateMultisigArgs{} },
			run:         createMultisig,
		},
		{
			Name:        "GET_MULTISIG",
			Description: "Fetch a multisig configuration, by address, by create key or the active one.",
			newArgs:     func() interface{} { return &MultisigArgs{} },
			run:         getMultisig,
		},
		{
			Name:        "GET_PROPOSAL",
			Description: "Fetch a proposal and its status.",
			newArgs:     func() interface{} { return &ProposalArgs{} },
			run:         getProposal,
		},
		{
			Name:        "GET_PROPOSALS",
			Description: "List the proposals that are not stale.",
			newArgs:     func() interface{} { return &MultisigArgs{} },
			run:         getProposals,
		},
		{
			Name:        "CREATE_VAULT_TRANSACTION",
			Description: "Create a transaction paying from a vault, executed once approved.",
			newArgs:     func() interface{} { return &VaultTransactionArgs{} },
			run:         createVaultTransaction,
		},
		{
			Name:        "TRANSFER_FROM_VAULT",
			Description: "Create and propose a single payment from a vault.",
			newArgs:     func() interface{} { return &TransferFromVaultArgs{} },
			run:         transferFromVault,
		},
		{
			Name:        "CREATE_CONFIG_TRANSACTION",
			Description: "Create a transaction changing the multisig configuration, applied once approved.",
			newArgs:     func() interface{} { return &ConfigTransactionArgs{} },
			run:         createConfigTransaction,
		},
		{
			Name:        "CREATE_PROPOSAL",
			Description: "Open voting on an existing transaction.",
			newArgs:     func() interface{} { return &ProposalArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*ProposalArgs)
				sq, err := s.squad(args.Multisig)
				if err != nil {
					return nil, "", err
				}
				id, err := sq.CreateProposal(ctx, args.Index)
				if err != nil {
					return nil, "", err
				}
				return &TxView{TxID: id.String()}, "Members can now vote with APPROVE_PROPOSAL or REJECT_PROPOSAL.", nil
			},
		},
		{
			Name:        "APPROVE_PROPOSAL",
			Description: "Vote in favour of a proposal.",
			newArgs:     func() interface{} { return &VoteArgs{} },
			run:         voteTool((*client.Squad).Approve),
		},
		{
			Name:        "REJECT_PROPOSAL",
			Description: "Vote against a proposal.",
			newArgs:     func() interface{} { return &VoteArgs{} },
			run:         voteTool((*client.Squad).Reject),
		},
		{
			Name:        "CANCEL_PROPOSAL",
			Description: "Vote to cancel an approved proposal.",
			newArgs:     func() interface{} { return &VoteArgs{} },
			run:         voteTool((*client.Squad).Cancel),
		},
		{
			Name:        "EXECUTE_TRANSACTION",
			Description: "Execute an approved transaction once its time lock has elapsed.",
			newArgs:     func() interface{} { return &ProposalArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*ProposalArgs)
				sq, err := s.squad(args.Multisig)
				if err != nil {
					return nil, "", err
				}
				id, err := sq.Execute(ctx, args.Index)
				if err != nil {
					return nil, "", err
				}
				return &TxView{TxID: id.String()}, "", nil
			},
		},
		{
			Name:        "FUND_VAULT",
			Description: "Send funds from the wallet to a vault.",
			newArgs:     func() interface{} { return &FundVaultArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*FundVaultArgs)
				mint, err := parseAddress(args.Mint)
				if err != nil {
					return nil, "", err
				}
				sq, err := s.squad(args.Multisig)
				if err != nil {
					return nil, "", err
				}
				id, err := sq.FundVault(ctx, args.VaultIndex, mint, args.Amount)
				if err != nil {
					return nil, "", err
				}
				return &TxView{TxID: id.String()}, "Check the balance with GET_ASSETS.", nil
			},
		},
		{
			Name:        "GET_ASSETS",
			Description: "List the funds held by vaults of a multisig. The first vault is read by default.",
			newArgs:     func() interface{} { return &AssetsArgs{} },
			run:         getAssets,
		},
		{
			Name:        "USE_SPENDING_LIMIT",
			Description: "Pay from a vault within a spending limit, without a vote.",
			newArgs:     func() interface{} { return &SpendingLimitArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*SpendingLimitArgs)
				limit, err := quorum.ParseAddress(args.SpendingLimit)
				if err != nil {
					return nil, "", err
				}
				to, err := quorum.ParseAddress(args.To)
				if err != nil {
					return nil, "", err
				}
				sq, err := s.squad("")
				if err != nil {
					return nil, "", err
				}
				id, err := sq.UseSpendingLimit(ctx, limit, to, args.Amount, args.Memo)
				if err != nil {
					return nil, "", err
				}
				return &TxView{TxID: id.String()}, "", nil
			},
		},
		{
			Name:        "AUDIT_MULTISIG_SECURITY",
			Description: "Score a multisig configuration against security practices for its purpose.",
			newArgs:     func() interface{} { return &AuditArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*AuditArgs)
				sq, err := s.squad(args.Multisig)
				if err != nil {
					return nil, "", err
				}
				ms, err := sq.Multisig(ctx)
				if err != nil {
					return nil, "", err
				}
				addr, err := sq.ActiveMultisig()
				if err != nil {
					return nil, "", err
				}
				r := Audit(addr, ms, args.Type)
				return r, r.Suggestion(), nil
			},
		},
	}
}

func createMultisig(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*CreateMultisigArgs)
	req := client.CreateMultisigRequest{
		Threshold: args.Threshold,
		TimeLock:  args.TimeLock,
		Memo:      args.Memo,
	}
	for _, m := range args.Members {
		member, err := m.member()
		if err != nil {
			return nil, "", err
		}
		req.Members = append(req.Members, member)
	}
	if len(args.CreatorRoles) != 0 {
		perms, err := multisig.ParsePermissions(args.CreatorRoles...)
		if err != nil {
			return nil, "", err
		}
		req.CreatorPermissions = perms
	}
	rc, err := parseAddress(args.RentCollector)
	if err != nil {
		return nil, "", err
	}
	req.RentCollector = rc

	sq, err := s.squad("")
	if err != nil {
		return nil, "", err
	}
	created, err := sq.CreateMultisig(ctx, req)
	if err != nil {
		return nil, "", err
	}
	if _, err := s.store.SetActiveMultisig(created.Address); err != nil {
		return nil, "", errors.Wrap(err, "multisig created, cannot make it active")
	}
	return &CreatedMultisigView{
		Address:   created.Address.String(),
		CreateKey: created.CreateKey.String(),
		Vault:     created.Vault.String(),
		TxID:      created.TxID.String(),
	}, "The multisig is now active. Fund its vault with FUND_VAULT.", nil
}

func getMultisig(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*MultisigArgs)
	sq, err := s.squad(args.Multisig)
	if err != nil {
		return nil, "", err
	}
	if args.CreateKey != "" {
		key, err := quorum.ParseAddress(args.CreateKey)
		if err != nil {
			return nil, "", err
		}
		addr, ms, err := sq.Store().FetchByCreateKey(ctx, key)
		if err != nil {
			return nil, "", err
		}
		v, err := newMultisigView(addr, ms)
		return v, "", err
	}
	ms, err := sq.Multisig(ctx)
	if err != nil {
		return nil, "", err
	}
	addr, err := sq.ActiveMultisig()
	if err != nil {
		return nil, "", err
	}
	v, err := newMultisigView(addr, ms)
	return v, "", err
}

func getProposal(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*ProposalArgs)
	sq, err := s.squad(args.Multisig)
	if err != nil {
		return nil, "", err
	}
	addr, err := sq.ActiveMultisig()
	if err != nil {
		return nil, "", err
	}
	ms, err := sq.Store().Fetch(ctx, addr)
	if err != nil {
		return nil, "", err
	}
	p, err := sq.Store().FetchProposal(ctx, addr, args.Index)
	if err != nil {
		return nil, "", err
	}
	paddr, err := quorum.DeriveProposal(addr, args.Index)
	if err != nil {
		return nil, "", err
	}
	info := client.ProposalInfo{Index: args.Index, Address: paddr, Proposal: p, Status: p.EffectiveStatus(ms)}
	v := newProposalView(ms, info)
	return v, proposalHint(ms, info), nil
}

func proposalHint(ms *multisig.Multisig, info client.ProposalInfo) string {
	switch info.Status {
	case multisig.ProposalActive:
		missing := int(ms.Threshold) - len(info.Proposal.ApprovedBy)
		return fmt.Sprintf("%d more approvals needed.", missing)
	case multisig.ProposalApproved:
		return "Execute it with EXECUTE_TRANSACTION once the time lock has elapsed."
	case multisig.ProposalStale:
		return "The configuration changed since this transaction was created. Create a new transaction."
	default:
		return ""
	}
}

func getProposals(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*MultisigArgs)
	sq, err := s.squad(args.Multisig)
	if err != nil {
		return nil, "", err
	}
	addr, err := sq.ActiveMultisig()
	if err != nil {
		return nil, "", err
	}
	ms, infos, err := sq.Store().Proposals(ctx, addr)
	if err != nil {
		return nil, "", err
	}
	res := make([]ProposalView, len(infos))
	for i, info := range infos {
		res[i] = newProposalView(ms, info)
	}
	if len(res) == 0 {
		return res, "Create one with TRANSFER_FROM_VAULT or CREATE_CONFIG_TRANSACTION.", nil
	}
	return res, "", nil
}

func createVaultTransaction(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*VaultTransactionArgs)
	sq, err := s.squad(args.Multisig)
	if err != nil {
		return nil, "", err
	}
	addr, err := sq.ActiveMultisig()
	if err != nil {
		return nil, "", err
	}
	vault, err := quorum.DeriveVault(addr, args.VaultIndex)
	if err != nil {
		return nil, "", err
	}
	msgs := make([]quorum.Msg, len(args.Transfers))
	for i, t := range args.Transfers {
		if msgs[i], err = t.send(vault); err != nil {
			return nil, "", errors.Wrapf(err, "transfer %d", i)
		}
	}
	created, err := sq.CreateVaultTransaction(ctx, client.VaultTransactionRequest{
		VaultIndex:       args.VaultIndex,
		Msgs:             msgs,
		EphemeralSigners: args.EphemeralSigners,
		Memo:             args.Memo,
		Propose:          args.Propose,
	})
	if err != nil {
		return nil, "", err
	}
	hint := "Open voting with CREATE_PROPOSAL."
	if args.Propose {
		hint = "Members can now vote with APPROVE_PROPOSAL or REJECT_PROPOSAL."
	}
	return newCreatedView(created), hint, nil
}

func (t TransferArgs) send(from quorum.Address) (*bank.SendMsg, error) {
	to, err := quorum.ParseAddress(t.To)
	if err != nil {
		return nil, err
	}
	mint, err := parseAddress(t.Mint)
	if err != nil {
		return nil, err
	}
	return &bank.SendMsg{From: from, To: to, Mint: mint, Amount: t.Amount, Memo: t.Memo}, nil
}

func transferFromVault(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*TransferFromVaultArgs)
	to, err := quorum.ParseAddress(args.To)
	if err != nil {
		return nil, "", err
	}
	mint, err := parseAddress(args.Mint)
	if err != nil {
		return nil, "", err
	}
	sq, err := s.squad(args.Multisig)
	if err != nil {
		return nil, "", err
	}
	created, err := sq.Transfer(ctx, client.TransferRequest{
		VaultIndex: args.VaultIndex,
		To:         to,
		Mint:       mint,
		Amount:     args.Amount,
		Memo:       args.Memo,
	})
	if err != nil {
		return nil, "", err
	}
	return newCreatedView(created), "Members can now vote with APPROVE_PROPOSAL or REJECT_PROPOSAL.", nil
}

func createConfigTransaction(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*ConfigTransactionArgs)
	sq, err := s.squad(args.Multisig)
	if err != nil {
		return nil, "", err
	}
	addr, err := sq.ActiveMultisig()
	if err != nil {
		return nil, "", err
	}
	actions := make([]multisig.Action, len(args.Actions))
	var limits []string
	for i, aa := range args.Actions {
		if actions[i], err = aa.action(); err != nil {
			return nil, "", errors.Wrapf(err, "action %d", i)
		}
		if add, ok := actions[i].(multisig.AddSpendingLimit); ok {
			limit, err := quorum.DeriveSpendingLimit(addr, add.CreateKey)
			if err != nil {
				return nil, "", err
			}
			limits = append(limits, limit.String())
		}
	}
	created, err := sq.CreateConfigTransaction(ctx, args.Memo, args.Propose, actions...)
	if err != nil {
		return nil, "", err
	}
	v := &ConfigCreatedView{
		CreatedView:    newCreatedView(created),
		Actions:        multisig.DescribeActions(actions),
		SpendingLimits: limits,
	}
	return v, "Once executed, every pending proposal created before it becomes stale.", nil
}

func getAssets(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
	args := a.(*AssetsArgs)
	sq, err := s.squad(args.Multisig)
	if err != nil {
		return nil, "", err
	}
	indexes := args.VaultIndexes
	if len(indexes) == 0 {
		indexes = []uint32{0}
	}
	assets, err := sq.Assets(ctx, indexes...)
	if err != nil {
		return nil, "", err
	}
	res := make([]VaultView, len(assets))
	for i, va := range assets {
		res[i] = newVaultView(va)
	}
	return res, "", nil
}

type voteFn func(*client.Squad, context.Context, uint64, string) (quorum.TxID, error)

func voteTool(vote voteFn) func(context.Context, *Server, interface{}) (interface{}, string, error) {
	return func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
		args := a.(*VoteArgs)
		sq, err := s.squad(args.Multisig)
		if err != nil {
			return nil, "", err
		}
		id, err := vote(sq, ctx, args.Index, args.Memo)
		if err != nil {
			return nil, "", err
		}
		return &TxView{TxID: id.String()}, "Check the outcome with GET_PROPOSAL.", nil
	}
}
