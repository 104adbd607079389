package multisig

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
)

const (
	pathCreateMultisigMsg          = "multisig/create"
	pathCreateConfigTransactionMsg = "multisig/create_config_tx"
	pathCreateVaultTransactionMsg  = "multisig/create_vault_tx"
	pathCreateProposalMsg          = "multisig/create_proposal"
	pathApproveProposalMsg         = "multisig/approve"
	pathRejectProposalMsg          = "multisig/reject"
	pathCancelProposalMsg          = "multisig/cancel"
	pathExecuteConfigMsg           = "multisig/execute_config_tx"
	pathExecuteVaultMsg            = "multisig/execute_vault_tx"
	pathUseSpendingLimitMsg        = "multisig/use_spending_limit"

	// MaxMemoLength limits the size of memo fields.
	MaxMemoLength = 256
)

// CreateMultisigMsg creates a new multisig. The create key must sign the
// transaction, so that its address cannot be squatted.
type CreateMultisigMsg struct {
	CreateKey     quorum.Address
	Members       []Member
	Threshold     uint32
	TimeLock      uint32
	RentCollector quorum.Address
	Memo          string
}

var _ quorum.Msg = (*CreateMultisigMsg)(nil)

func (CreateMultisigMsg) Path() string { return pathCreateMultisigMsg }

func (m *CreateMultisigMsg) Validate() error {
	if err := validateMemo(m.Memo); err != nil {
		return err
	}
	ms := m.multisig(0)
	return errors.Wrap(ms.Validate(), "multisig")
}

// multisig returns the account this message creates.
func (m *CreateMultisigMsg) multisig(now quorum.UnixTime) *Multisig {
	members := make([]Member, len(m.Members))
	copy(members, m.Members)
	SortMembers(members)
	return &Multisig{
		CreateKey:     m.CreateKey,
		Members:       members,
		Threshold:     m.Threshold,
		TimeLock:      m.TimeLock,
		RentCollector: m.RentCollector,
		CreatedAt:     now,
	}
}

// CreateConfigTransactionMsg creates a config transaction. Index must be
// the next transaction index of the multisig.
type CreateConfigTransactionMsg struct {
	Multisig quorum.Address
	Index    uint64
	Creator  quorum.Address
	Actions  []Action
	Memo     string
}

var _ quorum.Msg = (*CreateConfigTransactionMsg)(nil)

func (CreateConfigTransactionMsg) Path() string { return pathCreateConfigTransactionMsg }

func (m *CreateConfigTransactionMsg) Validate() error {
	if err := validateRef(m.Multisig, m.Index, m.Creator); err != nil {
		return err
	}
	if err := validateMemo(m.Memo); err != nil {
		return err
	}
	return ValidateActions(m.Actions)
}

// CreateVaultTransactionMsg creates a vault transaction. Index must be the
// next transaction index of the multisig.
type CreateVaultTransactionMsg struct {
	Multisig         quorum.Address
	Index            uint64
	Creator          quorum.Address
	VaultIndex       uint32
	Msgs             []quorum.Msg
	EphemeralSigners uint32
	Memo             string
}

var _ quorum.Msg = (*CreateVaultTransactionMsg)(nil)

func (CreateVaultTransactionMsg) Path() string { return pathCreateVaultTransactionMsg }

func (m *CreateVaultTransactionMsg) Validate() error {
	if err := validateRef(m.Multisig, m.Index, m.Creator); err != nil {
		return err
	}
	if err := validateMemo(m.Memo); err != nil {
		return err
	}
	if m.EphemeralSigners > MaxEphemeralSigners {
		return errors.Wrapf(errors.ErrInvalidMsg, "at most %d ephemeral signers", MaxEphemeralSigners)
	}
	return errors.Wrap(quorum.ValidateMsgs(m.Msgs), "inner messages")
}

// CreateProposalMsg opens voting on an existing transaction.
type CreateProposalMsg struct {
	Multisig quorum.Address
	Index    uint64
	Creator  quorum.Address
}

var _ quorum.Msg = (*CreateProposalMsg)(nil)

func (CreateProposalMsg) Path() string { return pathCreateProposalMsg }

func (m *CreateProposalMsg) Validate() error {
	return validateRef(m.Multisig, m.Index, m.Creator)
}

// ApproveProposalMsg is a vote in favour of a proposal.
type ApproveProposalMsg struct {
	Multisig quorum.Address
	Index    uint64
	Member   quorum.Address
	Memo     string
}

var _ quorum.Msg = (*ApproveProposalMsg)(nil)

func (ApproveProposalMsg) Path() string { return pathApproveProposalMsg }

func (m *ApproveProposalMsg) Validate() error {
	if err := validateMemo(m.Memo); err != nil {
		return err
	}
	return validateRef(m.Multisig, m.Index, m.Member)
}

// RejectProposalMsg is a vote against a proposal.
type RejectProposalMsg struct {
	Multisig quorum.Address
	Index    uint64
	Member   quorum.Address
	Memo     string
}

var _ quorum.Msg = (*RejectProposalMsg)(nil)

func (RejectProposalMsg) Path() string { return pathRejectProposalMsg }

func (m *RejectProposalMsg) Validate() error {
	if err := validateMemo(m.Memo); err != nil {
		return err
	}
	return validateRef(m.Multisig, m.Index, m.Member)
}

// CancelProposalMsg is a vote to withdraw an active or approved proposal.
type CancelProposalMsg struct {
	Multisig quorum.Address
	Index    uint64
	Member   quorum.Address
	Memo     string
}

var _ quorum.Msg = (*CancelProposalMsg)(nil)

func (CancelProposalMsg) Path() string { return pathCancelProposalMsg }

func (m *CancelProposalMsg) Validate() error {
	if err := validateMemo(m.Memo); err != nil {
		return err
	}
	return validateRef(m.Multisig, m.Index, m.Member)
}

// ExecuteConfigTransactionMsg applies the actions of an approved config
// transaction.
type ExecuteConfigTransactionMsg struct {
	Multisig quorum.Address
	Index    uint64
	Member   quorum.Address
}

var _ quorum.Msg = (*ExecuteConfigTransactionMsg)(nil)

func (ExecuteConfigTransactionMsg) Path() string { return pathExecuteConfigMsg }

func (m *ExecuteConfigTransactionMsg) Validate() error {
	return validateRef(m.Multisig, m.Index, m.Member)
}

// ExecuteVaultTransactionMsg executes the messages of an approved vault
// transaction.
type ExecuteVaultTransactionMsg struct {
	Multisig quorum.Address
	Index    uint64
	Member   quorum.Address
}

var _ quorum.Msg = (*ExecuteVaultTransactionMsg)(nil)

func (ExecuteVaultTransactionMsg) Path() string { return pathExecuteVaultMsg }

func (m *ExecuteVaultTransactionMsg) Validate() error {
	return validateRef(m.Multisig, m.Index, m.Member)
}

// UseSpendingLimitMsg transfers funds from a vault within a spending limit,
// without a proposal.
type UseSpendingLimitMsg struct {
	SpendingLimit quorum.Address
	Member        quorum.Address
	Destination   quorum.Address
	Amount        uint64
	Memo          string
}

var _ quorum.Msg = (*UseSpendingLimitMsg)(nil)

func (UseSpendingLimitMsg) Path() string { return pathUseSpendingLimitMsg }

func (m *UseSpendingLimitMsg) Validate() error {
	if err := m.SpendingLimit.Validate(); err != nil {
		return errors.Wrap(err, "spending limit")
	}
	if err := m.Member.Validate(); err != nil {
		return errors.Wrap(err, "member")
	}
	if err := m.Destination.Validate(); err != nil {
		return errors.Wrap(err, "destination")
	}
	if m.Amount == 0 {
		return errors.Wrap(errors.ErrInvalidAmount, "amount must be positive")
	}
	return validateMemo(m.Memo)
}

func validateRef(multisig quorum.Address, index uint64, member quorum.Address) error {
	if err := multisig.Validate(); err != nil {
		return errors.Wrap(err, "multisig")
	}
	if index == 0 {
		return errors.Wrap(errors.ErrInvalidMsg, "transaction index must be at least 1")
	}
	if err := member.Validate(); err != nil {
		return errors.Wrap(err, "member")
	}
	return nil
}

func validateMemo(memo string) error {
	if len(memo) > MaxMemoLength {
		return errors.Wrapf(errors.ErrInvalidMsg, "memo longer than %d", MaxMemoLength)
	}
	return nil
}

// NewConfigTransaction returns the message creating a config transaction
// with given batch of actions, applied in order when executed.
func NewConfigTransaction(multisig quorum.Address, index uint64, creator quorum.Address, memo string, actions ...Action) (*CreateConfigTransactionMsg, error) {
	m := &CreateConfigTransactionMsg{
		Multisig: multisig,
		Index:    index,
		Creator:  creator,
		Actions:  actions,
		Memo:     memo,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
