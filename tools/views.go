package tools

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/x/bank"
	"github.com/iov-one/quorum/x/multisig"
)

// MemberView is a member of a multisig.
type MemberView struct {
	Key         string `json:"key"`
	Permissions string `json:"permissions"`
}

// MultisigView is a multisig configuration.
type MultisigView struct {
	Address               string       `json:"address"`
	CreateKey             string       `json:"createKey"`
	DefaultVault          string       `json:"defaultVault"`
	Members               []MemberView `json:"members"`
	Threshold             uint32       `json:"threshold"`
	TimeLock              uint32       `json:"timeLock"`
	TransactionIndex      uint64       `json:"transactionIndex"`
	StaleTransactionIndex uint64       `json:"staleTransactionIndex"`
	RentCollector         string       `json:"rentCollector,omitempty"`
	CreatedAt             int64        `json:"createdAt"`
}

func newMultisigView(addr quorum.Address, ms *multisig.Multisig) (*MultisigView, error) {
	vault, err := quorum.DeriveVault(addr, 0)
	if err != nil {
		return nil, err
	}
	v := &MultisigView{
		Address:               addr.String(),
		CreateKey:             addressString(ms.CreateKey),
		DefaultVault:          vault.String(),
		Members:               make([]MemberView, len(ms.Members)),
		Threshold:             ms.Threshold,
		TimeLock:              ms.TimeLock,
		TransactionIndex:      ms.TransactionIndex,
		StaleTransactionIndex: ms.StaleTransactionIndex,
		RentCollector:         addressString(ms.RentCollector),
		CreatedAt:             int64(ms.CreatedAt),
	}
	for i, m := range ms.Members {
		v.Members[i] = MemberView{Key: m.Key.String(), Permissions: m.Permissions.String()}
	}
	return v, nil
}

// ProposalView is a proposal with the status it has under the current
// configuration.
type ProposalView struct {
	Multisig           string   `json:"multisig"`
	Index              uint64   `json:"index"`
	Address            string   `json:"address"`
	Status             string   `json:"status"`
	Creator            string   `json:"creator"`
	ApprovedBy         []string `json:"approvedBy"`
	RejectedBy         []string `json:"rejectedBy"`
	CancelledBy        []string `json:"cancelledBy"`
	CreatedAt          int64    `json:"createdAt"`
	ThresholdCrossedAt int64    `json:"thresholdCrossedAt,omitempty"`
	ExecutableAt       int64    `json:"executableAt,omitempty"`
	ExecutedAt         int64    `json:"executedAt,omitempty"`
}

func newProposalView(ms *multisig.Multisig, info client.ProposalInfo) ProposalView {
	p := info.Proposal
	v := ProposalView{
		Multisig:           addressString(p.Multisig),
		Index:              info.Index,
		Address:            addressString(info.Address),
		Status:             info.Status.String(),
		Creator:            addressString(p.Creator),
		ApprovedBy:         addressStrings(p.ApprovedBy),
		RejectedBy:         addressStrings(p.RejectedBy),
		CancelledBy:        addressStrings(p.CancelledBy),
		CreatedAt:          int64(p.CreatedAt),
		ThresholdCrossedAt: int64(p.ThresholdCrossedAt),
		ExecutedAt:         int64(p.ExecutedAt),
	}
	if info.Status == multisig.ProposalApproved {
		v.ExecutableAt = int64(p.ExecutableAt(ms))
	}
	return v
}

func addressStrings(set []quorum.Address) []string {
	res := make([]string, len(set))
	for i, a := range set {
		res[i] = a.String()
	}
	return res
}

// CoinView is a balance.
type CoinView struct {
	// Mint is empty for the native currency.
	Mint   string `json:"mint,omitempty"`
	Amount uint64 `json:"amount"`
}

// VaultView lists the funds of a vault.
type VaultView struct {
	Index   uint32     `json:"index"`
	Address string     `json:"address"`
	Native  uint64     `json:"native"`
	Tokens  []CoinView `json:"tokens"`
}

func newVaultView(a client.VaultAssets) VaultView {
	v := VaultView{
		Index:   a.Index,
		Address: a.Address.String(),
		Native:  a.Native,
		Tokens:  make([]CoinView, len(a.Tokens)),
	}
	for i, c := range a.Tokens {
		v.Tokens[i] = newCoinView(c)
	}
	return v
}

func newCoinView(c bank.Coin) CoinView {
	return CoinView{Mint: addressString(c.Mint), Amount: c.Amount}
}

// CreatedView is the outcome of creating a transaction.
type CreatedView struct {
	Index       uint64 `json:"index"`
	Transaction string `json:"transaction"`
	Proposal    string `json:"proposal,omitempty"`
	TxID        string `json:"txId"`
}

func newCreatedView(c *client.Created) *CreatedView {
	return &CreatedView{
		Index:       c.Index,
		Transaction: c.Transaction.String(),
		Proposal:    addressString(c.Proposal),
		TxID:        c.TxID.String(),
	}
}

// TxView is the outcome of a delivered transaction.
type TxView struct {
	TxID string `json:"txId"`
}
