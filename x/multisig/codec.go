package multisig

import (
	amino "github.com/tendermint/go-amino"
)

// RegisterCodec registers the accounts, actions and messages of this
// package. The quorum.Msg interface must be registered by the caller.
func RegisterCodec(cdc *amino.Codec) {
	cdc.RegisterInterface((*Account)(nil), nil)
	cdc.RegisterConcrete(&Multisig{}, "multisig/Multisig", nil)
	cdc.RegisterConcrete(&Transaction{}, "multisig/Transaction", nil)
	cdc.RegisterConcrete(&Proposal{}, "multisig/Proposal", nil)
	cdc.RegisterConcrete(&SpendingLimit{}, "multisig/SpendingLimit", nil)

	cdc.RegisterInterface((*Action)(nil), nil)
	cdc.RegisterConcrete(AddMember{}, "multisig/AddMember", nil)
	cdc.RegisterConcrete(RemoveMember{}, "multisig/RemoveMember", nil)
	cdc.RegisterConcrete(ChangeThreshold{}, "multisig/ChangeThreshold", nil)
	cdc.RegisterConcrete(SetTimeLock{}, "multisig/SetTimeLock", nil)
	cdc.RegisterConcrete(AddSpendingLimit{}, "multisig/AddSpendingLimit", nil)
	cdc.RegisterConcrete(RemoveSpendingLimit{}, "multisig/RemoveSpendingLimit", nil)
	cdc.RegisterConcrete(SetRentCollector{}, "multisig/SetRentCollector", nil)

	cdc.RegisterConcrete(&CreateMultisigMsg{}, "multisig/CreateMultisigMsg", nil)
	cdc.RegisterConcrete(&CreateConfigTransactionMsg{}, "multisig/CreateConfigTransactionMsg", nil)
	cdc.RegisterConcrete(&CreateVaultTransactionMsg{}, "multisig/CreateVaultTransactionMsg", nil)
	cdc.RegisterConcrete(&CreateProposalMsg{}, "multisig/CreateProposalMsg", nil)
	cdc.RegisterConcrete(&ApproveProposalMsg{}, "multisig/ApproveProposalMsg", nil)
	cdc.RegisterConcrete(&RejectProposalMsg{}, "multisig/RejectProposalMsg", nil)
	cdc.RegisterConcrete(&CancelProposalMsg{}, "multisig/CancelProposalMsg", nil)
	cdc.RegisterConcrete(&ExecuteConfigTransactionMsg{}, "multisig/ExecuteConfigTransactionMsg", nil)
	cdc.RegisterConcrete(&ExecuteVaultTransactionMsg{}, "multisig/ExecuteVaultTransactionMsg", nil)
	cdc.RegisterConcrete(&UseSpendingLimitMsg{}, "multisig/UseSpendingLimitMsg", nil)
}
