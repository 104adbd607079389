package bank

import (
	amino "github.com/tendermint/go-amino"
)

// RegisterCodec registers the messages of this package. The quorum.Msg
// interface must be registered by the caller.
func RegisterCodec(cdc *amino.Codec) {
	cdc.RegisterConcrete(&SendMsg{}, "bank/SendMsg", nil)
}
