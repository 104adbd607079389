package app

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/x/bank"
	"github.com/iov-one/quorum/x/multisig"
	"github.com/tendermint/tendermint/libs/log"
)

// Name is reported by the ABCI Info call.
const Name = "quorum"

// NewApplication wires the multisig and bank extensions on top of given
// committed store.
func NewApplication(store quorum.CommitKVStore, logger log.Logger, debug bool) *BaseApp {
	cdc := MakeCodec()
	control := bank.NewController(cdc)
	bucket := multisig.NewBucket(cdc)

	router := NewRouter()
	multisig.RegisterRoutes(router, bucket, router, control)
	bank.RegisterRoutes(router, control)

	queries := quorum.NewQueryRouter()
	multisig.RegisterQuery(queries)
	bank.RegisterQuery(queries, control)

	s := NewStoreApp(Name, store, cdc, queries).
		WithInit(ChainInitializers{bank.Initializer{Control: control}}).
		WithLogger(logger.With("module", "app"))
	return NewBaseApp(s, router, debug)
}
