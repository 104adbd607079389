package app

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	amino "github.com/tendermint/go-amino"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
)

// StoreApp contains a data store and all info needed to perform queries
// and handshakes.
//
// It is embedded in BaseApp, which adds CheckTx and DeliverTx. Errors on
// ABCI steps that do not process user input (InitChain, BeginBlock,
// Commit) are handled as panics, tendermint cannot recover from them
// anyway.
type StoreApp struct {
	logger log.Logger

	// name is what is returned from abci.Info
	name string

	cdc *amino.Codec

	// Database state (committed, check, deliver....)
	store *CommitStore

	// Code to initialize from a genesis file
	initializer quorum.Initializer

	// How to handle queries
	queryRouter quorum.QueryRouter

	// chainID is loaded from db in initialization, saved once in InitChain
	chainID string

	// block is the block currently processed, or the last one committed
	// between blocks.
	block quorum.BlockInfo

	// lastHash is the application hash of the last commit. It is a valid
	// checkpoint before the next block records it.
	lastHash []byte
}

// NewStoreApp initializes this app into a ready state with some defaults.
//
// panics if unable to properly load the state from the given store
func NewStoreApp(name string, store quorum.CommitKVStore, cdc *amino.Codec, queryRouter quorum.QueryRouter) *StoreApp {
	s := &StoreApp{
		name:        name,
		cdc:         cdc,
		store:       NewCommitStore(store),
		queryRouter: queryRouter,
		logger:      log.NewNopLogger(),
	}
	s.chainID = loadChainID(s.store.DeliverStore())
	info := s.store.CommitInfo()
	s.lastHash = info.Hash
	s.block = quorum.BlockInfo{ChainID: s.chainID, Height: info.Version}
	s.queryRouter.Register("/tx", txQuery{cdc: cdc})
	return s
}

// WithInit is used to set the init function we call
func (s *StoreApp) WithInit(init quorum.Initializer) *StoreApp {
	s.initializer = init
	return s
}

// WithLogger sets the logger on the StoreApp and returns it, to make it
// easy to chain in initialization.
func (s *StoreApp) WithLogger(logger log.Logger) *StoreApp {
	s.logger = logger
	return s
}

// Logger returns the application base logger
func (s *StoreApp) Logger() log.Logger {
	return s.logger
}

// ChainID returns the chain id set at genesis.
func (s *StoreApp) ChainID() string {
	return s.chainID
}

// Codec returns the codec used for transactions and accounts.
func (s *StoreApp) Codec() *amino.Codec {
	return s.cdc
}

// DeliverStore returns the current DeliverTx cache for methods
func (s *StoreApp) DeliverStore() quorum.CacheableKVStore {
	return s.store.DeliverStore()
}

// CheckStore returns the current CheckTx cache for methods
func (s *StoreApp) CheckStore() quorum.CacheableKVStore {
	return s.store.CheckStore()
}

// LastCheckpoint returns the chain id, height and hash of the last commit.
func (s *StoreApp) LastCheckpoint() (string, int64, []byte) {
	info := s.store.CommitInfo()
	return s.chainID, info.Version, info.Hash
}

// validCheckpoint returns an error unless hash is one of the recent
// application hashes.
func (s *StoreApp) validCheckpoint(db quorum.ReadOnlyKVStore, hash []byte) error {
	if len(s.lastHash) != 0 && string(hash) == string(s.lastHash) {
		return nil
	}
	if _, ok := checkpointHeight(db, hash); ok {
		return nil
	}
	return errors.Wrapf(errors.ErrExpired, "checkpoint %X is not among the last %d", hash, CheckpointWindow)
}

//----------------------- ABCI ---------------------

// Info implements abci.Application. It returns the height and hash, as
// well as the abci name and version.
//
// The height is the block that holds the transactions, not the apphash
// itself.
func (s *StoreApp) Info(req abci.RequestInfo) abci.ResponseInfo {
	info := s.store.CommitInfo()

	s.logger.Info("Info synced",
		"height", info.Version,
		"hash", fmt.Sprintf("%X", info.Hash))

	return abci.ResponseInfo{
		Data:             s.name,
		Version:          quorum.Version(),
		LastBlockHeight:  info.Version,
		LastBlockAppHash: info.Hash,
	}
}

/*
Query gets data from the app store.
A query request has the following elements:
* Path - the type of query
* Data - what to query, interpreted based on Path

Path may be followed by "?prefix" to make a prefix query.

Key and Value in Results are always serialized ResultSet objects, able to
support 0 to N values. They must be the same size.
*/
func (s *StoreApp) Query(req abci.RequestQuery) abci.ResponseQuery {
	path, mod := splitPath(req.Path)
	qh := s.queryRouter.Handler(path)
	if qh == nil {
		return queryError(errors.Wrapf(errors.ErrNotFound, "unexpected query path: %v", req.Path))
	}

	info := s.store.CommitInfo()
	db := s.store.committed.CacheWrap()
	defer db.Discard()

	models, err := qh.Query(db, mod, req.Data)
	if err != nil {
		return queryError(err)
	}

	var res abci.ResponseQuery
	res.Height = info.Version
	res.Key, err = ResultsFromKeys(models).Marshal()
	if err != nil {
		return queryError(err)
	}
	res.Value, err = ResultsFromValues(models).Marshal()
	if err != nil {
		return queryError(err)
	}
	return res
}

// splitPath splits out the real path along with the query modifier
// (everything after the ?)
func splitPath(path string) (string, string) {
	var mod string
	chunks := strings.SplitN(path, "?", 2)
	if len(chunks) == 2 {
		path = chunks[0]
		mod = chunks[1]
	}
	return path, mod
}

func queryError(err error) abci.ResponseQuery {
	code, log := errors.ABCIInfo(err, false)
	return abci.ResponseQuery{Code: code, Log: log}
}

// txQuery returns the recorded result of a processed transaction, the
// query data being the transaction id.
type txQuery struct {
	cdc *amino.Codec
}

func (q txQuery) Query(db quorum.ReadOnlyKVStore, mod string, data []byte) ([]quorum.Model, error) {
	var id quorum.TxID
	if len(data) != len(id) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "transaction id must be %d bytes", len(id))
	}
	copy(id[:], data)
	raw := db.Get(processedKey(id))
	if raw == nil {
		return nil, nil
	}
	return []quorum.Model{quorum.Pair(id[:], raw)}, nil
}

// Commit implements abci.Application
func (s *StoreApp) Commit() abci.ResponseCommit {
	commitID := s.store.Commit()
	s.lastHash = commitID.Hash

	s.logger.Debug("Commit synced",
		"height", commitID.Version,
		"hash", fmt.Sprintf("%X", commitID.Hash),
	)
	return abci.ResponseCommit{Data: commitID.Hash}
}

// InitChain implements ABCI. The genesis app state is passed to the
// initializer.
func (s *StoreApp) InitChain(req abci.RequestInitChain) abci.ResponseInitChain {
	if err := s.parseAppState(req.AppStateBytes, req.ChainId); err != nil {
		panic(err)
	}
	return abci.ResponseInitChain{}
}

// parseAppState is called from InitChain, the first time the chain starts,
// and not on restarts.
func (s *StoreApp) parseAppState(data []byte, chainID string) error {
	if s.chainID != "" {
		return errors.Wrapf(errors.ErrInvalidState, "app state previously loaded for chain: %s", s.chainID)
	}
	if len(data) == 0 {
		return errors.Wrap(errors.ErrInvalidInput, "app_state not set in genesis.json, please initialize application before launching the blockchain")
	}
	var appState quorum.Options
	if err := json.Unmarshal(data, &appState); err != nil {
		return errors.Wrap(errors.WithKind(errors.ErrInvalidInput, err), "app state")
	}
	db := s.store.DeliverStore()
	if err := saveChainID(db, chainID); err != nil {
		return err
	}
	s.chainID = chainID
	s.block.ChainID = chainID
	if s.initializer == nil {
		return nil
	}
	return s.initializer.FromGenesis(appState, db)
}

// BeginBlock implements ABCI. It sets up the block information and records
// the hash of the previous block as a checkpoint.
func (s *StoreApp) BeginBlock(req abci.RequestBeginBlock) abci.ResponseBeginBlock {
	s.block = quorum.BlockInfo{
		ChainID: s.chainID,
		Height:  req.Header.Height,
		Time:    quorum.AsUnixTime(req.Header.Time),
	}
	saveCheckpoint(s.store.DeliverStore(), req.Header.Height-1, s.lastHash)
	return abci.ResponseBeginBlock{}
}

// EndBlock implements ABCI. Validator set changes are not supported.
func (s *StoreApp) EndBlock(req abci.RequestEndBlock) abci.ResponseEndBlock {
	return abci.ResponseEndBlock{}
}

// SetOption implements ABCI.
func (s *StoreApp) SetOption(req abci.RequestSetOption) abci.ResponseSetOption {
	return abci.ResponseSetOption{Log: "Not Implemented"}
}
