package app

import (
	"encoding/binary"
	"regexp"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	amino "github.com/tendermint/go-amino"
)

// CommitStore handles loading from a CommitKVStore, maintaining different
// CacheWraps for Deliver and Check, and returning useful state info.
type CommitStore struct {
	committed quorum.CommitKVStore
	deliver   quorum.KVCacheWrap
	check     quorum.KVCacheWrap
}

// NewCommitStore loads the CommitKVStore from disk or panics. It sets up the
// deliver and check caches.
func NewCommitStore(store quorum.CommitKVStore) *CommitStore {
	if err := store.LoadLatestVersion(); err != nil {
		panic(err)
	}
	return &CommitStore{
		committed: store,
		deliver:   store.CacheWrap(),
		check:     store.CacheWrap(),
	}
}

// CommitInfo returns the current height and hash.
func (cs *CommitStore) CommitInfo() quorum.CommitID {
	return cs.committed.LatestVersion()
}

// Commit will flush deliver to the underlying store and commit it to disk.
// It then regenerates new deliver and check caches.
func (cs *CommitStore) Commit() quorum.CommitID {
	cs.deliver.Write()
	cs.check.Discard()

	res := cs.committed.Commit()

	cs.deliver = cs.committed.CacheWrap()
	cs.check = cs.committed.CacheWrap()
	return res
}

// CheckStore returns a store implementation that must be used during the
// checking phase.
func (cs *CommitStore) CheckStore() quorum.CacheableKVStore {
	return cs.check
}

// DeliverStore returns a store implementation that must be used during the
// delivery phase.
func (cs *CommitStore) DeliverStore() quorum.CacheableKVStore {
	return cs.deliver
}

// _q: is the prefix of all records kept by the application itself.
var (
	chainIDKey       = []byte("_q:chain_id")
	checkpointPrefix = []byte("_q:cp:")
	heightPrefix     = []byte("_q:cph:")
	processedPrefix  = []byte("_q:tx:")
)

// CheckpointWindow is the number of most recent checkpoints a transaction
// may refer to.
const CheckpointWindow = 150

var isChainID = regexp.MustCompile(`^[a-zA-Z0-9_.-]{4,128}$`).MatchString

// loadChainID returns the chain id stored if any.
func loadChainID(db quorum.ReadOnlyKVStore) string {
	return string(db.Get(chainIDKey))
}

// saveChainID stores a chain id in the kv store. Returns error if already
// set, or invalid name.
func saveChainID(db quorum.KVStore, chainID string) error {
	if !isChainID(chainID) {
		return errors.Wrapf(errors.ErrInvalidInput, "chain id: %q", chainID)
	}
	if db.Has(chainIDKey) {
		return errors.Wrap(errors.ErrUnauthorized, "can't modify chain id after genesis init")
	}
	db.Set(chainIDKey, []byte(chainID))
	return nil
}

func encodeHeight(h int64) []byte {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(h))
	return raw
}

func decodeHeight(raw []byte) int64 {
	if len(raw) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(raw))
}

// saveCheckpoint records hash as the state at the end of given height and
// forgets the checkpoint that left the window.
func saveCheckpoint(db quorum.KVStore, height int64, hash []byte) {
	if len(hash) == 0 {
		return
	}
	db.Set(append(append([]byte{}, checkpointPrefix...), hash...), encodeHeight(height))
	db.Set(append(append([]byte{}, heightPrefix...), encodeHeight(height)...), hash)

	old := append(append([]byte{}, heightPrefix...), encodeHeight(height-CheckpointWindow)...)
	if prev := db.Get(old); prev != nil {
		db.Delete(append(append([]byte{}, checkpointPrefix...), prev...))
		db.Delete(old)
	}
}

// checkpointHeight returns the height of a recorded checkpoint.
func checkpointHeight(db quorum.ReadOnlyKVStore, hash []byte) (int64, bool) {
	raw := db.Get(append(append([]byte{}, checkpointPrefix...), hash...))
	if raw == nil {
		return 0, false
	}
	return decodeHeight(raw), true
}

// TxResult is recorded for every authenticated transaction the ledger
// delivered, whether it succeeded or not.
type TxResult struct {
	Height int64
	Code   uint32
	Log    string
}

func processedKey(id quorum.TxID) []byte {
	return append(append([]byte{}, processedPrefix...), id[:]...)
}

func isProcessed(db quorum.ReadOnlyKVStore, id quorum.TxID) bool {
	return db.Has(processedKey(id))
}

func saveProcessed(cdc *amino.Codec, db quorum.KVStore, id quorum.TxID, res TxResult) {
	raw, err := cdc.MarshalBinaryBare(res)
	if err != nil {
		// Only plain integers and a string are encoded here.
		panic(err)
	}
	db.Set(processedKey(id), raw)
}

// LoadTxResult returns the recorded result of a processed transaction.
func LoadTxResult(cdc *amino.Codec, db quorum.ReadOnlyKVStore, id quorum.TxID) (*TxResult, error) {
	raw := db.Get(processedKey(id))
	if raw == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "transaction %s", id)
	}
	var res TxResult
	if err := cdc.UnmarshalBinaryBare(raw, &res); err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "decode tx result")
	}
	return &res, nil
}
