/*
Package iavl implements the committed application state on top of an iavl
merkle tree. Every commit saves a new tree version whose root hash is the
application hash reported to tendermint.
*/
package iavl

import (
	"github.com/iov-one/quorum/store"
	"github.com/tendermint/iavl"
	dbm "github.com/tendermint/tendermint/libs/db"
)

// DefaultCacheSize is the number of tree nodes kept in memory.
const DefaultCacheSize = 10000

// CommitStore manages a iavl committed state.
type CommitStore struct {
	tree *iavl.MutableTree
}

var _ store.CommitKVStore = CommitStore{}

// NewCommitStore creates a new store with disk backing.
func NewCommitStore(dir, name string) (CommitStore, error) {
	db, err := dbm.NewGoLevelDB(name, dir)
	if err != nil {
		return CommitStore{}, err
	}
	return NewCommitStoreFromDB(db), nil
}

// MockCommitStore creates a new in memory store. Use it in tests.
func MockCommitStore() CommitStore {
	return NewCommitStoreFromDB(dbm.NewMemDB())
}

// NewCommitStoreFromDB creates a store backed by given database.
func NewCommitStoreFromDB(db dbm.DB) CommitStore {
	return CommitStore{tree: iavl.NewMutableTree(db, DefaultCacheSize)}
}

// Get returns the value at last committed state
// returns nil iff key doesn't exist. Panics on nil key.
func (s CommitStore) Get(key []byte) []byte {
	_, val := s.tree.GetVersioned(key, s.tree.Version())
	return val
}

// Commit the next version to disk, and returns info.
func (s CommitStore) Commit() store.CommitID {
	hash, version, err := s.tree.SaveVersion()
	if err != nil {
		panic(err)
	}
	return store.CommitID{
		Version: version,
		Hash:    hash,
	}
}

// LoadLatestVersion loads the latest persisted version.
// If there was a crash during the last commit, it is guaranteed
// to return a stable state, even if older.
func (s CommitStore) LoadLatestVersion() error {
	_, err := s.tree.Load()
	return err
}

// LatestVersion returns info on the latest version saved to disk.
func (s CommitStore) LatestVersion() store.CommitID {
	return store.CommitID{
		Version: s.tree.Version(),
		Hash:    s.tree.Hash(),
	}
}

// CacheWrap gives us a savepoint to perform actions. Written changes are
// applied to the working tree and persisted by the next Commit.
func (s CommitStore) CacheWrap() store.KVCacheWrap {
	return store.NewBTreeCacheWrap(adapter{tree: s.tree}, nil)
}

// adapter exposes the working tree as a KVStore.
type adapter struct {
	tree *iavl.MutableTree
}

var _ store.KVStore = adapter{}

// Get returns nil iff key doesn't exist. Panics on nil key.
func (a adapter) Get(key []byte) []byte {
	_, val := a.tree.Get(key)
	return val
}

// Has checks if a key exists. Panics on nil key.
func (a adapter) Has(key []byte) bool {
	return a.tree.Has(key)
}

// Set adds a new value.
func (a adapter) Set(key, value []byte) {
	a.tree.Set(key, value)
}

// Delete removes from the tree.
func (a adapter) Delete(key []byte) {
	a.tree.Remove(key)
}

// Iterator over a domain of keys in ascending order. End is exclusive.
func (a adapter) Iterator(start, end []byte) store.Iterator {
	var res []store.Model
	a.tree.IterateRange(start, end, true, func(key []byte, value []byte) bool {
		res = append(res, store.Model{Key: key, Value: value})
		return false
	})
	return store.NewSliceIterator(res)
}
