package quorum

// ReadOnlyKVStore reads application state. Queries are served with it.
type ReadOnlyKVStore interface {
	// Get returns nil when the key is not set. A nil key panics.
	Get(key []byte) []byte
	// Has returns true when the key is set. A nil key panics.
	Has(key []byte) bool
	// Iterator walks keys in [start, end) in ascending order. A nil end
	// iterates to the last key. The range must not be written to while
	// the iterator is open.
	Iterator(start, end []byte) Iterator
}

// KVStore reads and writes application state. Handlers receive it.
type KVStore interface {
	ReadOnlyKVStore
	// Set stores the value under key. A nil key panics.
	Set(key, value []byte)
	// Delete removes the key. A nil key panics.
	Delete(key []byte)
}

// Iterator is a cursor over a key range, used as
//
//   it := db.Iterator(start, end)
//   defer it.Close()
//   for ; it.Valid(); it.Next() {
//     k, v := it.Key(), it.Value()
//   }
//
// Next, Key and Value panic once Valid returned false.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close()
}

// CacheableKVStore can stack an uncommitted layer on top of itself.
type CacheableKVStore interface {
	KVStore
	CacheWrap() KVCacheWrap
}

// KVCacheWrap buffers writes over a parent store. Every transaction runs
// on its own cache wrap: Write applies the buffered changes to the parent
// once the transaction succeeded, Discard drops them.
type KVCacheWrap interface {
	CacheableKVStore
	Write()
	Discard()
}

// CommitKVStore is the persisted application state. A commit saves a new
// version and reports its hash, which becomes the application hash of the
// block.
type CommitKVStore interface {
	Get(key []byte) []byte
	CacheWrap() KVCacheWrap
	Commit() CommitID
	LoadLatestVersion() error
	LatestVersion() CommitID
}

// CommitID identifies a committed version of the state.
type CommitID struct {
	Version int64
	Hash    []byte
}
