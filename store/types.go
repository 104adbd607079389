/*
Package store provides the key value stores the ledger application runs on:
an in-memory btree cache layer used to process transactions atomically and
(in store/iavl) a merkle tree backed committed state.
*/
package store

import "github.com/iov-one/quorum"

// Move references for all storage types into this package
// for shorter names everywhere.

type KVStore = quorum.KVStore
type ReadOnlyKVStore = quorum.ReadOnlyKVStore
type Iterator = quorum.Iterator
type CacheableKVStore = quorum.CacheableKVStore
type KVCacheWrap = quorum.KVCacheWrap
type CommitKVStore = quorum.CommitKVStore
type CommitID = quorum.CommitID
type Model = quorum.Model
