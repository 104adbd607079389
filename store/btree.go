package store

import (
	"bytes"

	"github.com/google/btree"
)

const (
	// DefaultFreeListSize is the size we hold for free node in btree
	DefaultFreeListSize = btree.DefaultFreeListSize
)

// MemStore returns a simple implementation useful for tests.
// There is no persistence here.
func MemStore() CacheableKVStore {
	return NewBTreeCacheWrap(emptyKVStore{}, nil)
}

// BTreeCacheWrap places a btree cache over a KVStore. All writes are kept in
// memory, in the order they were made, until Write is called.
type BTreeCacheWrap struct {
	bt   *btree.BTree
	free *btree.FreeList
	back ReadOnlyKVStore
	// parent receives the writes. It is nil when this cache is not backed
	// by a writable store (MemStore).
	parent KVStore
	ops    *[]op
}

var _ KVCacheWrap = BTreeCacheWrap{}

// NewBTreeCacheWrap initializes a BTree to cache around this kv store.
// Writes go to the parent store only when Write is called.
//
// free may be nil, but set to an existing list to reuse it for memory
// savings.
func NewBTreeCacheWrap(parent ReadOnlyKVStore, free *btree.FreeList) BTreeCacheWrap {
	if free == nil {
		free = btree.NewFreeList(DefaultFreeListSize)
	}
	w, _ := parent.(KVStore)
	return BTreeCacheWrap{
		bt:     btree.NewWithFreeList(2, free),
		free:   free,
		back:   parent,
		parent: w,
		ops:    new([]op),
	}
}

// CacheWrap layers another BTree on top of this one.
func (b BTreeCacheWrap) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(b, b.free)
}

// Write syncs with the underlying store and then cleans up.
func (b BTreeCacheWrap) Write() {
	if b.parent != nil {
		for _, o := range *b.ops {
			if o.delete {
				b.parent.Delete(o.key)
			} else {
				b.parent.Set(o.key, o.value)
			}
		}
		b.Discard()
	}
}

// Discard invalidates this CacheWrap and releases all data.
func (b BTreeCacheWrap) Discard() {
	// clean up the btree -> freelist
	for b.bt.DeleteMin() != nil {
	}
	*b.ops = nil
}

// Set writes to the BTree and records the operation.
func (b BTreeCacheWrap) Set(key, value []byte) {
	if key == nil {
		panic("nil key")
	}
	b.bt.ReplaceOrInsert(setItem{bkey{key}, value})
	*b.ops = append(*b.ops, op{key: key, value: value})
}

// Delete deletes from the BTree and records the operation.
func (b BTreeCacheWrap) Delete(key []byte) {
	if key == nil {
		panic("nil key")
	}
	b.bt.ReplaceOrInsert(deletedItem{bkey{key}})
	*b.ops = append(*b.ops, op{key: key, delete: true})
}

// Get reads from btree if there, else backing store.
func (b BTreeCacheWrap) Get(key []byte) []byte {
	switch t := b.bt.Get(bkey{key}).(type) {
	case setItem:
		return t.value
	case deletedItem:
		return nil
	}
	return b.back.Get(key)
}

// Has reads from btree if there, else backing store.
func (b BTreeCacheWrap) Has(key []byte) bool {
	switch b.bt.Get(bkey{key}).(type) {
	case setItem:
		return true
	case deletedItem:
		return false
	}
	return b.back.Has(key)
}

// Iterator over a domain of keys in ascending order. Combines results from
// btree and backing store, the btree taking precedence.
func (b BTreeCacheWrap) Iterator(start, end []byte) Iterator {
	var ours []btree.Item
	collect := func(i btree.Item) bool {
		ours = append(ours, i)
		return true
	}
	switch {
	case start == nil && end == nil:
		b.bt.Ascend(collect)
	case start == nil:
		b.bt.AscendLessThan(bkey{end}, collect)
	case end == nil:
		b.bt.AscendGreaterOrEqual(bkey{start}, collect)
	default:
		b.bt.AscendRange(bkey{start}, bkey{end}, collect)
	}

	parent := b.back.Iterator(start, end)
	defer parent.Close()

	var res []Model
	for len(ours) > 0 || parent.Valid() {
		if len(ours) == 0 {
			res = append(res, Model{Key: parent.Key(), Value: parent.Value()})
			parent.Next()
			continue
		}
		key := ours[0].(keyer).Key()
		if parent.Valid() {
			switch cmp := bytes.Compare(parent.Key(), key); {
			case cmp < 0:
				res = append(res, Model{Key: parent.Key(), Value: parent.Value()})
				parent.Next()
				continue
			case cmp == 0:
				parent.Next()
			}
		}
		if s, ok := ours[0].(setItem); ok {
			res = append(res, Model{Key: s.key, Value: s.value})
		}
		ours = ours[1:]
	}
	return NewSliceIterator(res)
}

type op struct {
	key    []byte
	value  []byte
	delete bool
}

// we enforce all data in our btree implements keyer so we
// can compare nicely
type keyer interface {
	Key() []byte
}

// bkey implements keyer and btree.Item
// and may be used for queries or embedded in data to store
type bkey struct {
	key []byte
}

func (k bkey) Key() []byte {
	return k.key
}

// Less returns true iff second argument is greater than first
//
// panics if the item to compare doesn't implement keyer.
func (k bkey) Less(item btree.Item) bool {
	return bytes.Compare(k.key, item.(keyer).Key()) < 0
}

type deletedItem struct {
	bkey
}

type setItem struct {
	bkey
	value []byte
}

// emptyKVStore holds nothing.
type emptyKVStore struct{}

func (emptyKVStore) Get([]byte) []byte { return nil }

func (emptyKVStore) Has([]byte) bool { return false }

func (emptyKVStore) Iterator(start, end []byte) Iterator { return NewSliceIterator(nil) }
