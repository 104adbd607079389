package iavl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitStore(t *testing.T) {
	s := MockCommitStore()
	require.NoError(t, s.LoadLatestVersion())
	empty := s.LatestVersion()
	assert.Equal(t, int64(0), empty.Version)

	cache := s.CacheWrap()
	cache.Set([]byte("foo"), []byte("bar"))
	assert.Nil(t, s.Get([]byte("foo")), "not written yet")
	cache.Write()

	first := s.Commit()
	assert.Equal(t, int64(1), first.Version)
	assert.NotEmpty(t, first.Hash)
	assert.Equal(t, []byte("bar"), s.Get([]byte("foo")))

	// Discarded changes do not alter the state hash.
	cache = s.CacheWrap()
	cache.Set([]byte("foo"), []byte("other"))
	cache.Discard()
	second := s.Commit()
	assert.Equal(t, int64(2), second.Version)
	assert.Equal(t, first.Hash, second.Hash)

	cache = s.CacheWrap()
	cache.Set([]byte("foo"), []byte("baz"))
	cache.Set([]byte("goo"), []byte("1"))
	cache.Write()
	third := s.Commit()
	assert.NotEqual(t, second.Hash, third.Hash)

	it := s.CacheWrap().Iterator(nil, nil)
	defer it.Close()
	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"foo", "goo"}, keys)
}
