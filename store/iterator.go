package store

// SliceIterator iterates over a preloaded, ordered list of models.
type SliceIterator struct {
	data []Model
	idx  int
}

var _ Iterator = (*SliceIterator)(nil)

// NewSliceIterator returns an iterator over given models. Models must be
// already ordered as expected by the caller.
func NewSliceIterator(data []Model) *SliceIterator {
	return &SliceIterator{data: data}
}

func (s *SliceIterator) Valid() bool {
	return s.idx < len(s.data)
}

func (s *SliceIterator) Next() {
	if !s.Valid() {
		panic("next after end of iterator")
	}
	s.idx++
}

func (s *SliceIterator) Key() []byte {
	if !s.Valid() {
		panic("read after end of iterator")
	}
	return s.data[s.idx].Key
}

func (s *SliceIterator) Value() []byte {
	if !s.Valid() {
		panic("read after end of iterator")
	}
	return s.data[s.idx].Value
}

func (s *SliceIterator) Close() {
	s.data = nil
}

// PrefixEnd returns the key that is just past all keys with given prefix.
// Use it as the exclusive end of an iterator. It returns nil when no such
// key exists (prefix is made of 0xFF bytes only).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
