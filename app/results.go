package app

import (
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	amino "github.com/tendermint/go-amino"
)

// ResultSet holds the keys or the values of a query response. Both sets of
// a response have the same size.
type ResultSet struct {
	Results [][]byte
}

var resultCodec = amino.NewCodec()

// Marshal serializes the result set.
func (r *ResultSet) Marshal() ([]byte, error) {
	return resultCodec.MarshalBinaryBare(r)
}

// Unmarshal deserializes the result set.
func (r *ResultSet) Unmarshal(raw []byte) error {
	if len(raw) == 0 {
		r.Results = nil
		return nil
	}
	return resultCodec.UnmarshalBinaryBare(raw, r)
}

// ResultsFromKeys returns a ResultSet of all keys given a set of models.
func ResultsFromKeys(models []quorum.Model) *ResultSet {
	res := make([][]byte, len(models))
	for i, m := range models {
		res[i] = m.Key
	}
	return &ResultSet{Results: res}
}

// ResultsFromValues returns a ResultSet of all values given a set of
// models.
func ResultsFromValues(models []quorum.Model) *ResultSet {
	res := make([][]byte, len(models))
	for i, m := range models {
		res[i] = m.Value
	}
	return &ResultSet{Results: res}
}

// JoinResults inverts ResultsFromKeys and ResultsFromValues and makes then
// a consistent whole again.
func JoinResults(keys, values *ResultSet) ([]quorum.Model, error) {
	kref, vref := keys.Results, values.Results
	if len(kref) != len(vref) {
		return nil, errors.Wrap(errors.ErrInvalidModel, "mismatched result set size")
	}
	mods := make([]quorum.Model, len(kref))
	for i := range mods {
		mods[i] = quorum.Model{
			Key:   kref[i],
			Value: vref[i],
		}
	}
	return mods, nil
}

// DecodeQueryResponse rebuilds the models of a query response.
func DecodeQueryResponse(key, value []byte) ([]quorum.Model, error) {
	var keys, values ResultSet
	if err := keys.Unmarshal(key); err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "keys")
	}
	if err := values.Unmarshal(value); err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "values")
	}
	return JoinResults(&keys, &values)
}
