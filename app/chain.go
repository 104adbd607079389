package app

import "github.com/iov-one/quorum"

// ChainInitializers lets you initialize many extensions with one function.
type ChainInitializers []quorum.Initializer

var _ quorum.Initializer = ChainInitializers{}

// FromGenesis calls every initializer in order, stopping on the first
// error.
func (c ChainInitializers) FromGenesis(opts quorum.Options, db quorum.KVStore) error {
	for _, init := range c {
		if err := init.FromGenesis(opts, db); err != nil {
			return err
		}
	}
	return nil
}
