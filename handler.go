package quorum

import (
	"context"
	"encoding/json"

	"github.com/iov-one/quorum/errors"
	cmn "github.com/tendermint/tendermint/libs/common"
)

// Msg is a message for the ledger to take an action (make a state
// transition). It is just the request and must be validated by the
// Handler. All authentication information is in the wrapping Tx.
type Msg interface {
	// Path returns the message path. It is used by the Router to locate
	// the proper Handler.
	//
	// Must be alphanumeric [0-9A-Za-z_\-/]+
	Path() string

	// Validate performs a stateless check of the message content.
	Validate() error
}

// Handler processes a few specific messages. Check is called when a
// transaction enters the mempool, Deliver when it is included in a block.
//
// The context carries block information and the authenticated signers.
type Handler interface {
	Check(ctx context.Context, store KVStore, msg Msg) error
	Deliver(ctx context.Context, store KVStore, msg Msg) (*DeliverResult, error)
}

// DeliverResult is returned by a successfully delivered message.
type DeliverResult struct {
	// Data is returned to the client. Handlers creating an account return
	// its address here.
	Data []byte

	// Tags are indexed by the node and can be used to search for
	// transactions.
	Tags []cmn.KVPair
}

// Registry is an interface to register your handler, the setup side of a
// Router.
type Registry interface {
	Handle(path string, h Handler)
}

// Dispatcher routes a message to its handler. Handlers that execute inner
// messages on behalf of an account (for example a vault transaction) use it
// to process them.
type Dispatcher interface {
	Dispatch(ctx context.Context, store KVStore, msg Msg) (*DeliverResult, error)
}

// Initializer implementations are used to initialize extensions from
// genesis file contents.
type Initializer interface {
	FromGenesis(opts Options, store KVStore) error
}

// Options are the genesis options. Each extension can look up its key and
// parse the json as desired.
type Options map[string]json.RawMessage

// ReadOptions reads the values stored under a given key, and parses the
// json into the given obj. Returns an error if it cannot parse.
// Noop and no error if key is missing.
func (o Options) ReadOptions(key string, obj interface{}) error {
	msg := o[key]
	if len(msg) == 0 {
		return nil
	}
	if err := json.Unmarshal(msg, obj); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "genesis %q: %s", key, err)
	}
	return nil
}

// ValidateMsgs calls Validate on every message and combines the errors.
func ValidateMsgs(msgs []Msg) error {
	if len(msgs) == 0 {
		return errors.Wrap(errors.ErrInvalidMsg, "no messages")
	}
	var err error
	for _, m := range msgs {
		if m == nil {
			err = errors.Append(err, errors.Wrap(errors.ErrInvalidMsg, "nil message"))
			continue
		}
		err = errors.Append(err, m.Validate())
	}
	return err
}
