package client

import (
	"context"
	"time"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/errors"
	amino "github.com/tendermint/go-amino"
)

// Ledger is the part of a node a client uses.
//
// Errors reported by the ledger application are rebuilt into the
// registered error kinds. A transport failure is reported as
// errors.ErrNetwork, the request may or may not have reached the node.
type Ledger interface {
	// GetAccount returns the raw account stored under given address, or
	// ErrNotFound.
	GetAccount(ctx context.Context, addr quorum.Address) ([]byte, error)

	// Query runs a query against the last committed state.
	Query(ctx context.Context, path string, data []byte) ([]quorum.Model, error)

	// LatestCheckpoint returns the state of the last committed block.
	LatestCheckpoint(ctx context.Context) (*Checkpoint, error)

	// Submit hands a signed transaction to the node. A nil error means
	// the transaction was accepted into the mempool, not that it was
	// delivered.
	Submit(ctx context.Context, tx []byte) error

	// Status returns the outcome of a delivered transaction, or
	// ErrNotFound while it is not part of a block.
	Status(ctx context.Context, id quorum.TxID) (*TxStatus, error)
}

// Checkpoint identifies a recent ledger state. A transaction binds the hash
// and is valid only while the checkpoint is recent enough.
type Checkpoint struct {
	ChainID string
	Height  int64
	Hash    []byte
	Time    time.Time
}

// TxStatus is the recorded outcome of a delivered transaction.
type TxStatus struct {
	ID     quorum.TxID
	Height int64
	Code   uint32
	Log    string
}

// Err returns the error the ledger reported, or nil on success.
func (s *TxStatus) Err() error {
	if s.Code == 0 {
		return nil
	}
	return errors.ABCIError(s.Code, s.Log)
}

// Querier runs queries against the last committed state.
type Querier interface {
	Query(ctx context.Context, path string, data []byte) ([]quorum.Model, error)
}

// AccountFromQuery implements Ledger.GetAccount with the "/accounts"
// query.
func AccountFromQuery(ctx context.Context, q Querier, addr quorum.Address) ([]byte, error) {
	models, err := q.Query(ctx, "/accounts", addr)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "account %s", addr)
	}
	return models[0].Value, nil
}

// TxStatusFromQuery implements Ledger.Status with the "/tx" query.
func TxStatusFromQuery(ctx context.Context, q Querier, cdc *amino.Codec, id quorum.TxID) (*TxStatus, error) {
	models, err := q.Query(ctx, "/tx", id[:])
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "transaction %s", id)
	}
	var res app.TxResult
	if err := cdc.UnmarshalBinaryBare(models[0].Value, &res); err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrInvalidModel, err), "tx result")
	}
	return &TxStatus{ID: id, Height: res.Height, Code: res.Code, Log: res.Log}, nil
}
