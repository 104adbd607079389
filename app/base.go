package app

import (
	"context"
	"fmt"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	abci "github.com/tendermint/tendermint/abci/types"
	cmn "github.com/tendermint/tendermint/libs/common"
)

// BaseApp adds DeliverTx and CheckTx to the storage and query
// functionality of StoreApp.
type BaseApp struct {
	*StoreApp
	handler quorum.Handler
	debug   bool
}

var _ abci.Application = (*BaseApp)(nil)

// NewBaseApp constructs a basic abci application. Every message of a
// transaction is processed by handler, usually a Router.
func NewBaseApp(store *StoreApp, handler quorum.Handler, debug bool) *BaseApp {
	return &BaseApp{
		StoreApp: store,
		handler:  handler,
		debug:    debug,
	}
}

// DeliverTx - ABCI - authenticates the transaction and delivers all its
// messages atomically. The result of every authenticated transaction is
// recorded, so that the same bytes are never processed twice.
func (b *BaseApp) DeliverTx(raw []byte) abci.ResponseDeliverTx {
	tx, id, err := b.loadTx(raw)
	if err != nil {
		return b.deliverError(err)
	}
	db := b.DeliverStore()
	ctx, err := b.authenticate(db, tx, id)
	if err != nil {
		return b.deliverError(err)
	}
	logger := b.logger.With("call", "deliver_tx", "tx", id.String())

	res, err := b.process(ctx, db, tx, false)
	code, log := errors.ABCIInfo(err, b.debug)
	saveProcessed(b.cdc, db, id, TxResult{Height: b.block.Height, Code: code, Log: log})
	if err != nil {
		logger.Info("Transaction failed", "code", code, "err", err)
		return abci.ResponseDeliverTx{Code: code, Log: log}
	}
	logger.Debug("Transaction delivered", "msgs", len(tx.Msgs))
	return abci.ResponseDeliverTx{Data: res.Data, Tags: res.Tags}
}

// CheckTx - ABCI - runs the transaction against the mempool state. Every
// message is checked and then delivered, so that later messages observe
// the effects of earlier ones.
func (b *BaseApp) CheckTx(raw []byte) abci.ResponseCheckTx {
	tx, id, err := b.loadTx(raw)
	if err != nil {
		return b.checkError(err)
	}
	db := b.CheckStore()
	ctx, err := b.authenticate(db, tx, id)
	if err != nil {
		return b.checkError(err)
	}
	res, err := b.process(ctx, db, tx, true)
	if err != nil {
		return b.checkError(err)
	}
	saveProcessed(b.cdc, db, id, TxResult{Height: b.block.Height})
	return abci.ResponseCheckTx{Data: res.Data}
}

func (b *BaseApp) deliverError(err error) abci.ResponseDeliverTx {
	code, log := errors.ABCIInfo(err, b.debug)
	return abci.ResponseDeliverTx{Code: code, Log: log}
}

func (b *BaseApp) checkError(err error) abci.ResponseCheckTx {
	code, log := errors.ABCIInfo(err, b.debug)
	return abci.ResponseCheckTx{Code: code, Log: log}
}

// loadTx decodes the transaction and computes its id.
func (b *BaseApp) loadTx(raw []byte) (*quorum.Tx, quorum.TxID, error) {
	id := quorum.NewTxID(raw)
	tx, err := DecodeTx(b.cdc, raw)
	if err != nil {
		return nil, id, err
	}
	return tx, id, nil
}

// authenticate verifies the transaction was not processed before, refers
// to a recent checkpoint and carries a valid signature of every signer,
// the payer included. The returned context declares the signers.
func (b *BaseApp) authenticate(db quorum.ReadOnlyKVStore, tx *quorum.Tx, id quorum.TxID) (context.Context, error) {
	if isProcessed(db, id) {
		return nil, errors.Wrapf(errors.ErrAlreadyProcessed, "transaction %s", id)
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := b.validCheckpoint(db, tx.Checkpoint); err != nil {
		return nil, err
	}
	msg, err := SignBytes(b.cdc, b.chainID, tx)
	if err != nil {
		return nil, err
	}
	signers := make([]quorum.Address, 0, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		if !crypto.Verify(sig, msg) {
			return nil, errors.Wrapf(errors.ErrUnauthorized, "invalid signature %d", i)
		}
		signers = append(signers, sig.Signer())
	}
	ctx := quorum.WithBlockInfo(context.Background(), b.block)
	ctx = quorum.WithSigners(ctx, signers...)
	if !quorum.HasSigner(ctx, tx.Payer) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "payer did not sign")
	}
	ctx = quorum.WithLogger(ctx, b.logger)
	return ctx, nil
}

// process runs all messages on a cache of db. The cache is written only if
// every message succeeded. Panics of a handler are turned into errors.
func (b *BaseApp) process(ctx context.Context, db quorum.CacheableKVStore, tx *quorum.Tx, check bool) (res *quorum.DeliverResult, err error) {
	cache := db.CacheWrap()
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrPanic, "%v", r)
		}
		if err != nil {
			res = nil
			cache.Discard()
		} else {
			cache.Write()
		}
	}()

	res = &quorum.DeliverResult{}
	for i, msg := range tx.Msgs {
		if check {
			if err := b.handler.Check(ctx, cache, msg); err != nil {
				return nil, errors.Wrapf(err, "message %d (%s)", i, msg.Path())
			}
		}
		r, err := b.handler.Deliver(ctx, cache, msg)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d (%s)", i, msg.Path())
		}
		if r == nil {
			continue
		}
		if len(r.Data) != 0 {
			res.Data = r.Data
		}
		res.Tags = append(res.Tags, r.Tags...)
	}
	res.Tags = append(res.Tags, cmn.KVPair{Key: []byte("msgs"), Value: []byte(fmt.Sprint(len(tx.Msgs)))})
	return res, nil
}
