/*
Package quorum defines the common types shared by the ledger application,
its extensions and the clients: addresses and their derivation, the
transaction envelope and the interfaces used to process messages.

Block information and the authenticated signers of a transaction are passed
through context.Context between the application and the handlers. For every
value stored there is a pair of functions

  WithXYZ(context.Context, T) context.Context
  XYZ(context.Context) (T, bool)
*/
package quorum

import (
	"context"

	"github.com/tendermint/tendermint/libs/log"
)

// DefaultLogger is used for all context that have not set anything
// themselves.
var DefaultLogger = log.NewNopLogger()

type contextKey int

const (
	contextKeyBlock contextKey = iota
	contextKeySigners
	contextKeyLogger
)

// BlockInfo describes the block within which a transaction is processed.
type BlockInfo struct {
	ChainID string
	Height  int64
	Time    UnixTime
}

// WithBlockInfo returns a context carrying given block information.
func WithBlockInfo(ctx context.Context, info BlockInfo) context.Context {
	return context.WithValue(ctx, contextKeyBlock, info)
}

// GetBlockInfo returns the block information stored in the context.
func GetBlockInfo(ctx context.Context) (BlockInfo, bool) {
	info, ok := ctx.Value(contextKeyBlock).(BlockInfo)
	return info, ok
}

// BlockTime returns the time of the block being processed. Zero time and
// false is returned if the context does not carry block information.
func BlockTime(ctx context.Context) (UnixTime, bool) {
	info, ok := GetBlockInfo(ctx)
	if !ok {
		return 0, false
	}
	return info.Time, true
}

// WithSigners returns a context that declares exactly given addresses as
// authorizing the processed message. Signers set by a parent context are
// not inherited, so that messages executed on behalf of an account only
// carry the authority of that account.
func WithSigners(ctx context.Context, signers ...Address) context.Context {
	return context.WithValue(ctx, contextKeySigners, signers)
}

// Signers returns all addresses authorizing the processed message.
func Signers(ctx context.Context) []Address {
	signers, _ := ctx.Value(contextKeySigners).([]Address)
	return signers
}

// HasSigner returns true if given address authorized the processed message.
func HasSigner(ctx context.Context, addr Address) bool {
	for _, s := range Signers(ctx) {
		if s.Equals(addr) {
			return true
		}
	}
	return false
}

// WithLogger returns a context carrying given logger.
func WithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, contextKeyLogger, logger)
}

// Logger returns the logger stored in the context or the default one.
func Logger(ctx context.Context) log.Logger {
	if l, ok := ctx.Value(contextKeyLogger).(log.Logger); ok {
		return l
	}
	return DefaultLogger
}
