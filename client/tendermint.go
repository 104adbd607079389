package client

import (
	"context"
	"strings"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/errors"
	amino "github.com/tendermint/go-amino"
	cmn "github.com/tendermint/tendermint/libs/common"
	"github.com/tendermint/tendermint/mempool"
	rpcclient "github.com/tendermint/tendermint/rpc/client"
	ctypes "github.com/tendermint/tendermint/rpc/core/types"
	tmtypes "github.com/tendermint/tendermint/types"
)

// RPC is the subset of the tendermint rpc client used by TendermintLedger.
type RPC interface {
	ABCIQuery(path string, data cmn.HexBytes) (*ctypes.ResultABCIQuery, error)
	BroadcastTxSync(tx tmtypes.Tx) (*ctypes.ResultBroadcastTx, error)
	Status() (*ctypes.ResultStatus, error)
}

var _ RPC = (rpcclient.Client)(nil)

// NewHTTPConnection takes a URL and sends all requests to the remote node.
func NewHTTPConnection(remote string) rpcclient.Client {
	return rpcclient.NewHTTP(remote, "/websocket")
}

// TendermintLedger is a Ledger backed by a tendermint node running the
// quorum application.
type TendermintLedger struct {
	conn RPC
	cdc  *amino.Codec
}

var _ Ledger = (*TendermintLedger)(nil)

// NewTendermintLedger returns a ledger using given connection. The codec
// must be the one of the application, see app.MakeCodec.
func NewTendermintLedger(conn RPC, cdc *amino.Codec) *TendermintLedger {
	return &TendermintLedger{conn: conn, cdc: cdc}
}

func (t *TendermintLedger) GetAccount(ctx context.Context, addr quorum.Address) ([]byte, error) {
	return AccountFromQuery(ctx, t, addr)
}

func (t *TendermintLedger) Query(ctx context.Context, path string, data []byte) ([]quorum.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := t.conn.ABCIQuery(path, data)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetwork, "query %s: %s", path, err)
	}
	if res.Response.Code != 0 {
		return nil, errors.Wrapf(errors.ABCIError(res.Response.Code, res.Response.Log), "query %s", path)
	}
	return app.DecodeQueryResponse(res.Response.Key, res.Response.Value)
}

func (t *TendermintLedger) LatestCheckpoint(ctx context.Context) (*Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status, err := t.conn.Status()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetwork, "status: %s", err)
	}
	if len(status.SyncInfo.LatestAppHash) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidState, "no block committed yet")
	}
	return &Checkpoint{
		ChainID: status.NodeInfo.Network,
		Height:  status.SyncInfo.LatestBlockHeight,
		Hash:    status.SyncInfo.LatestAppHash,
		Time:    status.SyncInfo.LatestBlockTime,
	}, nil
}

func (t *TendermintLedger) Submit(ctx context.Context, tx []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := t.conn.BroadcastTxSync(tx)
	if err != nil {
		// The mempool refuses bytes it has seen recently.
		if strings.Contains(err.Error(), mempool.ErrTxInCache.Error()) {
			return errors.Wrap(errors.ErrAlreadyProcessed, "in mempool cache")
		}
		return errors.Wrapf(errors.ErrNetwork, "submit tx: %s", err)
	}
	// A check error means the transaction did not make it into the
	// mempool and will not make it into a block.
	if res.Code != 0 {
		return errors.ABCIError(res.Code, res.Log)
	}
	return nil
}

func (t *TendermintLedger) Status(ctx context.Context, id quorum.TxID) (*TxStatus, error) {
	return TxStatusFromQuery(ctx, t, t.cdc, id)
}
