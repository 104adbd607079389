/*
Package ledgertest provides an in-process ledger running the quorum
application, for tests of clients.

Every submitted transaction is checked and, unless a fault says otherwise,
delivered in a block of its own. Faults are injected per submission to
reproduce a lossy network: dropped transactions, failed requests and lost
responses.
*/
package ledgertest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/store/iavl"
	"github.com/iov-one/quorum/x/bank"
	"github.com/raulk/clock"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/log"
)

// ChainID is the chain id of every node.
const ChainID = "ledgertest"

// Fault changes how the node handles one submission.
type Fault int

const (
	// Drop accepts the transaction and then loses it. A block without it
	// is produced.
	Drop Fault = iota + 1
	// NetworkFailure fails the request before it reaches the node.
	NetworkFailure
	// LostResponse delivers the transaction and fails the request, as if
	// the response was lost on the way back.
	LostResponse
	// Hold accepts the transaction into the mempool. It is delivered with
	// the next block, see Commit.
	Hold
)

// Node is an in-process ledger. It is safe for concurrent use.
type Node struct {
	mu        sync.Mutex
	app       *app.BaseApp
	clock     clock.Clock
	height    int64
	blockTime time.Time
	mempool   [][]byte
	faults    []Fault
	submitted int
	delivered map[quorum.TxID]int
}

var _ client.Ledger = (*Node)(nil)

// NewNode returns a node with given genesis balances. Block times are
// read from clk.
func NewNode(clk clock.Clock, accounts ...bank.GenesisAccount) *Node {
	if accounts == nil {
		accounts = []bank.GenesisAccount{}
	}
	raw, err := json.Marshal(accounts)
	if err != nil {
		panic(err)
	}
	state, err := json.Marshal(quorum.Options{"bank": raw})
	if err != nil {
		panic(err)
	}
	n := &Node{
		app:       app.NewApplication(iavl.MockCommitStore(), log.NewNopLogger(), true),
		clock:     clk,
		delivered: make(map[quorum.TxID]int),
	}
	n.app.InitChain(abci.RequestInitChain{ChainId: ChainID, AppStateBytes: state})
	n.block()
	return n
}

// Funded returns a genesis account holding amount of the native currency.
func Funded(addr quorum.Address, amount uint64) bank.GenesisAccount {
	return bank.GenesisAccount{Address: addr, Coins: []bank.Coin{{Amount: amount}}}
}

// Inject queues faults. Each submission consumes the first queued fault.
func (n *Node) Inject(faults ...Fault) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.faults = append(n.faults, faults...)
}

// Submitted returns how many submissions reached the node.
func (n *Node) Submitted() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.submitted
}

// Deliveries returns how many times the transaction was delivered
// successfully.
func (n *Node) Deliveries(id quorum.TxID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delivered[id]
}

// Height returns the height of the last block.
func (n *Node) Height() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// Commit produces a block with every transaction of the mempool. A block
// is produced even if the mempool is empty.
func (n *Node) Commit() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.block()
}

// Credit adds funds to an account, in a block of its own.
func (n *Node) Credit(owner, mint quorum.Address, amount uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	ctrl := bank.NewController(n.app.Codec())
	if err := ctrl.Credit(n.app.DeliverStore(), owner, mint, amount); err != nil {
		return err
	}
	n.block()
	return nil
}

// block delivers the mempool in a new block. The caller must hold the
// lock.
func (n *Node) block() {
	n.height++
	n.blockTime = n.clock.Now()
	n.app.BeginBlock(abci.RequestBeginBlock{Header: abci.Header{
		ChainID: ChainID,
		Height:  n.height,
		Time:    n.blockTime,
	}})
	for _, raw := range n.mempool {
		res := n.app.DeliverTx(raw)
		if res.Code == 0 {
			n.delivered[quorum.NewTxID(raw)]++
		}
	}
	n.mempool = nil
	n.app.EndBlock(abci.RequestEndBlock{Height: n.height})
	n.app.Commit()
}

func (n *Node) GetAccount(ctx context.Context, addr quorum.Address) ([]byte, error) {
	return client.AccountFromQuery(ctx, n, addr)
}

func (n *Node) Query(ctx context.Context, path string, data []byte) ([]quorum.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	res := n.app.Query(abci.RequestQuery{Path: path, Data: data})
	n.mu.Unlock()
	if res.Code != 0 {
		return nil, errors.Wrapf(errors.ABCIError(res.Code, res.Log), "query %s", path)
	}
	return app.DecodeQueryResponse(res.Key, res.Value)
}

func (n *Node) LatestCheckpoint(ctx context.Context) (*client.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	chainID, height, hash := n.app.LastCheckpoint()
	return &client.Checkpoint{
		ChainID: chainID,
		Height:  height,
		Hash:    hash,
		Time:    n.clock.Now(),
	}, nil
}

func (n *Node) Submit(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	var fault Fault
	if len(n.faults) > 0 {
		fault, n.faults = n.faults[0], n.faults[1:]
	}
	if fault == NetworkFailure {
		return errors.Wrap(errors.ErrNetwork, "connection refused")
	}
	n.submitted++

	// Transactions are checked against the last block. When time moved on
	// and nothing is pending, the chain has produced empty blocks since.
	if len(n.mempool) == 0 && n.clock.Now().After(n.blockTime) {
		n.block()
	}
	res := n.app.CheckTx(raw)
	if res.Code != 0 {
		return errors.ABCIError(res.Code, res.Log)
	}
	switch fault {
	case Drop:
		// The chain moves on without the transaction.
		n.block()
		return nil
	case Hold:
		n.mempool = append(n.mempool, raw)
		return nil
	}
	n.mempool = append(n.mempool, raw)
	n.block()
	if fault == LostResponse {
		return errors.Wrap(errors.ErrNetwork, "connection reset")
	}
	return nil
}

func (n *Node) Status(ctx context.Context, id quorum.TxID) (*client.TxStatus, error) {
	return client.TxStatusFromQuery(ctx, n, n.app.Codec(), id)
}
