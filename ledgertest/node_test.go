package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
	"github.com/iov-one/quorum/x/bank"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
)

func signedSend(t *testing.T, n *Node, from *crypto.PrivateKey, to quorum.Address, amount uint64) []byte {
	t.Helper()
	cp, err := n.LatestCheckpoint(context.Background())
	require.NoError(t, err)
	tx := &quorum.Tx{
		Payer:      from.Address(),
		Checkpoint: cp.Hash,
		Msgs:       []quorum.Msg{&bank.SendMsg{From: from.Address(), To: to, Amount: amount}},
	}
	cdc := app.MakeCodec()
	require.NoError(t, app.Sign(cdc, cp.ChainID, tx, from))
	raw, err := app.EncodeTx(cdc, tx)
	require.NoError(t, err)
	return raw
}

func balance(t *testing.T, n *Node, owner quorum.Address) uint64 {
	t.Helper()
	models, err := n.Query(context.Background(), "/balances", owner)
	require.NoError(t, err)
	for _, m := range models {
		var c bank.Coin
		require.NoError(t, app.MakeCodec().UnmarshalBinaryBare(m.Value, &c))
		if c.IsNative() {
			return c.Amount
		}
	}
	return 0
}

func TestNodeFaults(t *testing.T) {
	alice := quorumtest.NewKey()
	bob := quorumtest.NewAddress()

	cases := map[string]struct {
		fault          Fault
		wantErr        *errors.Error
		wantDeliveries int
		wantSubmitted  int
	}{
		"no fault": {
			wantDeliveries: 1,
			wantSubmitted:  1,
		},
		"drop": {
			fault:          Drop,
			wantDeliveries: 0,
			wantSubmitted:  1,
		},
		"network failure": {
			fault:          NetworkFailure,
			wantErr:        errors.ErrNetwork,
			wantDeliveries: 0,
			wantSubmitted:  0,
		},
		"lost response": {
			fault:          LostResponse,
			wantErr:        errors.ErrNetwork,
			wantDeliveries: 1,
			wantSubmitted:  1,
		},
		"hold": {
			fault:          Hold,
			wantDeliveries: 0,
			wantSubmitted:  1,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			n := NewNode(clock.New(), Funded(alice.Address(), 100))
			if tc.fault != 0 {
				n.Inject(tc.fault)
			}
			raw := signedSend(t, n, alice, bob, 10)
			err := n.Submit(context.Background(), raw)
			if tc.wantErr == nil {
				assert.Nil(t, err)
			} else {
				assert.IsErr(t, tc.wantErr, err)
			}
			id := quorum.NewTxID(raw)
			assert.Equal(t, tc.wantDeliveries, n.Deliveries(id))
			assert.Equal(t, tc.wantSubmitted, n.Submitted())

			_, err = n.Status(context.Background(), id)
			if tc.wantDeliveries == 0 {
				assert.IsErr(t, errors.ErrNotFound, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestNodeHoldAndCommit(t *testing.T) {
	alice := quorumtest.NewKey()
	bob := quorumtest.NewAddress()
	mock := clock.NewMock()
	mock.Set(time.Unix(1560000000, 0))
	n := NewNode(mock, Funded(alice.Address(), 100))

	n.Inject(Hold)
	raw := signedSend(t, n, alice, bob, 10)
	require.NoError(t, n.Submit(context.Background(), raw))

	// The mempool refuses the same bytes.
	assert.IsErr(t, errors.ErrAlreadyProcessed, n.Submit(context.Background(), raw))

	height := n.Height()
	mock.Add(5 * time.Second)
	n.Commit()
	assert.Equal(t, height+1, n.Height())

	id := quorum.NewTxID(raw)
	assert.Equal(t, 1, n.Deliveries(id))
	status, err := n.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, status.Err())
	assert.Equal(t, n.Height(), status.Height)
	assert.Equal(t, uint64(10), balance(t, n, bob))

	// Delivered transactions are refused too.
	assert.IsErr(t, errors.ErrAlreadyProcessed, n.Submit(context.Background(), raw))
	assert.Equal(t, 1, n.Deliveries(id))
}

func TestNodeCredit(t *testing.T) {
	owner := quorumtest.NewAddress()
	n := NewNode(clock.New())
	require.NoError(t, n.Credit(owner, nil, 42))
	assert.Equal(t, uint64(42), balance(t, n, owner))

	_, err := n.GetAccount(context.Background(), owner)
	assert.IsErr(t, errors.ErrNotFound, err)
}
