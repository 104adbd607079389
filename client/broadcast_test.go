package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/ledgertest"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
	"github.com/iov-one/quorum/x/bank"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raulk/clock"
	"github.com/stretchr/testify/require"
)

// fastBroadcaster retries every millisecond on the wall clock.
func fastBroadcaster(l client.Ledger, opts ...client.BroadcasterOption) *client.Broadcaster {
	opts = append([]client.BroadcasterOption{
		client.WithClock(clock.New()),
		client.WithInterval(time.Millisecond),
		client.WithBudget(5 * time.Second),
	}, opts...)
	return client.NewBroadcaster(l, app.MakeCodec(), opts...)
}

func nativeBalance(t *testing.T, l client.Ledger, owner quorum.Address) uint64 {
	t.Helper()
	coins, err := client.NewConfigStore(l, app.MakeCodec()).Balances(context.Background(), owner)
	require.NoError(t, err)
	for _, c := range coins {
		if c.IsNative() {
			return c.Amount
		}
	}
	return 0
}

func TestBroadcastSurvivesFaults(t *testing.T) {
	alice := quorumtest.NewKey()
	bob := quorumtest.NewAddress()

	cases := map[string]struct {
		faults        []ledgertest.Fault
		wantSubmitted int
	}{
		"no fault": {
			wantSubmitted: 1,
		},
		"network failure": {
			faults:        []ledgertest.Fault{ledgertest.NetworkFailure},
			wantSubmitted: 1,
		},
		"dropped": {
			faults:        []ledgertest.Fault{ledgertest.Drop},
			wantSubmitted: 2,
		},
		"lost response": {
			faults:        []ledgertest.Fault{ledgertest.LostResponse},
			wantSubmitted: 1,
		},
		"everything goes wrong": {
			faults: []ledgertest.Fault{
				ledgertest.Drop,
				ledgertest.NetworkFailure,
				ledgertest.Drop,
				ledgertest.LostResponse,
			},
			wantSubmitted: 3,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			node := ledgertest.NewNode(clock.New(), ledgertest.Funded(alice.Address(), 100))
			node.Inject(tc.faults...)
			b := fastBroadcaster(node)

			msg := &bank.SendMsg{From: alice.Address(), To: bob, Amount: 10}
			id, err := b.Submit(context.Background(), []quorum.Msg{msg}, alice)
			require.NoError(t, err)

			assert.Equal(t, 1, node.Deliveries(id))
			assert.Equal(t, tc.wantSubmitted, node.Submitted())
			assert.Equal(t, uint64(10), nativeBalance(t, node, bob))
			assert.Equal(t, uint64(90), nativeBalance(t, node, alice.Address()))
		})
	}
}

func TestBroadcastIsIdempotent(t *testing.T) {
	alice := quorumtest.NewKey()
	bob := quorumtest.NewAddress()
	node := ledgertest.NewNode(clock.New(), ledgertest.Funded(alice.Address(), 100))
	b := fastBroadcaster(node)

	msg := &bank.SendMsg{From: alice.Address(), To: bob, Amount: 10}
	raw, err := b.Sign(context.Background(), []quorum.Msg{msg}, alice)
	require.NoError(t, err)

	first, err := b.Broadcast(context.Background(), raw)
	require.NoError(t, err)
	second, err := b.Broadcast(context.Background(), raw)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, quorum.NewTxID(raw), first)
	assert.Equal(t, 1, node.Deliveries(first))
	assert.Equal(t, uint64(10), nativeBalance(t, node, bob))
}

func TestBroadcastRejected(t *testing.T) {
	alice := quorumtest.NewKey()
	node := ledgertest.NewNode(clock.New(), ledgertest.Funded(alice.Address(), 100))
	b := fastBroadcaster(node)

	msg := &bank.SendMsg{From: alice.Address(), To: quorumtest.NewAddress(), Amount: 1000}
	_, err := b.Submit(context.Background(), []quorum.Msg{msg}, alice)
	assert.IsErr(t, errors.ErrBroadcastRejected, err)
	assert.IsErr(t, errors.ErrInsufficientAmount, err)
	// Ledger faults are never retried.
	assert.Equal(t, 1, node.Submitted())

	// Invalid messages never reach the ledger.
	_, err = b.Submit(context.Background(), []quorum.Msg{&bank.SendMsg{}}, alice)
	assert.IsErr(t, errors.ErrInvalidAddress, err)
	_, err = b.Submit(context.Background(), []quorum.Msg{msg})
	assert.IsErr(t, errors.ErrUnauthorized, err)
	assert.Equal(t, 1, node.Submitted())
}

func TestBroadcastTimeout(t *testing.T) {
	alice := quorumtest.NewKey()
	node := ledgertest.NewNode(clock.New(), ledgertest.Funded(alice.Address(), 100))
	b := fastBroadcaster(node, client.WithBudget(50*time.Millisecond))

	// The transaction waits in the mempool until a block is produced.
	node.Inject(ledgertest.Hold)
	msg := &bank.SendMsg{From: alice.Address(), To: quorumtest.NewAddress(), Amount: 10}
	id, err := b.Submit(context.Background(), []quorum.Msg{msg}, alice)
	assert.IsErr(t, errors.ErrBroadcastTimeout, err)
	assert.Equal(t, 0, node.Deliveries(id))

	node.Commit()
	assert.Equal(t, 1, node.Deliveries(id))
}

func TestBroadcastCancel(t *testing.T) {
	alice := quorumtest.NewKey()
	node := ledgertest.NewNode(clock.New(), ledgertest.Funded(alice.Address(), 100))
	b := fastBroadcaster(node, client.WithInterval(time.Hour), client.WithBudget(2*time.Hour))

	node.Inject(ledgertest.NetworkFailure)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	msg := &bank.SendMsg{From: alice.Address(), To: quorumtest.NewAddress(), Amount: 10}
	_, err := b.Submit(ctx, []quorum.Msg{msg}, alice)
	require.Error(t, err)
	if errors.ErrBroadcastTimeout.Is(err) {
		t.Fatalf("cancellation reported as timeout: %v", err)
	}
	assert.Equal(t, context.DeadlineExceeded, pkgerrors.Cause(err))
}

func TestBroadcastMetrics(t *testing.T) {
	alice := quorumtest.NewKey()
	node := ledgertest.NewNode(clock.New(), ledgertest.Funded(alice.Address(), 100))
	reg := prometheus.NewRegistry()
	b := fastBroadcaster(node, client.WithRegisterer(reg))

	node.Inject(ledgertest.NetworkFailure)
	msg := &bank.SendMsg{From: alice.Address(), To: quorumtest.NewAddress(), Amount: 10}
	_, err := b.Submit(context.Background(), []quorum.Msg{msg}, alice)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			got[f.GetName()] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), got["quorum_broadcast_attempts_total"])
	assert.Equal(t, float64(1), got["quorum_broadcast_outcomes_total"])
}

func TestBroadcastersShareMetrics(t *testing.T) {
	alice := quorumtest.NewKey()
	node := ledgertest.NewNode(clock.New(), ledgertest.Funded(alice.Address(), 100))
	reg := prometheus.NewRegistry()

	for i := 0; i < 2; i++ {
		b := fastBroadcaster(node, client.WithRegisterer(reg))
		msg := &bank.SendMsg{From: alice.Address(), To: quorumtest.NewAddress(), Amount: 10}
		_, err := b.Submit(context.Background(), []quorum.Msg{msg}, alice)
		require.NoError(t, err)
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			got[f.GetName()] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(2), got["quorum_broadcast_attempts_total"])
	assert.Equal(t, float64(2), got["quorum_broadcast_outcomes_total"])
}
