package client

import (
	"context"
	"time"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/crypto"
	"github.com/iov-one/quorum/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raulk/clock"
	amino "github.com/tendermint/go-amino"
	"github.com/tendermint/tendermint/libs/log"
)

const (
	// DefaultBudget is how long a Broadcaster tries to get a transaction
	// delivered.
	DefaultBudget = 90 * time.Second

	// DefaultInterval is the minimum time between two submissions of the
	// same transaction.
	DefaultInterval = time.Second
)

// Broadcaster signs transactions and delivers them to a ledger.
//
// Delivery is idempotent: a signed transaction is identified by the hash
// of its bytes and the ledger processes given bytes at most once, so the
// same bytes are submitted again and again until the ledger records an
// outcome. Faults reported by the ledger application are final and never
// retried.
type Broadcaster struct {
	ledger   Ledger
	cdc      *amino.Codec
	clock    clock.Clock
	logger   log.Logger
	budget   time.Duration
	interval time.Duration
	metrics  *broadcastMetrics
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithClock sets the clock used for the budget and pacing.
func WithClock(c clock.Clock) BroadcasterOption {
	return func(b *Broadcaster) { b.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) BroadcasterOption {
	return func(b *Broadcaster) { b.logger = l }
}

// WithBudget sets how long a transaction delivery may take.
func WithBudget(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) { b.budget = d }
}

// WithInterval sets the minimum time between two submissions.
func WithInterval(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) { b.interval = d }
}

// WithRegisterer registers the broadcaster metrics with r. Several
// broadcasters may use the same registerer.
func WithRegisterer(r prometheus.Registerer) BroadcasterOption {
	return func(b *Broadcaster) { b.metrics.register(r) }
}

// NewBroadcaster returns a broadcaster delivering to given ledger. The
// codec must be the one of the application, see app.MakeCodec.
func NewBroadcaster(l Ledger, cdc *amino.Codec, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		ledger:   l,
		cdc:      cdc,
		clock:    clock.New(),
		logger:   log.NewNopLogger(),
		budget:   DefaultBudget,
		interval: DefaultInterval,
		metrics:  newBroadcastMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Clock returns the clock of the broadcaster.
func (b *Broadcaster) Clock() clock.Clock {
	return b.clock
}

// Submit builds a transaction of given messages, signs it with every
// signer and delivers it. The first signer pays the fee.
//
// A fault reported by the ledger is returned as ErrBroadcastRejected, the
// ledger error kind being preserved. ErrBroadcastTimeout is returned when
// the ledger did not record an outcome within the budget. In that case the
// transaction may still be delivered later.
func (b *Broadcaster) Submit(ctx context.Context, msgs []quorum.Msg, signers ...crypto.Signer) (quorum.TxID, error) {
	deadline := b.clock.Now().Add(b.budget)
	raw, err := b.sign(ctx, deadline, msgs, signers)
	if err != nil {
		return quorum.TxID{}, err
	}
	return b.deliver(ctx, deadline, raw)
}

// Sign builds and signs a transaction of given messages against the
// latest checkpoint. The returned bytes can be passed to Broadcast.
func (b *Broadcaster) Sign(ctx context.Context, msgs []quorum.Msg, signers ...crypto.Signer) ([]byte, error) {
	return b.sign(ctx, b.clock.Now().Add(b.budget), msgs, signers)
}

// Broadcast delivers an already signed transaction. Broadcasting the same
// bytes again is safe and returns the same id.
func (b *Broadcaster) Broadcast(ctx context.Context, raw []byte) (quorum.TxID, error) {
	return b.deliver(ctx, b.clock.Now().Add(b.budget), raw)
}

func (b *Broadcaster) sign(ctx context.Context, deadline time.Time, msgs []quorum.Msg, signers []crypto.Signer) ([]byte, error) {
	if len(signers) == 0 {
		return nil, errors.Wrap(errors.ErrUnauthorized, "no signer")
	}
	cp, err := b.checkpoint(ctx, deadline)
	if err != nil {
		return nil, err
	}
	if err := quorum.ValidateMsgs(msgs); err != nil {
		return nil, err
	}
	tx := &quorum.Tx{
		Payer:      signers[0].Address(),
		Checkpoint: cp.Hash,
		Msgs:       msgs,
	}
	if err := app.Sign(b.cdc, cp.ChainID, tx, signers...); err != nil {
		return nil, err
	}
	return app.EncodeTx(b.cdc, tx)
}

// checkpoint fetches the latest checkpoint. Network failures are retried
// until the deadline.
func (b *Broadcaster) checkpoint(ctx context.Context, deadline time.Time) (*Checkpoint, error) {
	for {
		started := b.clock.Now()
		cp, err := b.ledger.LatestCheckpoint(ctx)
		if err == nil {
			return cp, nil
		}
		if !errors.ErrNetwork.Is(err) {
			return nil, errors.Wrap(err, "checkpoint")
		}
		b.logger.Debug("Checkpoint not available", "err", err)
		if err := b.pause(ctx, started, deadline); err != nil {
			return nil, err
		}
	}
}

// deliver submits raw until the ledger records an outcome.
func (b *Broadcaster) deliver(ctx context.Context, deadline time.Time, raw []byte) (quorum.TxID, error) {
	id := quorum.NewTxID(raw)
	logger := b.logger.With("tx", id.String())

	for attempt := 1; ; attempt++ {
		started := b.clock.Now()
		b.metrics.attempts.Inc()

		err := b.ledger.Submit(ctx, raw)
		switch {
		case err == nil:
			logger.Debug("Transaction accepted", "attempt", attempt)
		case errors.ErrAlreadyProcessed.Is(err):
			// An earlier copy reached the ledger.
			logger.Debug("Transaction known", "attempt", attempt)
		case errors.ErrNetwork.Is(err):
			logger.Debug("Submission failed", "attempt", attempt, "err", err)
		case ctx.Err() != nil:
			b.metrics.outcome("cancelled")
			return id, errors.Wrap(ctx.Err(), "broadcast")
		default:
			logger.Info("Transaction rejected", "attempt", attempt, "err", err)
			b.metrics.outcome("rejected")
			return id, rejected(err)
		}

		status, err := b.ledger.Status(ctx, id)
		switch {
		case err == nil:
			if err := status.Err(); err != nil {
				logger.Info("Transaction failed", "height", status.Height, "err", err)
				b.metrics.outcome("rejected")
				return id, rejected(err)
			}
			logger.Info("Transaction delivered", "height", status.Height, "attempts", attempt)
			b.metrics.outcome("delivered")
			return id, nil
		case errors.ErrNotFound.Is(err), errors.ErrNetwork.Is(err):
			// Not delivered yet.
		default:
			logger.Debug("Status not available", "err", err)
		}

		if err := b.pause(ctx, started, deadline); err != nil {
			if errors.ErrBroadcastTimeout.Is(err) {
				logger.Info("Transaction not delivered in time", "attempts", attempt)
				b.metrics.outcome("timeout")
			} else {
				b.metrics.outcome("cancelled")
			}
			return id, err
		}
	}
}

// pause waits until an interval passed since started. It fails when the
// deadline is reached first or when the context is done.
func (b *Broadcaster) pause(ctx context.Context, started, deadline time.Time) error {
	now := b.clock.Now()
	if !now.Before(deadline) {
		return errors.Wrapf(errors.ErrBroadcastTimeout, "no outcome after %s", b.budget)
	}
	next := started.Add(b.interval)
	if next.After(deadline) {
		next = deadline
	}
	if wait := next.Sub(now); wait > 0 {
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "broadcast")
		case <-b.clock.After(wait):
		}
	}
	if !b.clock.Now().Before(deadline) {
		return errors.Wrapf(errors.ErrBroadcastTimeout, "no outcome after %s", b.budget)
	}
	return nil
}

func rejected(err error) error {
	return errors.Wrap(errors.WithKind(errors.ErrBroadcastRejected, err), "broadcast")
}

type broadcastMetrics struct {
	attempts prometheus.Counter
	outcomes *prometheus.CounterVec
}

func newBroadcastMetrics() *broadcastMetrics {
	return &broadcastMetrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quorum",
			Subsystem: "broadcast",
			Name:      "attempts_total",
			Help:      "Number of transaction submissions.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorum",
			Subsystem: "broadcast",
			Name:      "outcomes_total",
			Help:      "Number of broadcasts by outcome.",
		}, []string{"result"}),
	}
}

// register adds the metrics to r. Broadcasters sharing a registerer share
// the collectors registered first.
func (m *broadcastMetrics) register(r prometheus.Registerer) {
	if err := r.Register(m.attempts); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		m.attempts = are.ExistingCollector.(prometheus.Counter)
	}
	if err := r.Register(m.outcomes); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		m.outcomes = are.ExistingCollector.(*prometheus.CounterVec)
	}
}

func (m *broadcastMetrics) outcome(result string) {
	m.outcomes.WithLabelValues(result).Inc()
}
