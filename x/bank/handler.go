package bank

import (
	"context"
	"fmt"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/errors"
	cmn "github.com/tendermint/tendermint/libs/common"
)

// RegisterRoutes will instantiate and register all handlers in this
// package.
func RegisterRoutes(r quorum.Registry, c Controller) {
	r.Handle(pathSendMsg, SendHandler{control: c})
}

// RegisterQuery registers "/balances", listing every balance of an owner,
// and "/tokens", listing only the token balances.
func RegisterQuery(qr quorum.QueryRouter, c Controller) {
	qr.Register("/balances", balanceQuery{control: c})
	qr.Register("/tokens", balanceQuery{control: c, tokensOnly: true})
}

// SendHandler will handle sending coins.
type SendHandler struct {
	control Controller
}

var _ quorum.Handler = SendHandler{}

// Check verifies the message is well formed, signed by the source and
// covered by its balance.
func (h SendHandler) Check(ctx context.Context, db quorum.KVStore, msg quorum.Msg) error {
	m, err := h.validate(ctx, msg)
	if err != nil {
		return err
	}
	have, err := h.control.Balance(db, m.From, m.Mint)
	if err != nil {
		return err
	}
	if have < m.Amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "%s holds %d, needs %d", m.From, have, m.Amount)
	}
	return nil
}

// Deliver moves the funds.
func (h SendHandler) Deliver(ctx context.Context, db quorum.KVStore, msg quorum.Msg) (*quorum.DeliverResult, error) {
	m, err := h.validate(ctx, msg)
	if err != nil {
		return nil, err
	}
	if err := h.control.Transfer(db, m.From, m.To, m.Mint, m.Amount); err != nil {
		return nil, err
	}
	tags := []cmn.KVPair{
		{Key: []byte("sender"), Value: []byte(m.From.String())},
		{Key: []byte("recipient"), Value: []byte(m.To.String())},
		{Key: []byte("amount"), Value: []byte(fmt.Sprint(m.Amount))},
	}
	return &quorum.DeliverResult{Tags: tags}, nil
}

func (h SendHandler) validate(ctx context.Context, msg quorum.Msg) (*SendMsg, error) {
	m, ok := msg.(*SendMsg)
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidType, "%T", msg)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !quorum.HasSigner(ctx, m.From) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "account owner signature missing")
	}
	return m, nil
}

// balanceQuery returns the balances of the owner given as query data, one
// model per coin. The key is the store key of the balance, the value the
// encoded Coin.
type balanceQuery struct {
	control    Controller
	tokensOnly bool
}

func (q balanceQuery) Query(db quorum.ReadOnlyKVStore, mod string, data []byte) ([]quorum.Model, error) {
	owner := quorum.Address(data)
	if err := owner.Validate(); err != nil {
		return nil, errors.Wrap(err, "owner")
	}
	coins, err := q.control.Coins(db, owner)
	if err != nil {
		return nil, err
	}
	models := make([]quorum.Model, 0, len(coins))
	for _, c := range coins {
		if q.tokensOnly && c.IsNative() {
			continue
		}
		raw, err := q.control.cdc.MarshalBinaryBare(c)
		if err != nil {
			return nil, errors.Wrap(errors.WithKind(errors.ErrHuman, err), "encode balance")
		}
		models = append(models, quorum.Pair(BalanceKey(owner, c.Mint), raw))
	}
	return models, nil
}
