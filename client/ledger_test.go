package client_test

import (
	"context"
	"testing"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/quorumtest"
	"github.com/iov-one/quorum/quorumtest/assert"
)

// staticQuerier answers every query with the same models.
type staticQuerier struct {
	path   string
	models []quorum.Model
}

func (q *staticQuerier) Query(ctx context.Context, path string, data []byte) ([]quorum.Model, error) {
	q.path = path
	return q.models, nil
}

func TestTxStatusFromQuery(t *testing.T) {
	cdc := app.MakeCodec()
	id := quorum.NewTxID([]byte("tx"))
	stored := cdc.MustMarshalBinaryBare(app.TxResult{Height: 7, Code: 24, Log: "threshold not met"})

	cases := map[string]struct {
		models     []quorum.Model
		wantErr    *errors.Error
		wantStatus *client.TxStatus
	}{
		"not delivered": {
			wantErr: errors.ErrNotFound,
		},
		"delivered": {
			models:     []quorum.Model{quorum.Pair(id[:], stored)},
			wantStatus: &client.TxStatus{ID: id, Height: 7, Code: 24, Log: "threshold not met"},
		},
		"corrupted result": {
			models:  []quorum.Model{quorum.Pair(id[:], []byte{0xff, 0x01})},
			wantErr: errors.ErrInvalidModel,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			q := &staticQuerier{models: tc.models}
			status, err := client.TxStatusFromQuery(context.Background(), q, cdc, id)
			assert.IsErr(t, tc.wantErr, err)
			assert.Equal(t, "/tx", q.path)
			assert.Equal(t, tc.wantStatus, status)
			if status != nil {
				assert.IsErr(t, errors.ErrThresholdNotMet, status.Err())
			}
		})
	}
}

func TestAccountFromQuery(t *testing.T) {
	addr := quorumtest.NewAddress()

	q := &staticQuerier{}
	_, err := client.AccountFromQuery(context.Background(), q, addr)
	assert.IsErr(t, errors.ErrNotFound, err)
	assert.Equal(t, "/accounts", q.path)

	q.models = []quorum.Model{quorum.Pair(addr, []byte("raw"))}
	raw, err := client.AccountFromQuery(context.Background(), q, addr)
	assert.Nil(t, err)
	assert.Equal(t, []byte("raw"), raw)
}
