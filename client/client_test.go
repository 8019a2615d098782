// MIT License
//
// Copyright 2018 Canonical Ledgers, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS
// IN THE SOFTWARE.

package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	jrpc "github.com/AdamSLevy/jsonrpc2/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivekit/hivekit/chain"
	. "github.com/hivekit/hivekit/client"
	"github.com/hivekit/hivekit/keys"
	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/rpc"
	"github.com/hivekit/hivekit/transaction"
	"github.com/hivekit/hivekit/wallet"
)

var alice = keys.FromPassword("alice", "active", "password")

type testnet struct {
	mu  sync.Mutex
	txs []*transaction.Transaction
}

func (n *testnet) Handler() http.Handler {
	handler := jrpc.HTTPRequestHandler(jrpc.MethodMap{
		"condenser_api.get_config": func(json.RawMessage) interface{} {
			return map[string]string{
				"HIVE_BLOCKCHAIN_VERSION": "1.27.0",
				"HIVE_CHAIN_ID":           chain.HiveTestnet.ChainID.String(),
				"HIVE_ADDRESS_PREFIX":     "TST",
			}
		},
		"condenser_api.get_dynamic_global_properties": func(
			json.RawMessage) interface{} {
			return map[string]interface{}{
				"head_block_number": 99830,
				"head_block_id":     "000185f685abf4dc7a4f0e2bd5b0f9a3c4e7c11f",
				"time":              "2016-04-06T08:29:00",
			}
		},
		"condenser_api.broadcast_transaction_synchronous": func(
			params json.RawMessage) interface{} {
			var args []json.RawMessage
			if err := json.Unmarshal(params, &args); err != nil ||
				len(args) != 1 {
				return jrpc.Error{Code: -32602, Message: "bad params"}
			}
			tx, err := transaction.ParseJSON(args[0], chain.HiveTestnet)
			if err != nil {
				return jrpc.Error{Code: 1, Message: err.Error()}
			}
			if _, err := tx.Verify(chain.HiveTestnet.ChainID,
				alice.PublicKey("TST")); err != nil {
				return jrpc.Error{Code: 1, Message: "missing " +
					"required active authority: " + err.Error()}
			}
			id, _ := tx.ID()
			n.mu.Lock()
			n.txs = append(n.txs, tx)
			n.mu.Unlock()
			return map[string]interface{}{
				"id": id, "block_num": 99831, "trx_num": 0,
				"expired": false}
		},
	})
	return http.HandlerFunc(handler)
}

func newClient(t *testing.T, ks transaction.KeyStore) (*Client, *testnet) {
	node := &testnet{}
	srv := httptest.NewServer(node.Handler())
	t.Cleanup(srv.Close)
	rc, err := rpc.NewClient([]string{srv.URL}, &rpc.Options{
		NumRetries: 0, NumRetriesCall: 0, Log: _log.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	c, err := New(context.Background(), rc, ks)
	require.NoError(t, err)
	return c, node
}

func TestBroadcast(t *testing.T) {
	assert := assert.New(t)
	ks := wallet.New(wallet.NewMemory(), "TST")
	signer, err := ks.Add(alice)
	require.NoError(t, err)

	c, node := newClient(t, ks)
	assert.Equal(chain.HiveTestnet.Name, c.Chain.Name)

	op, err := c.Operation("transfer", operation.Fields{
		"from": "alice", "to": "bob", "amount": "1.2345 TESTS",
		"memo": "hi"})
	require.NoError(t, err)

	ctx := context.Background()
	res, err := c.Broadcast(ctx, []keys.PublicKey{signer}, true, op)
	require.NoError(t, err)
	assert.Equal(uint32(99831), res.BlockNum)

	require.Len(t, node.txs, 1)
	tx := node.txs[0]
	id, err := tx.ID()
	require.NoError(t, err)
	assert.Equal(id, res.ID)
	assert.Equal(uint16(34294), tx.RefBlockNum)
	assert.Equal(uint32(3707022213), tx.RefBlockPrefix)
	assert.Equal("2016-04-06T08:29:30", tx.Expiration.String())
	amount, _ := tx.Operations[0].Get("amount")
	assert.Equal("1.234 TESTS", amount.(operation.Amount).String())

	_, err = c.Broadcast(ctx, []keys.PublicKey{signer}, true)
	assert.Equal(transaction.ErrNoOperations, err)

	bob := keys.FromPassword("bob", "active", "password").PublicKey("TST")
	_, err = c.Broadcast(ctx, []keys.PublicKey{bob}, true, op)
	var missing transaction.MissingKeyError
	assert.True(errors.As(err, &missing), "%v", err)

	// Signed by a key the node does not expect.
	_, err = ks.Add(keys.FromPassword("bob", "active", "password"))
	require.NoError(t, err)
	_, err = c.Broadcast(ctx, []keys.PublicKey{bob}, true, op)
	assert.True(errors.Is(err, rpc.ErrMissingRequiredActiveAuthority),
		"%v", err)
}

func TestBroadcastLocked(t *testing.T) {
	enc := wallet.NewEncrypted(wallet.NewMemory())
	ks := wallet.New(enc, "TST")
	c, node := newClient(t, ks)

	op, err := c.Operation("vote", operation.Fields{
		"voter": "alice", "author": "bob", "permlink": "p",
		"weight": -10000})
	require.NoError(t, err)
	_, err = c.Broadcast(context.Background(),
		[]keys.PublicKey{alice.PublicKey("TST")}, true, op)
	assert.Equal(t, transaction.ErrWalletLocked, err)
	assert.Empty(t, node.txs)
}
