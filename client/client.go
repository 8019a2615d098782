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

// Package client ties an RPC client, the parameters of the chain it is
// connected to and a key store together to build, sign and broadcast
// transactions.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/keys"
	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/rpc"
	"github.com/hivekit/hivekit/transaction"
)

var log = _log.New("client")

// Client broadcasts transactions signed by Keys to the chain RPC is
// connected to.
type Client struct {
	RPC   *rpc.Client
	Chain chain.Params
	Keys  transaction.KeyStore

	// Expiration is added to the head block time. Zero uses
	// transaction.DefaultExpiration.
	Expiration time.Duration
}

// New identifies the chain of the node rc is connected to and returns a
// Client for it. A nil ks can only broadcast transactions that are already
// signed.
func New(ctx context.Context, rc *rpc.Client, ks transaction.KeyStore) (*Client, error) {
	p, err := rc.Chain(ctx)
	if err != nil {
		return nil, err
	}
	log.Debugf("Connected to %v through %v", p, rc.URL())
	return &Client{RPC: rc, Chain: p, Keys: ks}, nil
}

// Operation builds an operation with this chain's assets and key prefix.
func (c *Client) Operation(name string, fields operation.Fields) (operation.Operation, error) {
	return operation.New(c.Chain, name, fields)
}

// Prepare builds an unsigned transaction referring to the current head
// block.
func (c *Client) Prepare(ctx context.Context,
	ops ...operation.Operation) (*transaction.Transaction, error) {
	if len(ops) == 0 {
		return nil, transaction.ErrNoOperations
	}
	props, err := c.RPC.GetDynamicGlobalProperties(ctx)
	if err != nil {
		return nil, err
	}
	return transaction.Prepare(props.Reference(), c.Expiration, ops...)
}

// Sign signs tx with the keys of signers.
func (c *Client) Sign(tx *transaction.Transaction, signers ...keys.PublicKey) error {
	if c.Keys == nil {
		return fmt.Errorf("no key store")
	}
	return tx.SignWith(c.Chain.ChainID, c.Keys, signers...)
}

// Broadcast prepares a transaction of ops, signs it with the keys of
// signers and broadcasts it.
func (c *Client) Broadcast(ctx context.Context, signers []keys.PublicKey,
	sync bool, ops ...operation.Operation) (rpc.BroadcastResult, error) {
	tx, err := c.Prepare(ctx, ops...)
	if err != nil {
		return rpc.BroadcastResult{}, err
	}
	if err := c.Sign(tx, signers...); err != nil {
		return rpc.BroadcastResult{}, err
	}
	res, err := c.RPC.BroadcastTransaction(ctx, tx, sync)
	if err != nil {
		return rpc.BroadcastResult{}, err
	}
	log.Infof("Broadcast transaction %v", res.ID)
	return res, nil
}
