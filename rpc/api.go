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

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/transaction"
)

// DynamicGlobalProperties is the subset of the chain state clients need to
// reference the head block and follow irreversibility.
type DynamicGlobalProperties struct {
	HeadBlockNumber          uint32     `json:"head_block_number"`
	HeadBlockID              string     `json:"head_block_id"`
	Time                     chain.Time `json:"time"`
	CurrentWitness           string     `json:"current_witness"`
	LastIrreversibleBlockNum uint32     `json:"last_irreversible_block_num"`
}

// Reference returns what transaction.Prepare needs from props.
func (props DynamicGlobalProperties) Reference() transaction.Reference {
	return transaction.Reference{
		HeadBlockNumber: props.HeadBlockNumber,
		HeadBlockID:     props.HeadBlockID,
		Time:            props.Time,
	}
}

func (c *Client) GetDynamicGlobalProperties(
	ctx context.Context) (DynamicGlobalProperties, error) {
	var props DynamicGlobalProperties
	err := c.Call(ctx, Request{Method: "get_dynamic_global_properties"},
		&props)
	return props, err
}

// GetConfig returns the node's chain constants.
func (c *Client) GetConfig(ctx context.Context) (map[string]json.RawMessage, error) {
	var config map[string]json.RawMessage
	err := c.Call(ctx, Request{Method: "get_config"}, &config)
	return config, err
}

// Version is the node software version.
type Version struct {
	BlockchainVersion string        `json:"blockchain_version"`
	Revision          string        `json:"steem_revision"`
	FCRevision        string        `json:"fc_revision"`
	ChainID           chain.Bytes32 `json:"chain_id"`
}

func (c *Client) GetVersion(ctx context.Context) (Version, error) {
	d, err := c.Dialect(ctx)
	if err != nil {
		return Version{}, err
	}
	r := Request{Method: "get_version"}
	if d == Legacy {
		r.API = "login_api"
	}
	var v Version
	err = c.Call(ctx, r, &v)
	return v, err
}

// BlockHeader is the header of a signed block.
type BlockHeader struct {
	Previous              string            `json:"previous"`
	Timestamp             chain.Time        `json:"timestamp"`
	Witness               string            `json:"witness"`
	TransactionMerkleRoot string            `json:"transaction_merkle_root"`
	Extensions            []json.RawMessage `json:"extensions"`
}

// Transaction is a transaction as included in a Block.
type Transaction struct {
	RefBlockNum    uint16            `json:"ref_block_num"`
	RefBlockPrefix uint32            `json:"ref_block_prefix"`
	Expiration     chain.Time        `json:"expiration"`
	Operations     []operation.Raw   `json:"operations"`
	Extensions     []json.RawMessage `json:"extensions"`
	Signatures     []string          `json:"signatures"`
	TransactionID  string            `json:"transaction_id"`
}

// Block is a signed block.
type Block struct {
	BlockHeader
	WitnessSignature string        `json:"witness_signature"`
	Transactions     []Transaction `json:"transactions"`
	BlockID          string        `json:"block_id"`
	SigningKey       string        `json:"signing_key"`
	TransactionIDs   []string      `json:"transaction_ids"`
}

// Number returns the block number, which is the big endian uint32 in the
// first four bytes of the block ID.
func (b Block) Number() (uint32, error) {
	if len(b.BlockID) < 8 {
		return 0, fmt.Errorf("block_id: too short: %q", b.BlockID)
	}
	n, err := strconv.ParseUint(b.BlockID[:8], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("block_id: %w", err)
	}
	return uint32(n), nil
}

// TransactionID returns the ID of the i-th transaction of b.
func (b Block) TransactionID(i int) string {
	if i < len(b.TransactionIDs) {
		return b.TransactionIDs[i]
	}
	if i < len(b.Transactions) {
		return b.Transactions[i].TransactionID
	}
	return ""
}

func blockRequest(num uint32) Request {
	return Request{Method: "get_block", Params: []interface{}{num}}
}

// decodeBlock returns nil for a null result.
func decodeBlock(raw json.RawMessage) (*Block, error) {
	var b *Block
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("get_block: %w", err)
	}
	return b, nil
}

// GetBlock returns block num, or nil if the node does not have it.
func (c *Client) GetBlock(ctx context.Context, num uint32) (*Block, error) {
	raw, err := c.CallRaw(ctx, blockRequest(num))
	if err != nil {
		return nil, err
	}
	return decodeBlock(raw)
}

// GetBlockHeader returns the header of block num, or nil if the node does
// not have it.
func (c *Client) GetBlockHeader(ctx context.Context,
	num uint32) (*BlockHeader, error) {
	var h *BlockHeader
	err := c.Call(ctx, Request{Method: "get_block_header",
		Params: []interface{}{num}}, &h)
	return h, err
}

// GetBlocksBatch fetches count blocks from start in one batch call. The
// result is shorter than count if the node answered fewer requests, and
// holds nil for blocks the node does not have.
func (c *Client) GetBlocksBatch(ctx context.Context,
	start, count uint32) ([]*Block, error) {
	rs := make([]Request, count)
	for i := range rs {
		rs[i] = blockRequest(start + uint32(i))
	}
	raws, err := c.Batch(ctx, rs...)
	if err != nil {
		return nil, err
	}
	blocks := make([]*Block, len(raws))
	for i, raw := range raws {
		if blocks[i], err = decodeBlock(raw); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

// Account is the subset of an account object most callers need. Raw holds
// the complete object.
type Account struct {
	ID            uint64          `json:"id"`
	Name          string          `json:"name"`
	MemoKey       string          `json:"memo_key"`
	JSONMetadata  string          `json:"json_metadata"`
	Balance       string          `json:"balance"`
	VestingShares string          `json:"vesting_shares"`
	Owner         json.RawMessage `json:"owner"`
	Active        json.RawMessage `json:"active"`
	Posting       json.RawMessage `json:"posting"`

	Raw json.RawMessage `json:"-"`
}

func (a *Account) UnmarshalJSON(data []byte) error {
	type account Account
	if err := json.Unmarshal(data, (*account)(a)); err != nil {
		return err
	}
	a.Raw = append(a.Raw[:0], data...)
	return nil
}

// GetAccounts looks up accounts by name. Unknown names are left out.
func (c *Client) GetAccounts(ctx context.Context,
	names ...string) ([]Account, error) {
	if names == nil {
		names = []string{}
	}
	var accounts []Account
	err := c.Call(ctx, Request{Method: "get_accounts",
		Params: []interface{}{names}}, &accounts)
	return accounts, err
}

// BroadcastResult is returned by a synchronous broadcast.
type BroadcastResult struct {
	ID       string `json:"id"`
	BlockNum uint32 `json:"block_num"`
	TrxNum   uint32 `json:"trx_num"`
	Expired  bool   `json:"expired"`
}

// BroadcastTransaction submits a signed transaction. With sync the call
// returns once the transaction is in a block. Otherwise only ID is set in
// the result.
func (c *Client) BroadcastTransaction(ctx context.Context,
	tx *transaction.Transaction, sync bool) (BroadcastResult, error) {
	if len(tx.Operations) == 0 {
		return BroadcastResult{}, transaction.ErrNoOperations
	}
	id, err := tx.ID()
	if err != nil {
		return BroadcastResult{}, err
	}
	d, err := c.Dialect(ctx)
	if err != nil {
		return BroadcastResult{}, err
	}
	r := Request{Method: "broadcast_transaction",
		Params: []interface{}{*tx}}
	if d == Legacy {
		r.API = "network_broadcast_api"
	}
	if !sync {
		if err := c.Call(ctx, r, nil); err != nil {
			return BroadcastResult{}, err
		}
		return BroadcastResult{ID: id}, nil
	}
	r.Method = "broadcast_transaction_synchronous"
	var res BroadcastResult
	if err := c.Call(ctx, r, &res); err != nil {
		return BroadcastResult{}, err
	}
	if res.ID == "" {
		res.ID = id
	}
	return res, nil
}
