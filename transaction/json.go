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

package transaction

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/keys"
	"github.com/hivekit/hivekit/operation"
)

// DefaultExpiration is how far past the head block time Prepare sets the
// expiration.
const DefaultExpiration = 30 * time.Second

// Reference is the part of the chain's dynamic global properties a new
// transaction must refer to.
type Reference struct {
	HeadBlockNumber uint32
	HeadBlockID     string
	Time            chain.Time
}

// RefBlock returns ref_block_num and ref_block_prefix for ref. The prefix
// is the little endian uint32 at bytes [4:8] of the head block ID.
func (ref Reference) RefBlock() (uint16, uint32, error) {
	id, err := hex.DecodeString(ref.HeadBlockID)
	if err != nil {
		return 0, 0, fmt.Errorf("head_block_id: %w", err)
	}
	if len(id) < 8 {
		return 0, 0, fmt.Errorf("head_block_id: too short: %q",
			ref.HeadBlockID)
	}
	return uint16(ref.HeadBlockNumber & 0xffff),
		binary.LittleEndian.Uint32(id[4:8]), nil
}

// Prepare builds a transaction referring to the head block of ref that
// expires expiration after the head block time. A zero expiration uses
// DefaultExpiration.
func Prepare(ref Reference, expiration time.Duration,
	ops ...operation.Operation) (*Transaction, error) {
	num, prefix, err := ref.RefBlock()
	if err != nil {
		return nil, err
	}
	if expiration == 0 {
		expiration = DefaultExpiration
	}
	for _, op := range ops {
		if op.Type.IsVirtual() {
			return nil, fmt.Errorf("%w: %v",
				operation.ErrVirtualOperation, op.Type)
		}
	}
	return Build(num, prefix, ref.Time.Add(expiration), ops...), nil
}

type txJSON struct {
	RefBlockNum    uint16           `json:"ref_block_num"`
	RefBlockPrefix uint32           `json:"ref_block_prefix"`
	Expiration     chain.Time       `json:"expiration"`
	Operations     json.RawMessage  `json:"operations"`
	Extensions     []interface{}    `json:"extensions"`
	Signatures     []keys.Signature `json:"signatures"`
}

// MarshalJSON encodes tx in the form nodes accept for broadcast, with
// operations in the legacy ["name", {...}] form.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	ops := tx.Operations
	if ops == nil {
		ops = []operation.Operation{}
	}
	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return nil, err
	}
	sigs := tx.Signatures
	if sigs == nil {
		sigs = []keys.Signature{}
	}
	return json.Marshal(txJSON{
		RefBlockNum:    tx.RefBlockNum,
		RefBlockPrefix: tx.RefBlockPrefix,
		Expiration:     tx.Expiration,
		Operations:     opsJSON,
		Extensions:     []interface{}{},
		Signatures:     sigs,
	})
}

// ParseJSON decodes a transaction in either operation JSON form, coercing
// operations with p.
func ParseJSON(data []byte, p chain.Params) (*Transaction, error) {
	var j txJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	if len(j.Extensions) > 0 {
		return nil, fmt.Errorf("extensions: %v present, none supported",
			len(j.Extensions))
	}
	var raws []operation.Raw
	if len(j.Operations) > 0 {
		if err := json.Unmarshal(j.Operations, &raws); err != nil {
			return nil, fmt.Errorf("operations: %w", err)
		}
	}
	tx := &Transaction{
		RefBlockNum:    j.RefBlockNum,
		RefBlockPrefix: j.RefBlockPrefix,
		Expiration:     j.Expiration,
		Signatures:     j.Signatures,
	}
	for i, raw := range raws {
		op, err := operation.FromRaw(p, raw)
		if err != nil {
			return nil, fmt.Errorf("operations[%v]: %w", i, err)
		}
		tx.Operations = append(tx.Operations, op)
	}
	return tx, nil
}
