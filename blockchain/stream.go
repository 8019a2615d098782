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

package blockchain

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/rpc"
)

// Blocks calls fn with every block from start to stop, in ascending order.
// A zero start begins at the current head. A zero stop never ends: once
// caught up, Blocks polls for new blocks every BlockInterval. Blocks returns
// when ctx is done, when fn returns an error, or after stop. If fn returns
// ErrStop, Blocks returns nil.
func (bc *Blockchain) Blocks(ctx context.Context, start, stop uint32,
	fn func(*rpc.Block) error) error {
	err := bc.blocks(ctx, start, stop, fn)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func (bc *Blockchain) blocks(ctx context.Context, start, stop uint32,
	fn func(*rpc.Block) error) error {
	if start == 0 {
		head, err := bc.CurrentHead(ctx)
		if err != nil {
			return err
		}
		start = head
	}
	if stop != 0 && stop < start {
		return fmt.Errorf("stop %v is before start %v", stop, start)
	}
	bc.log.Debugf("Streaming blocks %v to %v in %v mode", start, stop,
		bc.opts.Mode)
	for {
		head, err := bc.CurrentHead(ctx)
		if err != nil {
			return err
		}
		if stop != 0 && head > stop {
			head = stop
		}
		if head >= start {
			if err := bc.fetchRange(ctx, start, head, fn); err != nil {
				return err
			}
			start = head + 1
			if stop != 0 && start > stop {
				return nil
			}
			continue
		}
		if err := bc.sleep(ctx, bc.opts.BlockInterval); err != nil {
			return err
		}
	}
}

func (bc *Blockchain) fetchRange(ctx context.Context, from, to uint32,
	fn func(*rpc.Block) error) error {
	switch bc.opts.Mode {
	case Batched:
		return bc.batched(ctx, from, to, fn)
	case Threaded:
		return bc.threaded(ctx, from, to, fn)
	}
	return bc.sequential(ctx, from, to, fn)
}

func (bc *Blockchain) sequential(ctx context.Context, from, to uint32,
	fn func(*rpc.Block) error) error {
	for num := from; num <= to; num++ {
		b, err := bc.getBlock(ctx, num)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		if num == to {
			break
		}
	}
	return nil
}

func span(from, to uint32, max int) uint32 {
	if n := to - from + 1; n < uint32(max) {
		return n
	}
	return uint32(max)
}

func (bc *Blockchain) batched(ctx context.Context, from, to uint32,
	fn func(*rpc.Block) error) error {
	for num := from; num <= to; {
		count := span(num, to, bc.opts.BatchSize)
		blocks, err := bc.src.GetBlocksBatch(ctx, num, count)
		if err != nil {
			return fmt.Errorf("blocks %v to %v: %w", num, num+count-1, err)
		}
		if len(blocks) == 0 {
			return ErrBatchNotSupported
		}
		for _, b := range blocks {
			if b == nil {
				return BlockDoesNotExistError{Num: num}
			}
			if err := checkNumber(b, num); err != nil {
				return err
			}
			if err := fn(b); err != nil {
				return err
			}
			num++
		}
		if num == 0 {
			// Wrapped past the last uint32 block.
			break
		}
	}
	return nil
}

// threaded fetches rounds of Workers blocks concurrently. Each round is
// buffered by block number and delivered in order once the whole round is
// in, so a slow block holds back the rest of its round.
func (bc *Blockchain) threaded(ctx context.Context, from, to uint32,
	fn func(*rpc.Block) error) error {
	for num := from; num <= to; {
		count := span(num, to, bc.opts.Workers)
		round := make([]*rpc.Block, count)
		g, gctx := errgroup.WithContext(ctx)
		for i := range round {
			i, n := i, num+uint32(i)
			g.Go(func() error {
				b, err := bc.getBlock(gctx, n)
				round[i] = b
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for _, b := range round {
			if err := fn(b); err != nil {
				return err
			}
		}
		if num += count; num == 0 {
			break
		}
	}
	return nil
}

// Operation is an operation in a block, with its position.
type Operation struct {
	BlockNum  uint32
	Timestamp chain.Time
	TrxID     string
	TrxNum    int
	OpNum     int
	Op        operation.Raw
}

// Operations calls fn with every operation of the blocks from start to
// stop, in block order and in the order the node reports them within a
// block. It stops like Blocks.
func (bc *Blockchain) Operations(ctx context.Context, start, stop uint32,
	fn func(Operation) error) error {
	return bc.Blocks(ctx, start, stop, func(b *rpc.Block) error {
		num, err := b.Number()
		if err != nil {
			return err
		}
		for i, trx := range b.Transactions {
			for j, op := range trx.Operations {
				if err := fn(Operation{
					BlockNum:  num,
					Timestamp: b.Timestamp,
					TrxID:     b.TransactionID(i),
					TrxNum:    i,
					OpNum:     j,
					Op:        op,
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Record is an Operation flattened into one map: the operation's fields
// plus "type", "_id", "timestamp", "block_num" and "trx_id".
type Record map[string]interface{}

// ID returns the hex SHA-1 of the canonical JSON of op and its position, so
// equal operations in different places get different IDs.
func (op Operation) ID() (string, error) {
	var value interface{}
	if len(op.Op.Value) > 0 {
		dec := json.NewDecoder(bytes.NewReader(op.Op.Value))
		dec.UseNumber()
		if err := dec.Decode(&value); err != nil {
			return "", fmt.Errorf("%v: %w", op.Op.Name, err)
		}
	}
	data, err := json.Marshal(map[string]interface{}{
		"block_num": op.BlockNum,
		"trx_id":    op.TrxID,
		"trx_num":   op.TrxNum,
		"op_num":    op.OpNum,
		"op":        []interface{}{op.Op.Name, value},
	})
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// Record flattens op.
func (op Operation) Record() (Record, error) {
	fields, err := op.Op.Fields()
	if err != nil {
		return nil, err
	}
	id, err := op.ID()
	if err != nil {
		return nil, err
	}
	r := Record(fields)
	r["type"] = op.Op.Name
	r["_id"] = id
	r["timestamp"] = op.Timestamp
	r["block_num"] = op.BlockNum
	r["trx_id"] = op.TrxID
	return r, nil
}

// Stream calls fn with a Record for every operation named in names, or for
// every operation if names is empty. Names may carry the "_operation"
// suffix. It stops like Blocks.
func (bc *Blockchain) Stream(ctx context.Context, names []string,
	start, stop uint32, fn func(Record) error) error {
	filter := make(map[string]struct{}, len(names))
	for _, name := range names {
		filter[strings.TrimSuffix(name, operation.AppbaseSuffix)] = struct{}{}
	}
	return bc.Operations(ctx, start, stop, func(op Operation) error {
		if _, ok := filter[op.Op.Name]; len(filter) > 0 && !ok {
			return nil
		}
		r, err := op.Record()
		if err != nil {
			return err
		}
		return fn(r)
	})
}
