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

// Package blockchain follows a graphene chain block by block. Blocks are
// fetched one at a time, in batches, or by a pool of workers, and are always
// delivered in ascending order. Streams wait for blocks that have not been
// produced yet and run forever unless given a stop block.
package blockchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/rpc"
)

// Source is the part of the RPC client the stream engine uses.
// *rpc.Client implements it.
type Source interface {
	GetDynamicGlobalProperties(context.Context) (rpc.DynamicGlobalProperties, error)
	GetBlock(ctx context.Context, num uint32) (*rpc.Block, error)
	GetBlocksBatch(ctx context.Context, start, count uint32) ([]*rpc.Block, error)
}

var _ Source = &rpc.Client{}

// Mode selects how Blocks fetches.
type Mode int

const (
	// Sequential fetches one block per call.
	Sequential Mode = iota
	// Batched fetches up to BatchSize blocks per JSON-RPC batch.
	Batched
	// Threaded fetches Workers blocks concurrently per round.
	Threaded
)

func (m Mode) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Batched:
		return "batched"
	case Threaded:
		return "threaded"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Sequential, Batched, Threaded} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid mode %q", s)
}

// Options configures a Blockchain. Zero values take the defaults.
type Options struct {
	Mode Mode
	// IrreversibleOnly follows the last irreversible block instead of
	// the head block.
	IrreversibleOnly bool

	BlockInterval          time.Duration
	MaxBlockWaitRepetition int
	BatchSize              int
	Workers                int

	Log _log.Log
}

// Defaults
const (
	DefaultBlockInterval          = 3 * time.Second
	DefaultMaxBlockWaitRepetition = 3
	DefaultBatchSize              = 50
	DefaultWorkers                = 8
)

func (o Options) withDefaults() Options {
	if o.BlockInterval <= 0 {
		o.BlockInterval = DefaultBlockInterval
	}
	if o.MaxBlockWaitRepetition <= 0 {
		o.MaxBlockWaitRepetition = DefaultMaxBlockWaitRepetition
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Log.IsZero() {
		o.Log = _log.New("blockchain")
	}
	return o
}

// ErrStop may be returned by a callback to end a stream without error.
var ErrStop = errors.New("stop")

// ErrBatchNotSupported is returned in Batched mode when the node answers a
// batch with no results.
var ErrBatchNotSupported = errors.New("batched calls not supported")

// BlockDoesNotExistError is returned when the node has no block Num even
// though Num is not past the current head.
type BlockDoesNotExistError struct {
	Num uint32
}

func (e BlockDoesNotExistError) Error() string {
	return fmt.Sprintf("block %v does not exist", e.Num)
}

// BlockWaitTimeoutError is returned when block Num was not produced within
// the wait budget.
type BlockWaitTimeoutError struct {
	Num    uint32
	Waited time.Duration
}

func (e BlockWaitTimeoutError) Error() string {
	return fmt.Sprintf("block %v: already waited %v", e.Num, e.Waited)
}

// Blockchain streams blocks and operations from a Source.
type Blockchain struct {
	src   Source
	opts  Options
	log   _log.Log
	sleep func(context.Context, time.Duration) error
}

// New returns a Blockchain reading from src. A nil opts uses the defaults.
func New(src Source, opts *Options) *Blockchain {
	var o Options
	if opts != nil {
		o = *opts
	}
	o = o.withDefaults()
	return &Blockchain{src: src, opts: o, log: o.Log, sleep: sleep}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options returns the effective options.
func (bc *Blockchain) Options() Options { return bc.opts }

// CurrentHead returns the last irreversible block number if
// IrreversibleOnly is set, and the head block number otherwise.
func (bc *Blockchain) CurrentHead(ctx context.Context) (uint32, error) {
	props, err := bc.src.GetDynamicGlobalProperties(ctx)
	if err != nil {
		return 0, err
	}
	if bc.opts.IrreversibleOnly {
		return props.LastIrreversibleBlockNum, nil
	}
	return props.HeadBlockNumber, nil
}

// waitForHead polls the head every BlockInterval until it reaches num. It
// gives up after max(1, num-head) * MaxBlockWaitRepetition polls.
func (bc *Blockchain) waitForHead(ctx context.Context, num uint32) (uint32, error) {
	head, err := bc.CurrentHead(ctx)
	if err != nil || head >= num {
		return head, err
	}
	waitingFor := int(num - head)
	limit := waitingFor * bc.opts.MaxBlockWaitRepetition
	for rep := 1; ; rep++ {
		bc.log.Debugf("Waiting for block %v, head is %v (%v/%v)",
			num, head, rep, limit)
		if err := bc.sleep(ctx, bc.opts.BlockInterval); err != nil {
			return head, err
		}
		if head, err = bc.CurrentHead(ctx); err != nil || head >= num {
			return head, err
		}
		if rep > limit {
			return head, BlockWaitTimeoutError{Num: num,
				Waited: time.Duration(limit) * bc.opts.BlockInterval}
		}
	}
}

// WaitForBlock waits until block num is produced and returns it.
func (bc *Blockchain) WaitForBlock(ctx context.Context, num uint32) (*rpc.Block, error) {
	if _, err := bc.waitForHead(ctx, num); err != nil {
		return nil, err
	}
	return bc.getBlock(ctx, num)
}

// getBlock fetches a block that is not past the head.
func (bc *Blockchain) getBlock(ctx context.Context, num uint32) (*rpc.Block, error) {
	b, err := bc.src.GetBlock(ctx, num)
	if err != nil {
		return nil, fmt.Errorf("block %v: %w", num, err)
	}
	if b == nil {
		return nil, BlockDoesNotExistError{Num: num}
	}
	return b, checkNumber(b, num)
}

func checkNumber(b *rpc.Block, num uint32) error {
	n, err := b.Number()
	if err != nil {
		return fmt.Errorf("block %v: %w", num, err)
	}
	if n != num {
		return fmt.Errorf("block %v: node returned block %v", num, n)
	}
	return nil
}
