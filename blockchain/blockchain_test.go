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
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hivekit/hivekit/chain"
	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/rpc"
)

var genesis = time.Date(2016, 3, 24, 16, 0, 0, 0, time.UTC)

type stubSource struct {
	mu      sync.Mutex
	head    uint32
	lib     uint32
	step    uint32
	missing map[uint32]bool
	noBatch bool
	jitter  bool
}

func (s *stubSource) GetDynamicGlobalProperties(
	ctx context.Context) (rpc.DynamicGlobalProperties, error) {
	if err := ctx.Err(); err != nil {
		return rpc.DynamicGlobalProperties{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	props := rpc.DynamicGlobalProperties{
		HeadBlockNumber:          s.head,
		LastIrreversibleBlockNum: s.lib,
	}
	s.head += s.step
	return props, nil
}

func (s *stubSource) advance() {
	s.mu.Lock()
	s.head++
	s.mu.Unlock()
}

func stubBlock(num uint32) *rpc.Block {
	ops := []operation.Raw{{
		Name: "vote",
		Value: []byte(fmt.Sprintf(
			`{"voter":"v%v","author":"a","permlink":"p","weight":100}`,
			num)),
	}, {
		Name: "transfer",
		Value: []byte(`{"from":"a","to":"b","amount":"1.000 HIVE",` +
			`"memo":""}`),
	}}
	b := &rpc.Block{
		BlockID:        fmt.Sprintf("%08x", num) + strings.Repeat("0", 32),
		TransactionIDs: []string{fmt.Sprintf("%040x", num)},
		Transactions:   []rpc.Transaction{{Operations: ops}},
	}
	b.Timestamp = chain.NewTime(genesis.Add(time.Duration(num) * 3 *
		time.Second))
	return b
}

func (s *stubSource) GetBlock(ctx context.Context, num uint32) (*rpc.Block, error) {
	if s.jitter {
		time.Sleep(time.Duration(rand.Intn(3)) * time.Millisecond)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if num > s.head || s.missing[num] {
		return nil, nil
	}
	return stubBlock(num), nil
}

func (s *stubSource) GetBlocksBatch(ctx context.Context,
	start, count uint32) ([]*rpc.Block, error) {
	if s.noBatch {
		return nil, nil
	}
	blocks := make([]*rpc.Block, count)
	for i := range blocks {
		var err error
		if blocks[i], err = s.GetBlock(ctx, start+uint32(i)); err != nil {
			return nil, err
		}
	}
	return blocks, nil
}

type sleepLog struct {
	mu sync.Mutex
	d  []time.Duration
}

func (l *sleepLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.d)
}

func newTestBlockchain(src Source, opts Options,
	onSleep func()) (*Blockchain, *sleepLog) {
	opts.Log = _log.Discard()
	bc := New(src, &opts)
	l := &sleepLog{}
	bc.sleep = func(ctx context.Context, d time.Duration) error {
		l.mu.Lock()
		l.d = append(l.d, d)
		l.mu.Unlock()
		if onSleep != nil {
			onSleep()
		}
		return ctx.Err()
	}
	return bc, l
}

func collect(t *testing.T, bc *Blockchain, start, stop uint32) ([]uint32, error) {
	var nums []uint32
	err := bc.Blocks(context.Background(), start, stop,
		func(b *rpc.Block) error {
			n, err := b.Number()
			require.NoError(t, err)
			nums = append(nums, n)
			return nil
		})
	return nums, err
}

func seq(from, to uint32) []uint32 {
	var nums []uint32
	for n := from; n <= to; n++ {
		nums = append(nums, n)
	}
	return nums
}

func TestDefaults(t *testing.T) {
	bc := New(&stubSource{}, nil)
	opts := bc.Options()
	assert.Equal(t, DefaultBlockInterval, opts.BlockInterval)
	assert.Equal(t, DefaultMaxBlockWaitRepetition, opts.MaxBlockWaitRepetition)
	assert.Equal(t, DefaultBatchSize, opts.BatchSize)
	assert.Equal(t, DefaultWorkers, opts.Workers)
	assert.Equal(t, Sequential, opts.Mode)

	for _, m := range []Mode{Sequential, Batched, Threaded} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("fast")
	assert.Error(t, err)
}

func TestThreadedAscending(t *testing.T) {
	src := &stubSource{head: 200, jitter: true}
	bc, _ := newTestBlockchain(src, Options{Mode: Threaded, Workers: 4}, nil)
	nums, err := collect(t, bc, 100, 110)
	require.NoError(t, err)
	assert.Equal(t, seq(100, 110), nums)
}

func TestModes(t *testing.T) {
	for _, mode := range []Mode{Sequential, Batched, Threaded} {
		t.Run(mode.String(), func(t *testing.T) {
			src := &stubSource{head: 50}
			bc, sleeps := newTestBlockchain(src, Options{Mode: mode,
				BatchSize: 5, Workers: 3}, nil)
			nums, err := collect(t, bc, 1, 23)
			require.NoError(t, err)
			assert.Equal(t, seq(1, 23), nums)
			assert.Zero(t, sleeps.Len())

			src.missing = map[uint32]bool{7: true}
			_, err = collect(t, bc, 1, 23)
			assert.Equal(t, BlockDoesNotExistError{Num: 7}, err)
		})
	}
}

func TestBatchNotSupported(t *testing.T) {
	src := &stubSource{head: 50, noBatch: true}
	bc, _ := newTestBlockchain(src, Options{Mode: Batched}, nil)
	_, err := collect(t, bc, 1, 10)
	assert.Equal(t, ErrBatchNotSupported, err)
}

func TestStopBeforeStart(t *testing.T) {
	bc, _ := newTestBlockchain(&stubSource{head: 50}, Options{}, nil)
	_, err := collect(t, bc, 10, 5)
	assert.Error(t, err)
}

func TestWaitForBlock(t *testing.T) {
	assert := assert.New(t)
	src := &stubSource{head: 100}
	bc, sleeps := newTestBlockchain(src, Options{
		BlockInterval: time.Second, MaxBlockWaitRepetition: 1}, nil)
	ctx := context.Background()

	b, err := bc.WaitForBlock(ctx, 99)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Zero(sleeps.Len())

	_, err = bc.WaitForBlock(ctx, 105)
	assert.Equal(BlockWaitTimeoutError{Num: 105, Waited: 5 * time.Second},
		err)
	assert.Equal(6, sleeps.Len())

	bc, sleeps = newTestBlockchain(src, Options{}, src.advance)
	b, err = bc.WaitForBlock(ctx, 103)
	require.NoError(t, err)
	n, err := b.Number()
	require.NoError(t, err)
	assert.Equal(uint32(103), n)
	assert.Equal(3, sleeps.Len())
}

func TestIrreversibleOnly(t *testing.T) {
	src := &stubSource{head: 100, lib: 80}
	bc, _ := newTestBlockchain(src, Options{IrreversibleOnly: true}, nil)
	head, err := bc.CurrentHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(80), head)

	bc, _ = newTestBlockchain(src, Options{}, nil)
	head, err = bc.CurrentHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(100), head)
}

func TestCatchUp(t *testing.T) {
	src := &stubSource{head: 10}
	bc, sleeps := newTestBlockchain(src, Options{}, src.advance)
	nums, err := collect(t, bc, 8, 12)
	require.NoError(t, err)
	assert.Equal(t, seq(8, 12), nums)
	assert.Equal(t, 2, sleeps.Len())

	// A zero start begins at the head.
	nums, err = collect(t, bc, 0, 13)
	require.NoError(t, err)
	assert.Equal(t, seq(12, 13), nums)
}

func TestStream(t *testing.T) {
	assert := assert.New(t)
	src := &stubSource{head: 10}
	bc, _ := newTestBlockchain(src, Options{Mode: Threaded}, nil)
	ctx := context.Background()

	var records []Record
	err := bc.Stream(ctx, []string{"transfer_operation"}, 1, 3,
		func(r Record) error {
			records = append(records, r)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, records, 3)
	ids := map[interface{}]struct{}{}
	for i, r := range records {
		assert.Equal("transfer", r["type"])
		assert.Equal(uint32(i+1), r["block_num"])
		assert.Equal(fmt.Sprintf("%040x", i+1), r["trx_id"])
		assert.Equal("1.000 HIVE", r["amount"])
		assert.Equal(chain.NewTime(genesis.Add(time.Duration(i+1)*3*
			time.Second)), r["timestamp"])
		assert.Len(r["_id"], 40)
		ids[r["_id"]] = struct{}{}
	}
	assert.Len(ids, 3)

	var ops []Operation
	err = bc.Operations(ctx, 1, 3, func(op Operation) error {
		ops = append(ops, op)
		if len(ops) == 4 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Equal("vote", ops[0].Op.Name)
	assert.Equal(1, ops[1].OpNum)
	assert.Equal(uint32(2), ops[3].BlockNum)

	id, err := ops[0].ID()
	require.NoError(t, err)
	again, err := ops[0].ID()
	require.NoError(t, err)
	assert.Equal(id, again)
	r, err := ops[0].Record()
	require.NoError(t, err)
	assert.Equal(id, r["_id"])
	assert.Equal("v1", r["voter"])
}

func TestCancelDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)
	src := &stubSource{head: 1000, jitter: true}
	bc := New(src, &Options{Mode: Threaded, Workers: 4, Log: _log.Discard()})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var n int
	err := bc.Blocks(ctx, 1, 0, func(*rpc.Block) error {
		if n++; n == 5 {
			cancel()
		}
		return nil
	})
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
	assert.GreaterOrEqual(t, n, 5)
	assert.Less(t, n, 20)
}
