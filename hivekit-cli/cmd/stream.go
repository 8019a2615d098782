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

package cmd

import (
	"strings"

	"github.com/posener/complete"
	"github.com/spf13/cobra"

	"github.com/hivekit/hivekit/blockchain"
	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/rpc"
)

var (
	streamOps    string
	streamStart  uint32
	streamStop   uint32
	streamMode   string
	streamBlocks bool
	bcOpts       blockchain.Options
)

var streamCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
stream [--ops NAME,...] [--start NUM] [--stop NUM] [--mode MODE]`[1:],
		Aliases: []string{"follow"},
		Short:   "Stream operations or blocks as JSON lines",
		Long: `
Stream the operations of every block from --start to --stop, one JSON record
per line. A --start of 0 begins at the current head and a --stop of 0 follows
the chain forever.

--mode sequential fetches one block per call, batched fetches --batch-size
blocks per JSON-RPC batch and threaded fetches --workers blocks at once.
Blocks are always printed in order.
`[1:],
		Args:    cobra.ExactArgs(0),
		PreRunE: validateStreamFlags,
		RunE:    stream,
	}
	flags := cmd.Flags()
	flags.StringVar(&streamOps, "ops", "",
		"Comma separated operation names to keep, all if empty")
	flags.Uint32Var(&streamStart, "start", 0, "First block, 0 for the head")
	flags.Uint32Var(&streamStop, "stop", 0, "Last block, 0 to never stop")
	flags.StringVar(&streamMode, "mode", blockchain.Sequential.String(),
		"Fetch mode: sequential, batched or threaded")
	flags.BoolVar(&bcOpts.IrreversibleOnly, "irreversible", false,
		"Only stream irreversible blocks")
	flags.BoolVar(&streamBlocks, "blocks", false,
		"Print whole blocks instead of operations")
	flags.IntVar(&bcOpts.BatchSize, "batch-size", 0,
		"Blocks per batch in batched mode")
	flags.IntVar(&bcOpts.Workers, "workers", 0,
		"Concurrent requests in threaded mode")
	flags.DurationVar(&bcOpts.BlockInterval, "block-interval", 0,
		"Time between polls of the head block")

	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["stream"] = streamCmplCmd
	rootCmplCmd.Sub["help"].Sub["stream"] = complete.Command{}
	generateCmplFlags(cmd, streamCmplCmd.Flags)
	return cmd
}()

var streamCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, complete.Flags{
		"--ops":  PredictOperationNames,
		"--mode": PredictModes,
	}),
}

func validateStreamFlags(*cobra.Command, []string) error {
	mode, err := blockchain.ParseMode(streamMode)
	if err != nil {
		return err
	}
	bcOpts.Mode = mode
	return nil
}

func stream(cmd *cobra.Command, _ []string) error {
	c, err := newRPC()
	if err != nil {
		return err
	}
	defer c.Close()
	opts := bcOpts
	opts.Log = _log.New("blockchain")
	bc := blockchain.New(c, &opts)
	log.Debugf("Streaming in %v mode from %v.", opts.Mode, c.URL())

	if streamBlocks {
		return bc.Blocks(cmd.Context(), streamStart, streamStop,
			func(b *rpc.Block) error { return printJSON(b) })
	}
	var names []string
	if streamOps != "" {
		names = strings.Split(streamOps, ",")
	}
	err = bc.Stream(cmd.Context(), names, streamStart, streamStop,
		func(r blockchain.Record) error { return printJSON(r) })
	if cmd.Context().Err() != nil {
		// Interrupted.
		return nil
	}
	return err
}
