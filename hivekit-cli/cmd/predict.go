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

	"github.com/hivekit/hivekit/blockchain"
	"github.com/hivekit/hivekit/chain"
	"github.com/hivekit/hivekit/operation"
	"github.com/posener/complete"
)

var PredictChains complete.PredictFunc = func(complete.Args) []string {
	names := make([]string, len(chain.Known))
	for i, p := range chain.Known {
		names[i] = p.Name
	}
	return names
}

var PredictModes = complete.PredictSet(blockchain.Sequential.String(),
	blockchain.Batched.String(), blockchain.Threaded.String())

// PredictOperationNames completes the last element of a comma separated
// list of operation names.
var PredictOperationNames complete.PredictFunc = func(
	args complete.Args) []string {
	done := args.Last
	if i := strings.LastIndexByte(done, ','); i >= 0 {
		done = done[:i+1]
	} else {
		done = ""
	}
	var names []string
	for t := operation.Type(0); t.IsKnown(); t++ {
		names = append(names, done+t.String())
	}
	return names
}

var PredictWalletKeys complete.PredictFunc = func(args complete.Args) []string {
	ks, err := openWallet()
	if err != nil {
		return nil
	}
	defer ks.Close()
	pubs, err := ks.PublicKeys()
	if err != nil {
		return nil
	}
	completed := make(map[string]struct{}, len(args.Completed))
	for _, arg := range args.Completed {
		completed[arg] = struct{}{}
	}
	strs := make([]string, 0, len(pubs))
	for _, pub := range pubs {
		if _, ok := completed[pub.String()]; ok {
			continue
		}
		strs = append(strs, pub.String())
	}
	return strs
}
