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
	"testing"

	"github.com/posener/complete"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFlags(t *testing.T) {
	f := mergeFlags(complete.Flags{"--a": complete.PredictNothing},
		complete.Flags{"--b": complete.PredictAnything})
	assert.Len(t, f, 2)
	assert.Contains(t, f, "--a")
	assert.Contains(t, f, "--b")
}

func TestPredictOperationNames(t *testing.T) {
	names := PredictOperationNames(complete.Args{Last: "transfer,vo"})
	assert.Contains(t, names, "transfer,vote")
	assert.Contains(t, names, "transfer,comment")
	assert.NotContains(t, names, "vote")
}

func TestStreamFlags(t *testing.T) {
	streamMode = "threaded"
	require.NoError(t, validateStreamFlags(nil, nil))
	assert.Equal(t, "threaded", bcOpts.Mode.String())

	streamMode = "parallel"
	assert.Error(t, validateStreamFlags(nil, nil))
}

func TestCompletionFlagsExclusive(t *testing.T) {
	cmd := rootCmd
	require.NoError(t, cmd.ParseFlags([]string{"--install", "--debug"}))
	assert.Error(t, validateRunCompletionFlags(cmd, nil))
}
