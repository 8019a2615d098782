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
	"fmt"
	"runtime"

	"github.com/posener/complete"
	"github.com/spf13/cobra"
)

var versionCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version of hivekit-cli and of the node",
		Args:  cobra.ExactArgs(0),
		RunE:  version,
	}
	cmd.Flags().BoolVar(&localOnly, "local", false,
		"Do not query the node")
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["version"] = versionCmplCmd
	rootCmplCmd.Sub["help"].Sub["version"] = complete.Command{}
	generateCmplFlags(cmd, versionCmplCmd.Flags)
	return cmd
}()

var versionCmplCmd = complete.Command{Flags: mergeFlags(apiCmplFlags)}

var localOnly bool

func version(cmd *cobra.Command, _ []string) error {
	fmt.Printf("hivekit-cli: %v (%v)\n", Revision, runtime.Version())
	if localOnly {
		return nil
	}
	c, err := newRPC()
	if err != nil {
		return err
	}
	defer c.Close()
	v, err := c.GetVersion(cmd.Context())
	if err != nil {
		return err
	}
	d, err := c.Dialect(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("%v: %v %v (%v)\n", c.URL(), v.BlockchainVersion, d,
		v.ChainID)
	return nil
}
