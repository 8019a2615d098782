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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/posener/complete"
	"github.com/spf13/cobra"

	"github.com/hivekit/hivekit/rpc"
)

var headCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "head",
		Aliases: []string{"props", "status"},
		Short:   "Print the dynamic global properties",
		Args:    cobra.ExactArgs(0),
		RunE:    head,
	}
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["head"] = headCmplCmd
	rootCmplCmd.Sub["help"].Sub["head"] = complete.Command{}
	generateCmplFlags(cmd, headCmplCmd.Flags)
	return cmd
}()

var headCmplCmd = complete.Command{Flags: mergeFlags(apiCmplFlags)}

func head(cmd *cobra.Command, _ []string) error {
	c, err := newRPC()
	if err != nil {
		return err
	}
	defer c.Close()
	props, err := c.GetDynamicGlobalProperties(cmd.Context())
	if err != nil {
		return err
	}
	log.Debugf("Node: %v", c.URL())
	return printJSON(props)
}

var blockNums []uint32

var blockCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
block NUM...`[1:],
		Aliases: []string{"blocks"},
		Short:   "Print blocks",
		Long: `
Print each block NUM as one line of JSON. A block that does not exist yet is
printed as null.
`[1:],
		Args: blockArgs,
		RunE: block,
	}
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["block"] = blockCmplCmd
	rootCmplCmd.Sub["help"].Sub["block"] = complete.Command{}
	generateCmplFlags(cmd, blockCmplCmd.Flags)
	return cmd
}()

var blockCmplCmd = complete.Command{Flags: mergeFlags(apiCmplFlags)}

func blockArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
		return err
	}
	blockNums = make([]uint32, len(args))
	for i, arg := range args {
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid block number %q", arg)
		}
		blockNums[i] = uint32(n)
	}
	return nil
}

func block(cmd *cobra.Command, _ []string) error {
	c, err := newRPC()
	if err != nil {
		return err
	}
	defer c.Close()
	for _, n := range blockNums {
		b, err := c.GetBlock(cmd.Context(), n)
		if err != nil {
			return err
		}
		if err := printJSON(b); err != nil {
			return err
		}
	}
	return nil
}

var accountsCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
accounts NAME...`[1:],
		Aliases: []string{"account"},
		Short:   "Print accounts",
		Args:    cobra.MinimumNArgs(1),
		RunE:    accounts,
	}
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["accounts"] = accountsCmplCmd
	rootCmplCmd.Sub["help"].Sub["accounts"] = complete.Command{}
	generateCmplFlags(cmd, accountsCmplCmd.Flags)
	return cmd
}()

var accountsCmplCmd = complete.Command{Flags: mergeFlags(apiCmplFlags)}

func accounts(cmd *cobra.Command, names []string) error {
	c, err := newRPC()
	if err != nil {
		return err
	}
	defer c.Close()
	accts, err := c.GetAccounts(cmd.Context(), names...)
	if err != nil {
		return err
	}
	if len(accts) != len(names) {
		found := make(map[string]struct{}, len(accts))
		for _, a := range accts {
			found[a.Name] = struct{}{}
		}
		for _, name := range names {
			if _, ok := found[name]; !ok {
				log.Warnf("Account %q does not exist.", name)
			}
		}
	}
	for _, a := range accts {
		if err := printJSON(a.Raw); err != nil {
			return err
		}
	}
	return nil
}

var callCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
call [API.]METHOD [PARAMS]`[1:],
		Short: "Call any RPC method",
		Long: `
Call METHOD with the JSON PARAMS and print the raw result.

Without an API the node's dialect picks one, as for every other command. The
dialect also decides how PARAMS are framed.
`[1:],
		Args: cobra.RangeArgs(1, 2),
		RunE: call,
	}
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["call"] = callCmplCmd
	rootCmplCmd.Sub["help"].Sub["call"] = complete.Command{}
	generateCmplFlags(cmd, callCmplCmd.Flags)
	return cmd
}()

var callCmplCmd = complete.Command{Flags: mergeFlags(apiCmplFlags)}

func call(cmd *cobra.Command, args []string) error {
	var r rpc.Request
	r.Method = args[0]
	if i := strings.LastIndexByte(r.Method, '.'); i >= 0 {
		r.API, r.Method = r.Method[:i], r.Method[i+1:]
	}
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return fmt.Errorf("PARAMS is not valid JSON")
		}
		r.Params = json.RawMessage(args[1])
	}
	c, err := newRPC()
	if err != nil {
		return err
	}
	defer c.Close()
	result, err := c.CallRaw(cmd.Context(), r)
	if err != nil {
		return err
	}
	fmt.Println(string(result))
	return nil
}
