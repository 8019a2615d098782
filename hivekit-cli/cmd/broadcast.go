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
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/posener/complete"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/hivekit/hivekit/client"
	"github.com/hivekit/hivekit/keys"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/wallet"
)

var (
	signerKeys []string
	async      bool
)

var broadcastFlags = func() *flag.FlagSet {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.StringSliceVar(&signerKeys, "signer", nil,
		"Public key to sign with, default is the wallet keys of the "+
			"account's active authority")
	flags.BoolVar(&async, "async", false,
		"Do not wait for the transaction to be included in a block")
	return flags
}()

var broadcastCmplFlags = complete.Flags{
	"--signer": PredictWalletKeys,
	"--async":  complete.PredictNothing,
}

var transferCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
transfer FROM TO AMOUNT [MEMO]`[1:],
		Aliases: []string{"send"},
		Short:   "Transfer liquid funds",
		Long: `
Transfer AMOUNT, i.e. "1.000 HIVE", from the account FROM to the account TO.

The transaction is signed with the --signer keys from the wallet. Without
--signer, every wallet key in the active authority of FROM signs.
`[1:],
		Args: cobra.RangeArgs(3, 4),
		RunE: transfer,
	}
	cmd.Flags().AddFlagSet(broadcastFlags)
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["transfer"] = transferCmplCmd
	rootCmplCmd.Sub["help"].Sub["transfer"] = complete.Command{}
	generateCmplFlags(cmd, transferCmplCmd.Flags)
	return cmd
}()

var transferCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags, broadcastCmplFlags),
}

func transfer(cmd *cobra.Command, args []string) error {
	fields := operation.Fields{"from": args[0], "to": args[1],
		"amount": args[2], "memo": ""}
	if len(args) == 4 {
		fields["memo"] = args[3]
	}
	return broadcast(cmd.Context(), args[0], "transfer", fields)
}

var broadcastCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
broadcast ACCOUNT OPERATION FIELDS`[1:],
		Short: "Broadcast any operation",
		Long: `
Broadcast a transaction with a single OPERATION, i.e. "vote", whose FIELDS are
given as a JSON object. ACCOUNT names whose active authority signs when no
--signer is given.
`[1:],
		Args: cobra.ExactArgs(3),
		RunE: broadcastOp,
	}
	cmd.Flags().AddFlagSet(broadcastFlags)
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["broadcast"] = broadcastCmplCmd
	rootCmplCmd.Sub["help"].Sub["broadcast"] = complete.Command{}
	generateCmplFlags(cmd, broadcastCmplCmd.Flags)
	return cmd
}()

var broadcastCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags, broadcastCmplFlags),
	Args:  PredictOperationNames,
}

func broadcastOp(cmd *cobra.Command, args []string) error {
	var fields operation.Fields
	d := json.NewDecoder(bytes.NewReader([]byte(args[2])))
	d.UseNumber()
	if err := d.Decode(&fields); err != nil {
		return fmt.Errorf("FIELDS: %w", err)
	}
	return broadcast(cmd.Context(), args[0], args[1], fields)
}

func broadcast(ctx context.Context, account, name string,
	fields operation.Fields) error {
	rc, err := newRPC()
	if err != nil {
		return err
	}
	defer rc.Close()
	ks, err := openWallet()
	if err != nil {
		return err
	}
	defer ks.Close()
	c, err := client.New(ctx, rc, ks)
	if err != nil {
		return err
	}
	ks.Prefix = c.Chain.Prefix

	op, err := c.Operation(name, fields)
	if err != nil {
		return err
	}
	signers, err := resolveSigners(ctx, c, ks, account)
	if err != nil {
		return err
	}
	res, err := c.Broadcast(ctx, signers, !async, op)
	if err != nil {
		return err
	}
	return printJSON(res)
}

// resolveSigners returns the --signer keys, or else the wallet keys found in
// the active authority of account.
func resolveSigners(ctx context.Context, c *client.Client,
	ks *wallet.KeyStore, account string) ([]keys.PublicKey, error) {
	if len(signerKeys) > 0 {
		pubs := make([]keys.PublicKey, len(signerKeys))
		for i, s := range signerKeys {
			pub, err := keys.ParsePublicKey(s)
			if err != nil {
				return nil, fmt.Errorf("--signer: %w", err)
			}
			pubs[i] = pub
		}
		return pubs, nil
	}

	accts, err := c.RPC.GetAccounts(ctx, account)
	if err != nil {
		return nil, err
	}
	if len(accts) == 0 {
		return nil, fmt.Errorf("account %q does not exist", account)
	}
	var active struct {
		KeyAuths [][2]json.RawMessage `json:"key_auths"`
	}
	if err := json.Unmarshal(accts[0].Active, &active); err != nil {
		return nil, fmt.Errorf("%v active authority: %w", account, err)
	}
	var signers []keys.PublicKey
	for _, auth := range active.KeyAuths {
		var s string
		if err := json.Unmarshal(auth[0], &s); err != nil {
			return nil, fmt.Errorf("%v active authority: %w", account, err)
		}
		pub, err := keys.ParsePublicKey(s)
		if err != nil {
			return nil, fmt.Errorf("%v active authority: %w", account, err)
		}
		if _, err := ks.PrivateKey(pub); err != nil {
			continue
		}
		signers = append(signers, pub)
	}
	if len(signers) == 0 {
		return nil, fmt.Errorf("no active key of %q in the wallet", account)
	}
	log.Debugf("Signing with %v.", signers)
	return signers, nil
}
