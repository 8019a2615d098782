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

	"github.com/posener/complete"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hivekit/hivekit/keys"
)

var keysCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keys",
		Aliases: []string{"key", "wallet"},
		Short:   "Manage the private keys in the wallet",
		Long: `
Manage the private keys held in the encrypted wallet at --wallet.

The wallet is sealed with --password. The first command run against a new
wallet sets its password.
`[1:],
	}
	rootCmd.AddCommand(cmd)
	rootCmplCmd.Sub["keys"] = keysCmplCmd
	rootCmplCmd.Sub["help"].Sub["keys"] = complete.Command{
		Sub: complete.Commands{}}
	generateCmplFlags(cmd, keysCmplCmd.Flags)
	return cmd
}()

var keysCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags),
	Sub:   complete.Commands{},
}

var keysAddCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
add WIF...`[1:],
		Aliases: []string{"import"},
		Short:   "Import WIF private keys",
		Args:    cobra.MinimumNArgs(1),
		RunE:    keysAdd,
	}
	keysCmd.AddCommand(cmd)
	keysCmplCmd.Sub["add"] = keysAddCmplCmd
	rootCmplCmd.Sub["help"].Sub["keys"].Sub["add"] = complete.Command{}
	generateCmplFlags(cmd, keysAddCmplCmd.Flags)
	return cmd
}()

var keysAddCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags),
}

func keysAdd(_ *cobra.Command, args []string) error {
	ks, err := openWallet()
	if err != nil {
		return err
	}
	defer ks.Close()
	for _, wif := range args {
		pub, err := ks.AddWIF(wif)
		if err != nil {
			return err
		}
		fmt.Println(pub)
	}
	return nil
}

var (
	fromPassword string
	role         string
)

var keysNewCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
new [--account NAME --role ROLE]`[1:],
		Aliases: []string{"generate"},
		Short:   "Generate a new private key",
		Long: `
Generate a new random private key and store it in the wallet.

With --account the key is instead derived from the account name, --role and
the account password, the same way wallets derive keys from a master
password. The account password is read from HIVEKIT_ACCOUNT_PASSWORD.
`[1:],
		Args: cobra.ExactArgs(0),
		RunE: keysNew,
	}
	flags := cmd.Flags()
	flags.StringVar(&fromPassword, "account", "",
		"Derive the key for this account from its password")
	flags.StringVar(&role, "role", "active",
		"Role of the derived key: owner, active, posting or memo")
	keysCmd.AddCommand(cmd)
	keysCmplCmd.Sub["new"] = keysNewCmplCmd
	rootCmplCmd.Sub["help"].Sub["keys"].Sub["new"] = complete.Command{}
	generateCmplFlags(cmd, keysNewCmplCmd.Flags)
	return cmd
}()

var keysNewCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags, complete.Flags{
		"--role": complete.PredictSet("owner", "active", "posting",
			"memo"),
	}),
}

func keysNew(*cobra.Command, []string) error {
	var k keys.PrivateKey
	if fromPassword != "" {
		password := accountPassword()
		if password == "" {
			return fmt.Errorf("HIVEKIT_ACCOUNT_PASSWORD is not set")
		}
		k = keys.FromPassword(fromPassword, role, password)
	} else {
		var err error
		if k, err = keys.GeneratePrivateKey(); err != nil {
			return err
		}
	}
	ks, err := openWallet()
	if err != nil {
		return err
	}
	defer ks.Close()
	pub, err := ks.Add(k)
	if err != nil {
		return err
	}
	fmt.Println(pub)
	return nil
}

var keysListCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the public keys in the wallet",
		Args:    cobra.ExactArgs(0),
		RunE:    keysList,
	}
	keysCmd.AddCommand(cmd)
	keysCmplCmd.Sub["list"] = keysListCmplCmd
	rootCmplCmd.Sub["help"].Sub["keys"].Sub["list"] = complete.Command{}
	generateCmplFlags(cmd, keysListCmplCmd.Flags)
	return cmd
}()

var keysListCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags),
}

func keysList(*cobra.Command, []string) error {
	ks, err := openWallet()
	if err != nil {
		return err
	}
	defer ks.Close()
	pubs, err := ks.PublicKeys()
	if err != nil {
		return err
	}
	for _, pub := range pubs {
		fmt.Println(pub)
	}
	return nil
}

var keysRemoveCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		DisableFlagsInUseLine: true,
		Use: `
remove PUBKEY...`[1:],
		Aliases: []string{"rm", "delete"},
		Short:   "Remove private keys from the wallet",
		Args:    cobra.MinimumNArgs(1),
		RunE:    keysRemove,
	}
	keysCmd.AddCommand(cmd)
	keysCmplCmd.Sub["remove"] = keysRemoveCmplCmd
	rootCmplCmd.Sub["help"].Sub["keys"].Sub["remove"] = complete.Command{}
	generateCmplFlags(cmd, keysRemoveCmplCmd.Flags)
	return cmd
}()

var keysRemoveCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags),
	Args:  PredictWalletKeys,
}

func keysRemove(_ *cobra.Command, args []string) error {
	pubs := make([]keys.PublicKey, len(args))
	for i, arg := range args {
		pub, err := keys.ParsePublicKey(arg)
		if err != nil {
			return err
		}
		pubs[i] = pub
	}
	ks, err := openWallet()
	if err != nil {
		return err
	}
	defer ks.Close()
	for _, pub := range pubs {
		if err := ks.Remove(pub); err != nil {
			return fmt.Errorf("%v: %w", pub, err)
		}
	}
	return nil
}

// accountPassword reads the account master password from the config file or
// HIVEKIT_ACCOUNT_PASSWORD, never from a flag.
func accountPassword() string {
	return viper.GetString("account-password")
}
