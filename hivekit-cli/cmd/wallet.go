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
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/posener/complete"
	flag "github.com/spf13/pflag"

	"github.com/hivekit/hivekit/wallet"
)

var (
	walletPath     string
	walletPassword string
)

var walletFlags = func() *flag.FlagSet {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.StringVarP(&walletPath, "wallet", "w", "~/.hivekit-cli/wallet.json",
		"Wallet file, a path ending in .db or .sqlite uses SQLite")
	flags.StringVarP(&walletPassword, "password", "p", "",
		"Wallet password, prefer HIVEKIT_PASSWORD over the command line")
	return flags
}()

var walletCmplFlags = complete.Flags{
	"--wallet":   complete.PredictFiles("*"),
	"-w":         complete.PredictFiles("*"),
	"--password": complete.PredictNothing,
	"-p":         complete.PredictNothing,
}

// openWallet opens and unlocks the encrypted key store at --wallet. The
// first unlock of a new wallet sets its password.
func openWallet() (*wallet.KeyStore, error) {
	path, err := homedir.Expand(walletPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	var backend wallet.Persistence
	switch filepath.Ext(path) {
	case ".db", ".sqlite", ".sqlite3":
		backend, err = wallet.OpenSQL(path)
	default:
		backend, err = wallet.OpenFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	enc := wallet.NewEncrypted(backend)
	if walletPassword == "" {
		enc.Close()
		return nil, fmt.Errorf("no wallet --password given")
	}
	if err := enc.Unlock(walletPassword); err != nil {
		enc.Close()
		return nil, fmt.Errorf("unlock wallet: %w", err)
	}
	p, err := params()
	if err != nil {
		enc.Close()
		return nil, err
	}
	return wallet.New(enc, p.Prefix), nil
}
