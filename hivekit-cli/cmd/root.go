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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/hivekit/hivekit/chain"
	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/rpc"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/posener/complete"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Revision is set by main.
var Revision string

// Execute adds all child commands to the root command and sets flags
// appropriately. It is called by main.main() and only needs to happen once
// to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

var (
	cfgFile string
	Debug   bool

	nodeURLs  string
	chainName string
	rpcOpts   = rpc.DefaultOptions()

	log = _log.New("cli")
)

func init() {
	cobra.OnInitialize(initConfig)
}

var apiFlags = func() *flag.FlagSet {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.StringVarP(&nodeURLs, "nodes", "n", "https://api.hive.blog",
		"Comma separated node URLs, http(s):// or ws(s)://")
	flags.StringVar(&chainName, "chain", chain.Hive.Name,
		"Chain used for key prefixes when no node is contacted")
	flags.DurationVar(&rpcOpts.Timeout, "timeout", rpc.DefaultTimeout,
		"Timeout for a single RPC request (i.e. 10s, 1m)")
	flags.IntVar(&rpcOpts.NumRetries, "num-retries", rpc.DefaultNumRetries,
		"Failures before a node is dropped from the pool, negative retries forever")
	flags.IntVar(&rpcOpts.NumRetriesCall, "num-retries-call",
		rpc.DefaultNumRetriesCall,
		"Retries of a single call on the same node before rotating")
	flags.BoolVar(&Debug, "debug", false, "Log every RPC request and reply")
	return flags
}()

// rootCmd represents the base command when called without any subcommands
var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hivekit-cli",
		Short: "Hive and Steem blockchain CLI",
		Long: `hivekit-cli queries Hive and Steem nodes, streams blocks and
operations, manages an encrypted key wallet and broadcasts transactions.

Node Settings

Use --nodes to give one or more node URLs. Failing nodes are rotated out of
the pool after --num-retries errors. Each call is retried --num-retries-call
times on the same node first.

Configuration

Every flag may also be set in ~/.hivekit-cli.yaml or through an environment
variable named HIVEKIT_<FLAG>, with dashes replaced by underscores.`,
		Args:              cobra.ExactArgs(0),
		PersistentPreRunE: initLog,
		PreRunE:           validateRunCompletionFlags,
		Run:               runCompletion,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	cmd.Flags().AddFlagSet(installCompletionFlags)
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "",
		"Config file (default is $HOME/.hivekit-cli.yaml)")
	flags.AddFlagSet(apiFlags)
	flags.AddFlagSet(walletFlags)

	generateCmplFlags(cmd, rootCmplCmd.Flags)
	return cmd
}()

var rootCmplCmd = complete.Command{
	Flags: mergeFlags(apiCmplFlags, walletCmplFlags),
	Sub:   complete.Commands{"help": complete.Command{Sub: complete.Commands{}}},
}
var apiCmplFlags = complete.Flags{
	"--help":   complete.PredictNothing,
	"--chain":  PredictChains,
	"--config": complete.PredictFiles("*.yaml"),
}

func validateRunCompletionFlags(cmd *cobra.Command, _ []string) error {
	// The install completion flags may not be mixed with other flags.
	flags := cmd.Flags()
	installCompletionMode := false
	otherFlags := false
	flags.Visit(func(flg *flag.Flag) {
		switch flg.Name {
		case "install", "uninstall", "yes":
			installCompletionMode = true
		default:
			otherFlags = true
		}
	})
	if installCompletionMode && otherFlags {
		return fmt.Errorf(
			"--install and --uninstall may not be used with any other flags")
	}
	return nil
}

func runCompletion(cmd *cobra.Command, _ []string) {
	// installCompletion returns true if it attempted to (un)install
	// completion, otherwise just output the help page.
	ok, err := installCompletion()
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		cmd.Help()
	}
}

// initLog applies --debug to every Log created afterwards.
func initLog(*cobra.Command, []string) error {
	_log.Debug = Debug
	if Debug {
		log = _log.New("cli")
	}
	return nil
}

// initConfig reads in the config file and environment variables, and lets
// them fill any flag not given on the command line.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".hivekit-cli")
	}

	viper.SetEnvPrefix("hivekit")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %v", viper.ConfigFileUsed())
	}

	rootCmd.PersistentFlags().VisitAll(func(flg *flag.Flag) {
		if flg.Changed || !viper.IsSet(flg.Name) {
			return
		}
		if err := flg.Value.Set(viper.GetString(flg.Name)); err != nil {
			fmt.Fprintf(os.Stderr, "config %v: %v\n", flg.Name, err)
			os.Exit(1)
		}
	})
}

// newRPC returns a client for --nodes.
func newRPC() (*rpc.Client, error) {
	opts := rpcOpts
	opts.Log = _log.New("rpc")
	return rpc.NewClient(rpc.ParseURLs(nodeURLs), &opts)
}

// params resolves --chain.
func params() (chain.Params, error) {
	p, ok := chain.Lookup(chainName)
	if !ok {
		return chain.Params{}, fmt.Errorf("unknown --chain %q", chainName)
	}
	return p, nil
}

// printJSON writes v as one line of JSON.
func printJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
