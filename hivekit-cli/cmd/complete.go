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
	"github.com/posener/complete/cmd/install"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
)

const cmdName = "hivekit-cli"

var (
	installFlag   bool
	uninstallFlag bool
	yesFlag       bool
)

var installCompletionFlags = func() *flag.FlagSet {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.BoolVar(&installFlag, "install", false,
		"Install shell completion for "+cmdName)
	flags.BoolVar(&uninstallFlag, "uninstall", false,
		"Uninstall shell completion for "+cmdName)
	flags.BoolVarP(&yesFlag, "yes", "y", false,
		"Do not prompt before (un)installing completion")
	return flags
}()

// Complete runs the CLI completion. It returns true when the program was
// invoked by the shell to complete a command line.
func Complete() bool {
	comp := complete.New(cmdName, rootCmplCmd)
	return comp.Complete()
}

// installCompletion (un)installs shell completion when --install or
// --uninstall was given.
func installCompletion() (bool, error) {
	if !installFlag && !uninstallFlag {
		return false, nil
	}
	if installFlag && uninstallFlag {
		return true, fmt.Errorf("--install and --uninstall are exclusive")
	}
	action, do := "install", install.Install
	if uninstallFlag {
		action, do = "uninstall", install.Uninstall
	}
	if !yesFlag {
		fmt.Printf("%v completion for %v? ", action, cmdName)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "yes" {
			return true, nil
		}
	}
	if err := do(cmdName); err != nil {
		return true, err
	}
	fmt.Printf("%v completion for %v: done\n", action, cmdName)
	return true, nil
}

// generateCmplFlags adds completion for all cmd.Flags() not already present
// in cmplFlags.
func generateCmplFlags(cmd *cobra.Command, cmplFlags complete.Flags) {
	// Due to a bug in cobra.Command.Flags(), we must call LocalFlags()
	// first to get any parent flags merged into cmd.Flags().
	// https://github.com/spf13/cobra/issues/412
	cmd.LocalFlags()
	cmd.Flags().VisitAll(func(flg *flag.Flag) {
		name := "--" + flg.Name
		// If the flag already has a custom completion, there is
		// nothing to do.
		if _, ok := cmplFlags[name]; ok {
			return
		}
		var predict complete.Predictor = complete.PredictAnything
		if flg.Value.Type() == "bool" {
			predict = complete.PredictNothing
		}
		cmplFlags[name] = predict
		if flg.Shorthand != "" {
			cmplFlags["-"+flg.Shorthand] = predict
		}
	})
}

// mergeFlags returns a new complete.Flags that merges all flgs.
func mergeFlags(flgs ...complete.Flags) complete.Flags {
	var size int
	for _, flg := range flgs {
		size += len(flg)
	}
	f := make(complete.Flags, size)
	for _, flg := range flgs {
		for k, v := range flg {
			f[k] = v
		}
	}
	return f
}
