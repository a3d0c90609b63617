// Command scribble consumes annotated target-language sources, compiles
// each annotation into inline runtime checks, and emits an instrumented
// program plus metadata for downstream fuzzers and test runners.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/scribble/internal/cli"
	"github.com/oxhq/scribble/internal/config"
	"github.com/oxhq/scribble/internal/diag"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.Default()

	cmd := &cobra.Command{
		Use:   "scribble [flags] <file|dir|glob|-->...",
		Short: "runtime-verification instrumentation for annotated contracts",
		Long: "scribble extracts #if_succeeds/#invariant/#define annotations from\n" +
			"doc-comments, checks them against the program, and rewrites the\n" +
			"sources so every property is enforced at runtime.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.ApplyEnv(&opts)
			opts.Inputs = args
			if err := opts.Validate(); err != nil {
				return err
			}
			r := &cli.Runner{
				Opts:   &opts,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
				Stdin:  cmd.InOrStdin(),
			}
			return r.Run()
		},
	}
	config.RegisterFlags(cmd.Flags(), &opts)
	return cmd
}

// printError formats user errors as path:line:col kind: message followed
// by the offending annotation text; anything else prints as
// an internal error.
func printError(err error) {
	var d *diag.Diagnostic
	if errors.As(err, &d) {
		fmt.Fprintln(os.Stderr, d.Error())
		return
	}
	fmt.Fprintf(os.Stderr, "scribble: error: %v\n", err)
}
