package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/entrhq/pbs/pkg/types"
)

// runOneShot executes the command given on the command line and prints its
// envelope. Command failures are reported in the envelope and still exit 0.
func runOneShot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.shutdown(false)

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	return execute(ctx, a.dispatcher, args, cmd.OutOrStdout())
}

type dispatcher interface {
	Dispatch(ctx context.Context, cmd types.Command) types.Result
}

// execute dispatches one command whose arguments were already split by the
// shell, so "fill #q 'hello world'" keeps its quoted value intact.
func execute(ctx context.Context, d dispatcher, args []string, out io.Writer) error {
	result := d.Dispatch(ctx, types.NewCommand(args[0], args[1:]...))
	return writeResult(out, result, false)
}
