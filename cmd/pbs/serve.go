package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/entrhq/pbs/pkg/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Read commands from stdin and write JSON results to stdout",
	Long: `Serve reads one command per line from stdin and writes one JSON result
per line to stdout. Diagnostics go to stderr. The browser session stays
open until stdin is closed or the process is interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.shutdown(true)

		ctx, cancel := signalContext(a.logger)
		defer cancel()

		server := &transport.StdioServer{
			Dispatcher: a.dispatcher,
			In:         cmd.InOrStdin(),
			Out:        cmd.OutOrStdout(),
			Logger:     a.logger.Named("stdio"),
		}
		if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
