package main

import (
	"github.com/spf13/cobra"

	"github.com/entrhq/pbs/pkg/transport"
)

var (
	listenAddr     string
	maxConnections int
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Serve commands over a local TCP socket",
	Long: `Listen accepts line-delimited commands over TCP, by default on
127.0.0.1:9999. All clients share one browser session and their commands
run one at a time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.shutdown(true)

		addr := listenAddr
		if addr == "" {
			addr = a.cfg.Server.ListenAddress()
		}
		limit := maxConnections
		if limit <= 0 {
			limit = a.cfg.Server.MaxConnections
		}

		ctx, cancel := signalContext(a.logger)
		defer cancel()

		server := transport.NewSocketServer(addr, a.dispatcher,
			transport.WithMaxConnections(limit),
			transport.WithServerLogger(a.logger.Named("socket")),
		)
		return server.ListenAndServe(ctx)
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address host:port (default from config, 127.0.0.1:9999)")
	listenCmd.Flags().IntVar(&maxConnections, "max-connections", 0, "Maximum concurrent clients (default from config)")
}
