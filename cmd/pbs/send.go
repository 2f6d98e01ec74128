package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/entrhq/pbs/pkg/transport"
	"github.com/entrhq/pbs/pkg/types"
)

var (
	sendAddr    string
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send one command to a listening pbs server",
	Long: `Send connects to a server started with "pbs listen", sends one command
and prints the indented JSON result. Connection failures and timeouts are
printed as {"error": ...} results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Close()

		addr := sendAddr
		if addr == "" {
			addr = cfg.Server.ListenAddress()
		}
		timeout := sendTimeout
		if timeout <= 0 {
			timeout = cfg.Server.ClientTimeout
		}

		ctx, cancel := signalContext(logger)
		defer cancel()

		var result types.Result
		client, err := transport.Dial(ctx, addr,
			transport.WithClientTimeout(timeout),
			transport.WithClientLogger(logger.Named("client")),
		)
		if err != nil {
			logger.Errorf("Connection error: %v", err)
			result = types.Failure(err)
		} else {
			defer client.Close()
			result = client.SendCommand(ctx, types.NewCommand(args[0], args[1:]...))
		}

		return writeResult(cmd.OutOrStdout(), result, true)
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "Server address host:port (default from config, 127.0.0.1:9999)")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 0, "Response timeout (default from config, 30s)")
	sendCmd.Flags().SetInterspersed(false)
}
