// Package main provides pbs, a persistent browser session server.
//
// pbs attaches to a running Chrome over the DevTools protocol (or launches
// one), keeps the session alive, and executes automation commands against
// it. Commands arrive as one-shot invocations, as lines on stdin, or over a
// local TCP socket; every command produces exactly one JSON result.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/pbs/pkg/types"
)

const (
	appName    = "pbs"
	appVersion = "0.1.0"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   appName + " <command> [args...]",
	Short: "Persistent browser session server",
	Long: `pbs keeps a browser session open and executes automation commands against it.

Run a single command:
  pbs open https://example.com
  pbs title

Keep a session alive:
  pbs serve                 # line commands on stdin, JSON results on stdout
  pbs listen                # line commands over TCP (127.0.0.1:9999)
  pbs send title            # send one command to a listening server

Commands:` + commandList(),
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runOneShot,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug diagnostics to stderr")

	// Everything after the command name belongs to the command, including
	// arguments that look like flags such as "evaluate -1".
	rootCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_ = writeResult(os.Stdout, types.Failure(err), false)
		os.Exit(1)
	}
}
