// Command client sends OSC messages to a server and dumps OSC traffic arriving on a port.
package main

import (
	"fmt"
	"os"

	"github.com/LemmyAI/oscserver/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "oscclient",
	Short: "oscclient - send and inspect OSC messages",
	Long: `oscclient is a small tool for poking an OSC receiver:
- send one message (or a bundle) to a host and port
- dump every message arriving on a local UDP port as JSON lines

Use "oscclient <command> --help" to see the flags of each command.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := logging.DefaultConfig()
		if verbose {
			cfg.Level = zerolog.DebugLevel
		}
		logging.ApplyEnv(&cfg)
		logger = logging.Configure(cfg, "oscclient")
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(sendCmd, dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
