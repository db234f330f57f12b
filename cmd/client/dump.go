package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/LemmyAI/oscserver/internal/osc"
	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/spf13/cobra"
)

var (
	dumpPort     uint16
	dumpBind     string
	dumpMax      int
	dumpInterval time.Duration
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print OSC messages arriving on a UDP port",
	Long: `Listen on --port and print each received OSC message as one JSON object per line.
Bundles are unpacked into their messages. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ip, err := transport.ParseIPv4(dumpBind)
		if err != nil {
			return err
		}

		rx := osc.NewReceiver(osc.DefaultReceiverConfig(), osc.WithLogger(logger))
		if err := rx.Initialize(dumpPort, ip); err != nil {
			return err
		}
		defer rx.Shutdown()
		logger.Info().Str("listen", rx.LocalAddr().String()).Msg("Dumping OSC traffic")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return dump(ctx, rx, cmd.OutOrStdout(), dumpInterval, dumpMax)
	},
}

func init() {
	dumpCmd.Flags().Uint16VarP(&dumpPort, "port", "p", osc.DefaultPort, "UDP port to listen on")
	dumpCmd.Flags().StringVar(&dumpBind, "bind", "0.0.0.0", "IPv4 address to bind")
	dumpCmd.Flags().IntVarP(&dumpMax, "max", "n", 0, "stop after this many messages (0 means no limit)")
	dumpCmd.Flags().DurationVar(&dumpInterval, "interval", 5*time.Millisecond, "poll interval")
}

// messageSource is the part of osc.Receiver dump polls.
type messageSource interface {
	Update() int
	HasMessages() bool
	PopMessage() protocol.Message
}

// dump polls src until ctx ends or limit messages have been written.
func dump(ctx context.Context, src messageSource, w io.Writer, interval time.Duration, limit int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	enc := json.NewEncoder(w)
	written := 0
	for {
		src.Update()
		for src.HasMessages() {
			if err := enc.Encode(src.PopMessage()); err != nil {
				return fmt.Errorf("write message: %w", err)
			}
			written++
			if limit > 0 && written >= limit {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

var _ messageSource = (*osc.Receiver)(nil)
