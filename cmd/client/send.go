package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/LemmyAI/oscserver/internal/osc"
	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/spf13/cobra"
)

var (
	sendTarget   string
	sendTags     string
	sendBundle   bool
	sendCount    int
	sendInterval time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send <address> [values...]",
	Short: "Send one OSC message",
	Long: `Send an OSC message to --target. Values are parsed according to --tags; when --tags
is omitted each value is typed by its text: integers become i, other numbers f and
everything else s.

Examples:
  oscclient send /ch/1 0.75
  oscclient send /mix --tags fis 0.5 3 main
  oscclient send /ch/2 0.2 --bundle --count 10 --interval 50ms`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := transport.ParseConnection(sendTarget)
		if err != nil {
			return err
		}
		packet, err := buildPacket(args[0], sendTags, args[1:])
		if err != nil {
			return err
		}
		if sendCount < 1 {
			return errors.New("--count must be at least 1")
		}

		tx := osc.NewTransmitter(osc.WithLogger(logger))
		if err := tx.Initialize(); err != nil {
			return err
		}
		defer tx.Shutdown()

		for i := 0; i < sendCount; i++ {
			if i > 0 {
				time.Sleep(sendInterval)
			}
			var ok bool
			if sendBundle {
				ok = tx.SendBundle(target, protocol.Immediately, packet)
			} else {
				ok = tx.SendMessage(packet.Address, packet.Tags, target, packet.Args...)
			}
			if !ok {
				return fmt.Errorf("send %s to %s failed", packet.Address, target)
			}
		}
		logger.Info().
			Str("target", target.String()).
			Str("address", packet.Address).
			Str("tags", packet.Tags).
			Int("count", sendCount).
			Msg("Sent")
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendTarget, "target", "t", "127.0.0.1:7000", "destination ip:port")
	sendCmd.Flags().StringVar(&sendTags, "tags", "", "type tags (f, d, i, h, s, ff, fff, fis); inferred when empty")
	sendCmd.Flags().BoolVar(&sendBundle, "bundle", false, "wrap the message in an immediate bundle")
	sendCmd.Flags().IntVarP(&sendCount, "count", "n", 1, "number of times to send")
	sendCmd.Flags().DurationVar(&sendInterval, "interval", 100*time.Millisecond, "delay between repeated sends")
}

// buildPacket parses values against tags, inferring the tags when none are given.
func buildPacket(address, tags string, values []string) (protocol.Packet, error) {
	if tags == "" {
		tags = inferTags(values)
	}
	if !protocol.Supported(tags) {
		return protocol.Packet{}, fmt.Errorf("%w: %q", protocol.ErrUnsupportedTags, tags)
	}
	args, err := protocol.ParseArgs(tags, values)
	if err != nil {
		return protocol.Packet{}, err
	}
	p := protocol.Packet{Address: address, Tags: tags, Args: args}
	if err := protocol.Validate(p.Address, p.Tags, p.Args...); err != nil {
		return protocol.Packet{}, err
	}
	return p, nil
}

func inferTags(values []string) string {
	tags := make([]byte, len(values))
	for i, v := range values {
		switch {
		case isInt(v):
			tags[i] = 'i'
		case isFloat(v):
			tags[i] = 'f'
		default:
			tags[i] = 's'
		}
	}
	return string(tags)
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 32)
	return err == nil
}

func isFloat(s string) bool {
	_, err := strconv.ParseFloat(s, 32)
	return err == nil
}
