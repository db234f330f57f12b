// Command server receives OSC control messages over UDP, eases them into mixer levels and
// relays the levels to WebSocket viewers and, optionally, back out as OSC feedback.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LemmyAI/oscserver/internal/bridge"
	"github.com/LemmyAI/oscserver/internal/config"
	"github.com/LemmyAI/oscserver/internal/logging"
	"github.com/LemmyAI/oscserver/internal/mixer"
	"github.com/LemmyAI/oscserver/internal/osc"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "oscserver",
	Short: "OSC mixer server",
	Long: `oscserver listens for OSC messages on UDP, maps channel addresses such as /ch/1
to eased mixer levels and streams them to browser viewers over WebSocket.

Settings come from defaults, the --config TOML file, the --env file and OSC_* environment
variables, in that order of precedence.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "TOML config file")
	rootCmd.Flags().StringVar(&envFile, "env", ".env", "dotenv file; ignored when missing")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	// cfg.Log already carries the OSC_LOG_* overrides.
	logger := logging.Configure(cfg.Logging(), "oscserver")

	var registry *prometheus.Registry
	oscOpts := []osc.Option{osc.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		oscOpts = append(oscOpts, osc.WithRegisterer(registry))
	}

	receiver := osc.NewReceiver(cfg.OSCReceiver(), oscOpts...)
	if err := receiver.Initialize(uint16(cfg.Listen.Port), cfg.BindIP()); err != nil {
		return fmt.Errorf("start receiver: %w", err)
	}
	defer receiver.Shutdown()

	transmitter := osc.NewTransmitter(oscOpts...)
	if err := transmitter.Initialize(); err != nil {
		return fmt.Errorf("start transmitter: %w", err)
	}
	defer transmitter.Shutdown()

	var engine *mixer.Engine
	hubOpts := []bridge.HubOption{bridge.WithLogger(logger)}
	if registry != nil {
		hubOpts = append(hubOpts, bridge.WithRegistry(registry))
	}
	levels := bridge.LevelSourceFunc(func() []mixer.Channel { return engine.State().Channels() })
	hub := bridge.NewHub(cfg.BridgeHub(), transmitter, levels, hubOpts...)
	defer hub.Close()

	broadcasters := mixer.Broadcasters{hub}
	if cfg.Mixer.FeedbackTarget != "" {
		target, err := transport.ParseConnection(cfg.Mixer.FeedbackTarget)
		if err != nil {
			return err
		}
		broadcasters = append(broadcasters, mixer.NewFeedbackBroadcaster(transmitter, target, cfg.Mixer.FeedbackPath))
		logger.Info().Str("target", target.String()).Msg("Level feedback enabled")
	}

	engine = mixer.NewEngine(cfg.MixerEngine(), receiver, broadcasters, mixer.WithLogger(logger))
	engine.Start()
	defer engine.Stop()

	server := &http.Server{
		Addr:              cfg.Bridge.HTTPAddr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info().
		Str("osc", receiver.LocalAddr().String()).
		Str("http", cfg.Bridge.HTTPAddr).
		Int("channels", cfg.Mixer.Channels).
		Bool("metrics", registry != nil).
		Msg("Server ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown")
	}
	return nil
}
