// Package config loads server configuration from defaults, an optional TOML file, an
// optional .env file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LemmyAI/oscserver/internal/bridge"
	"github.com/LemmyAI/oscserver/internal/logging"
	"github.com/LemmyAI/oscserver/internal/mixer"
	"github.com/LemmyAI/oscserver/internal/osc"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/joho/godotenv"
)

const (
	EnvPort           = "OSC_PORT"
	EnvBindAddress    = "OSC_BIND_ADDRESS"
	EnvChannelPath    = "OSC_CHANNEL_PATH"
	EnvMaxMessages    = "OSC_MAX_MESSAGES"
	EnvPollTimeout    = "OSC_POLL_TIMEOUT"
	EnvFeedbackTarget = "OSC_FEEDBACK_TARGET"
	EnvHTTPAddr       = "OSC_HTTP_ADDR"
	EnvMetricsEnabled = "OSC_METRICS_ENABLED"
)

// Config is the complete server configuration.
type Config struct {
	Listen   ListenConfig
	Receiver ReceiverConfig
	Mixer    MixerConfig
	Bridge   BridgeConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

type ListenConfig struct {
	Port    int    // UDP port (default: 7000)
	Address string // IPv4 bind address, "0.0.0.0" for all interfaces
}

type ReceiverConfig struct {
	ChannelPath          string
	MaxMessagesPerUpdate int
	PollTimeout          time.Duration
}

type MixerConfig struct {
	Channels      int
	TickRate      int
	LevelScale    float64
	Smoothing     float64
	BroadcastRate int
	// FeedbackTarget, when set, receives eased levels as OSC floats ("ip:port").
	FeedbackTarget string
	FeedbackPath   string
}

type BridgeConfig struct {
	HTTPAddr    string
	MaxClients  int
	ClientRate  float64 // Send commands per second per client
	ClientBurst int
	IdleTTL     time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level     string
	NoColor   bool
	Timestamp bool
}

// Default returns the built-in configuration.
func Default() Config {
	m := mixer.DefaultConfig()
	return Config{
		Listen: ListenConfig{
			Port:    osc.DefaultPort,
			Address: "0.0.0.0",
		},
		Receiver: ReceiverConfig{
			ChannelPath:          osc.DefaultChannelPath,
			MaxMessagesPerUpdate: osc.DefaultMaxMessagesPerUpdate,
			PollTimeout:          osc.DefaultPollTimeout,
		},
		Mixer: MixerConfig{
			Channels:      m.Channels,
			TickRate:      m.TickRate,
			LevelScale:    float64(m.LevelScale),
			Smoothing:     float64(m.Smoothing),
			BroadcastRate: m.BroadcastRate,
			FeedbackPath:  "/level/%d",
		},
		Bridge: BridgeConfig{
			HTTPAddr:    ":8090",
			MaxClients:  32,
			ClientRate:  10,
			ClientBurst: 20,
			IdleTTL:     2 * time.Minute,
		},
		Metrics: MetricsConfig{Enabled: true},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
	}
}

// Load builds a Config. path and envFile may be empty; a missing envFile is not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if envFile != "" {
		// Variables already set in the process environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(loadEnvInt(&cfg.Listen.Port, EnvPort))
	loadEnvString(&cfg.Listen.Address, EnvBindAddress)
	loadEnvString(&cfg.Receiver.ChannelPath, EnvChannelPath)
	collect(loadEnvInt(&cfg.Receiver.MaxMessagesPerUpdate, EnvMaxMessages))
	collect(loadEnvDuration(&cfg.Receiver.PollTimeout, EnvPollTimeout))
	loadEnvString(&cfg.Mixer.FeedbackTarget, EnvFeedbackTarget)
	loadEnvString(&cfg.Bridge.HTTPAddr, EnvHTTPAddr)
	collect(loadEnvBool(&cfg.Metrics.Enabled, EnvMetricsEnabled))
	loadEnvString(&cfg.Log.Level, logging.EnvLogLevel)
	collect(loadEnvBool(&cfg.Log.NoColor, logging.EnvLogNoColor))
	collect(loadEnvBool(&cfg.Log.Timestamp, logging.EnvLogTimestamp))

	return errors.Join(errs...)
}

func loadEnvString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func loadEnvInt(target *int, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer value for %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvBool(target *bool, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean value for %s: %w", key, err)
	}
	*target = parsed
	return nil
}

func loadEnvDuration(target *time.Duration, key string) error {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration value for %s: %w", key, err)
	}
	*target = parsed
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		problems = append(problems, "listen port must be between 0 and 65535")
	}
	if _, err := transport.ParseIPv4(c.Listen.Address); err != nil {
		problems = append(problems, fmt.Sprintf("listen address %q is not an IPv4 address", c.Listen.Address))
	}
	if err := osc.ValidateChannelPath(c.Receiver.ChannelPath); err != nil {
		problems = append(problems, fmt.Sprintf("channel path %q must contain exactly one %%d", c.Receiver.ChannelPath))
	}
	if c.Receiver.MaxMessagesPerUpdate < 1 {
		problems = append(problems, "max messages per update must be at least 1")
	}
	if c.Receiver.PollTimeout < 0 {
		problems = append(problems, "poll timeout must not be negative")
	}
	if c.Mixer.Channels < 1 {
		problems = append(problems, "mixer channels must be at least 1")
	}
	if c.Mixer.TickRate < 1 || c.Mixer.TickRate > 1000 {
		problems = append(problems, "mixer tick rate must be between 1 and 1000")
	}
	if c.Mixer.BroadcastRate < 1 {
		problems = append(problems, "mixer broadcast rate must be at least 1")
	}
	if c.Mixer.Smoothing <= 0 {
		problems = append(problems, "mixer smoothing must be positive")
	}
	if c.Mixer.FeedbackTarget != "" {
		if _, err := transport.ParseConnection(c.Mixer.FeedbackTarget); err != nil {
			problems = append(problems, fmt.Sprintf("feedback target %q must be ip:port", c.Mixer.FeedbackTarget))
		}
		if err := osc.ValidateChannelPath(c.Mixer.FeedbackPath); err != nil {
			problems = append(problems, fmt.Sprintf("feedback path %q must contain exactly one %%d", c.Mixer.FeedbackPath))
		}
	}
	if c.Bridge.HTTPAddr == "" {
		problems = append(problems, "bridge http address must be set")
	}
	if c.Bridge.MaxClients < 1 {
		problems = append(problems, "bridge max clients must be at least 1")
	}
	if c.Bridge.ClientRate <= 0 || c.Bridge.ClientBurst < 1 {
		problems = append(problems, "bridge client rate and burst must be positive")
	}
	if c.Bridge.IdleTTL <= 0 {
		problems = append(problems, "bridge idle ttl must be positive")
	}
	if _, ok := logging.ParseLevel(c.Log.Level); !ok {
		problems = append(problems, fmt.Sprintf("log level %q is not recognised", c.Log.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// BindIP returns the parsed listen address. Call after Validate.
func (c *Config) BindIP() [4]byte {
	ip, _ := transport.ParseIPv4(c.Listen.Address)
	return ip
}

// OSCReceiver returns the receiver settings.
func (c *Config) OSCReceiver() osc.ReceiverConfig {
	return osc.ReceiverConfig{
		ChannelPath:          c.Receiver.ChannelPath,
		MaxMessagesPerUpdate: c.Receiver.MaxMessagesPerUpdate,
		PollTimeout:          c.Receiver.PollTimeout,
	}
}

// MixerEngine returns the mixer settings.
func (c *Config) MixerEngine() mixer.Config {
	return mixer.Config{
		Channels:      c.Mixer.Channels,
		TickRate:      c.Mixer.TickRate,
		LevelScale:    float32(c.Mixer.LevelScale),
		Smoothing:     float32(c.Mixer.Smoothing),
		BroadcastRate: c.Mixer.BroadcastRate,
	}
}

// BridgeHub returns the viewer bridge settings.
func (c *Config) BridgeHub() bridge.Config {
	cfg := bridge.DefaultConfig()
	cfg.MaxClients = c.Bridge.MaxClients
	cfg.ClientRate = c.Bridge.ClientRate
	cfg.ClientBurst = c.Bridge.ClientBurst
	cfg.IdleTTL = c.Bridge.IdleTTL
	return cfg
}

// Logging returns the console logger settings.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if lvl, ok := logging.ParseLevel(c.Log.Level); ok {
		cfg.Level = lvl
	}
	cfg.NoColor = c.Log.NoColor
	cfg.Timestamp = c.Log.Timestamp
	return cfg
}
