package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type fileConfig struct {
	Listen struct {
		Port    int    `toml:"port"`
		Address string `toml:"address"`
	} `toml:"listen"`
	Receiver struct {
		ChannelPath          string `toml:"channel_path"`
		MaxMessagesPerUpdate int    `toml:"max_messages_per_update"`
		PollTimeout          string `toml:"poll_timeout"`
	} `toml:"receiver"`
	Mixer struct {
		Channels       int     `toml:"channels"`
		TickRate       int     `toml:"tick_rate"`
		LevelScale     float64 `toml:"level_scale"`
		Smoothing      float64 `toml:"smoothing"`
		BroadcastRate  int     `toml:"broadcast_rate"`
		FeedbackTarget string  `toml:"feedback_target"`
		FeedbackPath   string  `toml:"feedback_path"`
	} `toml:"mixer"`
	Bridge struct {
		HTTPAddr    string  `toml:"http_addr"`
		MaxClients  int     `toml:"max_clients"`
		ClientRate  float64 `toml:"client_rate"`
		ClientBurst int     `toml:"client_burst"`
		IdleTTL     string  `toml:"idle_ttl"`
	} `toml:"bridge"`
	Metrics struct {
		Enabled bool `toml:"enabled"`
	} `toml:"metrics"`
	Log struct {
		Level     string `toml:"level"`
		NoColor   bool   `toml:"no_color"`
		Timestamp bool   `toml:"timestamp"`
	} `toml:"log"`
}

// loadFile overlays only the keys present in the file onto cfg.
func loadFile(path string, cfg *Config) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if meta.IsDefined("listen", "port") {
		cfg.Listen.Port = raw.Listen.Port
	}
	if meta.IsDefined("listen", "address") {
		cfg.Listen.Address = strings.TrimSpace(raw.Listen.Address)
	}

	if meta.IsDefined("receiver", "channel_path") {
		cfg.Receiver.ChannelPath = raw.Receiver.ChannelPath
	}
	if meta.IsDefined("receiver", "max_messages_per_update") {
		cfg.Receiver.MaxMessagesPerUpdate = raw.Receiver.MaxMessagesPerUpdate
	}
	if meta.IsDefined("receiver", "poll_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Receiver.PollTimeout))
		if err != nil {
			return fmt.Errorf("parse receiver.poll_timeout: %w", err)
		}
		cfg.Receiver.PollTimeout = d
	}

	if meta.IsDefined("mixer", "channels") {
		cfg.Mixer.Channels = raw.Mixer.Channels
	}
	if meta.IsDefined("mixer", "tick_rate") {
		cfg.Mixer.TickRate = raw.Mixer.TickRate
	}
	if meta.IsDefined("mixer", "level_scale") {
		cfg.Mixer.LevelScale = raw.Mixer.LevelScale
	}
	if meta.IsDefined("mixer", "smoothing") {
		cfg.Mixer.Smoothing = raw.Mixer.Smoothing
	}
	if meta.IsDefined("mixer", "broadcast_rate") {
		cfg.Mixer.BroadcastRate = raw.Mixer.BroadcastRate
	}
	if meta.IsDefined("mixer", "feedback_target") {
		cfg.Mixer.FeedbackTarget = strings.TrimSpace(raw.Mixer.FeedbackTarget)
	}
	if meta.IsDefined("mixer", "feedback_path") {
		cfg.Mixer.FeedbackPath = raw.Mixer.FeedbackPath
	}

	if meta.IsDefined("bridge", "http_addr") {
		cfg.Bridge.HTTPAddr = strings.TrimSpace(raw.Bridge.HTTPAddr)
	}
	if meta.IsDefined("bridge", "max_clients") {
		cfg.Bridge.MaxClients = raw.Bridge.MaxClients
	}
	if meta.IsDefined("bridge", "client_rate") {
		cfg.Bridge.ClientRate = raw.Bridge.ClientRate
	}
	if meta.IsDefined("bridge", "client_burst") {
		cfg.Bridge.ClientBurst = raw.Bridge.ClientBurst
	}
	if meta.IsDefined("bridge", "idle_ttl") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Bridge.IdleTTL))
		if err != nil {
			return fmt.Errorf("parse bridge.idle_ttl: %w", err)
		}
		cfg.Bridge.IdleTTL = d
	}

	if meta.IsDefined("metrics", "enabled") {
		cfg.Metrics.Enabled = raw.Metrics.Enabled
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = raw.Log.Level
	}
	if meta.IsDefined("log", "no_color") {
		cfg.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "timestamp") {
		cfg.Log.Timestamp = raw.Log.Timestamp
	}
	return nil
}
