// Package bridge relays mixer levels and unrouted OSC messages to WebSocket viewers and
// lets viewers send OSC messages back out.
package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/LemmyAI/oscserver/internal/mixer"
	"github.com/LemmyAI/oscserver/internal/protocol"
	"github.com/LemmyAI/oscserver/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender is the part of osc.Transmitter used for viewer send commands.
type Sender interface {
	SendMessage(address, tags string, target transport.Connection, args ...protocol.Arg) bool
}

// LevelSource supplies the current channel levels. *mixer.State satisfies it.
type LevelSource interface {
	Channels() []mixer.Channel
}

// LevelSourceFunc adapts a function to LevelSource.
type LevelSourceFunc func() []mixer.Channel

func (f LevelSourceFunc) Channels() []mixer.Channel { return f() }

// Outbound events.
type (
	WelcomeEvent struct {
		Type     string `json:"type"`
		ClientID string `json:"client_id"`
	}

	LevelsEvent struct {
		Type   string              `json:"type"`
		Tick   uint64              `json:"tick"`
		Levels []mixer.LevelUpdate `json:"levels"`
	}

	MessageEvent struct {
		Type    string           `json:"type"`
		Message protocol.Message `json:"message"`
	}

	AckEvent struct {
		Type string `json:"type"`
		ID   string `json:"id,omitempty"`
	}

	ErrorEvent struct {
		Type  string `json:"type"`
		ID    string `json:"id,omitempty"`
		Error string `json:"error"`
	}
)

// Command is an inbound viewer request.
type Command struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Target  string `json:"target,omitempty"`
	Address string `json:"address,omitempty"`
	Tags    string `json:"tags,omitempty"`
	Args    []any  `json:"args,omitempty"`
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l zerolog.Logger) HubOption {
	return func(h *Hub) { h.logger = l.With().Str("component", "bridge").Logger() }
}

// WithRegistry enables bridge metrics and the /metrics endpoint.
func WithRegistry(reg *prometheus.Registry) HubOption {
	return func(h *Hub) { h.registry = reg }
}

// WithCheckOrigin overrides the upgrader origin check. The default accepts any origin.
func WithCheckOrigin(fn func(*http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// Hub fans events out to connected viewers. It implements mixer.Broadcaster.
type Hub struct {
	clients  *Registry
	sender   Sender
	levels   LevelSource
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *hubMetrics
}

// NewHub creates a hub. sender and levels may be nil, which disables send commands and
// the level snapshot respectively.
func NewHub(config Config, sender Sender, levels LevelSource, opts ...HubOption) *Hub {
	def := DefaultConfig()
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.ClientRate <= 0 {
		config.ClientRate = def.ClientRate
	}
	if config.ClientBurst <= 0 {
		config.ClientBurst = def.ClientBurst
	}

	h := &Hub{
		sender: sender,
		levels: levels,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log.Logger.With().Str("component", "bridge").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.registry != nil {
		h.metrics = newHubMetrics(h.registry)
	}

	h.clients = NewRegistry(config)
	h.clients.OnExpired(func(c *Client) {
		h.logger.Info().Str("client", c.ID).Msg("Dropping idle viewer")
		h.metrics.setClients(h.clients.Count())
		_ = c.conn.Close()
	})
	return h
}

// Clients returns the connected client registry.
func (h *Hub) Clients() *Registry {
	return h.clients
}

// Close disconnects every viewer and stops the idle cleanup.
func (h *Hub) Close() {
	h.clients.Close()
	for _, c := range h.clients.All() {
		h.clients.Remove(c.ID)
		_ = c.conn.Close()
	}
	h.metrics.setClients(0)
}

// BroadcastLevels sends a levels event to every viewer.
func (h *Hub) BroadcastLevels(tick uint64, levels []mixer.LevelUpdate) error {
	return h.broadcast(LevelsEvent{Type: "levels", Tick: tick, Levels: levels})
}

// BroadcastMessage sends an unrouted OSC message to every viewer.
func (h *Hub) BroadcastMessage(msg protocol.Message) error {
	return h.broadcast(MessageEvent{Type: "message", Message: msg})
}

// broadcast writes to all clients. A failed write drops that client; the error is
// not returned since the remaining viewers were served.
func (h *Hub) broadcast(event any) error {
	clients := h.clients.All()
	if len(clients) == 0 {
		return nil
	}
	// Encode once; every client gets the same frame.
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	for _, c := range clients {
		if err := c.writeText(payload); err != nil {
			h.logger.Debug().Err(err).Str("client", c.ID).Msg("Write failed, dropping viewer")
			h.disconnect(c)
		}
	}
	return nil
}

// ServeWS upgrades the request and runs the client read loop until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client, err := h.clients.Add(conn)
	if err != nil {
		_ = conn.WriteJSON(ErrorEvent{Type: "error", Error: err.Error()})
		_ = conn.Close()
		h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Rejected viewer")
		return
	}
	defer h.disconnect(client)

	h.metrics.setClients(h.clients.Count())
	h.logger.Info().Str("client", client.ID).Str("remote", r.RemoteAddr).Msg("Viewer connected")

	if err := client.writeJSON(WelcomeEvent{Type: "welcome", ClientID: client.ID}); err != nil {
		return
	}
	if err := h.sendSnapshot(client); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("client", client.ID).Msg("Read failed")
			}
			return
		}
		client.touch()

		reply := h.handleCommand(client, data)
		if err := client.writeJSON(reply); err != nil {
			return
		}
	}
}

func (h *Hub) disconnect(c *Client) {
	if h.clients.Remove(c.ID) {
		h.logger.Info().Str("client", c.ID).Msg("Viewer disconnected")
	}
	h.metrics.setClients(h.clients.Count())
	_ = c.conn.Close()
}

func (h *Hub) sendSnapshot(c *Client) error {
	if h.levels == nil {
		return nil
	}
	return c.writeJSON(LevelsEvent{Type: "levels", Levels: snapshot(h.levels)})
}

// handleCommand processes one inbound frame and returns the reply event.
func (h *Hub) handleCommand(c *Client, data []byte) any {
	if !c.Allow() {
		h.metrics.command("rate_limited")
		return ErrorEvent{Type: "error", Error: ErrRateLimited.Error()}
	}

	var cmd Command
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&cmd); err != nil {
		h.metrics.command("invalid")
		return ErrorEvent{Type: "error", Error: fmt.Sprintf("%s: %v", ErrInvalidCommand, err)}
	}

	var err error
	switch cmd.Type {
	case "send":
		err = h.send(cmd)
	case "snapshot":
		err = h.sendSnapshot(c)
	case "ping":
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}

	if err != nil {
		h.metrics.command("error")
		return ErrorEvent{Type: "error", ID: cmd.ID, Error: err.Error()}
	}
	h.metrics.command("ok")
	return AckEvent{Type: "ack", ID: cmd.ID}
}

func (h *Hub) send(cmd Command) error {
	if h.sender == nil {
		return fmt.Errorf("%w: sending is disabled", ErrInvalidCommand)
	}
	target, err := transport.ParseConnection(cmd.Target)
	if err != nil {
		return fmt.Errorf("%w: target: %v", ErrInvalidCommand, err)
	}
	if !protocol.Supported(cmd.Tags) {
		return fmt.Errorf("%w: %q", protocol.ErrUnsupportedTags, cmd.Tags)
	}
	args, err := jsonArgs(cmd.Tags, cmd.Args)
	if err != nil {
		return err
	}
	if !h.sender.SendMessage(cmd.Address, cmd.Tags, target, args...) {
		return ErrSendFailed
	}
	return nil
}

// jsonArgs converts decoded JSON values to OSC arguments. Numbers may also be given
// as strings; string arguments must be JSON strings.
func jsonArgs(tags string, values []any) ([]protocol.Arg, error) {
	texts := make([]string, len(values))
	for i, v := range values {
		switch v := v.(type) {
		case json.Number:
			if i < len(tags) && tags[i] == 's' {
				return nil, fmt.Errorf("%w: argument %d must be a string", protocol.ErrArgumentMismatch, i)
			}
			texts[i] = v.String()
		case string:
			texts[i] = v
		default:
			return nil, fmt.Errorf("%w: argument %d has unsupported JSON type %T", protocol.ErrArgumentMismatch, i, v)
		}
	}
	args, err := protocol.ParseArgs(tags, texts)
	if err != nil {
		if errors.Is(err, protocol.ErrArgumentMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", protocol.ErrArgumentMismatch, err)
	}
	return args, nil
}

func snapshot(src LevelSource) []mixer.LevelUpdate {
	channels := src.Channels()
	levels := make([]mixer.LevelUpdate, len(channels))
	for i, ch := range channels {
		levels[i] = mixer.LevelUpdate{
			Channel: ch.Index,
			Address: ch.Address,
			Level:   ch.Level,
			Target:  ch.Target,
		}
	}
	return levels
}
