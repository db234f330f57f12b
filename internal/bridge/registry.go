package bridge

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Config for the viewer bridge.
type Config struct {
	MaxClients    int           `json:"max_clients"`
	IdleTTL       time.Duration `json:"idle_ttl"`       // Time without inbound traffic before a client is dropped
	CleanupPeriod time.Duration `json:"cleanup_period"` // How often to check for idle clients
	ClientRate    float64       `json:"client_rate"`    // Commands per second per client
	ClientBurst   int           `json:"client_burst"`
	WriteTimeout  time.Duration `json:"write_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxClients:    32,
		IdleTTL:       2 * time.Minute,
		CleanupPeriod: 15 * time.Second,
		ClientRate:    10,
		ClientBurst:   20,
		WriteTimeout:  5 * time.Second,
	}
}

// Client is one connected viewer.
type Client struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`

	conn         *websocket.Conn
	limiter      *rate.Limiter
	writeTimeout time.Duration
	writeMu      sync.Mutex
	mu           sync.RWMutex
	lastActivity time.Time
}

// writeJSON serialises writes; gorilla connections allow one concurrent writer.
func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(v)
}

func (c *Client) writeText(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// IsExpired reports whether the client has been silent longer than ttl.
func (c *Client) IsExpired(ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastActivity) > ttl
}

// Allow consumes one command token.
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// Registry tracks connected clients and drops idle ones.
type Registry struct {
	clients map[string]*Client
	config  Config
	mu      sync.RWMutex

	onExpired func(*Client)
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewRegistry creates a registry and starts its cleanup loop. Call Close to stop it.
func NewRegistry(config Config) *Registry {
	def := DefaultConfig()
	if config.CleanupPeriod <= 0 {
		config.CleanupPeriod = def.CleanupPeriod
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	r := &Registry{
		clients: make(map[string]*Client),
		config:  config,
		stopCh:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.cleanupLoop()
	return r
}

// Add registers a connection as a new client.
func (r *Registry) Add(conn *websocket.Conn) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= r.config.MaxClients {
		return nil, ErrHubFull
	}

	now := time.Now()
	client := &Client{
		ID:           uuid.New().String()[:8],
		ConnectedAt:  now,
		conn:         conn,
		limiter:      rate.NewLimiter(rate.Limit(r.config.ClientRate), r.config.ClientBurst),
		writeTimeout: r.config.WriteTimeout,
		lastActivity: now,
	}
	r.clients[client.ID] = client
	return client, nil
}

// Get retrieves a client by ID.
func (r *Registry) Get(id string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return c, nil
}

// Remove drops a client. It reports whether the client was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[id]
	delete(r.clients, id)
	return ok
}

// All returns a snapshot of the connected clients.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Count returns the number of connected clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// OnExpired sets a callback for clients dropped for inactivity. Set it before clients connect.
func (r *Registry) OnExpired(callback func(*Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpired = callback
}

// Close stops the cleanup loop.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Registry) cleanupLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.expire()
		}
	}
}

// expire removes idle clients and returns how many were dropped.
func (r *Registry) expire() int {
	r.mu.Lock()
	var expired []*Client
	for id, c := range r.clients {
		if c.IsExpired(r.config.IdleTTL) {
			expired = append(expired, c)
			delete(r.clients, id)
		}
	}
	callback := r.onExpired
	r.mu.Unlock()

	if callback != nil {
		for _, c := range expired {
			callback(c)
		}
	}
	return len(expired)
}
