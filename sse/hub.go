package sse

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kbukum/flowkit/logger"
)

// clientBuffer is how many frames a slow subscriber may lag behind before
// frames are dropped for it.
const clientBuffer = 256

// Client is one open event stream. Its id encodes what it follows,
// "run:<runID>:<connID>", so publishers address it with a glob.
type Client struct {
	id      string
	userID  string
	events  chan []byte
	dropped atomic.Int64
	closing sync.Once
}

type ClientOption func(*Client)

// WithUserID records the caller that opened the stream.
func WithUserID(userID string) ClientOption {
	return func(c *Client) { c.userID = userID }
}

func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{id: id, events: make(chan []byte, clientBuffer)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

// Events is closed once the client is unregistered or the hub stops.
func (c *Client) Events() <-chan []byte { return c.events }

// Dropped counts frames lost because the client fell behind.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Send never blocks; a full buffer drops the frame and returns false.
func (c *Client) Send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *Client) close() {
	c.closing.Do(func() { close(c.events) })
}

type frame struct {
	pattern string
	data    []byte
}

// Hub fans frames out to clients. Only the Run goroutine writes the
// client map.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	joins  chan *Client
	leaves chan *Client
	frames chan frame

	stop     chan struct{}
	stopOnce sync.Once
	log      *logger.Logger
}

// NewHub returns a hub that routes nothing until Run is called.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		joins:   make(chan *Client),
		leaves:  make(chan *Client),
		frames:  make(chan frame, clientBuffer),
		stop:    make(chan struct{}),
		log:     log.WithComponent("sse"),
	}
}

// Run serves joins, leaves and frames until Stop, then closes every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for id, c := range h.clients {
				c.close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		case c := <-h.joins:
			h.join(c)
		case c := <-h.leaves:
			h.leave(c)
		case f := <-h.frames:
			h.fanOut(f)
		}
	}
}

// join replaces a client registered under the same id.
func (h *Hub) join(c *Client) {
	h.mu.Lock()
	if prev := h.clients[c.id]; prev != nil {
		prev.close()
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("Stream opened", logger.Fields("client_id", c.id, "streams", n))
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	if h.clients[c.id] != c {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	fields := logger.Fields("client_id", c.id, "streams", n)
	if d := c.Dropped(); d > 0 {
		fields["dropped"] = d
	}
	h.log.Debug("Stream closed", fields)
}

func (h *Hub) fanOut(f frame) {
	if _, err := filepath.Match(f.pattern, ""); err != nil {
		h.log.Error("Bad broadcast pattern", logger.Fields("pattern", f.pattern, logger.FieldError, err.Error()))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		if ok, _ := filepath.Match(f.pattern, id); ok && !c.Send(f.data) {
			h.log.Warn("Stream lagging, frame dropped", logger.Fields("client_id", id))
		}
	}
}

// Stop makes Run close every client and return. It is idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Register hands c to the hub. It reports false once the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.joins <- c:
		return true
	case <-h.stop:
		return false
	}
}

// Unregister removes c and closes its channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.leaves <- c:
	case <-h.stop:
	}
}

// BroadcastToPattern queues data for every client whose id matches the
// glob pattern. Frames published after Stop are dropped.
func (h *Hub) BroadcastToPattern(pattern string, data []byte) {
	select {
	case h.frames <- frame{pattern: pattern, data: data}:
	case <-h.stop:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// Client returns the client registered under id, or nil.
func (h *Hub) Client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

var _ Broadcaster = (*Hub)(nil)
