package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/flowkit/logger"
)

// DefaultKeepAlive stays below common proxy idle timeouts.
const DefaultKeepAlive = 30 * time.Second

// ConnectedEvent is sent when a client successfully connects.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id,omitempty"`
}

// StreamOptions shape one event stream.
type StreamOptions struct {
	// Snapshot, when set, is called after the client is registered and its
	// frame is sent as a "snapshot" event. Frames broadcast after
	// registration are never lost between the snapshot and the stream.
	Snapshot func() ([]byte, error)
	// Done reports whether the stream should end after forwarding a frame
	// of the given event type. The snapshot is checked too.
	Done func(eventType string, data []byte) bool
	// KeepAlive defaults to DefaultKeepAlive.
	KeepAlive time.Duration
	Logger    *logger.Logger
}

// ServeSSE registers clientID with hub and streams matching frames until
// the client disconnects, the hub stops, or opts.Done says so. Each frame
// is written with an "event:" line taken from its JSON "type" field.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts StreamOptions, clientOpts ...ClientOption) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.WithComponent("sse").WithFields(logger.Fields("client_id", clientID))

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("Streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Long-lived stream: the server WriteTimeout must not apply.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Could not disable write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	client := NewClient(clientID, clientOpts...)
	if !hub.Register(client) {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	connected, _ := json.Marshal(ConnectedEvent{ClientID: clientID, UserID: client.UserID()})
	writeEvent(w, EventTypeConnected, connected)

	if opts.Snapshot != nil {
		data, err := opts.Snapshot()
		if err != nil {
			log.Warn("Snapshot failed", logger.Fields(logger.FieldError, err.Error()))
			return
		}
		writeEvent(w, EventTypeSnapshot, data)
		if opts.Done != nil && opts.Done(EventTypeSnapshot, data) {
			flusher.Flush()
			return
		}
	}
	flusher.Flush()
	log.Debug("Client connected", logger.Fields("remote_addr", r.RemoteAddr))

	interval := opts.KeepAlive
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	keepAlive := time.NewTicker(interval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug("Client disconnected", logger.Fields("reason", ctx.Err().Error()))
			return

		case data, ok := <-client.Events():
			if !ok {
				return
			}
			typ := eventType(data)
			writeEvent(w, typ, data)
			flusher.Flush()
			if opts.Done != nil && opts.Done(typ, data) {
				return
			}

		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, typ string, data []byte) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", typ, data)
}
