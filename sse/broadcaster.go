package sse

// Broadcaster publishes frames to subscribers. Publishers depend on it
// rather than on a concrete Hub.
type Broadcaster interface {
	// BroadcastToPattern sends data to all clients whose id matches the
	// glob pattern (e.g. "run:abc:*").
	BroadcastToPattern(pattern string, data []byte)
}
