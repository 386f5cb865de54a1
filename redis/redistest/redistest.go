// Package redistest starts in-memory Redis servers for tests.
package redistest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/redis"
)

// New returns a client connected to a fresh miniredis server. Both are
// closed when the test ends.
func New(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)

	client, err := redis.New(redis.Config{Enabled: true, Addr: mini.Addr()}, logger.NewNop())
	if err != nil {
		t.Fatalf("redistest: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}
