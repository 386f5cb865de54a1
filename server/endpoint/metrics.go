package endpoint

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

// InflightFunc reports work in progress, e.g. runs executing and task
// slots in use.
type InflightFunc func() map[string]int

// Metrics reports process figures and, when inflight is set, the
// service's in-progress work. Workflow counters and durations are
// exported through OpenTelemetry.
func Metrics(inflight InflightFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		body := gin.H{
			"goroutines":  runtime.NumGoroutine(),
			"heap_mb":     m.HeapAlloc >> 20,
			"sys_mb":      m.Sys >> 20,
			"gc_runs":     m.NumGC,
			"gc_pause_ns": m.PauseTotalNs,
		}
		if inflight != nil {
			body["inflight"] = inflight()
		}
		c.JSON(http.StatusOK, body)
	}
}
