package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/flowkit/component"
)

// HealthChecker reports every registered component.
type HealthChecker func(ctx context.Context) []component.Health

type probe struct {
	Status     string             `json:"status"`
	Service    string             `json:"service"`
	Timestamp  string             `json:"timestamp"`
	Components []component.Health `json:"components,omitempty"`
}

func reply(c *gin.Context, code int, p probe) {
	p.Timestamp = time.Now().UTC().Format(time.RFC3339)
	c.JSON(code, p)
}

func check(c *gin.Context, checker HealthChecker) []component.Health {
	if checker == nil {
		return nil
	}
	return checker(c.Request.Context())
}

// Health lists each component. Degraded still answers 200 so load
// balancers keep routing; unhealthy answers 503.
func Health(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		healths := check(c, checker)
		status := component.Overall(healths)
		code := http.StatusOK
		if status == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		reply(c, code, probe{Status: string(status), Service: serviceName, Components: healths})
	}
}

// Liveness never touches dependencies.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		reply(c, http.StatusOK, probe{Status: "alive", Service: serviceName})
	}
}

// Readiness fails while any component is unhealthy.
func Readiness(serviceName string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if component.Overall(check(c, checker)) == component.StatusUnhealthy {
			reply(c, http.StatusServiceUnavailable, probe{Status: "not_ready", Service: serviceName})
			return
		}
		reply(c, http.StatusOK, probe{Status: "ready", Service: serviceName})
	}
}
