// Package health serves liveness, readiness and detailed health endpoints.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Response struct {
	Status     Status                 `json:"status"`
	Version    string                 `json:"version,omitempty"`
	Uptime     string                 `json:"uptime,omitempty"`
	Checks     map[string]CheckResult `json:"checks,omitempty"`
	ReportedAt time.Time              `json:"reported_at"`
}

// CheckFunc returns nil when the dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Pinger is satisfied by *sqlx.DB, database.DB and *redis.Client wrappers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type check struct {
	fn       CheckFunc
	critical bool
}

type Checker struct {
	checks    map[string]check
	startTime time.Time
	version   string
	timeout   time.Duration
	mu        sync.RWMutex
	ready     bool
}

func NewChecker(version string) *Checker {
	return &Checker{
		checks:    make(map[string]check),
		startTime: time.Now(),
		version:   version,
		timeout:   5 * time.Second,
	}
}

// AddCheck registers a check. A failing critical check makes the service unhealthy,
// a failing non-critical one only degraded.
func (c *Checker) AddCheck(name string, fn CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn, critical: critical}
}

// PingCheck adapts a Pinger.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

func (c *Checker) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

func (c *Checker) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// LivenessHandler reports the process is up.
func (c *Checker) LivenessHandler(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, Response{
		Status:     StatusHealthy,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		ReportedAt: time.Now(),
	})
}

func (c *Checker) ReadinessHandler(ctx echo.Context) error {
	if !c.IsReady() {
		return ctx.JSON(http.StatusServiceUnavailable, Response{
			Status:     StatusUnhealthy,
			Version:    c.version,
			ReportedAt: time.Now(),
			Checks: map[string]CheckResult{
				"startup": {Status: StatusUnhealthy, Message: "service is still starting up"},
			},
		})
	}
	return c.HealthHandler(ctx)
}

func (c *Checker) HealthHandler(ctx echo.Context) error {
	checks := c.Run(ctx.Request().Context())
	overall := Overall(checks)

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return ctx.JSON(statusCode, Response{
		Status:     overall,
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     checks,
		ReportedAt: time.Now(),
	})
}

// Run executes every registered check concurrently.
func (c *Checker) Run(ctx context.Context) map[string]CheckResult {
	c.mu.RLock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	registered := make([]check, len(names))
	for i, name := range names {
		registered[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(names))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(name string, chk check) {
			defer wg.Done()
			result := c.runCheck(ctx, chk)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(names[i], registered[i])
	}
	wg.Wait()
	return results
}

func (c *Checker) runCheck(ctx context.Context, chk check) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := chk.fn(ctx); err != nil {
		status := StatusDegraded
		if chk.critical {
			status = StatusUnhealthy
		}
		return CheckResult{
			Status:  status,
			Message: err.Error(),
			Latency: time.Since(start).String(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Latency: time.Since(start).String(),
	}
}

func Overall(checks map[string]CheckResult) Status {
	hasDegraded := false
	for _, check := range checks {
		switch check.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			hasDegraded = true
		}
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// RegisterRoutes registers /api/v1/health, /live and /ready.
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	health := e.Group("/api/v1/health")
	health.GET("", c.HealthHandler)
	health.GET("/live", c.LivenessHandler)
	health.GET("/ready", c.ReadinessHandler)
}
