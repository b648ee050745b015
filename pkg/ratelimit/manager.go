package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultLimit  = 120
	DefaultWindow = time.Minute
)

type limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redis.RateLimitResult, error)
}

type Config struct {
	// Limit is the number of requests one partner may make per Window. Zero disables limiting.
	Limit  int64
	Window time.Duration
}

func DefaultConfig() Config {
	return Config{Limit: DefaultLimit, Window: DefaultWindow}
}

// Manager limits the submodel requests of each partner.
type Manager struct {
	limiter limiter
	config  Config
	logger  ectologger.Logger
}

// NewManager creates a new rate limit manager
func NewManager(limiter limiter, config Config, logger ectologger.Logger) *Manager {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	return &Manager{limiter: limiter, config: config, logger: logger}
}

// CheckResult represents the result of a rate limit check
type CheckResult struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Check admits one request of partnerBpnl. Limiter failures admit the request.
func (m *Manager) Check(ctx context.Context, partnerBpnl string) (*CheckResult, error) {
	ctx, span := tracing.StartSpan(ctx, "RateLimitManager.Check")
	defer span.End()

	if m.config.Limit <= 0 || partnerBpnl == "" {
		return &CheckResult{Allowed: true}, nil
	}

	res, err := m.limiter.Allow(ctx, "partner:"+partnerBpnl, m.config.Limit, m.config.Window)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("Rate limiter unavailable, admitting request")
		return &CheckResult{Allowed: true}, err
	}
	return &CheckResult{
		Allowed:    res.Allowed,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryIn,
	}, nil
}

// Middleware rejects requests of a partner over its limit with 429. The partner is the
// Edc-Bpn carried on the request context.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			bpnl := appctx.GetPartnerBpnl(ctx)

			res, _ := m.Check(ctx, bpnl)
			if res.Allowed {
				if m.config.Limit > 0 && bpnl != "" {
					c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
				}
				return next(c)
			}

			secs := int(res.RetryAfter.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			m.logger.WithContext(ctx).WithField("partner_bpnl", bpnl).Warn("Partner exceeded request limit")
			return httperror.NewHTTPErrorf(http.StatusTooManyRequests, "rate limit exceeded for %s", bpnl)
		}
	}
}
