package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

// Logger writes one access log line per request. Probe and scrape routes are logged at debug level.
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			ctx := req.Context()
			entry := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    context.GetRequestID(ctx),
				"partner_bpnl":  context.GetPartnerBpnl(ctx),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         c.Path(),
				"remote_ip":     c.RealIP(),
				"user_agent":    req.UserAgent(),
				"response_time": stop.Sub(start),
				"request_size":  req.Header.Get(echo.HeaderContentLength),
				"response_size": strconv.FormatInt(res.Size, 10),
			})

			if strings.HasPrefix(c.Path(), "/api/v1/health") || c.Path() == "/metrics" {
				entry.Debug("Request")
				return nil
			}
			entry.Info("Request")
			return nil
		}
	}
}
