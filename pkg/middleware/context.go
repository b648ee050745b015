package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/context"
)

const (
	// HeaderEdcBpn carries the BPNL of the calling partner; the connector's data plane sets it.
	HeaderEdcBpn = "Edc-Bpn"
	// HeaderUserID is honoured only when authentication is disabled
	HeaderUserID = "X-User-ID"
)

func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			ctx := req.Context()
			ctx = context.SetRequestID(ctx, requestID)
			ctx = context.SetMethod(ctx, req.Method)
			ctx = context.SetRoute(ctx, req.URL.Path)
			ctx = context.SetRemoteIP(ctx, c.RealIP())
			ctx = context.SetPartnerBpnl(ctx, req.Header.Get(HeaderEdcBpn))
			ctx = context.SetUserID(ctx, req.Header.Get(HeaderUserID))

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
