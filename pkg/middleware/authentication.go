package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

type UserClaims struct {
	Sub         string `json:"sub"`
	Email       string `json:"email"`
	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// HasRole reports whether the realm roles include role.
func (c UserClaims) HasRole(role string) bool {
	for _, r := range c.RealmAccess.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authentication verifies OIDC bearer tokens for the admin API. When requiredRole is
// non-empty the token must carry it as a realm role.
func Authentication(ctx context.Context, logger ectologger.Logger, issuer, clientID, requiredRole string) (echo.MiddlewareFunc, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc provider %s: %w", issuer, err)
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, span := tracing.StartSpan(c.Request().Context(), "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer")
			}

			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			idToken, err := verifier.Verify(verifyCtx, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			var claims UserClaims
			if err := idToken.Claims(&claims); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("failed to parse claims")
				return echo.NewHTTPError(http.StatusUnauthorized, "cannot parse claims")
			}

			if requiredRole != "" && !claims.HasRole(requiredRole) {
				logger.WithContext(ctx).WithField("user_id", claims.Sub).Warnf("token lacks role %s", requiredRole)
				return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
			}

			ctx = appctx.SetUserID(ctx, claims.Sub)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}, nil
}
