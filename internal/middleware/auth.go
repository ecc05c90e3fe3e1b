package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/riveredge/platform/internal/apperror"
	"github.com/riveredge/platform/internal/tenant"
	"github.com/riveredge/platform/pkg/jwtutil"
	"github.com/riveredge/platform/pkg/logger"
	"github.com/riveredge/platform/pkg/metrics"
)

// JWTAuthMiddleware validates the bearer token and binds the tenant context
// for the request. Platform admins carry no tenant in their token and may
// select one per request through the X-Tenant-ID header.
func JWTAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				log.Warn("Missing authorization header")
				metrics.RecordAuthError("missing_header")
				return apperror.Auth("missing authorization header")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				log.Warn("Invalid authorization header format")
				metrics.RecordAuthError("invalid_header")
				return apperror.Auth("invalid authorization header format")
			}

			claims, err := jwtutil.ValidateToken(parts[1])
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				metrics.RecordAuthError("invalid_token")
				return apperror.Auth("invalid or expired token")
			}

			tc := &tenant.Context{
				UserID:          claims.UserID,
				Username:        claims.Username,
				IsPlatformAdmin: claims.IsPlatformAdmin,
				IsTenantAdmin:   claims.IsTenantAdmin,
				IsGuest:         claims.IsGuest,
			}
			if claims.TenantID != nil {
				tc.TenantID = *claims.TenantID
			} else if claims.IsPlatformAdmin {
				if header := c.Request().Header.Get("X-Tenant-ID"); header != "" {
					id, convErr := strconv.ParseUint(header, 10, 64)
					if convErr != nil {
						return apperror.Validation("invalid X-Tenant-ID header")
					}
					tc.TenantID = uint(id)
				}
			}

			c.Set("user", claims)
			c.Set(tenant.ContextKey, tc)
			log.Debug("JWT token validated successfully",
				zap.Uint("user_id", claims.UserID),
				zap.String("username", claims.Username))

			return next(c)
		}
	}
}

// RequireTenantContext rejects requests not bound to a concrete tenant.
// Mount it after JWTAuthMiddleware on every tenant-scoped route group.
func RequireTenantContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tc, err := tenant.FromEcho(c)
			if err != nil {
				return err
			}
			if !tc.HasTenant() {
				logger.FromEcho(c).Warn("Request without tenant context",
					zap.Uint("user_id", tc.UserID))
				metrics.TenantContextMissingCounter.Inc()
				return apperror.AccessDenied("tenant context required")
			}
			return next(c)
		}
	}
}
