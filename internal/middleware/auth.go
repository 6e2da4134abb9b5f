package middleware

import (
	"net/http"

	"ticketsplit/pkg/jwtutil"
	"ticketsplit/pkg/logger"
	"ticketsplit/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TokenHeader is the header carrying the bearer token. The API predates the
// standard Authorization scheme and clients still send this custom header.
const TokenHeader = "x-auth-token"

// Context keys set by Auth for downstream handlers.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
)

// Auth validates the token from the x-auth-token header and stores the
// authenticated identity in the request context.
func Auth(jwt *jwtutil.JWT) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)

			token := c.Request().Header.Get(TokenHeader)
			if token == "" {
				log.Warn("Missing auth token header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no token, authorization denied"})
			}

			claims, err := jwt.ValidateToken(token)
			if err != nil {
				log.Warn("Invalid JWT token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token is not valid"})
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(EmailKey, claims.Email)

			return next(c)
		}
	}
}

// UserID returns the authenticated user id stored by Auth, or false when the
// request did not pass through the guard.
func UserID(c echo.Context) (uint, bool) {
	id, ok := c.Get(UserIDKey).(uint)
	return id, ok
}
