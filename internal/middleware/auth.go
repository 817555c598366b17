package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/tokens"
)

// Context keys populated for handlers running behind RequireAuth.
const (
	CtxUsername = "username"
	CtxRoles    = "roles"
)

// AccessGuard verifies the Authorization header on every request; nothing is
// cached between requests. A missing or malformed header is 401 so the client
// knows to log in, a failed verification is 403 so it knows to try refreshing.
type AccessGuard struct {
	Tokens *tokens.Service
}

func NewAccessGuard(svc *tokens.Service) *AccessGuard {
	return &AccessGuard{Tokens: svc}
}

func (m *AccessGuard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}

		claims, err := m.Tokens.ParseAccess(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
		}

		c.Set(CtxUsername, claims.UserInfo.Username)
		c.Set(CtxRoles, claims.UserInfo.Roles)

		return next(c)
	}
}
