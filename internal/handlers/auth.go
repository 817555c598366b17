package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/hash"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/logging"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/models"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/mykafka"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/tokens"
)

// SessionCookie carries the refresh token and nothing else. HttpOnly keeps it
// away from scripts, SameSite=None lets the cross-origin frontend send it.
const SessionCookie = "jwt"

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *tokens.Service
	Producer *mykafka.Producer
}

func CreateSessionCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	// Missing user, inactive user and wrong password all answer the same
	// way so account existence is never leaked.
	var user models.User
	if err := h.DB.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "unknown user")
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	if !user.Active {
		l.Warn("login_failed", "status", 401, "reason", "inactive user")
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "password mismatch")
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	accessToken, err := h.Tokens.IssueAccess(user.Username, user.Roles)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}

	refreshToken, err := h.Tokens.IssueRefresh(user.Username)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create refresh token")
	}

	c.SetCookie(CreateSessionCookie(refreshToken, h.Tokens.RefreshTTL))

	h.publish(c, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	l.Info("login_successful", "username", user.Username)

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": accessToken,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	cookie, err := c.Cookie(SessionCookie)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	claims, err := h.Tokens.ParseRefresh(cookie.Value)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "invalid refresh token")
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	// The user may have been deleted between issuance and use.
	var user models.User
	if err := h.DB.WithContext(ctx).Where("username = ?", claims.Username).First(&user).Error; err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "user gone")
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	accessToken, err := h.Tokens.IssueAccess(user.Username, user.Roles)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create access token")
	}

	// Rotation: every refresh replaces the cookie with a brand-new token.
	// The old one is not tracked server side, its replacement is the only
	// invalidation.
	refreshToken, err := h.Tokens.IssueRefresh(user.Username)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create refresh token")
	}

	c.SetCookie(CreateSessionCookie(refreshToken, h.Tokens.RefreshTTL))

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": accessToken,
	})
}

// Logout is idempotent and never fails: with no cookie present there is
// nothing to clear and that is still a success.
func (h *AuthHandler) Logout(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_logout")

	if _, err := c.Cookie(SessionCookie); err != nil {
		return c.JSON(http.StatusOK, echo.Map{
			"message": "No cookie to clear",
		})
	}

	c.SetCookie(ClearSessionCookie())
	l.Info("logout_successful")

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Cookie cleared",
	})
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "topic", topic, "error", err)
	}
}
