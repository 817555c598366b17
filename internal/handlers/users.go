package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/hash"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/logging"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/models"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/mykafka"
)

const (
	usernameMinLen = 4
	usernameMaxLen = 20
	passwordMinLen = 8
)

var defaultRoles = []string{"Employee"}

type UserHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	ctx := c.Request().Context()

	var users []models.User
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load users")
	}

	if len(users) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No users found")
	}

	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_create")

	var req struct {
		Username string   `json:"username"`
		Password string   `json:"password"`
		Roles    []string `json:"roles"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	if req.Username == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	// Length limits count characters, not bytes, so multibyte usernames
	// are measured the same way the client sees them.
	if n := utf8.RuneCountInString(req.Username); n < usernameMinLen || n > usernameMaxLen {
		return echo.NewHTTPError(http.StatusBadRequest, "Username must be 4 to 20 characters long")
	}

	if utf8.RuneCountInString(req.Password) < passwordMinLen {
		return echo.NewHTTPError(http.StatusBadRequest, "Password must be at least 8 characters long")
	}

	// Username uniqueness is case-insensitive: "Alice" collides with "alice".
	var duplicate models.User
	err := h.DB.WithContext(ctx).Where("LOWER(username) = LOWER(?)", req.Username).First(&duplicate).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "User already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not check username")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("user_create_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not hash password")
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = defaultRoles
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: pwHash,
		Roles:        roles,
		Active:       true,
	}

	// The unique index is the authoritative duplicate check, the pre-check
	// above can lose the look-then-write race.
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "User already exists")
		}
		l.Error("user_create_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Invalid user data received")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_created",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"message": fmt.Sprintf("New user %s created", user.Username),
	})
}

func (h *UserHandler) UpdateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_update")

	var req struct {
		ID       uint     `json:"id"`
		Username string   `json:"username"`
		Password string   `json:"password"`
		Roles    []string `json:"roles"`
		Active   *bool    `json:"active"`
	}

	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	if req.ID == 0 || req.Username == "" || len(req.Roles) == 0 || req.Active == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "All fields are required")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, req.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "User not found")
	}

	// Same case-insensitive duplicate rule as create, but the user keeps
	// their own name.
	var duplicate models.User
	err := h.DB.WithContext(ctx).
		Where("LOWER(username) = LOWER(?) AND id <> ?", req.Username, req.ID).
		First(&duplicate).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Duplicate username")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not check username")
	}

	user.Username = req.Username
	user.Roles = req.Roles
	user.Active = *req.Active

	if req.Password != "" {
		pwHash, err := hash.HashPassword(req.Password)
		if err != nil {
			l.Error("user_update_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "could not hash password")
		}
		user.PasswordHash = pwHash
	}

	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "Duplicate username")
		}
		l.Error("user_update_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not update user")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_updated",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("%s updated", user.Username),
	})
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user_delete")

	var req struct {
		ID uint `json:"id"`
	}

	if err := c.Bind(&req); err != nil || req.ID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "User ID required")
	}

	// Referential guard: a user that still owns notes cannot go away.
	var noteCount int64
	if err := h.DB.WithContext(ctx).Model(&models.Note{}).Where("user_id = ?", req.ID).Count(&noteCount).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not check notes")
	}
	if noteCount > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "User has assigned notes")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, req.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "User not found")
	}

	if err := h.DB.WithContext(ctx).Delete(&user).Error; err != nil {
		l.Error("user_delete_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not delete user")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_deleted",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": fmt.Sprintf("User %s deleted", user.Username),
	})
}

func (h *UserHandler) publish(c echo.Context, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka_publish_error", "topic", "user_events", "error", err)
	}
}
