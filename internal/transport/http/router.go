package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/handlers"
	"github.com/Mohammed-Elkharadly/backend-technote/internal/middleware"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	UserHandler   *handlers.UserHandler
	NoteHandler   *handlers.NoteHandler
	SearchHandler *handlers.SearchHandler
	Guard         *middleware.AccessGuard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	auth := e.Group("/auth")
	auth.POST("", d.AuthHandler.Login, loginLimiter())
	auth.GET("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.Logout)

	users := e.Group("/users", d.Guard.RequireAuth)
	users.GET("", d.UserHandler.GetUsers)
	users.POST("", d.UserHandler.CreateUser)
	users.PATCH("", d.UserHandler.UpdateUser)
	users.DELETE("", d.UserHandler.DeleteUser)

	notes := e.Group("/notes", d.Guard.RequireAuth)
	notes.GET("", d.NoteHandler.GetNotes)
	notes.POST("", d.NoteHandler.CreateNote)
	notes.PATCH("", d.NoteHandler.UpdateNote)
	notes.DELETE("", d.NoteHandler.DeleteNote)
	notes.GET("/search", d.SearchHandler.Search)
}

// loginLimiter throttles credential guessing: 10 attempts per minute per IP,
// answered with 429.
func loginLimiter() echo.MiddlewareFunc {
	store := ecM.NewRateLimiterMemoryStoreWithConfig(ecM.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(10.0 / 60.0),
		Burst:     10,
		ExpiresIn: 3 * time.Minute,
	})
	return ecM.RateLimiterWithConfig(ecM.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests,
				"Too many login attempts from this IP, please try again after a minute")
		},
	})
}
