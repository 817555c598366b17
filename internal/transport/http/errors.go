package httpserver

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Mohammed-Elkharadly/backend-technote/internal/logging"
)

// NewErrorHandler turns every error into {message, isError} JSON. Unexpected
// failures are logged with method, URL and origin and answered with a plain
// 500 so internals never reach the client.
func NewErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal Server Error"

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprint(he.Message)
		}

		if code >= 500 {
			req := c.Request()
			logging.FromContext(req.Context()).Error("unhandled_error",
				"method", req.Method,
				"url", req.URL.String(),
				"origin", req.Header.Get("Origin"),
				"error", err,
			)
		}

		if err := c.JSON(code, echo.Map{"message": message, "isError": true}); err != nil {
			logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", err)
		}
	}
}
