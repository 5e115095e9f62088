package server

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"github.com/imfiit/arena/internal/middleware"
)

// setupErrorHandling installs an error handler that logs unhandled errors
// with a stack trace. echo.HTTPErrors are expected and logged at debug.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := middleware.FromContext(c.Request().Context())

		var he *echo.HTTPError
		if errors.As(err, &he) {
			if he.Internal != nil {
				logger.Error("Request failed", "status", he.Code, "error", he.Internal)
			} else {
				logger.Debug("Request rejected", "status", he.Code, "error", he.Message)
			}
			_ = c.JSON(he.Code, map[string]any{"error": he.Message})
			return
		}

		logger.Error("Internal Server Error (Unhandled)",
			"error", err.Error(),
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"stack_trace", string(debug.Stack()))
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
	}
}
