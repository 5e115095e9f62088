package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/imfiit/arena/internal/middleware"
)

// RegisterRoutes sets up the core routes. Module routes are mounted by
// InitModules.
func (s *Server) RegisterRoutes() {
	sessions := newSessionHandler(s.Tokens, s.Cfg.TokenTTL)
	loginLimiter := middleware.RateLimiter(s.Cfg.LoginPerMin)

	s.E.GET("/", func(c echo.Context) error {
		if _, err := c.Cookie(middleware.SessionName); err == nil {
			return c.Redirect(http.StatusFound, "/arena/lobby")
		}
		return c.JSON(http.StatusOK, map[string]string{"service": "arena", "login": "POST /session"})
	})
	s.E.POST("/session", sessions.Create, loginLimiter)
	s.E.DELETE("/session", sessions.Delete)

	s.E.GET("/ws", s.bridge.Handler(), middleware.Auth(s.Tokens))

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
