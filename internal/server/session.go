package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/imfiit/arena/internal/domain"
	"github.com/imfiit/arena/internal/middleware"
	"github.com/imfiit/arena/internal/view"
)

// SessionResponse is returned to API clients on sign-in.
type SessionResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Player    domain.Player `json:"player"`
}

// sessionHandler issues sessions for an identity snapshot supplied by the
// upstream profile service. It trusts the snapshot; it only checks shape.
type sessionHandler struct {
	tokens *middleware.Tokens
	ttl    time.Duration
}

func newSessionHandler(tokens *middleware.Tokens, ttl time.Duration) *sessionHandler {
	return &sessionHandler{tokens: tokens, ttl: ttl}
}

// Create handles POST /session. JSON clients get the token in the body;
// form posts are redirected to the lobby.
func (h *sessionHandler) Create(c echo.Context) error {
	var p domain.Player
	if err := c.Bind(&p); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request"})
	}
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		code, reason := domain.Describe(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"code": code, "error": reason})
	}

	token, exp, err := h.tokens.Issue(p)
	if err != nil {
		return err
	}
	if err := middleware.SaveSession(c, token, h.ttl); err != nil {
		return err
	}
	middleware.FromContext(c.Request().Context()).Info("Session issued", "player_id", p.ID)

	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		_ = view.SetFlashSuccess(c, "Signed in as "+p.Name)
		return c.Redirect(http.StatusSeeOther, "/arena/lobby")
	}
	return c.JSON(http.StatusCreated, SessionResponse{Token: token, ExpiresAt: exp, Player: p})
}

// Delete handles DELETE /session.
func (h *sessionHandler) Delete(c echo.Context) error {
	if err := middleware.ClearSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
