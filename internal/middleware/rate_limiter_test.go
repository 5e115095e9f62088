package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
	}{
		{"single login", 1},
		{"default budget", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.POST("/session", func(c echo.Context) error {
				return c.NoContent(http.StatusCreated)
			}, RateLimiter(tt.perMinute))

			login := func(addr string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "/session", nil)
				req.RemoteAddr = addr
				rec := httptest.NewRecorder()
				e.ServeHTTP(rec, req)
				return rec
			}

			// The whole per-minute budget is available as a burst.
			for i := range tt.perMinute {
				assert.Equal(t, http.StatusCreated, login("198.51.100.7:5000").Code, "login %d", i+1)
			}
			denied := login("198.51.100.7:5001")
			assert.Equal(t, http.StatusTooManyRequests, denied.Code)
			assert.Contains(t, denied.Body.String(), "Too many requests")

			// Budgets are per client address.
			assert.Equal(t, http.StatusCreated, login("203.0.113.9:5000").Code)
		})
	}
}
