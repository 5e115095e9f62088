package server_test

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/middleware"
)

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestSession(t *testing.T) {
	env := setupIntegrationTest(t)

	t.Run("json sign-in returns a usable token", func(t *testing.T) {
		sess := env.login(t, alice)
		require.NotEmpty(t, sess.Token)
		assert.Equal(t, alice, sess.Player)
		assert.True(t, sess.ExpiresAt.After(time.Now()))
	})

	t.Run("invalid snapshot is rejected", func(t *testing.T) {
		resp, err := http.Post(env.ts.URL+"/session", echoJSON,
			bytes.NewReader([]byte(`{"id":"carol","name":"  ","level":1}`)))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("form sign-in redirects to the lobby with a cookie", func(t *testing.T) {
		form := url.Values{"id": {"dana"}, "name": {"Dana"}, "level": {"2"}}
		resp, err := noRedirect().Post(env.ts.URL+"/session", "application/x-www-form-urlencoded",
			strings.NewReader(form.Encode()))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/arena/lobby", resp.Header.Get("Location"))

		var found bool
		for _, c := range resp.Cookies() {
			found = found || c.Name == middleware.SessionName
		}
		assert.True(t, found, "session cookie set")
	})

	t.Run("sign-out", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, env.ts.URL+"/session", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("protected routes need a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.getJSON(t, "/arena/rooms", "", nil))
		assert.Equal(t, http.StatusUnauthorized, env.getJSON(t, "/arena/rooms", "garbage", nil))
		assert.Equal(t, http.StatusOK, env.getJSON(t, "/health", "", nil))
	})
}
