package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"github.com/imfiit/arena/internal/domain"
)

const (
	// UserContextKey holds the authenticated *domain.Player on the echo context.
	UserContextKey = "user"
	// SessionName is the cookie session that carries the player's token.
	SessionName = "arena_session"

	sessionTokenKey = "token"
	issuer          = "arena"
)

// Claims is the token body: the identity and stat snapshot the battle core
// trusts for the lifetime of the token.
type Claims struct {
	Player domain.Player `json:"player"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 player tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens creates a token issuer. ttl is how long issued tokens live.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for p.
func (t *Tokens) Issue(p domain.Player) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Player: p,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies raw and returns the player it was issued for.
func (t *Tokens) Parse(raw string) (*domain.Player, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Player.ID == "" || claims.Player.ID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", domain.ErrUnauthorized)
	}
	return &claims.Player, nil
}

// SaveSession stores token in the player's cookie session.
func SaveSession(c echo.Context, token string, maxAge time.Duration) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.Options.Path = "/"
	sess.Options.HttpOnly = true
	sess.Options.SameSite = http.SameSiteLaxMode
	sess.Options.MaxAge = int(maxAge.Seconds())
	sess.Values[sessionTokenKey] = token
	return sess.Save(c.Request(), c.Response())
}

// ClearSession expires the player's cookie session.
func ClearSession(c echo.Context) error {
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	sess.Options.Path = "/"
	sess.Options.MaxAge = -1
	delete(sess.Values, sessionTokenKey)
	return sess.Save(c.Request(), c.Response())
}

// Auth protects routes that require a player. The token is taken from the
// Authorization header, then the token query parameter (browsers cannot set
// headers on a websocket upgrade), then the cookie session.
func Auth(tokens *Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				return unauthorized(c)
			}
			player, err := tokens.Parse(raw)
			if err != nil {
				FromContext(c.Request().Context()).Warn("Rejected player token", "error", err)
				return unauthorized(c)
			}

			c.Set(UserContextKey, player)
			ctx := WithLogger(c.Request().Context(), FromContext(c.Request().Context()).With("player_id", player.ID))
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// PlayerFrom returns the authenticated player set by Auth.
func PlayerFrom(c echo.Context) (*domain.Player, bool) {
	p, ok := c.Get(UserContextKey).(*domain.Player)
	return p, ok && p != nil
}

func tokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		if raw, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(raw)
		}
	}
	if q := c.QueryParam("token"); q != "" {
		return q
	}
	sess, err := session.Get(SessionName, c)
	if err != nil {
		return ""
	}
	raw, _ := sess.Values[sessionTokenKey].(string)
	return raw
}

func unauthorized(c echo.Context) error {
	_, reason := domain.Describe(domain.ErrUnauthorized)
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": reason})
}
