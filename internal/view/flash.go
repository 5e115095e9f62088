// Package view holds request-scoped helpers shared by HTML handlers.
package view

import (
	"fmt"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
)

const (
	flashSessionName = "arena_flash"
	flashKeySuccess  = "success"
	flashKeyError    = "error"
)

// FlashData is the set of one-shot messages waiting for the next page.
type FlashData struct {
	Success []string
	Error   []string
}

// Empty reports whether there is nothing to show.
func (f FlashData) Empty() bool {
	return len(f.Success) == 0 && len(f.Error) == 0
}

func setFlash(c echo.Context, key, message string) error {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return fmt.Errorf("load flash session: %w", err)
	}
	sess.Options.Path = "/"
	sess.Options.HttpOnly = true
	sess.AddFlash(message, key)
	return sess.Save(c.Request(), c.Response())
}

// SetFlashSuccess queues a success message.
func SetFlashSuccess(c echo.Context, message string) error {
	return setFlash(c, flashKeySuccess, message)
}

// SetFlashError queues an error message.
func SetFlashError(c echo.Context, message string) error {
	return setFlash(c, flashKeyError, message)
}

// GetFlashData returns and clears the queued messages.
func GetFlashData(c echo.Context) FlashData {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return FlashData{}
	}
	data := FlashData{
		Success: asStrings(sess.Flashes(flashKeySuccess)),
		Error:   asStrings(sess.Flashes(flashKeyError)),
	}
	// Flashes clears the values; saving persists that.
	if !data.Empty() {
		_ = sess.Save(c.Request(), c.Response())
	}
	return data
}

func asStrings(vals []any) []string {
	var out []string
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
