package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imfiit/arena/internal/config"
)

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestRegistry(t *testing.T) {
	cfg := &config.Config{Addr: ":0"}
	r := New(cfg)
	assert.Same(t, cfg, r.Config())

	key := Key[greeter]("test.greeter")
	_, ok := Get(r, key)
	assert.False(t, ok)
	assert.Panics(t, func() { MustGet(r, key) })

	Set[greeter](r, key, english{})
	g, ok := Get(r, key)
	require.True(t, ok)
	assert.Equal(t, "hello", g.Greet())
	assert.Equal(t, "hello", MustGet(r, key).Greet())
}
