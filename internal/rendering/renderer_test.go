package rendering

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

func TestRenderComponent(t *testing.T) {
	out, err := NewNodeRenderer().RenderComponent(context.Background(), h.P(g.Text("hi & bye")))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi &amp; bye</p>", string(out))
}

func TestRenderPage(t *testing.T) {
	e := echo.New()
	r := NewNodeRenderer()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	require.NoError(t, r.RenderPage(c, http.StatusAccepted, h.Div(g.Text("ok"))))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "<div>ok</div>", rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := r.RenderPage(c, http.StatusOK, failingNode{})
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusInternalServerError, he.Code)
}

type failingNode struct{}

func (failingNode) Render(io.Writer) error { return errors.New("boom") }
