package rendering

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	g "maragu.dev/gomponents"
)

// Renderer renders gomponents nodes to bytes or HTTP responses.
type Renderer interface {
	// RenderComponent renders a node to bytes. Useful for htmx fragments.
	RenderComponent(ctx context.Context, node g.Node) ([]byte, error)

	// RenderPage writes a node as the HTML response.
	RenderPage(c echo.Context, status int, node g.Node) error
}

// NodeRenderer is the default Renderer.
type NodeRenderer struct{}

var (
	_ Renderer      = (*NodeRenderer)(nil)
	_ echo.Renderer = (*NodeRenderer)(nil)
)

// NewNodeRenderer creates a NodeRenderer.
func NewNodeRenderer() *NodeRenderer {
	return &NodeRenderer{}
}

// RenderComponent implements the Renderer interface.
func (r *NodeRenderer) RenderComponent(_ context.Context, node g.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := node.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render component to bytes: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPage implements the Renderer interface. The node is rendered to a
// buffer first so a failure can still produce a 500.
func (r *NodeRenderer) RenderPage(c echo.Context, status int, node g.Node) error {
	body, err := r.RenderComponent(c.Request().Context(), node)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
	return c.HTMLBlob(status, body)
}

// Render implements echo.Renderer for c.Render(status, name, node).
func (r *NodeRenderer) Render(w io.Writer, _ string, data any, _ echo.Context) error {
	node, ok := data.(g.Node)
	if !ok {
		return fmt.Errorf("unsupported component type: %T", data)
	}
	return node.Render(w)
}
