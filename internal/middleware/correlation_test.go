package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/middleware"
)

func newCorrelationApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		fromCtx := middleware.CorrelationIDFromContext(c.UserContext())
		return c.SendString(middleware.GetCorrelationID(c) + "|" + fromCtx)
	})
	return app
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return string(data)
}

func TestCorrelationIDSources(t *testing.T) {
	app := newCorrelationApp()

	req := httptest.NewRequest(http.MethodGet, "/?correlation_id=from-query", nil)
	req.Header.Set("X-Correlation-ID", "from-header")
	resp := perform(t, app, req)
	require.Equal(t, "from-header", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "from-header|from-header", readBody(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "from-request-id")
	resp = perform(t, app, req)
	require.Equal(t, "from-request-id|from-request-id", readBody(t, resp))

	resp = perform(t, app, httptest.NewRequest(http.MethodGet, "/?correlation_id=ws-tab-1", nil))
	require.Equal(t, "ws-tab-1|ws-tab-1", readBody(t, resp))
}

func TestCorrelationIDGeneratedWhenUnusable(t *testing.T) {
	app := newCorrelationApp()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", strings.Repeat("x", 200))
	resp := perform(t, app, req)

	generated := resp.Header.Get("X-Correlation-ID")
	require.Len(t, generated, 36)
	require.Equal(t, generated+"|"+generated, readBody(t, resp))
}
