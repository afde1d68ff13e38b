package middleware

import (
	"io"
	"itemsvc/pkg/events"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(NewRequestContextMiddleware())
	app.Get("/trace", func(c *fiber.Ctx) error {
		traceID, _ := events.TraceIDFromContext(c.UserContext())
		return c.SendString(traceID)
	})
	return app
}

func TestRequestContextMiddleware_PropagatesHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/trace", nil)
	req.Header.Set(RequestIDHeader, "req-42")

	resp, err := newTestApp().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, "req-42", string(body))
	assert.Equal(t, "req-42", resp.Header.Get(RequestIDHeader))
}

func TestRequestContextMiddleware_GeneratesID(t *testing.T) {
	resp, err := newTestApp().Test(httptest.NewRequest("GET", "/trace", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.NotEmpty(t, body)
	assert.Equal(t, string(body), resp.Header.Get(RequestIDHeader))
}
