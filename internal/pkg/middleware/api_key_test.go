package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edudashpro/billing-service/internal/pkg/env"
)

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/admin", AdminAPIKeyMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestAdminAPIKeyMiddleware(t *testing.T) {
	env.Env = map[string]string{"ADMIN_API_KEY": "secret-key"}
	t.Cleanup(func() { env.Env = nil })

	app := newProtectedApp()

	tests := []struct {
		name     string
		header   string
		value    string
		expected int
	}{
		{"valid X-API-Key", "X-API-Key", "secret-key", fiber.StatusOK},
		{"valid bearer token", "Authorization", "Bearer secret-key", fiber.StatusOK},
		{"wrong key", "X-API-Key", "not-the-key", fiber.StatusUnauthorized},
		{"missing key", "", "", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

func TestAdminAPIKeyMiddleware_Unconfigured(t *testing.T) {
	env.Env = map[string]string{}
	t.Cleanup(func() { env.Env = nil })

	app := newProtectedApp()

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-API-Key", "anything")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
