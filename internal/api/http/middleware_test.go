package http

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/observability"
	apperrors "github.com/SynergyRentals/SynergyVAHouse-sub002/pkg/util"
)

func newTestApp(t *testing.T) (*fiber.App, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	return app, metrics
}

func decodeError(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var payload struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload.Error
}

func TestErrorMiddlewareMapsDomainErrors(t *testing.T) {
	app, _ := newTestApp(t)
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("task", map[string]any{"task_id": "t1"})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	errBody := decodeError(t, resp.Body)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestErrorMiddlewareMapsTransitionErrors(t *testing.T) {
	app, _ := newTestApp(t)
	app.Post("/transition", func(c *fiber.Ctx) error {
		return apperrors.NewInvalidTransition("DONE", "OPEN")
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/transition", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	errBody := decodeError(t, resp.Body)
	assert.Equal(t, "INVALID_TRANSITION", errBody["code"])
	assert.NotNil(t, errBody["details"])
}

func TestErrorMiddlewareRecoversPanics(t *testing.T) {
	app, metrics := newTestApp(t)
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("unexpected")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	errBody := decodeError(t, resp.Body)
	assert.Equal(t, "INTERNAL_ERROR", errBody["code"])

	snap := metrics.Snapshot()
	assert.NotEmpty(t, snap.Errors)
}

func TestSuccessPassesThrough(t *testing.T) {
	app, _ := newTestApp(t)
	app.Get("/ok", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": "ok"})
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/ok", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
