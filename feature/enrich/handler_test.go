package enrich

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()
	svc, _ := testService(t)
	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)
	return app
}

func TestHandleGetProduct(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)
	seedBeer(t, db, "B1", 4.0)
	seedLink(t, db, "P1", "B1")

	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/catalog/products/P1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var enriched EnrichedProduct
	require.NoError(t, json.Unmarshal(body, &enriched))
	assert.Equal(t, "P1", enriched.Product.ID)
	require.NotNil(t, enriched.Beer)
	assert.Positive(t, enriched.ValueScore)
}

func TestHandleGetProductNotFound(t *testing.T) {
	app := testApp(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/catalog/products/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleListLinks(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)
	seedLink(t, db, "P1", "B1")

	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/catalog/links", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, 1, payload.Count)
}

func TestHandleOverrideLink(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)

	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)

	t.Run("MissingBody", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/catalog/products/P1/link", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Installs", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/catalog/products/P1/link",
			strings.NewReader(`{"external_id":"B7"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})

	t.Run("UnknownProduct", func(t *testing.T) {
		req := httptest.NewRequest("PUT", "/catalog/products/nope/link",
			strings.NewReader(`{"external_id":"B7"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestHandleRejectLink(t *testing.T) {
	svc, db := testService(t)
	seedProduct(t, db, "P1", 200)
	seedLink(t, db, "P1", "B1")

	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/catalog/products/P1/link", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", "/catalog/products/P1/link", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "nothing left to reject")
}
