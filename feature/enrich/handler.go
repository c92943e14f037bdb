package enrich

import (
	"errors"

	"catalog-sync/core/catalog"
	"catalog-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the catalog read API.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the catalog routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/catalog")
	group.Get("/links", h.HandleListLinks)
	group.Get("/products/:id", h.HandleGetProduct)
	group.Get("/changes", h.HandleListChanges)
	group.Put("/products/:id/link", h.HandleOverrideLink)
	group.Delete("/products/:id/link", h.HandleRejectLink)
}

// HandleListLinks returns every active product-to-beer link.
func (h *Handler) HandleListLinks(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	links, err := h.service.ListActiveLinks(c.Context())
	if err != nil {
		l.Error("Listing links failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"links": links, "count": len(links)})
}

// HandleGetProduct returns one product enriched with its community data.
func (h *Handler) HandleGetProduct(c *fiber.Ctx) error {
	id := c.Params("id")
	l := logger.WithRayID(h.service.logger, c)

	enriched, err := h.service.GetEnrichedProduct(c.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown product",
			})
		}
		l.Error("Product lookup failed", zap.String("product_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(enriched)
}

// HandleListChanges returns one cycle's change feed. The cycle query
// parameter selects the cycle; without it the latest cycle is used.
func (h *Handler) HandleListChanges(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	events, err := h.service.ChangeEvents(c.Context(), c.Query("cycle"))
	if err != nil {
		l.Error("Listing changes failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"events": events, "count": len(events)})
}

// HandleOverrideLink installs a manual link for a product.
func (h *Handler) HandleOverrideLink(c *fiber.Ctx) error {
	id := c.Params("id")
	l := logger.WithRayID(h.service.logger, c)

	var body struct {
		ExternalID string `json:"external_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.ExternalID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "external_id is required",
		})
	}

	if err := h.service.OverrideLink(c.Context(), id, body.ExternalID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown product",
			})
		}
		l.Error("Link override failed", zap.String("product_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleRejectLink marks a product's active link as a wrong match.
func (h *Handler) HandleRejectLink(c *fiber.Ctx) error {
	id := c.Params("id")
	l := logger.WithRayID(h.service.logger, c)

	if err := h.service.RejectLink(c.Context(), id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "no active link",
			})
		}
		l.Error("Link rejection failed", zap.String("product_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
