package http

import (
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/outbox"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler exposes the operator surface: manual outbox drains and the
// raw outbox listing for diagnostics.
type AdminHandler struct {
	registry *outbox.Registry
	store    outbox.Store
}

// NewAdminHandler builds an admin handler.
func NewAdminHandler(registry *outbox.Registry, store outbox.Store) *AdminHandler {
	return &AdminHandler{registry: registry, store: store}
}

// Drain handles POST /v1/admin/outbox/drain. The category query parameter
// selects one processor; "all" (the default) runs every processor. The call
// runs the drain synchronously and returns the per-category counts.
func (handler *AdminHandler) Drain(c *fiber.Ctx) error {
	category := c.Query("category", "all")

	if category == "all" {
		return OK(c, handler.registry.DrainAll(c.UserContext()))
	}

	result, err := handler.registry.Drain(c.UserContext(), outbox.Category(category))
	if err != nil {
		return Error(c, domain.NewValidationError("%s", err))
	}

	return OK(c, map[outbox.Category]outbox.DrainResult{outbox.Category(category): result})
}

// ListOutbox handles GET /v1/admin/outbox.
func (handler *AdminHandler) ListOutbox(c *fiber.Ctx) error {
	records, err := handler.store.ListAll(c.UserContext())
	if err != nil {
		return Error(c, err)
	}

	return OK(c, records)
}
