package http

import (
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/app"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type createItemRequest struct {
	HostSystem  string `json:"hostSystem" validate:"required"`
	HostItemID  string `json:"hostId" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"itemCategory" validate:"required"`
	Environment string `json:"preferredEnvironment"`
	Packaging   string `json:"packaging"`
	Owner       string `json:"owner"`
}

type itemPlacedRequest struct {
	Location string          `json:"location" validate:"required"`
	Quantity decimal.Decimal `json:"quantity"`
}

// ItemHandler serves the item resource and the storage-system item
// callbacks.
type ItemHandler struct {
	service *app.ItemService
}

// NewItemHandler builds an item handler.
func NewItemHandler(service *app.ItemService) *ItemHandler {
	return &ItemHandler{service: service}
}

// Create handles POST /v1/items. Creation is idempotent: an item that
// already exists is returned unchanged with 200 instead of 201.
func (handler *ItemHandler) Create(c *fiber.Ctx) error {
	var request createItemRequest
	if err := parseBody(c, &request); err != nil {
		return Error(c, err)
	}

	item, created, err := handler.service.CreateItem(c.UserContext(), app.CreateItemInput{
		HostSystem:  domain.HostSystem(request.HostSystem),
		HostItemID:  request.HostItemID,
		Description: request.Description,
		Category:    domain.ItemCategory(request.Category),
		Environment: domain.Environment(request.Environment),
		Packaging:   domain.Packaging(request.Packaging),
		Owner:       request.Owner,
	})
	if err != nil {
		return Error(c, err)
	}

	if created {
		return Created(c, item)
	}

	return OK(c, item)
}

// Get handles GET /v1/items/:hostSystem/:hostId.
func (handler *ItemHandler) Get(c *fiber.Ctx) error {
	item, err := handler.service.GetItem(c.UserContext(),
		domain.HostSystem(c.Params("hostSystem")), c.Params("hostId"))
	if err != nil {
		return Error(c, err)
	}

	return OK(c, item)
}

// MarkPlaced handles POST /v1/items/:hostSystem/:hostId/placed, the
// storage-system callback reporting the item placed at a location.
func (handler *ItemHandler) MarkPlaced(c *fiber.Ctx) error {
	var request itemPlacedRequest
	if err := parseBody(c, &request); err != nil {
		return Error(c, err)
	}

	item, err := handler.service.PlaceItem(c.UserContext(),
		domain.HostSystem(c.Params("hostSystem")), c.Params("hostId"),
		request.Location, request.Quantity)
	if err != nil {
		return Error(c, err)
	}

	return OK(c, item)
}
