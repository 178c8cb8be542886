package http

import (
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/app"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/gofiber/fiber/v2"
)

type createOrderRequest struct {
	HostSystem  string   `json:"hostSystem" validate:"required"`
	HostOrderID string   `json:"hostOrderId" validate:"required"`
	OrderLines  []string `json:"orderLines" validate:"required,min=1,dive,required"`
	OrderType   string   `json:"orderType" validate:"required"`
	Receiver    struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"receiver"`
	CallbackURL string `json:"callbackUrl" validate:"omitempty,url"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderPickedRequest struct {
	HostItemID string `json:"hostItemId" validate:"required"`
}

// OrderHandler serves the order resource and the storage-system order
// callbacks.
type OrderHandler struct {
	service *app.OrderService
}

// NewOrderHandler builds an order handler.
func NewOrderHandler(service *app.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

// Create handles POST /v1/orders. Creation is idempotent: an order that
// already exists is returned unchanged with 200 instead of 201.
func (handler *OrderHandler) Create(c *fiber.Ctx) error {
	var request createOrderRequest
	if err := parseBody(c, &request); err != nil {
		return Error(c, err)
	}

	order, created, err := handler.service.CreateOrder(c.UserContext(), app.CreateOrderInput{
		HostSystem:  domain.HostSystem(request.HostSystem),
		HostOrderID: request.HostOrderID,
		HostItemIDs: request.OrderLines,
		OrderType:   domain.OrderType(request.OrderType),
		Receiver: domain.Receiver{
			Name:    request.Receiver.Name,
			Address: request.Receiver.Address,
		},
		CallbackURL: request.CallbackURL,
	})
	if err != nil {
		return Error(c, err)
	}

	if created {
		return Created(c, order)
	}

	return OK(c, order)
}

// Get handles GET /v1/orders/:hostSystem/:hostOrderId.
func (handler *OrderHandler) Get(c *fiber.Ctx) error {
	order, err := handler.service.GetOrder(c.UserContext(),
		domain.HostSystem(c.Params("hostSystem")), c.Params("hostOrderId"))
	if err != nil {
		return Error(c, err)
	}

	return OK(c, order)
}

// UpdateStatus handles PUT /v1/orders/:hostSystem/:hostOrderId/status.
func (handler *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	var request updateOrderStatusRequest
	if err := parseBody(c, &request); err != nil {
		return Error(c, err)
	}

	order, err := handler.service.UpdateOrderStatus(c.UserContext(),
		domain.HostSystem(c.Params("hostSystem")), c.Params("hostOrderId"),
		domain.OrderStatus(request.Status))
	if err != nil {
		return Error(c, err)
	}

	return OK(c, order)
}

// MarkPicked handles POST /v1/orders/:hostSystem/:hostOrderId/picked, the
// storage-system callback reporting one line picked.
func (handler *OrderHandler) MarkPicked(c *fiber.Ctx) error {
	var request orderPickedRequest
	if err := parseBody(c, &request); err != nil {
		return Error(c, err)
	}

	order, err := handler.service.MarkOrderLinePicked(c.UserContext(),
		domain.HostSystem(c.Params("hostSystem")), c.Params("hostOrderId"),
		request.HostItemID)
	if err != nil {
		return Error(c, err)
	}

	return OK(c, order)
}

// Delete handles DELETE /v1/orders/:hostSystem/:hostOrderId.
func (handler *OrderHandler) Delete(c *fiber.Ctx) error {
	err := handler.service.DeleteOrder(c.UserContext(),
		domain.HostSystem(c.Params("hostSystem")), c.Params("hostOrderId"))
	if err != nil {
		return Error(c, err)
	}

	return NoContent(c)
}
