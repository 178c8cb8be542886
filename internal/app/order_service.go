package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/outbox"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
)

// CreateOrderInput carries everything needed to create an order.
type CreateOrderInput struct {
	HostSystem  domain.HostSystem
	HostOrderID string
	HostItemIDs []string
	OrderType   domain.OrderType
	Receiver    domain.Receiver
	CallbackURL string
}

// OrderService owns the order use cases. Every state change persists the
// entity and its outbox record in one transaction; the outbox is the only
// channel through which downstream systems learn about the change.
type OrderService struct {
	orders OrderRepository
	store  outbox.Store
	tx     Transactor
	logger log.Logger
}

// NewOrderService validates the collaborators and builds an order service.
func NewOrderService(orders OrderRepository, store outbox.Store, tx Transactor, logger log.Logger) (*OrderService, error) {
	if orders == nil {
		return nil, errors.New("order repository is required")
	}

	if store == nil {
		return nil, errors.New("outbox store is required")
	}

	if tx == nil {
		return nil, errors.New("transactor is required")
	}

	if logger == nil {
		logger = log.NewNop()
	}

	return &OrderService{orders: orders, store: store, tx: tx, logger: logger}, nil
}

// GetOrder returns an order or a not-found error.
func (service *OrderService) GetOrder(ctx context.Context, hostSystem domain.HostSystem, hostOrderID string) (*domain.Order, error) {
	order, err := service.orders.Find(ctx, hostSystem, hostOrderID)
	if err != nil {
		return nil, err
	}

	if order == nil {
		return nil, domain.NewNotFoundError("order %q not found for host %q", hostOrderID, string(hostSystem))
	}

	return order, nil
}

// CreateOrder creates an order idempotently. If an order with the same
// (host system, host order id) already exists it is returned unchanged with
// created=false and no new outbox record. Otherwise the order and its
// order-created and order-confirmation events are persisted atomically.
func (service *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, bool, error) {
	order, err := domain.NewOrder(
		input.HostSystem,
		input.HostOrderID,
		input.HostItemIDs,
		input.OrderType,
		input.Receiver,
		input.CallbackURL,
	)
	if err != nil {
		return nil, false, err
	}

	existing, err := service.orders.Find(ctx, input.HostSystem, input.HostOrderID)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		return existing, false, nil
	}

	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.orders.Create(ctx, order); err != nil {
			return err
		}

		if err := service.saveOrderEvent(ctx, domain.EventOrderCreated, order); err != nil {
			return err
		}

		return service.saveOrderEvent(ctx, domain.EventOrderConfirmation, order)
	})
	if errors.Is(err, domain.ErrDuplicateResource) {
		// Lost the race against a concurrent creator; the stored copy wins.
		winner, findErr := service.orders.Find(ctx, input.HostSystem, input.HostOrderID)
		if findErr != nil {
			return nil, false, findErr
		}

		if winner == nil {
			return nil, false, fmt.Errorf("%w: order %q vanished after duplicate insert", domain.ErrServer, input.HostOrderID)
		}

		return winner, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	service.logger.Log(ctx, log.LevelInfo, "order created",
		log.String("host_system", string(order.HostSystem)),
		log.String("host_order_id", order.HostOrderID),
	)

	return order, true, nil
}

// UpdateOrderStatus transitions an order's status. Reaching COMPLETED
// additionally emits an order-pickup event for the email category.
func (service *OrderService) UpdateOrderStatus(ctx context.Context, hostSystem domain.HostSystem, hostOrderID string, status domain.OrderStatus) (*domain.Order, error) {
	order, err := service.GetOrder(ctx, hostSystem, hostOrderID)
	if err != nil {
		return nil, err
	}

	if order.Status == status {
		return order, nil
	}

	if err := order.SetStatus(status); err != nil {
		return nil, err
	}

	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.orders.Update(ctx, order); err != nil {
			return err
		}

		if err := service.saveOrderEvent(ctx, domain.EventOrderUpdated, order); err != nil {
			return err
		}

		if order.Status == domain.OrderStatusCompleted {
			return service.saveOrderEvent(ctx, domain.EventOrderPickup, order)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	service.logger.Log(ctx, log.LevelInfo, "order status updated",
		log.String("host_order_id", order.HostOrderID),
		log.String("status", string(order.Status)),
	)

	return order, nil
}

// MarkOrderLinePicked records a storage-system pick callback for one line.
// When the pick completes the order, an order-pickup event is emitted so the
// receiver can be notified.
func (service *OrderService) MarkOrderLinePicked(ctx context.Context, hostSystem domain.HostSystem, hostOrderID, hostItemID string) (*domain.Order, error) {
	order, err := service.GetOrder(ctx, hostSystem, hostOrderID)
	if err != nil {
		return nil, err
	}

	if err := order.MarkLinePicked(hostItemID); err != nil {
		return nil, err
	}

	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.orders.Update(ctx, order); err != nil {
			return err
		}

		if err := service.saveOrderEvent(ctx, domain.EventOrderUpdated, order); err != nil {
			return err
		}

		if order.Status == domain.OrderStatusCompleted {
			return service.saveOrderEvent(ctx, domain.EventOrderPickup, order)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	service.logger.Log(ctx, log.LevelInfo, "order line picked",
		log.String("host_order_id", order.HostOrderID),
		log.String("host_item_id", hostItemID),
		log.String("status", string(order.Status)),
	)

	return order, nil
}

// DeleteOrder removes an order and emits order-cancellation (full snapshot,
// for the receiver email) and order-deleted (identity only, for the hosts).
func (service *OrderService) DeleteOrder(ctx context.Context, hostSystem domain.HostSystem, hostOrderID string) error {
	order, err := service.GetOrder(ctx, hostSystem, hostOrderID)
	if err != nil {
		return err
	}

	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.orders.Delete(ctx, hostSystem, hostOrderID); err != nil {
			return err
		}

		if err := service.saveOrderEvent(ctx, domain.EventOrderCancellation, order); err != nil {
			return err
		}

		event, err := domain.NewOrderDeletedEvent(hostSystem, hostOrderID)
		if err != nil {
			return err
		}

		return service.saveEvent(ctx, event)
	})
	if err != nil {
		return err
	}

	service.logger.Log(ctx, log.LevelInfo, "order deleted",
		log.String("host_system", string(hostSystem)),
		log.String("host_order_id", hostOrderID),
	)

	return nil
}

func (service *OrderService) saveOrderEvent(ctx context.Context, kind domain.EventKind, order *domain.Order) error {
	event, err := domain.NewOrderEvent(kind, order)
	if err != nil {
		return err
	}

	return service.saveEvent(ctx, event)
}

// saveEvent fans the event out into one record per interested category; all
// of them join the ambient transaction.
func (service *OrderService) saveEvent(ctx context.Context, event *domain.Event) error {
	records, err := outbox.RecordsFor(event)
	if err != nil {
		return err
	}

	for _, record := range records {
		if err := service.store.Save(ctx, record); err != nil {
			return err
		}
	}

	return nil
}
