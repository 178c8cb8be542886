// Package app contains the application services orchestrating idempotency
// checks, domain use cases and transactional outbox writes.
package app

import (
	"context"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
)

// Transactor runs a unit of work so that every repository and outbox write
// made inside fn succeeds or fails together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository is the durable store for orders. Find returns (nil, nil)
// when no order exists for the identity.
type OrderRepository interface {
	Find(ctx context.Context, hostSystem domain.HostSystem, hostOrderID string) (*domain.Order, error)
	Create(ctx context.Context, order *domain.Order) error
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, hostSystem domain.HostSystem, hostOrderID string) error
}

// ItemRepository is the durable store for items. Find returns (nil, nil)
// when no item exists for the identity.
type ItemRepository interface {
	Find(ctx context.Context, hostSystem domain.HostSystem, hostItemID string) (*domain.Item, error)
	Create(ctx context.Context, item *domain.Item) error
	Update(ctx context.Context, item *domain.Item) error
}
