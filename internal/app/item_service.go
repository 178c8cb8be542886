package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/outbox"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
	"github.com/shopspring/decimal"
)

// CreateItemInput carries everything needed to register an item.
type CreateItemInput struct {
	HostSystem  domain.HostSystem
	HostItemID  string
	Description string
	Category    domain.ItemCategory
	Environment domain.Environment
	Packaging   domain.Packaging
	Owner       string
}

// ItemService owns the item use cases, following the same idempotency-check,
// transaction, outbox pattern as orders.
type ItemService struct {
	items  ItemRepository
	store  outbox.Store
	tx     Transactor
	logger log.Logger
}

// NewItemService validates the collaborators and builds an item service.
func NewItemService(items ItemRepository, store outbox.Store, tx Transactor, logger log.Logger) (*ItemService, error) {
	if items == nil {
		return nil, errors.New("item repository is required")
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

	return &ItemService{items: items, store: store, tx: tx, logger: logger}, nil
}

// GetItem returns an item or a not-found error.
func (service *ItemService) GetItem(ctx context.Context, hostSystem domain.HostSystem, hostItemID string) (*domain.Item, error) {
	item, err := service.items.Find(ctx, hostSystem, hostItemID)
	if err != nil {
		return nil, err
	}

	if item == nil {
		return nil, domain.NewNotFoundError("item %q not found for host %q", hostItemID, string(hostSystem))
	}

	return item, nil
}

// CreateItem registers an item idempotently. An existing item with the same
// (host system, host item id) is returned unchanged with created=false and
// no new outbox record.
func (service *ItemService) CreateItem(ctx context.Context, input CreateItemInput) (*domain.Item, bool, error) {
	item, err := domain.NewItem(
		input.HostSystem,
		input.HostItemID,
		input.Description,
		input.Category,
		input.Environment,
		input.Packaging,
		input.Owner,
	)
	if err != nil {
		return nil, false, err
	}

	existing, err := service.items.Find(ctx, input.HostSystem, input.HostItemID)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		return existing, false, nil
	}

	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.items.Create(ctx, item); err != nil {
			return err
		}

		return service.saveItemEvent(ctx, domain.EventItemCreated, item)
	})
	if errors.Is(err, domain.ErrDuplicateResource) {
		// Lost the race against a concurrent creator; the stored copy wins.
		winner, findErr := service.items.Find(ctx, input.HostSystem, input.HostItemID)
		if findErr != nil {
			return nil, false, findErr
		}

		if winner == nil {
			return nil, false, fmt.Errorf("%w: item %q vanished after duplicate insert", domain.ErrServer, input.HostItemID)
		}

		return winner, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	service.logger.Log(ctx, log.LevelInfo, "item created",
		log.String("host_system", string(item.HostSystem)),
		log.String("host_item_id", item.HostItemID),
	)

	return item, true, nil
}

// PlaceItem records a storage-system callback reporting the item placed at a
// location with an on-hand quantity, emitting an item-updated event.
func (service *ItemService) PlaceItem(ctx context.Context, hostSystem domain.HostSystem, hostItemID, location string, quantity decimal.Decimal) (*domain.Item, error) {
	item, err := service.GetItem(ctx, hostSystem, hostItemID)
	if err != nil {
		return nil, err
	}

	if err := item.Place(location, quantity); err != nil {
		return nil, err
	}

	err = service.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.items.Update(ctx, item); err != nil {
			return err
		}

		return service.saveItemEvent(ctx, domain.EventItemUpdated, item)
	})
	if err != nil {
		return nil, err
	}

	service.logger.Log(ctx, log.LevelInfo, "item placed",
		log.String("host_item_id", item.HostItemID),
		log.String("location", location),
	)

	return item, nil
}

func (service *ItemService) saveItemEvent(ctx context.Context, kind domain.EventKind, item *domain.Item) error {
	event, err := domain.NewItemEvent(kind, item)
	if err != nil {
		return err
	}

	return service.saveEvent(ctx, event)
}

// saveEvent fans the event out into one record per interested category; all
// of them join the ambient transaction.
func (service *ItemService) saveEvent(ctx context.Context, event *domain.Event) error {
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
