//go:build unit

package app

import (
	"context"
	"sync"
	"testing"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/outbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type itemKey struct {
	hostSystem domain.HostSystem
	hostItemID string
}

type memItemRepo struct {
	mu    sync.Mutex
	items map[itemKey]domain.Item
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[itemKey]domain.Item)}
}

func (repo *memItemRepo) Find(_ context.Context, hostSystem domain.HostSystem, hostItemID string) (*domain.Item, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	item, ok := repo.items[itemKey{hostSystem, hostItemID}]
	if !ok {
		return nil, nil
	}

	copied := item.Snapshot()

	return &copied, nil
}

func (repo *memItemRepo) Create(_ context.Context, item *domain.Item) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key := itemKey{item.HostSystem, item.HostItemID}
	if _, exists := repo.items[key]; exists {
		return domain.ErrDuplicateResource
	}

	repo.items[key] = item.Snapshot()

	return nil
}

func (repo *memItemRepo) Update(_ context.Context, item *domain.Item) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key := itemKey{item.HostSystem, item.HostItemID}
	if _, exists := repo.items[key]; !exists {
		return domain.NewNotFoundError("item %q not found", item.HostItemID)
	}

	repo.items[key] = item.Snapshot()

	return nil
}

// passthroughTransactor runs the unit of work directly; item tests that need
// rollback semantics are covered by the order service tests.
type passthroughTransactor struct{}

func (passthroughTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newItemServiceFixture(t *testing.T) (*ItemService, *memItemRepo, *memOutboxStore) {
	t.Helper()

	items := newMemItemRepo()
	store := &memOutboxStore{}

	service, err := NewItemService(items, store, passthroughTransactor{}, nil)
	require.NoError(t, err)

	return service, items, store
}

func validCreateItemInput() CreateItemInput {
	return CreateItemInput{
		HostSystem:  domain.HostSystemAxiell,
		HostItemID:  "mlt-12345",
		Description: "Tidsskrift nr. 4",
		Category:    domain.ItemCategoryPaper,
		Environment: domain.EnvironmentNone,
		Packaging:   domain.PackagingNone,
		Owner:       "NB",
	}
}

func TestCreateItemWritesItemAndOutboxRecord(t *testing.T) {
	t.Parallel()

	service, _, store := newItemServiceFixture(t)

	item, created, err := service.CreateItem(context.Background(), validCreateItemInput())
	require.NoError(t, err)
	require.True(t, created)
	require.Nil(t, item.Location)
	require.Nil(t, item.Quantity)

	require.Equal(t, []domain.EventKind{domain.EventItemCreated}, store.kinds())
	require.ElementsMatch(t,
		[]outbox.Category{outbox.CategoryCatalog, outbox.CategoryStorage, outbox.CategoryStatistics},
		store.categories(domain.EventItemCreated))
}

func TestCreateItemIsIdempotent(t *testing.T) {
	t.Parallel()

	service, _, store := newItemServiceFixture(t)

	_, created, err := service.CreateItem(context.Background(), validCreateItemInput())
	require.NoError(t, err)
	require.True(t, created)

	recordsAfterFirst := store.count()

	_, created, err = service.CreateItem(context.Background(), validCreateItemInput())
	require.NoError(t, err)
	require.False(t, created)

	require.Equal(t, recordsAfterFirst, store.count())
}

func TestCreateItemValidation(t *testing.T) {
	t.Parallel()

	service, items, _ := newItemServiceFixture(t)

	input := validCreateItemInput()
	input.Description = " "

	_, _, err := service.CreateItem(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Empty(t, items.items)
}

func TestPlaceItemEmitsItemUpdated(t *testing.T) {
	t.Parallel()

	service, _, store := newItemServiceFixture(t)

	_, _, err := service.CreateItem(context.Background(), validCreateItemInput())
	require.NoError(t, err)

	item, err := service.PlaceItem(context.Background(), domain.HostSystemAxiell, "mlt-12345", "SYNQ-01-02", decimal.NewFromInt(1))
	require.NoError(t, err)

	require.NotNil(t, item.Location)
	require.Equal(t, "SYNQ-01-02", *item.Location)
	require.True(t, item.Quantity.Equal(decimal.NewFromInt(1)))

	require.Equal(t, []domain.EventKind{domain.EventItemCreated, domain.EventItemUpdated}, store.kinds())
}

func TestPlaceItemUnknownItem(t *testing.T) {
	t.Parallel()

	service, _, _ := newItemServiceFixture(t)

	_, err := service.PlaceItem(context.Background(), domain.HostSystemAxiell, "missing", "SYNQ-01-02", decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrNotFound)
}
