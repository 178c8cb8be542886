//go:build unit

package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/domain"
	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/internal/outbox"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type orderKey struct {
	hostSystem  domain.HostSystem
	hostOrderID string
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[orderKey]domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[orderKey]domain.Order)}
}

func (repo *memOrderRepo) Find(_ context.Context, hostSystem domain.HostSystem, hostOrderID string) (*domain.Order, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	order, ok := repo.orders[orderKey{hostSystem, hostOrderID}]
	if !ok {
		return nil, nil
	}

	copied := order.Snapshot()

	return &copied, nil
}

func (repo *memOrderRepo) Create(_ context.Context, order *domain.Order) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key := orderKey{order.HostSystem, order.HostOrderID}
	if _, exists := repo.orders[key]; exists {
		return domain.ErrDuplicateResource
	}

	repo.orders[key] = order.Snapshot()

	return nil
}

func (repo *memOrderRepo) Update(_ context.Context, order *domain.Order) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key := orderKey{order.HostSystem, order.HostOrderID}
	if _, exists := repo.orders[key]; !exists {
		return domain.NewNotFoundError("order %q not found", order.HostOrderID)
	}

	repo.orders[key] = order.Snapshot()

	return nil
}

func (repo *memOrderRepo) Delete(_ context.Context, hostSystem domain.HostSystem, hostOrderID string) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	key := orderKey{hostSystem, hostOrderID}
	if _, exists := repo.orders[key]; !exists {
		return domain.NewNotFoundError("order %q not found", hostOrderID)
	}

	delete(repo.orders, key)

	return nil
}

func (repo *memOrderRepo) snapshot() map[orderKey]domain.Order {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	copied := make(map[orderKey]domain.Order, len(repo.orders))
	for key, order := range repo.orders {
		copied[key] = order.Snapshot()
	}

	return copied
}

func (repo *memOrderRepo) restore(snapshot map[orderKey]domain.Order) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	repo.orders = snapshot
}

type memOutboxStore struct {
	mu      sync.Mutex
	records []*outbox.Record
	saveErr error
}

func (store *memOutboxStore) Save(_ context.Context, record *outbox.Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.saveErr != nil {
		return store.saveErr
	}

	copied := *record
	store.records = append(store.records, &copied)

	return nil
}

func (store *memOutboxStore) ListUnprocessed(_ context.Context, category outbox.Category, _ int) ([]*outbox.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	var pending []*outbox.Record

	for _, record := range store.records {
		if record.Category == category && record.ProcessedAt == nil && record.DeadAt == nil {
			pending = append(pending, record)
		}
	}

	return pending, nil
}

func (store *memOutboxStore) MarkProcessed(_ context.Context, _ uuid.UUID, _ time.Time) (bool, error) {
	return false, nil
}

func (store *memOutboxStore) MarkFailed(_ context.Context, _ uuid.UUID, _ string, _ int) error {
	return nil
}

func (store *memOutboxStore) ListAll(_ context.Context) ([]*outbox.Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	return append([]*outbox.Record(nil), store.records...), nil
}

// kinds returns the distinct event kinds present, in insertion order; the
// fan-out stores one record per interested category for each of them.
func (store *memOutboxStore) kinds() []domain.EventKind {
	store.mu.Lock()
	defer store.mu.Unlock()

	seen := make(map[domain.EventKind]bool, len(store.records))

	var kinds []domain.EventKind

	for _, record := range store.records {
		if !seen[record.Kind] {
			seen[record.Kind] = true
			kinds = append(kinds, record.Kind)
		}
	}

	return kinds
}

func (store *memOutboxStore) categories(kind domain.EventKind) []outbox.Category {
	store.mu.Lock()
	defer store.mu.Unlock()

	var categories []outbox.Category

	for _, record := range store.records {
		if record.Kind == kind {
			categories = append(categories, record.Category)
		}
	}

	return categories
}

func (store *memOutboxStore) count() int {
	store.mu.Lock()
	defer store.mu.Unlock()

	return len(store.records)
}

func (store *memOutboxStore) snapshot() []*outbox.Record {
	store.mu.Lock()
	defer store.mu.Unlock()

	return append([]*outbox.Record(nil), store.records...)
}

func (store *memOutboxStore) restore(records []*outbox.Record) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.records = records
}

// memTransactor mimics the all-or-nothing contract by snapshotting both
// stores before the unit of work and restoring them when it fails.
type memTransactor struct {
	orders *memOrderRepo
	store  *memOutboxStore
}

func (tx *memTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	orderSnapshot := tx.orders.snapshot()
	outboxSnapshot := tx.store.snapshot()

	if err := fn(ctx); err != nil {
		tx.orders.restore(orderSnapshot)
		tx.store.restore(outboxSnapshot)

		return err
	}

	return nil
}

func newOrderServiceFixture(t *testing.T) (*OrderService, *memOrderRepo, *memOutboxStore) {
	t.Helper()

	orders := newMemOrderRepo()
	store := &memOutboxStore{}

	service, err := NewOrderService(orders, store, &memTransactor{orders: orders, store: store}, nil)
	require.NoError(t, err)

	return service, orders, store
}

func validCreateOrderInput() CreateOrderInput {
	return CreateOrderInput{
		HostSystem:  domain.HostSystemAxiell,
		HostOrderID: "mlt-12345-order",
		HostItemIDs: []string{"mlt-12345"},
		OrderType:   domain.OrderTypeLoan,
		Receiver:    domain.Receiver{Name: "Kari", Address: "kari@example.org"},
	}
}

func TestCreateOrderWritesOrderAndOutboxTogether(t *testing.T) {
	t.Parallel()

	service, orders, store := newOrderServiceFixture(t)

	order, created, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, domain.OrderStatusNotStarted, order.Status)

	require.Len(t, orders.snapshot(), 1)
	require.ElementsMatch(t,
		[]domain.EventKind{domain.EventOrderCreated, domain.EventOrderConfirmation},
		store.kinds())

	// Every interested category gets its own record so no drain can consume
	// the event on behalf of another.
	require.ElementsMatch(t,
		[]outbox.Category{outbox.CategoryCatalog, outbox.CategoryStorage, outbox.CategoryStatistics},
		store.categories(domain.EventOrderCreated))
	require.ElementsMatch(t,
		[]outbox.Category{outbox.CategoryEmail, outbox.CategoryStatistics},
		store.categories(domain.EventOrderConfirmation))

	records, err := store.ListAll(context.Background())
	require.NoError(t, err)

	for _, record := range records {
		if record.Kind != domain.EventOrderCreated {
			continue
		}

		payload, err := record.Event().OrderPayload()
		require.NoError(t, err)
		require.Equal(t, "mlt-12345-order", payload.HostOrderID)
	}
}

func TestCreateOrderIsIdempotent(t *testing.T) {
	t.Parallel()

	service, _, store := newOrderServiceFixture(t)

	first, created, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.NoError(t, err)
	require.True(t, created)

	recordsAfterFirst := store.count()

	retry := validCreateOrderInput()
	retry.Receiver.Name = "Somebody Else"

	second, created, err := service.CreateOrder(context.Background(), retry)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.Receiver.Name, second.Receiver.Name, "the stored order wins over retried payloads")

	require.Equal(t, recordsAfterFirst, store.count(), "a retried create never produces additional outbox records")
}

func TestCreateOrderRejectsInvalidInputBeforeSideEffects(t *testing.T) {
	t.Parallel()

	service, orders, store := newOrderServiceFixture(t)

	input := validCreateOrderInput()
	input.HostItemIDs = nil

	_, _, err := service.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrValidation)

	require.Empty(t, orders.snapshot())
	require.Empty(t, store.kinds())
}

func TestCreateOrderAtomicityOnOutboxFailure(t *testing.T) {
	t.Parallel()

	service, orders, store := newOrderServiceFixture(t)
	store.saveErr = errors.New("outbox write failed")

	_, _, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.Error(t, err)

	require.Empty(t, orders.snapshot(), "a failed outbox write must roll back the order write")
	require.Empty(t, store.kinds())
}

func TestCreateOrderLosingRaceReturnsWinner(t *testing.T) {
	t.Parallel()

	orders := newMemOrderRepo()
	store := &memOutboxStore{}

	// The existence check passes, then the insert hits the uniqueness
	// constraint as a concurrent writer would trigger it.
	winner, err := domain.NewOrder(domain.HostSystemAxiell, "mlt-12345-order", []string{"other-line"}, domain.OrderTypeLoan, domain.Receiver{Name: "First"}, "")
	require.NoError(t, err)

	raceTx := &racingTransactor{
		inner:  &memTransactor{orders: orders, store: store},
		orders: orders,
		winner: winner,
	}

	service, err := NewOrderService(orders, store, raceTx, nil)
	require.NoError(t, err)

	order, created, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "First", order.Receiver.Name)
}

// racingTransactor sneaks a competing order into the repository between the
// idempotency check and the transactional insert.
type racingTransactor struct {
	inner  *memTransactor
	orders *memOrderRepo
	winner *domain.Order
	once   sync.Once
}

func (tx *racingTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.once.Do(func() {
		_ = tx.orders.Create(ctx, tx.winner)
	})

	return tx.inner.WithinTx(ctx, fn)
}

func TestUpdateOrderStatusEmitsPickupOnCompletion(t *testing.T) {
	t.Parallel()

	service, _, store := newOrderServiceFixture(t)

	_, _, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.NoError(t, err)

	order, err := service.UpdateOrderStatus(context.Background(), domain.HostSystemAxiell, "mlt-12345-order", domain.OrderStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)

	require.Contains(t, store.kinds(), domain.EventOrderUpdated)
	require.Contains(t, store.kinds(), domain.EventOrderPickup)
}

func TestUpdateOrderStatusNoOpWhenUnchanged(t *testing.T) {
	t.Parallel()

	service, _, store := newOrderServiceFixture(t)

	_, _, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.NoError(t, err)

	before := store.count()

	_, err = service.UpdateOrderStatus(context.Background(), domain.HostSystemAxiell, "mlt-12345-order", domain.OrderStatusNotStarted)
	require.NoError(t, err)
	require.Equal(t, before, store.count(), "an unchanged status emits nothing")
}

func TestMarkOrderLinePickedCompletesOrder(t *testing.T) {
	t.Parallel()

	service, _, store := newOrderServiceFixture(t)

	_, _, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.NoError(t, err)

	order, err := service.MarkOrderLinePicked(context.Background(), domain.HostSystemAxiell, "mlt-12345-order", "mlt-12345")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, order.Status)
	require.Contains(t, store.kinds(), domain.EventOrderPickup)
}

func TestDeleteOrderEmitsCancellationAndDeletion(t *testing.T) {
	t.Parallel()

	service, orders, store := newOrderServiceFixture(t)

	_, _, err := service.CreateOrder(context.Background(), validCreateOrderInput())
	require.NoError(t, err)

	require.NoError(t, service.DeleteOrder(context.Background(), domain.HostSystemAxiell, "mlt-12345-order"))

	require.Empty(t, orders.snapshot())
	require.Contains(t, store.kinds(), domain.EventOrderCancellation)
	require.Contains(t, store.kinds(), domain.EventOrderDeleted)
}

func TestDeleteOrderNotFound(t *testing.T) {
	t.Parallel()

	service, _, _ := newOrderServiceFixture(t)

	err := service.DeleteOrder(context.Background(), domain.HostSystemAxiell, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
