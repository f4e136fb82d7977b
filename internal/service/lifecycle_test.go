package service

import (
	"context"
	"errors"
	"testing"

	"sacolao-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLifecycleStore struct {
	status map[string]models.OrderStatus
	items  map[string][]models.OrderItem
	paid   map[string]bool
}

func newFakeLifecycleStore() *fakeLifecycleStore {
	return &fakeLifecycleStore{
		status: make(map[string]models.OrderStatus),
		items:  make(map[string][]models.OrderItem),
		paid:   make(map[string]bool),
	}
}

func (f *fakeLifecycleStore) GetOrderStatus(_ context.Context, orderID string) (models.OrderStatus, error) {
	status, ok := f.status[orderID]
	if !ok {
		return "", models.ErrOrderNotFound
	}
	return status, nil
}

func (f *fakeLifecycleStore) UpdateOrderStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	if _, ok := f.status[orderID]; !ok {
		return models.ErrOrderNotFound
	}
	f.status[orderID] = status
	return nil
}

func (f *fakeLifecycleStore) MarkOrderCanceled(_ context.Context, orderID string) (bool, error) {
	status, ok := f.status[orderID]
	if !ok {
		return false, models.ErrOrderNotFound
	}
	if status == models.OrderStatusCanceled {
		return false, nil
	}
	f.status[orderID] = models.OrderStatusCanceled
	return true, nil
}

func (f *fakeLifecycleStore) GetOrderItems(_ context.Context, orderID string) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeLifecycleStore) UpdateOrderPaid(_ context.Context, orderID string, paid bool) error {
	if _, ok := f.status[orderID]; !ok {
		return models.ErrOrderNotFound
	}
	f.paid[orderID] = paid
	return nil
}

// failingStock rejects increments for the listed products and delegates the
// rest to the wrapped store.
type failingStock struct {
	*fakeStockStore
	failIncrement map[string]bool
}

func (f *failingStock) IncrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error) {
	if f.failIncrement[productID] {
		return decimal.Zero, errors.New("storage unavailable")
	}
	return f.fakeStockStore.IncrementStock(ctx, productID, qty, note)
}

func strPtr(s string) *string { return &s }

func seedCancelableOrder(store *fakeLifecycleStore) {
	store.status["ord-1"] = models.OrderStatusNew
	store.items["ord-1"] = []models.OrderItem{
		{ProductID: strPtr("p1"), Name: "Banana Prata", Qty: dec("2"), UnitPrice: dec("7.99"), Total: dec("15.98")},
		{ProductID: strPtr("p2"), Name: "Alface", Qty: dec("1"), UnitPrice: dec("2.50"), Total: dec("2.50")},
		{ProductID: nil, Name: "Cesta da semana", Qty: dec("1"), UnitPrice: dec("49.90"), Total: dec("49.90")},
	}
}

func TestCancelRestoresStockExactlyOnce(t *testing.T) {
	store := newFakeLifecycleStore()
	seedCancelableOrder(store)
	stock := newFakeStockStore(map[string]decimal.Decimal{"p1": dec("8"), "p2": dec("4")})
	pub := &fakePublisher{}
	ls := NewLifecycleService(store, stock, pub)

	err := ls.UpdateStatus(context.Background(), "ord-1", models.OrderStatusCanceled)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCanceled, store.status["ord-1"])
	assert.True(t, stock.quantity("p1").Equal(dec("10")))
	assert.True(t, stock.quantity("p2").Equal(dec("5")))
	require.Len(t, pub.canceled, 1)
	assert.Equal(t, models.OrderStatusNew, pub.canceled[0].PreviousStatus)

	// Canceling again is a no-op: no double restock, no second event.
	err = ls.UpdateStatus(context.Background(), "ord-1", models.OrderStatusCanceled)
	require.NoError(t, err)
	assert.True(t, stock.quantity("p1").Equal(dec("10")))
	assert.True(t, stock.quantity("p2").Equal(dec("5")))
	assert.Len(t, pub.canceled, 1)
}

func TestCancelSkipsItemsWithoutProductReference(t *testing.T) {
	store := newFakeLifecycleStore()
	store.status["ord-1"] = models.OrderStatusPicking
	store.items["ord-1"] = []models.OrderItem{
		{ProductID: nil, Name: "Cesta da semana", Qty: dec("1"), UnitPrice: dec("49.90"), Total: dec("49.90")},
	}
	stock := newFakeStockStore(map[string]decimal.Decimal{})
	ls := NewLifecycleService(store, stock, &fakePublisher{})

	err := ls.UpdateStatus(context.Background(), "ord-1", models.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, store.status["ord-1"])
}

func TestCancelSurfacesRestockFailuresButStands(t *testing.T) {
	store := newFakeLifecycleStore()
	seedCancelableOrder(store)
	stock := &failingStock{
		fakeStockStore: newFakeStockStore(map[string]decimal.Decimal{"p1": dec("8"), "p2": dec("4")}),
		failIncrement:  map[string]bool{"p1": true},
	}
	ls := NewLifecycleService(store, stock, &fakePublisher{})

	err := ls.UpdateStatus(context.Background(), "ord-1", models.OrderStatusCanceled)

	var partial *models.PartialCommitError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "ord-1", partial.OrderID)
	assert.Equal(t, "restock", partial.Stage)

	// The cancel committed and the healthy item was still credited.
	assert.Equal(t, models.OrderStatusCanceled, store.status["ord-1"])
	assert.True(t, stock.quantity("p2").Equal(dec("5")))
}

func TestUpdateStatusForwardChain(t *testing.T) {
	store := newFakeLifecycleStore()
	store.status["ord-1"] = models.OrderStatusNew
	ls := NewLifecycleService(store, newFakeStockStore(nil), &fakePublisher{})

	for _, next := range []models.OrderStatus{
		models.OrderStatusPicking,
		models.OrderStatusOutForDelivery,
		models.OrderStatusDelivered,
	} {
		require.NoError(t, ls.UpdateStatus(context.Background(), "ord-1", next))
		assert.Equal(t, next, store.status["ord-1"])
	}
}

func TestUpdateStatusRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		from models.OrderStatus
		to   models.OrderStatus
	}{
		{models.OrderStatusNew, models.OrderStatusOutForDelivery},
		{models.OrderStatusNew, models.OrderStatusDelivered},
		{models.OrderStatusPicking, models.OrderStatusNew},
		{models.OrderStatusDelivered, models.OrderStatusNew},
		{models.OrderStatusDelivered, models.OrderStatusCanceled},
		{models.OrderStatusCanceled, models.OrderStatusPicking},
	}

	for _, tc := range cases {
		store := newFakeLifecycleStore()
		store.status["ord-1"] = tc.from
		ls := NewLifecycleService(store, newFakeStockStore(nil), &fakePublisher{})

		err := ls.UpdateStatus(context.Background(), "ord-1", tc.to)

		var invalid *models.InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "%s -> %s should be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, invalid.From)
		assert.Equal(t, tc.to, invalid.To)
		assert.Equal(t, tc.from, store.status["ord-1"])
	}
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	store := newFakeLifecycleStore()
	store.status["ord-1"] = models.OrderStatusPicking
	pub := &fakePublisher{}
	ls := NewLifecycleService(store, newFakeStockStore(nil), pub)

	err := ls.UpdateStatus(context.Background(), "ord-1", models.OrderStatusPicking)
	require.NoError(t, err)
	assert.Empty(t, pub.status)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	store := newFakeLifecycleStore()
	store.status["ord-1"] = models.OrderStatusNew
	ls := NewLifecycleService(store, newFakeStockStore(nil), &fakePublisher{})

	err := ls.UpdateStatus(context.Background(), "ord-1", models.OrderStatus("shipped"))
	assert.Error(t, err)
	assert.Equal(t, models.OrderStatusNew, store.status["ord-1"])
}

func TestUpdateStatusOrderNotFound(t *testing.T) {
	ls := NewLifecycleService(newFakeLifecycleStore(), newFakeStockStore(nil), &fakePublisher{})

	err := ls.UpdateStatus(context.Background(), "missing", models.OrderStatusPicking)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestUpdatePayment(t *testing.T) {
	store := newFakeLifecycleStore()
	store.status["ord-1"] = models.OrderStatusDelivered
	ls := NewLifecycleService(store, newFakeStockStore(nil), &fakePublisher{})

	require.NoError(t, ls.UpdatePayment(context.Background(), "ord-1", true))
	assert.True(t, store.paid["ord-1"])

	err := ls.UpdatePayment(context.Background(), "missing", true)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}
