package service

import (
	"context"
	"testing"
	"time"

	"sacolao-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCustomerStore struct {
	customers map[string]*models.Customer
	calls     int
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{customers: make(map[string]*models.Customer)}
}

func (f *fakeCustomerStore) FindOrCreateCustomer(_ context.Context, fullName, phone string, email *string) (*models.Customer, error) {
	f.calls++
	if c, ok := f.customers[phone]; ok {
		return c, nil
	}
	c := &models.Customer{
		ID:       "cust-" + phone,
		FullName: fullName,
		Phone:    phone,
		Email:    email,
	}
	f.customers[phone] = c
	return c, nil
}

type fakeIdemStore struct {
	keys map[string]string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{keys: make(map[string]string)}
}

func (f *fakeIdemStore) LookupCheckoutKey(_ context.Context, key string) (string, bool, error) {
	orderID, ok := f.keys[key]
	return orderID, ok, nil
}

func (f *fakeIdemStore) StoreCheckoutKey(_ context.Context, key, orderID string, _ time.Duration) (string, error) {
	if winner, ok := f.keys[key]; ok {
		return winner, nil
	}
	f.keys[key] = orderID
	return orderID, nil
}

// racingIdemStore simulates losing the SETNX race: the lookup misses but the
// store reports another order already holds the key.
type racingIdemStore struct {
	winner string
}

func (r *racingIdemStore) LookupCheckoutKey(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (r *racingIdemStore) StoreCheckoutKey(context.Context, string, string, time.Duration) (string, error) {
	return r.winner, nil
}

func newCheckoutFixture(stockLevels map[string]decimal.Decimal) (*CheckoutService, *fakeOrderStore, *fakeStockStore, *fakeCustomerStore, *fakeIdemStore, *fakePublisher) {
	orderStore := newFakeOrderStore()
	stock := newFakeStockStore(stockLevels)
	customers := newFakeCustomerStore()
	idem := newFakeIdemStore()
	pub := &fakePublisher{}

	orders := NewOrderService(orderStore, pub)
	stockSvc := NewStockService(stock, pub)
	cs := NewCheckoutService(customers, orders, stockSvc, idem, pub, time.Minute)

	return cs, orderStore, stock, customers, idem, pub
}

func sampleCheckoutRequest() *CheckoutRequest {
	return &CheckoutRequest{
		CustomerName:  "Maria Silva",
		CustomerPhone: "+5511999990000",
		PaymentMethod: "Pix",
		CartItems: []CartItem{
			{ID: "p1", Name: "Banana Prata", Price: dec("7.99"), Quantity: dec("1.5"), Type: "product"},
			{ID: "p2", Name: "Alface", Price: dec("2.50"), Quantity: dec("2"), Type: "product"},
		},
		CartTotal: dec("16.985"),
	}
}

func TestProcessCheckoutHappyPath(t *testing.T) {
	cs, orderStore, stock, customers, _, pub := newCheckoutFixture(map[string]decimal.Decimal{
		"p1": dec("10"),
		"p2": dec("6"),
	})

	resp, err := cs.ProcessCheckout(context.Background(), sampleCheckoutRequest())
	require.NoError(t, err)
	require.NotEmpty(t, resp.OrderID)

	detail, err := orderStore.GetOrderByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusNew, detail.Status)
	assert.Equal(t, models.ChannelWeb, detail.Channel)
	assert.False(t, detail.Paid)
	require.NotNil(t, detail.PaymentMethod)
	assert.Equal(t, models.PaymentMethodPix, *detail.PaymentMethod)
	assert.True(t, detail.Subtotal.Equal(dec("16.985")))
	assert.True(t, detail.Total.Equal(dec("16.985")))
	require.Len(t, detail.Items, 2)

	assert.Len(t, customers.customers, 1)
	assert.True(t, stock.quantity("p1").Equal(dec("8.5")))
	assert.True(t, stock.quantity("p2").Equal(dec("4")))

	require.Len(t, pub.placed, 1)
	assert.Empty(t, pub.shortages)
}

func TestProcessCheckoutEmptyCart(t *testing.T) {
	cs, _, _, _, _, _ := newCheckoutFixture(nil)

	req := sampleCheckoutRequest()
	req.CartItems = nil

	_, err := cs.ProcessCheckout(context.Background(), req)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestProcessCheckoutSucceedsDespiteStockShortage(t *testing.T) {
	// p2 has less on hand than the cart asks for. The order must still
	// commit and the shortage must be published, not returned.
	cs, orderStore, stock, _, _, pub := newCheckoutFixture(map[string]decimal.Decimal{
		"p1": dec("10"),
		"p2": dec("1"),
	})

	resp, err := cs.ProcessCheckout(context.Background(), sampleCheckoutRequest())
	require.NoError(t, err)

	detail, err := orderStore.GetOrderByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Len(t, detail.Items, 2)

	assert.True(t, stock.quantity("p1").Equal(dec("8.5")))
	assert.True(t, stock.quantity("p2").Equal(dec("1")))

	require.Len(t, pub.shortages, 1)
	assert.Equal(t, resp.OrderID, pub.shortages[0].OrderID)
	assert.Equal(t, "p2", pub.shortages[0].ProductID)
	assert.True(t, pub.shortages[0].Requested.Equal(dec("2")))
}

func TestProcessCheckoutBasketLinesAreNotStockTracked(t *testing.T) {
	cs, orderStore, stock, _, _, pub := newCheckoutFixture(map[string]decimal.Decimal{})

	req := &CheckoutRequest{
		CustomerName:  "Joao Souza",
		CustomerPhone: "+5511888880000",
		PaymentMethod: "Dinheiro",
		CartItems: []CartItem{
			{ID: "basket-1", Name: "Cesta da semana", Price: dec("49.90"), Quantity: dec("1"), Type: "basket"},
		},
	}

	resp, err := cs.ProcessCheckout(context.Background(), req)
	require.NoError(t, err)

	detail, err := orderStore.GetOrderByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Nil(t, detail.Items[0].ProductID)

	moves, _ := stock.ListMoves(context.Background(), "basket-1")
	assert.Empty(t, moves)
	assert.Empty(t, pub.shortages)
}

func TestProcessCheckoutIdempotencyReplay(t *testing.T) {
	cs, orderStore, stock, customers, idem, _ := newCheckoutFixture(map[string]decimal.Decimal{
		"p1": dec("10"),
		"p2": dec("6"),
	})

	req := sampleCheckoutRequest()
	req.IdempotencyKey = "retry-abc"

	first, err := cs.ProcessCheckout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, idem.keys["retry-abc"])

	second, err := cs.ProcessCheckout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)

	// Only the first attempt touched storage.
	assert.Len(t, orderStore.orders, 1)
	assert.True(t, stock.quantity("p1").Equal(dec("8.5")))
	assert.Equal(t, 1, customers.calls)
}

func TestProcessCheckoutLostIdempotencyRace(t *testing.T) {
	orderStore := newFakeOrderStore()
	stock := newFakeStockStore(map[string]decimal.Decimal{
		"p1": dec("10"),
		"p2": dec("6"),
	})
	pub := &fakePublisher{}
	cs := NewCheckoutService(
		newFakeCustomerStore(),
		NewOrderService(orderStore, pub),
		NewStockService(stock, pub),
		&racingIdemStore{winner: "ord-winner"},
		pub,
		time.Minute,
	)

	req := sampleCheckoutRequest()
	req.IdempotencyKey = "retry-race"

	resp, err := cs.ProcessCheckout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "ord-winner", resp.OrderID)

	// The losing duplicate takes no stock; the winner's checkout already did.
	assert.True(t, stock.quantity("p1").Equal(dec("10")))
	assert.True(t, stock.quantity("p2").Equal(dec("6")))
}

func TestProcessCheckoutDeduplicatesCustomerByPhone(t *testing.T) {
	cs, _, _, customers, _, _ := newCheckoutFixture(map[string]decimal.Decimal{
		"p1": dec("100"),
		"p2": dec("100"),
	})

	first := sampleCheckoutRequest()
	_, err := cs.ProcessCheckout(context.Background(), first)
	require.NoError(t, err)

	second := sampleCheckoutRequest()
	second.CustomerName = "M. Silva"
	_, err = cs.ProcessCheckout(context.Background(), second)
	require.NoError(t, err)

	assert.Len(t, customers.customers, 1)
}

func TestProcessCheckoutOrderFailurePropagates(t *testing.T) {
	cs, orderStore, stock, _, _, _ := newCheckoutFixture(map[string]decimal.Decimal{
		"p1": dec("10"),
		"p2": dec("6"),
	})
	orderStore.failErr = assert.AnError

	_, err := cs.ProcessCheckout(context.Background(), sampleCheckoutRequest())
	require.Error(t, err)

	// Nothing decremented when the order never committed.
	assert.True(t, stock.quantity("p1").Equal(dec("10")))
	assert.True(t, stock.quantity("p2").Equal(dec("6")))
}

func TestMapPaymentMethod(t *testing.T) {
	cases := map[string]*models.PaymentMethod{
		"Pix":               paymentPtr(models.PaymentMethodPix),
		"Dinheiro":          paymentPtr(models.PaymentMethodCash),
		"Cartão na entrega": paymentPtr(models.PaymentMethodCardOnDelivery),
		"Outro":             paymentPtr(models.PaymentMethodOther),
		"Cheque":            nil,
		"":                  nil,
	}

	for label, expected := range cases {
		got := mapPaymentMethod(label)
		if expected == nil {
			assert.Nil(t, got, "label %q", label)
		} else {
			require.NotNil(t, got, "label %q", label)
			assert.Equal(t, *expected, *got)
		}
	}
}

func paymentPtr(m models.PaymentMethod) *models.PaymentMethod { return &m }
