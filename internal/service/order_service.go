package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sacolao-service/internal/models"
	"sacolao-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrOrderInvariant marks a violated order money invariant: item totals must
// match qty x unit price, the subtotal must equal the sum of item totals, and
// total must equal subtotal minus discount.
var ErrOrderInvariant = errors.New("order invariant violation")

// OrderStore is the persistence surface for order headers and line items
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id string) (*models.OrderDetail, error)
	ListOrders(ctx context.Context) ([]models.OrderSummary, error)
	ListCustomerOrders(ctx context.Context, customerID string) ([]models.OrderSummary, error)
	GetCustomerStats(ctx context.Context, customerID string) (*models.CustomerStats, error)
}

// OrderService persists orders and serves order read paths
type OrderService struct {
	store     OrderStore
	publisher EventPublisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, publisher EventPublisher) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// CreateOrder validates the money invariants, fills in defaults and persists
// the header plus all line items as one durable unit. The created id and
// placed_at are written back into order.
func (os *OrderService) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if order.Status == "" {
		order.Status = models.OrderStatusNew
	}
	if order.Channel == "" {
		order.Channel = models.ChannelWeb
	}

	if err := validateOrder(order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invariant").Inc()
		return err
	}

	if err := os.store.CreateOrder(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.WithLabelValues(string(order.Channel)).Inc()
	os.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("channel", string(order.Channel)),
		zap.String("total", order.Total.String()))

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Name:      item.Name,
			Qty:       item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Channel:    order.Channel,
		Total:      order.Total,
		Items:      eventItems,
	}
	if err := os.publisher.PublishOrderPlaced(ctx, event); err != nil {
		os.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return nil
}

// validateOrder enforces the money invariants before anything is written
func validateOrder(order *models.Order, items []models.OrderItem) error {
	sum := decimal.Zero
	for i := range items {
		item := &items[i]
		if item.Qty.Sign() <= 0 {
			return fmt.Errorf("%w: item %q qty must be positive, got %s",
				ErrOrderInvariant, item.Name, item.Qty)
		}
		expected := item.Qty.Mul(item.UnitPrice)
		if !item.Total.Equal(expected) {
			return fmt.Errorf("%w: item %q total %s != qty %s x unit_price %s",
				ErrOrderInvariant, item.Name, item.Total, item.Qty, item.UnitPrice)
		}
		sum = sum.Add(item.Total)
	}
	if !order.Subtotal.Equal(sum) {
		return fmt.Errorf("%w: subtotal %s != sum of item totals %s",
			ErrOrderInvariant, order.Subtotal, sum)
	}
	if !order.Total.Equal(order.Subtotal.Sub(order.Discount)) {
		return fmt.Errorf("%w: total %s != subtotal %s - discount %s",
			ErrOrderInvariant, order.Total, order.Subtotal, order.Discount)
	}
	return nil
}

// GetOrder retrieves an order with its customer, address and items
func (os *OrderService) GetOrder(ctx context.Context, orderID string) (*models.OrderDetail, error) {
	return os.store.GetOrderByID(ctx, orderID)
}

// ListOrders retrieves all orders for the back office
func (os *OrderService) ListOrders(ctx context.Context) ([]models.OrderSummary, error) {
	return os.store.ListOrders(ctx)
}

// ListCustomerOrders retrieves a customer's order history
func (os *OrderService) ListCustomerOrders(ctx context.Context, customerID string) ([]models.OrderSummary, error) {
	return os.store.ListCustomerOrders(ctx, customerID)
}

// GetCustomerStats aggregates a customer's non-canceled orders
func (os *OrderService) GetCustomerStats(ctx context.Context, customerID string) (*models.CustomerStats, error) {
	return os.store.GetCustomerStats(ctx, customerID)
}
