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

// ErrEmptyCart is returned when a checkout arrives without any cart items
var ErrEmptyCart = errors.New("cart is empty")

// CustomerStore is the customer upsert surface used by checkout
type CustomerStore interface {
	FindOrCreateCustomer(ctx context.Context, fullName, phone string, email *string) (*models.Customer, error)
}

// OrderCreator persists a validated order with its items
type OrderCreator interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
}

// IdempotencyStore deduplicates checkout retries by client-supplied key.
// StoreCheckoutKey is first-writer-wins and returns the order id stored
// under the key.
type IdempotencyStore interface {
	LookupCheckoutKey(ctx context.Context, key string) (string, bool, error)
	StoreCheckoutKey(ctx context.Context, key, orderID string, ttl time.Duration) (string, error)
}

// CartItem is a line of the shopping cart as the storefront submits it
type CartItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Type     string          `json:"type"` // product | basket
	Unit     *string         `json:"unit,omitempty"`
	ImageURL *string         `json:"image,omitempty"`
}

// CheckoutRequest is the anonymous customer-facing checkout payload
type CheckoutRequest struct {
	CustomerName   string          `json:"customer_name" binding:"required"`
	CustomerPhone  string          `json:"customer_phone" binding:"required"`
	PaymentMethod  string          `json:"payment_method"`
	Notes          string          `json:"notes,omitempty"`
	CartItems      []CartItem      `json:"cart_items" binding:"required"`
	CartTotal      decimal.Decimal `json:"cart_total"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// CheckoutResponse carries the created order identity
type CheckoutResponse struct {
	OrderID string `json:"order_id"`
}

// CheckoutService turns a shopping cart into a persisted order plus stock
// effects. It runs with privileged store credentials on behalf of an
// anonymous caller and must only be reachable from the server-side boundary.
type CheckoutService struct {
	customers CustomerStore
	orders    OrderCreator
	stock     StockAdjuster
	idem      IdempotencyStore
	publisher EventPublisher
	keyTTL    time.Duration
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	customers CustomerStore,
	orders OrderCreator,
	stock StockAdjuster,
	idem IdempotencyStore,
	publisher EventPublisher,
	keyTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		customers: customers,
		orders:    orders,
		stock:     stock,
		idem:      idem,
		publisher: publisher,
		keyTTL:    keyTTL,
		logger:    util.GetLogger(),
	}
}

// ProcessCheckout upserts the customer by phone, persists the order with its
// items, then decrements stock per product line. Stock failures after the
// order commit are logged and published, never propagated: the committed
// order stands and the customer sees success. This trades strict stock
// accuracy for order durability; the reconciler and the shortage events are
// the operator's handle on the resulting drift.
func (cs *CheckoutService) ProcessCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ProcessCheckout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if len(req.CartItems) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, ErrEmptyCart
	}

	if req.IdempotencyKey != "" {
		orderID, found, err := cs.idem.LookupCheckoutKey(ctx, req.IdempotencyKey)
		if err != nil {
			cs.logger.Warn("Idempotency lookup failed, proceeding", zap.Error(err))
		} else if found {
			cs.logger.Info("Duplicate checkout detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", orderID))
			return &CheckoutResponse{OrderID: orderID}, nil
		}
	}

	customer, err := cs.customers.FindOrCreateCustomer(ctx, req.CustomerName, req.CustomerPhone, nil)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("customer").Inc()
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}

	items, subtotal := buildOrderItems(req.CartItems)
	if !req.CartTotal.IsZero() && !req.CartTotal.Equal(subtotal) {
		// Trust the recomputed sum over the client's figure.
		cs.logger.Warn("Cart total mismatch, using item sum",
			zap.String("cart_total", req.CartTotal.String()),
			zap.String("item_sum", subtotal.String()))
	}

	order := &models.Order{
		CustomerID:    &customer.ID,
		Status:        models.OrderStatusNew,
		Subtotal:      subtotal,
		Discount:      decimal.Zero,
		Total:         subtotal,
		PaymentMethod: mapPaymentMethod(req.PaymentMethod),
		Paid:          false,
		Channel:       models.ChannelWeb,
	}
	if req.Notes != "" {
		notes := req.Notes
		order.Notes = &notes
	}

	if err := cs.orders.CreateOrder(ctx, order, items); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("order").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		winner, err := cs.idem.StoreCheckoutKey(ctx, req.IdempotencyKey, order.ID, cs.keyTTL)
		if err != nil {
			cs.logger.Warn("Failed to store idempotency key", zap.Error(err))
		} else if winner != order.ID {
			// Lost a concurrent submit race for the same key after the
			// commit. The first writer's order answers the request; this
			// duplicate takes no stock and is logged for cleanup.
			cs.logger.Warn("Duplicate concurrent checkout",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", order.ID),
				zap.String("winning_order_id", winner))
			return &CheckoutResponse{OrderID: winner}, nil
		}
	}

	cs.decrementForOrder(ctx, order.ID, items)

	util.CheckoutsTotal.Inc()
	cs.logger.Info("Checkout completed",
		zap.String("order_id", order.ID),
		zap.String("customer_id", customer.ID),
		zap.String("total", order.Total.String()))

	return &CheckoutResponse{OrderID: order.ID}, nil
}

// decrementForOrder takes stock for every product line of a committed order.
// Failures are surfaced through logs, metrics and StockShortage events only;
// processing continues with the remaining items.
func (cs *CheckoutService) decrementForOrder(ctx context.Context, orderID string, items []models.OrderItem) {
	note := fmt.Sprintf("order %s", orderID)
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, err := cs.stock.DecrementStock(ctx, *item.ProductID, item.Qty, note); err != nil {
			util.StockShortagesTotal.Inc()
			cs.logger.Error("Stock decrement failed after order commit",
				zap.String("order_id", orderID),
				zap.String("product_id", *item.ProductID),
				zap.String("qty", item.Qty.String()),
				zap.Error(err))

			event := &models.StockShortageEvent{
				BaseEvent: models.BaseEvent{
					EventID:   uuid.New().String(),
					EventType: models.EventTypeStockShortage,
					Timestamp: time.Now(),
				},
				OrderID:   orderID,
				ProductID: *item.ProductID,
				Requested: item.Qty,
				Reason:    err.Error(),
			}
			if err := cs.publisher.PublishStockShortage(ctx, event); err != nil {
				cs.logger.Error("Failed to publish StockShortage event", zap.Error(err))
			}
		}
	}
}

// buildOrderItems maps cart lines to order items. Product lines carry the
// product reference; basket lines do not, because baskets are priced as a
// bundle and not stock-tracked per line.
func buildOrderItems(cartItems []CartItem) ([]models.OrderItem, decimal.Decimal) {
	items := make([]models.OrderItem, 0, len(cartItems))
	subtotal := decimal.Zero
	for _, ci := range cartItems {
		var productID *string
		if ci.Type == "product" && ci.ID != "" {
			id := ci.ID
			productID = &id
		}
		total := ci.Price.Mul(ci.Quantity)
		items = append(items, models.OrderItem{
			ProductID: productID,
			Name:      ci.Name,
			Qty:       ci.Quantity,
			UnitPrice: ci.Price,
			Total:     total,
		})
		subtotal = subtotal.Add(total)
	}
	return items, subtotal
}

// mapPaymentMethod translates the storefront's human-readable label. Unknown
// labels map to nil, an accepted degraded outcome rather than an error.
func mapPaymentMethod(label string) *models.PaymentMethod {
	var method models.PaymentMethod
	switch label {
	case "Pix":
		method = models.PaymentMethodPix
	case "Dinheiro":
		method = models.PaymentMethodCash
	case "Cartão na entrega":
		method = models.PaymentMethodCardOnDelivery
	case "Outro":
		method = models.PaymentMethodOther
	default:
		return nil
	}
	return &method
}
