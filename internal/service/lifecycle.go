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

// LifecycleStore is the persistence surface for order status changes
type LifecycleStore interface {
	GetOrderStatus(ctx context.Context, orderID string) (models.OrderStatus, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	MarkOrderCanceled(ctx context.Context, orderID string) (bool, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	UpdateOrderPaid(ctx context.Context, orderID string, paid bool) error
}

// StockAdjuster is the stock mutation surface the lifecycle compensates through
type StockAdjuster interface {
	DecrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error)
	IncrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error)
}

// LifecycleService governs the order status state machine. Cancellation is
// the sole compensating action: every line item with a product reference gets
// its quantity credited back, exactly once per order.
type LifecycleService struct {
	store     LifecycleStore
	stock     StockAdjuster
	publisher EventPublisher
	logger    *zap.Logger
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(store LifecycleStore, stock StockAdjuster, publisher EventPublisher) *LifecycleService {
	return &LifecycleService{
		store:     store,
		stock:     stock,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// UpdateStatus moves an order to newStatus after validating the transition
// table. Canceling restores stock for every item with a product reference;
// canceling an already-canceled order is an idempotent no-op.
//
// Restock failures do not undo the committed cancellation: remaining items
// are still processed and the failures come back aggregated so the
// inconsistency is surfaced, not swallowed.
func (ls *LifecycleService) UpdateStatus(ctx context.Context, orderID string, newStatus models.OrderStatus) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.UpdateStatus")
	defer span.End()

	if !models.ValidStatus(newStatus) {
		return fmt.Errorf("unknown order status: %s", newStatus)
	}

	current, err := ls.store.GetOrderStatus(ctx, orderID)
	if err != nil {
		return err
	}

	if !models.CanTransition(current, newStatus) {
		return &models.InvalidTransitionError{From: current, To: newStatus}
	}

	if newStatus == models.OrderStatusCanceled {
		return ls.cancel(ctx, orderID, current)
	}

	if newStatus == current {
		return nil
	}

	if err := ls.store.UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	ls.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(current)),
		zap.String("to", string(newStatus)))

	event := &models.OrderStatusEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatus,
			Timestamp: time.Now(),
		},
		OrderID: orderID,
		From:    current,
		To:      newStatus,
	}
	if err := ls.publisher.PublishOrderStatus(ctx, event); err != nil {
		ls.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}

	return nil
}

func (ls *LifecycleService) cancel(ctx context.Context, orderID string, previous models.OrderStatus) error {
	newly, err := ls.store.MarkOrderCanceled(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	if !newly {
		// Re-cancel attempt; stock was already credited once.
		ls.logger.Info("Order already canceled, skipping restock",
			zap.String("order_id", orderID))
		return nil
	}

	util.OrdersCanceledTotal.Inc()
	ls.logger.Info("Order canceled",
		zap.String("order_id", orderID),
		zap.String("previous_status", string(previous)))

	items, err := ls.store.GetOrderItems(ctx, orderID)
	if err != nil {
		util.RestockFailuresTotal.Inc()
		return &models.PartialCommitError{OrderID: orderID, Stage: "restock", Err: err}
	}

	var restockErrs []error
	note := fmt.Sprintf("order %s canceled", orderID)
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, err := ls.stock.IncrementStock(ctx, *item.ProductID, item.Qty, note); err != nil {
			util.RestockFailuresTotal.Inc()
			ls.logger.Error("Failed to restore stock for canceled order",
				zap.String("order_id", orderID),
				zap.String("product_id", *item.ProductID),
				zap.Error(err))
			restockErrs = append(restockErrs, err)
		}
	}

	event := &models.OrderCanceledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCanceled,
			Timestamp: time.Now(),
		},
		OrderID:        orderID,
		PreviousStatus: previous,
	}
	if err := ls.publisher.PublishOrderCanceled(ctx, event); err != nil {
		ls.logger.Error("Failed to publish OrderCanceled event", zap.Error(err))
	}

	if len(restockErrs) > 0 {
		return &models.PartialCommitError{
			OrderID: orderID,
			Stage:   "restock",
			Err:     errors.Join(restockErrs...),
		}
	}
	return nil
}

// UpdatePayment flips the paid flag. It is independent of the status machine
// and has no stock side effects.
func (ls *LifecycleService) UpdatePayment(ctx context.Context, orderID string, paid bool) error {
	ctx, span := util.StartSpan(ctx, "LifecycleService.UpdatePayment")
	defer span.End()

	if err := ls.store.UpdateOrderPaid(ctx, orderID, paid); err != nil {
		return err
	}

	ls.logger.Info("Order payment updated",
		zap.String("order_id", orderID),
		zap.Bool("paid", paid))
	return nil
}
