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

// ErrNonPositiveQty is a caller contract violation: stock mutations take a
// strictly positive quantity and are rejected before touching storage.
var ErrNonPositiveQty = errors.New("quantity must be positive")

// StockStore is the persistence surface the stock service mutates through.
// Implementations must perform the check-and-update and the ledger append as
// one atomic unit.
type StockStore interface {
	DecrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error)
	IncrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error)
	SetStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error)
	ListMoves(ctx context.Context, productID string) ([]models.InventoryMove, error)
}

// EventPublisher publishes domain events after committed state changes
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCanceled(ctx context.Context, event *models.OrderCanceledEvent) error
	PublishOrderStatus(ctx context.Context, event *models.OrderStatusEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
	PublishStockShortage(ctx context.Context, event *models.StockShortageEvent) error
}

// StockService is the single authoritative mutation point for product stock
// counters, pairing every committed change with an audit ledger entry.
type StockService struct {
	store     StockStore
	publisher EventPublisher
	logger    *zap.Logger
}

// NewStockService creates a new stock service
func NewStockService(store StockStore, publisher EventPublisher) *StockService {
	return &StockService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// DecrementStock takes qty off a product's stock. Fails with
// InsufficientStockError when the available quantity is short, leaving both
// the counter and the ledger untouched.
func (ss *StockService) DecrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "StockService.DecrementStock")
	defer span.End()

	if qty.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrNonPositiveQty, qty)
	}

	newQty, err := ss.store.DecrementStock(ctx, productID, qty, note)
	if err != nil {
		var insufficient *models.InsufficientStockError
		if errors.As(err, &insufficient) {
			util.InsufficientStockTotal.Inc()
		}
		return decimal.Zero, err
	}

	util.StockDecrementsTotal.Inc()
	ss.logger.Info("Stock decremented",
		zap.String("product_id", productID),
		zap.String("qty", qty.String()),
		zap.String("new_quantity", newQty.String()))

	ss.publishAdjusted(ctx, productID, models.MoveTypeOut, qty, newQty, note)
	return newQty, nil
}

// IncrementStock adds qty to a product's stock. There is no upper bound;
// increments succeed whenever the product exists.
func (ss *StockService) IncrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "StockService.IncrementStock")
	defer span.End()

	if qty.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrNonPositiveQty, qty)
	}

	newQty, err := ss.store.IncrementStock(ctx, productID, qty, note)
	if err != nil {
		return decimal.Zero, err
	}

	util.StockIncrementsTotal.Inc()
	ss.logger.Info("Stock incremented",
		zap.String("product_id", productID),
		zap.String("qty", qty.String()),
		zap.String("new_quantity", newQty.String()))

	ss.publishAdjusted(ctx, productID, models.MoveTypeIn, qty, newQty, note)
	return newQty, nil
}

// AdjustStock overwrites a product's stock level after a physical recount.
// The ledger gets an "adjust" snapshot carrying the new level.
func (ss *StockService) AdjustStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "StockService.AdjustStock")
	defer span.End()

	if qty.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("%w: got %s", ErrNonPositiveQty, qty)
	}

	newQty, err := ss.store.SetStock(ctx, productID, qty, note)
	if err != nil {
		return decimal.Zero, err
	}

	util.StockAdjustsTotal.Inc()
	ss.logger.Info("Stock adjusted",
		zap.String("product_id", productID),
		zap.String("new_quantity", newQty.String()))

	ss.publishAdjusted(ctx, productID, models.MoveTypeAdjust, qty, newQty, note)
	return newQty, nil
}

// ListMoves retrieves the audit ledger for a product
func (ss *StockService) ListMoves(ctx context.Context, productID string) ([]models.InventoryMove, error) {
	return ss.store.ListMoves(ctx, productID)
}

func (ss *StockService) publishAdjusted(ctx context.Context, productID string, moveType models.MoveType, qty, newQty decimal.Decimal, note string) {
	event := &models.StockAdjustedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockAdjusted,
			Timestamp: time.Now(),
		},
		ProductID:   productID,
		MoveType:    moveType,
		Qty:         qty,
		NewQuantity: newQty,
		Note:        note,
	}
	if err := ss.publisher.PublishStockAdjusted(ctx, event); err != nil {
		ss.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
	}
}
