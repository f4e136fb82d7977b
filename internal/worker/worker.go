package worker

import (
	"context"
	"fmt"
	"time"

	"sacolao-service/internal/broker"
	"sacolao-service/internal/models"
	"sacolao-service/internal/service"
	"sacolao-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReconcilerStore is the read surface the reconciler audits
type ReconcilerStore interface {
	ListOrdersWithoutItems(ctx context.Context) ([]string, error)
	ListActiveProducts(ctx context.Context) ([]models.Product, error)
	GetLedgerLevel(ctx context.Context, productID string) (decimal.Decimal, error)
}

// Locker serializes reconciliation runs across service replicas
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// Reconciler periodically audits two consistency gaps the write path cannot
// rule out on its own: order headers without line items (written by older
// tools) and stock counters that drifted from the ledger replay. It alerts
// via logs and metrics; it never auto-repairs.
type Reconciler struct {
	store    ReconcilerStore
	locker   Locker
	interval time.Duration
	logger   *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(store ReconcilerStore, locker Locker, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		locker:   locker,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs reconciliation passes until the context is canceled
func (r *Reconciler) Start(ctx context.Context) error {
	r.logger.Info("Starting reconciler", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping")
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	acquired, err := r.locker.AcquireLock(ctx, "reconcile", r.interval)
	if err != nil {
		r.logger.Warn("Failed to acquire reconcile lock", zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := r.locker.ReleaseLock(ctx, "reconcile"); err != nil {
			r.logger.Warn("Failed to release reconcile lock", zap.Error(err))
		}
	}()

	r.checkPartialOrders(ctx)
	r.checkLedgerDrift(ctx)
}

func (r *Reconciler) checkPartialOrders(ctx context.Context) {
	ids, err := r.store.ListOrdersWithoutItems(ctx)
	if err != nil {
		r.logger.Error("Partial order scan failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		util.ReconcilePartialOrdersTotal.Inc()
		partial := &models.PartialCommitError{OrderID: id, Stage: "order_items"}
		r.logger.Error("Order header without items", zap.String("order_id", id), zap.Error(partial))
	}
}

func (r *Reconciler) checkLedgerDrift(ctx context.Context) {
	products, err := r.store.ListActiveProducts(ctx)
	if err != nil {
		r.logger.Error("Product scan failed", zap.Error(err))
		return
	}
	for _, p := range products {
		level, err := r.store.GetLedgerLevel(ctx, p.ID)
		if err != nil {
			r.logger.Error("Ledger replay failed",
				zap.String("product_id", p.ID), zap.Error(err))
			continue
		}
		if !level.Equal(p.Quantity) {
			util.ReconcileLedgerDriftTotal.Inc()
			r.logger.Error("Stock counter disagrees with ledger",
				zap.String("product_id", p.ID),
				zap.String("counter", p.Quantity.String()),
				zap.String("ledger", level.String()))
		}
	}
}

// CounterOrderWorker ingests till sales from the POS topic. A counter sale
// runs through the same order pipeline as a web checkout: customer upsert
// when a phone is present, order creation, then per-line stock decrement.
type CounterOrderWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	customers    service.CustomerStore
	orders       *service.OrderService
	stock        service.StockAdjuster
	logger       *zap.Logger
}

// NewCounterOrderWorker creates a new counter order worker
func NewCounterOrderWorker(
	consumer *broker.Consumer,
	customers service.CustomerStore,
	orders *service.OrderService,
	stock service.StockAdjuster,
) *CounterOrderWorker {
	w := &CounterOrderWorker{
		consumer:  consumer,
		customers: customers,
		orders:    orders,
		stock:     stock,
		logger:    util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnCounterOrder(w.handleCounterOrder)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *CounterOrderWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting counter order worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CounterOrderWorker) Stop() error {
	w.logger.Info("Stopping counter order worker")
	return w.consumer.Close()
}

func (w *CounterOrderWorker) handleCounterOrder(ctx context.Context, event *models.CounterOrderEvent) error {
	if len(event.Items) == 0 {
		w.logger.Warn("Counter order without items, dropping",
			zap.String("event_id", event.EventID))
		return nil
	}

	var customerID *string
	if event.CustomerPhone != "" {
		customer, err := w.customers.FindOrCreateCustomer(ctx, event.CustomerName, event.CustomerPhone, nil)
		if err != nil {
			return fmt.Errorf("failed to resolve counter customer: %w", err)
		}
		customerID = &customer.ID
	}

	items := make([]models.OrderItem, 0, len(event.Items))
	subtotal := decimal.Zero
	for _, it := range event.Items {
		total := it.Qty.Mul(it.UnitPrice)
		items = append(items, models.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: it.UnitPrice,
			Total:     total,
		})
		subtotal = subtotal.Add(total)
	}

	order := &models.Order{
		CustomerID:    customerID,
		Status:        models.OrderStatusNew,
		Subtotal:      subtotal,
		Discount:      decimal.Zero,
		Total:         subtotal,
		PaymentMethod: event.PaymentMethod,
		Paid:          event.Paid,
		Channel:       models.ChannelCounter,
	}
	if event.Notes != "" {
		notes := event.Notes
		order.Notes = &notes
	}

	if err := w.orders.CreateOrder(ctx, order, items); err != nil {
		return fmt.Errorf("failed to create counter order: %w", err)
	}

	note := fmt.Sprintf("order %s", order.ID)
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, err := w.stock.DecrementStock(ctx, *item.ProductID, item.Qty, note); err != nil {
			util.StockShortagesTotal.Inc()
			w.logger.Error("Stock decrement failed for counter order",
				zap.String("order_id", order.ID),
				zap.String("product_id", *item.ProductID),
				zap.Error(err))
		}
	}

	w.logger.Info("Counter order ingested",
		zap.String("order_id", order.ID),
		zap.String("total", order.Total.String()))
	return nil
}
