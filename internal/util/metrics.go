package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	}, []string{"channel"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrdersCanceledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_canceled_total",
		Help: "Total number of orders canceled",
	})

	CheckoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Total number of successful checkouts",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of the checkout flow",
		Buckets: prometheus.DefBuckets,
	})

	StockDecrementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_decrements_total",
		Help: "Total number of committed stock decrements",
	})

	StockIncrementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_increments_total",
		Help: "Total number of committed stock increments",
	})

	StockAdjustsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_adjusts_total",
		Help: "Total number of stock level corrections",
	})

	InsufficientStockTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insufficient_stock_total",
		Help: "Total number of decrements rejected for insufficient stock",
	})

	StockShortagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_stock_shortages_total",
		Help: "Total number of post-checkout stock decrements that failed",
	})

	RestockFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cancel_restock_failures_total",
		Help: "Total number of failed stock restores during cancellation",
	})

	ReconcilePartialOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_partial_orders_total",
		Help: "Orders found with a header but no line items",
	})

	ReconcileLedgerDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_ledger_drift_total",
		Help: "Products whose stock counter disagrees with the ledger replay",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
