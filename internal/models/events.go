package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced   = "ORDER_PLACED"
	EventTypeOrderCanceled = "ORDER_CANCELED"
	EventTypeOrderStatus   = "ORDER_STATUS_CHANGED"
	EventTypeStockAdjusted = "STOCK_ADJUSTED"
	EventTypeStockShortage = "STOCK_SHORTAGE"
	EventTypeCounterOrder  = "COUNTER_ORDER"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID *string         `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// OrderPlacedEvent published when an order commits (header + items)
type OrderPlacedEvent struct {
	BaseEvent
	OrderID    string          `json:"order_id"`
	CustomerID *string         `json:"customer_id,omitempty"`
	Channel    Channel         `json:"channel"`
	Total      decimal.Decimal `json:"total"`
	Items      []OrderItemData `json:"items"`
}

// OrderCanceledEvent published when an order is canceled for the first time
type OrderCanceledEvent struct {
	BaseEvent
	OrderID        string      `json:"order_id"`
	PreviousStatus OrderStatus `json:"previous_status"`
}

// OrderStatusEvent published on non-cancel status changes
type OrderStatusEvent struct {
	BaseEvent
	OrderID string      `json:"order_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

// StockAdjustedEvent published after a committed stock mutation
type StockAdjustedEvent struct {
	BaseEvent
	ProductID   string          `json:"product_id"`
	MoveType    MoveType        `json:"move_type"`
	Qty         decimal.Decimal `json:"qty"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	Note        string          `json:"note,omitempty"`
}

// StockShortageEvent published when a post-checkout decrement fails. The
// order is already committed at this point; the event is the operator signal
// to reconcile.
type StockShortageEvent struct {
	BaseEvent
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Requested decimal.Decimal `json:"requested"`
	Reason    string          `json:"reason"`
}

// CounterOrderEvent is consumed from the POS topic; a till sale enters the
// same order pipeline with channel=counter.
type CounterOrderEvent struct {
	BaseEvent
	CustomerName  string             `json:"customer_name,omitempty"`
	CustomerPhone string             `json:"customer_phone,omitempty"`
	PaymentMethod *PaymentMethod     `json:"payment_method,omitempty"`
	Paid          bool               `json:"paid"`
	Notes         string             `json:"notes,omitempty"`
	Items         []CounterOrderItem `json:"items"`
}

// CounterOrderItem is a line of a POS sale
type CounterOrderItem struct {
	ProductID *string         `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
