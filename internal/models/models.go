package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusNew            OrderStatus = "new"
	OrderStatusPicking        OrderStatus = "picking"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCanceled       OrderStatus = "canceled"
)

// validNext is the allowed forward transition table. Cancellation is handled
// separately: it is reachable from any non-terminal state.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusNew:            {OrderStatusPicking: true},
	OrderStatusPicking:        {OrderStatusOutForDelivery: true},
	OrderStatusOutForDelivery: {OrderStatusDelivered: true},
	OrderStatusDelivered:      {},
	OrderStatusCanceled:       {},
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// CanTransition reports whether an order may move from one status to another.
// Setting the same status again is treated as a valid no-op.
func CanTransition(from, to OrderStatus) bool {
	if from == to {
		return true
	}
	if to == OrderStatusCanceled {
		return !from.IsTerminal()
	}
	return validNext[from][to]
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s OrderStatus) bool {
	_, ok := validNext[s]
	return ok
}

// PaymentMethod is how the customer intends to pay
type PaymentMethod string

const (
	PaymentMethodPix            PaymentMethod = "pix"
	PaymentMethodCash           PaymentMethod = "cash"
	PaymentMethodCardOnDelivery PaymentMethod = "card_on_delivery"
	PaymentMethodOther          PaymentMethod = "other"
)

// Channel is the origin of an order
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelCounter  Channel = "counter"
	ChannelWeb      Channel = "web"
)

// MoveType classifies an inventory ledger entry.
//
// "in" and "out" are deltas against the running stock level; "adjust" is a
// level snapshot (recount or initial stock) that resets the replay baseline.
type MoveType string

const (
	MoveTypeIn     MoveType = "in"
	MoveTypeOut    MoveType = "out"
	MoveTypeAdjust MoveType = "adjust"
)

// Product represents a product in the catalog. Quantity is the current
// on-hand stock and supports fractional amounts for weight-based units.
type Product struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	CategoryID *string         `db:"category_id" json:"category_id,omitempty"`
	UnitID     *string         `db:"unit_id" json:"unit_id,omitempty"`
	SKU        *string         `db:"sku" json:"sku,omitempty"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Cost       decimal.Decimal `db:"cost" json:"cost"`
	Quantity   decimal.Decimal `db:"quantity" json:"quantity"`
	ImageURL   *string         `db:"image_url" json:"image_url,omitempty"`
	IsActive   bool            `db:"is_active" json:"is_active"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// InventoryMove is an immutable audit record of a stock change
type InventoryMove struct {
	ID        string          `db:"id" json:"id"`
	ProductID string          `db:"product_id" json:"product_id"`
	Type      MoveType        `db:"type" json:"type"`
	Qty       decimal.Decimal `db:"qty" json:"qty"`
	Note      *string         `db:"note" json:"note,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Category groups products on the storefront
type Category struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Unit is a sales unit (kg, bunch, piece) with its order increment step
type Unit struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Step      decimal.Decimal `db:"step" json:"step"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Customer is deduplicated by phone number across checkouts
type Customer struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Address is a delivery address owned by a customer
type Address struct {
	ID           string    `db:"id" json:"id"`
	CustomerID   string    `db:"customer_id" json:"customer_id"`
	Label        *string   `db:"label" json:"label,omitempty"`
	Street       string    `db:"street" json:"street"`
	Number       *string   `db:"number" json:"number,omitempty"`
	Complement   *string   `db:"complement" json:"complement,omitempty"`
	Neighborhood *string   `db:"neighborhood" json:"neighborhood,omitempty"`
	City         string    `db:"city" json:"city"`
	State        string    `db:"state" json:"state"`
	Zip          *string   `db:"zip" json:"zip,omitempty"`
	IsDefault    bool      `db:"is_default" json:"is_default"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order. Status and Paid are the only fields
// mutated after creation; orders are never deleted in normal operation.
type Order struct {
	ID            string          `db:"id" json:"id"`
	CustomerID    *string         `db:"customer_id" json:"customer_id,omitempty"`
	AddressID     *string         `db:"address_id" json:"address_id,omitempty"`
	Status        OrderStatus     `db:"status" json:"status"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	Total         decimal.Decimal `db:"total" json:"total"`
	PaymentMethod *PaymentMethod  `db:"payment_method" json:"payment_method,omitempty"`
	Paid          bool            `db:"paid" json:"paid"`
	Channel       Channel         `db:"channel" json:"channel"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
	PlacedAt      time.Time       `db:"placed_at" json:"placed_at"`
}

// OrderItem is a line within an order. Name and UnitPrice are snapshotted at
// order time; ProductID may be nil for basket or ad-hoc lines.
type OrderItem struct {
	ID        string          `db:"id" json:"id"`
	OrderID   string          `db:"order_id" json:"order_id"`
	ProductID *string         `db:"product_id" json:"product_id,omitempty"`
	Name      string          `db:"name" json:"name"`
	UnitID    *string         `db:"unit_id" json:"unit_id,omitempty"`
	UnitName  *string         `db:"unit_name" json:"unit_name,omitempty"`
	Qty       decimal.Decimal `db:"qty" json:"qty"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Total     decimal.Decimal `db:"total" json:"total"`
}

// OrderSummary is a listing projection for the back office
type OrderSummary struct {
	ID            string          `db:"id" json:"id"`
	Total         decimal.Decimal `db:"total" json:"total"`
	Status        OrderStatus     `db:"status" json:"status"`
	PlacedAt      time.Time       `db:"placed_at" json:"placed_at"`
	PaymentMethod *PaymentMethod  `db:"payment_method" json:"payment_method,omitempty"`
	Paid          bool            `db:"paid" json:"paid"`
	CustomerName  *string         `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone *string         `db:"customer_phone" json:"customer_phone,omitempty"`
}

// OrderDetail is the full order view with joined customer, address and items
type OrderDetail struct {
	Order
	Customer *Customer   `json:"customer,omitempty"`
	Address  *Address    `json:"address,omitempty"`
	Items    []OrderItem `json:"items"`
}

// TopProduct ranks a product by cumulative ordered quantity
type TopProduct struct {
	ProductID string          `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Qty       decimal.Decimal `db:"qty" json:"qty"`
}

// CustomerStats aggregates a customer's non-canceled orders
type CustomerStats struct {
	TotalOrders int             `json:"total_orders"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	TopProducts []TopProduct    `json:"top_products"`
}
