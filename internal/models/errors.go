package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when a referenced product row does not exist
	ErrProductNotFound = errors.New("product not found")

	// ErrOrderNotFound is returned when a referenced order row does not exist
	ErrOrderNotFound = errors.New("order not found")

	// ErrCustomerNotFound is returned when a referenced customer row does not exist
	ErrCustomerNotFound = errors.New("customer not found")
)

// InsufficientStockError reports a decrement larger than the available stock.
// The operation leaves the counter and the ledger unchanged.
type InsufficientStockError struct {
	ProductID string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available=%s, requested=%s",
		e.ProductID, e.Available.String(), e.Requested.String())
}

// InvalidTransitionError reports a status change the lifecycle table rejects
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition: %s -> %s", e.From, e.To)
}

// PartialCommitError marks an order whose header persisted without its items
// or whose stock effects did not land. Distinguishable from total failure so
// operators can reconcile manually.
type PartialCommitError struct {
	OrderID string
	Stage   string
	Err     error
}

func (e *PartialCommitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("partial commit for order %s at %s: %v", e.OrderID, e.Stage, e.Err)
	}
	return fmt.Sprintf("partial commit for order %s at %s", e.OrderID, e.Stage)
}

func (e *PartialCommitError) Unwrap() error {
	return e.Err
}
