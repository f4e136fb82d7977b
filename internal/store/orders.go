package store

import (
	"context"
	"database/sql"
	"fmt"

	"sacolao-service/internal/models"

	"github.com/shopspring/decimal"
)

// CreateOrder persists an order header and all of its line items in one
// transaction. The generated id and placed_at are written back to order, and
// each item gets its id and order reference filled in.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (customer_id, address_id, status, subtotal, discount, total, payment_method, paid, channel, notes, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		RETURNING *`,
		order.CustomerID, order.AddressID, order.Status, order.Subtotal, order.Discount,
		order.Total, order.PaymentMethod, order.Paid, order.Channel, order.Notes)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, product_id, name, unit_id, qty, unit_price, total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].Name, items[i].UnitID,
			items[i].Qty, items[i].UnitPrice, items[i].Total)
		if err != nil {
			return &models.PartialCommitError{OrderID: order.ID, Stage: "order_items", Err: err}
		}
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order with its customer, address and items
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.OrderDetail, error) {
	var detail models.OrderDetail
	err := s.db.GetContext(ctx, &detail.Order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.GetOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.Items = items

	if detail.CustomerID != nil {
		var customer models.Customer
		err := s.db.GetContext(ctx, &customer,
			"SELECT * FROM customers WHERE id = $1", *detail.CustomerID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			detail.Customer = &customer
		}
	}

	if detail.AddressID != nil {
		var address models.Address
		err := s.db.GetContext(ctx, &address,
			"SELECT * FROM addresses WHERE id = $1", *detail.AddressID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if err == nil {
			detail.Address = &address
		}
	}

	return &detail, nil
}

// GetOrderItems retrieves all items for an order with their unit names
func (s *Store) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.name, oi.unit_id, u.name AS unit_name,
		       oi.qty, oi.unit_price, oi.total
		FROM order_items oi
		LEFT JOIN units u ON u.id = oi.unit_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	return items, err
}

// ListOrders retrieves all orders newest first for the back office
func (s *Store) ListOrders(ctx context.Context) ([]models.OrderSummary, error) {
	var orders []models.OrderSummary
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.id, o.total, o.status, o.placed_at, o.payment_method, o.paid,
		       c.full_name AS customer_name, c.phone AS customer_phone
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		ORDER BY o.placed_at DESC`)
	return orders, err
}

// ListCustomerOrders retrieves a customer's orders newest first
func (s *Store) ListCustomerOrders(ctx context.Context, customerID string) ([]models.OrderSummary, error) {
	var orders []models.OrderSummary
	err := s.db.SelectContext(ctx, &orders, `
		SELECT o.id, o.total, o.status, o.placed_at, o.payment_method, o.paid,
		       c.full_name AS customer_name, c.phone AS customer_phone
		FROM orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE o.customer_id = $1
		ORDER BY o.placed_at DESC`, customerID)
	return orders, err
}

// GetOrderStatus retrieves the current status of an order
func (s *Store) GetOrderStatus(ctx context.Context, orderID string) (models.OrderStatus, error) {
	var status models.OrderStatus
	err := s.db.GetContext(ctx, &status, "SELECT status FROM orders WHERE id = $1", orderID)
	if err == sql.ErrNoRows {
		return "", models.ErrOrderNotFound
	}
	return status, err
}

// UpdateOrderStatus writes a new status for an order
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2", status, orderID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

// MarkOrderCanceled flips an order to canceled unless it already is. The
// conditional update makes a concurrent double-cancel credit stock at most
// once: exactly one caller sees newly=true.
func (s *Store) MarkOrderCanceled(ctx context.Context, orderID string) (newly bool, err error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1 WHERE id = $2 AND status <> $1",
		models.OrderStatusCanceled, orderID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	// No row updated: either already canceled or missing.
	var exists bool
	err = s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", orderID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, models.ErrOrderNotFound
	}
	return false, nil
}

// UpdateOrderPaid writes the payment flag for an order
func (s *Store) UpdateOrderPaid(ctx context.Context, orderID string, paid bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET paid = $1 WHERE id = $2", paid, orderID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

// GetCustomerStats aggregates a customer's non-canceled orders: order count,
// total spend and the top-5 products by cumulative quantity. Ties on quantity
// break by product name ascending.
func (s *Store) GetCustomerStats(ctx context.Context, customerID string) (*models.CustomerStats, error) {
	stats := &models.CustomerStats{TotalSpent: decimal.Zero}

	row := s.db.QueryRowxContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total), 0)
		FROM orders
		WHERE customer_id = $1 AND status <> $2`,
		customerID, models.OrderStatusCanceled)
	if err := row.Scan(&stats.TotalOrders, &stats.TotalSpent); err != nil {
		return nil, err
	}

	err := s.db.SelectContext(ctx, &stats.TopProducts, `
		SELECT oi.product_id, oi.name, SUM(oi.qty) AS qty
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.customer_id = $1
		  AND o.status <> $2
		  AND oi.product_id IS NOT NULL
		GROUP BY oi.product_id, oi.name
		ORDER BY qty DESC, oi.name ASC
		LIMIT 5`,
		customerID, models.OrderStatusCanceled)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// ListOrdersWithoutItems finds order headers that have no line items. On the
// current write path header and items commit together, so any hit here came
// from an older write path or an external tool and needs manual attention.
func (s *Store) ListOrdersWithoutItems(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT o.id
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.id IS NULL`)
	return ids, err
}
