package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sacolao-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListActiveProducts retrieves all active products for the storefront
func (s *Store) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE is_active = TRUE ORDER BY name")
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// DecrementStock atomically takes qty off a product's stock and appends the
// matching ledger entry, both in one transaction. The check-and-update is a
// single conditional UPDATE so two concurrent decrements can never overdraw
// the counter. Returns the new quantity.
func (s *Store) DecrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	var newQty decimal.Decimal
	err = tx.GetContext(ctx, &newQty, `
		UPDATE products
		SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`, productID, qty)
	if err == sql.ErrNoRows {
		// Lost the conditional update: either the row is missing or the
		// stock is short. Tell the two apart for the caller.
		var available decimal.Decimal
		err = tx.GetContext(ctx, &available,
			"SELECT quantity FROM products WHERE id = $1", productID)
		if err == sql.ErrNoRows {
			return decimal.Zero, models.ErrProductNotFound
		}
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, &models.InsufficientStockError{
			ProductID: productID,
			Available: available,
			Requested: qty,
		}
	}
	if err != nil {
		return decimal.Zero, err
	}

	if err := insertMove(ctx, tx, productID, models.MoveTypeOut, qty, note); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record inventory move: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return newQty, nil
}

// IncrementStock atomically adds qty to a product's stock and appends the
// matching ledger entry. There is no upper bound check. Returns the new
// quantity.
func (s *Store) IncrementStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	var newQty decimal.Decimal
	err = tx.GetContext(ctx, &newQty, `
		UPDATE products
		SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING quantity`, productID, qty)
	if err == sql.ErrNoRows {
		return decimal.Zero, models.ErrProductNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	if err := insertMove(ctx, tx, productID, models.MoveTypeIn, qty, note); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record inventory move: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return newQty, nil
}

// SetStock overwrites a product's stock level (admin recount) and appends an
// "adjust" ledger snapshot carrying the new level.
func (s *Store) SetStock(ctx context.Context, productID string, qty decimal.Decimal, note string) (decimal.Decimal, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	var newQty decimal.Decimal
	err = tx.GetContext(ctx, &newQty, `
		UPDATE products
		SET quantity = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING quantity`, productID, qty)
	if err == sql.ErrNoRows {
		return decimal.Zero, models.ErrProductNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	if err := insertMove(ctx, tx, productID, models.MoveTypeAdjust, qty, note); err != nil {
		return decimal.Zero, fmt.Errorf("failed to record inventory move: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, err
	}
	return newQty, nil
}

func insertMove(ctx context.Context, tx *sqlx.Tx, productID string, moveType models.MoveType, qty decimal.Decimal, note string) error {
	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_moves (product_id, type, qty, note)
		VALUES ($1, $2, $3, $4)`, productID, moveType, qty, notePtr)
	return err
}

// ListMoves retrieves the ledger for a product, newest first
func (s *Store) ListMoves(ctx context.Context, productID string) ([]models.InventoryMove, error) {
	var moves []models.InventoryMove
	err := s.db.SelectContext(ctx, &moves,
		"SELECT * FROM inventory_moves WHERE product_id = $1 ORDER BY created_at DESC, id DESC",
		productID)
	return moves, err
}

// GetLedgerLevel replays the ledger for a product: the latest "adjust"
// snapshot plus the net of "in"/"out" deltas recorded after it. The snapshot
// is picked by (created_at, id) and deltas filter on the same tuple, so a
// delta sharing the snapshot's timestamp is counted only if it sorts after
// it. Used by the reconciler to detect drift between the counter and the
// ledger.
func (s *Store) GetLedgerLevel(ctx context.Context, productID string) (decimal.Decimal, error) {
	var level decimal.Decimal
	err := s.db.GetContext(ctx, &level, `
		WITH base AS (
			SELECT id, qty, created_at
			FROM inventory_moves
			WHERE product_id = $1 AND type = 'adjust'
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		)
		SELECT COALESCE((SELECT qty FROM base), 0) + COALESCE(SUM(
			CASE m.type WHEN 'in' THEN m.qty WHEN 'out' THEN -m.qty ELSE 0 END
		), 0)
		FROM inventory_moves m
		WHERE m.product_id = $1
		  AND m.type <> 'adjust'
		  AND (m.created_at, m.id) > ALL (SELECT created_at, id FROM base)`,
		productID)
	return level, err
}

// InsertProducts batch-inserts products together with their initial "adjust"
// ledger snapshots. Used by the bulk importer.
func (s *Store) InsertProducts(ctx context.Context, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range products {
		p := &products[i]
		err := tx.GetContext(ctx, &p.ID, `
			INSERT INTO products (name, category_id, unit_id, sku, price, cost, quantity, image_url, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			p.Name, p.CategoryID, p.UnitID, p.SKU, p.Price, p.Cost, p.Quantity, p.ImageURL, p.IsActive)
		if err != nil {
			return fmt.Errorf("failed to insert product %q: %w", p.Name, err)
		}
		if err := insertMove(ctx, tx, p.ID, models.MoveTypeAdjust, p.Quantity, "initial stock"); err != nil {
			return fmt.Errorf("failed to record initial stock for %q: %w", p.Name, err)
		}
	}

	return tx.Commit()
}
