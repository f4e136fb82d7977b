package store

import (
	"context"
	"database/sql"
	"fmt"

	"sacolao-service/internal/models"
)

// FindOrCreateCustomer upserts a customer keyed by phone number, the natural
// dedup key across checkout sessions. An existing customer gets its name
// refreshed (and email, when one is supplied).
func (s *Store) FindOrCreateCustomer(ctx context.Context, fullName, phone string, email *string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, `
		INSERT INTO customers (full_name, phone, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (phone) DO UPDATE
		SET full_name = EXCLUDED.full_name,
		    email = COALESCE(EXCLUDED.email, customers.email),
		    updated_at = NOW()
		RETURNING *`,
		fullName, phone, email)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert customer: %w", err)
	}
	return &customer, nil
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id string) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListCustomers retrieves all customers ordered by name
func (s *Store) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var customers []models.Customer
	err := s.db.SelectContext(ctx, &customers, "SELECT * FROM customers ORDER BY full_name")
	return customers, err
}

// CreateAddress adds a delivery address for a customer
func (s *Store) CreateAddress(ctx context.Context, address *models.Address) error {
	return s.db.GetContext(ctx, address, `
		INSERT INTO addresses (customer_id, label, street, number, complement, neighborhood, city, state, zip, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING *`,
		address.CustomerID, address.Label, address.Street, address.Number, address.Complement,
		address.Neighborhood, address.City, address.State, address.Zip, address.IsDefault)
}

// ListAddresses retrieves all addresses for a customer, default first
func (s *Store) ListAddresses(ctx context.Context, customerID string) ([]models.Address, error) {
	var addresses []models.Address
	err := s.db.SelectContext(ctx, &addresses,
		"SELECT * FROM addresses WHERE customer_id = $1 ORDER BY is_default DESC, created_at",
		customerID)
	return addresses, err
}

// DeleteAddress removes an address
func (s *Store) DeleteAddress(ctx context.Context, addressID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM addresses WHERE id = $1", addressID)
	return err
}
