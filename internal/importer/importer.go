package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"sacolao-service/internal/models"
	"sacolao-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const batchSize = 100

// CatalogStore is the persistence surface the importer writes through
type CatalogStore interface {
	ResolveCategory(ctx context.Context, name string) (string, error)
	ResolveUnit(ctx context.Context, name string) (string, error)
	InsertProducts(ctx context.Context, products []models.Product) error
}

// Report summarizes an import run
type Report struct {
	Imported int
	Failed   int
}

// Importer bulk-loads products from a CSV file. Category and unit columns
// hold free-text names that are resolved to existing rows (exact
// case-insensitive match, then substring containment) or created on the fly.
// Rows are inserted in batches of up to 100; a bad row is skipped and
// counted, never aborts the run.
type Importer struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewImporter creates a new importer
func NewImporter(store CatalogStore) *Importer {
	return &Importer{
		store:  store,
		logger: util.GetLogger(),
	}
}

// Run imports the CSV file at path and returns the imported/failed counts
func (im *Importer) Run(ctx context.Context, path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return im.runReader(ctx, csv.NewReader(f))
}

func (im *Importer) runReader(ctx context.Context, reader *csv.Reader) (*Report, error) {
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := columns["name"]; !ok {
		return nil, fmt.Errorf("csv is missing the name column")
	}

	report := &Report{}
	batch := make([]models.Product, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.store.InsertProducts(ctx, batch); err != nil {
			return fmt.Errorf("batch insert failed: %w", err)
		}
		report.Imported += len(batch)
		batch = batch[:0]
		return nil
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			im.logger.Warn("Skipping malformed row", zap.Int("line", line), zap.Error(err))
			report.Failed++
			continue
		}

		product, err := im.buildProduct(ctx, columns, record)
		if err != nil {
			im.logger.Warn("Skipping invalid row",
				zap.Int("line", line), zap.Error(err))
			report.Failed++
			continue
		}

		batch = append(batch, *product)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}

	im.logger.Info("Import finished",
		zap.Int("imported", report.Imported),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (im *Importer) buildProduct(ctx context.Context, columns map[string]int, record []string) (*models.Product, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	name := field("name")
	if name == "" {
		return nil, fmt.Errorf("row has no name")
	}

	price, err := parseDecimal(field("price"))
	if err != nil {
		return nil, fmt.Errorf("invalid price for %q: %w", name, err)
	}
	cost, err := parseDecimal(field("cost"))
	if err != nil {
		return nil, fmt.Errorf("invalid cost for %q: %w", name, err)
	}
	quantity, err := parseDecimal(field("quantity"))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity for %q: %w", name, err)
	}
	if quantity.Sign() < 0 {
		return nil, fmt.Errorf("negative quantity for %q", name)
	}

	product := &models.Product{
		Name:     name,
		Price:    price,
		Cost:     cost,
		Quantity: quantity,
		IsActive: true,
	}

	if active := field("is_active"); active != "" {
		product.IsActive = strings.EqualFold(active, "true") || active == "1"
	}
	if sku := field("sku"); sku != "" {
		product.SKU = &sku
	}
	if imageURL := field("image_url"); imageURL != "" {
		product.ImageURL = &imageURL
	}

	if category := field("category_id"); category != "" {
		id, err := im.store.ResolveCategory(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve category %q: %w", category, err)
		}
		product.CategoryID = &id
	}
	if unit := field("unit_id"); unit != "" {
		id, err := im.store.ResolveUnit(ctx, unit)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve unit %q: %w", unit, err)
		}
		product.UnitID = &id
	}

	return product, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	// Price lists commonly use a comma decimal separator.
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}
