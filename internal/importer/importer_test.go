package importer

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"

	"sacolao-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalogStore struct {
	categories map[string]string
	units      map[string]string
	inserted   []models.Product
	batches    int
}

func newFakeCatalogStore() *fakeCatalogStore {
	return &fakeCatalogStore{
		categories: make(map[string]string),
		units:      make(map[string]string),
	}
}

func (f *fakeCatalogStore) ResolveCategory(_ context.Context, name string) (string, error) {
	key := strings.ToLower(name)
	if id, ok := f.categories[key]; ok {
		return id, nil
	}
	id := "cat-" + key
	f.categories[key] = id
	return id, nil
}

func (f *fakeCatalogStore) ResolveUnit(_ context.Context, name string) (string, error) {
	key := strings.ToLower(name)
	if id, ok := f.units[key]; ok {
		return id, nil
	}
	id := "unit-" + key
	f.units[key] = id
	return id, nil
}

func (f *fakeCatalogStore) InsertProducts(_ context.Context, products []models.Product) error {
	f.inserted = append(f.inserted, products...)
	f.batches++
	return nil
}

func runCSV(t *testing.T, store CatalogStore, data string) (*Report, error) {
	t.Helper()
	im := NewImporter(store)
	return im.runReader(context.Background(), csv.NewReader(strings.NewReader(data)))
}

func TestImportParsesRowsAndResolvesNames(t *testing.T) {
	store := newFakeCatalogStore()

	data := `name,price,cost,quantity,category_id,unit_id,sku,is_active
Banana Prata,"7,99","4,50","120,5",Frutas,kg,BAN-01,true
Alface,2.50,1.10,30,Verduras,unidade,,
`
	report, err := runCSV(t, store, data)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 0, report.Failed)

	require.Len(t, store.inserted, 2)
	banana := store.inserted[0]
	assert.Equal(t, "Banana Prata", banana.Name)
	assert.True(t, banana.Price.Equal(decimal.RequireFromString("7.99")))
	assert.True(t, banana.Quantity.Equal(decimal.RequireFromString("120.5")))
	require.NotNil(t, banana.CategoryID)
	assert.Equal(t, "cat-frutas", *banana.CategoryID)
	require.NotNil(t, banana.UnitID)
	assert.Equal(t, "unit-kg", *banana.UnitID)
	require.NotNil(t, banana.SKU)
	assert.Equal(t, "BAN-01", *banana.SKU)
	assert.True(t, banana.IsActive)

	alface := store.inserted[1]
	assert.Nil(t, alface.SKU)
	assert.True(t, alface.IsActive)
}

func TestImportSkipsBadRows(t *testing.T) {
	store := newFakeCatalogStore()

	data := `name,price,cost,quantity
Banana Prata,7.99,4.50,120
,2.50,1.10,30
Tomate,abc,1.00,10
Cebola,3.00,1.50,-5
Alface,2.50,1.10,30
`
	report, err := runCSV(t, store, data)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)
	assert.Equal(t, 3, report.Failed)

	require.Len(t, store.inserted, 2)
	assert.Equal(t, "Banana Prata", store.inserted[0].Name)
	assert.Equal(t, "Alface", store.inserted[1].Name)
}

func TestImportRequiresNameColumn(t *testing.T) {
	store := newFakeCatalogStore()

	_, err := runCSV(t, store, "price,cost,quantity\n1.00,0.50,10\n")
	assert.Error(t, err)
	assert.Empty(t, store.inserted)
}

func TestImportReusesResolvedNames(t *testing.T) {
	store := newFakeCatalogStore()

	data := `name,price,cost,quantity,category_id
Banana Prata,7.99,4.50,120,Frutas
Maçã Gala,9.90,6.00,80,frutas
`
	report, err := runCSV(t, store, data)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Imported)

	// Case-insensitive match lands both rows in one category.
	assert.Len(t, store.categories, 1)
	assert.Equal(t, *store.inserted[0].CategoryID, *store.inserted[1].CategoryID)
}

func TestImportFlushesInBatches(t *testing.T) {
	store := newFakeCatalogStore()

	var sb strings.Builder
	sb.WriteString("name,price,cost,quantity\n")
	for i := 0; i < 150; i++ {
		sb.WriteString("Produto ")
		sb.WriteString(strings.Repeat("x", i%3+1))
		sb.WriteString(",1.00,0.50,10\n")
	}

	report, err := runCSV(t, store, sb.String())
	require.NoError(t, err)
	assert.Equal(t, 150, report.Imported)
	assert.Equal(t, 2, store.batches)
}

func TestParseDecimalAcceptsCommaSeparator(t *testing.T) {
	v, err := parseDecimal("12,75")
	require.NoError(t, err)
	assert.True(t, v.Equal(decimal.RequireFromString("12.75")))

	v, err = parseDecimal("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = parseDecimal("abc")
	assert.Error(t, err)
}
