package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *Store, *logtest.Hook) {
	t.Helper()
	store, _ := newTestStore(t)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewService(store, logger, 0), store, hook
}

func ptr[T any](v T) *T { return &v }

func TestList_PriceBoundsAndStock(t *testing.T) {
	svc, store, _ := newTestService(t)
	mustCreate(t, store, Product{Name: "Cheap", Description: "Too cheap", Price: 49.99, Category: "A", Stock: 5})
	mustCreate(t, store, Product{Name: "Lower", Description: "Lower bound", Price: 50, Category: "A", Stock: 5})
	mustCreate(t, store, Product{Name: "Middle", Description: "In range", Price: 99, Category: "A", Stock: 5})
	mustCreate(t, store, Product{Name: "SoldOut", Description: "In range but empty", Price: 100, Category: "A", Stock: 0})
	mustCreate(t, store, Product{Name: "Upper", Description: "Upper bound", Price: 150, Category: "A", Stock: 1})
	mustCreate(t, store, Product{Name: "Pricey", Description: "Too pricey", Price: 150.01, Category: "A", Stock: 5})

	page, err := svc.List(context.Background(), Query{MinPrice: ptr(50.0), MaxPrice: ptr(150.0)})

	require.NoError(t, err)
	var names []string
	for _, p := range page.Items {
		assert.GreaterOrEqual(t, p.Price, 50.0)
		assert.LessOrEqual(t, p.Price, 150.0)
		assert.Positive(t, p.Stock)
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Upper", "Middle", "Lower"}, names)
	assert.Equal(t, 3, page.Pagination.Total)
}

func TestList_OnlyOneBound(t *testing.T) {
	svc, store, _ := newTestService(t)
	mustCreate(t, store, Product{Name: "One", Description: "Item one", Price: 10, Category: "A", Stock: 5})
	mustCreate(t, store, Product{Name: "Two", Description: "Item two", Price: 20, Category: "A", Stock: 5})

	page, err := svc.List(context.Background(), Query{MinPrice: ptr(15.0)})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Two", page.Items[0].Name)

	page, err = svc.List(context.Background(), Query{MaxPrice: ptr(15.0)})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "One", page.Items[0].Name)
}

func TestList_SearchMatchesNameOrDescriptionIgnoringCase(t *testing.T) {
	svc, store, _ := newTestService(t)
	mustCreate(t, store, Product{Name: "Wireless Mouse", Description: "Ergonomic", Price: 25, Category: "Electronics", Stock: 3})
	mustCreate(t, store, Product{Name: "Keyboard", Description: "Mechanical, WIRELESS optional", Price: 80, Category: "Electronics", Stock: 3})
	mustCreate(t, store, Product{Name: "Monitor", Description: "27 inch", Price: 200, Category: "Electronics", Stock: 3})

	page, err := svc.List(context.Background(), Query{Search: "wireless"})

	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
}

func TestList_CategorySubstring(t *testing.T) {
	svc, store, _ := newTestService(t)
	mustCreate(t, store, Product{Name: "Novel", Description: "A long story", Price: 12, Category: "Books & Media", Stock: 3})
	mustCreate(t, store, Product{Name: "Pan", Description: "Frying pan", Price: 30, Category: "Kitchen", Stock: 3})

	page, err := svc.List(context.Background(), Query{Category: "BOOK"})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Novel", page.Items[0].Name)
}

func TestList_CombinedFiltersAreConjunctive(t *testing.T) {
	svc, store, _ := newTestService(t)
	mustCreate(t, store, Product{Name: "Red Chair", Description: "Wooden chair", Price: 60, Category: "Furniture", Stock: 2})
	mustCreate(t, store, Product{Name: "Red Lamp", Description: "Desk lamp", Price: 60, Category: "Lighting", Stock: 2})
	mustCreate(t, store, Product{Name: "Red Sofa", Description: "Three seats", Price: 900, Category: "Furniture", Stock: 2})

	page, err := svc.List(context.Background(), Query{Search: "red", Category: "furn", MaxPrice: ptr(100.0)})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Red Chair", page.Items[0].Name)
}

func TestList_Pagination(t *testing.T) {
	svc, store, _ := newTestService(t)
	for i := 1; i <= 25; i++ {
		mustCreate(t, store, Product{Name: fmt.Sprintf("Product %02d", i), Description: "Numbered product", Price: float64(i), Category: "Misc", Stock: 1})
	}

	page, err := svc.List(context.Background(), Query{Page: 3, Limit: 10})

	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	assert.Equal(t, 25, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.Pages)
	assert.False(t, page.Pagination.HasNext)
	assert.True(t, page.Pagination.HasPrev)
	// newest first, so the last page holds the five oldest
	assert.Equal(t, "Product 05", page.Items[0].Name)
	assert.Equal(t, "Product 01", page.Items[4].Name)
}

func TestList_DefaultLimit(t *testing.T) {
	svc, store, _ := newTestService(t)
	for i := 1; i <= 15; i++ {
		mustCreate(t, store, Product{Name: fmt.Sprintf("Product %02d", i), Description: "Numbered product", Price: 1, Category: "Misc", Stock: 1})
	}

	page, err := svc.List(context.Background(), Query{})

	require.NoError(t, err)
	assert.Len(t, page.Items, DefaultListLimit)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.True(t, page.Pagination.HasNext)
}

func TestLowStock(t *testing.T) {
	svc, store, _ := newTestService(t)
	mustCreate(t, store, Product{Name: "Empty", Description: "Nothing left", Price: 1, Category: "Misc", Stock: 0})
	mustCreate(t, store, Product{Name: "Few", Description: "Almost gone", Price: 1, Category: "Misc", Stock: 7})
	mustCreate(t, store, Product{Name: "One", Description: "Last unit", Price: 1, Category: "Misc", Stock: 1})
	mustCreate(t, store, Product{Name: "Plenty", Description: "Lots left", Price: 1, Category: "Misc", Stock: 11})

	low, err := svc.LowStock(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, low, 2)
	assert.Equal(t, "One", low[0].Name)
	assert.Equal(t, "Few", low[1].Name)

	low, err = svc.LowStock(context.Background(), 20)
	require.NoError(t, err)
	assert.Len(t, low, 3)
}

func TestCategories_DistinctAndSorted(t *testing.T) {
	svc, store, _ := newTestService(t)
	mustCreate(t, store, Product{Name: "A", Description: "Item A", Price: 1, Category: "toys", Stock: 0})
	mustCreate(t, store, Product{Name: "B", Description: "Item B", Price: 1, Category: "Books", Stock: 1})
	mustCreate(t, store, Product{Name: "C", Description: "Item C", Price: 1, Category: "toys", Stock: 1})
	mustCreate(t, store, Product{Name: "D", Description: "Item D", Price: 1, Category: "Garden", Stock: 1})

	cats, err := svc.Categories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Books", "Garden", "toys"}, cats)
}

func TestDelete_LogsRemainingStock(t *testing.T) {
	svc, store, hook := newTestService(t)
	p := mustCreate(t, store, Product{Name: "A", Description: "Item A", Price: 1, Category: "Misc", Stock: 4})

	_, err := svc.Delete(context.Background(), p.ID)

	require.NoError(t, err)
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["stock"] == 4 {
			warned = true
		}
	}
	assert.True(t, warned)
}
