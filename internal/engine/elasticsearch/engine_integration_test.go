package elasticsearch_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
	esengine "github.com/utafrali/finsearch/internal/engine/elasticsearch"
)

// testLogger returns a discard logger suitable for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine creates an Elasticsearch engine for integration tests.
// It skips the test if ELASTICSEARCH_URL is not set.
func newTestEngine(t *testing.T) *esengine.Engine {
	t.Helper()

	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL == "" {
		t.Skip("ELASTICSEARCH_URL not set, skipping Elasticsearch integration tests")
	}

	indexName := fmt.Sprintf("test_finsearch_products_%d", time.Now().UnixNano())

	eng, err := esengine.New(context.Background(), esURL, indexName, testLogger())
	require.NoError(t, err, "failed to create Elasticsearch engine")

	t.Cleanup(func() {
		_ = eng.DeleteIndex(context.Background())
	})

	return eng
}

var nextID atomic.Int64

func newTestDocument(name, description string, price float64) engine.Document {
	id := nextID.Add(1)
	return engine.Document{
		ID:             id,
		VariantID:      id * 10,
		Number:         fmt.Sprintf("SW%05d", id),
		Name:           name,
		Description:    description,
		CategoryTokens: []string{"Damen", "Damen_Schuhe", "Schuhe"},
		Properties:     []engine.Property{{Name: "vendor", Value: "Acme"}},
		Price:          price,
		Added:          time.Now().UTC(),
	}
}

func search(t *testing.T, eng *esengine.Engine, c *domain.SearchCriteria) *domain.SearchResult {
	t.Helper()
	res, err := eng.Search(context.Background(), c, domain.ShopContext{})
	require.NoError(t, err)
	return res
}

func TestES_Ping(t *testing.T) {
	eng := newTestEngine(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, eng.Ping(ctx))
}

func TestES_IndexAndSearch(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	d := newTestDocument("Bluetooth Kopfhörer", "Kabellose Kopfhörer mit Geräuschunterdrückung", 99.99)
	require.NoError(t, eng.BulkIndex(ctx, []engine.Document{d}))

	result := search(t, eng, domain.NewSearchCriteria(0, 20).AddCondition(domain.SearchTermCondition("bluetooth")))
	require.Equal(t, 1, result.Total)
	assert.Equal(t, d.BaseProduct(), result.Products[0])
}

func TestES_Delete(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	d := newTestDocument("Löschbarer Artikel", "wird gelöscht", 9.99)
	require.NoError(t, eng.BulkIndex(ctx, []engine.Document{d}))
	ids, err := eng.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{d.ID}, ids)

	require.NoError(t, eng.Delete(ctx, d.ID))

	result := search(t, eng, domain.NewSearchCriteria(0, 20).AddCondition(domain.SearchTermCondition("löschbarer")))
	assert.Equal(t, 0, result.Total)

	assert.NoError(t, eng.Delete(ctx, 999999), "missing documents are not an error")
}

func TestES_BulkIndex_Empty(t *testing.T) {
	eng := newTestEngine(t)
	assert.NoError(t, eng.BulkIndex(context.Background(), []engine.Document{}))
}

func TestES_Filters(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	d1 := newTestDocument("Laufschuh", "leicht", 89)
	d2 := newTestDocument("Wanderschuh", "robust", 149)
	d2.CategoryTokens = []string{"Herren", "Herren_Schuhe", "Schuhe"}
	d2.Properties = []engine.Property{{Name: "width", Value: "5", Number: ptr(5)}}
	require.NoError(t, eng.BulkIndex(ctx, []engine.Document{d1, d2}))

	tests := []struct {
		name string
		cond domain.Condition
		want int64
	}{
		{"category", domain.CategoryCondition("Herren", "Schuhe"), d2.ID},
		{"property", domain.PropertyCondition("vendor", "Acme"), d1.ID},
		{"property range", domain.PropertyRangeCondition("width", ptr(4), nil), d2.ID},
		{"price", domain.PriceCondition(nil, ptr(100)), d1.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := search(t, eng, domain.NewSearchCriteria(0, 0).AddCondition(tt.cond))
			require.Equal(t, 1, result.Total)
			assert.Equal(t, tt.want, result.Products[0].ID)
		})
	}
}

func TestES_SortAndPage(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	cheap := newTestDocument("Socke", "", 5)
	mid := newTestDocument("Mütze", "", 15)
	dear := newTestDocument("Schal", "", 25)
	require.NoError(t, eng.BulkIndex(ctx, []engine.Document{mid, dear, cheap}))

	c := domain.NewSearchCriteria(1, 1).AddSorting(domain.Sorting{Field: domain.SortPrice, Descending: true})
	result := search(t, eng, c)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, []int64{mid.ID}, result.IDs())
}

func TestES_Suggest(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	d := newTestDocument("Winterjacke", "", 129)
	require.NoError(t, eng.BulkIndex(ctx, []engine.Document{d}))

	names, err := eng.Suggest(ctx, "wint", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Winterjacke"}, names)
}

func ptr(v float64) *float64 { return &v }
