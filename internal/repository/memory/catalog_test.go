package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/repository"
	apperrors "github.com/utafrali/finsearch/pkg/errors"
	"github.com/utafrali/finsearch/pkg/pagination"
)

var (
	_ repository.ShopRepository          = (*Catalog)(nil)
	_ repository.CustomerGroupRepository = (*Catalog)(nil)
	_ repository.CategoryRepository      = (*Catalog)(nil)
	_ repository.ArticleRepository       = (*Catalog)(nil)
)

func parent(id int64) *int64 { return &id }

func seeded() *Catalog {
	c := NewCatalog()
	c.AddShop(domain.Shop{ID: 1, ShopKey: "ABCD", RootCategoryID: 3})
	c.AddCategory(domain.Category{ID: 3, Name: "Deutsch", Active: true})
	c.AddCategory(domain.Category{ID: 5, ParentID: parent(3), Name: "Schuhe", Active: true})
	c.AddCategory(domain.Category{ID: 9, Name: "English", Active: true})
	c.AddArticle(domain.Article{ID: 2, Name: "B", Active: true, CategoryIDs: []int64{5}, MainVariantID: 20,
		Variants: []domain.Variant{{ID: 20, Number: "SW-2", Active: true}}})
	c.AddArticle(domain.Article{ID: 1, Name: "A", Active: true, CategoryIDs: []int64{9}, MainVariantID: 10,
		Variants: []domain.Variant{{ID: 10, Number: "SW-1", Active: true}}})
	c.AddArticle(domain.Article{ID: 3, Name: "C", Active: false, CategoryIDs: []int64{3}, MainVariantID: 30,
		Variants: []domain.Variant{{ID: 30, Number: "SW-3", Active: true}}})
	return c
}

func ids(articles []domain.Article) []int64 {
	out := make([]int64, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID)
	}
	return out
}

func TestCatalog_GetByKey(t *testing.T) {
	c := seeded()

	s, err := c.GetByKey(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.RootCategoryID)

	_, err = c.GetByKey(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCatalog_Articles(t *testing.T) {
	c := seeded()
	ctx := context.Background()

	n, err := c.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	page, err := c.ListActive(ctx, pagination.Window{Offset: 1, Length: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(page))

	all, err := c.ListActive(ctx, pagination.Window{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(all))

	inShop, err := c.ListInCategory(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, ids(inShop), "includes inactive articles and descendants")
}

func TestCatalog_LookupBaseProducts(t *testing.T) {
	c := seeded()

	got, err := c.LookupBaseProducts(context.Background(), []int64{1, 3, 42})
	require.NoError(t, err)
	assert.Equal(t, map[int64]domain.BaseProduct{
		1: {ID: 1, VariantID: 10, Number: "SW-1"},
	}, got)
}

func TestCatalog_Load(t *testing.T) {
	seed := `{
		"shops": [{"id": 1, "shop_key": "ABCD", "root_category_id": 3, "base_url": "https://shop.example.com/", "active": true}],
		"customer_groups": [{"key": "EK", "name": "Shopkunden", "tax_inclusive": true}],
		"categories": [{"id": 3, "name": "Deutsch", "active": true}],
		"articles": [{"id": 1, "name": "A", "active": true, "category_ids": [3], "main_variant_id": 10,
			"variants": [{"id": 10, "number": "SW-1", "active": true, "prices": [{"customer_group": "EK", "value": 9.99}]}]}]
	}`

	c := NewCatalog()
	require.NoError(t, c.Load(strings.NewReader(seed)))

	groups, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.CustomerGroup{{Key: "EK", Name: "Shopkunden", TaxInclusive: true}}, groups)

	n, err := c.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Error(t, NewCatalog().Load(strings.NewReader("{")))
}
