package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/repository"
	"github.com/utafrali/finsearch/pkg/database"
	apperrors "github.com/utafrali/finsearch/pkg/errors"
	"github.com/utafrali/finsearch/pkg/pagination"
)

var (
	_ repository.ShopRepository          = (*ShopRepository)(nil)
	_ repository.CustomerGroupRepository = (*CustomerGroupRepository)(nil)
	_ repository.CategoryRepository      = (*CategoryRepository)(nil)
	_ repository.ArticleRepository       = (*ArticleRepository)(nil)
)

// --- Helpers ---

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return mock
}

func strPtr(s string) *string        { return &s }
func int64Ptr(n int64) *int64        { return &n }
func timePtr(t time.Time) *time.Time { return &t }

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

var added = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

var articleCols = []string{
	"id", "name", "description", "description_long", "keywords",
	"active", "highlight", "last_stock", "added", "tax_rate", "sales_frequency",
	"supplier_name", "supplier_image", "main_variant_id", "hidden_from_groups",
	"attributes", "images", "properties", "configurator_options",
}

var variantCols = []string{
	"id", "article_id", "number", "ean", "supplier_number", "additional_text",
	"active", "in_stock", "min_purchase", "shipping_free", "shipping_time", "purchase_unit",
	"reference_unit", "pack_unit", "weight", "width", "height", "length", "release_date", "prices",
}

func articleRow(id int64, supplier *string) []any {
	return []any{
		id, "Laufschuh", "<p>leicht</p>", "lang", "laufen, sport",
		true, false, true, added, 19.0, 42,
		supplier, (*string)(nil), id * 10, []string{"H"},
		[]string{"rot", "", "drei"},
		mustJSON([]domain.Image{{Path: "media/image/schuh.jpg", Thumbnails: []string{"media/image/thumbnail/schuh_200x200.jpg"}}}),
		mustJSON([]domain.PropertyValue{{Option: "Farbe", Value: "Rot"}}),
		mustJSON([]domain.ConfiguratorOption{{Group: "Größe", Name: "42"}}),
	}
}

func variantRow(id, articleID int64, number string) []any {
	return []any{
		id, articleID, number, "4000000000001", "SUP-1", "42 / Rot",
		true, 5, 1, false, "2-3 Tage", 1.0,
		1.0, "Paar", 0.8, 10.0, 12.0, 30.0, timePtr(added),
		mustJSON([]domain.Price{{CustomerGroup: "EK", Value: 84.03}}),
	}
}

// --- ShopRepository ---

func TestShopRepository_GetByKey(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewShopRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM shops WHERE shop_key").
		WithArgs("ABCD").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "shop_key", "root_category_id", "base_url", "active"}).
			AddRow(int64(1), "Demo", "ABCD", int64(3), "https://shop.example.com/", true))

	s, err := repo.GetByKey(context.Background(), "ABCD")
	require.NoError(t, err)
	assert.Equal(t, domain.Shop{ID: 1, Name: "Demo", ShopKey: "ABCD", RootCategoryID: 3, BaseURL: "https://shop.example.com/", Active: true}, *s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShopRepository_GetByKey_NotFound(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewShopRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM shops WHERE shop_key").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	s, err := repo.GetByKey(context.Background(), "nope")
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerGroupRepository_List(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewCustomerGroupRepository(mock)

	mock.ExpectQuery("SELECT key, name, tax_inclusive FROM customer_groups").
		WillReturnRows(pgxmock.NewRows([]string{"key", "name", "tax_inclusive"}).
			AddRow("EK", "Shopkunden", true).
			AddRow("H", "Händler", false))

	groups, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.CustomerGroup{
		{Key: "EK", Name: "Shopkunden", TaxInclusive: true},
		{Key: "H", Name: "Händler", TaxInclusive: false},
	}, groups)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- CategoryRepository ---

func TestCategoryRepository_ListAll(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewCategoryRepository(mock)

	criteria := domain.NewSearchCriteria(0, 0).AddCondition(domain.PropertyCondition("vendor", "Nike"))

	mock.ExpectQuery("SELECT .+ FROM categories c LEFT JOIN product_streams").
		WillReturnRows(pgxmock.NewRows([]string{"id", "parent_id", "name", "position", "active", "stream_id", "stream_name", "criteria"}).
			AddRow(int64(3), (*int64)(nil), "Deutsch", 0, true, (*int64)(nil), (*string)(nil), []byte(nil)).
			AddRow(int64(5), int64Ptr(3), "Nike", 1, true, int64Ptr(7), strPtr("Nike Stream"), mustJSON(criteria)))

	cats, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)

	assert.Nil(t, cats[0].Stream)
	assert.Nil(t, cats[0].ParentID)

	require.NotNil(t, cats[1].Stream)
	assert.Equal(t, int64(7), cats[1].Stream.ID)
	assert.Equal(t, "Nike Stream", cats[1].Stream.Name)
	assert.Equal(t, criteria.Conditions, cats[1].Stream.Criteria.Conditions)
	assert.Equal(t, int64(3), *cats[1].ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_ListAll_QueryError(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewCategoryRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM categories").WillReturnError(errors.New("connection reset"))

	_, err := repo.ListAll(context.Background())
	assert.ErrorContains(t, err, "list categories")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// --- ArticleRepository ---

func TestArticleRepository_CountActive(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewArticleRepository(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM articles WHERE active").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_ListActive(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewArticleRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM articles a WHERE a.active ORDER BY a.id OFFSET").
		WithArgs(5, 2).
		WillReturnRows(pgxmock.NewRows(articleCols).
			AddRow(articleRow(1, strPtr("Acme"))...).
			AddRow(articleRow(2, nil)...))
	mock.ExpectQuery("SELECT .+ FROM variants WHERE article_id = ANY").
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows(variantCols).
			AddRow(variantRow(10, 1, "SW-1")...).
			AddRow(variantRow(11, 1, "SW-1.1")...).
			AddRow(variantRow(20, 2, "SW-2")...))
	mock.ExpectQuery("SELECT article_id, category_id FROM article_categories").
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"article_id", "category_id"}).
			AddRow(int64(1), int64(5)).
			AddRow(int64(1), int64(6)).
			AddRow(int64(2), int64(5)))

	articles, err := repo.ListActive(context.Background(), pagination.Window{Offset: 5, Length: 2})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "Laufschuh", a.Name)
	assert.Equal(t, added, a.Added)
	require.NotNil(t, a.Supplier)
	assert.Equal(t, "Acme", a.Supplier.Name)
	assert.Equal(t, []int64{5, 6}, a.CategoryIDs)
	require.Len(t, a.Variants, 2)
	assert.Equal(t, "SW-1", a.Variants[0].Number)
	assert.Equal(t, []domain.Price{{CustomerGroup: "EK", Value: 84.03}}, a.Variants[0].Prices)
	assert.Equal(t, "rot", a.Attributes[0])
	assert.Equal(t, "drei", a.Attributes[2])
	assert.Equal(t, []string{"H"}, a.HiddenFromGroups)
	assert.Equal(t, "Farbe", a.Properties[0].Option)
	assert.Equal(t, "Größe", a.ConfiguratorOptions[0].Group)
	assert.Len(t, a.Images, 1)

	assert.Nil(t, articles[1].Supplier)
	assert.Len(t, articles[1].Variants, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_ListActive_UnboundedEmpty(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewArticleRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM articles a WHERE a.active").
		WithArgs(0, nil).
		WillReturnRows(pgxmock.NewRows(articleCols))

	articles, err := repo.ListActive(context.Background(), pagination.Window{})
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_ListInCategory(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewArticleRepository(mock)

	mock.ExpectQuery("WITH RECURSIVE tree AS .+ FROM articles a WHERE EXISTS").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(articleCols).AddRow(articleRow(1, nil)...))
	mock.ExpectQuery("FROM variants").
		WithArgs([]int64{1}).
		WillReturnRows(pgxmock.NewRows(variantCols))
	mock.ExpectQuery("FROM article_categories").
		WithArgs([]int64{1}).
		WillReturnRows(pgxmock.NewRows([]string{"article_id", "category_id"}))

	articles, err := repo.ListInCategory(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Empty(t, articles[0].Variants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticleRepository_LookupBaseProducts(t *testing.T) {
	mock := newMock(t)
	defer mock.Close()
	repo := NewArticleRepository(mock)

	mock.ExpectQuery("SELECT a.id, v.id, v.number FROM articles a JOIN variants v").
		WithArgs([]int64{1, 99}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "variant_id", "number"}).
			AddRow(int64(1), int64(10), "SW-1"))

	got, err := repo.LookupBaseProducts(context.Background(), []int64{1, 99})
	require.NoError(t, err)
	assert.Equal(t, map[int64]domain.BaseProduct{1: {ID: 1, VariantID: 10, Number: "SW-1"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())

	empty, err := repo.LookupBaseProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
