package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/finsearch/internal/cache"
	"github.com/utafrali/finsearch/internal/domain"
	enginememory "github.com/utafrali/finsearch/internal/engine/memory"
	"github.com/utafrali/finsearch/internal/export"
	"github.com/utafrali/finsearch/internal/repository"
	"github.com/utafrali/finsearch/internal/repository/memory"
	"github.com/utafrali/finsearch/internal/service"
	"github.com/utafrali/finsearch/internal/streams"
	"github.com/utafrali/finsearch/pkg/health"
)

const (
	testShopKey    = "ABCD0815"
	testAdminToken = "s3cret"
)

var providerOn = domain.Flags{Enabled: true}

// response mirrors httputil.Response with raw data for per-test decoding.
type response struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

// stubProvider returns a canned provider answer.
type stubProvider struct {
	resp  *domain.ProviderResponse
	err   error
	calls int
}

func (p *stubProvider) Search(_ context.Context, _ *domain.SearchCriteria, _ domain.ShopContext) (*domain.ProviderResponse, error) {
	p.calls++
	return p.resp, p.err
}

type testEnv struct {
	router   http.Handler
	provider *stubProvider
	catalog  *memory.Catalog
	engine   *enginememory.Engine
}

type envOption func(*RouterConfig, *SearchOptions)

func withExportAllowlist(cidrs ...string) envOption {
	return func(rc *RouterConfig, _ *SearchOptions) { rc.ExportAllowedCIDRs = cidrs }
}

func withFlags(f domain.Flags) envOption {
	return func(_ *RouterConfig, so *SearchOptions) { so.Flags = f }
}

func testArticle(id int64, name string) domain.Article {
	return domain.Article{
		ID:            id,
		Name:          name,
		Active:        true,
		Added:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TaxRate:       19,
		CategoryIDs:   []int64{5},
		MainVariantID: id * 10,
		Variants: []domain.Variant{{
			ID:      id * 10,
			Number:  "SW1000" + string(rune('0'+id)),
			Active:  true,
			InStock: 5,
			Prices:  []domain.Price{{CustomerGroup: "EK", Value: 10}},
		}},
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	root, shopRoot := int64(1), int64(3)
	c := memory.NewCatalog()
	c.AddShop(domain.Shop{ID: 1, Name: "Demo", ShopKey: testShopKey, RootCategoryID: 3, BaseURL: "https://shop.example", Active: true})
	c.AddCustomerGroup(domain.CustomerGroup{Key: "EK", Name: "Shopkunden", TaxInclusive: true})
	c.AddCategory(domain.Category{ID: 1, Name: "Root", Active: true})
	c.AddCategory(domain.Category{ID: 3, ParentID: &root, Name: "Deutsch", Active: true})
	c.AddCategory(domain.Category{ID: 5, ParentID: &shopRoot, Name: "Genusswelten", Active: true})
	c.AddArticle(testArticle(1, "Sommer Shirt"))
	c.AddArticle(testArticle(2, "Winter Shirt"))

	eng := enginememory.New()
	_, err := service.NewReindexer(c, c, eng, nil, logger).Reindex(context.Background())
	require.NoError(t, err)

	catalog := repository.Catalog{Shops: c, CustomerGroups: c, Categories: c, Articles: c}
	provider := &stubProvider{resp: &domain.ProviderResponse{}}
	federator := service.NewFederator(provider, eng, c, service.DuplicateOverwrite, logger)
	membership := cache.New(cache.NewMemoryStore(), streams.NewResolver(eng, 0, logger), cache.DefaultConfig(), logger)

	rc := RouterConfig{
		Health:     health.NewHandler(),
		AdminToken: testAdminToken,
	}
	so := SearchOptions{Flags: providerOn, DefaultShopKey: testShopKey}
	for _, o := range opts {
		o(&rc, &so)
	}

	reindexer := service.NewReindexer(c, c, eng, membership, logger)
	rc.Search = NewSearchHandler(federator, reindexer, eng, catalog, so, logger)
	rc.Export = NewExportHandler(export.NewOrchestrator(catalog, membership, export.Config{}, logger), logger)

	return &testEnv{
		router:   NewRouter(rc, logger),
		provider: provider,
		catalog:  c,
		engine:   eng,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func fallbackCookie(w *httptest.ResponseRecorder) (string, bool) {
	for _, c := range w.Result().Cookies() {
		if c.Name == FallbackCookie {
			return c.Value, true
		}
	}
	return "", false
}

type searchData struct {
	Products []domain.BaseProduct `json:"products"`
	Total    int                  `json:"total"`
}

// --- Search ---

func TestSearch_ProviderAnswers(t *testing.T) {
	env := newTestEnv(t)
	env.provider.resp = &domain.ProviderResponse{TotalCount: 7, ProductIDs: []string{"2", "1"}}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt", nil))

	require.Equal(t, http.StatusOK, w.Code)
	v, ok := fallbackCookie(w)
	require.True(t, ok)
	assert.Equal(t, "0", v)

	var data searchData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, 7, data.Total)
	require.Len(t, data.Products, 2)
	assert.Equal(t, int64(2), data.Products[0].ID)
	assert.Equal(t, int64(1), data.Products[1].ID)
}

func TestSearch_FallbackOnProviderError(t *testing.T) {
	env := newTestEnv(t)
	env.provider.err = errors.New("connection refused")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=sommer", nil))

	require.Equal(t, http.StatusOK, w.Code)
	v, ok := fallbackCookie(w)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	var data searchData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, 1, data.Total)
	assert.Equal(t, int64(1), data.Products[0].ID)
}

func TestSearch_Redirect(t *testing.T) {
	env := newTestEnv(t)
	env.provider.resp = &domain.ProviderResponse{RedirectTarget: "https://shop.example/landing"}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=sale", nil))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://shop.example/landing", w.Header().Get("Location"))
}

func TestSearch_BypassedWhenDisabled(t *testing.T) {
	env := newTestEnv(t, withFlags(domain.Flags{}))

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.provider.calls)
	_, ok := fallbackCookie(w)
	assert.False(t, ok)

	var data searchData
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, 2, data.Total)
}

func TestSearch_UnknownShopKey(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt", nil)
	req.Header.Set("X-Shop-Key", "NOPE")
	w := env.do(req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_SHOP_KEY", resp.Error.Code)
	assert.Equal(t, 0, env.provider.calls)
}

func TestSearch_InvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"non-numeric min_price", "min_price=abc"},
		{"negative max_price", "max_price=-1"},
		{"min above max", "min_price=10&max_price=5"},
		{"unknown sort", "sort=color"},
		{"unknown sort direction", "sort=price_up"},
		{"malformed attrib", "attrib[color=red"},
		{"non-numeric range", "attrib[weight][min]=heavy"},
		{"unknown attrib suffix", "attrib[weight][avg]=1"},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt&"+tt.query, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "INVALID_PARAMETER", resp.Error.Code)
		})
	}
	assert.Equal(t, 0, env.provider.calls)
}

func TestSearch_NoStore(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=shirt", nil))

	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestParseCriteria(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/search?q=+shirt+&cat=Deutsch_Genusswelten&attrib[color][]=red&attrib[color][]=blue"+
			"&attrib[weight][min]=1.5&attrib[weight][max]=3&min_price=5&sort=price_desc&page=3&per_page=10", nil)

	criteria, err := parseCriteria(req)
	require.NoError(t, err)

	assert.Equal(t, 20, criteria.Offset)
	assert.Equal(t, 10, criteria.Limit)

	term, ok := criteria.SearchTerm()
	require.True(t, ok)
	assert.Equal(t, "shirt", term)

	cats := criteria.ConditionsOf(domain.ConditionCategory)
	require.Len(t, cats, 1)
	assert.Equal(t, []string{"Deutsch", "Genusswelten"}, cats[0].Values)

	price := criteria.ConditionsOf(domain.ConditionPrice)
	require.Len(t, price, 1)
	require.NotNil(t, price[0].Min)
	assert.Equal(t, 5.0, *price[0].Min)
	assert.Nil(t, price[0].Max)

	props := criteria.ConditionsOf(domain.ConditionProperty)
	require.Len(t, props, 2)
	assert.Equal(t, "color", props[0].Name)
	assert.ElementsMatch(t, []string{"red", "blue"}, props[0].Values)
	assert.Equal(t, "weight", props[1].Name)
	require.True(t, props[1].Ranged())
	assert.Equal(t, 1.5, *props[1].Min)
	assert.Equal(t, 3.0, *props[1].Max)

	_, registered := criteria.Facet("color")
	assert.True(t, registered)
	_, registered = criteria.Facet("weight")
	assert.True(t, registered)

	assert.Equal(t, []domain.Sorting{{Field: domain.SortPrice, Descending: true}}, criteria.Sortings)
}

func TestParseCriteria_CategoryBrowse(t *testing.T) {
	criteria, err := parseCriteria(httptest.NewRequest(http.MethodGet, "/api/v1/search?cat=Deutsch", nil))
	require.NoError(t, err)

	assert.False(t, criteria.IsSearch())
	assert.Equal(t, 0, criteria.Offset)
	assert.Equal(t, 24, criteria.Limit)
	assert.Empty(t, criteria.Sortings)
}

func TestPickGroup(t *testing.T) {
	groups := []domain.CustomerGroup{
		{Key: "H", Name: "Händler"},
		{Key: "EK", Name: "Shopkunden", TaxInclusive: true},
	}

	assert.Equal(t, "H", pickGroup(groups, "H").Key)
	assert.Equal(t, "EK", pickGroup(groups, "").Key)
	assert.Equal(t, "EK", pickGroup(groups, "B2B").Key)
	assert.Equal(t, "EK", pickGroup(nil, "H").Key)
}

// --- Suggest ---

func TestSuggest(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search/suggest?q=som", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Suggestions []string `json:"suggestions"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
	assert.Equal(t, []string{"Sommer Shirt"}, data.Suggestions)
}

func TestSuggest_Cacheable(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search/suggest?q=win", nil))
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
}

func TestSuggest_EmptyPrefix(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/search/suggest?q=+", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"suggestions":[]}}`, w.Body.String())
}

// --- Reindex ---

func TestReindex_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/search/reindex", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/reindex", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)
}

func TestReindex_IndexesInBackground(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.AddArticle(testArticle(3, "Herbst Jacke"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/reindex", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	w := env.do(req)
	require.Equal(t, http.StatusAccepted, w.Code)

	assert.Eventually(t, func() bool {
		res, err := env.engine.Search(context.Background(),
			domain.NewSearchCriteria(0, 0).AddCondition(domain.SearchTermCondition("jacke")), domain.ShopContext{})
		return err == nil && res.Total == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// --- Export feed ---

func TestFeed_Page(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/findologic?shopkey="+testShopKey+"&start=1&count=1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	body := w.Body.String()
	assert.Contains(t, body, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, body, `<items start="1" count="1" total="2">`)
	assert.Contains(t, body, `<item id="2">`)
	assert.NotContains(t, body, `<item id="1">`)
}

func TestFeed_WholeCatalog(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/findologic?shopkey="+testShopKey, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<items start="0" count="2" total="2">`)
}

func TestFeed_UnknownShopKey(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/findologic?shopkey=FFFF0000", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_SHOP_KEY", resp.Error.Code)
}

func TestFeed_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
		code  string
	}{
		{"missing shop key", "", "VALIDATION_ERROR"},
		{"shop key with symbols", "shopkey=AB%3BCD", "VALIDATION_ERROR"},
		{"negative start", "shopkey=" + testShopKey + "&start=-1", "INVALID_PARAMETER"},
		{"non-numeric count", "shopkey=" + testShopKey + "&count=all", "INVALID_PARAMETER"},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(httptest.NewRequest(http.MethodGet, "/findologic?"+tt.query, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestFeed_Allowlist(t *testing.T) {
	env := newTestEnv(t, withExportAllowlist("10.0.0.0/8"))

	req := httptest.NewRequest(http.MethodGet, "/findologic?shopkey="+testShopKey, nil)
	req.RemoteAddr = "192.0.2.10:4711"
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/findologic?shopkey="+testShopKey, nil)
	req.RemoteAddr = "10.1.2.3:4711"
	assert.Equal(t, http.StatusOK, env.do(req).Code)
}

// --- Operational ---

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health/live", nil)).Code)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)).Code)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}
