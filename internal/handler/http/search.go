package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
	"github.com/utafrali/finsearch/internal/repository"
	"github.com/utafrali/finsearch/internal/service"
	apperrors "github.com/utafrali/finsearch/pkg/errors"
	"github.com/utafrali/finsearch/pkg/httputil"
	"github.com/utafrali/finsearch/pkg/middleware"
	"github.com/utafrali/finsearch/pkg/pagination"
)

// FallbackCookie tells the storefront whether the last search was answered
// by the in-shop search because the provider failed.
const FallbackCookie = "Fallback"

// SearchOptions are the shop-wide settings of the search endpoints.
type SearchOptions struct {
	Flags          domain.Flags
	DefaultShopKey string
}

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	federator  *service.Federator
	reindexer  *service.Reindexer
	suggester  engine.Suggester
	shops      repository.ShopRepository
	groups     repository.CustomerGroupRepository
	opts       SearchOptions
	reindexing atomic.Bool
	logger     *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(
	federator *service.Federator,
	reindexer *service.Reindexer,
	suggester engine.Suggester,
	catalog repository.Catalog,
	opts SearchOptions,
	logger *slog.Logger,
) *SearchHandler {
	return &SearchHandler{
		federator: federator,
		reindexer: reindexer,
		suggester: suggester,
		shops:     catalog.Shops,
		groups:    catalog.CustomerGroups,
		opts:      opts,
		logger:    logger,
	}
}

// --- Request parsing ---

// paramError is a malformed query parameter.
type paramError string

func (e paramError) Error() string { return string(e) }

// sortFields maps the public sort names to engine fields.
var sortFields = map[string]domain.SortField{
	"relevance":    domain.SortRelevance,
	"price":        domain.SortPrice,
	"name":         domain.SortName,
	"release_date": domain.SortReleaseDate,
	"popularity":   domain.SortPopularity,
}

// parseCriteria builds search criteria from the storefront query string:
// q, cat (breadcrumb joined by "_"), attrib[<name>] or attrib[<name>][],
// attrib[<name>][min|max], min_price, max_price, sort, page and per_page.
//
// Every attrib name is registered as a facet of the request.
func parseCriteria(r *http.Request) (*domain.SearchCriteria, error) {
	q := r.URL.Query()
	p := pagination.FromRequest(r)
	criteria := domain.NewSearchCriteria(p.Offset, p.PerPage)

	if term, ok := q["q"]; ok {
		criteria.AddCondition(domain.SearchTermCondition(strings.TrimSpace(term[0])))
	}

	if cat := strings.TrimSpace(q.Get("cat")); cat != "" {
		criteria.AddCondition(domain.CategoryCondition(strings.Split(cat, "_")...))
	}

	lo, err := priceParam(q.Get("min_price"), "min_price")
	if err != nil {
		return nil, err
	}
	hi, err := priceParam(q.Get("max_price"), "max_price")
	if err != nil {
		return nil, err
	}
	if lo != nil && hi != nil && *lo > *hi {
		return nil, paramError("min_price must not exceed max_price")
	}
	if lo != nil || hi != nil {
		criteria.AddCondition(domain.PriceCondition(lo, hi))
	}

	if err := parseAttributes(q, criteria); err != nil {
		return nil, err
	}

	if raw := q.Get("sort"); raw != "" {
		s, err := parseSort(raw)
		if err != nil {
			return nil, err
		}
		criteria.AddSorting(s)
	}

	return criteria, nil
}

func priceParam(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, paramError(name + " must be a valid number")
	}
	if v < 0 {
		return nil, paramError(name + " must not be negative")
	}
	return &v, nil
}

// parseAttributes collects attrib[...] parameters in a stable order: value
// filters first, then ranges, each sorted by name.
func parseAttributes(q map[string][]string, criteria *domain.SearchCriteria) error {
	type bounds struct{ lo, hi *float64 }
	values := map[string][]string{}
	ranges := map[string]*bounds{}

	for key, vals := range q {
		rest, ok := strings.CutPrefix(key, "attrib[")
		if !ok {
			continue
		}
		name, suffix, ok := strings.Cut(rest, "]")
		if !ok || name == "" {
			return paramError(fmt.Sprintf("malformed filter parameter %q", key))
		}

		switch suffix {
		case "", "[]":
			for _, v := range vals {
				if v = strings.TrimSpace(v); v != "" {
					values[name] = append(values[name], v)
				}
			}
		case "[min]", "[max]":
			v, err := strconv.ParseFloat(vals[0], 64)
			if err != nil {
				return paramError(key + " must be a valid number")
			}
			b := ranges[name]
			if b == nil {
				b = &bounds{}
				ranges[name] = b
			}
			if suffix == "[min]" {
				b.lo = &v
			} else {
				b.hi = &v
			}
		default:
			return paramError(fmt.Sprintf("malformed filter parameter %q", key))
		}
	}

	for _, name := range slices.Sorted(maps.Keys(values)) {
		criteria.AddCondition(domain.PropertyCondition(name, values[name]...))
		criteria.AddFacet(domain.FacetRegistration{Name: name, Label: name})
	}
	for _, name := range slices.Sorted(maps.Keys(ranges)) {
		b := ranges[name]
		criteria.AddCondition(domain.PropertyRangeCondition(name, b.lo, b.hi))
		criteria.AddFacet(domain.FacetRegistration{Name: name, Label: name})
	}
	return nil
}

// parseSort reads "<field>", "<field>_asc" or "<field>_desc".
func parseSort(raw string) (domain.Sorting, error) {
	name, desc := raw, false
	if n, ok := strings.CutSuffix(raw, "_desc"); ok {
		name, desc = n, true
	} else if n, ok := strings.CutSuffix(raw, "_asc"); ok {
		name = n
	}

	field, ok := sortFields[name]
	if !ok {
		return domain.Sorting{}, paramError("sort must be one of: relevance, price, name, release_date, popularity (optionally suffixed _asc or _desc)")
	}
	return domain.Sorting{Field: field, Descending: desc}, nil
}

// --- Handlers ---

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		writeInvalidParameter(w, err.Error())
		return
	}

	sc, err := h.shopContext(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	out, err := h.federator.Search(r.Context(), criteria, sc, h.opts.Flags)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	switch out.State {
	case service.StateFallbackOnRedirect:
		http.Redirect(w, r, out.Redirect, http.StatusFound)
		return
	case service.StateFallbackOnError:
		setFallbackCookie(w, true)
	case service.StateSuccess:
		setFallbackCookie(w, false)
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: out.Result})
}

// Reindex handles POST /api/v1/search/reindex
func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	if !h.reindexing.CompareAndSwap(false, true) {
		httputil.WriteError(w, r, apperrors.Conflict("a reindex is already running"), h.logger)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer h.reindexing.Store(false)
		if _, err := h.reindexer.Reindex(ctx); err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", slog.String("error", err.Error()))
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}

// Suggest handles GET /api/v1/search/suggest
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	if prefix == "" {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": []string{}}})
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 20 {
			limit = l
		}
	}

	suggestions, err := h.suggester.Suggest(r.Context(), prefix, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": suggestions}})
}

// shopContext resolves the shop named by the X-Shop-Key header (or the
// default key) and the customer group named by customer_group. Unknown
// groups fall back to the default group.
func (h *SearchHandler) shopContext(r *http.Request) (domain.ShopContext, error) {
	ctx := r.Context()

	key := r.Header.Get(middleware.ShopKeyHeader)
	if key == "" {
		key = h.opts.DefaultShopKey
	}
	if key == "" {
		return domain.ShopContext{}, apperrors.InvalidInput(middleware.ShopKeyHeader + " header is required")
	}

	shop, err := h.shops.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.ShopContext{}, domain.UnknownShopKey(key)
		}
		return domain.ShopContext{}, fmt.Errorf("resolve shop: %w", err)
	}

	groups, err := h.groups.List(ctx)
	if err != nil {
		return domain.ShopContext{}, fmt.Errorf("list customer groups: %w", err)
	}

	return domain.ShopContext{
		Shop:          *shop,
		CustomerGroup: pickGroup(groups, r.URL.Query().Get("customer_group")),
	}, nil
}

func pickGroup(groups []domain.CustomerGroup, key string) domain.CustomerGroup {
	fallback := domain.CustomerGroup{Key: domain.DefaultCustomerGroupKey, TaxInclusive: true}
	for _, g := range groups {
		if key != "" && g.Key == key {
			return g
		}
		if g.Key == domain.DefaultCustomerGroupKey {
			fallback = g
		}
	}
	return fallback
}

func setFallbackCookie(w http.ResponseWriter, fallback bool) {
	v := "0"
	if fallback {
		v = "1"
	}
	http.SetCookie(w, &http.Cookie{Name: FallbackCookie, Value: v, Path: "/", HttpOnly: true})
}

func writeInvalidParameter(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: message},
	})
}
