// Package service holds the storefront search federation and the catalog
// reindex workflows.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
	"github.com/utafrali/finsearch/internal/findologic"
	"github.com/utafrali/finsearch/pkg/tracing"
)

const tracerName = "github.com/utafrali/finsearch/internal/service"

var federationTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finsearch_federation_outcomes_total",
		Help: "Storefront searches by federation outcome.",
	},
	[]string{"state"},
)

// State is how a federated search was answered.
type State string

const (
	// StateBypassed means the provider was not asked; the in-shop search answered.
	StateBypassed State = "bypassed"
	// StateSuccess means the provider answered.
	StateSuccess State = "success"
	// StateFallbackOnError means the provider failed and the in-shop search answered.
	StateFallbackOnError State = "fallback_error"
	// StateFallbackOnRedirect means the provider asked for a landing page.
	StateFallbackOnRedirect State = "fallback_redirect"
)

// DuplicateNumberPolicy decides which provider row wins when two rows
// resolve to the same order number.
type DuplicateNumberPolicy string

const (
	// DuplicateOverwrite keeps the later row in the position of the earlier one.
	DuplicateOverwrite DuplicateNumberPolicy = "overwrite"
	// DuplicateKeepFirst ignores later rows.
	DuplicateKeepFirst DuplicateNumberPolicy = "keep_first"
)

// ParseDuplicateNumberPolicy validates a policy name.
func ParseDuplicateNumberPolicy(s string) (DuplicateNumberPolicy, error) {
	switch p := DuplicateNumberPolicy(s); p {
	case DuplicateOverwrite, DuplicateKeepFirst:
		return p, nil
	case "":
		return DuplicateOverwrite, nil
	default:
		return "", fmt.Errorf("unknown duplicate number policy %q", s)
	}
}

// Provider is the external search service.
type Provider interface {
	Search(ctx context.Context, criteria *domain.SearchCriteria, sc domain.ShopContext) (*domain.ProviderResponse, error)
}

// ProductLookup resolves provider product ids to catalog products.
type ProductLookup interface {
	LookupBaseProducts(ctx context.Context, ids []int64) (map[int64]domain.BaseProduct, error)
}

// Outcome is the answer of a federated search. Result is nil when the
// provider asked for a redirect.
type Outcome struct {
	State    State
	Result   *domain.SearchResult
	Redirect string
}

// Fallback reports whether the in-shop search had to stand in for the provider.
func (o *Outcome) Fallback() bool {
	return o.State == StateFallbackOnError
}

// Federator routes storefront searches to the provider and falls back to
// the in-shop search when the provider is off or failing.
type Federator struct {
	provider Provider
	original engine.Searcher
	lookup   ProductLookup
	policy   DuplicateNumberPolicy
	logger   *slog.Logger
}

// NewFederator creates a Federator.
func NewFederator(provider Provider, original engine.Searcher, lookup ProductLookup, policy DuplicateNumberPolicy, logger *slog.Logger) *Federator {
	if policy == "" {
		policy = DuplicateOverwrite
	}
	return &Federator{
		provider: provider,
		original: original,
		lookup:   lookup,
		policy:   policy,
		logger:   logger,
	}
}

// Search answers criteria for sc. Provider failures never surface as
// errors; only a failing in-shop search does.
func (f *Federator) Search(ctx context.Context, criteria *domain.SearchCriteria, sc domain.ShopContext, flags domain.Flags) (_ *Outcome, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "federator.search")
	defer func() { tracing.End(span, err) }()

	out, err := f.search(ctx, criteria, sc, flags)
	if err != nil {
		return nil, err
	}

	federationTotal.WithLabelValues(string(out.State)).Inc()
	span.SetAttributes(attribute.String("finsearch.federation_state", string(out.State)))
	return out, nil
}

func (f *Federator) search(ctx context.Context, criteria *domain.SearchCriteria, sc domain.ShopContext, flags domain.Flags) (*Outcome, error) {
	if bypass(criteria, flags) {
		return f.fallback(ctx, criteria, sc, StateBypassed)
	}

	resp, err := f.provider.Search(ctx, criteria, sc)
	if err != nil {
		f.logger.WarnContext(ctx, "search provider failed, using in-shop search",
			slog.String("shop_key", sc.Shop.ShopKey),
			slog.String("error", err.Error()),
		)
		return f.fallback(ctx, criteria, sc, StateFallbackOnError)
	}

	if resp.HasRedirect() {
		criteria.ResetFacets()
		return &Outcome{State: StateFallbackOnRedirect, Redirect: resp.RedirectTarget}, nil
	}

	products, err := f.resolve(ctx, resp.ProductIDs)
	if err != nil {
		f.logger.ErrorContext(ctx, "resolving provider products failed, using in-shop search",
			slog.String("error", err.Error()),
		)
		return f.fallback(ctx, criteria, sc, StateFallbackOnError)
	}

	facets := mergeSelectedFacets(criteria, findologic.TranslateFacets(resp.Filters))
	criteria.ResetFacets()

	return &Outcome{
		State: StateSuccess,
		Result: &domain.SearchResult{
			Products: products,
			Total:    resp.TotalCount,
			Facets:   facets,
		},
	}, nil
}

// bypass reports whether the provider must not be asked at all.
func bypass(criteria *domain.SearchCriteria, flags domain.Flags) bool {
	return flags.DirectIntegration ||
		!flags.Enabled ||
		(!flags.CategoryPages && !criteria.IsSearch())
}

func (f *Federator) fallback(ctx context.Context, criteria *domain.SearchCriteria, sc domain.ShopContext, state State) (*Outcome, error) {
	criteria.ResetFacets()
	res, err := f.original.Search(ctx, criteria, sc)
	if err != nil {
		return nil, fmt.Errorf("in-shop search: %w", err)
	}
	return &Outcome{State: state, Result: res}, nil
}

// resolve maps provider rows to catalog products in provider order. Rows
// without a catalog match are dropped. Rows sharing an order number are
// collapsed according to the duplicate policy.
func (f *Federator) resolve(ctx context.Context, rows []string) ([]domain.BaseProduct, error) {
	ids := make([]int64, 0, len(rows))
	for _, raw := range rows {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			f.logUnresolved(ctx, raw)
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []domain.BaseProduct{}, nil
	}

	found, err := f.lookup.LookupBaseProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	products := make([]domain.BaseProduct, 0, len(ids))
	byNumber := make(map[string]int, len(ids))
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			f.logUnresolved(ctx, strconv.FormatInt(id, 10))
			continue
		}
		if i, dup := byNumber[p.Number]; dup {
			f.logger.DebugContext(ctx, "duplicate order number from provider",
				slog.String("number", p.Number),
				slog.String("policy", string(f.policy)),
			)
			if f.policy == DuplicateOverwrite {
				products[i] = p
			}
			continue
		}
		byNumber[p.Number] = len(products)
		products = append(products, p)
	}
	return products, nil
}

func (f *Federator) logUnresolved(ctx context.Context, id string) {
	f.logger.WarnContext(ctx, "dropping provider product",
		slog.String("product_id", id),
		slog.String("error", domain.ErrUnresolvedProduct.Error()),
	)
}

// mergeSelectedFacets appends a selected-only facet for every registered
// property filter the provider did not report back.
func mergeSelectedFacets(criteria *domain.SearchCriteria, facets []domain.Facet) []domain.Facet {
	for _, f := range facets {
		criteria.AddFacet(domain.FacetRegistration{Name: f.FacetName()})
	}

	for _, cond := range criteria.ConditionsOf(domain.ConditionProperty) {
		reg, ok := criteria.Facet(cond.Name)
		if !ok || domain.HasFacet(facets, reg.Name) {
			continue
		}
		selected := findologic.SelectedFacet(reg, cond.Values)
		if len(selected.Items) == 0 {
			continue
		}
		facets = append(facets, selected)
	}
	return facets
}
