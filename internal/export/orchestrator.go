// Package export builds the paginated catalog feed the search provider
// indexes.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/repository"
	apperrors "github.com/utafrali/finsearch/pkg/errors"
	"github.com/utafrali/finsearch/pkg/pagination"
	"github.com/utafrali/finsearch/pkg/tracing"
)

const tracerName = "github.com/utafrali/finsearch/internal/export"

var (
	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsearch_export_items_total",
			Help: "Catalog articles considered for the export feed, by outcome.",
		},
		[]string{"outcome"},
	)

	pageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finsearch_export_page_duration_seconds",
			Help:    "Time to assemble one export page.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// MembershipSource provides the product stream membership of a shop.
type MembershipSource interface {
	GetOrResolve(ctx context.Context, shopKey string, roots []*domain.Category, sc domain.ShopContext) (domain.StreamMembership, error)
	Refresh(ctx context.Context, shopKey string, roots []*domain.Category, sc domain.ShopContext) (domain.StreamMembership, error)
}

// Config tunes the orchestrator.
type Config struct {
	// RefreshOnFirstPage re-resolves product streams whenever a run starts
	// at offset zero.
	RefreshOnFirstPage bool
	Item               ItemConfig
}

// Orchestrator produces export pages.
type Orchestrator struct {
	catalog repository.Catalog
	streams MembershipSource
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(catalog repository.Catalog, streams MembershipSource, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Item.MarkAsNewDays == 0 {
		cfg.Item.MarkAsNewDays = DefaultMarkAsNewDays
	}
	return &Orchestrator{
		catalog: catalog,
		streams: streams,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// ExportPage builds the page w of the feed of shopKey.
//
// With a bounded window the page is cut from the active articles. An
// unbounded window exports every article below the shop root from w.Offset
// on. Total is always the number of active articles.
func (o *Orchestrator) ExportPage(ctx context.Context, shopKey string, w pagination.Window) (_ *domain.ExportBatch, err error) {
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "export.page")
	defer func() { tracing.End(span, err) }()
	span.SetAttributes(
		attribute.String("finsearch.shop_key", shopKey),
		attribute.Int("finsearch.start", w.Offset),
		attribute.Int("finsearch.count", w.Length),
	)

	start := time.Now()
	defer func() { pageDuration.Observe(time.Since(start).Seconds()) }()

	shop, err := o.catalog.Shops.GetByKey(ctx, shopKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.UnknownShopKey(shopKey)
		}
		return nil, fmt.Errorf("load shop %s: %w", shopKey, err)
	}

	groups, err := o.catalog.CustomerGroups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customer groups: %w", err)
	}

	cats, err := o.catalog.Categories.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	tree := domain.NewCategoryTree(cats)

	membership, err := o.membership(ctx, *shop, groups, tree, w)
	if err != nil {
		return nil, err
	}

	total, err := o.catalog.Articles.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active articles: %w", err)
	}

	articles, err := o.articles(ctx, *shop, w)
	if err != nil {
		return nil, err
	}

	builder := NewItemBuilder(*shop, groups, tree, membership, o.cfg.Item, o.now())
	batch := &domain.ExportBatch{Items: []domain.ExportItem{}, Total: total, Offset: w.Offset}

	for i := range articles {
		a := &articles[i]
		if reason := skipReason(a, tree, shop.RootCategoryID); reason != "" {
			itemsTotal.WithLabelValues("skipped").Inc()
			o.logger.DebugContext(ctx, "article skipped",
				slog.Int64("article_id", a.ID),
				slog.String("reason", reason),
			)
			continue
		}

		item, ok := builder.Build(a)
		if !ok {
			itemsTotal.WithLabelValues("out_of_stock").Inc()
			continue
		}

		if !membership.Has(a.ID) {
			o.logger.WarnContext(ctx, "product is not part of any product stream",
				slog.Int64("article_id", a.ID),
				slog.String("shop_key", shopKey),
			)
		}

		itemsTotal.WithLabelValues("exported").Inc()
		batch.Items = append(batch.Items, item)
	}

	batch.Count = len(batch.Items)
	span.SetAttributes(attribute.Int("finsearch.exported", batch.Count))
	return batch, nil
}

// membership loads the stream membership below the shop root. The first
// page of a run re-resolves when RefreshOnFirstPage is set.
func (o *Orchestrator) membership(ctx context.Context, shop domain.Shop, groups []domain.CustomerGroup, tree *domain.CategoryTree, w pagination.Window) (domain.StreamMembership, error) {
	roots := tree.Children(shop.RootCategoryID)
	sc := domain.ShopContext{Shop: shop, CustomerGroup: defaultGroup(groups)}

	if o.cfg.RefreshOnFirstPage && w.Offset == 0 {
		m, err := o.streams.Refresh(ctx, shop.ShopKey, roots, sc)
		if err != nil {
			return nil, fmt.Errorf("warm up product streams: %w", err)
		}
		for pid, cats := range m {
			o.logger.DebugContext(ctx, "product stream membership",
				slog.Int64("article_id", pid),
				slog.Any("category_ids", cats),
			)
		}
		return m, nil
	}

	m, err := o.streams.GetOrResolve(ctx, shop.ShopKey, roots, sc)
	if err != nil {
		return nil, fmt.Errorf("load product streams: %w", err)
	}
	return m, nil
}

func (o *Orchestrator) articles(ctx context.Context, shop domain.Shop, w pagination.Window) ([]domain.Article, error) {
	if !w.Unbounded() {
		articles, err := o.catalog.Articles.ListActive(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("list active articles: %w", err)
		}
		return articles, nil
	}

	articles, err := o.catalog.Articles.ListInCategory(ctx, shop.RootCategoryID)
	if err != nil {
		return nil, fmt.Errorf("list articles of category %d: %w", shop.RootCategoryID, err)
	}
	lo, hi := w.Apply(len(articles))
	return articles[lo:hi], nil
}

// skipReason explains why a is not exported, or returns "".
func skipReason(a *domain.Article, tree *domain.CategoryTree, root int64) string {
	if !a.Active {
		return "inactive"
	}
	if strings.TrimSpace(a.Name) == "" {
		return "no name"
	}

	var below, inactive int
	for _, id := range a.CategoryIDs {
		if !tree.IsChildOf(id, root) {
			continue
		}
		below++
		if c, ok := tree.Get(id); ok && !c.Active {
			inactive++
		}
	}
	if below == inactive {
		return "no active category"
	}

	main, ok := a.MainVariant()
	if !ok {
		return "no main variant"
	}
	if !main.Active {
		return "main variant inactive"
	}
	return ""
}

func defaultGroup(groups []domain.CustomerGroup) domain.CustomerGroup {
	for _, g := range groups {
		if g.Key == domain.DefaultCustomerGroupKey {
			return g
		}
	}
	return domain.CustomerGroup{Key: domain.DefaultCustomerGroupKey}
}
