package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
	"github.com/utafrali/finsearch/internal/repository"
	"github.com/utafrali/finsearch/pkg/pagination"
)

// DefaultReindexBatchSize is how many articles are indexed per bulk request.
const DefaultReindexBatchSize = 500

// CacheInvalidator drops cached product stream resolutions.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Reindexer copies the active catalog into the in-shop search engine.
type Reindexer struct {
	articles   repository.ArticleRepository
	categories repository.CategoryRepository
	engine     engine.SearchEngine
	cache      CacheInvalidator
	batchSize  int
	logger     *slog.Logger
}

// NewReindexer creates a Reindexer. cache may be nil.
func NewReindexer(articles repository.ArticleRepository, categories repository.CategoryRepository, eng engine.SearchEngine, cache CacheInvalidator, logger *slog.Logger) *Reindexer {
	return &Reindexer{
		articles:   articles,
		categories: categories,
		engine:     eng,
		cache:      cache,
		batchSize:  DefaultReindexBatchSize,
		logger:     logger,
	}
}

// Reindex indexes every active article, deletes documents of articles that
// are no longer active and returns how many were indexed. Product streams
// are evaluated against the index, so cached resolutions are dropped
// afterwards.
func (r *Reindexer) Reindex(ctx context.Context) (int, error) {
	start := time.Now()

	cats, err := r.categories.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: list categories: %w", err)
	}
	tree := domain.NewCategoryTree(cats)

	indexed := 0
	seen := make(map[int64]struct{})
	for offset := 0; ; offset += r.batchSize {
		articles, err := r.articles.ListActive(ctx, pagination.Window{Offset: offset, Length: r.batchSize})
		if err != nil {
			return indexed, fmt.Errorf("reindex: list articles at %d: %w", offset, err)
		}
		if len(articles) == 0 {
			break
		}

		docs := make([]engine.Document, 0, len(articles))
		for i := range articles {
			docs = append(docs, engine.NewDocument(&articles[i], tree))
			seen[articles[i].ID] = struct{}{}
		}
		if err := r.engine.BulkIndex(ctx, docs); err != nil {
			return indexed, fmt.Errorf("reindex: bulk index at %d: %w", offset, err)
		}
		indexed += len(docs)

		if len(articles) < r.batchSize {
			break
		}
	}

	removed, err := r.deleteStale(ctx, seen)
	if err != nil {
		return indexed, err
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			return indexed, fmt.Errorf("reindex: %w", err)
		}
	}

	r.logger.InfoContext(ctx, "reindex completed",
		slog.Int("count", indexed),
		slog.Int("removed", removed),
		slog.Duration("took", time.Since(start)),
	)
	return indexed, nil
}

// deleteStale removes every indexed document whose article was not indexed
// by this run.
func (r *Reindexer) deleteStale(ctx context.Context, seen map[int64]struct{}) (int, error) {
	ids, err := r.engine.IDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: list indexed ids: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		if err := r.engine.Delete(ctx, id); err != nil {
			return removed, fmt.Errorf("reindex: delete %d: %w", id, err)
		}
		removed++
	}
	return removed, nil
}
