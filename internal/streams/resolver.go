// Package streams resolves category-bound product streams into product
// memberships.
package streams

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
)

// DefaultPageSize is the number of products fetched per stream query.
const DefaultPageSize = 200

// Resolver walks a category tree and collects, for every product, the
// categories whose product stream contains it.
type Resolver struct {
	searcher engine.Searcher
	pageSize int
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A non-positive pageSize selects
// DefaultPageSize.
func NewResolver(searcher engine.Searcher, pageSize int, logger *slog.Logger) *Resolver {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Resolver{searcher: searcher, pageSize: pageSize, logger: logger}
}

// Resolve returns the stream membership of every product below roots.
// Children are resolved before their parent; the result does not depend on
// the order.
func (r *Resolver) Resolve(ctx context.Context, roots []*domain.Category, sc domain.ShopContext) (domain.StreamMembership, error) {
	out := domain.StreamMembership{}
	for _, c := range roots {
		m, err := r.resolveNode(ctx, c, sc, map[int64]bool{})
		if err != nil {
			return nil, err
		}
		out = out.Merge(m)
	}
	return out, nil
}

func (r *Resolver) resolveNode(ctx context.Context, c *domain.Category, sc domain.ShopContext, visiting map[int64]bool) (domain.StreamMembership, error) {
	if visiting[c.ID] {
		return domain.StreamMembership{}, nil
	}
	visiting[c.ID] = true
	defer delete(visiting, c.ID)

	out := domain.StreamMembership{}
	if !c.IsLeaf() {
		for _, child := range c.Children {
			m, err := r.resolveNode(ctx, child, sc, visiting)
			if err != nil {
				return nil, err
			}
			out = out.Merge(m)
		}
	}

	if !c.Active || c.Stream == nil {
		return out, nil
	}

	own, err := r.resolveStream(ctx, c, sc)
	if err != nil {
		return nil, err
	}
	return out.Merge(own), nil
}

// resolveStream pages through the stream of c until the reported total is
// reached.
func (r *Resolver) resolveStream(ctx context.Context, c *domain.Category, sc domain.ShopContext) (domain.StreamMembership, error) {
	out := domain.StreamMembership{}

	for offset, total := 0, 1; offset < total; offset += r.pageSize {
		criteria := c.Stream.Criteria.Clone()
		criteria.Offset = offset
		criteria.Limit = r.pageSize

		res, err := r.searcher.Search(ctx, criteria, sc)
		if err != nil {
			return nil, fmt.Errorf("resolve stream %d of category %d: %w", c.Stream.ID, c.ID, err)
		}
		total = res.Total

		for _, p := range res.Products {
			out.Add(p.ID, c.ID)
		}
	}

	r.logger.Debug("product stream resolved",
		"category_id", c.ID,
		"stream_id", c.Stream.ID,
		"products", len(out),
	)
	return out, nil
}
