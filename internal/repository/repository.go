package repository

import (
	"context"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/pkg/pagination"
)

// ShopRepository resolves shops by their provider shop key.
type ShopRepository interface {
	// GetByKey returns the shop bound to shopKey, or a not-found AppError.
	GetByKey(ctx context.Context, shopKey string) (*domain.Shop, error)
}

// CustomerGroupRepository lists pricing and visibility groups.
type CustomerGroupRepository interface {
	List(ctx context.Context) ([]domain.CustomerGroup, error)
}

// CategoryRepository loads the category forest together with bound streams.
type CategoryRepository interface {
	ListAll(ctx context.Context) ([]domain.Category, error)
}

// ArticleRepository reads catalog articles with their variants.
type ArticleRepository interface {
	// CountActive returns the number of active articles.
	CountActive(ctx context.Context) (int, error)

	// ListActive returns active articles ordered by id within w.
	ListActive(ctx context.Context, w pagination.Window) ([]domain.Article, error)

	// ListInCategory returns every article assigned to rootID or a category
	// below it, active or not, ordered by id.
	ListInCategory(ctx context.Context, rootID int64) ([]domain.Article, error)

	// LookupBaseProducts maps the given article ids to the search identity
	// of active articles. Unknown ids are absent from the result.
	LookupBaseProducts(ctx context.Context, ids []int64) (map[int64]domain.BaseProduct, error)
}

// Catalog bundles the repositories the export and search paths read from.
type Catalog struct {
	Shops          ShopRepository
	CustomerGroups CustomerGroupRepository
	Categories     CategoryRepository
	Articles       ArticleRepository
}
