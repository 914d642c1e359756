package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/utafrali/finsearch/internal/domain"
	apperrors "github.com/utafrali/finsearch/pkg/errors"
	"github.com/utafrali/finsearch/pkg/pagination"
)

// Catalog is an in-memory catalog implementing every repository interface.
// It is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	shops      map[string]domain.Shop
	groups     []domain.CustomerGroup
	categories map[int64]domain.Category
	articles   map[int64]domain.Article
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		shops:      make(map[string]domain.Shop),
		categories: make(map[int64]domain.Category),
		articles:   make(map[int64]domain.Article),
	}
}

// Seed is the JSON shape accepted by Load.
type Seed struct {
	Shops          []domain.Shop          `json:"shops"`
	CustomerGroups []domain.CustomerGroup `json:"customer_groups"`
	Categories     []domain.Category      `json:"categories"`
	Articles       []domain.Article       `json:"articles"`
}

// Load adds everything in a JSON seed document.
func (c *Catalog) Load(r io.Reader) error {
	var s Seed
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("decode catalog seed: %w", err)
	}
	for _, shop := range s.Shops {
		c.AddShop(shop)
	}
	for _, g := range s.CustomerGroups {
		c.AddCustomerGroup(g)
	}
	for _, cat := range s.Categories {
		c.AddCategory(cat)
	}
	for _, a := range s.Articles {
		c.AddArticle(a)
	}
	return nil
}

// AddShop adds or replaces a shop by key.
func (c *Catalog) AddShop(s domain.Shop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shops[s.ShopKey] = s
}

// AddCustomerGroup adds or replaces a customer group by key.
func (c *Catalog) AddCustomerGroup(g domain.CustomerGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = slices.DeleteFunc(c.groups, func(e domain.CustomerGroup) bool { return e.Key == g.Key })
	c.groups = append(c.groups, g)
}

// AddCategory adds or replaces a category by id.
func (c *Catalog) AddCategory(cat domain.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat.Children = nil
	c.categories[cat.ID] = cat
}

// AddArticle adds or replaces an article by id.
func (c *Catalog) AddArticle(a domain.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.articles[a.ID] = a
}

func (c *Catalog) GetByKey(_ context.Context, shopKey string) (*domain.Shop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.shops[shopKey]
	if !ok {
		return nil, apperrors.NotFound("shop", shopKey)
	}
	return &s, nil
}

func (c *Catalog) List(_ context.Context) ([]domain.CustomerGroup, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.groups), nil
}

func (c *Catalog) ListAll(_ context.Context) ([]domain.Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (c *Catalog) CountActive(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, a := range c.articles {
		if a.Active {
			n++
		}
	}
	return n, nil
}

func (c *Catalog) ListActive(_ context.Context, w pagination.Window) ([]domain.Article, error) {
	active := c.sorted(func(a *domain.Article) bool { return a.Active })
	lo, hi := w.Apply(len(active))
	return active[lo:hi], nil
}

func (c *Catalog) ListInCategory(ctx context.Context, rootID int64) ([]domain.Article, error) {
	cats, err := c.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	tree := domain.NewCategoryTree(cats)

	return c.sorted(func(a *domain.Article) bool {
		return slices.ContainsFunc(a.CategoryIDs, func(id int64) bool {
			return id == rootID || tree.IsChildOf(id, rootID)
		})
	}), nil
}

func (c *Catalog) LookupBaseProducts(_ context.Context, ids []int64) (map[int64]domain.BaseProduct, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[int64]domain.BaseProduct, len(ids))
	for _, id := range ids {
		a, ok := c.articles[id]
		if !ok || !a.Active {
			continue
		}
		if _, ok := a.MainVariant(); !ok {
			continue
		}
		out[id] = a.BaseProduct()
	}
	return out, nil
}

// sorted returns the articles matching keep ordered by id.
func (c *Catalog) sorted(keep func(*domain.Article) bool) []domain.Article {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Article, 0, len(c.articles))
	for _, a := range c.articles {
		if keep(&a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b domain.Article) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
