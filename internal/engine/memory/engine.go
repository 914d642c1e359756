package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
)

// Engine is an in-memory implementation of the SearchEngine interface.
// It provides simple string matching on name, description and keywords.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu   sync.RWMutex
	docs map[int64]engine.Document
}

// New creates a new in-memory search engine.
func New() *Engine {
	return &Engine{docs: make(map[int64]engine.Document)}
}

// Delete removes a document by product id.
func (e *Engine) Delete(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, id)
	return nil
}

// IDs lists the ids of all documents in ascending order.
func (e *Engine) IDs(_ context.Context) ([]int64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.Sorted(maps.Keys(e.docs)), nil
}

// BulkIndex adds or updates many documents.
func (e *Engine) BulkIndex(_ context.Context, docs []engine.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range docs {
		e.docs[docs[i].ID] = docs[i]
	}
	return nil
}

// Search matches criteria against the in-memory documents. A Limit of zero
// returns everything from Offset.
func (e *Engine) Search(_ context.Context, criteria *domain.SearchCriteria, _ domain.ShopContext) (*domain.SearchResult, error) {
	e.mu.RLock()
	matched := make([]engine.Document, 0, len(e.docs))
	for _, d := range e.docs {
		if matches(&d, criteria) {
			matched = append(matched, d)
		}
	}
	e.mu.RUnlock()

	sortDocuments(matched, criteria.Sortings)

	total := len(matched)
	lo := min(max(criteria.Offset, 0), total)
	hi := total
	if criteria.Limit > 0 {
		hi = min(lo+criteria.Limit, total)
	}

	products := make([]domain.BaseProduct, 0, hi-lo)
	for i := lo; i < hi; i++ {
		products = append(products, matched[i].BaseProduct())
	}

	return &domain.SearchResult{
		Products: products,
		Total:    total,
		Facets:   []domain.Facet{},
	}, nil
}

func matches(d *engine.Document, criteria *domain.SearchCriteria) bool {
	for _, cond := range criteria.Conditions {
		if !matchCondition(d, cond) {
			return false
		}
	}
	return true
}

func matchCondition(d *engine.Document, cond domain.Condition) bool {
	switch cond.Kind {
	case domain.ConditionSearch:
		term := strings.ToLower(strings.TrimSpace(cond.Term))
		if term == "" {
			return true
		}
		return strings.Contains(strings.ToLower(d.Name), term) ||
			strings.Contains(strings.ToLower(d.Description), term) ||
			strings.Contains(strings.ToLower(d.Keywords), term)

	case domain.ConditionCategory:
		if len(cond.Values) == 0 {
			return true
		}
		return slices.Contains(d.CategoryTokens, engine.CategoryToken(cond.Values))

	case domain.ConditionPrice:
		return inRange(d.Price, cond)

	case domain.ConditionProperty:
		for _, p := range d.PropertyValues(cond.Name) {
			if cond.Ranged() {
				if p.Number != nil && inRange(*p.Number, cond) {
					return true
				}
				continue
			}
			if slices.Contains(cond.Values, p.Value) {
				return true
			}
		}
		return false
	}
	return true
}

func inRange(v float64, cond domain.Condition) bool {
	if cond.Min != nil && v < *cond.Min {
		return false
	}
	if cond.Max != nil && v > *cond.Max {
		return false
	}
	return true
}

// sortDocuments orders by the first sorting, then by id for stability.
// Relevance keeps id order.
func sortDocuments(docs []engine.Document, sortings []domain.Sorting) {
	var s domain.Sorting
	if len(sortings) > 0 {
		s = sortings[0]
	}

	slices.SortStableFunc(docs, func(a, b engine.Document) int {
		var c int
		switch s.Field {
		case domain.SortPrice:
			c = cmp.Compare(a.Price, b.Price)
		case domain.SortName:
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case domain.SortReleaseDate:
			c = a.Added.Compare(b.Added)
		case domain.SortPopularity:
			c = cmp.Compare(a.SalesFrequency, b.SalesFrequency)
		}
		if s.Descending {
			c = -c
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		return c
	})
}

// Suggest returns up to limit unique names that have a word starting with
// prefix, most popular first.
func (e *Engine) Suggest(_ context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}, nil
	}

	e.mu.RLock()
	hits := make([]engine.Document, 0)
	for _, d := range e.docs {
		for _, w := range strings.Fields(strings.ToLower(d.Name)) {
			if strings.HasPrefix(w, prefix) {
				hits = append(hits, d)
				break
			}
		}
	}
	e.mu.RUnlock()

	slices.SortFunc(hits, func(a, b engine.Document) int {
		if c := cmp.Compare(b.SalesFrequency, a.SalesFrequency); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	seen := make(map[string]struct{})
	names := []string{}
	for _, d := range hits {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		seen[d.Name] = struct{}{}
		names = append(names, d.Name)
		if len(names) == limit {
			break
		}
	}
	return names, nil
}
