package engine

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/finsearch/internal/domain"
)

// Searcher runs structured searches against the shop's own index. It backs
// the federator's fallback path and product stream resolution.
type Searcher interface {
	Search(ctx context.Context, criteria *domain.SearchCriteria, sc domain.ShopContext) (*domain.SearchResult, error)
}

// SearchEngine defines the interface for indexing and searching products.
// Implementations may use Elasticsearch, in-memory storage, or other backends.
type SearchEngine interface {
	Searcher

	// BulkIndex adds or updates many documents.
	BulkIndex(ctx context.Context, docs []Document) error

	// IDs lists the product ids of every indexed document.
	IDs(ctx context.Context) ([]int64, error)

	// Delete removes a document by product id.
	Delete(ctx context.Context, id int64) error
}

// Suggester returns product name completions for a prefix.
type Suggester interface {
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}

// Property is a filterable name/value pair of a document. Number is set when
// the value parses as a decimal.
type Property struct {
	Name   string   `json:"name"`
	Value  string   `json:"value"`
	Number *float64 `json:"number,omitempty"`
}

// Document is the indexed form of an article.
type Document struct {
	ID             int64      `json:"id"`
	VariantID      int64      `json:"variant_id"`
	Number         string     `json:"number"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Keywords       string     `json:"keywords"`
	CategoryIDs    []int64    `json:"category_ids"`
	CategoryTokens []string   `json:"category_tokens"`
	Properties     []Property `json:"properties"`
	Price          float64    `json:"price"`
	Added          time.Time  `json:"added"`
	SalesFrequency int        `json:"sales_frequency"`
}

// BaseProduct returns the search identity of the document.
func (d *Document) BaseProduct() domain.BaseProduct {
	return domain.BaseProduct{ID: d.ID, VariantID: d.VariantID, Number: d.Number}
}

// PropertyValues returns the entries of the named property.
func (d *Document) PropertyValues(name string) []Property {
	var out []Property
	for _, p := range d.Properties {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

// CategoryToken joins a category breadcrumb the way documents store it.
func CategoryToken(path []string) string {
	return strings.Join(path, "_")
}

// NewDocument builds the index document of an article. Category tokens hold
// every contiguous sub-path of each category breadcrumb, so a category
// condition matches products anywhere below it.
func NewDocument(a *domain.Article, tree *domain.CategoryTree) Document {
	doc := Document{
		ID:             a.ID,
		Name:           a.Name,
		Description:    a.Description,
		Keywords:       a.Keywords,
		CategoryIDs:    a.CategoryIDs,
		Added:          a.Added,
		SalesFrequency: a.SalesFrequency,
	}
	bp := a.BaseProduct()
	doc.VariantID, doc.Number = bp.VariantID, bp.Number

	seen := map[string]bool{}
	for _, cid := range a.CategoryIDs {
		path := tree.Path(cid, 0)
		for i := range path {
			for j := i + 1; j <= len(path); j++ {
				tok := CategoryToken(path[i:j])
				if !seen[tok] {
					seen[tok] = true
					doc.CategoryTokens = append(doc.CategoryTokens, tok)
				}
			}
		}
	}

	if a.Supplier != nil && a.Supplier.Name != "" {
		doc.Properties = append(doc.Properties, newProperty("vendor", a.Supplier.Name))
	}
	for _, pv := range a.Properties {
		doc.Properties = append(doc.Properties, newProperty(pv.Option, pv.Value))
	}

	doc.Price = lowestPrice(a)
	return doc
}

func newProperty(name, value string) Property {
	p := Property{Name: name, Value: value}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64); err == nil {
		p.Number = &f
	}
	return p
}

// lowestPrice is the cheapest default-group price over active variants.
func lowestPrice(a *domain.Article) float64 {
	best := math.Inf(1)
	for _, v := range a.Variants {
		if !v.Active && v.ID != a.MainVariantID {
			continue
		}
		for _, p := range v.Prices {
			if p.CustomerGroup == domain.DefaultCustomerGroupKey && p.Value < best {
				best = p.Value
			}
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}
