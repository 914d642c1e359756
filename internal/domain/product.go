package domain

// BaseProduct is the minimal identity of a search hit.
type BaseProduct struct {
	ID        int64  `json:"id"`
	VariantID int64  `json:"variant_id"`
	Number    string `json:"number"`
}

// SearchResult is what a search service returns.
type SearchResult struct {
	Products []BaseProduct `json:"products"`
	Total    int           `json:"total"`
	Facets   []Facet       `json:"facets"`
}

// IDs returns the product ids of the result in order.
func (r *SearchResult) IDs() []int64 {
	ids := make([]int64, 0, len(r.Products))
	for _, p := range r.Products {
		ids = append(ids, p.ID)
	}
	return ids
}
