package domain

import "slices"

// ConditionKind identifies what a search condition filters on.
type ConditionKind string

// Condition kinds understood by the federator and the in-shop engines.
const (
	ConditionSearch   ConditionKind = "search"
	ConditionCategory ConditionKind = "category"
	ConditionProperty ConditionKind = "property"
	ConditionPrice    ConditionKind = "price"
)

// Condition is a single filter on a search request.
//
// Search conditions carry Term. Category conditions carry the category
// breadcrumb in Values (root first). Property conditions carry Name and either
// Values or a Min/Max range. Price conditions carry a Min/Max range.
type Condition struct {
	Kind   ConditionKind `json:"kind"`
	Name   string        `json:"name,omitempty"`
	Term   string        `json:"term,omitempty"`
	Values []string      `json:"values,omitempty"`
	Min    *float64      `json:"min,omitempty"`
	Max    *float64      `json:"max,omitempty"`
}

// Ranged reports whether the condition filters by a numeric range.
func (c Condition) Ranged() bool {
	return c.Min != nil || c.Max != nil
}

// SearchTermCondition returns a full-text search condition.
func SearchTermCondition(term string) Condition {
	return Condition{Kind: ConditionSearch, Term: term}
}

// CategoryCondition restricts a search to a category, given as breadcrumb.
func CategoryCondition(path ...string) Condition {
	return Condition{Kind: ConditionCategory, Values: path}
}

// PropertyCondition filters a property by one or more values.
func PropertyCondition(name string, values ...string) Condition {
	return Condition{Kind: ConditionProperty, Name: name, Values: values}
}

// PropertyRangeCondition filters a numeric property by range.
func PropertyRangeCondition(name string, lo, hi *float64) Condition {
	return Condition{Kind: ConditionProperty, Name: name, Min: lo, Max: hi}
}

// PriceCondition filters by price range. Either bound may be nil.
func PriceCondition(lo, hi *float64) Condition {
	return Condition{Kind: ConditionPrice, Name: "price", Min: lo, Max: hi}
}

// SortField names an orderable attribute.
type SortField string

const (
	SortRelevance   SortField = "relevance"
	SortPrice       SortField = "price"
	SortName        SortField = "name"
	SortReleaseDate SortField = "release_date"
	SortPopularity  SortField = "popularity"
)

// Sorting is one ordering clause.
type Sorting struct {
	Field      SortField `json:"field"`
	Descending bool      `json:"descending"`
}

// FacetRegistration is a facet the current request expects to be rendered.
// Registrations are transient: they live for one federation call only.
type FacetRegistration struct {
	Name  string
	Label string
}

// SearchCriteria is a structured, provider-neutral search request.
type SearchCriteria struct {
	Conditions []Condition `json:"conditions"`
	Sortings   []Sorting   `json:"sortings,omitempty"`
	Offset     int         `json:"offset"`
	Limit      int         `json:"limit"`

	facets []FacetRegistration
}

// NewSearchCriteria returns empty criteria with the given page.
func NewSearchCriteria(offset, limit int) *SearchCriteria {
	return &SearchCriteria{Offset: offset, Limit: limit}
}

// AddCondition appends a condition. A second search term replaces the first.
func (c *SearchCriteria) AddCondition(cond Condition) *SearchCriteria {
	if cond.Kind == ConditionSearch {
		c.Conditions = slices.DeleteFunc(c.Conditions, func(e Condition) bool {
			return e.Kind == ConditionSearch
		})
	}
	c.Conditions = append(c.Conditions, cond)
	return c
}

// AddSorting appends an ordering clause.
func (c *SearchCriteria) AddSorting(s Sorting) *SearchCriteria {
	c.Sortings = append(c.Sortings, s)
	return c
}

// SearchTerm returns the search term, if the criteria carry one.
func (c *SearchCriteria) SearchTerm() (string, bool) {
	for _, cond := range c.Conditions {
		if cond.Kind == ConditionSearch {
			return cond.Term, true
		}
	}
	return "", false
}

// IsSearch reports whether this is a genuine search-term query rather than a
// category browse.
func (c *SearchCriteria) IsSearch() bool {
	term, ok := c.SearchTerm()
	return ok && term != ""
}

// ConditionsOf returns the conditions of the given kind in order.
func (c *SearchCriteria) ConditionsOf(kind ConditionKind) []Condition {
	var out []Condition
	for _, cond := range c.Conditions {
		if cond.Kind == kind {
			out = append(out, cond)
		}
	}
	return out
}

// AddFacet registers a facet for this request, replacing any registration
// with the same name.
func (c *SearchCriteria) AddFacet(f FacetRegistration) {
	for i := range c.facets {
		if c.facets[i].Name == f.Name {
			c.facets[i] = f
			return
		}
	}
	c.facets = append(c.facets, f)
}

// Facet looks up a registered facet by name.
func (c *SearchCriteria) Facet(name string) (FacetRegistration, bool) {
	for _, f := range c.facets {
		if f.Name == name {
			return f, true
		}
	}
	return FacetRegistration{}, false
}

// Facets returns the registered facets.
func (c *SearchCriteria) Facets() []FacetRegistration {
	return slices.Clone(c.facets)
}

// ResetFacets drops all facet registrations.
func (c *SearchCriteria) ResetFacets() {
	c.facets = nil
}

// Clone returns a deep copy.
func (c *SearchCriteria) Clone() *SearchCriteria {
	out := &SearchCriteria{
		Offset:   c.Offset,
		Limit:    c.Limit,
		Sortings: slices.Clone(c.Sortings),
		facets:   slices.Clone(c.facets),
	}
	out.Conditions = make([]Condition, len(c.Conditions))
	for i, cond := range c.Conditions {
		cond.Values = slices.Clone(cond.Values)
		if cond.Min != nil {
			v := *cond.Min
			cond.Min = &v
		}
		if cond.Max != nil {
			v := *cond.Max
			cond.Max = &v
		}
		out.Conditions[i] = cond
	}
	return out
}
