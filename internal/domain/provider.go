package domain

// FilterKind classifies a provider filter.
type FilterKind string

const (
	FilterSelect      FilterKind = "select"
	FilterRange       FilterKind = "range"
	FilterUnsupported FilterKind = "unsupported"
)

// FilterItem is one selectable value of a select filter. Items nest for
// hierarchical filters such as categories.
type FilterItem struct {
	Name      string
	Frequency int
	Selected  bool
	Children  []FilterItem
}

// RangeBounds are the bounds reported for a range filter.
type RangeBounds struct {
	Min         float64
	Max         float64
	SelectedMin float64
	SelectedMax float64
}

// FilterDefinition is a filter as reported by the provider.
type FilterDefinition struct {
	Name         string
	DisplayLabel string
	Kind         FilterKind
	Items        []FilterItem
	Range        *RangeBounds
}

// ProviderResponse is the parsed provider answer.
//
// TotalCount is authoritative even when fewer ProductIDs are present.
type ProviderResponse struct {
	TotalCount     int
	ProductIDs     []string
	RedirectTarget string
	Filters        []FilterDefinition
}

// HasRedirect reports whether the provider asked for a landing page redirect.
func (r *ProviderResponse) HasRedirect() bool {
	return r.RedirectTarget != ""
}
