package domain

// FacetType discriminates facet results in JSON output.
type FacetType string

const (
	FacetTypeTree  FacetType = "tree"
	FacetTypeRange FacetType = "range"
)

// Range facet field labels.
const (
	RangeMinLabel = "von"
	RangeMaxLabel = "bis"
)

// Facet is a filterable dimension rendered next to search results.
type Facet interface {
	FacetName() string
	FacetType() FacetType
}

// TreeItem is a node of a tree facet.
type TreeItem struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Active   bool       `json:"active"`
	Children []TreeItem `json:"children,omitempty"`
}

// TreeFacet is a select facet whose values may nest.
type TreeFacet struct {
	Type      FacetType  `json:"type"`
	Name      string     `json:"name"`
	FieldName string     `json:"field_name"`
	Label     string     `json:"label"`
	Active    bool       `json:"active"`
	Items     []TreeItem `json:"items"`
}

// NewTreeFacet builds a tree facet.
func NewTreeFacet(name, label string, active bool, items []TreeItem) *TreeFacet {
	if items == nil {
		items = []TreeItem{}
	}
	return &TreeFacet{
		Type:      FacetTypeTree,
		Name:      name,
		FieldName: name,
		Label:     label,
		Active:    active,
		Items:     items,
	}
}

func (f *TreeFacet) FacetName() string    { return f.Name }
func (f *TreeFacet) FacetType() FacetType { return FacetTypeTree }

// RangeFacet is a numeric slider facet.
type RangeFacet struct {
	Type         FacetType `json:"type"`
	Name         string    `json:"name"`
	Label        string    `json:"label"`
	Active       bool      `json:"active"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	ActiveMin    float64   `json:"active_min"`
	ActiveMax    float64   `json:"active_max"`
	MinFieldName string    `json:"min_field_name"`
	MaxFieldName string    `json:"max_field_name"`
}

// NewRangeFacet builds a range facet with the default von/bis labels.
func NewRangeFacet(name, label string, lo, hi, activeLo, activeHi float64) *RangeFacet {
	return &RangeFacet{
		Type:         FacetTypeRange,
		Name:         name,
		Label:        label,
		Min:          lo,
		Max:          hi,
		ActiveMin:    activeLo,
		ActiveMax:    activeHi,
		MinFieldName: RangeMinLabel,
		MaxFieldName: RangeMaxLabel,
	}
}

func (f *RangeFacet) FacetName() string    { return f.Name }
func (f *RangeFacet) FacetType() FacetType { return FacetTypeRange }

// HasFacet reports whether a facet with the given name is in facets.
func HasFacet(facets []Facet, name string) bool {
	for _, f := range facets {
		if f.FacetName() == name {
			return true
		}
	}
	return false
}
