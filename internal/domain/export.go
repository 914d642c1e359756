package domain

import "time"

// ExportImage is an image reference in the export feed.
type ExportImage struct {
	URL  string
	Type string
}

// Image types of the export feed.
const (
	ImageTypeDefault   = "default"
	ImageTypeThumbnail = "thumbnail"
)

// ExportPrice is a price, optionally scoped to a usergroup hash.
type ExportPrice struct {
	Usergroup string
	Value     string
}

// ExportAttribute is a filterable multi-value attribute.
type ExportAttribute struct {
	Key    string
	Values []string
}

// ExportProperty is a display-only key/value.
type ExportProperty struct {
	Key   string
	Value string
}

// ExportItem is one product in the export feed.
type ExportItem struct {
	ID             int64
	OrderNumbers   []string
	Name           string
	Summary        string
	Description    string
	URL            string
	Keywords       []string
	Images         []ExportImage
	SalesFrequency int
	DateAdded      time.Time
	Prices         []ExportPrice
	Usergroups     []string
	Attributes     []ExportAttribute
	Properties     []ExportProperty
}

// Attribute returns the values of the named attribute.
func (i *ExportItem) Attribute(key string) ([]string, bool) {
	for _, a := range i.Attributes {
		if a.Key == key {
			return a.Values, true
		}
	}
	return nil, false
}

// Property returns the value of the named property.
func (i *ExportItem) Property(key string) (string, bool) {
	for _, p := range i.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// ExportBatch is one page of the export feed.
//
// Count is the number of items produced for this page, which can be lower
// than the requested length when products were filtered out. Total is the
// number of active products regardless of paging.
type ExportBatch struct {
	Items  []ExportItem
	Count  int
	Total  int
	Offset int
}
