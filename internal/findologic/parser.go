package findologic

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/utafrali/finsearch/internal/domain"
)

const (
	rootElement = "searchResult"

	typeSelect      = "select"
	typeRangeSlider = "range-slider"
)

type xmlSearchResult struct {
	XMLName     xml.Name `xml:"searchResult"`
	LandingPage *struct {
		Link string `xml:"link,attr"`
	} `xml:"landingPage"`
	Results *struct {
		Count int `xml:"count"`
	} `xml:"results"`
	Products []struct {
		ID string `xml:"id,attr"`
	} `xml:"products>product"`
	Filters []xmlFilter `xml:"filters>filter"`
}

type xmlFilter struct {
	Name       string    `xml:"name"`
	Display    string    `xml:"display"`
	Select     string    `xml:"select"`
	Type       string    `xml:"type"`
	Items      []xmlItem `xml:"items>item"`
	Attributes struct {
		SelectedRange *xmlRange `xml:"selectedRange"`
		TotalRange    *xmlRange `xml:"totalRange"`
	} `xml:"attributes"`
}

type xmlItem struct {
	Name      string    `xml:"name"`
	Frequency int       `xml:"frequency"`
	Selected  string    `xml:"selected,attr"`
	Items     []xmlItem `xml:"items>item"`
}

type xmlRange struct {
	Min float64 `xml:"min"`
	Max float64 `xml:"max"`
}

// Parse decodes a provider XML answer.
//
// The payload must be well-formed and rooted at searchResult with a results
// element; anything else fails with ErrMalformedResponse. Filters and the
// landing page are optional. results/count is the authoritative total, and
// at most that many product rows are read.
func Parse(raw []byte) (*domain.ProviderResponse, error) {
	var doc xmlSearchResult
	dec := xml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}
	if doc.Results == nil {
		return nil, fmt.Errorf("%w: missing results element", domain.ErrMalformedResponse)
	}

	resp := &domain.ProviderResponse{
		TotalCount: max(doc.Results.Count, 0),
		ProductIDs: make([]string, 0, len(doc.Products)),
		Filters:    make([]domain.FilterDefinition, 0, len(doc.Filters)),
	}

	if doc.LandingPage != nil {
		resp.RedirectTarget = strings.TrimSpace(doc.LandingPage.Link)
	}

	for _, p := range doc.Products {
		if len(resp.ProductIDs) >= resp.TotalCount {
			break
		}
		if id := strings.TrimSpace(p.ID); id != "" {
			resp.ProductIDs = append(resp.ProductIDs, id)
		}
	}

	for _, f := range doc.Filters {
		resp.Filters = append(resp.Filters, f.definition())
	}

	return resp, nil
}

func (f xmlFilter) definition() domain.FilterDefinition {
	def := domain.FilterDefinition{
		Name:         f.Name,
		DisplayLabel: f.Display,
		Kind:         domain.FilterUnsupported,
	}

	switch f.Type {
	case typeSelect:
		def.Kind = domain.FilterSelect
		def.Items = filterItems(f.Items)
	case typeRangeSlider:
		def.Kind = domain.FilterRange
		bounds := &domain.RangeBounds{}
		if sel := f.Attributes.SelectedRange; sel != nil {
			bounds.SelectedMin, bounds.SelectedMax = sel.Min, sel.Max
			bounds.Min, bounds.Max = sel.Min, sel.Max
		}
		if total := f.Attributes.TotalRange; total != nil {
			bounds.Min, bounds.Max = total.Min, total.Max
		}
		def.Range = bounds
	}

	return def
}

func filterItems(items []xmlItem) []domain.FilterItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.FilterItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.FilterItem{
			Name:      it.Name,
			Frequency: it.Frequency,
			Selected:  it.Selected == "1" || it.Selected == "true",
			Children:  filterItems(it.Items),
		})
	}
	return out
}
