package findologic

import "github.com/utafrali/finsearch/internal/domain"

// TranslateFacets converts provider filters into facet results, keeping the
// provider's order. Unsupported filter kinds are skipped.
//
// Range facets use the selected bounds as both the available and the active
// range. This mirrors how the storefront has always rendered the slider.
func TranslateFacets(filters []domain.FilterDefinition) []domain.Facet {
	facets := make([]domain.Facet, 0, len(filters))
	for _, f := range filters {
		switch f.Kind {
		case domain.FilterSelect:
			facets = append(facets, domain.NewTreeFacet(f.Name, f.DisplayLabel, false, treeItems(f.Items)))
		case domain.FilterRange:
			if f.Range == nil {
				continue
			}
			lo, hi := f.Range.SelectedMin, f.Range.SelectedMax
			facets = append(facets, domain.NewRangeFacet(f.Name, f.DisplayLabel, lo, hi, lo, hi))
		}
	}
	return facets
}

func treeItems(items []domain.FilterItem) []domain.TreeItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.TreeItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.TreeItem{
			ID:       it.Name,
			Label:    it.Name,
			Active:   it.Selected,
			Children: treeItems(it.Children),
		})
	}
	return out
}

// SelectedFacet builds an active tree facet listing only the given values,
// for a filter the provider did not report back. Empty values are dropped.
func SelectedFacet(reg domain.FacetRegistration, values []string) *domain.TreeFacet {
	items := make([]domain.TreeItem, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		items = append(items, domain.TreeItem{ID: v, Label: v, Active: true})
	}
	label := reg.Label
	if label == "" {
		label = reg.Name
	}
	return domain.NewTreeFacet(reg.Name, label, true, items)
}
