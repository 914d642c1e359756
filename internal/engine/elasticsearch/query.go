package elasticsearch

import (
	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
)

// buildSearchQuery constructs the Elasticsearch query DSL for criteria.
func buildSearchQuery(criteria *domain.SearchCriteria) map[string]interface{} {
	var mustClause interface{}
	if term, _ := criteria.SearchTerm(); term != "" {
		mustClause = map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":         term,
				"fields":        []string{"name^3", "name.autocomplete^2", "keywords^2", "description"},
				"type":          "best_fields",
				"fuzziness":     "AUTO",
				"prefix_length": 1,
			},
		}
	} else {
		mustClause = map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	boolQuery := map[string]interface{}{
		"must": []interface{}{mustClause},
	}
	if filters := buildFilters(criteria); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
		"from":             max(criteria.Offset, 0),
		"track_total_hits": true,
		"sort":             buildSort(criteria.Sortings),
		"_source":          []string{"id", "variant_id", "number"},
	}
	if criteria.Limit > 0 {
		esQuery["size"] = criteria.Limit
	}

	return esQuery
}

// buildFilters turns every non-search condition into a filter clause.
func buildFilters(criteria *domain.SearchCriteria) []interface{} {
	var filters []interface{}

	for _, cond := range criteria.Conditions {
		switch cond.Kind {
		case domain.ConditionCategory:
			if len(cond.Values) == 0 {
				continue
			}
			filters = append(filters, map[string]interface{}{
				"term": map[string]interface{}{
					"category_tokens": engine.CategoryToken(cond.Values),
				},
			})

		case domain.ConditionPrice:
			if r := rangeClause(cond); r != nil {
				filters = append(filters, map[string]interface{}{
					"range": map[string]interface{}{"price": r},
				})
			}

		case domain.ConditionProperty:
			inner := []interface{}{
				map[string]interface{}{
					"term": map[string]interface{}{"properties.name": cond.Name},
				},
			}
			if cond.Ranged() {
				inner = append(inner, map[string]interface{}{
					"range": map[string]interface{}{"properties.number": rangeClause(cond)},
				})
			} else {
				inner = append(inner, map[string]interface{}{
					"terms": map[string]interface{}{"properties.value": cond.Values},
				})
			}
			filters = append(filters, map[string]interface{}{
				"nested": map[string]interface{}{
					"path": "properties",
					"query": map[string]interface{}{
						"bool": map[string]interface{}{"filter": inner},
					},
				},
			})
		}
	}

	return filters
}

func rangeClause(cond domain.Condition) map[string]interface{} {
	if cond.Min == nil && cond.Max == nil {
		return nil
	}
	r := map[string]interface{}{}
	if cond.Min != nil {
		r["gte"] = *cond.Min
	}
	if cond.Max != nil {
		r["lte"] = *cond.Max
	}
	return r
}

var sortFields = map[domain.SortField]string{
	domain.SortPrice:       "price",
	domain.SortName:        "name.keyword",
	domain.SortReleaseDate: "added",
	domain.SortPopularity:  "sales_frequency",
}

// buildSort orders by the first supported sorting with the id as tiebreaker.
// Relevance uses the default scoring.
func buildSort(sortings []domain.Sorting) []interface{} {
	clause := []interface{}{}
	for _, s := range sortings {
		field, ok := sortFields[s.Field]
		if !ok {
			continue
		}
		dir := "asc"
		if s.Descending {
			dir = "desc"
		}
		clause = append(clause, map[string]interface{}{field: dir})
		break
	}
	if len(clause) == 0 {
		clause = append(clause, map[string]interface{}{"_score": "desc"})
	}
	return append(clause, map[string]interface{}{"id": "asc"})
}
