package findologic

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/utafrali/finsearch/internal/domain"
)

const (
	// DefaultBaseURL is the provider's XML search endpoint.
	DefaultBaseURL = "https://service.findologic.com/ps/xml_2.0/"

	outputAdapter  = "XML_2.0"
	searchEndpoint = "index.php"
	aliveEndpoint  = "alivetest.php"
)

var sortParams = map[domain.SortField]string{
	domain.SortPrice:       "price",
	domain.SortName:        "label",
	domain.SortReleaseDate: "dateadded",
	domain.SortPopularity:  "salesfrequency",
}

// QueryBuilder renders search criteria into provider request URLs.
type QueryBuilder struct {
	baseURL string
}

// NewQueryBuilder creates a builder for the given base URL.
func NewQueryBuilder(baseURL string) *QueryBuilder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &QueryBuilder{baseURL: strings.TrimRight(baseURL, "/") + "/"}
}

// Build returns the provider search URL for criteria. With requireTerm set,
// criteria without a non-empty search term fail with ErrMissingSearchTerm.
func (b *QueryBuilder) Build(criteria *domain.SearchCriteria, group domain.CustomerGroup, shop domain.Shop, requireTerm bool) (string, error) {
	if requireTerm && !criteria.IsSearch() {
		return "", domain.ErrMissingSearchTerm
	}
	return b.endpoint(shop, searchEndpoint) + "?" + Params(criteria, group, shop).Encode(), nil
}

// AliveURL returns the provider health probe URL of a shop.
func (b *QueryBuilder) AliveURL(shop domain.Shop) string {
	q := url.Values{}
	q.Set("shopkey", shop.ShopKey)
	return b.endpoint(shop, aliveEndpoint) + "?" + q.Encode()
}

func (b *QueryBuilder) endpoint(shop domain.Shop, file string) string {
	if host := shopHost(shop.BaseURL); host != "" {
		return b.baseURL + host + "/" + file
	}
	return b.baseURL + file
}

// Params renders criteria as provider query parameters.
func Params(criteria *domain.SearchCriteria, group domain.CustomerGroup, shop domain.Shop) url.Values {
	q := url.Values{}
	q.Set("shopkey", shop.ShopKey)
	q.Set("outputAdapter", outputAdapter)

	if term, ok := criteria.SearchTerm(); ok {
		q.Set("query", term)
	}
	if criteria.Offset > 0 {
		q.Set("first", strconv.Itoa(criteria.Offset))
	}
	if criteria.Limit > 0 {
		q.Set("count", strconv.Itoa(criteria.Limit))
	}
	if group.Key != "" {
		q.Set("customergroup", UsergroupHash(shop.ShopKey, group.Key))
	}

	for _, cond := range criteria.Conditions {
		switch cond.Kind {
		case domain.ConditionCategory:
			if len(cond.Values) > 0 {
				q.Add("selected[cat][]", strings.Join(cond.Values, "_"))
			}
		case domain.ConditionProperty, domain.ConditionPrice:
			addAttribute(q, cond)
		}
	}

	for _, s := range criteria.Sortings {
		param, ok := sortParams[s.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		q.Set("order", param+" "+dir)
		break
	}

	return q
}

func addAttribute(q url.Values, cond domain.Condition) {
	if cond.Ranged() {
		if cond.Min != nil {
			q.Set(fmt.Sprintf("attrib[%s][min]", cond.Name), formatFloat(*cond.Min))
		}
		if cond.Max != nil {
			q.Set(fmt.Sprintf("attrib[%s][max]", cond.Name), formatFloat(*cond.Max))
		}
		return
	}
	key := fmt.Sprintf("attrib[%s][]", cond.Name)
	for _, v := range cond.Values {
		q.Add(key, v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func shopHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.Trim(raw, "/")
	}
	return strings.Trim(u.Host+u.Path, "/")
}
