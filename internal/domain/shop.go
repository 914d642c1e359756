package domain

// Shop is a storefront bound to a provider shop key.
type Shop struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ShopKey        string `json:"shop_key"`
	RootCategoryID int64  `json:"root_category_id"`
	BaseURL        string `json:"base_url"`
	Active         bool   `json:"active"`
}

// CustomerGroup is a pricing/visibility group such as "EK" (end customers).
type CustomerGroup struct {
	Key          string `json:"key"`
	Name         string `json:"name"`
	TaxInclusive bool   `json:"tax_inclusive"`
}

// DefaultCustomerGroupKey is the group whose prices back-fill missing ones.
const DefaultCustomerGroupKey = "EK"

// Flags are the provider feature switches of a shop.
type Flags struct {
	Enabled           bool
	CategoryPages     bool
	DirectIntegration bool
}

// ShopConfig is the explicit per-request shop identity and feature state.
type ShopConfig struct {
	Shop  Shop
	Flags Flags
}

// ShopContext identifies who a search runs for.
type ShopContext struct {
	Shop          Shop
	CustomerGroup CustomerGroup
}
