package domain

import "time"

// FreeTextSlots is the number of numbered free-text attributes (attr1..attr20).
const FreeTextSlots = 20

// FreeTextAttributes are the numbered free-text fields of an article.
type FreeTextAttributes [FreeTextSlots]string

// Slot returns attribute n (1-based).
func (a FreeTextAttributes) Slot(n int) (string, bool) {
	if n < 1 || n > FreeTextSlots {
		return "", false
	}
	return a[n-1], true
}

// Price is a variant price for one customer group.
type Price struct {
	CustomerGroup string  `json:"customer_group"`
	Value         float64 `json:"value"`
}

// Variant is a purchasable detail of an article.
type Variant struct {
	ID             int64      `json:"id"`
	Number         string     `json:"number"`
	EAN            string     `json:"ean,omitempty"`
	SupplierNumber string     `json:"supplier_number,omitempty"`
	AdditionalText string     `json:"additional_text,omitempty"`
	Active         bool       `json:"active"`
	InStock        int        `json:"in_stock"`
	MinPurchase    int        `json:"min_purchase"`
	ShippingFree   bool       `json:"shipping_free"`
	ShippingTime   string     `json:"shipping_time,omitempty"`
	PurchaseUnit   float64    `json:"purchase_unit,omitempty"`
	ReferenceUnit  float64    `json:"reference_unit,omitempty"`
	PackUnit       string     `json:"pack_unit,omitempty"`
	Weight         float64    `json:"weight,omitempty"`
	Width          float64    `json:"width,omitempty"`
	Height         float64    `json:"height,omitempty"`
	Length         float64    `json:"length,omitempty"`
	ReleaseDate    *time.Time `json:"release_date,omitempty"`
	Prices         []Price    `json:"prices"`
}

// Image is an article image with its thumbnail renditions.
type Image struct {
	Path       string   `json:"path"`
	Thumbnails []string `json:"thumbnails,omitempty"`
}

// PropertyValue is a filterable property such as "Farbe: Rot".
type PropertyValue struct {
	Option string `json:"option"`
	Value  string `json:"value"`
}

// ConfiguratorOption is a variant option such as "Größe: XL".
type ConfiguratorOption struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// Supplier is the manufacturer of an article.
type Supplier struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// Article is a catalog product with all of its variants.
type Article struct {
	ID                  int64                `json:"id"`
	Name                string               `json:"name"`
	Description         string               `json:"description,omitempty"`
	DescriptionLong     string               `json:"description_long,omitempty"`
	Keywords            string               `json:"keywords,omitempty"`
	Active              bool                 `json:"active"`
	Highlight           bool                 `json:"highlight"`
	LastStock           bool                 `json:"last_stock"`
	Added               time.Time            `json:"added"`
	TaxRate             float64              `json:"tax_rate"`
	SalesFrequency      int                  `json:"sales_frequency"`
	Supplier            *Supplier            `json:"supplier,omitempty"`
	CategoryIDs         []int64              `json:"category_ids"`
	MainVariantID       int64                `json:"main_variant_id"`
	Variants            []Variant            `json:"variants"`
	Images              []Image              `json:"images,omitempty"`
	Properties          []PropertyValue      `json:"properties,omitempty"`
	ConfiguratorOptions []ConfiguratorOption `json:"configurator_options,omitempty"`
	HiddenFromGroups    []string             `json:"hidden_from_groups,omitempty"`
	Attributes          FreeTextAttributes   `json:"attributes"`
}

// MainVariant returns the article's main variant.
func (a *Article) MainVariant() (*Variant, bool) {
	for i := range a.Variants {
		if a.Variants[i].ID == a.MainVariantID {
			return &a.Variants[i], true
		}
	}
	return nil, false
}

// HiddenFrom reports whether the article is hidden from a customer group.
func (a *Article) HiddenFrom(groupKey string) bool {
	for _, k := range a.HiddenFromGroups {
		if k == groupKey {
			return true
		}
	}
	return false
}

// BaseProduct returns the search identity of the article (main variant).
func (a *Article) BaseProduct() BaseProduct {
	bp := BaseProduct{ID: a.ID, VariantID: a.MainVariantID}
	if v, ok := a.MainVariant(); ok {
		bp.Number = v.Number
	}
	return bp
}
