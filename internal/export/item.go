package export

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/engine"
	"github.com/utafrali/finsearch/internal/findologic"
	"github.com/utafrali/finsearch/pkg/slug"
)

// Storefront paths appended to the shop base URL.
const (
	noPicturePath = "templates/_default/frontend/_resources/images/no_picture.jpg"
	wishlistPath  = "note/add/ordernumber/"
	comparePath   = "compare/add_article/articleID/"
	cartPath      = "checkout/addArticle/sAdd/"
)

// DefaultMarkAsNewDays is how long a product counts as new after it was added.
const DefaultMarkAsNewDays = 30

// ItemConfig holds the shop settings that shape export items.
type ItemConfig struct {
	HideNoInStock bool
	MarkAsNewDays int
}

// ItemBuilder assembles the export items of one shop page.
type ItemBuilder struct {
	shop       domain.Shop
	groups     []domain.CustomerGroup
	tree       *domain.CategoryTree
	membership domain.StreamMembership
	cfg        ItemConfig
	now        time.Time
}

// NewItemBuilder creates a builder for shop. membership adds the categories
// contributed by product streams to each item.
func NewItemBuilder(shop domain.Shop, groups []domain.CustomerGroup, tree *domain.CategoryTree, membership domain.StreamMembership, cfg ItemConfig, now time.Time) *ItemBuilder {
	if cfg.MarkAsNewDays < 0 {
		cfg.MarkAsNewDays = 0
	}
	return &ItemBuilder{
		shop:       shop,
		groups:     groups,
		tree:       tree,
		membership: membership,
		cfg:        cfg,
		now:        now,
	}
}

// Build assembles the export item of a. ok is false when no variant of the
// article can be sold, in which case the article is left out of the feed.
func (b *ItemBuilder) Build(a *domain.Article) (item domain.ExportItem, ok bool) {
	main, hasMain := a.MainVariant()
	if !hasMain {
		return domain.ExportItem{}, false
	}

	sellable := b.sellableVariants(a)
	if len(sellable) == 0 {
		return domain.ExportItem{}, false
	}

	item = domain.ExportItem{
		ID:             a.ID,
		OrderNumbers:   orderNumbers(sellable),
		Name:           a.Name,
		Summary:        cleanString(a.Description),
		Description:    cleanString(a.DescriptionLong),
		URL:            b.productURL(a),
		Keywords:       keywords(a.Keywords),
		Images:         b.images(a),
		SalesFrequency: a.SalesFrequency,
		DateAdded:      a.Added,
		Prices:         b.prices(a, main, sellable),
		Usergroups:     b.usergroups(a),
	}
	item.Attributes = b.attributes(a, main)
	item.Properties = b.properties(a, main)
	return item, true
}

// inStock reports whether a variant has stock worth exporting. With
// HideNoInStock, closeout articles also need enough stock for the minimum
// purchase.
func (b *ItemBuilder) inStock(a *domain.Article, v *domain.Variant) bool {
	if v.InStock < 1 {
		return false
	}
	return !(b.cfg.HideNoInStock && a.LastStock && v.InStock < v.MinPurchase)
}

func (b *ItemBuilder) sellableVariants(a *domain.Article) []*domain.Variant {
	var out []*domain.Variant
	for i := range a.Variants {
		v := &a.Variants[i]
		if v.Active && b.inStock(a, v) {
			out = append(out, v)
		}
	}
	return out
}

func orderNumbers(variants []*domain.Variant) []string {
	var out []string
	for _, v := range variants {
		out = append(out, v.Number)
		if v.EAN != "" {
			out = append(out, v.EAN)
		}
		if v.SupplierNumber != "" {
			out = append(out, v.SupplierNumber)
		}
	}
	return out
}

func keywords(raw string) []string {
	var out []string
	for _, kw := range strings.Split(raw, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// prices emits the cheapest price per customer group. Groups without prices
// of their own fall back to the default group's.
func (b *ItemBuilder) prices(a *domain.Article, main *domain.Variant, sellable []*domain.Variant) []domain.ExportPrice {
	byGroup := map[string][]float64{}
	for _, v := range sellable {
		for _, p := range v.Prices {
			byGroup[p.CustomerGroup] = append(byGroup[p.CustomerGroup], p.Value)
		}
	}
	for _, p := range main.Prices {
		byGroup[p.CustomerGroup] = append(byGroup[p.CustomerGroup], p.Value)
	}

	var out []domain.ExportPrice
	for _, g := range b.groups {
		values, ok := byGroup[g.Key]
		if !ok {
			values = byGroup[domain.DefaultCustomerGroupKey]
		}
		if len(values) == 0 {
			continue
		}

		price := slices.Min(values)
		if g.TaxInclusive {
			price *= 1 + a.TaxRate/100
		}
		formatted := fmt.Sprintf("%.2f", price)

		out = append(out, domain.ExportPrice{
			Usergroup: findologic.UsergroupHash(b.shop.ShopKey, g.Key),
			Value:     formatted,
		})
		if g.Key == domain.DefaultCustomerGroupKey {
			out = append(out, domain.ExportPrice{Value: formatted})
		}
	}
	return out
}

func (b *ItemBuilder) usergroups(a *domain.Article) []string {
	var out []string
	for _, g := range b.groups {
		if a.HiddenFrom(g.Key) {
			continue
		}
		out = append(out, findologic.UsergroupHash(b.shop.ShopKey, g.Key))
	}
	return out
}

func (b *ItemBuilder) images(a *domain.Article) []domain.ExportImage {
	var out []domain.ExportImage
	for _, img := range a.Images {
		if len(img.Thumbnails) == 0 || img.Thumbnails[0] == "" {
			continue
		}
		out = append(out,
			domain.ExportImage{URL: b.absolute(img.Path), Type: domain.ImageTypeDefault},
			domain.ExportImage{URL: b.absolute(img.Thumbnails[0]), Type: domain.ImageTypeThumbnail},
		)
	}
	if len(out) == 0 {
		out = append(out, domain.ExportImage{URL: b.link(noPicturePath)})
	}
	return out
}

// categories returns the active categories below the shop root that list
// the article, either by assignment or through a product stream.
func (b *ItemBuilder) categories(a *domain.Article) []int64 {
	var out []int64
	for _, id := range slices.Concat(a.CategoryIDs, b.membership.Categories(a.ID)) {
		if slices.Contains(out, id) {
			continue
		}
		c, ok := b.tree.Get(id)
		if !ok || !c.Active || !b.tree.IsChildOf(id, b.shop.RootCategoryID) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (b *ItemBuilder) attributes(a *domain.Article, main *domain.Variant) []domain.ExportAttribute {
	var catURLs, cats []string
	for _, id := range b.categories(a) {
		path := b.tree.Path(id, b.shop.RootCategoryID)
		if u := slug.Path(path...); !slices.Contains(catURLs, u) {
			catURLs = append(catURLs, u)
		}
		if name := engine.CategoryToken(path); name != "" && !slices.Contains(cats, name) {
			cats = append(cats, name)
		}
	}

	out := []domain.ExportAttribute{
		{Key: "cat_url", Values: catURLs},
		{Key: "cat", Values: cats},
	}

	if a.Supplier != nil {
		out = append(out, domain.ExportAttribute{Key: "brand", Values: []string{a.Supplier.Name}})
	}

	for _, pv := range a.Properties {
		if strings.TrimSpace(pv.Value) != "" {
			out = append(out, domain.ExportAttribute{Key: pv.Option, Values: []string{pv.Value}})
		}
	}

	out = append(out, variantOptions(a)...)

	out = append(out,
		domain.ExportAttribute{Key: "new", Values: []string{flag(b.isNew(a))}},
		domain.ExportAttribute{Key: "free_shipping", Values: []string{flag(main.ShippingFree)}},
		domain.ExportAttribute{Key: "sale", Values: []string{flag(a.LastStock)}},
	)
	return out
}

// variantOptions groups the configurator options by group name, keeping
// only the options some active variant carries in its additional text.
func variantOptions(a *domain.Article) []domain.ExportAttribute {
	var used []string
	for _, v := range a.Variants {
		if !v.Active || v.AdditionalText == "" {
			continue
		}
		used = append(used, strings.Split(v.AdditionalText, " / ")...)
	}

	var out []domain.ExportAttribute
	index := map[string]int{}
	for _, opt := range a.ConfiguratorOptions {
		if len(used) > 0 && !slices.Contains(used, opt.Name) {
			continue
		}
		i, ok := index[opt.Group]
		if !ok {
			i = len(out)
			index[opt.Group] = i
			out = append(out, domain.ExportAttribute{Key: opt.Group})
		}
		out[i].Values = append(out[i].Values, opt.Name)
	}
	return out
}

func (b *ItemBuilder) isNew(a *domain.Article) bool {
	until := a.Added.AddDate(0, 0, b.cfg.MarkAsNewDays)
	return b.now.Before(until)
}

func (b *ItemBuilder) properties(a *domain.Article, main *domain.Variant) []domain.ExportProperty {
	var out []domain.ExportProperty
	add := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			out = append(out, domain.ExportProperty{Key: key, Value: value})
		}
	}

	if a.Highlight {
		add("highlight", "1")
	}
	add("tax", number(a.TaxRate))
	add("shippingtime", main.ShippingTime)
	add("purchaseunit", number(main.PurchaseUnit))
	add("referenceunit", number(main.ReferenceUnit))
	add("packunit", main.PackUnit)
	if main.InStock != 0 {
		add("quantity", strconv.Itoa(main.InStock))
	}
	add("weight", number(main.Weight))
	add("width", number(main.Width))
	add("height", number(main.Height))
	add("length", number(main.Length))
	if main.ReleaseDate != nil {
		add("release_date", main.ReleaseDate.Format(time.RFC3339))
	}

	for n := 1; n <= domain.FreeTextSlots; n++ {
		if v, ok := a.Attributes.Slot(n); ok {
			add("attr"+strconv.Itoa(n), v)
		}
	}

	add("wishlistUrl", b.link(wishlistPath+main.Number))
	add("compareUrl", b.link(comparePath+strconv.FormatInt(a.ID, 10)))
	add("addToCartUrl", b.link(cartPath+main.Number))
	if a.Supplier != nil && a.Supplier.Image != "" {
		add("brand_image", b.link(a.Supplier.Image))
	}
	return out
}

// productURL is the SEO detail URL: category path, id, then name.
func (b *ItemBuilder) productURL(a *domain.Article) string {
	var segments []string
	if cats := b.categories(a); len(cats) > 0 {
		segments = b.tree.Path(cats[0], b.shop.RootCategoryID)
	}
	segments = append(segments, strconv.FormatInt(a.ID, 10), a.Name)
	return b.link(strings.TrimPrefix(slug.Path(segments...), "/"))
}

// link resolves a storefront path against the shop base URL.
func (b *ItemBuilder) link(path string) string {
	base := b.shop.BaseURL
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimPrefix(path, "/")
}

func (b *ItemBuilder) absolute(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return b.link(path)
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// cleanString strips markup and entities and collapses whitespace.
func cleanString(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func number(f float64) string {
	if f == 0 || math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
