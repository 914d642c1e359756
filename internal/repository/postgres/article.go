package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/pkg/database"
	"github.com/utafrali/finsearch/pkg/pagination"
)

// articleColumns is the standard SELECT column list for articles.
const articleColumns = `a.id, a.name, a.description, a.description_long, a.keywords,
	a.active, a.highlight, a.last_stock, a.added, a.tax_rate, a.sales_frequency,
	a.supplier_name, a.supplier_image, a.main_variant_id, a.hidden_from_groups,
	a.attributes, a.images, a.properties, a.configurator_options`

// variantColumns is the standard SELECT column list for variants.
const variantColumns = `id, article_id, number, ean, supplier_number, additional_text,
	active, in_stock, min_purchase, shipping_free, shipping_time, purchase_unit,
	reference_unit, pack_unit, weight, width, height, length, release_date, prices`

// ArticleRepository implements repository.ArticleRepository using PostgreSQL.
// Articles are read with their variants and category assignments.
type ArticleRepository struct {
	pool database.DBTX
}

// NewArticleRepository creates a new PostgreSQL-backed article repository.
func NewArticleRepository(pool database.DBTX) *ArticleRepository {
	return &ArticleRepository{pool: pool}
}

// CountActive returns the number of active articles.
func (r *ArticleRepository) CountActive(ctx context.Context) (n int, err error) {
	query := `SELECT COUNT(*) FROM articles WHERE active`

	ctx, end := database.TraceQuery(ctx, "CountActiveArticles", query)
	defer func() { end(err) }()

	if err = r.pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active articles: %w", err)
	}
	return n, nil
}

// ListActive returns active articles ordered by id within w.
func (r *ArticleRepository) ListActive(ctx context.Context, w pagination.Window) (_ []domain.Article, err error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM articles a
		WHERE a.active
		ORDER BY a.id
		OFFSET $1 LIMIT $2`, articleColumns)

	ctx, end := database.TraceQuery(ctx, "ListActiveArticles", query)
	defer func() { end(err) }()

	// A NULL limit is no limit.
	var limit any
	if !w.Unbounded() {
		limit = w.Length
	}
	return r.load(ctx, query, max(w.Offset, 0), limit)
}

// ListInCategory returns every article assigned to rootID or one of its
// descendants, ordered by id.
func (r *ArticleRepository) ListInCategory(ctx context.Context, rootID int64) (_ []domain.Article, err error) {
	query := fmt.Sprintf(`
		WITH RECURSIVE tree AS (
			SELECT id FROM categories WHERE id = $1
			UNION
			SELECT c.id FROM categories c JOIN tree t ON c.parent_id = t.id
		)
		SELECT %s
		FROM articles a
		WHERE EXISTS (
			SELECT 1 FROM article_categories ac
			JOIN tree t ON t.id = ac.category_id
			WHERE ac.article_id = a.id
		)
		ORDER BY a.id`, articleColumns)

	ctx, end := database.TraceQuery(ctx, "ListArticlesInCategory", query)
	defer func() { end(err) }()

	return r.load(ctx, query, rootID)
}

// LookupBaseProducts maps article ids to the main variant identity of
// active articles.
func (r *ArticleRepository) LookupBaseProducts(ctx context.Context, ids []int64) (_ map[int64]domain.BaseProduct, err error) {
	out := make(map[int64]domain.BaseProduct, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT a.id, v.id, v.number
		FROM articles a
		JOIN variants v ON v.id = a.main_variant_id
		WHERE a.active AND a.id = ANY($1)`

	ctx, end := database.TraceQuery(ctx, "LookupBaseProducts", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup base products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bp domain.BaseProduct
		if err := rows.Scan(&bp.ID, &bp.VariantID, &bp.Number); err != nil {
			return nil, fmt.Errorf("scan base product row: %w", err)
		}
		out[bp.ID] = bp
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate base product rows: %w", err)
	}
	return out, nil
}

// load runs an article query and attaches variants and categories.
func (r *ArticleRepository) load(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}

	articles, err := pgx.CollectRows(rows, scanArticle)
	if err != nil {
		return nil, fmt.Errorf("scan article rows: %w", err)
	}
	if len(articles) == 0 {
		return []domain.Article{}, nil
	}

	ids := make([]int64, len(articles))
	index := make(map[int64]*domain.Article, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
		index[articles[i].ID] = &articles[i]
	}

	if err := r.attachVariants(ctx, ids, index); err != nil {
		return nil, err
	}
	if err := r.attachCategories(ctx, ids, index); err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *ArticleRepository) attachVariants(ctx context.Context, ids []int64, index map[int64]*domain.Article) error {
	query := fmt.Sprintf(`SELECT %s FROM variants WHERE article_id = ANY($1) ORDER BY article_id, id`, variantColumns)

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v         domain.Variant
			articleID int64
			prices    []byte
		)
		if err := rows.Scan(
			&v.ID,
			&articleID,
			&v.Number,
			&v.EAN,
			&v.SupplierNumber,
			&v.AdditionalText,
			&v.Active,
			&v.InStock,
			&v.MinPurchase,
			&v.ShippingFree,
			&v.ShippingTime,
			&v.PurchaseUnit,
			&v.ReferenceUnit,
			&v.PackUnit,
			&v.Weight,
			&v.Width,
			&v.Height,
			&v.Length,
			&v.ReleaseDate,
			&prices,
		); err != nil {
			return fmt.Errorf("scan variant row: %w", err)
		}
		if err := decodeJSON(prices, &v.Prices); err != nil {
			return fmt.Errorf("decode prices of variant %d: %w", v.ID, err)
		}
		if a, ok := index[articleID]; ok {
			a.Variants = append(a.Variants, v)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate variant rows: %w", err)
	}
	return nil
}

func (r *ArticleRepository) attachCategories(ctx context.Context, ids []int64, index map[int64]*domain.Article) error {
	rows, err := r.pool.Query(ctx,
		`SELECT article_id, category_id FROM article_categories WHERE article_id = ANY($1) ORDER BY article_id, category_id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("list article categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var articleID, categoryID int64
		if err := rows.Scan(&articleID, &categoryID); err != nil {
			return fmt.Errorf("scan article category row: %w", err)
		}
		if a, ok := index[articleID]; ok {
			a.CategoryIDs = append(a.CategoryIDs, categoryID)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate article category rows: %w", err)
	}
	return nil
}

func scanArticle(row pgx.CollectableRow) (domain.Article, error) {
	var (
		a                                domain.Article
		added                            time.Time
		supplierName, supplierImage      *string
		attributes                       []string
		images, properties, configurator []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&a.DescriptionLong,
		&a.Keywords,
		&a.Active,
		&a.Highlight,
		&a.LastStock,
		&added,
		&a.TaxRate,
		&a.SalesFrequency,
		&supplierName,
		&supplierImage,
		&a.MainVariantID,
		&a.HiddenFromGroups,
		&attributes,
		&images,
		&properties,
		&configurator,
	); err != nil {
		return a, err
	}

	a.Added = added.UTC()
	if supplierName != nil {
		a.Supplier = &domain.Supplier{Name: *supplierName}
		if supplierImage != nil {
			a.Supplier.Image = *supplierImage
		}
	}
	copy(a.Attributes[:], attributes)

	if err := decodeJSON(images, &a.Images); err != nil {
		return a, fmt.Errorf("decode images of article %d: %w", a.ID, err)
	}
	if err := decodeJSON(properties, &a.Properties); err != nil {
		return a, fmt.Errorf("decode properties of article %d: %w", a.ID, err)
	}
	if err := decodeJSON(configurator, &a.ConfiguratorOptions); err != nil {
		return a, fmt.Errorf("decode configurator options of article %d: %w", a.ID, err)
	}
	return a, nil
}

func decodeJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
