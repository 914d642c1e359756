package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/pkg/database"
	apperrors "github.com/utafrali/finsearch/pkg/errors"
)

// ShopRepository implements repository.ShopRepository using PostgreSQL.
type ShopRepository struct {
	pool database.DBTX
}

// NewShopRepository creates a new PostgreSQL-backed shop repository.
func NewShopRepository(pool database.DBTX) *ShopRepository {
	return &ShopRepository{pool: pool}
}

// GetByKey retrieves the shop bound to a provider shop key.
func (r *ShopRepository) GetByKey(ctx context.Context, shopKey string) (_ *domain.Shop, err error) {
	query := `
		SELECT id, name, shop_key, root_category_id, base_url, active
		FROM shops
		WHERE shop_key = $1`

	ctx, end := database.TraceQuery(ctx, "GetShopByKey", query)
	defer func() { end(err) }()

	var s domain.Shop
	err = r.pool.QueryRow(ctx, query, shopKey).Scan(
		&s.ID,
		&s.Name,
		&s.ShopKey,
		&s.RootCategoryID,
		&s.BaseURL,
		&s.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("shop", shopKey)
		}
		return nil, fmt.Errorf("get shop by key: %w", err)
	}

	return &s, nil
}

// CustomerGroupRepository implements repository.CustomerGroupRepository using PostgreSQL.
type CustomerGroupRepository struct {
	pool database.DBTX
}

// NewCustomerGroupRepository creates a new PostgreSQL-backed customer group repository.
func NewCustomerGroupRepository(pool database.DBTX) *CustomerGroupRepository {
	return &CustomerGroupRepository{pool: pool}
}

// List returns all customer groups ordered by key.
func (r *CustomerGroupRepository) List(ctx context.Context) ([]domain.CustomerGroup, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, name, tax_inclusive FROM customer_groups ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list customer groups: %w", err)
	}
	defer rows.Close()

	groups := []domain.CustomerGroup{}
	for rows.Next() {
		var g domain.CustomerGroup
		if err := rows.Scan(&g.Key, &g.Name, &g.TaxInclusive); err != nil {
			return nil, fmt.Errorf("scan customer group row: %w", err)
		}
		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer group rows: %w", err)
	}

	return groups, nil
}
