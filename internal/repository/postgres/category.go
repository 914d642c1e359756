package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/pkg/database"
)

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	pool database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(pool database.DBTX) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

// ListAll returns every category, active or not, with its bound product
// stream, ordered by id.
func (r *CategoryRepository) ListAll(ctx context.Context) (_ []domain.Category, err error) {
	query := `
		SELECT c.id, c.parent_id, c.name, c.position, c.active,
		       s.id, s.name, s.criteria
		FROM categories c
		LEFT JOIN product_streams s ON s.id = c.stream_id
		ORDER BY c.id`

	ctx, end := database.TraceQuery(ctx, "ListCategories", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var (
			c          domain.Category
			streamID   *int64
			streamName *string
			criteria   []byte
		)
		if err := rows.Scan(
			&c.ID,
			&c.ParentID,
			&c.Name,
			&c.Position,
			&c.Active,
			&streamID,
			&streamName,
			&criteria,
		); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}

		if streamID != nil {
			c.Stream = &domain.ProductStream{ID: *streamID}
			if streamName != nil {
				c.Stream.Name = *streamName
			}
			if len(criteria) > 0 {
				if err := json.Unmarshal(criteria, &c.Stream.Criteria); err != nil {
					return nil, fmt.Errorf("decode criteria of stream %d: %w", *streamID, err)
				}
			}
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}

	return categories, nil
}
