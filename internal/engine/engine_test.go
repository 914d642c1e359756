package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/finsearch/internal/domain"
)

func pid(v int64) *int64 { return &v }

func TestNewDocument(t *testing.T) {
	tree := domain.NewCategoryTree([]domain.Category{
		{ID: 1, Name: "Root"},
		{ID: 2, ParentID: pid(1), Name: "Damen"},
		{ID: 3, ParentID: pid(2), Name: "Schuhe"},
	})
	added := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	a := &domain.Article{
		ID:            7,
		Name:          "Sneaker",
		Active:        true,
		Added:         added,
		CategoryIDs:   []int64{3},
		MainVariantID: 70,
		Supplier:      &domain.Supplier{Name: "Nike"},
		Properties:    []domain.PropertyValue{{Option: "Größe", Value: "42,5"}, {Option: "Farbe", Value: "rot"}},
		Variants: []domain.Variant{
			{ID: 70, Number: "SW-7", Active: true, Prices: []domain.Price{{CustomerGroup: "EK", Value: 59.9}, {CustomerGroup: "H", Value: 40}}},
			{ID: 71, Number: "SW-7.1", Active: true, Prices: []domain.Price{{CustomerGroup: "EK", Value: 49.9}}},
			{ID: 72, Number: "SW-7.2", Active: false, Prices: []domain.Price{{CustomerGroup: "EK", Value: 9.9}}},
		},
	}

	doc := NewDocument(a, tree)
	assert.Equal(t, domain.BaseProduct{ID: 7, VariantID: 70, Number: "SW-7"}, doc.BaseProduct())
	assert.Equal(t, 49.9, doc.Price, "inactive variants do not count")
	assert.ElementsMatch(t, []string{
		"Root", "Root_Damen", "Root_Damen_Schuhe", "Damen", "Damen_Schuhe", "Schuhe",
	}, doc.CategoryTokens)

	sizes := doc.PropertyValues("Größe")
	require.Len(t, sizes, 1)
	require.NotNil(t, sizes[0].Number)
	assert.Equal(t, 42.5, *sizes[0].Number)
	assert.Nil(t, doc.PropertyValues("Farbe")[0].Number)
	assert.Equal(t, "Nike", doc.PropertyValues("vendor")[0].Value)
}
