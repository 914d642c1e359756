package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(v int64) *int64 { return &v }

func testCategories() []Category {
	return []Category{
		{ID: 1, Name: "Root", Active: true},
		{ID: 3, ParentID: id(1), Name: "Deutsch", Active: true},
		{ID: 5, ParentID: id(3), Name: "Genuss", Active: true, Position: 2},
		{ID: 6, ParentID: id(3), Name: "Sport", Active: false, Position: 1},
		{ID: 7, ParentID: id(5), Name: "Öle & Essig", Active: true},
	}
}

func TestCategoryTree_Links(t *testing.T) {
	tree := NewCategoryTree(testCategories())

	require.Len(t, tree.Roots(), 1)
	assert.Equal(t, int64(1), tree.Roots()[0].ID)

	children := tree.Children(3)
	require.Len(t, children, 2)
	assert.Equal(t, int64(6), children[0].ID, "ordered by position")
	assert.Equal(t, int64(5), children[1].ID)

	leaf, ok := tree.Get(7)
	require.True(t, ok)
	assert.True(t, leaf.IsLeaf())
}

func TestCategoryTree_IsChildOf(t *testing.T) {
	tree := NewCategoryTree(testCategories())

	assert.True(t, tree.IsChildOf(7, 3))
	assert.True(t, tree.IsChildOf(7, 1))
	assert.False(t, tree.IsChildOf(3, 3), "a category is not its own child")
	assert.False(t, tree.IsChildOf(3, 5))
	assert.False(t, tree.IsChildOf(99, 1))
}

func TestCategoryTree_Path(t *testing.T) {
	tree := NewCategoryTree(testCategories())
	assert.Equal(t, []string{"Genuss", "Öle & Essig"}, tree.Path(7, 3))
	assert.Equal(t, []string{"Deutsch", "Genuss", "Öle & Essig"}, tree.Path(7, 1))
}

func TestCategoryTree_CycleDoesNotLoop(t *testing.T) {
	tree := NewCategoryTree([]Category{
		{ID: 1, ParentID: id(2), Name: "A"},
		{ID: 2, ParentID: id(1), Name: "B"},
		{ID: 3, ParentID: id(3), Name: "Self"},
	})

	assert.Len(t, tree.Roots(), 3)
	assert.False(t, tree.IsChildOf(1, 3))
	assert.NotNil(t, tree.Path(1, 99))
}

func TestStreamMembership_AddAndMerge(t *testing.T) {
	a := StreamMembership{}
	a.Add(10, 5)
	a.Add(10, 5)
	a.Add(11, 5)

	b := StreamMembership{}
	b.Add(10, 7)

	merged := a.Merge(b)
	assert.Equal(t, []int64{5, 7}, merged.Categories(10))
	assert.Equal(t, []int64{5}, merged.Categories(11))
	assert.Equal(t, []int64{5}, a.Categories(10), "inputs are not mutated")
	assert.True(t, merged.Has(11))
	assert.False(t, merged.Has(12))
}

func TestArticle_MainVariant(t *testing.T) {
	a := Article{
		ID:            1,
		MainVariantID: 20,
		Variants:      []Variant{{ID: 21, Number: "SW-1.1"}, {ID: 20, Number: "SW-1"}},
	}
	v, ok := a.MainVariant()
	require.True(t, ok)
	assert.Equal(t, "SW-1", v.Number)
	assert.Equal(t, BaseProduct{ID: 1, VariantID: 20, Number: "SW-1"}, a.BaseProduct())

	a.MainVariantID = 99
	_, ok = a.MainVariant()
	assert.False(t, ok)
}
