package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestSearchCriteria_SearchTerm(t *testing.T) {
	c := NewSearchCriteria(0, 24)
	_, ok := c.SearchTerm()
	assert.False(t, ok)
	assert.False(t, c.IsSearch())

	c.AddCondition(SearchTermCondition(""))
	assert.False(t, c.IsSearch(), "empty term is a browse")

	c.AddCondition(SearchTermCondition("Jacke"))
	term, ok := c.SearchTerm()
	require.True(t, ok)
	assert.Equal(t, "Jacke", term)
	assert.Len(t, c.ConditionsOf(ConditionSearch), 1, "second term replaces the first")
}

func TestSearchCriteria_ConditionsOf_KeepsOrder(t *testing.T) {
	c := NewSearchCriteria(0, 10).
		AddCondition(PropertyCondition("color", "red")).
		AddCondition(CategoryCondition("Damen", "Schuhe")).
		AddCondition(PropertyCondition("size", "42"))

	props := c.ConditionsOf(ConditionProperty)
	require.Len(t, props, 2)
	assert.Equal(t, "color", props[0].Name)
	assert.Equal(t, "size", props[1].Name)
}

func TestSearchCriteria_Facets(t *testing.T) {
	c := NewSearchCriteria(0, 10)
	c.AddFacet(FacetRegistration{Name: "brand", Label: "Marke"})
	c.AddFacet(FacetRegistration{Name: "color", Label: "Farbe"})
	c.AddFacet(FacetRegistration{Name: "brand", Label: "Hersteller"})

	f, ok := c.Facet("brand")
	require.True(t, ok)
	assert.Equal(t, "Hersteller", f.Label)
	assert.Len(t, c.Facets(), 2)

	c.ResetFacets()
	_, ok = c.Facet("brand")
	assert.False(t, ok)
	assert.Empty(t, c.Facets())
}

func TestSearchCriteria_Clone_IsDeep(t *testing.T) {
	orig := NewSearchCriteria(5, 10).
		AddCondition(PropertyCondition("color", "red")).
		AddCondition(PriceCondition(ptr(1), ptr(9)))
	orig.AddFacet(FacetRegistration{Name: "color"})

	cp := orig.Clone()
	cp.Conditions[0].Values[0] = "blue"
	*cp.Conditions[1].Min = 100
	cp.ResetFacets()

	assert.Equal(t, "red", orig.Conditions[0].Values[0])
	assert.Equal(t, 1.0, *orig.Conditions[1].Min)
	_, ok := orig.Facet("color")
	assert.True(t, ok)
	assert.Equal(t, 5, cp.Offset)
}

func TestCondition_Ranged(t *testing.T) {
	assert.True(t, PriceCondition(ptr(1), nil).Ranged())
	assert.True(t, PropertyRangeCondition("width", nil, ptr(3)).Ranged())
	assert.False(t, PropertyCondition("color", "red").Ranged())
}

func TestFreeTextAttributes_Slot(t *testing.T) {
	var a FreeTextAttributes
	a[0] = "first"
	a[19] = "last"

	v, ok := a.Slot(1)
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	v, ok = a.Slot(20)
	assert.True(t, ok)
	assert.Equal(t, "last", v)

	_, ok = a.Slot(0)
	assert.False(t, ok)
	_, ok = a.Slot(21)
	assert.False(t, ok)
}

func TestHasFacet(t *testing.T) {
	facets := []Facet{
		NewTreeFacet("brand", "Marke", false, nil),
		NewRangeFacet("price", "Preis", 1, 2, 1, 2),
	}
	assert.True(t, HasFacet(facets, "price"))
	assert.False(t, HasFacet(facets, "color"))
	assert.Equal(t, "von", facets[1].(*RangeFacet).MinFieldName)
}
