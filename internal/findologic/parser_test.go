package findologic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/finsearch/internal/domain"
)

const fullResponse = `<?xml version="1.0" encoding="UTF-8"?>
<searchResult>
  <servers><frontend>frontend.findologic.com</frontend><backend>backend.findologic.com</backend></servers>
  <query><limit first="0" count="2"/><queryString>schuh</queryString></query>
  <results><count>57</count></results>
  <products>
    <product id="101" relevance="12.3"/>
    <product id="102" relevance="11.0"/>
  </products>
  <filters>
    <filter>
      <name>cat</name>
      <display>Kategorie</display>
      <select>single</select>
      <type>select</type>
      <items>
        <item>
          <name>Damen</name>
          <frequency>30</frequency>
          <items>
            <item>
              <name>Schuhe</name>
              <items>
                <item><name>Sneaker</name></item>
                <item><name>Pumps</name></item>
              </items>
            </item>
          </items>
        </item>
        <item selected="1"><name>Herren</name><frequency>27</frequency></item>
      </items>
    </filter>
    <filter>
      <name>price</name>
      <display>Preis</display>
      <type>range-slider</type>
      <attributes>
        <selectedRange><min>4.99</min><max>59.5</max></selectedRange>
        <totalRange><min>1</min><max>199</max></totalRange>
      </attributes>
    </filter>
    <filter>
      <name>color</name>
      <display>Farbe</display>
      <type>color</type>
    </filter>
  </filters>
</searchResult>`

func TestParse_Full(t *testing.T) {
	resp, err := Parse([]byte(fullResponse))
	require.NoError(t, err)

	assert.Equal(t, 57, resp.TotalCount, "count is authoritative even with fewer rows")
	assert.Equal(t, []string{"101", "102"}, resp.ProductIDs)
	assert.False(t, resp.HasRedirect())

	require.Len(t, resp.Filters, 3)

	cat := resp.Filters[0]
	assert.Equal(t, domain.FilterSelect, cat.Kind)
	assert.Equal(t, "Kategorie", cat.DisplayLabel)
	require.Len(t, cat.Items, 2)
	assert.Equal(t, 30, cat.Items[0].Frequency)
	assert.Equal(t, "Sneaker", cat.Items[0].Children[0].Children[0].Name)
	assert.True(t, cat.Items[1].Selected)

	price := resp.Filters[1]
	assert.Equal(t, domain.FilterRange, price.Kind)
	require.NotNil(t, price.Range)
	assert.Equal(t, domain.RangeBounds{Min: 1, Max: 199, SelectedMin: 4.99, SelectedMax: 59.5}, *price.Range)

	assert.Equal(t, domain.FilterUnsupported, resp.Filters[2].Kind)
}

func TestParse_Minimal(t *testing.T) {
	resp, err := Parse([]byte(`<searchResult><results><count>0</count></results></searchResult>`))
	require.NoError(t, err)
	assert.Equal(t, 0, resp.TotalCount)
	assert.Empty(t, resp.ProductIDs)
	assert.Empty(t, resp.Filters)
}

func TestParse_RowsBeyondCountAreIgnored(t *testing.T) {
	resp, err := Parse([]byte(`<searchResult><results><count>1</count></results>
		<products><product id="1"/><product id="2"/></products></searchResult>`))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, resp.ProductIDs)
	assert.LessOrEqual(t, len(resp.ProductIDs), resp.TotalCount)
}

func TestParse_LandingPage(t *testing.T) {
	resp, err := Parse([]byte(`<searchResult><landingPage link="https://shop.example.com/agb"/>
		<results><count>0</count></results></searchResult>`))
	require.NoError(t, err)
	assert.True(t, resp.HasRedirect())
	assert.Equal(t, "https://shop.example.com/agb", resp.RedirectTarget)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not xml", "<<<"},
		{"truncated", "<searchResult><results><count>3</count>"},
		{"wrong root", "<html><body>502 Bad Gateway</body></html>"},
		{"missing results", "<searchResult><products/></searchResult>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.ErrorIs(t, err, domain.ErrMalformedResponse)
		})
	}
}
