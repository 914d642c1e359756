package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func request(query string) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/api/v1/search?"+query, nil)
}

func TestFromRequest_Defaults(t *testing.T) {
	p := FromRequest(request(""))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 0, p.Offset)
}

func TestFromRequest_Values(t *testing.T) {
	p := FromRequest(request("page=3&per_page=10"))
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 10, p.PerPage)
	assert.Equal(t, 20, p.Offset)
}

func TestFromRequest_InvalidFallsBack(t *testing.T) {
	p := FromRequest(request("page=-2&per_page=1000"))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)

	p = FromRequest(request("page=abc&per_page=0"))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
}

func TestWindow_Apply(t *testing.T) {
	tests := []struct {
		name   string
		w      Window
		n      int
		lo, hi int
	}{
		{"unbounded", Window{}, 5, 0, 5},
		{"unbounded with offset", Window{Offset: 2}, 5, 2, 5},
		{"first page", Window{Offset: 0, Length: 1}, 2, 0, 1},
		{"second page", Window{Offset: 1, Length: 1}, 2, 1, 2},
		{"past end", Window{Offset: 10, Length: 5}, 3, 3, 3},
		{"clipped", Window{Offset: 2, Length: 5}, 4, 2, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := tt.w.Apply(tt.n)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestWindowFromRequest(t *testing.T) {
	w, ok := WindowFromRequest(request("start=10&count=20"), "start", "count")
	assert.True(t, ok)
	assert.Equal(t, Window{Offset: 10, Length: 20}, w)
	assert.False(t, w.Unbounded())

	w, ok = WindowFromRequest(request(""), "start", "count")
	assert.True(t, ok)
	assert.True(t, w.Unbounded())

	_, ok = WindowFromRequest(request("start=-1"), "start", "count")
	assert.False(t, ok)

	_, ok = WindowFromRequest(request("count=ten"), "start", "count")
	assert.False(t, ok)
}
