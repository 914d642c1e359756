package pagination

import (
	"net/http"
	"strconv"
)

const (
	DefaultPerPage = 24
	MaxPerPage     = 100
)

// Params holds page-based pagination extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams returns the storefront listing defaults.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// FromRequest reads page and per_page. Invalid or out-of-range values fall
// back to the defaults.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if v, ok := positiveInt(q.Get("page")); ok {
		p.Page = v
	}
	if v, ok := positiveInt(q.Get("per_page")); ok && v <= MaxPerPage {
		p.PerPage = v
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

// Window is an offset/length slice of a larger sequence, as used by the
// export feed (start and count). A zero Length means "everything from Offset".
type Window struct {
	Offset int
	Length int
}

// Unbounded reports whether the window has no length limit.
func (w Window) Unbounded() bool {
	return w.Length <= 0
}

// Apply returns the bounds [lo, hi) of the window over n items.
func (w Window) Apply(n int) (lo, hi int) {
	lo = min(max(w.Offset, 0), n)
	if w.Unbounded() {
		return lo, n
	}
	return lo, min(lo+w.Length, n)
}

// WindowFromRequest reads an offset/length pair from the named query params.
// ok is false when either value is present but not a non-negative integer.
func WindowFromRequest(r *http.Request, offsetParam, lengthParam string) (w Window, ok bool) {
	q := r.URL.Query()

	if raw := q.Get(offsetParam); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Window{}, false
		}
		w.Offset = v
	}
	if raw := q.Get(lengthParam); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Window{}, false
		}
		w.Length = v
	}
	return w, true
}

func positiveInt(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
