package pagination

import (
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Params carries the page window requested by a client.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"-"`
}

// DefaultParams is the window used when the client sends nothing: first page,
// 20 items.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: defaultPerPage}
}

// FromRequest reads page and per_page from the query string. Values that are
// missing, non-numeric, non-positive, or above the per-page cap fall back to
// the defaults.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()

	if v := positiveInt(r.URL.Query().Get("page")); v > 0 {
		p.Page = v
	}
	if v := positiveInt(r.URL.Query().Get("per_page")); v > 0 && v <= maxPerPage {
		p.PerPage = v
	}

	p.Offset = (p.Page - 1) * p.PerPage
	return p
}

func positiveInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
