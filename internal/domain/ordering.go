package domain

import (
	"cmp"
	"slices"
	"strings"

	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// Ordering is a catalog sort order. Every ordering breaks ties on id
// ascending, so it is total.
type Ordering string

const (
	OrderNewest    Ordering = "-created_at"
	OrderOldest    Ordering = "created_at"
	OrderPriceAsc  Ordering = "price"
	OrderPriceDesc Ordering = "-price"
)

// DefaultOrdering applies when the client does not ask for one.
const DefaultOrdering = OrderNewest

// Orderings lists the accepted orderings.
var Orderings = []Ordering{OrderNewest, OrderOldest, OrderPriceAsc, OrderPriceDesc}

// ParseOrdering maps the ordering query parameter to an Ordering.
func ParseOrdering(raw string) (Ordering, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultOrdering, nil
	}
	o := Ordering(raw)
	if !slices.Contains(Orderings, o) {
		return "", apperrors.InvalidFilter("ordering", "ordering must be one of -created_at, created_at, price, -price")
	}
	return o, nil
}

// Descending reports whether the primary key sorts high to low.
func (o Ordering) Descending() bool {
	return strings.HasPrefix(string(o), "-")
}

// Field returns the primary sort key without its direction prefix.
func (o Ordering) Field() string {
	return strings.TrimPrefix(string(o), "-")
}

// CompareListings orders a and b under o.
func CompareListings(a, b *Listing, o Ordering) int {
	var c int
	switch o.Field() {
	case "price":
		c = a.Price.Cmp(b.Price)
	default:
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if o.Descending() {
		c = -c
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortListings sorts ls in place under o.
func SortListings(ls []*Listing, o Ordering) {
	slices.SortFunc(ls, func(a, b *Listing) int {
		return CompareListings(a, b, o)
	})
}
