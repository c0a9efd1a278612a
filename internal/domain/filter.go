package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// RawListingQuery carries catalog query parameters exactly as received.
// Empty strings mean the parameter was not supplied.
type RawListingQuery struct {
	Search         string
	Brand          string
	Size           string
	Condition      string
	MinPrice       string
	MaxPrice       string
	Currency       string
	Ordering       string
	SellerUsername string
}

// ListingFilter is a validated set of predicates. Every set field must hold
// for a listing to match; zero-valued fields impose no constraint.
type ListingFilter struct {
	// Search is stored lower-cased.
	Search         string
	Brand          string
	Size           *float64
	Condition      Condition
	MinPrice       *decimal.Decimal
	MaxPrice       *decimal.Decimal
	Currency       Currency
	SellerUsername string
}

// ParseListingQuery validates raw query input and builds the filter and
// ordering. It returns InvalidFilter naming the first offending field, or
// InvalidRange when min_price exceeds max_price.
func ParseListingQuery(raw RawListingQuery) (ListingFilter, Ordering, error) {
	var f ListingFilter

	f.Search = strings.ToLower(strings.TrimSpace(raw.Search))
	f.SellerUsername = strings.TrimSpace(raw.SellerUsername)

	if b := strings.TrimSpace(raw.Brand); b != "" {
		if !IsValidBrand(b) {
			return ListingFilter{}, "", apperrors.InvalidFilter("brand",
				fmt.Sprintf("brand must be one of %s", strings.Join(Brands, ", ")))
		}
		f.Brand = b
	}

	if s := strings.TrimSpace(raw.Size); s != "" {
		size, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(size) || math.IsInf(size, 0) {
			return ListingFilter{}, "", apperrors.InvalidFilter("size", "size must be a number")
		}
		f.Size = &size
	}

	if c := Condition(strings.TrimSpace(raw.Condition)); c != "" {
		if !IsValidCondition(c) {
			return ListingFilter{}, "", apperrors.InvalidFilter("condition", "condition must be New or Used")
		}
		f.Condition = c
	}

	if c := Currency(strings.ToUpper(strings.TrimSpace(raw.Currency))); c != "" {
		if !IsValidCurrency(c) {
			return ListingFilter{}, "", apperrors.InvalidFilter("currency", "currency must be EUR, USD or GBP")
		}
		f.Currency = c
	}

	var err error
	if f.MinPrice, err = parsePrice("min_price", raw.MinPrice); err != nil {
		return ListingFilter{}, "", err
	}
	if f.MaxPrice, err = parsePrice("max_price", raw.MaxPrice); err != nil {
		return ListingFilter{}, "", err
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return ListingFilter{}, "", apperrors.InvalidRange("min_price must not exceed max_price")
	}

	ordering, err := ParseOrdering(raw.Ordering)
	if err != nil {
		return ListingFilter{}, "", err
	}

	return f, ordering, nil
}

func parsePrice(field, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, apperrors.InvalidFilter(field, field+" must be a decimal number")
	}
	if !IsValidPrice(d) {
		return nil, apperrors.InvalidFilter(field, field+" must be between 0 and "+MaxPrice.StringFixed(PriceScale)+" with at most 2 decimals")
	}
	return &d, nil
}

// Matches reports whether l satisfies every predicate of f. Price bounds are
// compared against the listing's own currency amount without conversion.
func (f ListingFilter) Matches(l *Listing) bool {
	if f.Search != "" &&
		!strings.Contains(strings.ToLower(l.Title), f.Search) &&
		!strings.Contains(strings.ToLower(l.Brand), f.Search) {
		return false
	}
	if f.Brand != "" && l.Brand != f.Brand {
		return false
	}
	if f.Size != nil && l.Size != *f.Size {
		return false
	}
	if f.Condition != "" && l.Condition != f.Condition {
		return false
	}
	if f.Currency != "" && l.Currency != f.Currency {
		return false
	}
	if f.MinPrice != nil && l.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && l.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.SellerUsername != "" && l.SellerUsername != f.SellerUsername {
		return false
	}
	return true
}

// IsEmpty reports whether f imposes no constraint at all.
func (f ListingFilter) IsEmpty() bool {
	return f == ListingFilter{}
}
