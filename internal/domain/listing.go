package domain

import (
	"math"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Condition of a listed pair.
type Condition string

const (
	ConditionNew  Condition = "New"
	ConditionUsed Condition = "Used"
)

// Currency a listing is priced in.
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

// Size domain, in half steps.
const (
	MinSize = 35.0
	MaxSize = 49.5
)

// Text limits of the listing store.
const (
	MaxTitleLen       = 100
	MaxContactInfoLen = 100
)

// PriceScale is the number of fraction digits kept on prices.
const PriceScale = 2

// maxPriceIntDigits is the integer part of the stored NUMERIC(10,2).
const maxPriceIntDigits = 8

// MaxPrice is the largest price the listing store can hold.
var MaxPrice = decimal.New(9999999999, -PriceScale)

// Brands is the enumerated brand set accepted on listings and filters.
var Brands = []string{"Nike", "Adidas", "Jordan", "New Balance", "Yeezy"}

// Conditions and Currencies enumerate the accepted values.
var (
	Conditions = []Condition{ConditionNew, ConditionUsed}
	Currencies = []Currency{CurrencyEUR, CurrencyUSD, CurrencyGBP}
)

// Listing is a single pair offered for sale by a seller.
type Listing struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Brand          string          `json:"brand"`
	Size           float64         `json:"size"`
	Price          decimal.Decimal `json:"price"`
	Currency       Currency        `json:"currency"`
	Condition      Condition       `json:"condition"`
	Description    string          `json:"description"`
	ContactInfo    string          `json:"contact_info"`
	IsSold         bool            `json:"is_sold"`
	SellerID       string          `json:"seller_id"`
	SellerUsername string          `json:"seller_username"`
	ViewCount      int64           `json:"view_count"`
	// Images are ordered; the first one is the cover.
	Images    []string  `json:"images"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cover returns the cover image URL, or "" when the listing has no images.
func (l *Listing) Cover() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0]
}

// Clone returns a deep copy that shares no mutable state with l.
func (l *Listing) Clone() *Listing {
	c := *l
	c.Images = slices.Clone(l.Images)
	return &c
}

// IsValidBrand reports whether brand is in the enumerated brand set.
func IsValidBrand(brand string) bool {
	return slices.Contains(Brands, brand)
}

func IsValidCondition(c Condition) bool {
	return slices.Contains(Conditions, c)
}

func IsValidCurrency(c Currency) bool {
	return slices.Contains(Currencies, c)
}

// IsValidPrice reports whether d fits the stored price column: not negative,
// at most PriceScale fraction digits and no larger than MaxPrice. The
// exponent must be checked before Cmp, which rescales both operands.
func IsValidPrice(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -PriceScale || exp > maxPriceIntDigits {
		return false
	}
	return !d.IsNegative() && d.Cmp(MaxPrice) <= 0
}

// IsValidSize reports whether size is a whole or half step within
// [MinSize, MaxSize].
func IsValidSize(size float64) bool {
	if size < MinSize || size > MaxSize {
		return false
	}
	return size*2 == math.Trunc(size*2)
}
