package domain

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 5
)

// RatingPrecision is the number of decimals kept on an average rating.
const RatingPrecision = 2

// RecentReviewsLimit caps the reviews embedded in a seller profile.
const RecentReviewsLimit = 10

// Review is a buyer's rating of a seller. At most one exists per
// (SellerID, ReviewerID).
type Review struct {
	ID               string    `json:"id"`
	SellerID         string    `json:"seller_id"`
	ReviewerID       string    `json:"reviewer_id"`
	ReviewerUsername string    `json:"reviewer_username"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
}

// SellerReputation is derived from the complete review set of a seller.
type SellerReputation struct {
	SellerID      string  `json:"seller_id"`
	AverageRating float64 `json:"seller_rating"`
	ReviewCount   int     `json:"review_count"`
}

// ValidateReview checks the rules that do not depend on stored state.
func ValidateReview(sellerID, reviewerID string, rating int) error {
	if sellerID == reviewerID {
		return apperrors.SelfReviewRejected()
	}
	if rating < MinRating || rating > MaxRating {
		return apperrors.InvalidRating(rating)
	}
	return nil
}

// ComputeReputation derives a seller's reputation from every rating the
// seller has received. The mean is rounded half away from zero to
// RatingPrecision decimals. No ratings yields a zero average.
func ComputeReputation(sellerID string, ratings []int) SellerReputation {
	rep := SellerReputation{SellerID: sellerID, ReviewCount: len(ratings)}
	if len(ratings) == 0 {
		return rep
	}

	var sum int64
	for _, r := range ratings {
		sum += int64(r)
	}
	avg := decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(ratings))), RatingPrecision)
	rep.AverageRating = avg.InexactFloat64()
	return rep
}
