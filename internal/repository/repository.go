package repository

import (
	"context"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

// ListingQuery is a validated catalog query.
type ListingQuery struct {
	Filter   domain.ListingFilter
	Ordering domain.Ordering
	Page     pagination.Params
}

// ListingSearcher runs catalog queries. It returns the requested page and
// the size of the whole filtered set.
type ListingSearcher interface {
	Search(ctx context.Context, q ListingQuery) ([]domain.Listing, int, error)
}

// ListingRepository defines the interface for listing persistence.
type ListingRepository interface {
	ListingSearcher

	Create(ctx context.Context, listing *domain.Listing) error

	// GetByID returns a NotFound AppError for unknown ids.
	GetByID(ctx context.Context, id string) (*domain.Listing, error)

	// GetByIDs returns the listings that exist among ids, in the order of ids.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Listing, error)

	// Update replaces the mutable fields of an existing listing.
	Update(ctx context.Context, listing *domain.Listing) error

	Delete(ctx context.Context, id string) error

	// IncrementViews bumps the view counter by one.
	IncrementViews(ctx context.Context, id string) error
}

// ReviewRepository stores reviews and the reputation derived from them.
type ReviewRepository interface {
	// Submit inserts review and recomputes the seller's reputation from the
	// complete review set as one atomic unit, serialized per seller. It
	// returns a DuplicateReview AppError when the reviewer already reviewed
	// the seller; nothing is written in that case or on any other error.
	Submit(ctx context.Context, review *domain.Review) (domain.SellerReputation, error)

	// Reputation returns the stored reputation; a seller without reviews has
	// a zero reputation.
	Reputation(ctx context.Context, sellerID string) (domain.SellerReputation, error)

	// ListBySeller returns reviews newest first together with the total.
	ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]domain.Review, int, error)
}

// WishlistRepository stores per-user liked listings.
type WishlistRepository interface {
	// Toggle flips membership of (userID, listingID) and returns the new
	// state. The flip is atomic per pair.
	Toggle(ctx context.Context, userID, listingID string) (bool, error)

	Contains(ctx context.Context, userID, listingID string) (bool, error)

	// ListByUser returns the user's entries, most recently liked first.
	ListByUser(ctx context.Context, userID string) ([]domain.WishlistEntry, error)
}

// ProfileRepository stores user profiles.
type ProfileRepository interface {
	// Ensure creates the profile on first sight of a user and keeps the
	// username current.
	Ensure(ctx context.Context, userID, username string) error

	GetByID(ctx context.Context, userID string) (*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
}
