package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/event"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/tracing"
)

// WishlistService manages per-user liked listings.
type WishlistService struct {
	wishlist repository.WishlistRepository
	listings repository.ListingRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewWishlistService creates a wishlist service.
func NewWishlistService(wishlist repository.WishlistRepository, listings repository.ListingRepository, producer *event.Producer, logger *slog.Logger) *WishlistService {
	return &WishlistService{
		wishlist: wishlist,
		listings: listings,
		producer: producer,
		logger:   logger,
	}
}

// Toggle flips whether userID likes listingID and returns the new state.
// On error the stored state is unchanged.
func (s *WishlistService) Toggle(ctx context.Context, userID, listingID string) (liked bool, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "WishlistService.Toggle",
		attribute.String("market.listing_id", listingID),
	)
	defer func() { tracing.End(span, err) }()

	if userID == "" {
		return false, apperrors.Unauthorized("missing caller identity")
	}

	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return false, fmt.Errorf("get listing: %w", err)
	}
	if l.SellerID == userID {
		return false, apperrors.SelfWishlistRejected()
	}

	liked, err = s.wishlist.Toggle(ctx, userID, listingID)
	if err != nil {
		return false, transient("toggle wishlist", err)
	}

	state := "unliked"
	if liked {
		state = "liked"
	}
	wishlistToggles.WithLabelValues(state).Inc()

	if err := s.producer.PublishWishlistToggled(ctx, userID, listingID, liked); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish wishlist.toggled event",
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
	}
	return liked, nil
}

// List returns the listings userID likes, most recently liked first.
// Entries whose listing no longer exists are skipped.
func (s *WishlistService) List(ctx context.Context, userID string) ([]domain.Listing, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("missing caller identity")
	}

	entries, err := s.wishlist.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	if len(entries) == 0 {
		return []domain.Listing{}, nil
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ListingID
	}

	listings, err := s.listings.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load wishlist listings: %w", err)
	}
	return listings, nil
}
