package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/event"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
	"github.com/GabrijelGordic/Suzeraj/pkg/tracing"
)

// DefaultViewCountTimeout bounds the detached view counter update.
const DefaultViewCountTimeout = 2 * time.Second

// CatalogService is the entry point for catalog queries and listing
// management.
type CatalogService struct {
	listings repository.ListingRepository
	searcher repository.ListingSearcher
	reviews  repository.ReviewRepository
	wishlist repository.WishlistRepository
	profiles repository.ProfileRepository
	producer *event.Producer
	logger   *slog.Logger

	// indexed is set when searcher is a separate read index.
	indexed     bool
	viewTimeout time.Duration
	now         func() time.Time
}

// CatalogDeps groups the collaborators of CatalogService.
type CatalogDeps struct {
	Listings repository.ListingRepository
	// Searcher serves catalog queries. Nil means Listings.
	Searcher repository.ListingSearcher
	Reviews  repository.ReviewRepository
	Wishlist repository.WishlistRepository
	Profiles repository.ProfileRepository
	Producer *event.Producer
}

// NewCatalogService creates a catalog service.
func NewCatalogService(deps CatalogDeps, viewTimeout time.Duration, logger *slog.Logger) *CatalogService {
	searcher, indexed := deps.Searcher, deps.Searcher != nil
	if !indexed {
		searcher = deps.Listings
	}
	if viewTimeout <= 0 {
		viewTimeout = DefaultViewCountTimeout
	}
	return &CatalogService{
		listings:    deps.Listings,
		searcher:    searcher,
		reviews:     deps.Reviews,
		wishlist:    deps.Wishlist,
		profiles:    deps.Profiles,
		producer:    deps.Producer,
		logger:      logger,
		indexed:     indexed,
		viewTimeout: viewTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Search validates raw, runs the query and returns one page plus the size
// of the whole filtered set. Validation errors return before any store
// access. When a separate search index fails, the primary store answers.
func (s *CatalogService) Search(ctx context.Context, raw domain.RawListingQuery, page pagination.Params) (results []domain.Listing, total int, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "CatalogService.Search",
		attribute.Int("page", page.Page),
		attribute.Int("page_size", page.PageSize),
	)
	defer func() {
		span.SetAttributes(attribute.Int("market.result_count", total))
		tracing.End(span, err)
	}()

	filter, ordering, err := domain.ParseListingQuery(raw)
	if err != nil {
		catalogQueries.WithLabelValues("invalid").Inc()
		return nil, 0, err
	}

	q := repository.ListingQuery{Filter: filter, Ordering: ordering, Page: page}

	results, total, err = s.searcher.Search(ctx, q)
	if err != nil && s.indexed && ctx.Err() == nil {
		s.logger.WarnContext(ctx, "search index failed, querying store",
			slog.String("error", err.Error()),
		)
		results, total, err = s.listings.Search(ctx, q)
	}
	if err != nil {
		catalogQueries.WithLabelValues("error").Inc()
		return nil, 0, fmt.Errorf("search listings: %w", err)
	}

	catalogQueries.WithLabelValues("ok").Inc()
	return results, total, nil
}

// ListingDetail is a listing as seen by one caller.
type ListingDetail struct {
	domain.Listing
	IsLiked    bool
	Reputation domain.SellerReputation
}

// GetListing returns a listing with the caller's wishlist state and the
// seller's reputation, and counts the view in the background. callerID may
// be empty for anonymous callers.
func (s *CatalogService) GetListing(ctx context.Context, id, callerID string) (*ListingDetail, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}

	s.countView(ctx, id)

	detail := &ListingDetail{Listing: *l}

	if callerID != "" {
		liked, err := s.wishlist.Contains(ctx, callerID, id)
		if err != nil {
			return nil, fmt.Errorf("check wishlist: %w", err)
		}
		detail.IsLiked = liked
	}

	rep, err := s.reviews.Reputation(ctx, l.SellerID)
	if err != nil {
		return nil, fmt.Errorf("get seller reputation: %w", err)
	}
	detail.Reputation = rep

	return detail, nil
}

// countView bumps the view counter on a detached context. Failures are
// logged at debug level and otherwise ignored.
func (s *CatalogService) countView(ctx context.Context, id string) {
	viewCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.viewTimeout)
	go func() {
		defer cancel()
		if err := s.listings.IncrementViews(viewCtx, id); err != nil {
			s.logger.DebugContext(viewCtx, "view count not recorded",
				slog.String("listing_id", id),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// CreateListingInput holds the fields a seller supplies for a new listing.
type CreateListingInput struct {
	Title       string
	Brand       string
	Size        float64
	Price       decimal.Decimal
	Currency    domain.Currency
	Condition   domain.Condition
	Description string
	ContactInfo string
	Images      []string
}

// UpdateListingInput holds a partial update. Nil fields are left unchanged.
type UpdateListingInput struct {
	Title       *string
	Brand       *string
	Size        *float64
	Price       *decimal.Decimal
	Currency    *domain.Currency
	Condition   *domain.Condition
	Description *string
	ContactInfo *string
	IsSold      *bool
	Images      []string
}

func validateListing(l *domain.Listing) error {
	switch {
	case strings.TrimSpace(l.Title) == "":
		return apperrors.InvalidInput("title is required")
	case utf8.RuneCountInString(l.Title) > domain.MaxTitleLen:
		return apperrors.InvalidInput(fmt.Sprintf("title must be at most %d characters", domain.MaxTitleLen))
	case utf8.RuneCountInString(l.ContactInfo) > domain.MaxContactInfoLen:
		return apperrors.InvalidInput(fmt.Sprintf("contact_info must be at most %d characters", domain.MaxContactInfoLen))
	case !domain.IsValidBrand(l.Brand):
		return apperrors.InvalidInput("brand must be one of " + strings.Join(domain.Brands, ", "))
	case !domain.IsValidSize(l.Size):
		return apperrors.InvalidInput("size must be a half step between 35 and 49.5")
	case !domain.IsValidPrice(l.Price):
		return apperrors.InvalidInput("price must be between 0 and " + domain.MaxPrice.StringFixed(domain.PriceScale) + " with at most 2 decimals")
	case !domain.IsValidCurrency(l.Currency):
		return apperrors.InvalidInput("currency must be one of EUR, USD, GBP")
	case !domain.IsValidCondition(l.Condition):
		return apperrors.InvalidInput("condition must be New or Used")
	}
	return nil
}

func requireCaller(userID, username string) error {
	if userID == "" {
		return apperrors.Unauthorized("missing caller identity")
	}
	if username == "" {
		return apperrors.Unauthorized("missing caller username")
	}
	return nil
}

// CreateListing lists a new pair for sale on behalf of the caller.
func (s *CatalogService) CreateListing(ctx context.Context, userID, username string, input *CreateListingInput) (*domain.Listing, error) {
	if err := requireCaller(userID, username); err != nil {
		return nil, err
	}

	now := s.now()
	l := &domain.Listing{
		ID:             uuid.New().String(),
		Title:          strings.TrimSpace(input.Title),
		Brand:          input.Brand,
		Size:           input.Size,
		Price:          input.Price,
		Currency:       input.Currency,
		Condition:      input.Condition,
		Description:    input.Description,
		ContactInfo:    input.ContactInfo,
		SellerID:       userID,
		SellerUsername: username,
		Images:         nonNil(input.Images),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := validateListing(l); err != nil {
		return nil, err
	}

	if err := s.profiles.Ensure(ctx, userID, username); err != nil {
		return nil, fmt.Errorf("ensure seller profile: %w", err)
	}
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	if err := s.producer.PublishListingCreated(ctx, l); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing.created event",
			slog.String("listing_id", l.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "listing created",
		slog.String("listing_id", l.ID),
		slog.String("seller_id", userID),
	)
	return l, nil
}

// owned loads a listing and checks that userID is its seller.
func (s *CatalogService) owned(ctx context.Context, userID, id string) (*domain.Listing, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("missing caller identity")
	}
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	if l.SellerID != userID {
		return nil, apperrors.Forbidden("only the seller may modify this listing")
	}
	return l, nil
}

// UpdateListing applies a partial update to a listing the caller owns.
func (s *CatalogService) UpdateListing(ctx context.Context, userID, id string, input *UpdateListingInput) (*domain.Listing, error) {
	l, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		l.Title = strings.TrimSpace(*input.Title)
	}
	if input.Brand != nil {
		l.Brand = *input.Brand
	}
	if input.Size != nil {
		l.Size = *input.Size
	}
	if input.Price != nil {
		l.Price = *input.Price
	}
	if input.Currency != nil {
		l.Currency = *input.Currency
	}
	if input.Condition != nil {
		l.Condition = *input.Condition
	}
	if input.Description != nil {
		l.Description = *input.Description
	}
	if input.ContactInfo != nil {
		l.ContactInfo = *input.ContactInfo
	}
	if input.IsSold != nil {
		l.IsSold = *input.IsSold
	}
	if input.Images != nil {
		l.Images = input.Images
	}
	if err := validateListing(l); err != nil {
		return nil, err
	}
	l.UpdatedAt = s.now()

	if err := s.listings.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}

	if err := s.producer.PublishListingUpdated(ctx, l); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing.updated event",
			slog.String("listing_id", l.ID),
			slog.String("error", err.Error()),
		)
	}
	return l, nil
}

// DeleteListing removes a listing the caller owns.
func (s *CatalogService) DeleteListing(ctx context.Context, userID, id string) error {
	l, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}

	if err := s.producer.PublishListingDeleted(ctx, id, l.SellerID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish listing.deleted event",
			slog.String("listing_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "listing deleted", slog.String("listing_id", id))
	return nil
}

func nonNil(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}
