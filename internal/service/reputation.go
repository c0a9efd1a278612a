package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/event"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	"github.com/GabrijelGordic/Suzeraj/pkg/tracing"
)

// ReputationService accepts buyer reviews and maintains seller reputation.
type ReputationService struct {
	reviews  repository.ReviewRepository
	profiles repository.ProfileRepository
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewReputationService creates a reputation service.
func NewReputationService(reviews repository.ReviewRepository, profiles repository.ProfileRepository, producer *event.Producer, logger *slog.Logger) *ReputationService {
	return &ReputationService{
		reviews:  reviews,
		profiles: profiles,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SubmitReviewInput holds a review submission. Reviewer fields come from
// the authenticated caller, never from the request body.
type SubmitReviewInput struct {
	SellerID         string
	ReviewerID       string
	ReviewerUsername string
	Rating           int
	Comment          string
}

// SubmitReview validates and stores a review and returns it together with
// the seller's recomputed reputation. Every rule is checked before anything
// is written. Store failures surface as Transient errors; the store rolls
// the review back in that case, so a retry cannot double-insert.
func (s *ReputationService) SubmitReview(ctx context.Context, input *SubmitReviewInput) (rv *domain.Review, rep domain.SellerReputation, err error) {
	ctx, span := tracing.Start(ctx, tracerName, "ReputationService.SubmitReview",
		attribute.String("market.seller_id", input.SellerID),
	)
	defer func() {
		reviewsSubmitted.WithLabelValues(resultLabel(err)).Inc()
		tracing.End(span, err)
	}()

	if err := requireCaller(input.ReviewerID, input.ReviewerUsername); err != nil {
		return nil, domain.SellerReputation{}, err
	}
	sellerID := strings.TrimSpace(input.SellerID)
	if err := domain.ValidateReview(sellerID, input.ReviewerID, input.Rating); err != nil {
		return nil, domain.SellerReputation{}, err
	}

	if _, err := s.profiles.GetByID(ctx, sellerID); err != nil {
		return nil, domain.SellerReputation{}, fmt.Errorf("get seller: %w", err)
	}
	rv = &domain.Review{
		ID:               uuid.New().String(),
		SellerID:         sellerID,
		ReviewerID:       input.ReviewerID,
		ReviewerUsername: input.ReviewerUsername,
		Rating:           input.Rating,
		Comment:          strings.TrimSpace(input.Comment),
		CreatedAt:        s.now(),
	}

	rep, err = s.reviews.Submit(ctx, rv)
	if err != nil {
		return nil, domain.SellerReputation{}, transient("submit review", err)
	}

	// The review is committed; a rejected submission never touches profiles.
	if err := s.profiles.Ensure(ctx, input.ReviewerID, input.ReviewerUsername); err != nil {
		s.logger.ErrorContext(ctx, "failed to ensure reviewer profile",
			slog.String("review_id", rv.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishReviewSubmitted(ctx, rv, rep); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.submitted event",
			slog.String("review_id", rv.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("seller_id", sellerID),
		slog.Int("rating", rv.Rating),
		slog.Float64("seller_rating", rep.AverageRating),
		slog.Int("review_count", rep.ReviewCount),
	)
	return rv, rep, nil
}
