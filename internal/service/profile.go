package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

// ProfileDirectory looks profiles up in an external user service.
type ProfileDirectory interface {
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
}

// ProfileService serves public seller profiles.
type ProfileService struct {
	profiles  repository.ProfileRepository
	reviews   repository.ReviewRepository
	directory ProfileDirectory
	logger    *slog.Logger
}

// NewProfileService creates a profile service. directory may be nil, in
// which case profiles come only from the local store.
func NewProfileService(profiles repository.ProfileRepository, reviews repository.ReviewRepository, directory ProfileDirectory, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		profiles:  profiles,
		reviews:   reviews,
		directory: directory,
		logger:    logger,
	}
}

// lookup resolves username through the directory when one is configured.
// A directory that is down falls back to the local copy; a directory that
// does not know the user is authoritative.
func (s *ProfileService) lookup(ctx context.Context, username string) (*domain.Profile, error) {
	if s.directory != nil {
		p, err := s.directory.GetByUsername(ctx, username)
		switch {
		case err == nil:
			return p, nil
		case errors.Is(err, apperrors.ErrNotFound):
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			s.logger.WarnContext(ctx, "user service unavailable, using local profile",
				slog.String("username", username),
				slog.String("error", err.Error()),
			)
		}
	}

	p, err := s.profiles.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetSellerProfile returns the seller's profile, reputation and most recent
// reviews.
func (s *ProfileService) GetSellerProfile(ctx context.Context, username string) (*domain.SellerProfile, error) {
	p, err := s.lookup(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}

	rep, err := s.reviews.Reputation(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("get reputation: %w", err)
	}

	recent, _, err := s.reviews.ListBySeller(ctx, p.UserID, domain.RecentReviewsLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("list recent reviews: %w", err)
	}

	return &domain.SellerProfile{Profile: *p, Reputation: rep, Reviews: recent}, nil
}

// ListSellerReviews returns one page of a seller's reviews, newest first,
// with the seller's total review count.
func (s *ProfileService) ListSellerReviews(ctx context.Context, username string, page pagination.Params) ([]domain.Review, int, error) {
	p, err := s.lookup(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, 0, err
	}

	reviews, total, err := s.reviews.ListBySeller(ctx, p.UserID, page.PageSize, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, total, nil
}

// UpdateProfileInput is a partial profile update. Nil fields are unchanged.
type UpdateProfileInput struct {
	Avatar   *string
	Bio      *string
	Location *string
}

// UpdateProfile edits the caller's own profile, creating it on first use.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID, username string, input *UpdateProfileInput) (*domain.Profile, error) {
	if err := requireCaller(userID, username); err != nil {
		return nil, err
	}

	if err := s.profiles.Ensure(ctx, userID, username); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	p, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if input.Avatar != nil {
		p.Avatar = strings.TrimSpace(*input.Avatar)
	}
	if input.Bio != nil {
		p.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.Location != nil {
		p.Location = strings.TrimSpace(*input.Location)
	}

	if err := s.profiles.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}
