package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/event"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	pkgkafka "github.com/GabrijelGordic/Suzeraj/pkg/kafka"
)

// --- Mock Repositories ---

type mockListingRepository struct {
	mock.Mock
}

var _ repository.ListingRepository = (*mockListingRepository)(nil)

func (m *mockListingRepository) Search(ctx context.Context, q repository.ListingQuery) ([]domain.Listing, int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Listing), args.Int(1), args.Error(2)
}

func (m *mockListingRepository) Create(ctx context.Context, l *domain.Listing) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *mockListingRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Listing, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Listing), args.Error(1)
}

func (m *mockListingRepository) Update(ctx context.Context, l *domain.Listing) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockListingRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockListingRepository) IncrementViews(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Search(ctx context.Context, q repository.ListingQuery) ([]domain.Listing, int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Listing), args.Int(1), args.Error(2)
}

type mockReviewRepository struct {
	mock.Mock
}

var _ repository.ReviewRepository = (*mockReviewRepository)(nil)

func (m *mockReviewRepository) Submit(ctx context.Context, rv *domain.Review) (domain.SellerReputation, error) {
	args := m.Called(ctx, rv)
	return args.Get(0).(domain.SellerReputation), args.Error(1)
}

func (m *mockReviewRepository) Reputation(ctx context.Context, sellerID string) (domain.SellerReputation, error) {
	args := m.Called(ctx, sellerID)
	return args.Get(0).(domain.SellerReputation), args.Error(1)
}

func (m *mockReviewRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) ([]domain.Review, int, error) {
	args := m.Called(ctx, sellerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

type mockWishlistRepository struct {
	mock.Mock
}

var _ repository.WishlistRepository = (*mockWishlistRepository)(nil)

func (m *mockWishlistRepository) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWishlistRepository) Contains(ctx context.Context, userID, listingID string) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *mockWishlistRepository) ListByUser(ctx context.Context, userID string) ([]domain.WishlistEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WishlistEntry), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

// --- Event recorder ---

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ *pkgkafka.Event) error {
	p.topics = append(p.topics, topic)
	return nil
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func disabledProducer() *event.Producer {
	return event.NewProducer(nil, newTestLogger())
}
