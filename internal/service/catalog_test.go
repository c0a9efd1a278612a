package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/event"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	"github.com/GabrijelGordic/Suzeraj/internal/repository/memory"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

type catalogFixture struct {
	svc      *CatalogService
	listings *memory.ListingRepository
	reviews  *memory.ReviewRepository
	wishlist *memory.WishlistRepository
	profiles *memory.ProfileRepository
	events   *recordingPublisher
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	f := &catalogFixture{
		listings: memory.NewListingRepository(),
		reviews:  memory.NewReviewRepository(),
		wishlist: memory.NewWishlistRepository(),
		profiles: memory.NewProfileRepository(),
		events:   &recordingPublisher{},
	}
	f.svc = NewCatalogService(CatalogDeps{
		Listings: f.listings,
		Reviews:  f.reviews,
		Wishlist: f.wishlist,
		Profiles: f.profiles,
		Producer: event.NewProducer(f.events, newTestLogger()),
	}, time.Second, newTestLogger())
	return f
}

func validInput() *CreateListingInput {
	return &CreateListingInput{
		Title:     "Air Max 90",
		Brand:     "Nike",
		Size:      43,
		Price:     decimal.RequireFromString("120"),
		Currency:  domain.CurrencyEUR,
		Condition: domain.ConditionNew,
		Images:    []string{"cover.jpg", "side.jpg"},
	}
}

func (f *catalogFixture) create(t *testing.T, sellerID, username, price string) *domain.Listing {
	t.Helper()
	in := validInput()
	in.Price = decimal.RequireFromString(price)
	l, err := f.svc.CreateListing(context.Background(), sellerID, username, in)
	require.NoError(t, err)
	return l
}

// --- Search ---

func TestCatalogService_SearchInvalidFilterSkipsStore(t *testing.T) {
	searcher := &mockSearcher{}
	svc := NewCatalogService(CatalogDeps{Listings: &mockListingRepository{}, Searcher: searcher, Producer: disabledProducer()}, 0, newTestLogger())

	_, _, err := svc.Search(context.Background(), domain.RawListingQuery{Size: "abc"}, pagination.DefaultParams())

	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
	searcher.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestCatalogService_SearchInvalidRange(t *testing.T) {
	f := newCatalogFixture(t)

	_, _, err := f.svc.Search(context.Background(), domain.RawListingQuery{MinPrice: "200", MaxPrice: "100"}, pagination.DefaultParams())
	assert.ErrorIs(t, err, apperrors.ErrInvalidRange)
}

func TestCatalogService_SearchMinPrice(t *testing.T) {
	f := newCatalogFixture(t)
	f.create(t, "s1", "ana", "50")
	f.create(t, "s1", "ana", "100")
	f.create(t, "s1", "ana", "150")

	got, total, err := f.svc.Search(context.Background(),
		domain.RawListingQuery{MinPrice: "100", Ordering: "price"}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, "100.00", got[0].Price.StringFixed(2))
	assert.Equal(t, "150.00", got[1].Price.StringFixed(2))
}

func TestCatalogService_SearchPageBeyondLastKeepsCount(t *testing.T) {
	f := newCatalogFixture(t)
	for i := 0; i < 5; i++ {
		f.create(t, "s1", "ana", "10")
	}

	got, total, err := f.svc.Search(context.Background(), domain.RawListingQuery{}, pagination.New("3", "12"))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 5, total)
}

func TestCatalogService_SearchIndexFailureFallsBackToStore(t *testing.T) {
	store := &mockListingRepository{}
	index := &mockSearcher{}
	svc := NewCatalogService(CatalogDeps{Listings: store, Searcher: index, Producer: disabledProducer()}, 0, newTestLogger())

	want := []domain.Listing{{ID: "l1"}}
	index.On("Search", mock.Anything, mock.Anything).Return(nil, 0, errors.New("index unavailable"))
	store.On("Search", mock.Anything, mock.Anything).Return(want, 1, nil)

	got, total, err := svc.Search(context.Background(), domain.RawListingQuery{}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, want, got)
	index.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestCatalogService_SearchStoreFailure(t *testing.T) {
	store := &mockListingRepository{}
	svc := NewCatalogService(CatalogDeps{Listings: store, Producer: disabledProducer()}, 0, newTestLogger())
	store.On("Search", mock.Anything, mock.Anything).Return(nil, 0, errors.New("connection refused")).Once()

	_, _, err := svc.Search(context.Background(), domain.RawListingQuery{}, pagination.DefaultParams())
	require.Error(t, err)
	store.AssertNumberOfCalls(t, "Search", 1)
}

// --- GetListing ---

func TestCatalogService_GetListingDetail(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	l := f.create(t, "s1", "ana", "99.99")

	_, err := f.wishlist.Toggle(ctx, "buyer", l.ID)
	require.NoError(t, err)
	_, err = f.reviews.Submit(ctx, &domain.Review{ID: "r1", SellerID: "s1", ReviewerID: "buyer", Rating: 4, CreatedAt: time.Now()})
	require.NoError(t, err)

	d, err := f.svc.GetListing(ctx, l.ID, "buyer")
	require.NoError(t, err)
	assert.True(t, d.IsLiked)
	assert.Equal(t, 4.0, d.Reputation.AverageRating)
	assert.Equal(t, 1, d.Reputation.ReviewCount)
	assert.Equal(t, "cover.jpg", d.Cover())

	anon, err := f.svc.GetListing(ctx, l.ID, "")
	require.NoError(t, err)
	assert.False(t, anon.IsLiked)
}

func TestCatalogService_GetListingCountsViews(t *testing.T) {
	f := newCatalogFixture(t)
	l := f.create(t, "s1", "ana", "10")

	for i := 0; i < 3; i++ {
		_, err := f.svc.GetListing(context.Background(), l.ID, "")
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		got, err := f.listings.GetByID(context.Background(), l.ID)
		return err == nil && got.ViewCount == 3
	}, time.Second, 5*time.Millisecond)
}

func TestCatalogService_GetListingViewFailureIsIgnored(t *testing.T) {
	store := &mockListingRepository{}
	reviews := &mockReviewRepository{}
	svc := NewCatalogService(CatalogDeps{Listings: store, Reviews: reviews, Wishlist: &mockWishlistRepository{}, Producer: disabledProducer()}, 0, newTestLogger())

	viewed := make(chan struct{})
	store.On("GetByID", mock.Anything, "l1").Return(&domain.Listing{ID: "l1", SellerID: "s1"}, nil)
	store.On("IncrementViews", mock.Anything, "l1").Run(func(mock.Arguments) { close(viewed) }).Return(errors.New("timeout"))
	reviews.On("Reputation", mock.Anything, "s1").Return(domain.SellerReputation{SellerID: "s1"}, nil)

	_, err := svc.GetListing(context.Background(), "l1", "")
	require.NoError(t, err)

	select {
	case <-viewed:
	case <-time.After(time.Second):
		t.Fatal("view increment was not attempted")
	}
}

func TestCatalogService_GetListingViewSurvivesRequestCancel(t *testing.T) {
	f := newCatalogFixture(t)
	l := f.create(t, "s1", "ana", "10")

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.svc.GetListing(ctx, l.ID, "")
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool {
		got, err := f.listings.GetByID(context.Background(), l.ID)
		return err == nil && got.ViewCount == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCatalogService_GetListingNotFound(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.svc.GetListing(context.Background(), "00000000-0000-0000-0000-000000000000", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCatalogService_SearchHugePage(t *testing.T) {
	f := newCatalogFixture(t)
	f.create(t, "s1", "ana", "10")

	var (
		got   []domain.Listing
		total int
		err   error
	)
	require.NotPanics(t, func() {
		got, total, err = f.svc.Search(context.Background(), domain.RawListingQuery{}, pagination.New("999999999999999999", "48"))
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, total)
}

// --- CreateListing ---

func TestCatalogService_CreateListing(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Price = decimal.RequireFromString("120.5")
	l, err := f.svc.CreateListing(ctx, "s1", "ana", in)
	require.NoError(t, err)

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "s1", l.SellerID)
	assert.Equal(t, "ana", l.SellerUsername)
	assert.Equal(t, "120.50", l.Price.StringFixed(2))
	assert.Equal(t, []string{event.TopicListingCreated}, f.events.topics)

	p, err := f.profiles.GetByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, "s1", p.UserID)
}

func TestCatalogService_CreateListingValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateListingInput)
	}{
		{"empty title", func(in *CreateListingInput) { in.Title = "  " }},
		{"unknown brand", func(in *CreateListingInput) { in.Brand = "Puma" }},
		{"quarter size", func(in *CreateListingInput) { in.Size = 42.25 }},
		{"size out of range", func(in *CreateListingInput) { in.Size = 50 }},
		{"negative price", func(in *CreateListingInput) { in.Price = decimal.RequireFromString("-1") }},
		{"three decimal price", func(in *CreateListingInput) { in.Price = decimal.RequireFromString("120.456") }},
		{"price above column", func(in *CreateListingInput) { in.Price = decimal.RequireFromString("100000000") }},
		{"huge exponent price", func(in *CreateListingInput) { in.Price = decimal.RequireFromString("1e30000000") }},
		{"tiny exponent price", func(in *CreateListingInput) { in.Price = decimal.RequireFromString("1e-30000000") }},
		{"long title", func(in *CreateListingInput) { in.Title = strings.Repeat("x", domain.MaxTitleLen+1) }},
		{"long contact info", func(in *CreateListingInput) { in.ContactInfo = strings.Repeat("x", domain.MaxContactInfoLen+1) }},
		{"unknown currency", func(in *CreateListingInput) { in.Currency = "CHF" }},
		{"unknown condition", func(in *CreateListingInput) { in.Condition = "Worn" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCatalogFixture(t)
			in := validInput()
			tt.mutate(in)

			_, err := f.svc.CreateListing(context.Background(), "s1", "ana", in)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

			_, total, err := f.listings.Search(context.Background(), repository.ListingQuery{Page: pagination.DefaultParams()})
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestCatalogService_CreateListingRequiresIdentity(t *testing.T) {
	f := newCatalogFixture(t)

	_, err := f.svc.CreateListing(context.Background(), "s1", "", validInput())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

// --- UpdateListing / DeleteListing ---

func TestCatalogService_UpdateListingByOwner(t *testing.T) {
	f := newCatalogFixture(t)
	l := f.create(t, "s1", "ana", "100")

	sold := true
	price := decimal.RequireFromString("80")
	got, err := f.svc.UpdateListing(context.Background(), "s1", l.ID, &UpdateListingInput{IsSold: &sold, Price: &price})
	require.NoError(t, err)
	assert.True(t, got.IsSold)
	assert.Equal(t, "Air Max 90", got.Title)

	stored, err := f.listings.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, stored.Price.Equal(price))
	assert.Equal(t, l.CreatedAt, stored.CreatedAt)
	assert.Equal(t, []string{event.TopicListingCreated, event.TopicListingUpdated}, f.events.topics)
}

func TestCatalogService_UpdateListingByOtherUser(t *testing.T) {
	f := newCatalogFixture(t)
	l := f.create(t, "s1", "ana", "100")

	title := "mine now"
	_, err := f.svc.UpdateListing(context.Background(), "intruder", l.ID, &UpdateListingInput{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	stored, err := f.listings.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Air Max 90", stored.Title)
}

func TestCatalogService_UpdateListingInvalidLeavesStoreUntouched(t *testing.T) {
	f := newCatalogFixture(t)
	l := f.create(t, "s1", "ana", "100")

	size := 12.0
	_, err := f.svc.UpdateListing(context.Background(), "s1", l.ID, &UpdateListingInput{Size: &size})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	stored, err := f.listings.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, 43.0, stored.Size)

	price := decimal.RequireFromString("99.999")
	_, err = f.svc.UpdateListing(context.Background(), "s1", l.ID, &UpdateListingInput{Price: &price})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	stored, err = f.listings.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", stored.Price.StringFixed(2))
}

func TestCatalogService_DeleteListing(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	l := f.create(t, "s1", "ana", "100")

	assert.ErrorIs(t, f.svc.DeleteListing(ctx, "intruder", l.ID), apperrors.ErrForbidden)
	require.NoError(t, f.svc.DeleteListing(ctx, "s1", l.ID))

	_, err := f.listings.GetByID(ctx, l.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, event.TopicListingDeleted, f.events.topics[len(f.events.topics)-1])
}

func TestCatalogService_DeleteListingAnonymous(t *testing.T) {
	f := newCatalogFixture(t)
	l := f.create(t, "s1", "ana", "100")

	assert.ErrorIs(t, f.svc.DeleteListing(context.Background(), "", l.ID), apperrors.ErrUnauthorized)
}
