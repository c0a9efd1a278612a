package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

var listingCols = []string{
	"id", "title", "brand", "size", "price", "currency", "condition", "description", "contact_info",
	"is_sold", "seller_id", "seller_username", "view_count", "images", "created_at", "updated_at",
}

func sampleListing() *domain.Listing {
	return &domain.Listing{
		ID:             "7f1c3a8e-0d5b-4c39-9a36-2f7e1c0b9d11",
		Title:          "Jordan 1 Chicago",
		Brand:          "Jordan",
		Size:           44.5,
		Price:          decimal.RequireFromString("350.00"),
		Currency:       domain.CurrencyEUR,
		Condition:      domain.ConditionUsed,
		Description:    "worn twice",
		SellerID:       "seller-1",
		SellerUsername: "marko",
		Images:         []string{"cover.jpg", "side.jpg"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func listingRow(l *domain.Listing) []any {
	return []any{
		l.ID, l.Title, l.Brand, l.Size, l.Price.StringFixed(2), string(l.Currency), string(l.Condition),
		l.Description, l.ContactInfo, l.IsSold, l.SellerID, l.SellerUsername, l.ViewCount, l.Images,
		l.CreatedAt, l.UpdatedAt,
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// --- ListingRepository ---

func TestListingRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)
	l := sampleListing()

	mock.ExpectExec("INSERT INTO listings").
		WithArgs(l.ID, l.Title, l.Brand, l.Size, "350.00", "EUR", "Used", l.Description, "",
			false, "seller-1", "marko", int64(0), l.Images, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), l))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)
	l := sampleListing()

	mock.ExpectQuery(`(?s)SELECT .+\s+FROM listings WHERE id`).
		WithArgs(l.ID).
		WillReturnRows(pgxmock.NewRows(listingCols).AddRow(listingRow(l)...))

	got, err := repo.GetByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(l.Price))
	assert.Equal(t, "cover.jpg", got.Cover())
	assert.Equal(t, domain.ConditionUsed, got.Condition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)

	mock.ExpectQuery(`(?s)SELECT .+\s+FROM listings WHERE id`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListingRepository_UpdateMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)
	l := sampleListing()

	mock.ExpectExec("UPDATE listings").
		WithArgs(l.ID, l.Title, l.Brand, l.Size, "350.00", "EUR", "Used", l.Description, "",
			false, l.Images, now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.Update(context.Background(), l), apperrors.ErrNotFound)
}

func TestListingRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)

	mock.ExpectExec("DELETE FROM listings WHERE id").
		WithArgs("l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM listings WHERE id").
		WithArgs("l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "l1"))
	assert.ErrorIs(t, repo.Delete(context.Background(), "l1"), apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_IncrementViews(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)

	mock.ExpectExec(`UPDATE listings SET view_count = view_count \+ 1`).
		WithArgs("l1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.IncrementViews(context.Background(), "l1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_SearchBuildsFilter(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)
	l := sampleListing()

	size := 44.5
	lo, hi := decimal.RequireFromString("100"), decimal.RequireFromString("400")
	q := repository.ListingQuery{
		Filter: domain.ListingFilter{
			Search:         "50%",
			Brand:          "Jordan",
			Size:           &size,
			Condition:      domain.ConditionUsed,
			Currency:       domain.CurrencyEUR,
			MinPrice:       &lo,
			MaxPrice:       &hi,
			SellerUsername: "marko",
		},
		Ordering: domain.OrderPriceDesc,
		Page:     pagination.New("2", "24"),
	}

	mock.ExpectQuery(`(?s)SELECT .+\s+FROM listings\s+WHERE \(title ILIKE \$1 ESCAPE .+ AND brand = \$2 AND size = \$3 AND condition = \$4 AND currency = \$5 AND price >= \$6 AND price <= \$7 AND seller_username = \$8\s+ORDER BY price DESC, id ASC\s+LIMIT \$9 OFFSET \$10`).
		WithArgs(`%50\%%`, "Jordan", 44.5, "Used", "EUR", "100", "400", "marko", 24, 24).
		WillReturnRows(pgxmock.NewRows(append(listingCols, "total_count")).AddRow(append(listingRow(l), 25)...))

	got, total, err := repo.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, got, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListingRepository_SearchPastLastPageKeepsCount(t *testing.T) {
	mock := newMock(t)
	repo := NewListingRepository(mock)

	q := repository.ListingQuery{Ordering: domain.OrderNewest, Page: pagination.New("9", "12")}

	mock.ExpectQuery(`(?s)SELECT .+\s+FROM listings\s+ORDER BY created_at DESC, id ASC`).
		WithArgs(12, 96).
		WillReturnRows(pgxmock.NewRows(append(listingCols, "total_count")))
	mock.ExpectQuery(`SELECT count\(\*\) FROM listings`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(30))

	got, total, err := repo.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, 30, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "created_at DESC, id ASC", orderBy(domain.OrderNewest))
	assert.Equal(t, "created_at ASC, id ASC", orderBy(domain.OrderOldest))
	assert.Equal(t, "price ASC, id ASC", orderBy(domain.OrderPriceAsc))
	assert.Equal(t, "price DESC, id ASC", orderBy(domain.OrderPriceDesc))
}

// --- ReviewRepository ---

func sampleReview() *domain.Review {
	return &domain.Review{
		ID:               "0b8a5c1e-6f2d-4a7b-8c3e-1d9f0a2b3c4d",
		SellerID:         "seller-1",
		ReviewerID:       "buyer-1",
		ReviewerUsername: "ana",
		Rating:           4,
		Comment:          "fast shipping",
		CreatedAt:        now,
	}
}

func expectLockAndDuplicateCheck(mock pgxmock.PgxPoolIface, rv *domain.Review, exists bool) {
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO seller_reputations").
		WithArgs(rv.SellerID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT seller_id FROM seller_reputations WHERE seller_id = \\$1 FOR UPDATE").
		WithArgs(rv.SellerID).
		WillReturnRows(pgxmock.NewRows([]string{"seller_id"}).AddRow(rv.SellerID))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(rv.SellerID, rv.ReviewerID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestReviewRepository_Submit(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	expectLockAndDuplicateCheck(mock, rv, false)
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.SellerID, rv.ReviewerID, rv.ReviewerUsername, rv.Rating, rv.Comment, rv.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(rv.SellerID).
		WillReturnRows(pgxmock.NewRows([]string{"rating"}).AddRow(5).AddRow(4).AddRow(4))
	mock.ExpectExec("UPDATE seller_reputations").
		WithArgs(rv.SellerID, 4.33, 3).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	rep, err := repo.Submit(context.Background(), rv)
	require.NoError(t, err)
	assert.Equal(t, domain.SellerReputation{SellerID: "seller-1", AverageRating: 4.33, ReviewCount: 3}, rep)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_SubmitDuplicateRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	expectLockAndDuplicateCheck(mock, rv, true)
	mock.ExpectRollback()

	_, err := repo.Submit(context.Background(), rv)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateReview)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_SubmitUniqueViolationIsDuplicate(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	expectLockAndDuplicateCheck(mock, rv, false)
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.SellerID, rv.ReviewerID, rv.ReviewerUsername, rv.Rating, rv.Comment, rv.CreatedAt).
		WillReturnError(uniqueViolation("reviews_seller_reviewer_key"))
	mock.ExpectRollback()

	_, err := repo.Submit(context.Background(), rv)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateReview)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_SubmitRecomputeFailureRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	expectLockAndDuplicateCheck(mock, rv, false)
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.SellerID, rv.ReviewerID, rv.ReviewerUsername, rv.Rating, rv.Comment, rv.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT rating FROM reviews").
		WithArgs(rv.SellerID).
		WillReturnRows(pgxmock.NewRows([]string{"rating"}).AddRow(4))
	mock.ExpectExec("UPDATE seller_reputations").
		WithArgs(rv.SellerID, 4.0, 1).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := repo.Submit(context.Background(), rv)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrDuplicateReview)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ReputationWithoutReviews(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT average_rating, review_count FROM seller_reputations").
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)

	rep, err := repo.Reputation(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, domain.SellerReputation{SellerID: "nobody"}, rep)
}

func TestReviewRepository_ListBySeller(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectQuery("(?s)SELECT .+\\s+FROM reviews\\s+WHERE seller_id = \\$1\\s+ORDER BY created_at DESC").
		WithArgs("seller-1", 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seller_id", "reviewer_id", "reviewer_username", "rating", "comment", "created_at"}).
			AddRow(rv.ID, rv.SellerID, rv.ReviewerID, rv.ReviewerUsername, rv.Rating, rv.Comment, rv.CreatedAt))
	mock.ExpectQuery(`SELECT count\(\*\) FROM reviews`).
		WithArgs("seller-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(11))

	got, total, err := repo.ListBySeller(context.Background(), "seller-1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, got, 1)
	assert.Equal(t, "ana", got[0].ReviewerUsername)
	require.NoError(t, mock.ExpectationsWereMet())
}

// --- WishlistRepository ---

func expectToggleLock(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("u1:l1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func TestWishlistRepository_ToggleOff(t *testing.T) {
	mock := newMock(t)
	repo := NewWishlistRepository(mock)

	expectToggleLock(mock)
	mock.ExpectExec("DELETE FROM wishlist_entries").
		WithArgs("u1", "l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	liked, err := repo.Toggle(context.Background(), "u1", "l1")
	require.NoError(t, err)
	assert.False(t, liked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepository_ToggleOn(t *testing.T) {
	mock := newMock(t)
	repo := NewWishlistRepository(mock)

	expectToggleLock(mock)
	mock.ExpectExec("DELETE FROM wishlist_entries").
		WithArgs("u1", "l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO wishlist_entries").
		WithArgs("u1", "l1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	liked, err := repo.Toggle(context.Background(), "u1", "l1")
	require.NoError(t, err)
	assert.True(t, liked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepository_ToggleUnknownListing(t *testing.T) {
	mock := newMock(t)
	repo := NewWishlistRepository(mock)

	expectToggleLock(mock)
	mock.ExpectExec("DELETE FROM wishlist_entries").
		WithArgs("u1", "l1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("INSERT INTO wishlist_entries").
		WithArgs("u1", "l1").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	_, err := repo.Toggle(context.Background(), "u1", "l1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWishlistRepository_ListByUser(t *testing.T) {
	mock := newMock(t)
	repo := NewWishlistRepository(mock)

	mock.ExpectQuery("SELECT user_id, listing_id::text, created_at").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "listing_id", "created_at"}).
			AddRow("u1", "l2", now.Add(time.Minute)).
			AddRow("u1", "l1", now))

	got, err := repo.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "l2", got[0].ListingID)
}

// --- ProfileRepository ---

func TestProfileRepository_GetByUsername(t *testing.T) {
	mock := newMock(t)
	repo := NewProfileRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM profiles WHERE username").
		WithArgs("marko").
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "username", "avatar", "bio", "location", "updated_at"}).
			AddRow("u1", "marko", "a.png", "collector", "Split", now))
	mock.ExpectQuery("SELECT .+ FROM profiles WHERE username").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	p, err := repo.GetByUsername(context.Background(), "marko")
	require.NoError(t, err)
	assert.Equal(t, "Split", p.Location)

	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProfileRepository_EnsureAndUpdate(t *testing.T) {
	mock := newMock(t)
	repo := NewProfileRepository(mock)

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("u1", "marko").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE profiles").
		WithArgs("u1", "a.png", "bio", "Zagreb").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.Ensure(context.Background(), "u1", "marko"))
	err := repo.Update(context.Background(), &domain.Profile{UserID: "u1", Avatar: "a.png", Bio: "bio", Location: "Zagreb"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
