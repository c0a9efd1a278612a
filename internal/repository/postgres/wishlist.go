package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	"github.com/GabrijelGordic/Suzeraj/pkg/database"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// WishlistRepository implements repository.WishlistRepository using PostgreSQL.
type WishlistRepository struct {
	db database.DBTX
}

var _ repository.WishlistRepository = (*WishlistRepository)(nil)

func NewWishlistRepository(db database.DBTX) *WishlistRepository {
	return &WishlistRepository{db: db}
}

// Toggle serializes flips of one (user, listing) pair on a transaction-scoped
// advisory lock, then deletes the entry or inserts it when there was none.
func (r *WishlistRepository) Toggle(ctx context.Context, userID, listingID string) (liked bool, err error) {
	ctx, end := database.TraceQuery(ctx, system, "ToggleWishlist", "wishlist delete-or-insert")
	defer func() { end(err) }()

	err = database.WithTxRetry(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID+":"+listingID); err != nil {
			return fmt.Errorf("lock wishlist entry: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM wishlist_entries WHERE user_id = $1 AND listing_id = $2`,
			userID, listingID,
		)
		if err != nil {
			return fmt.Errorf("delete wishlist entry: %w", err)
		}
		if tag.RowsAffected() > 0 {
			liked = false
			return nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO wishlist_entries (user_id, listing_id) VALUES ($1, $2)`,
			userID, listingID,
		); err != nil {
			if database.IsPgCode(err, database.CodeForeignKeyViolation) {
				return apperrors.NotFound("listing", listingID)
			}
			return fmt.Errorf("insert wishlist entry: %w", err)
		}
		liked = true
		return nil
	})
	return liked, err
}

func (r *WishlistRepository) Contains(ctx context.Context, userID, listingID string) (exists bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM wishlist_entries WHERE user_id = $1 AND listing_id = $2)`

	ctx, end := database.TraceQuery(ctx, system, "WishlistContains", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, userID, listingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check wishlist entry: %w", err)
	}
	return exists, nil
}

func (r *WishlistRepository) ListByUser(ctx context.Context, userID string) (out []domain.WishlistEntry, err error) {
	query := `
		SELECT user_id, listing_id::text, created_at
		FROM wishlist_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, listing_id ASC`

	ctx, end := database.TraceQuery(ctx, system, "ListWishlist", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	out = []domain.WishlistEntry{}
	for rows.Next() {
		var e domain.WishlistEntry
		if err := rows.Scan(&e.UserID, &e.ListingID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist rows: %w", err)
	}
	return out, nil
}
