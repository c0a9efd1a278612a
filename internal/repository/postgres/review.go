package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	"github.com/GabrijelGordic/Suzeraj/pkg/database"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
// Submissions for a seller serialize on that seller's seller_reputations row.
type ReviewRepository struct {
	db database.DBTX
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Submit inserts the review and rewrites the seller's reputation in one
// transaction holding the reputation row lock. The duplicate check runs under
// that lock; the UNIQUE (seller_id, reviewer_id) constraint backs it up.
func (r *ReviewRepository) Submit(ctx context.Context, rv *domain.Review) (rep domain.SellerReputation, err error) {
	ctx, end := database.TraceQuery(ctx, system, "SubmitReview", "review insert + reputation recompute")
	defer func() { end(err) }()

	err = database.WithTxRetry(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO seller_reputations (seller_id) VALUES ($1) ON CONFLICT (seller_id) DO NOTHING`,
			rv.SellerID,
		); err != nil {
			return fmt.Errorf("ensure reputation row: %w", err)
		}

		var locked string
		if err := tx.QueryRow(ctx,
			`SELECT seller_id FROM seller_reputations WHERE seller_id = $1 FOR UPDATE`,
			rv.SellerID,
		).Scan(&locked); err != nil {
			return fmt.Errorf("lock reputation row: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM reviews WHERE seller_id = $1 AND reviewer_id = $2)`,
			rv.SellerID, rv.ReviewerID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check duplicate review: %w", err)
		}
		if exists {
			return apperrors.DuplicateReview(rv.SellerID)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reviews (id, seller_id, reviewer_id, reviewer_username, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			rv.ID, rv.SellerID, rv.ReviewerID, rv.ReviewerUsername, rv.Rating, rv.Comment, rv.CreatedAt,
		); err != nil {
			if database.IsPgCode(err, database.CodeUniqueViolation) {
				return apperrors.DuplicateReview(rv.SellerID)
			}
			return fmt.Errorf("insert review: %w", err)
		}

		rows, err := tx.Query(ctx, `SELECT rating FROM reviews WHERE seller_id = $1`, rv.SellerID)
		if err != nil {
			return fmt.Errorf("load ratings: %w", err)
		}
		ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
		if err != nil {
			return fmt.Errorf("scan ratings: %w", err)
		}

		rep = domain.ComputeReputation(rv.SellerID, ratings)

		if _, err := tx.Exec(ctx, `
			UPDATE seller_reputations
			SET average_rating = $2, review_count = $3, updated_at = NOW()
			WHERE seller_id = $1`,
			rep.SellerID, rep.AverageRating, rep.ReviewCount,
		); err != nil {
			return fmt.Errorf("update reputation: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.SellerReputation{}, err
	}
	return rep, nil
}

func (r *ReviewRepository) Reputation(ctx context.Context, sellerID string) (rep domain.SellerReputation, err error) {
	query := `SELECT average_rating, review_count FROM seller_reputations WHERE seller_id = $1`

	ctx, end := database.TraceQuery(ctx, system, "GetReputation", query)
	defer func() { end(err) }()

	rep.SellerID = sellerID
	err = r.db.QueryRow(ctx, query, sellerID).Scan(&rep.AverageRating, &rep.ReviewCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SellerReputation{SellerID: sellerID}, nil
	}
	if err != nil {
		return domain.SellerReputation{}, fmt.Errorf("get reputation: %w", err)
	}
	return rep, nil
}

func (r *ReviewRepository) ListBySeller(ctx context.Context, sellerID string, limit, offset int) (out []domain.Review, total int, err error) {
	query := `
		SELECT id, seller_id, reviewer_id, reviewer_username, rating, comment, created_at
		FROM reviews
		WHERE seller_id = $1
		ORDER BY created_at DESC, id ASC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, system, "ListSellerReviews", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, sellerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out = []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.SellerID, &rv.ReviewerID, &rv.ReviewerUsername, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM reviews WHERE seller_id = $1`, sellerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reviews: %w", err)
	}
	return out, total, nil
}
