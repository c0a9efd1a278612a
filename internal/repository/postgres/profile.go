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

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	db database.DBTX
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository(db database.DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Ensure(ctx context.Context, userID, username string) (err error) {
	query := `
		INSERT INTO profiles (user_id, username) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET username = EXCLUDED.username, updated_at = NOW()
		WHERE profiles.username <> EXCLUDED.username`

	ctx, end := database.TraceQuery(ctx, system, "EnsureProfile", query)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, query, userID, username); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

const profileColumns = `user_id, username, avatar, bio, location, updated_at`

func (r *ProfileRepository) get(ctx context.Context, operation, where, arg, resource string) (p *domain.Profile, err error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + where + ` = $1`

	ctx, end := database.TraceQuery(ctx, system, operation, query)
	defer func() { end(err) }()

	var out domain.Profile
	err = r.db.QueryRow(ctx, query, arg).Scan(&out.UserID, &out.Username, &out.Avatar, &out.Bio, &out.Location, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound(resource, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &out, nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, userID string) (*domain.Profile, error) {
	return r.get(ctx, "GetProfileByID", "user_id", userID, "user")
}

func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	return r.get(ctx, "GetProfileByUsername", "username", username, "seller")
}

func (r *ProfileRepository) Update(ctx context.Context, p *domain.Profile) (err error) {
	query := `UPDATE profiles SET avatar = $2, bio = $3, location = $4, updated_at = NOW() WHERE user_id = $1`

	ctx, end := database.TraceQuery(ctx, system, "UpdateProfile", query)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, query, p.UserID, p.Avatar, p.Bio, p.Location)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", p.UserID)
	}
	return nil
}
