package memory

import (
	"context"
	"sync"
	"time"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// ProfileRepository is an in-memory profile store.
type ProfileRepository struct {
	mu         sync.RWMutex
	byID       map[string]domain.Profile
	byUsername map[string]string // username -> userID
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		byID:       make(map[string]domain.Profile),
		byUsername: make(map[string]string),
	}
}

func (r *ProfileRepository) Ensure(_ context.Context, userID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[userID]
	if ok && p.Username == username {
		return nil
	}
	if ok {
		delete(r.byUsername, p.Username)
	}
	p.UserID = userID
	p.Username = username
	p.UpdatedAt = time.Now().UTC()
	r.byID[userID] = p
	r.byUsername[username] = userID
	return nil
}

func (r *ProfileRepository) GetByID(_ context.Context, userID string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[userID]
	if !ok {
		return nil, apperrors.NotFound("user", userID)
	}
	return &p, nil
}

func (r *ProfileRepository) GetByUsername(_ context.Context, username string) (*domain.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, apperrors.NotFound("seller", username)
	}
	p := r.byID[id]
	return &p, nil
}

func (r *ProfileRepository) Update(_ context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[profile.UserID]
	if !ok {
		return apperrors.NotFound("user", profile.UserID)
	}
	p.Avatar = profile.Avatar
	p.Bio = profile.Bio
	p.Location = profile.Location
	p.UpdatedAt = time.Now().UTC()
	r.byID[p.UserID] = p
	return nil
}
