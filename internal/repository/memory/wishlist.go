package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
)

type userWishlist struct {
	mu      sync.Mutex
	entries map[string]time.Time // listingID -> liked at
}

// WishlistRepository keeps one set per user, each behind its own lock.
type WishlistRepository struct {
	users sync.Map // userID -> *userWishlist
	now   func() time.Time
}

var _ repository.WishlistRepository = (*WishlistRepository)(nil)

func NewWishlistRepository() *WishlistRepository {
	return &WishlistRepository{now: func() time.Time { return time.Now().UTC() }}
}

func (r *WishlistRepository) user(userID string) *userWishlist {
	v, _ := r.users.LoadOrStore(userID, &userWishlist{entries: map[string]time.Time{}})
	return v.(*userWishlist)
}

func (r *WishlistRepository) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	u := r.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	if _, ok := u.entries[listingID]; ok {
		delete(u.entries, listingID)
		return false, nil
	}
	u.entries[listingID] = r.now()
	return true, nil
}

func (r *WishlistRepository) Contains(_ context.Context, userID, listingID string) (bool, error) {
	v, ok := r.users.Load(userID)
	if !ok {
		return false, nil
	}
	u := v.(*userWishlist)
	u.mu.Lock()
	defer u.mu.Unlock()
	_, liked := u.entries[listingID]
	return liked, nil
}

func (r *WishlistRepository) ListByUser(_ context.Context, userID string) ([]domain.WishlistEntry, error) {
	out := []domain.WishlistEntry{}
	v, ok := r.users.Load(userID)
	if !ok {
		return out, nil
	}
	u := v.(*userWishlist)

	u.mu.Lock()
	for id, at := range u.entries {
		out = append(out, domain.WishlistEntry{UserID: userID, ListingID: id, CreatedAt: at})
	}
	u.mu.Unlock()

	slices.SortFunc(out, func(a, b domain.WishlistEntry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ListingID, b.ListingID)
	})
	return out, nil
}
