package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
)

const keyPrefix = "wishlist:"

// toggleScript flips membership of ARGV[1] in the user's sorted set, scored by
// the like time in milliseconds. Returns 1 when the entry now exists.
var toggleScript = redis.NewScript(`
if redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	redis.call("ZREM", KEYS[1], ARGV[1])
	return 0
end
redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
return 1
`)

// WishlistRepository implements repository.WishlistRepository using one
// Redis sorted set per user. It does not know about listings; callers check
// that a listing exists before liking it.
type WishlistRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

var _ repository.WishlistRepository = (*WishlistRepository)(nil)

// NewWishlistRepository creates a Redis-backed wishlist store.
func NewWishlistRepository(client redis.Cmdable) *WishlistRepository {
	return &WishlistRepository{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func key(userID string) string {
	return keyPrefix + userID
}

// Toggle runs as a single script, so concurrent flips of the same pair never
// interleave.
func (r *WishlistRepository) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	res, err := toggleScript.Run(ctx, r.client, []string{key(userID)}, listingID, r.now().UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("redis toggle wishlist: %w", err)
	}
	return res == 1, nil
}

func (r *WishlistRepository) Contains(ctx context.Context, userID, listingID string) (bool, error) {
	err := r.client.ZScore(ctx, key(userID), listingID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis check wishlist: %w", err)
	}
	return true, nil
}

// ListByUser returns entries newest first.
func (r *WishlistRepository) ListByUser(ctx context.Context, userID string) ([]domain.WishlistEntry, error) {
	members, err := r.client.ZRevRangeWithScores(ctx, key(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list wishlist: %w", err)
	}

	out := make([]domain.WishlistEntry, 0, len(members))
	for _, m := range members {
		id, ok := m.Member.(string)
		if !ok {
			continue
		}
		out = append(out, domain.WishlistEntry{
			UserID:    userID,
			ListingID: id,
			CreatedAt: time.UnixMilli(int64(m.Score)).UTC(),
		})
	}
	return out, nil
}
