package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// sellerBook is the immutable review state of one seller.
type sellerBook struct {
	reviews    []domain.Review // oldest first
	reviewers  map[string]struct{}
	reputation domain.SellerReputation
}

type sellerSlot struct {
	mu   sync.Mutex
	book atomic.Pointer[sellerBook]
}

// ReviewRepository keeps reviews per seller. Submissions for one seller
// serialize on that seller's lock; other sellers proceed in parallel.
type ReviewRepository struct {
	sellers sync.Map // sellerID -> *sellerSlot
}

var _ repository.ReviewRepository = (*ReviewRepository)(nil)

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{}
}

func (r *ReviewRepository) slot(sellerID string) *sellerSlot {
	v, _ := r.sellers.LoadOrStore(sellerID, &sellerSlot{})
	return v.(*sellerSlot)
}

func (r *ReviewRepository) book(sellerID string) *sellerBook {
	v, ok := r.sellers.Load(sellerID)
	if !ok {
		return nil
	}
	return v.(*sellerSlot).book.Load()
}

// Submit builds the next book aside and publishes it only once the insert
// and the recompute have both been applied.
func (r *ReviewRepository) Submit(ctx context.Context, review *domain.Review) (domain.SellerReputation, error) {
	slot := r.slot(review.SellerID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.SellerReputation{}, err
	}

	cur := slot.book.Load()
	if cur == nil {
		cur = &sellerBook{reviewers: map[string]struct{}{}}
	}
	if _, dup := cur.reviewers[review.ReviewerID]; dup {
		return domain.SellerReputation{}, apperrors.DuplicateReview(review.SellerID)
	}

	next := &sellerBook{
		reviews:   append(slices.Clip(cur.reviews), *review),
		reviewers: make(map[string]struct{}, len(cur.reviewers)+1),
	}
	for id := range cur.reviewers {
		next.reviewers[id] = struct{}{}
	}
	next.reviewers[review.ReviewerID] = struct{}{}

	ratings := make([]int, len(next.reviews))
	for i, rv := range next.reviews {
		ratings[i] = rv.Rating
	}
	next.reputation = domain.ComputeReputation(review.SellerID, ratings)

	slot.book.Store(next)
	return next.reputation, nil
}

func (r *ReviewRepository) Reputation(_ context.Context, sellerID string) (domain.SellerReputation, error) {
	b := r.book(sellerID)
	if b == nil {
		return domain.SellerReputation{SellerID: sellerID}, nil
	}
	return b.reputation, nil
}

func (r *ReviewRepository) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]domain.Review, int, error) {
	b := r.book(sellerID)
	if b == nil {
		return []domain.Review{}, 0, nil
	}

	total := len(b.reviews)
	start := min(max(offset, 0), total)
	end := min(start+limit, total)

	out := make([]domain.Review, 0, end-start)
	for i := start; i < end; i++ {
		// Newest first: walk the oldest-first slice from the back.
		out = append(out, b.reviews[total-1-i])
	}
	return out, total, nil
}
