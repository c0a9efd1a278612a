// Package memory implements the repository interfaces in process memory.
// Reads never take a lock: each record is an immutable snapshot published
// through an atomic pointer, and writers serialize per record.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

type listingSlot struct {
	mu  sync.Mutex
	cur atomic.Pointer[domain.Listing]
}

// ListingRepository is an in-memory catalog store.
type ListingRepository struct {
	slots sync.Map // id -> *listingSlot
}

var _ repository.ListingRepository = (*ListingRepository)(nil)

// NewListingRepository creates an empty in-memory catalog.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{}
}

func (r *ListingRepository) Create(_ context.Context, listing *domain.Listing) error {
	slot := &listingSlot{}
	slot.cur.Store(listing.Clone())
	if _, loaded := r.slots.LoadOrStore(listing.ID, slot); loaded {
		return apperrors.InvalidInput("listing " + listing.ID + " already exists")
	}
	return nil
}

func (r *ListingRepository) load(id string) *domain.Listing {
	v, ok := r.slots.Load(id)
	if !ok {
		return nil
	}
	return v.(*listingSlot).cur.Load()
}

func (r *ListingRepository) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	l := r.load(id)
	if l == nil {
		return nil, apperrors.NotFound("listing", id)
	}
	return l.Clone(), nil
}

func (r *ListingRepository) GetByIDs(_ context.Context, ids []string) ([]domain.Listing, error) {
	out := make([]domain.Listing, 0, len(ids))
	for _, id := range ids {
		if l := r.load(id); l != nil {
			out = append(out, *l.Clone())
		}
	}
	return out, nil
}

// mutate applies fn to a private copy of the listing under the slot lock
// and publishes the copy.
func (r *ListingRepository) mutate(id string, fn func(l *domain.Listing)) error {
	v, ok := r.slots.Load(id)
	if !ok {
		return apperrors.NotFound("listing", id)
	}
	slot := v.(*listingSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	cur := slot.cur.Load()
	if cur == nil {
		return apperrors.NotFound("listing", id)
	}
	next := cur.Clone()
	fn(next)
	slot.cur.Store(next)
	return nil
}

func (r *ListingRepository) Update(_ context.Context, listing *domain.Listing) error {
	return r.mutate(listing.ID, func(l *domain.Listing) {
		// Identity, ownership, creation time and the view counter are not
		// writable through Update.
		id, sellerID, sellerUsername, createdAt, views := l.ID, l.SellerID, l.SellerUsername, l.CreatedAt, l.ViewCount
		*l = *listing.Clone()
		l.ID, l.SellerID, l.SellerUsername, l.CreatedAt, l.ViewCount = id, sellerID, sellerUsername, createdAt, views
	})
}

func (r *ListingRepository) Delete(_ context.Context, id string) error {
	v, ok := r.slots.Load(id)
	if !ok {
		return apperrors.NotFound("listing", id)
	}
	slot := v.(*listingSlot)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.cur.Load() == nil {
		return apperrors.NotFound("listing", id)
	}
	slot.cur.Store(nil)
	r.slots.Delete(id)
	return nil
}

func (r *ListingRepository) IncrementViews(_ context.Context, id string) error {
	return r.mutate(id, func(l *domain.Listing) {
		l.ViewCount++
	})
}

// Search scans a point-in-time view of every listing. A listing written
// concurrently is seen either before or after the write.
func (r *ListingRepository) Search(_ context.Context, q repository.ListingQuery) ([]domain.Listing, int, error) {
	matched := make([]*domain.Listing, 0)
	r.slots.Range(func(_, v any) bool {
		l := v.(*listingSlot).cur.Load()
		if l != nil && q.Filter.Matches(l) {
			matched = append(matched, l)
		}
		return true
	})

	domain.SortListings(matched, q.Ordering)

	page := pagination.Slice(matched, q.Page)
	out := make([]domain.Listing, len(page))
	for i, l := range page {
		out[i] = *l.Clone()
	}
	return out, len(matched), nil
}
