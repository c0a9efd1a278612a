package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/repository"
	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	pkgkafka "github.com/GabrijelGordic/Suzeraj/pkg/kafka"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

// ListingSource reads the authoritative copy of a listing.
type ListingSource interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
}

// ListingIndex is the search index the Indexer maintains.
type ListingIndex interface {
	Index(ctx context.Context, l *domain.Listing) error
	Delete(ctx context.Context, id string) error
}

// Indexer keeps the search index in step with listing events. It does not
// trust event payloads: every event triggers a re-read of the listing, so
// events arriving out of order across topics still converge on the stored
// state.
type Indexer struct {
	source ListingSource
	index  ListingIndex
	logger *slog.Logger
}

// NewIndexer creates a listing indexer.
func NewIndexer(source ListingSource, index ListingIndex, logger *slog.Logger) *Indexer {
	return &Indexer{source: source, index: index, logger: logger}
}

// Handle processes one listing event.
func (x *Indexer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicListingCreated, TopicListingUpdated, TopicListingDeleted:
	default:
		x.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	id := event.AggregateID
	if id == "" {
		var data ListingDeletedData
		if err := event.UnmarshalData(&data); err != nil {
			return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
		}
		id = data.ID
	}
	return x.Sync(ctx, id)
}

// Sync indexes the stored listing id, or removes it from the index when the
// store no longer has it.
func (x *Indexer) Sync(ctx context.Context, id string) error {
	l, err := x.source.GetByID(ctx, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		if err := x.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("remove listing %s from index: %w", id, err)
		}
		x.logger.InfoContext(ctx, "removed listing from index", slog.String("listing_id", id))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load listing %s: %w", id, err)
	}

	if err := x.index.Index(ctx, l); err != nil {
		return fmt.Errorf("index listing %s: %w", id, err)
	}
	x.logger.InfoContext(ctx, "indexed listing", slog.String("listing_id", id))
	return nil
}

// BulkListingIndex accepts batches of listings.
type BulkListingIndex interface {
	BulkIndex(ctx context.Context, listings []domain.Listing) error
}

// rebuildPageSize is the batch size used when copying the store into the index.
const rebuildPageSize = 48

// Rebuild copies every stored listing into the index, oldest first, and
// returns how many were written.
func Rebuild(ctx context.Context, src repository.ListingSearcher, idx BulkListingIndex, logger *slog.Logger) (int, error) {
	written := 0
	for page := 1; ; page++ {
		q := repository.ListingQuery{
			Ordering: domain.OrderOldest,
			Page:     pagination.New(strconv.Itoa(page), strconv.Itoa(rebuildPageSize)),
		}
		batch, total, err := src.Search(ctx, q)
		if err != nil {
			return written, fmt.Errorf("read listings page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		if err := idx.BulkIndex(ctx, batch); err != nil {
			return written, fmt.Errorf("index listings page %d: %w", page, err)
		}
		written += len(batch)
		if written >= total {
			break
		}
	}

	logger.InfoContext(ctx, "search index rebuilt", slog.Int("listings", written))
	return written, nil
}
