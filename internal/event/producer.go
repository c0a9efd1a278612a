package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	pkgkafka "github.com/GabrijelGordic/Suzeraj/pkg/kafka"
	"github.com/GabrijelGordic/Suzeraj/pkg/logger"
)

// Kafka topics for marketplace domain events.
var (
	TopicListingCreated  = pkgkafka.Topic("listing", "created")
	TopicListingUpdated  = pkgkafka.Topic("listing", "updated")
	TopicListingDeleted  = pkgkafka.Topic("listing", "deleted")
	TopicReviewSubmitted = pkgkafka.Topic("review", "submitted")
	TopicWishlistToggled = pkgkafka.Topic("wishlist", "toggled")
)

// ListingTopics are the topics the search indexer follows.
var ListingTopics = []string{TopicListingCreated, TopicListingUpdated, TopicListingDeleted}

const (
	AggregateTypeListing  = "listing"
	AggregateTypeSeller   = "seller"
	AggregateTypeWishlist = "wishlist"
)

// SourceMarketService identifies events originating from this service.
const SourceMarketService = "market-service"

// ListingData is the payload of listing.created and listing.updated.
type ListingData struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Brand          string  `json:"brand"`
	Size           float64 `json:"size"`
	Price          string  `json:"price"`
	Currency       string  `json:"currency"`
	Condition      string  `json:"condition"`
	IsSold         bool    `json:"is_sold"`
	SellerID       string  `json:"seller_id"`
	SellerUsername string  `json:"seller_username"`
}

// ListingDeletedData is the payload of listing.deleted.
type ListingDeletedData struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
}

// ReviewSubmittedData carries the review and the reputation it produced.
type ReviewSubmittedData struct {
	ReviewID     string  `json:"review_id"`
	SellerID     string  `json:"seller_id"`
	ReviewerID   string  `json:"reviewer_id"`
	Rating       int     `json:"rating"`
	SellerRating float64 `json:"seller_rating"`
	ReviewCount  int     `json:"review_count"`
}

// WishlistToggledData is the payload of wishlist.toggled.
type WishlistToggledData struct {
	UserID    string `json:"user_id"`
	ListingID string `json:"listing_id"`
	Liked     bool   `json:"liked"`
}

// Publisher sends one event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes marketplace domain events. A Producer without a
// Publisher drops every event, which is how the service runs with Kafka
// disabled.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates an event producer. publisher may be nil.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

// Enabled reports whether events leave the process.
func (p *Producer) Enabled() bool {
	return p != nil && p.publisher != nil
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType, actorID string, data any) error {
	if !p.Enabled() {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceMarketService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithActor(actorID)
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func listingData(l *domain.Listing) ListingData {
	return ListingData{
		ID:             l.ID,
		Title:          l.Title,
		Brand:          l.Brand,
		Size:           l.Size,
		Price:          l.Price.StringFixed(domain.PriceScale),
		Currency:       string(l.Currency),
		Condition:      string(l.Condition),
		IsSold:         l.IsSold,
		SellerID:       l.SellerID,
		SellerUsername: l.SellerUsername,
	}
}

// PublishListingCreated publishes a listing.created event.
func (p *Producer) PublishListingCreated(ctx context.Context, l *domain.Listing) error {
	return p.publish(ctx, TopicListingCreated, l.ID, AggregateTypeListing, l.SellerID, listingData(l))
}

// PublishListingUpdated publishes a listing.updated event.
func (p *Producer) PublishListingUpdated(ctx context.Context, l *domain.Listing) error {
	return p.publish(ctx, TopicListingUpdated, l.ID, AggregateTypeListing, l.SellerID, listingData(l))
}

// PublishListingDeleted publishes a listing.deleted event.
func (p *Producer) PublishListingDeleted(ctx context.Context, id, sellerID string) error {
	return p.publish(ctx, TopicListingDeleted, id, AggregateTypeListing, sellerID, ListingDeletedData{ID: id, SellerID: sellerID})
}

// PublishReviewSubmitted publishes a review.submitted event keyed by seller,
// so reputation changes for one seller stay ordered.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, rv *domain.Review, rep domain.SellerReputation) error {
	return p.publish(ctx, TopicReviewSubmitted, rv.SellerID, AggregateTypeSeller, rv.ReviewerID, ReviewSubmittedData{
		ReviewID:     rv.ID,
		SellerID:     rv.SellerID,
		ReviewerID:   rv.ReviewerID,
		Rating:       rv.Rating,
		SellerRating: rep.AverageRating,
		ReviewCount:  rep.ReviewCount,
	})
}

// PublishWishlistToggled publishes a wishlist.toggled event keyed by user.
func (p *Producer) PublishWishlistToggled(ctx context.Context, userID, listingID string, liked bool) error {
	return p.publish(ctx, TopicWishlistToggled, userID, AggregateTypeWishlist, userID, WishlistToggledData{
		UserID:    userID,
		ListingID: listingID,
		Liked:     liked,
	})
}
