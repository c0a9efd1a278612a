package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const tracerName = "github.com/GabrijelGordic/Suzeraj/internal/service"

var (
	catalogQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_catalog_queries_total",
		Help: "Catalog searches by result (ok, invalid, error).",
	}, []string{"result"})

	reviewsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_reviews_submitted_total",
		Help: "Review submissions by result.",
	}, []string{"result"})

	wishlistToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_wishlist_toggles_total",
		Help: "Wishlist toggles by resulting state (liked, unliked).",
	}, []string{"state"})
)
