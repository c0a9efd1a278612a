package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GabrijelGordic/Suzeraj/internal/service"
	"github.com/GabrijelGordic/Suzeraj/pkg/health"
	"github.com/GabrijelGordic/Suzeraj/pkg/middleware"
)

const serviceName = "market"

// Services groups the application services the router exposes.
type Services struct {
	Catalog    *service.CatalogService
	Reputation *service.ReputationService
	Wishlist   *service.WishlistService
	Profiles   *service.ProfileService
}

// RouterConfig holds router settings that come from configuration.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	PprofCIDRs     []string
	RequestTimeout time.Duration
	WriteRateLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(
	svcs Services,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Identity)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	listingHandler := NewListingHandler(svcs.Catalog, logger)
	reviewHandler := NewReviewHandler(svcs.Reputation, logger)
	wishlistHandler := NewWishlistHandler(svcs.Wishlist, logger)
	sellerHandler := NewSellerHandler(svcs.Profiles, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.RequestTimeout))

		// Public reads
		r.Get("/listings", listingHandler.List)
		r.Get("/listings/{id}", listingHandler.Get)
		r.Get("/sellers/{username}", sellerHandler.Get)
		r.Get("/sellers/{username}/reviews", sellerHandler.ListReviews)

		// Caller-scoped endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIdentity)
			r.Use(middleware.RateLimit(cfg.WriteRateLimit, logger))
			r.Use(ContentTypeJSON)

			r.Post("/listings", listingHandler.Create)
			r.Patch("/listings/{id}", listingHandler.Update)
			r.Delete("/listings/{id}", listingHandler.Delete)
			r.Post("/listings/{id}/wishlist", wishlistHandler.Toggle)
			r.Get("/wishlist", wishlistHandler.List)
			r.Post("/reviews", reviewHandler.Submit)
			r.Patch("/profile", sellerHandler.UpdateProfile)
		})
	})

	return r
}
