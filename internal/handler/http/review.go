package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/service"
	"github.com/GabrijelGordic/Suzeraj/pkg/httputil"
	"github.com/GabrijelGordic/Suzeraj/pkg/middleware"
)

// ReviewHandler handles HTTP requests for review submission.
type ReviewHandler struct {
	service *service.ReputationService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReputationService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// SubmitReviewRequest is the JSON request body for reviewing a seller. The
// rating range is checked by the service so that it reports INVALID_RATING.
type SubmitReviewRequest struct {
	Seller  string `json:"seller" validate:"required"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewResponse is a single review.
type ReviewResponse struct {
	ID               string    `json:"id"`
	Seller           string    `json:"seller"`
	ReviewerUsername string    `json:"reviewer_username"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubmitReviewResponse carries the stored review and the seller's new
// reputation.
type SubmitReviewResponse struct {
	Review       ReviewResponse `json:"review"`
	SellerRating float64        `json:"seller_rating"`
	ReviewCount  int            `json:"review_count"`
}

func toReviewResponse(rv *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:               rv.ID,
		Seller:           rv.SellerID,
		ReviewerUsername: rv.ReviewerUsername,
		Rating:           rv.Rating,
		Comment:          rv.Comment,
		CreatedAt:        rv.CreatedAt,
	}
}

func toReviewResponses(rvs []domain.Review) []ReviewResponse {
	out := make([]ReviewResponse, len(rvs))
	for i := range rvs {
		out[i] = toReviewResponse(&rvs[i])
	}
	return out
}

// Submit handles POST /api/v1/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller, _ := middleware.CallerFromContext(r.Context())
	rv, rep, err := h.service.SubmitReview(r.Context(), &service.SubmitReviewInput{
		SellerID:         req.Seller,
		ReviewerID:       caller.UserID,
		ReviewerUsername: caller.Username,
		Rating:           req.Rating,
		Comment:          req.Comment,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, SubmitReviewResponse{
		Review:       toReviewResponse(rv),
		SellerRating: rep.AverageRating,
		ReviewCount:  rep.ReviewCount,
	})
}
