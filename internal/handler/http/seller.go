package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GabrijelGordic/Suzeraj/internal/service"
	"github.com/GabrijelGordic/Suzeraj/pkg/httputil"
	"github.com/GabrijelGordic/Suzeraj/pkg/middleware"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

// SellerHandler handles public seller profiles and the caller's own profile.
type SellerHandler struct {
	service *service.ProfileService
	logger  *slog.Logger
}

// NewSellerHandler creates a new seller HTTP handler.
func NewSellerHandler(svc *service.ProfileService, logger *slog.Logger) *SellerHandler {
	return &SellerHandler{
		service: svc,
		logger:  logger,
	}
}

// UpdateProfileRequest is the JSON request body for editing the caller's
// profile.
type UpdateProfileRequest struct {
	Avatar   *string `json:"avatar" validate:"omitempty,max=500"`
	Bio      *string `json:"bio" validate:"omitempty,max=1000"`
	Location *string `json:"location" validate:"omitempty,max=100"`
}

// SellerReviewResponse is a review embedded in a seller profile.
type SellerReviewResponse struct {
	ReviewerUsername string    `json:"reviewer_username"`
	Rating           int       `json:"rating"`
	Comment          string    `json:"comment"`
	CreatedAt        time.Time `json:"created_at"`
}

// SellerProfileResponse is the public profile of a seller.
type SellerProfileResponse struct {
	Username     string                 `json:"username"`
	Avatar       string                 `json:"avatar"`
	Bio          string                 `json:"bio"`
	Location     string                 `json:"location"`
	SellerRating float64                `json:"seller_rating"`
	ReviewCount  int                    `json:"review_count"`
	ReviewsList  []SellerReviewResponse `json:"reviews_list"`
}

// ProfileResponse is the caller's own profile.
type ProfileResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Bio      string `json:"bio"`
	Location string `json:"location"`
}

// Get handles GET /api/v1/sellers/{username}
func (h *SellerHandler) Get(w http.ResponseWriter, r *http.Request) {
	sp, err := h.service.GetSellerProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	reviews := make([]SellerReviewResponse, len(sp.Reviews))
	for i, rv := range sp.Reviews {
		reviews[i] = SellerReviewResponse{
			ReviewerUsername: rv.ReviewerUsername,
			Rating:           rv.Rating,
			Comment:          rv.Comment,
			CreatedAt:        rv.CreatedAt,
		}
	}

	httputil.WriteJSON(w, http.StatusOK, SellerProfileResponse{
		Username:     sp.Username,
		Avatar:       sp.Avatar,
		Bio:          sp.Bio,
		Location:     sp.Location,
		SellerRating: sp.Reputation.AverageRating,
		ReviewCount:  sp.Reputation.ReviewCount,
		ReviewsList:  reviews,
	})
}

// ListReviews handles GET /api/v1/sellers/{username}/reviews
func (h *SellerHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, total, err := h.service.ListSellerReviews(r.Context(), chi.URLParam(r, "username"), pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPage(toReviewResponses(reviews), total))
}

// UpdateProfile handles PATCH /api/v1/profile
func (h *SellerHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller, _ := middleware.CallerFromContext(r.Context())
	p, err := h.service.UpdateProfile(r.Context(), caller.UserID, caller.Username, &service.UpdateProfileInput{
		Avatar:   req.Avatar,
		Bio:      req.Bio,
		Location: req.Location,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ProfileResponse{
		UserID:   p.UserID,
		Username: p.Username,
		Avatar:   p.Avatar,
		Bio:      p.Bio,
		Location: p.Location,
	})
}
