package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/GabrijelGordic/Suzeraj/internal/domain"
	"github.com/GabrijelGordic/Suzeraj/internal/service"
	"github.com/GabrijelGordic/Suzeraj/pkg/httputil"
	"github.com/GabrijelGordic/Suzeraj/pkg/middleware"
	"github.com/GabrijelGordic/Suzeraj/pkg/pagination"
)

// ListingHandler handles HTTP requests for catalog endpoints.
type ListingHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewListingHandler creates a new listing HTTP handler.
func NewListingHandler(svc *service.CatalogService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateListingRequest is the JSON request body for listing a pair.
type CreateListingRequest struct {
	Title       string           `json:"title" validate:"required,min=1,max=100"`
	Brand       string           `json:"brand" validate:"required"`
	Size        float64          `json:"size" validate:"required,gte=35,lte=49.5,halfstep"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Currency    string           `json:"currency" validate:"required,oneof=EUR USD GBP"`
	Condition   string           `json:"condition" validate:"required,oneof=New Used"`
	Description string           `json:"description" validate:"max=5000"`
	ContactInfo string           `json:"contact_info" validate:"max=100"`
	Images      []string         `json:"images" validate:"max=10,dive,required,max=500"`
}

// UpdateListingRequest is the JSON request body for a partial listing update.
type UpdateListingRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=1,max=100"`
	Brand       *string          `json:"brand"`
	Size        *float64         `json:"size" validate:"omitempty,gte=35,lte=49.5,halfstep"`
	Price       *decimal.Decimal `json:"price"`
	Currency    *string          `json:"currency" validate:"omitempty,oneof=EUR USD GBP"`
	Condition   *string          `json:"condition" validate:"omitempty,oneof=New Used"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	ContactInfo *string          `json:"contact_info" validate:"omitempty,max=100"`
	IsSold      *bool            `json:"is_sold"`
	Images      []string         `json:"images" validate:"omitempty,max=10,dive,required,max=500"`
}

// --- Response DTOs ---

// ListingResponse is a listing as rendered in catalog pages.
type ListingResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Brand          string    `json:"brand"`
	Size           float64   `json:"size"`
	Price          string    `json:"price"`
	Currency       string    `json:"currency"`
	Condition      string    `json:"condition"`
	Description    string    `json:"description"`
	ContactInfo    string    `json:"contact_info"`
	IsSold         bool      `json:"is_sold"`
	Seller         string    `json:"seller"`
	SellerUsername string    `json:"seller_username"`
	Views          int64     `json:"views"`
	Image          string    `json:"image"`
	Images         []string  `json:"images"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListingDetailResponse adds caller and seller context to a listing.
type ListingDetailResponse struct {
	ListingResponse
	IsLiked      bool    `json:"is_liked"`
	SellerRating float64 `json:"seller_rating"`
	ReviewCount  int     `json:"review_count"`
}

func toListingResponse(l *domain.Listing) ListingResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return ListingResponse{
		ID:             l.ID,
		Title:          l.Title,
		Brand:          l.Brand,
		Size:           l.Size,
		Price:          l.Price.StringFixed(domain.PriceScale),
		Currency:       string(l.Currency),
		Condition:      string(l.Condition),
		Description:    l.Description,
		ContactInfo:    l.ContactInfo,
		IsSold:         l.IsSold,
		Seller:         l.SellerID,
		SellerUsername: l.SellerUsername,
		Views:          l.ViewCount,
		Image:          l.Cover(),
		Images:         images,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func toListingResponses(ls []domain.Listing) []ListingResponse {
	out := make([]ListingResponse, len(ls))
	for i := range ls {
		out[i] = toListingResponse(&ls[i])
	}
	return out
}

// --- Handlers ---

// List handles GET /api/v1/listings
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := domain.RawListingQuery{
		Search:         q.Get("search"),
		Brand:          q.Get("brand"),
		Size:           q.Get("size"),
		Condition:      q.Get("condition"),
		MinPrice:       q.Get("min_price"),
		MaxPrice:       q.Get("max_price"),
		Currency:       q.Get("currency"),
		Ordering:       q.Get("ordering"),
		SellerUsername: q.Get("seller__username"),
	}

	listings, total, err := h.service.Search(r.Context(), raw, pagination.FromRequest(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPage(toListingResponses(listings), total))
}

// Get handles GET /api/v1/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var callerID string
	if caller, ok := middleware.CallerFromContext(r.Context()); ok {
		callerID = caller.UserID
	}

	d, err := h.service.GetListing(r.Context(), id.String(), callerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ListingDetailResponse{
		ListingResponse: toListingResponse(&d.Listing),
		IsLiked:         d.IsLiked,
		SellerRating:    d.Reputation.AverageRating,
		ReviewCount:     d.Reputation.ReviewCount,
	})
}

// Create handles POST /api/v1/listings
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateListingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	caller, _ := middleware.CallerFromContext(r.Context())
	input := &service.CreateListingInput{
		Title:       req.Title,
		Brand:       req.Brand,
		Size:        req.Size,
		Price:       *req.Price,
		Currency:    domain.Currency(req.Currency),
		Condition:   domain.Condition(req.Condition),
		Description: req.Description,
		ContactInfo: req.ContactInfo,
		Images:      req.Images,
	}

	l, err := h.service.CreateListing(r.Context(), caller.UserID, caller.Username, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toListingResponse(l))
}

// Update handles PATCH /api/v1/listings/{id}
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateListingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input := &service.UpdateListingInput{
		Title:       req.Title,
		Brand:       req.Brand,
		Size:        req.Size,
		Price:       req.Price,
		Description: req.Description,
		ContactInfo: req.ContactInfo,
		IsSold:      req.IsSold,
		Images:      req.Images,
	}
	if req.Currency != nil {
		c := domain.Currency(*req.Currency)
		input.Currency = &c
	}
	if req.Condition != nil {
		c := domain.Condition(*req.Condition)
		input.Condition = &c
	}

	caller, _ := middleware.CallerFromContext(r.Context())
	l, err := h.service.UpdateListing(r.Context(), caller.UserID, id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toListingResponse(l))
}

// Delete handles DELETE /api/v1/listings/{id}
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	caller, _ := middleware.CallerFromContext(r.Context())
	if err := h.service.DeleteListing(r.Context(), caller.UserID, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
