package http

import (
	"log/slog"
	"net/http"

	"github.com/readshelf/readshelf/internal/service"
	"github.com/readshelf/readshelf/pkg/httputil"
	"github.com/readshelf/readshelf/pkg/middleware"
	"github.com/readshelf/readshelf/pkg/pagination"
)

// UserHandler handles HTTP requests for the current user's endpoints.
type UserHandler struct {
	users   *service.UserService
	books   *service.BookService
	reviews *service.ReviewService
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler.
func NewUserHandler(users *service.UserService, books *service.BookService, reviews *service.ReviewService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:   users,
		books:   books,
		reviews: reviews,
		logger:  logger,
	}
}

// GetProfile handles GET /api/v1/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: user})
}

// ListMyBooks handles GET /api/v1/users/me/books
func (h *UserHandler) ListMyBooks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	p := pagination.FromRequest(r)

	result, err := h.books.ListByUser(r.Context(), userID, p.Page, p.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(result.Books, result.TotalCount, result.Page, result.PerPage))
}

// ListMyReviews handles GET /api/v1/users/me/reviews
func (h *UserHandler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	p := pagination.FromRequest(r)

	result, err := h.reviews.ListByUser(r.Context(), userID, p.Page, p.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(result.Reviews, result.TotalCount, result.Page, result.PerPage))
}
