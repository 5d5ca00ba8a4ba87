package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/readshelf/readshelf/internal/repository"
	"github.com/readshelf/readshelf/internal/service"
	"github.com/readshelf/readshelf/pkg/httputil"
	"github.com/readshelf/readshelf/pkg/middleware"
	"github.com/readshelf/readshelf/pkg/pagination"
	"github.com/readshelf/readshelf/pkg/validator"
)

// sortKeys maps API sort_by values to repository sort columns.
var sortKeys = map[string]string{
	"newest": "created_at",
	"year":   "published_year",
	"rating": "average_rating",
	"title":  "title",
}

// BookHandler handles HTTP requests for catalog endpoints.
type BookHandler struct {
	service *service.BookService
	logger  *slog.Logger
}

// NewBookHandler creates a new book HTTP handler.
func NewBookHandler(svc *service.BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateBookRequest is the JSON request body for adding a book.
type CreateBookRequest struct {
	Title         string `json:"title" validate:"required,min=1,max=200"`
	Author        string `json:"author" validate:"required,min=1,max=100"`
	Description   string `json:"description" validate:"max=2000"`
	Genre         string `json:"genre" validate:"required"`
	PublishedYear int    `json:"published_year" validate:"required,min=1000"`
}

// UpdateBookRequest is the JSON request body for updating a book.
type UpdateBookRequest struct {
	Title         *string `json:"title" validate:"omitempty,min=1,max=200"`
	Author        *string `json:"author" validate:"omitempty,min=1,max=100"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	Genre         *string `json:"genre"`
	PublishedYear *int    `json:"published_year" validate:"omitempty,min=1000"`
}

// --- Handlers ---

// ListBooks handles GET /api/v1/books
// @Summary List books
// @Description Returns a paginated book list with optional search, genre filter, and sorting
// @Tags books
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page (max 100)" default(20)
// @Param search query string false "Match against title or author"
// @Param genre query string false "Filter by genre"
// @Param sort_by query string false "Sort order" Enums(newest,year,rating,title)
// @Param sort_dir query string false "Sort direction" Enums(asc,desc)
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/books [get]
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	filter := repository.BookFilter{
		Page:    p.Page,
		PerPage: p.PerPage,
		Search:  r.URL.Query().Get("search"),
		Genre:   r.URL.Query().Get("genre"),
		SortDir: r.URL.Query().Get("sort_dir"),
	}

	if v := r.URL.Query().Get("sort_by"); v != "" {
		column, ok := sortKeys[v]
		if !ok {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "sort_by must be one of: newest, year, rating, title"},
			})
			return
		}
		filter.SortBy = column
	}

	if filter.SortDir != "" && !strings.EqualFold(filter.SortDir, "asc") && !strings.EqualFold(filter.SortDir, "desc") {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "sort_dir must be asc or desc"},
		})
		return
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(result.Books, result.TotalCount, result.Page, result.PerPage))
}

// GetBook handles GET /api/v1/books/{id}
// @Summary Get book by ID
// @Tags books
// @Produce json
// @Param id path string true "Book UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	book, err := h.service.Get(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: book})
}

// CreateBook handles POST /api/v1/books
// @Summary Add a book to the catalog
// @Tags books
// @Accept json
// @Produce json
// @Param request body CreateBookRequest true "Book to create"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/books [post]
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	book, err := h.service.Create(r.Context(), &service.CreateBookInput{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		Genre:         req.Genre,
		PublishedYear: req.PublishedYear,
		AddedBy:       userID,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: book})
}

// UpdateBook handles PUT /api/v1/books/{id}
// @Summary Update a book
// @Description Partially updates a book; only the user who added it may update it
// @Tags books
// @Accept json
// @Produce json
// @Param id path string true "Book UUID"
// @Param request body UpdateBookRequest true "Fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/books/{id} [put]
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	book, err := h.service.Update(r.Context(), id.String(), userID, &service.UpdateBookInput{
		Title:         req.Title,
		Author:        req.Author,
		Description:   req.Description,
		Genre:         req.Genre,
		PublishedYear: req.PublishedYear,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: book})
}

// DeleteBook handles DELETE /api/v1/books/{id}
// @Summary Delete a book
// @Description Removes a book and all of its reviews; only the user who added it may delete it
// @Tags books
// @Param id path string true "Book UUID"
// @Success 204
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/books/{id} [delete]
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id.String(), userID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
