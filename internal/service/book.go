package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/readshelf/readshelf/internal/domain"
	"github.com/readshelf/readshelf/internal/event"
	"github.com/readshelf/readshelf/internal/repository"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

// CreateBookInput holds the parameters for adding a book to the catalog.
type CreateBookInput struct {
	Title         string
	Author        string
	Description   string
	Genre         string
	PublishedYear int
	AddedBy       string
}

// UpdateBookInput holds the parameters for updating a book. Nil fields are
// left unchanged.
type UpdateBookInput struct {
	Title         *string
	Author        *string
	Description   *string
	Genre         *string
	PublishedYear *int
}

// BookListResult contains books and pagination metadata.
type BookListResult struct {
	Books      []domain.Book `json:"books"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	TotalPages int           `json:"total_pages"`
}

// BookService implements the business logic for catalog operations.
type BookService struct {
	books    repository.BookRepository
	cache    repository.BookCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewBookService creates a new book service. cache and producer may be nil.
func NewBookService(
	books repository.BookRepository,
	cache repository.BookCache,
	producer *event.Producer,
	logger *slog.Logger,
) *BookService {
	return &BookService{
		books:    books,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// Create adds a new book to the catalog.
func (s *BookService) Create(ctx context.Context, input *CreateBookInput) (*domain.Book, error) {
	if input.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if input.Author == "" {
		return nil, apperrors.InvalidInput("author is required")
	}
	if input.AddedBy == "" {
		return nil, apperrors.InvalidInput("added_by is required")
	}
	if !domain.IsValidGenre(input.Genre) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid genre %q", input.Genre))
	}
	if err := validatePublishedYear(input.PublishedYear); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	book := &domain.Book{
		ID:            uuid.New().String(),
		Title:         input.Title,
		Author:        input.Author,
		Description:   input.Description,
		Genre:         input.Genre,
		PublishedYear: input.PublishedYear,
		AddedBy:       input.AddedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.books.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishBookCreated(ctx, book); err != nil {
			s.logger.WarnContext(ctx, "failed to publish book created event",
				slog.String("book_id", book.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "book created",
		slog.String("book_id", book.ID),
		slog.String("title", book.Title),
		slog.String("added_by", book.AddedBy),
	)

	return book, nil
}

// Get retrieves a single book, reading through the cache when one is
// configured. Cache failures fall back to the database.
func (s *BookService) Get(ctx context.Context, id string) (*domain.Book, error) {
	if s.cache != nil {
		if book, err := s.cache.Get(ctx, id); err == nil {
			return book, nil
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "book cache read failed",
				slog.String("book_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, book); err != nil {
			s.logger.WarnContext(ctx, "book cache write failed",
				slog.String("book_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return book, nil
}

// List returns books matching the given filter with pagination metadata.
func (s *BookService) List(ctx context.Context, filter repository.BookFilter) (*BookListResult, error) {
	filter.Page, filter.PerPage = clampPagination(filter.Page, filter.PerPage)

	if filter.Genre != "" && !domain.IsValidGenre(filter.Genre) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid genre %q", filter.Genre))
	}

	books, total, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return newBookListResult(books, total, filter.Page, filter.PerPage), nil
}

// ListByUser returns paginated books added by the given user.
func (s *BookService) ListByUser(ctx context.Context, userID string, page, perPage int) (*BookListResult, error) {
	page, perPage = clampPagination(page, perPage)

	books, total, err := s.books.ListByUser(ctx, userID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("list books by user: %w", err)
	}

	return newBookListResult(books, total, page, perPage), nil
}

// Update modifies a book. Only the user who added the book may update it.
func (s *BookService) Update(ctx context.Context, id, userID string, input *UpdateBookInput) (*domain.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if book.AddedBy != userID {
		return nil, apperrors.Forbidden("you can only update books you added")
	}

	if input.Title != nil {
		book.Title = *input.Title
	}
	if input.Author != nil {
		book.Author = *input.Author
	}
	if input.Description != nil {
		book.Description = *input.Description
	}
	if input.Genre != nil {
		book.Genre = *input.Genre
	}
	if input.PublishedYear != nil {
		book.PublishedYear = *input.PublishedYear
	}

	if book.Title == "" {
		return nil, apperrors.InvalidInput("title is required")
	}
	if book.Author == "" {
		return nil, apperrors.InvalidInput("author is required")
	}
	if !domain.IsValidGenre(book.Genre) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid genre %q", book.Genre))
	}
	if err := validatePublishedYear(book.PublishedYear); err != nil {
		return nil, err
	}

	if err := s.books.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.invalidateCache(ctx, id)

	s.logger.InfoContext(ctx, "book updated",
		slog.String("book_id", book.ID),
	)

	return book, nil
}

// Delete removes a book and, via the database cascade, all of its reviews.
// Only the user who added the book may delete it.
func (s *BookService) Delete(ctx context.Context, id, userID string) error {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if book.AddedBy != userID {
		return apperrors.Forbidden("you can only delete books you added")
	}

	if err := s.books.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	s.invalidateCache(ctx, id)

	if s.producer != nil {
		if err := s.producer.PublishBookDeleted(ctx, book); err != nil {
			s.logger.WarnContext(ctx, "failed to publish book deleted event",
				slog.String("book_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "book deleted",
		slog.String("book_id", id),
	)

	return nil
}

func (s *BookService) invalidateCache(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "book cache invalidation failed",
			slog.String("book_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func validatePublishedYear(year int) error {
	currentYear := time.Now().UTC().Year()
	if year < 1000 || year > currentYear {
		return apperrors.InvalidInput(fmt.Sprintf("published_year must be between 1000 and %d", currentYear))
	}
	return nil
}

func newBookListResult(books []domain.Book, total, page, perPage int) *BookListResult {
	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}

	return &BookListResult{
		Books:      books,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
