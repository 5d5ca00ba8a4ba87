// Package repository defines the persistence interfaces consumed by the
// service layer. PostgreSQL implementations live in the postgres subpackage,
// the Redis-backed book cache in rediscache.
package repository

import (
	"context"

	"github.com/readshelf/readshelf/internal/domain"
)

// UserRepository handles user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// RefreshTokenRepository handles refresh token persistence.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// BookFilter narrows and orders book listings.
type BookFilter struct {
	Search  string // matches title or author, case-insensitive
	Genre   string
	SortBy  string // created_at, published_year, average_rating, title
	SortDir string // asc or desc
	Page    int
	PerPage int
}

// BookRepository handles book persistence.
type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) error
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	List(ctx context.Context, filter BookFilter) ([]domain.Book, int, error)
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.Book, int, error)
	Update(ctx context.Context, book *domain.Book) error
	Delete(ctx context.Context, id string) error

	// UpdateRatingStats overwrites the denormalized rating projection on a
	// book. It returns an error wrapping apperrors.ErrNotFound when the book
	// no longer exists.
	UpdateRatingStats(ctx context.Context, bookID string, stats domain.RatingStats) error
}

// ReviewRepository handles review persistence and aggregation.
type ReviewRepository interface {
	// Create inserts a review. A duplicate (book_id, user_id) pair surfaces
	// as an error wrapping apperrors.ErrAlreadyExists.
	Create(ctx context.Context, review *domain.Review) error
	GetByID(ctx context.Context, id string) (*domain.Review, error)
	GetByBookAndUser(ctx context.Context, bookID, userID string) (*domain.Review, error)
	Update(ctx context.Context, review *domain.Review) error

	// Delete removes a review and returns the ID of the book it belonged to,
	// so callers can recompute that book's rating projection.
	Delete(ctx context.Context, id string) (bookID string, err error)

	ListByBook(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error)
	ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error)

	// Summary computes the aggregate over all reviews of a book, averaging
	// rounded to one decimal place. An empty review set yields 0 / 0.
	Summary(ctx context.Context, bookID string) (*domain.ReviewSummary, error)

	// CountByRating returns the number of reviews per rating value. Ratings
	// with no reviews are absent from the map.
	CountByRating(ctx context.Context, bookID string) (map[int]int, error)
}

// BookCache is a read-through cache for book detail lookups.
type BookCache interface {
	Get(ctx context.Context, id string) (*domain.Book, error)
	Set(ctx context.Context, book *domain.Book) error
	Invalidate(ctx context.Context, id string) error
}
