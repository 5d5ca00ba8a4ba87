package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	"github.com/readshelf/readshelf/internal/domain"
	"github.com/readshelf/readshelf/pkg/database"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review. The unique constraint on (book_id, user_id) is
// the authoritative duplicate guard; a violation surfaces as ErrAlreadyExists.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (id, book_id, user_id, rating, review_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	_, err := r.pool.Exec(ctx, query,
		rv.ID,
		rv.BookID,
		rv.UserID,
		rv.Rating,
		rv.Text,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	end(err)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "book_id", rv.BookID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT id, book_id, user_id, rating, review_text, created_at, updated_at
		FROM reviews
		WHERE id = $1`

	return r.scanReview(ctx, "GetReview", query, id)
}

// GetByBookAndUser retrieves the review a user left on a book, if any.
func (r *ReviewRepository) GetByBookAndUser(ctx context.Context, bookID, userID string) (*domain.Review, error) {
	query := `
		SELECT id, book_id, user_id, rating, review_text, created_at, updated_at
		FROM reviews
		WHERE book_id = $1 AND user_id = $2`

	return r.scanReview(ctx, "GetReviewByBookAndUser", query, bookID, userID)
}

func (r *ReviewRepository) scanReview(ctx context.Context, operation, query string, args ...any) (*domain.Review, error) {
	var rv domain.Review

	ctx, end := database.TraceQuery(ctx, operation, query)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&rv.ID,
		&rv.BookID,
		&rv.UserID,
		&rv.Rating,
		&rv.Text,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", fmt.Sprintf("%v", args[0]))
		}
		return nil, fmt.Errorf("query review: %w", err)
	}

	return &rv, nil
}

// Update modifies the rating and text of an existing review.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	query := `
		UPDATE reviews
		SET rating = $1, review_text = $2, updated_at = $3
		WHERE id = $4`

	ctx, end := database.TraceQuery(ctx, "UpdateReview", query)
	ct, err := r.pool.Exec(ctx, query, rv.Rating, rv.Text, rv.UpdatedAt, rv.ID)
	end(err)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", rv.ID)
	}

	return nil
}

// Delete removes a review and returns the ID of the book it belonged to.
func (r *ReviewRepository) Delete(ctx context.Context, id string) (string, error) {
	query := `DELETE FROM reviews WHERE id = $1 RETURNING book_id`

	var bookID string

	ctx, end := database.TraceQuery(ctx, "DeleteReview", query)
	err := r.pool.QueryRow(ctx, query, id).Scan(&bookID)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("review", id)
		}
		return "", fmt.Errorf("delete review: %w", err)
	}

	return bookID, nil
}

// ListByBook returns paginated reviews for a book, newest first, along with
// the total count. The reviewer name is joined in for display.
func (r *ReviewRepository) ListByBook(ctx context.Context, bookID string, page, perPage int) ([]domain.Review, int, error) {
	query := `
		SELECT r.id, r.book_id, r.user_id, r.rating, r.review_text, u.name, r.created_at, r.updated_at,
		       count(*) OVER() AS total_count
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3`

	return r.queryReviews(ctx, "ListReviewsByBook", query, bookID, page, perPage)
}

// ListByUser returns paginated reviews written by a user, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.Review, int, error) {
	query := `
		SELECT r.id, r.book_id, r.user_id, r.rating, r.review_text, u.name, r.created_at, r.updated_at,
		       count(*) OVER() AS total_count
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2 OFFSET $3`

	return r.queryReviews(ctx, "ListReviewsByUser", query, userID, page, perPage)
}

func (r *ReviewRepository) queryReviews(ctx context.Context, operation, query, key string, page, perPage int) ([]domain.Review, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	ctx, end := database.TraceQuery(ctx, operation, query)
	rows, err := r.pool.Query(ctx, query, key, limit, offset)
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review

		if err := rows.Scan(
			&rv.ID,
			&rv.BookID,
			&rv.UserID,
			&rv.Rating,
			&rv.Text,
			&rv.ReviewerName,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}

		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// Summary computes the average rating and total count over all reviews of a
// book. An empty review set yields 0 / 0.
func (r *ReviewRepository) Summary(ctx context.Context, bookID string) (*domain.ReviewSummary, error) {
	query := `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM reviews
		WHERE book_id = $1`

	var summary domain.ReviewSummary

	ctx, end := database.TraceQuery(ctx, "ReviewSummary", query)
	err := r.pool.QueryRow(ctx, query, bookID).Scan(
		&summary.AverageRating,
		&summary.TotalCount,
	)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}

	// Round average rating to one decimal place.
	summary.AverageRating = math.Round(summary.AverageRating*10) / 10

	return &summary, nil
}

// CountByRating returns the number of reviews per rating value for a book.
func (r *ReviewRepository) CountByRating(ctx context.Context, bookID string) (map[int]int, error) {
	query := `
		SELECT rating, COUNT(*)
		FROM reviews
		WHERE book_id = $1
		GROUP BY rating`

	ctx, end := database.TraceQuery(ctx, "CountReviewsByRating", query)
	rows, err := r.pool.Query(ctx, query, bookID)
	end(err)
	if err != nil {
		return nil, fmt.Errorf("count reviews by rating: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)

	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("scan rating count row: %w", err)
		}
		counts[rating] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating count rows: %w", err)
	}

	return counts, nil
}
