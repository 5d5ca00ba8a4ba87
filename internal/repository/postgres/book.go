package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/readshelf/readshelf/internal/domain"
	"github.com/readshelf/readshelf/internal/repository"
	"github.com/readshelf/readshelf/pkg/database"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

// sortColumns maps API sort keys to real column names so user input never
// reaches the ORDER BY clause directly.
var sortColumns = map[string]string{
	"created_at":     "created_at",
	"published_year": "published_year",
	"average_rating": "average_rating",
	"title":          "lower(title)",
}

const bookColumns = `id, title, author, description, genre, published_year, added_by, average_rating, review_count, created_at, updated_at`

// BookRepository implements repository.BookRepository using PostgreSQL.
type BookRepository struct {
	pool database.DBTX
}

// NewBookRepository creates a new PostgreSQL-backed book repository.
func NewBookRepository(pool database.DBTX) *BookRepository {
	return &BookRepository{pool: pool}
}

// Create inserts a new book into the database.
func (r *BookRepository) Create(ctx context.Context, b *domain.Book) error {
	query := `
		INSERT INTO books (id, title, author, description, genre, published_year, added_by, average_rating, review_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		b.ID,
		b.Title,
		b.Author,
		b.Description,
		b.Genre,
		b.PublishedYear,
		b.AddedBy,
		b.AverageRating,
		b.ReviewCount,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}

	return nil
}

// GetByID retrieves a book by its ID.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE id = $1`

	var b domain.Book

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Description,
		&b.Genre,
		&b.PublishedYear,
		&b.AddedBy,
		&b.AverageRating,
		&b.ReviewCount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book", id)
		}
		return nil, fmt.Errorf("query book: %w", err)
	}

	return &b, nil
}

// List returns books matching the given filter with the total count.
func (r *BookRepository) List(ctx context.Context, filter repository.BookFilter) ([]domain.Book, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR author ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	if filter.Genre != "" {
		conditions = append(conditions, fmt.Sprintf("genre = $%d", argIndex))
		args = append(args, filter.Genre)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortDir, "asc") {
		direction = "ASC"
	}

	// Use count(*) OVER() for total count in a single query.
	query := fmt.Sprintf(`
		SELECT `+bookColumns+`,
		       count(*) OVER() AS total_count
		FROM books
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`,
		whereClause, orderBy, direction, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	return r.queryBooks(ctx, query, args...)
}

// ListByUser returns paginated books added by the given user.
func (r *BookRepository) ListByUser(ctx context.Context, userID string, page, perPage int) ([]domain.Book, int, error) {
	limit := perPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * limit
	}

	query := `
		SELECT ` + bookColumns + `,
		       count(*) OVER() AS total_count
		FROM books
		WHERE added_by = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.queryBooks(ctx, query, userID, limit, offset)
}

func (r *BookRepository) queryBooks(ctx context.Context, query string, args ...any) ([]domain.Book, int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var (
		books      []domain.Book
		totalCount int
	)

	for rows.Next() {
		var b domain.Book

		if err := rows.Scan(
			&b.ID,
			&b.Title,
			&b.Author,
			&b.Description,
			&b.Genre,
			&b.PublishedYear,
			&b.AddedBy,
			&b.AverageRating,
			&b.ReviewCount,
			&b.CreatedAt,
			&b.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan book row: %w", err)
		}

		books = append(books, b)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate book rows: %w", err)
	}

	if books == nil {
		books = []domain.Book{}
	}

	return books, totalCount, nil
}

// Update modifies an existing book in the database.
func (r *BookRepository) Update(ctx context.Context, b *domain.Book) error {
	b.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE books
		SET title = $1, author = $2, description = $3, genre = $4, published_year = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.pool.Exec(ctx, query,
		b.Title,
		b.Author,
		b.Description,
		b.Genre,
		b.PublishedYear,
		b.UpdatedAt,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("book", b.ID)
	}

	return nil
}

// Delete removes a book from the database by its ID. Reviews cascade.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM books WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("book", id)
	}

	return nil
}

// UpdateRatingStats overwrites the denormalized rating projection on a book.
func (r *BookRepository) UpdateRatingStats(ctx context.Context, bookID string, stats domain.RatingStats) error {
	query := `
		UPDATE books
		SET average_rating = $1, review_count = $2, updated_at = NOW()
		WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "UpdateRatingStats", query)
	ct, err := r.pool.Exec(ctx, query, stats.AverageRating, stats.ReviewCount, bookID)
	end(err)
	if err != nil {
		return fmt.Errorf("update rating stats: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("book", bookID)
	}

	return nil
}
