package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/readshelf/readshelf/internal/domain"
	"github.com/readshelf/readshelf/internal/event"
	"github.com/readshelf/readshelf/internal/repository"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

// RatingAggregator maintains the denormalized rating projection on books.
// Recompute derives the projection from the full review set rather than
// adjusting it incrementally, so a recompute is idempotent and self-healing:
// running it twice, or after a missed update, converges on the same values.
type RatingAggregator struct {
	reviews  repository.ReviewRepository
	books    repository.BookRepository
	cache    repository.BookCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewRatingAggregator creates a new rating aggregator. cache and producer
// may be nil; both are best-effort side channels.
func NewRatingAggregator(
	reviews repository.ReviewRepository,
	books repository.BookRepository,
	cache repository.BookCache,
	producer *event.Producer,
	logger *slog.Logger,
) *RatingAggregator {
	return &RatingAggregator{
		reviews:  reviews,
		books:    books,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// Recompute recalculates a book's average rating and review count from all
// of its reviews and writes the result onto the book row, unconditionally.
// A book with no reviews gets 0 / 0.
//
// A missing book is not an error: the book may have been deleted while a
// review mutation was in flight, and its projection no longer exists to
// update. The condition is logged and the recompute is a no-op.
func (a *RatingAggregator) Recompute(ctx context.Context, bookID string) error {
	summary, err := a.reviews.Summary(ctx, bookID)
	if err != nil {
		return fmt.Errorf("summarize reviews for book %s: %w", bookID, err)
	}

	stats := domain.RatingStats{
		AverageRating: summary.AverageRating,
		ReviewCount:   summary.TotalCount,
	}

	if err := a.books.UpdateRatingStats(ctx, bookID, stats); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			a.logger.WarnContext(ctx, "rating recompute targeted a missing book",
				slog.String("book_id", bookID),
			)
			return nil
		}
		return fmt.Errorf("write rating stats for book %s: %w", bookID, err)
	}

	// The cached book detail now carries stale projection values.
	if a.cache != nil {
		if err := a.cache.Invalidate(ctx, bookID); err != nil {
			a.logger.WarnContext(ctx, "failed to invalidate book cache after recompute",
				slog.String("book_id", bookID),
				slog.String("error", err.Error()),
			)
		}
	}

	if a.producer != nil {
		if err := a.producer.PublishRatingRecomputed(ctx, bookID, stats); err != nil {
			a.logger.WarnContext(ctx, "failed to publish rating recomputed event",
				slog.String("book_id", bookID),
				slog.String("error", err.Error()),
			)
		}
	}

	a.logger.DebugContext(ctx, "rating projection recomputed",
		slog.String("book_id", bookID),
		slog.Float64("average_rating", stats.AverageRating),
		slog.Int("review_count", stats.ReviewCount),
	)

	return nil
}
