package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readshelf/readshelf/internal/domain"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

// A nil *mockBookCache must not be passed through the interface parameter,
// so the nil case is handled explicitly.
func newTestAggregator(reviews *mockReviewRepository, books *mockBookRepository, cache *mockBookCache) *RatingAggregator {
	if cache == nil {
		return NewRatingAggregator(reviews, books, nil, nil, newTestLogger())
	}
	return NewRatingAggregator(reviews, books, cache, nil, newTestLogger())
}

func TestRecompute_WritesSummaryOntoBook(t *testing.T) {
	reviews := new(mockReviewRepository)
	books := new(mockBookRepository)
	cache := new(mockBookCache)
	agg := newTestAggregator(reviews, books, cache)
	ctx := context.Background()

	reviews.On("Summary", ctx, "book-1").
		Return(&domain.ReviewSummary{AverageRating: 3.7, TotalCount: 3}, nil)
	books.On("UpdateRatingStats", ctx, "book-1", domain.RatingStats{AverageRating: 3.7, ReviewCount: 3}).
		Return(nil)
	cache.On("Invalidate", ctx, "book-1").Return(nil)

	err := agg.Recompute(ctx, "book-1")

	require.NoError(t, err)
	reviews.AssertExpectations(t)
	books.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestRecompute_EmptyReviewSetResetsProjection(t *testing.T) {
	reviews := new(mockReviewRepository)
	books := new(mockBookRepository)
	agg := newTestAggregator(reviews, books, nil)
	ctx := context.Background()

	reviews.On("Summary", ctx, "book-1").
		Return(&domain.ReviewSummary{AverageRating: 0, TotalCount: 0}, nil)
	books.On("UpdateRatingStats", ctx, "book-1", domain.RatingStats{AverageRating: 0, ReviewCount: 0}).
		Return(nil)

	err := agg.Recompute(ctx, "book-1")

	require.NoError(t, err)
	books.AssertExpectations(t)
}

func TestRecompute_Idempotent(t *testing.T) {
	reviews := new(mockReviewRepository)
	books := new(mockBookRepository)
	agg := newTestAggregator(reviews, books, nil)
	ctx := context.Background()

	stats := domain.RatingStats{AverageRating: 4.5, ReviewCount: 2}
	reviews.On("Summary", ctx, "book-1").
		Return(&domain.ReviewSummary{AverageRating: 4.5, TotalCount: 2}, nil).Twice()
	books.On("UpdateRatingStats", ctx, "book-1", stats).Return(nil).Twice()

	require.NoError(t, agg.Recompute(ctx, "book-1"))
	require.NoError(t, agg.Recompute(ctx, "book-1"))

	// Both runs wrote identical values.
	books.AssertNumberOfCalls(t, "UpdateRatingStats", 2)
}

func TestRecompute_MissingBookIsNotAnError(t *testing.T) {
	reviews := new(mockReviewRepository)
	books := new(mockBookRepository)
	agg := newTestAggregator(reviews, books, nil)
	ctx := context.Background()

	reviews.On("Summary", ctx, "gone").
		Return(&domain.ReviewSummary{AverageRating: 0, TotalCount: 0}, nil)
	books.On("UpdateRatingStats", ctx, "gone", domain.RatingStats{}).
		Return(apperrors.NotFound("book", "gone"))

	err := agg.Recompute(ctx, "gone")

	assert.NoError(t, err)
}

func TestRecompute_SummaryErrorPropagates(t *testing.T) {
	reviews := new(mockReviewRepository)
	books := new(mockBookRepository)
	agg := newTestAggregator(reviews, books, nil)
	ctx := context.Background()

	reviews.On("Summary", ctx, "book-1").Return(nil, fmt.Errorf("connection reset"))

	err := agg.Recompute(ctx, "book-1")

	require.Error(t, err)
	books.AssertNotCalled(t, "UpdateRatingStats", ctx, "book-1")
}

func TestRecompute_StatsWriteErrorPropagates(t *testing.T) {
	reviews := new(mockReviewRepository)
	books := new(mockBookRepository)
	agg := newTestAggregator(reviews, books, nil)
	ctx := context.Background()

	reviews.On("Summary", ctx, "book-1").
		Return(&domain.ReviewSummary{AverageRating: 2.0, TotalCount: 1}, nil)
	books.On("UpdateRatingStats", ctx, "book-1", domain.RatingStats{AverageRating: 2.0, ReviewCount: 1}).
		Return(fmt.Errorf("deadlock detected"))

	err := agg.Recompute(ctx, "book-1")

	require.Error(t, err)
}

func TestRecompute_CacheInvalidationFailureIsNonFatal(t *testing.T) {
	reviews := new(mockReviewRepository)
	books := new(mockBookRepository)
	cache := new(mockBookCache)
	agg := newTestAggregator(reviews, books, cache)
	ctx := context.Background()

	reviews.On("Summary", ctx, "book-1").
		Return(&domain.ReviewSummary{AverageRating: 5, TotalCount: 1}, nil)
	books.On("UpdateRatingStats", ctx, "book-1", domain.RatingStats{AverageRating: 5, ReviewCount: 1}).
		Return(nil)
	cache.On("Invalidate", ctx, "book-1").Return(fmt.Errorf("redis down"))

	err := agg.Recompute(ctx, "book-1")

	assert.NoError(t, err)
}
