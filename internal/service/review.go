package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/readshelf/readshelf/internal/domain"
	"github.com/readshelf/readshelf/internal/event"
	"github.com/readshelf/readshelf/internal/repository"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

// SubmitReviewInput holds the parameters for submitting a review.
type SubmitReviewInput struct {
	BookID string
	UserID string
	Rating int
	Text   string
}

// EditReviewInput holds the parameters for editing a review. Nil fields are
// left unchanged.
type EditReviewInput struct {
	Rating *int
	Text   *string
}

// ReviewListResult contains reviews and their aggregate summary.
type ReviewListResult struct {
	Reviews    []domain.Review       `json:"reviews"`
	Summary    *domain.ReviewSummary `json:"summary,omitempty"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PerPage    int                   `json:"per_page"`
	TotalPages int                   `json:"total_pages"`
}

// ReviewService implements the business logic for review operations. Every
// mutation is followed by a full recompute of the affected book's rating
// projection before the call returns.
type ReviewService struct {
	reviews    repository.ReviewRepository
	books      repository.BookRepository
	users      repository.UserRepository
	aggregator *RatingAggregator
	producer   *event.Producer
	logger     *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	books repository.BookRepository,
	users repository.UserRepository,
	aggregator *RatingAggregator,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:    reviews,
		books:      books,
		users:      users,
		aggregator: aggregator,
		producer:   producer,
		logger:     logger,
	}
}

// Submit creates a new review for a book. The book must exist and the user
// must not have reviewed it already. The application-level duplicate check
// gives a clean error on the common path; the database unique constraint on
// (book_id, user_id) is what actually guarantees one review per user, so a
// concurrent duplicate loses there and surfaces the same error.
func (s *ReviewService) Submit(ctx context.Context, input *SubmitReviewInput) (*domain.Review, error) {
	if err := validateReviewFields(input.Rating, input.Text); err != nil {
		return nil, err
	}
	if input.BookID == "" {
		return nil, apperrors.InvalidInput("book_id is required")
	}
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}

	book, err := s.books.GetByID(ctx, input.BookID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("book", input.BookID)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	if _, err := s.reviews.GetByBookAndUser(ctx, input.BookID, input.UserID); err == nil {
		return nil, apperrors.AlreadyExists("review", "book_id", input.BookID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing review: %w", err)
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:        uuid.New().String(),
		BookID:    book.ID,
		UserID:    input.UserID,
		Rating:    input.Rating,
		Text:      input.Text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	if err := s.aggregator.Recompute(ctx, book.ID); err != nil {
		return nil, fmt.Errorf("recompute rating after submit: %w", err)
	}

	if user, err := s.users.GetByID(ctx, input.UserID); err == nil {
		review.ReviewerName = user.Name
	}

	if s.producer != nil {
		if err := s.producer.PublishReviewCreated(ctx, review); err != nil {
			s.logger.WarnContext(ctx, "failed to publish review created event",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
		slog.String("user_id", review.UserID),
		slog.Int("rating", review.Rating),
	)

	return review, nil
}

// Edit updates the rating and/or text of an existing review. Only the review
// author may edit it.
func (s *ReviewService) Edit(ctx context.Context, reviewID, userID string, input *EditReviewInput) (*domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if review.UserID != userID {
		return nil, apperrors.Forbidden("you can only edit your own reviews")
	}

	if input.Rating != nil {
		review.Rating = *input.Rating
	}
	if input.Text != nil {
		review.Text = *input.Text
	}
	if err := validateReviewFields(review.Rating, review.Text); err != nil {
		return nil, err
	}

	review.UpdatedAt = time.Now().UTC()

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}

	if err := s.aggregator.Recompute(ctx, review.BookID); err != nil {
		return nil, fmt.Errorf("recompute rating after edit: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishReviewUpdated(ctx, review); err != nil {
			s.logger.WarnContext(ctx, "failed to publish review updated event",
				slog.String("review_id", review.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("book_id", review.BookID),
	)

	return review, nil
}

// Remove deletes an existing review. Only the review author may delete it.
func (s *ReviewService) Remove(ctx context.Context, reviewID, userID string) error {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}

	if review.UserID != userID {
		return apperrors.Forbidden("you can only delete your own reviews")
	}

	bookID, err := s.reviews.Delete(ctx, reviewID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	if err := s.aggregator.Recompute(ctx, bookID); err != nil {
		return fmt.Errorf("recompute rating after delete: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.PublishReviewDeleted(ctx, reviewID, bookID, userID); err != nil {
			s.logger.WarnContext(ctx, "failed to publish review deleted event",
				slog.String("review_id", reviewID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", reviewID),
		slog.String("book_id", bookID),
	)

	return nil
}

// ListByBook returns paginated reviews for a book, newest first, along with
// the aggregate summary.
func (s *ReviewService) ListByBook(ctx context.Context, bookID string, page, perPage int) (*ReviewListResult, error) {
	page, perPage = clampPagination(page, perPage)

	reviews, total, err := s.reviews.ListByBook(ctx, bookID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	summary, err := s.reviews.Summary(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("get review summary: %w", err)
	}

	return newReviewListResult(reviews, summary, total, page, perPage), nil
}

// ListByUser returns paginated reviews written by a user, newest first.
func (s *ReviewService) ListByUser(ctx context.Context, userID string, page, perPage int) (*ReviewListResult, error) {
	page, perPage = clampPagination(page, perPage)

	reviews, total, err := s.reviews.ListByUser(ctx, userID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	return newReviewListResult(reviews, nil, total, page, perPage), nil
}

// RatingDistribution returns the per-rating review counts for a book, ordered
// 5 down to 1 with zero-filled buckets. It is always computed fresh from the
// reviews table, never from a cache.
func (s *ReviewService) RatingDistribution(ctx context.Context, bookID string) ([]domain.RatingBucket, error) {
	if _, err := s.books.GetByID(ctx, bookID); err != nil {
		return nil, err
	}

	counts, err := s.reviews.CountByRating(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("count reviews by rating: %w", err)
	}

	buckets := make([]domain.RatingBucket, 0, 5)
	for rating := 5; rating >= 1; rating-- {
		buckets = append(buckets, domain.RatingBucket{
			Rating: rating,
			Count:  counts[rating],
		})
	}

	return buckets, nil
}

func validateReviewFields(rating int, text string) error {
	if rating < 1 || rating > 5 {
		return apperrors.InvalidInput("rating must be between 1 and 5")
	}
	if text == "" {
		return apperrors.InvalidInput("review_text is required")
	}
	// Counted in runes so the limit matches the VARCHAR(1000) column.
	if utf8.RuneCountInString(text) > domain.MaxReviewTextLength {
		return apperrors.InvalidInput(fmt.Sprintf("review_text must be at most %d characters", domain.MaxReviewTextLength))
	}
	return nil
}

func clampPagination(page, perPage int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

func newReviewListResult(reviews []domain.Review, summary *domain.ReviewSummary, total, page, perPage int) *ReviewListResult {
	totalPages := total / perPage
	if total%perPage > 0 {
		totalPages++
	}

	return &ReviewListResult{
		Reviews:    reviews,
		Summary:    summary,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
	}
}
