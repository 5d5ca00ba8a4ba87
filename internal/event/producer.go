package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/readshelf/readshelf/internal/domain"
	pkgkafka "github.com/readshelf/readshelf/pkg/kafka"
)

// Kafka topic constants for readshelf domain events.
const (
	TopicUserRegistered   = "readshelf.user.registered"
	TopicBookCreated      = "readshelf.book.created"
	TopicBookDeleted      = "readshelf.book.deleted"
	TopicReviewCreated    = "readshelf.review.created"
	TopicReviewUpdated    = "readshelf.review.updated"
	TopicReviewDeleted    = "readshelf.review.deleted"
	TopicRatingRecomputed = "readshelf.book.rating_recomputed"
)

// Aggregate type constants.
const (
	AggregateTypeUser   = "user"
	AggregateTypeBook   = "book"
	AggregateTypeReview = "review"
)

// Source identifier for events originating from this service.
const Source = "readshelf"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BookData is the payload for book.created and book.deleted events.
type BookData struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Genre   string `json:"genre"`
	AddedBy string `json:"added_by"`
}

// ReviewData is the payload for review lifecycle events.
type ReviewData struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`
	Rating int    `json:"rating,omitempty"`
}

// RatingRecomputedData is the payload for a book.rating_recomputed event.
type RatingRecomputedData struct {
	BookID        string  `json:"book_id"`
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}

// Producer publishes readshelf domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}

	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateTypeUser, data)
}

// PublishBookCreated publishes a book.created event.
func (p *Producer) PublishBookCreated(ctx context.Context, book *domain.Book) error {
	return p.publish(ctx, TopicBookCreated, book.ID, AggregateTypeBook, bookData(book))
}

// PublishBookDeleted publishes a book.deleted event.
func (p *Producer) PublishBookDeleted(ctx context.Context, book *domain.Book) error {
	return p.publish(ctx, TopicBookDeleted, book.ID, AggregateTypeBook, bookData(book))
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewCreated, review.ID, AggregateTypeReview, reviewData(review))
}

// PublishReviewUpdated publishes a review.updated event.
func (p *Producer) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewUpdated, review.ID, AggregateTypeReview, reviewData(review))
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, reviewID, bookID, userID string) error {
	data := ReviewData{
		ID:     reviewID,
		BookID: bookID,
		UserID: userID,
	}

	return p.publish(ctx, TopicReviewDeleted, reviewID, AggregateTypeReview, data)
}

// PublishRatingRecomputed publishes a book.rating_recomputed event carrying
// the freshly written projection values.
func (p *Producer) PublishRatingRecomputed(ctx context.Context, bookID string, stats domain.RatingStats) error {
	data := RatingRecomputedData{
		BookID:        bookID,
		AverageRating: stats.AverageRating,
		ReviewCount:   stats.ReviewCount,
	}

	return p.publish(ctx, TopicRatingRecomputed, bookID, AggregateTypeBook, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)

	return nil
}

func bookData(b *domain.Book) BookData {
	return BookData{
		ID:      b.ID,
		Title:   b.Title,
		Author:  b.Author,
		Genre:   b.Genre,
		AddedBy: b.AddedBy,
	}
}

func reviewData(r *domain.Review) ReviewData {
	return ReviewData{
		ID:     r.ID,
		BookID: r.BookID,
		UserID: r.UserID,
		Rating: r.Rating,
	}
}
