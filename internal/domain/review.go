package domain

import "time"

// MaxReviewTextLength is the upper bound on review text, enforced both here
// and by the database column.
const MaxReviewTextLength = 1000

// Review represents a single user's review of a book. A user may hold at most
// one review per book, enforced by a unique constraint on (book_id, user_id).
type Review struct {
	ID           string    `json:"id"`
	BookID       string    `json:"book_id"`
	UserID       string    `json:"user_id"`
	Rating       int       `json:"rating"`
	Text         string    `json:"review_text"`
	ReviewerName string    `json:"reviewer_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ReviewSummary is the aggregate view over all reviews of one book. The
// average is rounded to one decimal place; an empty review set yields 0 / 0.
type ReviewSummary struct {
	AverageRating float64 `json:"average_rating"`
	TotalCount    int     `json:"total_count"`
}

// RatingBucket is one entry of a book's rating distribution.
type RatingBucket struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}
