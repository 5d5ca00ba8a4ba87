package domain

import "time"

// Genres is the closed set of accepted book genres.
var Genres = []string{
	"Fiction",
	"Non-Fiction",
	"Science Fiction",
	"Fantasy",
	"Mystery",
	"Romance",
	"Thriller",
	"Biography",
	"History",
	"Self-Help",
	"Other",
}

// IsValidGenre reports whether g is one of the accepted genres.
func IsValidGenre(g string) bool {
	for _, genre := range Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// Book represents a catalog entry. AverageRating and ReviewCount are a
// denormalized projection of the book's reviews; they are never written
// directly by callers, only recomputed from the reviews table.
type Book struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Description   string    `json:"description"`
	Genre         string    `json:"genre"`
	PublishedYear int       `json:"published_year"`
	AddedBy       string    `json:"added_by"`
	AverageRating float64   `json:"average_rating"`
	ReviewCount   int       `json:"review_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RatingStats holds the projected aggregate values written back onto a book.
type RatingStats struct {
	AverageRating float64 `json:"average_rating"`
	ReviewCount   int     `json:"review_count"`
}
