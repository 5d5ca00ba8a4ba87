package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readshelf/readshelf/internal/domain"
	"github.com/readshelf/readshelf/internal/repository"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

// In-memory fakes that mirror the PostgreSQL repositories' contracts closely
// enough to exercise the full submit/edit/remove -> recompute cycle.

type fakeReviewStore struct {
	mu      sync.Mutex
	reviews map[string]*domain.Review
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{reviews: make(map[string]*domain.Review)}
}

func (s *fakeReviewStore) Create(_ context.Context, rv *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reviews {
		if existing.BookID == rv.BookID && existing.UserID == rv.UserID {
			return apperrors.AlreadyExists("review", "book_id", rv.BookID)
		}
	}
	cp := *rv
	s.reviews[rv.ID] = &cp
	return nil
}

func (s *fakeReviewStore) GetByID(_ context.Context, id string) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	cp := *rv
	return &cp, nil
}

func (s *fakeReviewStore) GetByBookAndUser(_ context.Context, bookID, userID string) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rv := range s.reviews {
		if rv.BookID == bookID && rv.UserID == userID {
			cp := *rv
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("review", bookID)
}

func (s *fakeReviewStore) Update(_ context.Context, rv *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[rv.ID]; !ok {
		return apperrors.NotFound("review", rv.ID)
	}
	cp := *rv
	s.reviews[rv.ID] = &cp
	return nil
}

func (s *fakeReviewStore) Delete(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return "", apperrors.NotFound("review", id)
	}
	delete(s.reviews, id)
	return rv.BookID, nil
}

func (s *fakeReviewStore) ListByBook(_ context.Context, bookID string, page, perPage int) ([]domain.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Review
	for _, rv := range s.reviews {
		if rv.BookID == bookID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (s *fakeReviewStore) ListByUser(_ context.Context, userID string, page, perPage int) ([]domain.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Review
	for _, rv := range s.reviews {
		if rv.UserID == userID {
			out = append(out, *rv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (s *fakeReviewStore) Summary(_ context.Context, bookID string) (*domain.ReviewSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum, n int
	for _, rv := range s.reviews {
		if rv.BookID == bookID {
			sum += rv.Rating
			n++
		}
	}
	if n == 0 {
		return &domain.ReviewSummary{}, nil
	}
	avg := math.Round(float64(sum)/float64(n)*10) / 10
	return &domain.ReviewSummary{AverageRating: avg, TotalCount: n}, nil
}

func (s *fakeReviewStore) CountByRating(_ context.Context, bookID string) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int]int)
	for _, rv := range s.reviews {
		if rv.BookID == bookID {
			counts[rv.Rating]++
		}
	}
	return counts, nil
}

type fakeBookStore struct {
	mu    sync.Mutex
	books map[string]*domain.Book
}

func newFakeBookStore(books ...*domain.Book) *fakeBookStore {
	s := &fakeBookStore{books: make(map[string]*domain.Book)}
	for _, b := range books {
		cp := *b
		s.books[b.ID] = &cp
	}
	return s
}

func (s *fakeBookStore) Create(_ context.Context, b *domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.books[b.ID] = &cp
	return nil
}

func (s *fakeBookStore) GetByID(_ context.Context, id string) (*domain.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, apperrors.NotFound("book", id)
	}
	cp := *b
	return &cp, nil
}

func (s *fakeBookStore) List(_ context.Context, _ repository.BookFilter) ([]domain.Book, int, error) {
	return nil, 0, nil
}

func (s *fakeBookStore) ListByUser(_ context.Context, _ string, _, _ int) ([]domain.Book, int, error) {
	return nil, 0, nil
}

func (s *fakeBookStore) Update(_ context.Context, b *domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[b.ID]; !ok {
		return apperrors.NotFound("book", b.ID)
	}
	cp := *b
	s.books[b.ID] = &cp
	return nil
}

func (s *fakeBookStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[id]; !ok {
		return apperrors.NotFound("book", id)
	}
	delete(s.books, id)
	return nil
}

func (s *fakeBookStore) UpdateRatingStats(_ context.Context, bookID string, stats domain.RatingStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[bookID]
	if !ok {
		return apperrors.NotFound("book", bookID)
	}
	b.AverageRating = stats.AverageRating
	b.ReviewCount = stats.ReviewCount
	return nil
}

type fakeUserStore struct {
	users map[string]*domain.User
}

func (s *fakeUserStore) Create(_ context.Context, u *domain.User) error { return nil }

func (s *fakeUserStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	return u, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return nil, apperrors.NotFound("user", email)
}

// The projection on a book must track its review set through the full
// mutation lifecycle: submit, second submit, edit, remove.
func TestReviewLifecycle_ProjectionTracksReviews(t *testing.T) {
	ctx := context.Background()
	bookStore := newFakeBookStore(testBook("book-1"))
	reviewStore := newFakeReviewStore()
	userStore := &fakeUserStore{users: map[string]*domain.User{
		"alice": {ID: "alice", Name: "Alice"},
		"bob":   {ID: "bob", Name: "Bob"},
	}}

	logger := newTestLogger()
	agg := NewRatingAggregator(reviewStore, bookStore, nil, nil, logger)
	svc := NewReviewService(reviewStore, bookStore, userStore, agg, nil, logger)

	// First review: 4 -> average 4.0, count 1.
	first, err := svc.Submit(ctx, &SubmitReviewInput{BookID: "book-1", UserID: "alice", Rating: 4, Text: "good"})
	require.NoError(t, err)

	book, err := bookStore.GetByID(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, book.AverageRating)
	assert.Equal(t, 1, book.ReviewCount)

	// Second review: 2 -> average (4+2)/2 = 3.0, count 2.
	second, err := svc.Submit(ctx, &SubmitReviewInput{BookID: "book-1", UserID: "bob", Rating: 2, Text: "not for me"})
	require.NoError(t, err)

	book, _ = bookStore.GetByID(ctx, "book-1")
	assert.Equal(t, 3.0, book.AverageRating)
	assert.Equal(t, 2, book.ReviewCount)

	// Duplicate submit from alice is rejected and leaves the projection alone.
	_, err = svc.Submit(ctx, &SubmitReviewInput{BookID: "book-1", UserID: "alice", Rating: 5, Text: "again"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)

	book, _ = bookStore.GetByID(ctx, "book-1")
	assert.Equal(t, 3.0, book.AverageRating)
	assert.Equal(t, 2, book.ReviewCount)

	// Edit alice's review 4 -> 5: average (5+2)/2 = 3.5.
	_, err = svc.Edit(ctx, first.ID, "alice", &EditReviewInput{Rating: intPtr(5)})
	require.NoError(t, err)

	book, _ = bookStore.GetByID(ctx, "book-1")
	assert.Equal(t, 3.5, book.AverageRating)

	// Remove bob's review: average 5.0, count 1.
	require.NoError(t, svc.Remove(ctx, second.ID, "bob"))

	book, _ = bookStore.GetByID(ctx, "book-1")
	assert.Equal(t, 5.0, book.AverageRating)
	assert.Equal(t, 1, book.ReviewCount)

	// Remove the last review: projection resets to zero.
	require.NoError(t, svc.Remove(ctx, first.ID, "alice"))

	book, _ = bookStore.GetByID(ctx, "book-1")
	assert.Equal(t, 0.0, book.AverageRating)
	assert.Equal(t, 0, book.ReviewCount)
}

// Averages are rounded to one decimal place, e.g. {5,4,4} -> 4.3.
func TestReviewLifecycle_AverageRounding(t *testing.T) {
	ctx := context.Background()
	bookStore := newFakeBookStore(testBook("book-1"))
	reviewStore := newFakeReviewStore()
	userStore := &fakeUserStore{users: map[string]*domain.User{}}

	logger := newTestLogger()
	agg := NewRatingAggregator(reviewStore, bookStore, nil, nil, logger)
	svc := NewReviewService(reviewStore, bookStore, userStore, agg, nil, logger)

	for user, rating := range map[string]int{"u1": 5, "u2": 4, "u3": 4} {
		_, err := svc.Submit(ctx, &SubmitReviewInput{BookID: "book-1", UserID: user, Rating: rating, Text: "r"})
		require.NoError(t, err)
	}

	book, err := bookStore.GetByID(ctx, "book-1")
	require.NoError(t, err)
	assert.Equal(t, 4.3, book.AverageRating)
	assert.Equal(t, 3, book.ReviewCount)
}
