package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/readshelf/readshelf/internal/repository"
	apperrors "github.com/readshelf/readshelf/pkg/errors"
)

func newTestBookService(books *mockBookRepository, cache *mockBookCache) *BookService {
	if cache == nil {
		return NewBookService(books, nil, nil, newTestLogger())
	}
	return NewBookService(books, cache, nil, newTestLogger())
}

func TestCreateBook_Success(t *testing.T) {
	books := new(mockBookRepository)
	svc := newTestBookService(books, nil)
	ctx := context.Background()

	books.On("Create", ctx, mock.AnythingOfType("*domain.Book")).Return(nil)

	book, err := svc.Create(ctx, &CreateBookInput{
		Title:         "Perdido Street Station",
		Author:        "China Miéville",
		Genre:         "Fantasy",
		PublishedYear: 2000,
		AddedBy:       "user-1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.Equal(t, "user-1", book.AddedBy)
	assert.Zero(t, book.AverageRating)
	assert.Zero(t, book.ReviewCount)
	books.AssertExpectations(t)
}

func TestCreateBook_InvalidGenre(t *testing.T) {
	svc := newTestBookService(new(mockBookRepository), nil)

	_, err := svc.Create(context.Background(), &CreateBookInput{
		Title:         "A Book",
		Author:        "Someone",
		Genre:         "Cyberpunk",
		PublishedYear: 1999,
		AddedBy:       "user-1",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCreateBook_YearBounds(t *testing.T) {
	svc := newTestBookService(new(mockBookRepository), nil)
	nextYear := time.Now().UTC().Year() + 1

	for _, year := range []int{999, 0, -50, nextYear} {
		_, err := svc.Create(context.Background(), &CreateBookInput{
			Title:         "A Book",
			Author:        "Someone",
			Genre:         "Fiction",
			PublishedYear: year,
			AddedBy:       "user-1",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "year %d", year)
	}
}

func TestGetBook_CacheHitSkipsDatabase(t *testing.T) {
	books := new(mockBookRepository)
	cache := new(mockBookCache)
	svc := newTestBookService(books, cache)
	ctx := context.Background()

	cached := testBook("book-1")
	cache.On("Get", ctx, "book-1").Return(cached, nil)

	book, err := svc.Get(ctx, "book-1")

	require.NoError(t, err)
	assert.Equal(t, cached.Title, book.Title)
	books.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestGetBook_CacheMissFallsThroughAndPopulates(t *testing.T) {
	books := new(mockBookRepository)
	cache := new(mockBookCache)
	svc := newTestBookService(books, cache)
	ctx := context.Background()

	cache.On("Get", ctx, "book-1").Return(nil, apperrors.NotFound("book", "book-1"))
	books.On("GetByID", ctx, "book-1").Return(testBook("book-1"), nil)
	cache.On("Set", ctx, mock.AnythingOfType("*domain.Book")).Return(nil)

	book, err := svc.Get(ctx, "book-1")

	require.NoError(t, err)
	assert.Equal(t, "book-1", book.ID)
	cache.AssertExpectations(t)
}

func TestGetBook_CacheErrorFallsBackToDatabase(t *testing.T) {
	books := new(mockBookRepository)
	cache := new(mockBookCache)
	svc := newTestBookService(books, cache)
	ctx := context.Background()

	cache.On("Get", ctx, "book-1").Return(nil, fmt.Errorf("redis timeout"))
	books.On("GetByID", ctx, "book-1").Return(testBook("book-1"), nil)
	cache.On("Set", ctx, mock.AnythingOfType("*domain.Book")).Return(nil)

	book, err := svc.Get(ctx, "book-1")

	require.NoError(t, err)
	assert.Equal(t, "book-1", book.ID)
}

func TestListBooks_InvalidGenreFilter(t *testing.T) {
	svc := newTestBookService(new(mockBookRepository), nil)

	_, err := svc.List(context.Background(), repository.BookFilter{Genre: "Cyberpunk"})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestUpdateBook_Forbidden(t *testing.T) {
	books := new(mockBookRepository)
	svc := newTestBookService(books, nil)
	ctx := context.Background()

	books.On("GetByID", ctx, "book-1").Return(testBook("book-1"), nil)

	_, err := svc.Update(ctx, "book-1", "not-the-owner", &UpdateBookInput{Title: strPtr("New Title")})

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	books.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateBook_SuccessInvalidatesCache(t *testing.T) {
	books := new(mockBookRepository)
	cache := new(mockBookCache)
	svc := newTestBookService(books, cache)
	ctx := context.Background()

	books.On("GetByID", ctx, "book-1").Return(testBook("book-1"), nil)
	books.On("Update", ctx, mock.AnythingOfType("*domain.Book")).Return(nil)
	cache.On("Invalidate", ctx, "book-1").Return(nil)

	updated, err := svc.Update(ctx, "book-1", "user-owner", &UpdateBookInput{Title: strPtr("Retitled")})

	require.NoError(t, err)
	assert.Equal(t, "Retitled", updated.Title)
	cache.AssertExpectations(t)
}

func TestDeleteBook_Forbidden(t *testing.T) {
	books := new(mockBookRepository)
	svc := newTestBookService(books, nil)
	ctx := context.Background()

	books.On("GetByID", ctx, "book-1").Return(testBook("book-1"), nil)

	err := svc.Delete(ctx, "book-1", "not-the-owner")

	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	books.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDeleteBook_Success(t *testing.T) {
	books := new(mockBookRepository)
	cache := new(mockBookCache)
	svc := newTestBookService(books, cache)
	ctx := context.Background()

	books.On("GetByID", ctx, "book-1").Return(testBook("book-1"), nil)
	books.On("Delete", ctx, "book-1").Return(nil)
	cache.On("Invalidate", ctx, "book-1").Return(nil)

	err := svc.Delete(ctx, "book-1", "user-owner")

	require.NoError(t, err)
	books.AssertExpectations(t)
}
