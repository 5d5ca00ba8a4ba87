package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/readshelf/readshelf/internal/auth"
	"github.com/readshelf/readshelf/internal/service"
	"github.com/readshelf/readshelf/pkg/health"
	"github.com/readshelf/readshelf/pkg/middleware"
)

// RouterDeps bundles the dependencies needed to build the HTTP router.
type RouterDeps struct {
	UserService   *service.UserService
	BookService   *service.BookService
	ReviewService *service.ReviewService
	JWTManager    *auth.JWTManager
	Health        *health.Handler
	Logger        *slog.Logger
	CORS          middleware.CORSConfig

	// Per-IP rate limit applied to the auth endpoints. Zero disables it.
	AuthRateLimitRPS   int
	AuthRateLimitBurst int
}

// NewRouter creates a chi router with all readshelf routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.PrometheusMetrics("readshelf"))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(deps.UserService, deps.Logger)
	bookHandler := NewBookHandler(deps.BookService, deps.Logger)
	reviewHandler := NewReviewHandler(deps.ReviewService, deps.Logger)
	userHandler := NewUserHandler(deps.UserService, deps.BookService, deps.ReviewService, deps.Logger)

	// Token validator that bridges to our internal JWTManager.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := deps.JWTManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
		}, nil
	}

	// Auth endpoints (public, rate limited against credential stuffing)
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		if deps.AuthRateLimitRPS > 0 {
			r.Use(middleware.RateLimit(deps.AuthRateLimitRPS, deps.AuthRateLimitBurst, deps.Logger))
		}

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.RefreshToken)
	})

	// Catalog and review endpoints
	r.Route("/api/v1/books", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Public catalog reads, cacheable for a short window
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(60))

			r.Get("/", bookHandler.ListBooks)
			r.Get("/{id}", bookHandler.GetBook)
		})

		// Review reads reflect mutations immediately, so no client caching.
		r.Get("/{bookId}/reviews", reviewHandler.ListReviews)
		r.Get("/{bookId}/reviews/distribution", reviewHandler.RatingDistribution)

		// Authenticated writes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokenValidator))

			r.Post("/", bookHandler.CreateBook)
			r.Put("/{id}", bookHandler.UpdateBook)
			r.Delete("/{id}", bookHandler.DeleteBook)
			r.Post("/{bookId}/reviews", reviewHandler.SubmitReview)
		})
	})

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Put("/{id}", reviewHandler.EditReview)
		r.Delete("/{id}", reviewHandler.DeleteReview)
	})

	// Current user endpoints (auth required)
	r.Route("/api/v1/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/me", userHandler.GetProfile)
		r.Get("/me/books", userHandler.ListMyBooks)
		r.Get("/me/reviews", userHandler.ListMyReviews)
	})

	return r
}
