package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/audithq/contest-engine/internal/config"
	"github.com/audithq/contest-engine/internal/rating"
	"github.com/audithq/contest-engine/internal/storage"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	repo           storage.Repository
	processor      *rating.Processor
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	authCfg config.AuthConfig,
	repo storage.Repository,
	processor *rating.Processor,
) *Server {
	s := &Server{
		config:         cfg,
		repo:           repo,
		processor:      processor,
		authMiddleware: NewAuthMiddleware(repo, authCfg.AdminToken),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Admin-Token"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.With(s.authMiddleware.Authenticate).Get("/me", s.handleCurrentUser)
		})

		// Contests
		r.Route("/contests", func(r chi.Router) {
			r.Get("/", s.handleListContests)
			r.With(s.authMiddleware.RequireAdmin).Post("/", s.handleCreateContest)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetContest)
				r.Post("/signup/{userID}", s.handleSignup)

				r.With(s.authMiddleware.RequireAdmin).Post("/process_elo", s.handleProcessRatings)
				r.With(s.authMiddleware.RequireAdmin).Post("/process_participation_days", s.handleProcessParticipationDays)
				r.With(s.authMiddleware.RequireAdmin).Post("/bugs", s.handleCreateBug)
				r.With(s.authMiddleware.RequireAdmin).Post("/users/{userID}/invalid_submissions", s.handleInvalidSubmissions)
			})
		})

		// Findings
		r.With(s.authMiddleware.Authenticate).Post("/bugs/{id}/reports", s.handleReportBug)

		// Leaderboard
		r.Get("/leaderboard", s.handleLeaderboard)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
