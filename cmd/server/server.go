package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/socialapi/internal/access"
	"example.com/socialapi/internal/accounts"
	"example.com/socialapi/internal/auth"
	appkafka "example.com/socialapi/internal/broker"
	"example.com/socialapi/internal/library"
	"example.com/socialapi/internal/logger"
	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/middleware"
	"example.com/socialapi/internal/social"
	"example.com/socialapi/internal/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var logg = logger.New()

// Deps are the long-lived collaborators the server is built from.
type Deps struct {
	Stores    *store.Stores
	Publisher appkafka.Publisher
	Tokens    *auth.Tokens
	Policy    *access.Policy
	Metrics   metrics.Recorder
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Options struct {
	DefaultGroup   string
	DeletePolicy   accounts.DeletePolicy
	FeedPageSize   int
	RateLimitRPS   float64
	RateLimitBurst int
	HSTSSeconds    int
}

type Server struct {
	stores   *store.Stores
	tokens   *auth.Tokens
	policy   *access.Policy
	metrics  metrics.Recorder
	gatherer prometheus.Gatherer
	hsts     int

	accounts *accounts.Service
	graph    *social.Graph
	posts    *social.Posts
	library  *library.Service
	limiter  *middleware.RateLimiter
}

func New(d Deps, opts Options) *Server {
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 5
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 60
	}
	return &Server{
		stores:   d.Stores,
		tokens:   d.Tokens,
		policy:   d.Policy,
		metrics:  d.Metrics,
		gatherer: d.Gatherer,
		hsts:     opts.HSTSSeconds,
		accounts: accounts.NewService(d.Stores, d.Tokens, d.Policy, accounts.Options{
			DefaultGroup: opts.DefaultGroup,
			DeletePolicy: opts.DeletePolicy,
		}),
		graph:   social.NewGraph(d.Stores, d.Publisher, d.Metrics, opts.FeedPageSize),
		posts:   social.NewPosts(d.Stores, d.Publisher, d.Policy, d.Metrics),
		library: library.NewService(d.Stores.Library, d.Policy, d.Metrics),
		limiter: middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.AccessLog(logg, s.metrics))
	r.Use(middleware.SecurityHeaders(s.hsts))

	r.Get("/healthz", s.healthHandler)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	r.Post("/accounts/register", s.registerHandler)
	r.Post("/accounts/login", s.loginHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(s.tokens))
		r.Use(s.limiter.Middleware)
		r.Use(middleware.LoadActor(s.stores.Accounts, s.stores.Memberships))

		r.Post("/accounts/logout", s.logoutHandler)
		r.Get("/accounts/me", s.meHandler)
		r.Patch("/accounts/me", s.updateMeHandler)
		r.Delete("/accounts/me", s.deleteMeHandler)
		r.Post("/accounts/follow/{id}", s.followHandler)
		r.Post("/accounts/unfollow/{id}", s.unfollowHandler)
		r.Get("/accounts/{id}", s.profileHandler)
		r.Delete("/accounts/{id}", s.deleteAccountHandler)
		r.Get("/accounts/{id}/following", s.followingHandler)
		r.Get("/accounts/{id}/followers", s.followersHandler)
		r.Get("/accounts/{id}/posts", s.accountPostsHandler)

		r.Get("/feed", s.getFeedHandler)

		r.Get("/posts", s.searchPostsHandler)
		r.Post("/posts", s.createPostHandler)
		r.Get("/posts/{id}", s.getPostHandler)
		r.Put("/posts/{id}", s.updatePostHandler)
		r.Delete("/posts/{id}", s.deletePostHandler)
		r.Post("/posts/{id}/like", s.likeHandler)
		r.Post("/posts/{id}/unlike", s.unlikeHandler)
		r.Get("/posts/{id}/comments", s.listCommentsHandler)
		r.Post("/posts/{id}/comments", s.createCommentHandler)
		r.Put("/posts/{id}/comments/{commentID}", s.updateCommentHandler)
		r.Delete("/posts/{id}/comments/{commentID}", s.deleteCommentHandler)

		r.Get("/notifications", s.notificationsHandler)
		r.Post("/notifications/read", s.markReadHandler)

		r.Get("/books", s.listBooksHandler)
		r.Post("/books", s.createBookHandler)
		r.Get("/books/stats", s.bookStatsHandler)
		r.Get("/books/{id}", s.getBookHandler)
		r.Put("/books/{id}", s.updateBookHandler)
		r.Patch("/books/{id}", s.patchBookHandler)
		r.Delete("/books/{id}", s.deleteBookHandler)

		r.Get("/authors", s.listAuthorsHandler)
		r.Post("/authors", s.createAuthorHandler)
		r.Get("/authors/{id}", s.getAuthorHandler)

		r.With(middleware.RequireCapability(s.policy, s.metrics, access.ResourceGroup, access.CanView)).
			Get("/groups", s.listGroupsHandler)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(s.policy, s.metrics, access.ResourceGroup, access.CanEdit))
			r.Post("/groups/{name}/members/{id}", s.addMemberHandler)
			r.Delete("/groups/{name}/members/{id}", s.removeMemberHandler)
		})
	})

	return r
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Run serves until ctx is cancelled, then shuts down gracefully. TLS is used
// when both certFile and keyFile are set. A listener that fails to start or
// stops unexpectedly ends Run with its error.
func (s *Server) Run(ctx context.Context, addr, certFile, keyFile string) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second, // prevent slowloris attacks
		WriteTimeout:      10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if certFile != "" && keyFile != "" {
			logg.Info("server", "Starting HTTPS server on "+addr)
			serveErr <- srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			logg.Info("server", "Starting HTTP server on "+addr)
			serveErr <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logg.Error("server", "Server stopped unexpectedly", err)
		return fmt.Errorf("serve %s: %w", addr, err)
	case <-ctx.Done():
		logg.Info("server", "Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
		return err
	}
	logg.Info("server", "Server stopped gracefully")
	return nil
}
