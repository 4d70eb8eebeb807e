package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/havenlist/authcore/internal/audit"
	"github.com/havenlist/authcore/internal/auth"
	"github.com/havenlist/authcore/internal/config"
	"github.com/havenlist/authcore/internal/limiter"
	"github.com/havenlist/authcore/internal/logger"
	mw "github.com/havenlist/authcore/internal/middleware"
	"github.com/havenlist/authcore/internal/policy"
	"github.com/havenlist/authcore/internal/reliability"
	"github.com/havenlist/authcore/internal/repository"
	"github.com/havenlist/authcore/internal/repository/memory"
	"github.com/havenlist/authcore/internal/repository/postgres"
	"github.com/havenlist/authcore/internal/service"
)

type Server struct {
	cfg         *config.Config
	router      *chi.Mux
	authService *service.AuthService
	session     *mw.SessionMiddleware
	rateLimiter limiter.Limiter
	policies    *policy.Engine
	policyRepo  repository.PolicyRepository
	auditLogger audit.Logger
	redisClient *redis.Client // nil unless configured
	pgStore     *postgres.Store
	log         *zap.Logger
}

func New(cfg *config.Config) (*Server, error) {
	log := logger.Named("server")

	// Identity store: postgres when configured, in-memory otherwise.
	var identities repository.IdentityRepository
	var policyRepo repository.PolicyRepository
	var pgStore *postgres.Store
	if cfg.DatabaseURL != "" {
		var err error
		pgStore, err = postgres.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("identity store: %w", err)
		}
		identities, policyRepo = pgStore, pgStore
		log.Info("using postgres identity store")
	} else {
		mem := memory.New()
		identities, policyRepo = mem, mem
		log.Warn("using in-memory identity store; data will not survive a restart")
	}

	// Rate limiter: shared redis counter when configured, else the
	// best-effort in-process window map.
	var rdb *redis.Client
	var rateLimiter limiter.Limiter
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		rateLimiter = limiter.NewRedisLimiter(rdb, "rl:")
		log.Info("using redis rate limiter", zap.String("addr", cfg.RedisAddr))
	} else {
		rateLimiter = limiter.NewMemoryLimiter()
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	auditLogger := audit.NewJSONLogger(os.Stdout)
	authService := service.NewAuthService(identities, policyRepo, tokens, auditLogger)
	session := mw.NewSession(tokens, identities)

	engine := policy.NewEngine(policy.RatePolicy{
		ID:     "default",
		Max:    cfg.RateLimitMax,
		Window: cfg.RateLimitWindow,
	})
	engine.Load([]policy.RatePolicy{
		// Credential endpoints get a tighter ceiling than the default.
		{ID: "auth", Path: "/api/auth/", Max: 20, Window: 15 * time.Minute},
		{ID: "probes", Path: "/health", Max: 1000, Window: time.Minute},
		{ID: "ready", Path: "/ready", Max: 1000, Window: time.Minute},
		{ID: "metrics", Path: "/metrics", Max: 1000, Window: time.Minute},
	})

	s := &Server{
		cfg:         cfg,
		router:      chi.NewRouter(),
		authService: authService,
		session:     session,
		rateLimiter: rateLimiter,
		policies:    engine,
		policyRepo:  policyRepo,
		auditLogger: auditLogger,
		redisClient: rdb,
		pgStore:     pgStore,
		log:         log,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(mw.Metrics())
	r.Use(mw.SecureHeaders())
	r.Use(mw.RateLimit(s.rateLimiter, s.policies, reliability.FailOpen))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.Post("/oauth", s.handleOAuthLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.session.Handle)
			r.Get("/me", s.handleMe)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(s.session.Handle)
		r.Get("/registration", s.handleGetRegistration)
		r.Put("/registration", s.handlePutRegistration)
	})
}

// Handler exposes the routed stack for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	if s.pgStore != nil {
		if err := s.pgStore.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// Start serves until SIGINT/SIGTERM, then drains for up to 5 seconds.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.cfg.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.log.Info("shutdown started", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		if s.pgStore != nil {
			s.pgStore.Close()
		}
	}

	return nil
}
