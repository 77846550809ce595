package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/pageza/mealplanner/backend/config"
	"github.com/pageza/mealplanner/backend/internal/api"
	"github.com/pageza/mealplanner/backend/internal/cache"
	"github.com/pageza/mealplanner/backend/internal/database"
	"github.com/pageza/mealplanner/backend/internal/middleware"
	"github.com/pageza/mealplanner/backend/internal/router"
	"github.com/pageza/mealplanner/backend/internal/service"
	"github.com/pageza/mealplanner/backend/internal/session"
	"github.com/pageza/mealplanner/backend/internal/store"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	cache  *cache.GuestTokenCache

	sweepCtx  context.Context
	stopSweep context.CancelFunc
	swept     chan struct{}
	started   atomic.Bool
}

// New wires the application. redisClient may be nil, in which case
// conversion attempts are not rate limited.
func New(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	codec, err := session.NewCodec(session.Options{
		Secret:    cfg.CookieSecret,
		Name:      cfg.CookieName,
		Domain:    cfg.CookieDomain,
		APIOrigin: cfg.APIOrigin,
	})
	if err != nil {
		return nil, fmt.Errorf("cookie codec: %w", err)
	}

	tokens := cache.NewGuestTokenCache(
		cache.WithTTL(cfg.GuestCacheTTL),
		cache.WithSweepInterval(cfg.GuestCacheSweepInterval),
	)
	identityStore := store.New(db)
	verifier := service.NewTokenVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthAudience)
	resolver := service.NewIdentityResolver(identityStore, tokens, codec, session.GenerateSecret)
	conversion := service.NewConversionService(identityStore, tokens)
	records := service.NewRecordService(db)

	handlers := router.Handlers{
		Identity:           api.NewIdentityHandler(conversion, codec),
		Conversations:      api.NewConversationHandler(records),
		Recipes:            api.NewRecipeHandler(records),
		MealPlans:          api.NewMealPlanHandler(records),
		IdentityMiddleware: middleware.Identity(verifier, resolver, codec),
		Health: func(c *gin.Context) {
			if err := database.HealthCheck(c.Request.Context(), db); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		},
	}
	if redisClient != nil {
		handlers.ConversionLimit = middleware.NewConversionRateLimiter(redisClient, cfg.ConversionRateLimit).RateLimitMiddleware()
	}

	engine := router.SetupRouter(handlers, cfg.AllowedOrigins)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	return &Server{
		router: engine,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.ServerHost, cfg.ServerPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		cache:     tokens,
		sweepCtx:  sweepCtx,
		stopSweep: stopSweep,
		swept:     make(chan struct{}),
	}, nil
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the cache sweeper and serves HTTP until Shutdown. It returns
// nil after a clean shutdown.
func (s *Server) Start() error {
	if s.started.CompareAndSwap(false, true) {
		go func() {
			defer close(s.swept)
			s.cache.Run(s.sweepCtx)
		}()
	}

	slog.Default().Info("server listening",
		"module", "server",
		"addr", s.http.Addr,
	)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and the cache sweeper.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.stopSweep()
	if s.started.Load() {
		select {
		case <-s.swept:
		case <-ctx.Done():
		}
	}
	return err
}
