// Package api wires together all HTTP routes for the community platform.
//
// Two route families share one engine:
//   - /app is resolved to a community from the request host and authenticated
//     with app-scoped bearer tokens.
//   - /console addresses communities by ID and authenticates with the console
//     session cookie.
//
// Local-storage downloads are served from /files/:token; metrics live on a
// separate port started by cmd/server.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/api/app"
	"github.com/community-hub/community-hub/internal/api/console"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/auth/oidc"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/jobs"
	"github.com/community-hub/community-hub/internal/mail"
	"github.com/community-hub/community-hub/internal/middleware"
	"github.com/community-hub/community-hub/internal/safego"
	"github.com/community-hub/community-hub/internal/services"
	"github.com/community-hub/community-hub/internal/storage"
	"github.com/community-hub/community-hub/internal/storage/local"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Version is reported by GET /version; cmd/server overrides it at link time
var Version = "0.1.0"

// BackgroundServices holds the goroutines and clients that must be released
// during graceful shutdown. cmd/server calls Shutdown after the HTTP server
// has drained.
type BackgroundServices struct {
	scheduler *jobs.Scheduler
	limiters  []middleware.Limiter
	publisher events.Publisher
	redis     *redis.Client
}

// Shutdown stops background work and closes shared clients
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.scheduler != nil {
		bg.scheduler.Stop()
	}
	for _, l := range bg.limiters {
		l.Stop()
	}
	if bg.publisher != nil {
		if err := bg.publisher.Close(); err != nil {
			slog.Warn("failed to close event publisher", "error", err)
		}
	}
	if bg.redis != nil {
		if err := bg.redis.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// Dependencies are the external collaborators the router is built over
type Dependencies struct {
	DB        *sql.DB
	Storage   storage.Storage
	Publisher events.Publisher
	Mailer    mail.Mailer
	SSO       console.SSOProvider
	Redis     *redis.Client
}

// NewRouter connects the configured storage backend, event publisher, mailer,
// SSO provider and Redis, then builds the router and starts the scheduler
func NewRouter(ctx context.Context, cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices, error) {
	backend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	deps := Dependencies{
		DB:        db,
		Storage:   backend,
		Publisher: events.New(cfg.Events),
		Mailer:    mail.New(cfg.Notifications),
	}

	if cfg.Auth.OIDC.Enabled {
		provider, err := oidc.NewProvider(ctx, &cfg.Auth.OIDC)
		if err != nil {
			return nil, nil, err
		}
		deps.SSO = provider
		slog.Info("console single sign-on enabled", "issuer", cfg.Auth.OIDC.IssuerURL)
	}

	if cfg.Security.RateLimiting.Enabled && cfg.Security.RateLimiting.UseRedis {
		client, err := middleware.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-process rate limiting", "error", err)
		} else {
			deps.Redis = client
		}
	}

	router, bg := Build(cfg, deps)
	if cfg.Scheduler.Enabled {
		safego.Go("scheduler", func() { bg.scheduler.Start(context.Background()) })
	}
	return router, bg, nil
}

// Build assembles the engine. The scheduler is created but not started.
func Build(cfg *config.Config, deps Dependencies) (*gin.Engine, *BackgroundServices) {
	store := repositories.NewStore(sqlx.NewDb(deps.DB, "postgres"))
	svc := services.New(cfg, store, deps.Publisher, deps.Mailer, deps.Storage)

	bg := &BackgroundServices{
		scheduler: jobs.NewScheduler(svc.Posts, svc.Exports, cfg.Scheduler.Interval),
		publisher: deps.Publisher,
		redis:     deps.Redis,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg, svc.Communities))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))

	authRateLimit := func(c *gin.Context) { c.Next() }
	if cfg.Security.RateLimiting.Enabled {
		general := newLimiter(deps.Redis, "cmh:rl:general", middleware.RateLimitConfigFrom(cfg.Security.RateLimiting))
		strict := newLimiter(deps.Redis, "cmh:rl:auth", middleware.AuthRateLimitConfig())
		bg.limiters = append(bg.limiters, general, strict)
		router.Use(middleware.RateLimitMiddleware(general))
		authRateLimit = middleware.RateLimitMiddleware(strict)
	}

	router.GET("/health", healthCheckHandler(deps.DB))
	router.GET("/ready", readinessHandler(deps.DB, deps.Storage))
	router.GET("/version", versionHandler())

	if ls, ok := deps.Storage.(*local.LocalStorage); ok {
		router.GET("/files/:token",
			middleware.SecurityHeadersMiddleware(middleware.FileSecurityHeadersConfig(cfg.Security.TLS.Enabled)),
			fileHandler(ls))
	}

	appGroup := router.Group("/app", middleware.TenantMiddleware(svc.Communities))
	app.NewHandlers(cfg, svc).Register(appGroup,
		middleware.AppAuthMiddleware(store.Users()),
		middleware.MembershipMiddleware(store.Memberships()),
	)

	console.NewHandlers(cfg, svc, store.Audit(), deps.SSO).Register(router.Group("/console"), console.Chains{
		AuthRateLimit: authRateLimit,
		Authenticated: middleware.ConsoleAuthMiddleware(cfg.Auth.Cookie.Name, store.Users()),
		Community: []gin.HandlerFunc{
			middleware.ConsoleCommunityMiddleware(svc.Communities),
			middleware.MembershipMiddleware(store.Memberships()),
		},
		Audit: middleware.ConsoleAuditMiddleware(store.Audit()),
	})

	return router, bg
}

// newLimiter prefers the shared Redis limiter when a client is available
func newLimiter(client *redis.Client, prefix string, cfg middleware.RateLimitConfig) middleware.Limiter {
	if client != nil {
		return middleware.NewRedisLimiter(client, prefix, cfg)
	}
	return middleware.NewMemoryLimiter(cfg)
}

// healthCheckHandler reports liveness, including database connectivity
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler also probes the storage backend so that a readiness gate
// fails when uploads and exports would error
func readinessHandler(db *sql.DB, backend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// a known-absent path exercises credentials and connectivity without writing
		if _, err := backend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the build and API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// fileHandler streams an object addressed by a signed local-storage token
// GET /files/:token
func fileHandler(ls *local.LocalStorage) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := ls.Resolve(c.Param("token"))
		if err != nil {
			apperr.Respond(c, apperr.NotFound(apperr.CodeNotFound))
			return
		}
		rc, err := ls.Open(c.Request.Context(), path)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				apperr.Respond(c, apperr.NotFound(apperr.CodeNotFound))
				return
			}
			apperr.Respond(c, err)
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
			"Cache-Control": "private, max-age=300",
		})
	}
}

// LoggerMiddleware logs one structured record per request. The output format
// follows the global slog handler set up by telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware allows the configured console origins everywhere, and on
// /app any origin whose host resolves to a community
func CORSMiddleware(cfg *config.Config, resolver middleware.CommunityResolver) gin.HandlerFunc {
	methods := "GET, POST, PUT, DELETE, OPTIONS"
	if len(cfg.Security.CORS.AllowedMethods) > 0 {
		methods = strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}
		if !allowed && origin != "" && strings.HasPrefix(c.Request.URL.Path, "/app/") {
			allowed = communityOrigin(c.Request.Context(), resolver, origin)
		}

		if allowed && origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, Accept-Language, X-Request-ID")
			c.Header("Access-Control-Max-Age", "3600")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func communityOrigin(ctx context.Context, resolver middleware.CommunityResolver, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return false
	}
	community, err := resolver.ResolveHost(ctx, strings.ToLower(u.Hostname()))
	return err == nil && community != nil
}
