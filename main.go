package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/alien2112/safelines-sub000/handlers"
	"github.com/alien2112/safelines-sub000/internal/config"
	"github.com/alien2112/safelines-sub000/internal/content"
	contenthandler "github.com/alien2112/safelines-sub000/internal/content/handler"
	"github.com/alien2112/safelines-sub000/internal/content/repository"
	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/alien2112/safelines-sub000/internal/database"
	imagehandler "github.com/alien2112/safelines-sub000/internal/images/handler"
	"github.com/alien2112/safelines-sub000/internal/storage"
	"github.com/alien2112/safelines-sub000/pkg/httpcache"
	"github.com/alien2112/safelines-sub000/pkg/logger"
	"github.com/alien2112/safelines-sub000/pkg/metrics"
	"github.com/alien2112/safelines-sub000/pkg/middleware"
	"github.com/alien2112/safelines-sub000/pkg/respond"
	"github.com/enrichman/httpgrace"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	mongoConnectAttempts = 5
	readyTimeout         = 2 * time.Second
)

// deps are the runtime services the router is built from.
type deps struct {
	content  *service.Service
	store    storage.ObjectStore
	limiter  middleware.Limiter // nil disables rate limiting
	notifier middleware.Notifier
	checks   map[string]handlers.Check
}

func main() {
	// LOG_LEVEL is applied again once the config is loaded
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	respond.ExposeDetails(cfg.Server.Development())
	if !cfg.Server.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logger.Writer()
	gin.DefaultErrorWriter = logger.Writer()

	if cfg.MongoDB.URIFromDefault {
		logger.Warnf("MONGODB_URI not set, using %s", cfg.MongoDB.URI)
	}

	ctx := context.Background()
	conn := database.NewConnector(cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if _, err := conn.ConnectWithRetry(ctx, mongoConnectAttempts, time.Second, func(attempt int, err error) {
		logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, mongoConnectAttempts, err)
	}); err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := conn.Disconnect(shutdownCtx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}()

	db, err := conn.Database(ctx, cfg.MongoDB.Database)
	if err != nil {
		logger.Fatalf("mongo database: %v", err)
	}
	repo := repository.NewMongoRepo(db, content.NewClock(nil))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warnf("content indexes: %v", err)
	}

	store, err := storage.New(ctx, storage.Options{
		Backend:      cfg.Storage.Backend,
		GridFSBucket: cfg.MongoDB.ImageBucket,
		MinIO:        cfg.Storage.MinIO,
	}, db)
	if err != nil {
		logger.Fatalf("image storage: %v", err)
	}
	logger.Infof("image storage backend: %s", cfg.Storage.Backend)

	d := deps{
		content:  service.NewService(repo),
		store:    store,
		notifier: middleware.NewHoneybadger(cfg.Honeybadger.APIKey, cfg.Server.Environment),
		checks:   map[string]handlers.Check{"mongo": conn.Ping},
	}

	if cfg.RateLimit.Enabled {
		d.limiter = middleware.NewMemoryLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		if cfg.RateLimit.UseRedis && cfg.Redis.Host != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			if err := rdb.Ping(ctx).Err(); err != nil {
				logger.Warnf("redis unavailable, using in-memory rate limiter: %v", err)
				_ = rdb.Close()
			} else {
				defer func() { _ = rdb.Close() }()
				window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
				d.limiter = middleware.NewRedisLimiter(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, window)
				d.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			}
		}
		logger.Infof("rate limiting write routes with %s limiter", d.limiter.Name())
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := newRouter(cfg, d)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Starting content API on %s", addr)
	if err := newServer(cfg.Server, r).ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server failed: %v", err)
	}
	logger.Info("server stopped")
}

func newRouter(cfg *config.Config, d deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.Honeybadger(d.notifier, logger.Logger()))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	handlers.RegisterHealth(r, d.checks, readyTimeout)
	handlers.RegisterSwagger(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	listPolicy := httpcache.Policy{
		BrowserMaxAge:        cfg.Cache.BrowserMaxAge,
		SharedMaxAge:         cfg.Cache.SharedMaxAge,
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
	}
	imagePolicy := httpcache.Policy{BrowserMaxAge: cfg.Cache.ImageMaxAge, Immutable: true}

	api := r.Group("/api")
	api.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout, isImageStream))
	if d.limiter != nil {
		api.Use(writesOnly(middleware.RateLimit(d.limiter, "write")))
	}

	contenthandler.RegisterContentRoutes(api, d.content, contenthandler.Options{Policy: listPolicy})
	contenthandler.RegisterJobRoutes(api, d.content, d.store, cfg.Storage.MaxUploadBytes)
	imagehandler.RegisterImageRoutes(api, d.store, imagehandler.Options{
		ListPolicy:     listPolicy,
		ImagePolicy:    imagePolicy,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	return r
}

// isImageStream matches binary downloads, which are bounded by the client
// connection instead of the request timeout.
func isImageStream(c *gin.Context) bool {
	m := c.Request.Method
	return (m == http.MethodGet || m == http.MethodHead) && c.FullPath() == "/api/images/:id"
}

func writesOnly(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
		default:
			h(c)
		}
	}
}

func newServer(sc config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Writer(), nil))

	return httpgrace.NewServer(r,
		httpgrace.WithTimeout(sc.ShutdownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Info("Shutting down content API....")
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(sc.ReadTimeout),
			httpgrace.WithWriteTimeout(sc.WriteTimeout),
			httpgrace.WithIdleTimeout(sc.IdleTimeout),
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Writer(), "[http] ", log.LstdFlags)
			},
		),
	)
}
