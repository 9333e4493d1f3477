package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lumichat/billing/internal/config"
	"github.com/lumichat/billing/internal/db"
	"github.com/lumichat/billing/internal/http/api/admin"
	"github.com/lumichat/billing/internal/http/api/front"
	"github.com/lumichat/billing/internal/logging"
	"github.com/lumichat/billing/internal/pricing"
	internalsettings "github.com/lumichat/billing/internal/settings"
	"github.com/lumichat/billing/internal/usage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful shutdown of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, appCfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	dsn, errLoad := config.LoadDatabaseDSN(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the cost-accounting service: database, settings
// snapshot, pricing cache, retention cleaner, and the HTTP API.
func RunServer(ctx context.Context, appCfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, errLoad := config.LoadConfig(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Logging)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	if errRefresh := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("app: settings snapshot refresh failed, using defaults")
	}

	rdb := newRedisClient(ctx, cfg.Redis)
	catalog := pricing.NewCachedCatalog(pricing.NewGormCatalog(conn), rdb)
	recomputer := usage.NewRecomputer(conn, catalog, cfg.Session.AnonSecret)

	usage.NewRetentionCleaner(conn).Start(ctx)

	engine := newEngine(conn)
	front.RegisterFrontRoutes(engine, conn, cfg.JWT, recomputer, cfg.Session.AnonSecret)
	admin.RegisterAdminRoutes(engine, conn, cfg.JWT)

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s (config=%s)", server.Addr, configPath)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return errServe
	}
}

// newEngine builds the gin engine with recovery, request logging, and
// the health probe.
func newEngine(conn *gorm.DB) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogMiddleware())

	engine.GET("/healthz", func(c *gin.Context) {
		sqlDB, errDB := conn.DB()
		if errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

// requestLogMiddleware logs one line per request through logrus.
func requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

// newRedisClient connects the optional pricing cache. Failure to reach
// Redis disables caching instead of failing startup.
func newRedisClient(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		log.WithError(errPing).Warn("app: redis unreachable, pricing cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}
