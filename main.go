package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/docsmith/docsmith/handlers"
	"github.com/docsmith/docsmith/internal/config"
	"github.com/docsmith/docsmith/internal/database"
	"github.com/docsmith/docsmith/internal/doc"
	"github.com/docsmith/docsmith/internal/doc/repository"
	"github.com/docsmith/docsmith/internal/permission"
	"github.com/docsmith/docsmith/internal/preview"
	"github.com/docsmith/docsmith/pkg/logger"
	"github.com/docsmith/docsmith/pkg/metrics"
	"github.com/docsmith/docsmith/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: mongo=%v redis=%v", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	r := gin.New()

	// Lightweight CORS middleware for dev/test: set common headers and respond to OPTIONS.
	// Production deployments should front this with a stricter policy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	r.Use(gin.Logger(), gin.Recovery())

	// Redis backs the preview cache and, when configured, the rate limiter.
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// Document store: Mongo when configured, in-memory otherwise (local dev).
	var store doc.Store
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongo(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			logger.Fatalf("failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(context.Background())
		col := client.Database(cfg.MongoDB.Database).Collection("docs")
		store, err = repository.NewMongo(context.Background(), col)
		if err != nil {
			logger.Fatalf("failed to prepare docs collection: %v", err)
		}
		logger.Infof("document store: mongodb (%s)", cfg.MongoDB.Database)
	} else {
		store = repository.NewMemory()
		logger.Warnf("MONGODB_URI not set; using in-memory document store")
	}

	var cache preview.Cache
	if redisClient != nil {
		cache = preview.NewRedisCache(redisClient, "")
	} else {
		cache = preview.NewMemoryCache()
		logger.Warnf("Redis not available; preview cache is in-memory")
	}

	perms := permission.New()
	engine := doc.NewEngine(doc.NewRegistry(), store, perms)
	locker := doc.NewLocker(store, perms, cfg.Engine.LockTimeout)
	previews := preview.New(engine.Registry(), store, cache, cfg.Engine.PreviewTTL)

	// Type managers are registered once here, before serving traffic.
	engine.RegisterManager(doc.NewBaseManager("article", doc.FieldDescriptor{Name: "title", Sortify: true}))
	engine.RegisterManager(doc.NewBaseManager("page", doc.FieldDescriptor{Name: "title", Sortify: true}))
	logger.Infof("registered document types: %v", engine.Registry().Types())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uptime": time.Since(startTime).String(), "types": engine.Registry().Types()})
	})

	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := r.Group("/", middleware.AuthMiddleware(cfg.JWT.Secret))
	handlers.RegisterDocumentRoutes(api, handlers.Deps{Engine: engine, Locker: locker, Previews: previews})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	logger.Infof("listening on %s", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
