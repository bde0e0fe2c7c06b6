package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/grimsurvivors/potdhub/api/rest"
	"github.com/grimsurvivors/potdhub/api/sse"
	"github.com/grimsurvivors/potdhub/audit"
	"github.com/grimsurvivors/potdhub/cache"
	"github.com/grimsurvivors/potdhub/config"
	dbadapter "github.com/grimsurvivors/potdhub/db"
	mw "github.com/grimsurvivors/potdhub/middleware"
	"github.com/grimsurvivors/potdhub/model"
	"github.com/grimsurvivors/potdhub/outbox"
	"github.com/grimsurvivors/potdhub/recon"
	"github.com/grimsurvivors/potdhub/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if the game endpoints will be disabled.
	if cfg.Security.BridgeKey == "" {
		logger.Warn("security.bridge_key is not set; game sync endpoints are disabled")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(nil)

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Core services ----
	outboxSvc := outbox.New(db, logger)
	engine := recon.New(db, outboxSvc, auditSvc, pubsub, cfg.Game, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	sched.AddTicker("verification_code_purge", time.Hour, func() {
		purged, err := engine.PurgeExpiredCodes(context.Background(), 24*time.Hour)
		if err != nil {
			logger.Warn("code purge failed", zap.Error(err))
			return
		}
		if purged > 0 {
			logger.Info("purged expired verification codes", zap.Int64("count", purged))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger, "/api/live/stats"), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst, "/api/pz/"))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	verifyH := apirest.NewVerifyHandler(engine, logger)
	gameH := apirest.NewGameHandler(engine, outboxSvc, c, logger)
	factionH := apirest.NewFactionHandler(db, engine, logger)
	charH := apirest.NewCharacterHandler(db)
	statusH := apirest.NewStatusHandler(c)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		// Game bridge endpoints: static bearer key, no user session.
		pzG := api.Group("/pz")
		pzG.Use(mw.BridgeAuth(cfg.Security.BridgeKey))
		pzG.POST("/add-code", gameH.AddCode)
		pzG.POST("/update-stats", gameH.UpdateStats)
		pzG.GET("/pending-commands", gameH.PendingCommands)
		pzG.POST("/pending-commands", gameH.AckCommands)

		// Session endpoints.
		api.POST("/verify-code", mw.Auth(cfg.Security, c), verifyH.VerifyCode)
		api.GET("/server-status", statusH.ServerStatus)

		userG := api.Group("/user")
		userG.Use(mw.Auth(cfg.Security, c))
		userG.GET("/active-character", charH.ActiveCharacter)
		userG.GET("/characters", charH.History)

		factionsG := api.Group("/factions")
		factionsG.Use(mw.Auth(cfg.Security, c))
		factionsG.GET("", factionH.List)
		factionsG.GET("/:id", factionH.Detail)
		factionsG.POST("/apply", factionH.Apply)
		factionsG.POST("/manage", factionH.Manage)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/api/live/stats", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
