package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kurobane/sagabrawl/api/rest"
	"github.com/kurobane/sagabrawl/api/sse"
	apows "github.com/kurobane/sagabrawl/api/ws"
	"github.com/kurobane/sagabrawl/audit"
	"github.com/kurobane/sagabrawl/cache"
	"github.com/kurobane/sagabrawl/config"
	dbadapter "github.com/kurobane/sagabrawl/db"
	"github.com/kurobane/sagabrawl/game/action"
	"github.com/kurobane/sagabrawl/game/pending"
	"github.com/kurobane/sagabrawl/game/racial"
	"github.com/kurobane/sagabrawl/game/roster"
	"github.com/kurobane/sagabrawl/game/turn"
	mw "github.com/kurobane/sagabrawl/middleware"
	"github.com/kurobane/sagabrawl/model"
	"github.com/kurobane/sagabrawl/scheduler"
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

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
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
	defer auditSvc.Stop(context.Background())

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

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Game Systems ----
	rosterSvc := roster.NewService(db, logger)
	registry := racial.NewRegistry()
	ledger := pending.NewLedger(db, rosterSvc, cfg.Combat.PendingAttackTTL, logger)
	machine := turn.NewMachine(db, rosterSvc, registry,
		cfg.Combat.ZenkaiGrowthPercent, cfg.Combat.ZenkaiDesperationPercent, logger)
	resolver := action.NewResolver(rand.New(rand.NewSource(time.Now().UnixNano())))
	prompts := action.NewPromptStore(c, cfg.Combat.PromptTimeout)

	// ---- Periodic Scheduler Tasks ----
	// Expiry is enforced lazily on every read; the sweep just lands expired
	// attacks promptly so defenders cannot stall forever.
	if cfg.Combat.SweepInterval > 0 {
		sched.AddTicker("pending_sweep", cfg.Combat.SweepInterval, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			results, err := ledger.Sweep(ctx, "")
			if err != nil {
				logger.Error("pending sweep failed", zap.Error(err))
				return
			}
			if len(results) > 0 {
				logger.Info("pending sweep landed attacks", zap.Int("count", len(results)))
			}
		})
	}

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	charH := apirest.NewCharacterHandler(db, rosterSvc)
	combatH := apirest.NewCombatHandler(apirest.CombatDeps{
		Roster:   rosterSvc,
		Ledger:   ledger,
		Machine:  machine,
		Resolver: resolver,
		Registry: registry,
		Prompts:  prompts,
		PubSub:   pubsub,
		Audit:    auditSvc,
		Logger:   logger,
	})
	turnH := apirest.NewTurnHandler(machine, rosterSvc)
	boardH := apirest.NewLeaderboardHandler(db, c, logger)
	adminH := apirest.NewAdminHandler(db, ledger, sched, logger)

	// Leaderboard refresh scheduler task.
	sched.AddTicker("leaderboard_refresh", 5*time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := boardH.RefreshFromDB(ctx); err != nil {
			logger.Error("leaderboard refresh failed", zap.Error(err))
		}
	})

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		charsG := api.Group("/characters")
		charsG.Use(mw.Auth(cfg.Security, c))
		charsG.POST("", charH.Create)
		charsG.GET("/me", charH.Sheet)
		charsG.POST("/me/release", charH.Release)
		charsG.POST("/me/transform", charH.Transform)
		charsG.POST("/me/revert", charH.Revert)
		charsG.GET("/me/racial", charH.Tags)
		charsG.POST("/me/racial", charH.ToggleRacial)

		combatG := api.Group("/combat")
		combatG.Use(mw.Auth(cfg.Security, c))
		combatG.POST("/attack", combatH.Attack)
		combatG.POST("/attack/multiplier", combatH.AttackMultiplier)
		combatG.POST("/defend", combatH.Defend)
		combatG.GET("/incoming", combatH.Incoming)

		turnsG := api.Group("/turns")
		turnsG.Use(mw.Auth(cfg.Security, c))
		turnsG.POST("", turnH.Create)
		turnsG.GET("/:channel", turnH.Show)
		turnsG.POST("/:channel/join", turnH.Join)
		turnsG.POST("/:channel/leave", turnH.Leave)
		turnsG.POST("/:channel/advance", turnH.Advance)
		turnsG.POST("/:channel/transfer", turnH.Transfer)
		turnsG.DELETE("/:channel", turnH.End)

		boardG := api.Group("/leaderboard")
		boardG.GET("/pl", boardH.TopPower)

		adminG := api.Group("/admin")
		adminG.Use(mw.IPWhitelist(cfg.Server.AdminIPs), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/metrics", adminH.Metrics)
		adminG.POST("/sweep", adminH.SweepPending)
		adminG.POST("/accounts/:id/ban", adminH.BanAccount)
		adminG.POST("/leaderboard/refresh", boardH.Refresh)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	// ---- WebSocket combat stream ----
	wsH := apows.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
