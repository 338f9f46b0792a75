package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/javl1n/siblo-server/api/rest"
	"github.com/javl1n/siblo-server/audit"
	"github.com/javl1n/siblo-server/cache"
	"github.com/javl1n/siblo-server/config"
	dbadapter "github.com/javl1n/siblo-server/db"
	"github.com/javl1n/siblo-server/game/battle"
	"github.com/javl1n/siblo-server/game/progression"
	"github.com/javl1n/siblo-server/game/quiz"
	"github.com/javl1n/siblo-server/game/reward"
	mw "github.com/javl1n/siblo-server/middleware"
	"github.com/javl1n/siblo-server/model"
	"github.com/javl1n/siblo-server/scheduler"
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

	if cfg.Security.JWTSecret == "" {
		log.Fatal("security.jwt_secret must be set")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache ----
	c, err := cache.NewCache(cache.CacheConfig(cfg.Cache))
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Game Services ----
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ledger := progression.NewLedger(rng)
	dist := reward.NewDistributor(ledger, c, logger)
	quizSvc := quiz.NewService(db, dist, logger)
	battleSvc := battle.NewService(db, rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	scheduler.RegisterGameTasks(sched, db, c, cfg.Game, logger)

	// ---- HTTP ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.Recovery(logger))
	r.Use(mw.TraceID())
	r.Use(mw.Logger(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authH := apirest.NewAuthHandler(db, c, cfg.Security, cfg.Game)
	playerH := apirest.NewPlayerHandler(db)
	quizH := apirest.NewQuizHandler(db, quizSvc, auditSvc)
	battleH := apirest.NewBattleHandler(db, battleSvc)
	rankH := apirest.NewRankingHandler(db, c, logger)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/register", authH.Register)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		authed := api.Group("", mw.Auth(cfg.Security, c))

		playerG := authed.Group("/player")
		playerG.GET("/profile", playerH.Profile)
		playerG.GET("/siblons", playerH.Siblons)
		playerG.PATCH("/siblons/:id", playerH.UpdateSiblon)
		playerG.GET("/siblons/:id/history", playerH.SiblonHistory)
		playerG.GET("/activity", playerH.Activity)

		authed.GET("/species", playerH.Species)

		quizG := authed.Group("/quizzes")
		quizG.GET("", quizH.Index)
		quizG.GET("/:id", quizH.Show)
		quizG.POST("/:id/start", quizH.Start)
		quizG.GET("/:id/attempts", quizH.Attempts)

		attemptG := authed.Group("/attempts")
		attemptG.POST("/:id/submit", quizH.Submit)
		attemptG.GET("/:id", quizH.AttemptDetail)

		battleG := authed.Group("/battles")
		battleG.POST("", battleH.Start)
		battleG.GET("", battleH.List)
		battleG.GET("/:battle_id", battleH.Show)
		battleG.POST("/:battle_id/attack", battleH.Attack)
		battleG.POST("/:battle_id/forfeit", battleH.Forfeit)

		authed.GET("/ranking/exp", rankH.TopExp)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- Graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
