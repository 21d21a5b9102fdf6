package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/GutnikElina/cinema-api/api/swagger"
	"github.com/GutnikElina/cinema-api/internal/handler"
	"github.com/GutnikElina/cinema-api/internal/middleware"
	"github.com/GutnikElina/cinema-api/internal/repository"
	"github.com/GutnikElina/cinema-api/internal/service"
	"github.com/GutnikElina/cinema-api/internal/token"
	"github.com/GutnikElina/cinema-api/pkg/cache"
	"github.com/GutnikElina/cinema-api/pkg/config"
	"github.com/GutnikElina/cinema-api/pkg/database"
	"github.com/GutnikElina/cinema-api/pkg/jobs"
	"github.com/GutnikElina/cinema-api/pkg/logger"
	corsmiddleware "github.com/GutnikElina/cinema-api/pkg/middleware/cors"
	reqidmiddleware "github.com/GutnikElina/cinema-api/pkg/middleware/requestid"
	"github.com/GutnikElina/cinema-api/pkg/storage"
)

// @title Cinema API
// @version 1.0.0
// @description Cinema ticketing backend: authentication, catalog, sessions, tickets
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	movieRepo := repository.NewMovieRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	ticketRepo := repository.NewTicketRepository(db)

	codec := token.NewCodec(cfg.JWT)
	lifecycle := service.NewRefreshTokenLifecycle(refreshRepo, codec, cfg.JWT.RefreshExpiration, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, lifecycle, codec, validate, logr)
	userSvc := service.NewUserService(userRepo, refreshRepo, validate, logr)
	movieSvc := service.NewMovieService(movieRepo, cacheService(cacheRepo), cfg.Cache.MovieTTL, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, movieRepo, cacheService(cacheRepo), cfg.Cache.SessionTTL, validate, logr)
	ticketSvc := service.NewTicketService(ticketRepo, sessionRepo, validate, logr).
		WithMaxPerUser(cfg.Tickets.MaxPerUser)

	reportRepo := repository.NewReportRepository(db)
	reportStore, err := storage.NewLocalStorage(cfg.Reports.Dir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	signer := storage.NewDownloadSigner(cfg.JWT.Secret, cfg.Reports.ResultTTL)
	reportSvc := service.NewReportService(reportRepo, ticketRepo, reportStore, signer, service.ReportServiceConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.ResultTTL,
	}, logr)

	reportQueue := jobs.NewQueue("sales-reports", reportSvc.Process, jobs.QueueConfig{
		Workers: cfg.Reports.Workers,
		Logger:  logr,
	})
	reportQueue.Start(context.Background())
	defer reportQueue.Stop()
	reportSvc.BindQueue(reportQueue)

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			reportSvc.Cleanup(context.Background())
		}
	}()

	authHandler := handler.NewAuthHandler(authSvc, userSvc, metricsSvc)
	userHandler := handler.NewUserHandler(userSvc)
	movieHandler := handler.NewMovieHandler(movieSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	ticketHandler := handler.NewTicketHandler(ticketSvc, metricsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	movies := api.Group("/movies")
	{
		movies.GET("", movieHandler.List)
		movies.GET("/:id", movieHandler.Get)
		movies.POST("", middleware.JWT(authSvc), middleware.RequireAdmin(), movieHandler.Create)
		movies.PUT("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), movieHandler.Update)
		movies.DELETE("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), movieHandler.Delete)
	}

	sessions := api.Group("/sessions")
	{
		sessions.GET("", sessionHandler.List)
		sessions.GET("/:id", sessionHandler.Get)
		sessions.POST("", middleware.JWT(authSvc), middleware.RequireAdmin(), sessionHandler.Create)
		sessions.PUT("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), sessionHandler.Update)
		sessions.DELETE("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), sessionHandler.Delete)
	}

	tickets := api.Group("/tickets", middleware.JWT(authSvc))
	{
		tickets.GET("", ticketHandler.List)
		tickets.GET("/:id", ticketHandler.Get)
		tickets.POST("", ticketHandler.Purchase)
		tickets.POST("/:id/return", ticketHandler.Return)
		tickets.POST("/:id/process", middleware.RequireAdmin(), ticketHandler.Process)
		if cfg.Tickets.ExportEnabled {
			tickets.GET("/export", ticketHandler.Export)
		}
	}

	reports := api.Group("/reports")
	{
		// The download token carries its own signature, so that route
		// stays outside the JWT guard.
		reports.GET("/download/:token", reportHandler.Download)
		reports.POST("", middleware.JWT(authSvc), reportHandler.Create)
		reports.GET("/jobs/:id", middleware.JWT(authSvc), reportHandler.Status)
		reports.DELETE("/jobs/:id", middleware.JWT(authSvc), reportHandler.Delete)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.PUT("/me", userHandler.UpdateProfile)
		users.GET("", middleware.RequireAdmin(), userHandler.List)
		users.GET("/:id", middleware.RequireAdmin(), userHandler.Get)
		users.POST("", middleware.RequireAdmin(), userHandler.Create)
		users.PUT("/:id", middleware.RequireAdmin(), userHandler.Update)
		users.DELETE("/:id", middleware.RequireAdmin(), userHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// cacheService keeps a nil *CacheRepository from becoming a non-nil
// interface inside the services.
func cacheService(repo *repository.CacheRepository) service.ListingCache {
	if repo == nil {
		return nil
	}
	return repo
}
