package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dwelligence/internal/cache"
	"dwelligence/internal/config"
	"dwelligence/internal/handler"
	"dwelligence/internal/maps"
	"dwelligence/internal/model"
	"dwelligence/internal/repository"
	"dwelligence/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/phuslu/log"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func setupLogging(cfg config.LoggingConfig) {
	logger := log.Logger{
		Level:      log.ParseLevel(cfg.Level),
		Caller:     1,
		TimeFormat: time.RFC3339,
		Writer:     &log.IOWriter{Writer: os.Stderr},
	}
	if cfg.Format == "console" {
		logger.Writer = &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true}
	}
	log.DefaultLogger = logger
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg.Logging)

	log.Info().Str("version", Version).Str("build_time", BuildTime).Str("git_commit", GitCommit).Msg("dwelligence starting")

	gin.SetMode(cfg.Server.GinMode)
	ctx := context.Background()

	// Initialize database connection
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	if cfg.PostgreSQL.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
	}
	log.Info().Bool("auto_migrate", cfg.PostgreSQL.AutoMigrate).Msg("connected to PostgreSQL")

	// Commute cache
	var commuteCache cache.CommuteCache
	switch cfg.Commute.CacheBackend {
	case "redis":
		rdb, err := cache.DialRedis(ctx, cfg.Commute.RedisAddr, cfg.Commute.RedisPassword, cfg.Commute.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Commute.RedisAddr).Msg("failed to connect to redis")
		}
		defer rdb.Close()
		commuteCache = cache.NewRedisCache(rdb, cfg.Commute.CacheTTL)
	default:
		commuteCache = cache.NewMemoryCache(cfg.Commute.CacheTTL, time.Now)
	}
	log.Info().Str("backend", cfg.Commute.CacheBackend).Dur("ttl", cfg.Commute.CacheTTL).Msg("commute cache ready")

	mapsClient, err := maps.NewClient(&cfg.Maps)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create maps client")
	}

	completer, err := service.NewCompleter(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Completion.Provider).Msg("failed to create completer")
	}
	log.Info().Str("provider", cfg.Completion.Provider).Msg("completion provider initialized")

	// Initialize services
	commuteMode := model.ParseTravelMode(cfg.Commute.DefaultMode, model.TravelTransit)
	amenities := service.NewAmenityAggregator(repo)
	commutes := service.NewCommuteService(repo, mapsClient, mapsClient, commuteCache, time.Now)
	searchService := service.NewSearchService(
		repo, repo,
		service.NewIntentParser(completer),
		amenities,
		commutes,
		service.NewRanker(cfg.Ranking.WeightTime, cfg.Ranking.WeightPrice, cfg.Ranking.MaxCandidates, completer),
		cfg.Search,
		commuteMode,
	)
	properties := service.NewPropertyService(repo, amenities, cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	ask := service.NewAskService(repo, mapsClient, completer)

	if err := handler.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}
	handlers := &handler.Handlers{
		Search:   handler.NewSearchHandler(searchService),
		Feedback: handler.NewFeedbackHandler(searchService),
		Property: handler.NewPropertyHandler(properties, searchService, ask),
		Commute:  handler.NewCommuteHandler(commutes, commuteMode, cfg.Search.BoundsLimit),
		Amenity:  handler.NewAmenityHandler(properties),
	}

	// Setup Gin router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.AllowedOrigins, ",")
	corsConfig.AllowMethods = strings.Split(cfg.Server.AllowedMethods, ",")
	corsConfig.AllowHeaders = strings.Split(cfg.Server.AllowedHeaders, ",")
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"service":    "dwelligence",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	handlers.Register(router.Group("/api"))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server stopped")
}
