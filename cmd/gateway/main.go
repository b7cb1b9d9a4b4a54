package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tributary-ai-services/llm-gateway/config"
	"github.com/tributary-ai-services/llm-gateway/core"
	"github.com/tributary-ai-services/llm-gateway/handlers"
	"github.com/tributary-ai-services/llm-gateway/internal/logging"
	"github.com/tributary-ai-services/llm-gateway/models"
	"github.com/tributary-ai-services/llm-gateway/providers"
	"github.com/tributary-ai-services/llm-gateway/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := logging.New(cfg.Logging.Output)

	db, err := initDB(cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&models.RequestLog{}, &models.Pricing{}); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	pricingStore := store.NewPricingStore(db, cfg.Redis)
	requestLogStore := store.NewRequestLogStore(db)

	adapter := providers.NewHTTPAdapter(cfg.Provider)
	router := core.NewRouter(cfg.Routing)
	fallback := core.NewFallbackChain(cfg.Routing.FallbackChain)

	resilienceSettings := core.ResilienceSettings{
		MaxRetries:       cfg.Provider.MaxRetries,
		FailureThreshold: cfg.Provider.CircuitBreakerFailureThreshold,
		Cooldown:         time.Duration(cfg.Provider.CircuitBreakerCooldownSeconds) * time.Second,
	}
	attemptLoop := core.NewAttemptLoop(adapter, fallback, cfg.Routing.MaxAttempts, resilienceSettings)
	accountant := core.NewAccountant(pricingStore, requestLogStore, logger)
	streamingAssembler := core.NewStreamingAssembler(router, fallback, adapter, accountant, cfg.Routing.MaxAttempts, attemptLoop.ResiliencePolicyFor)

	chatHandler := handlers.NewChatHandler(router, attemptLoop, accountant, streamingAssembler, requestLogStore, logger)

	engine := setupRouter(chatHandler, cfg)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Infof("llm-gateway starting on %s", cfg.GetServerAddress())
		logger.Infof("provider base url: %s", cfg.Provider.BaseUrl)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Infof("server exited")
}

func initDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func setupRouter(chatHandler *handlers.ChatHandler, cfg *config.Config) *gin.Engine {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Logger())
	engine.Use(gin.Recovery())
	engine.Use(handlers.CorrelationMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	corsConfig.ExposeHeaders = []string{"X-Correlation-ID"}
	corsConfig.AllowCredentials = true
	engine.Use(cors.New(corsConfig))

	engine.GET("/healthz", handlers.GetHealthz)

	v1 := engine.Group("/v1")
	{
		v1.POST("/chat/completions", chatHandler.PostChatCompletions)
		v1.POST("/chat/completions/stream", chatHandler.PostChatCompletionsStream)
		v1.GET("/usage/stats", chatHandler.GetUsageStats)
	}

	return engine
}
