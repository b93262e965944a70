package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakery_manager/internal/billing"
	"bakery_manager/internal/config"
	"bakery_manager/internal/database"
	"bakery_manager/internal/handlers"
	"bakery_manager/internal/logging"
	"bakery_manager/internal/metrics"
	"bakery_manager/internal/middleware"
	"bakery_manager/internal/redis"
	"bakery_manager/internal/repository"
	"bakery_manager/internal/services"
	"bakery_manager/pkg/entitlement"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(cfg.GinMode)

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, cfg.LogLevel, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize Redis
	redisClient, err := redis.Initialize(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, redisClient, services.AuthConfig{
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.SessionTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	}, log)
	customerService := services.NewCustomerService(customerRepo, log)
	productService := services.NewProductService(productRepo, log)
	orderService := services.NewOrderService(orderRepo, log)
	draftService := services.NewDraftService(redisClient, orderRepo, productRepo, cfg.DraftTTL(), log)

	checker := entitlement.NewClient(cfg.SubscriptionCheckURL, cfg.CheckTimeout())
	gate := services.NewSubscriptionGate(checker, redisClient, cfg.CheckTimeout(), log)
	gate.Start(authService)

	provider := billing.NewStripeProvider(cfg.StripeSecretKey, nil)

	// Initialize middleware
	stopCleanup := make(chan struct{})
	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, log)
	authLimiter.StartCleanup(time.Minute, stopCleanup)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "apikey", "x-client-info"}
	corsConfig.AllowMethods = []string{http.MethodPost, http.MethodOptions}
	if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSAllowedOrigins
	}

	// Setup routes
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), metrics.Middleware())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	handlers.Router{
		Auth:         handlers.NewAuthHandler(authService, log),
		Subscription: handlers.NewSubscriptionHandler(provider, gate, log),
		API:          handlers.NewAPIHandler(customerService, productService, orderService, log),
		Drafts:       handlers.NewDraftHandler(draftService, orderService, log),

		RequireAuth:        middleware.RequireAuth(authService),
		RequireEntitlement: middleware.RequireEntitlement(cfg.CheckoutURL),
		AuthRateLimit:      authLimiter.Handler(),
		CORS:               cors.New(corsConfig),
	}.Register(router)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("port", cfg.ServerPort).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	close(stopCleanup)
	gate.Stop()
	log.Info("Server stopped")
}
