package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"

	"civicsync-be/ai"
	"civicsync-be/cache"
	"civicsync-be/config"
	"civicsync-be/controllers"
	"civicsync-be/credits"
	"civicsync-be/metrics"
	"civicsync-be/middlewares"
	"civicsync-be/notify"
	"civicsync-be/routes"
	"civicsync-be/services"
	"civicsync-be/store"
	authUtils "civicsync-be/utils"
)

type stores struct {
	issues services.IssueStore
	users  interface {
		services.UserStore
		credits.Store
	}
	inbox interface {
		services.InboxStore
		notify.Store
	}
	profiles services.ProfileRequestStore
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stores, *mongo.Client, error) {
	if cfg.UseMemoryStores() {
		logger.Warn("using in-memory stores, data will not survive a restart")
		return stores{
			issues:   store.NewMemoryIssueStore(),
			users:    store.NewMemoryUserStore(),
			inbox:    store.NewMemoryNotificationStore(),
			profiles: store.NewMemoryProfileRequestStore(),
		}, nil, nil
	}

	client, db, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return stores{}, nil, err
	}
	logger.Info("MongoDB connection established", "database", cfg.MongoDB)
	return stores{
		issues:   store.NewIssueStore(db),
		users:    store.NewUserStore(db),
		inbox:    store.NewNotificationStore(db),
		profiles: store.NewProfileRequestStore(db),
	}, client, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	st, mongoClient, err := openStores(startCtx, cfg, logger)
	if err != nil {
		cancel()
		logger.Error("failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}

	redisClient, err := config.ConnectRedis(startCtx, cfg)
	if err != nil {
		logger.Warn("redis unavailable, caching in memory and skipping rate limits", "error", err)
	}
	backend := cache.NewBackend(startCtx, redisClient)
	cancel()

	m := metrics.New(prometheus.DefaultRegisterer)
	listCache := cache.New(backend, cache.WithLogger(logger), cache.WithMetrics(m))
	dispatcher := notify.NewDispatcher(st.inbox,
		notify.WithLogger(logger),
		notify.WithMetrics(m),
		notify.WithTimeout(cfg.NotifyTimeout),
	)
	ledger := credits.NewLedger(st.users, credits.WithLogger(logger), credits.WithMetrics(m))

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithMetrics(m),
		services.WithNotifier(dispatcher),
		services.WithListCache(listCache, cfg.IssueListTTL),
	}
	if client := ai.NewClient(cfg.AIServiceURL, cfg.AITimeout); client != nil {
		opts = append(opts, services.WithAnalyzer(client))
	} else {
		logger.Info("AI_SERVICE_URL not set, issue enrichment disabled")
	}

	authSvc, err := services.NewAuthService(st.users, st.inbox, opts...)
	if err != nil {
		logger.Error("failed to build auth service", "error", err)
		os.Exit(1)
	}
	issueSvc, err := services.NewIssueService(st.issues, st.users, ledger, opts...)
	if err != nil {
		logger.Error("failed to build issue service", "error", err)
		os.Exit(1)
	}
	adminSvc, err := services.NewAdminService(st.users, opts...)
	if err != nil {
		logger.Error("failed to build admin service", "error", err)
		os.Exit(1)
	}
	profileSvc, err := services.NewProfileService(st.profiles, st.users, opts...)
	if err != nil {
		logger.Error("failed to build profile service", "error", err)
		os.Exit(1)
	}
	gameSvc, err := services.NewGamificationService(st.issues, st.users, ledger, opts...)
	if err != nil {
		logger.Error("failed to build gamification service", "error", err)
		os.Exit(1)
	}

	tokens, err := authUtils.NewTokens(cfg.JWTSecret, authUtils.DefaultTokenTTL)
	if err != nil {
		logger.Error("failed to build token issuer", "error", err)
		os.Exit(1)
	}
	if err := middlewares.RegisterValidators(); err != nil {
		logger.Error("failed to register validators", "error", err)
		os.Exit(1)
	}

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middlewares.RequestID(), middlewares.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{middlewares.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	auth := middlewares.NewAuthenticator(tokens, authSvc, logger)
	routes.Register(r, routes.Handlers{
		Auth:         controllers.NewAuthController(authSvc, tokens, cfg.Production(), "", logger),
		Issues:       controllers.NewIssueController(issueSvc, logger),
		Users:        controllers.NewUserController(adminSvc, logger),
		Gamification: controllers.NewGamificationController(gameSvc, logger),
		Profile:      controllers.NewProfileController(profileSvc, logger),
	}, auth, middlewares.IssueRateLimiter(redisClient, cfg.IssueLimitPrefix, cfg.IssueDailyLimit, logger))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	dispatcher.Wait()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Error("failed to disconnect MongoDB", "error", err)
		}
	}
}
