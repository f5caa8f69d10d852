package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"collab-service/internal/auth"
	"collab-service/internal/config"
	"collab-service/internal/db"
	"collab-service/internal/handlers"
	"collab-service/internal/logging"
	"collab-service/internal/memstore"
	"collab-service/internal/middleware"
	"collab-service/internal/models"
	"collab-service/internal/observability"
	"collab-service/internal/rabbitmq"
	"collab-service/internal/reconcile"
	"collab-service/internal/repositories"
	"collab-service/internal/services"
	"collab-service/internal/telemetry"
	"collab-service/internal/typing"
	"collab-service/internal/ws"
)

type stores struct {
	users    repositories.UserRepository
	messages repositories.MessageRepository
	groups   repositories.GroupRepository
	claims   repositories.ClaimRepository
	settings repositories.SettingsRepository
	close    func() error
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (stores, error) {
	if cfg.Store.Driver == "memory" {
		mem := memstore.New()
		logger.Warn("using in-memory store, data is lost on restart")
		return stores{users: mem, messages: mem, groups: mem, claims: mem, settings: mem, close: func() error { return nil }}, nil
	}

	database, err := db.Connect(ctx, cfg.Store.DSN, logger)
	if err != nil {
		return stores{}, err
	}
	return stores{
		users:    repositories.NewUserRepo(database),
		messages: repositories.NewMessageRepo(database),
		groups:   repositories.NewGroupRepo(database),
		claims:   repositories.NewClaimRepo(database),
		settings: repositories.NewSettingsRepo(database),
		close:    database.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer func() { _ = st.close() }()

	for _, seed := range cfg.SeedUsers {
		user := models.User{ID: seed.ID, TeamID: seed.TeamID, Name: seed.Name, AvatarURL: seed.AvatarURL, Role: models.Role(seed.Role)}
		if user.Role != models.RoleAdmin {
			user.Role = models.RoleMember
		}
		if err := st.users.UpsertUser(ctx, user); err != nil {
			logger.Fatal("failed to seed user", zap.String("user_id", seed.ID), zap.Error(err))
		}
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer func() { _ = publisher.Close() }()
	observability.SetPublisher(publisher)
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("reason", rabbitmq.PublisherNoopReason(publisher)))
	auditEmitter := telemetry.NewAuditEmitter(publisher, "audit.log", cfg.ServiceName, cfg.Env, logger)

	typingStore := typing.NewStore(cfg.Chat.TypingTTL)
	go typingStore.Run(ctx, cfg.Chat.TypingTTL)

	hub := ws.NewHub(logger)
	notifier := ws.NewHubNotifier(hub, logger)

	chatService := services.NewChatService(st.users, st.messages, st.groups, typingStore,
		services.WithChatNotifier(notifier),
		services.WithChatLogger(logger),
		services.WithListLimit(cfg.Chat.MessageListLimit))
	hub.OnLastDisconnect(chatService.HandleDisconnect)

	settingsService := services.NewSettingsService(st.settings, auditEmitter, logger)
	claimService := services.NewClaimService(st.users, st.claims, settingsService,
		services.WithClaimNotifier(notifier),
		services.WithClaimAuditor(auditEmitter),
		services.WithClaimLogger(logger),
		services.WithCooldownEnforcement(cfg.Claims.EnforceCooldown))

	if ch := rabbitmq.ChannelOf(publisher); ch != nil {
		consumer := rabbitmq.NewMemberConsumer(chatService, logger)
		if err := consumer.Start(ctx, ch, cfg.AMQP.Exchange, cfg.AMQP.MemberQueue); err != nil {
			logger.Error("member consumer not started", zap.Error(err))
		}
	}

	scheduler, err := reconcile.NewScheduler(cfg.Claims.ReconcileCron, claimService, logger)
	if err != nil {
		logger.Fatal("invalid reconcile schedule", zap.Error(err))
	}
	stopReconcile := scheduler.Start(ctx)
	defer stopReconcile()

	validator := auth.NewValidator(cfg.Auth.JWTSecret)
	limiter := middleware.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.Cleanup(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestLogger(logger, 500*time.Millisecond))

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(observability.Handler()))
	router.GET("/ws", ws.NewHandler(hub, validator, chatService, logger).Handle)

	api := router.Group("/api", middleware.AuthMiddleware(validator), middleware.RateLimit(limiter))
	handlers.Handlers{
		Chat:     handlers.NewChatHandler(chatService, auditEmitter),
		Group:    handlers.NewGroupHandler(chatService, auditEmitter),
		Claim:    handlers.NewClaimHandler(claimService),
		Settings: handlers.NewSettingsHandler(settingsService),
		Presence: handlers.NewPresenceHandler(hub),
	}.Register(api)
	handlers.RegisterDebugRoutes(router, auditEmitter, scheduler, cfg.DebugRoutes)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
