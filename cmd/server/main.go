package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/fitchat/internal/config"
	"github.com/HammerMeetNail/fitchat/internal/database"
	"github.com/HammerMeetNail/fitchat/internal/handlers"
	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/middleware"
	"github.com/HammerMeetNail/fitchat/internal/queue"
	"github.com/HammerMeetNail/fitchat/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

type routes struct {
	health        *handlers.HealthHandler
	friends       *handlers.FriendHandler
	chat          *handlers.ChatHandler
	presence      *handlers.PresenceHandler
	push          *handlers.PushHandler
	notifications *handlers.NotificationHandler

	auth          *middleware.AuthMiddleware
	sendLimit     *middleware.RateLimiter
	requestLimit  *middleware.RateLimiter
	requestLogger *middleware.RequestLogger
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{"env": cfg.Server.Environment})
	}

	logger.Info("Starting FitChat server...")

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptionsFromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), "migrations")
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	sessionService := services.NewSessionService(redisAdapter, userService)
	friendService := services.NewFriendService(dbAdapter, userService)
	messageService := services.NewMessageService(dbAdapter, friendService, userService)
	typingService := services.NewTypingService(redisAdapter, cfg.Chat.TypingTTL)
	presenceService := services.NewPresenceService(dbAdapter, friendService, typingService)
	emailService := services.NewEmailService(cfg.Email)
	pushService := services.NewPushService(dbAdapter, cfg.Push)
	notificationService := services.NewNotificationService(dbAdapter, emailService, cfg.Email.BaseURL)

	notificationService.SetRetention(cfg.Chat.NotificationTTL)
	notificationService.SetPushSender(pushService)
	friendService.SetNotificationService(notificationService)
	messageService.SetNotificationService(notificationService)

	if cfg.Relay.NatsURL != "" {
		nc, err := services.ConnectNats(cfg.Relay.NatsURL, "fitchat-server")
		if err != nil {
			return err
		}
		defer nc.Close()
		notificationService.SetRelay(services.NewNatsRelay(nc, cfg.Relay.SubjectPrefix))
		logger.Info("Live relay enabled", map[string]interface{}{"prefix": cfg.Relay.SubjectPrefix})
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	notificationService.SetAsyncContext(bgCtx)

	workerDone := make(chan struct{})
	if cfg.Queue.Enabled {
		jobs := queue.NewAsynqClient(queue.RedisOpt(cfg.Redis))
		defer func() { _ = jobs.Close() }()
		notificationService.SetQueue(jobs)

		worker := queue.NewAsynqServer(queue.RedisOpt(cfg.Redis), cfg.Queue)
		worker.Register(queue.TypePushNewMessage, pushService.HandlePushTask)
		go func() {
			defer close(workerDone)
			if err := worker.Run(bgCtx); err != nil {
				logger.Error("Queue worker stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
	} else {
		close(workerDone)
	}

	go runPeriodic(bgCtx, 24*time.Hour, func(ctx context.Context) {
		if err := notificationService.CleanupOld(ctx); err != nil {
			logger.Warn("Notification cleanup failed", map[string]interface{}{"error": err.Error()})
		}
	})
	go runPeriodic(bgCtx, cfg.Chat.EdgeRepairPeriod, repairFriendEdges(friendService, logger))

	rt := routes{
		health:        handlers.NewHealthHandler(db, redisDB),
		friends:       handlers.NewFriendHandler(friendService, userService),
		chat:          handlers.NewChatHandler(messageService),
		presence:      handlers.NewPresenceHandler(presenceService),
		push:          handlers.NewPushHandler(pushService),
		notifications: handlers.NewNotificationHandler(notificationService),
		auth:          middleware.NewAuthMiddleware(sessionService),
		sendLimit: middleware.NewRateLimiter(redisDB.Client, cfg.Chat.SendRateLimit, cfg.Chat.SendRateWindow,
			"ratelimit:send:", middleware.UserKey, true),
		requestLimit: middleware.NewRateLimiter(redisDB.Client, cfg.Chat.RequestRateLimit, time.Hour,
			"ratelimit:friend-request:", middleware.UserKey, false),
		requestLogger: middleware.NewRequestLogger(logger),
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      newRouter(rt),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		bgCancel()
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	<-workerDone
	logger.Info("Server stopped")
	return nil
}

func newRouter(rt routes) http.Handler {
	mux := http.NewServeMux()
	requireSession := rt.auth.RequireSession

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireSession(h))
	}

	mux.HandleFunc("GET /health", rt.health.Health)
	mux.HandleFunc("GET /ready", rt.health.Ready)
	mux.HandleFunc("GET /live", rt.health.Live)

	// Chat
	handle("GET /api/conversations", rt.chat.Conversations)
	handle("GET /api/messages/{friendId}", rt.chat.Messages)
	mux.Handle("POST /api/send", requireSession(rt.sendLimit.Middleware(http.HandlerFunc(rt.chat.Send))))
	handle("POST /api/mark-read", rt.chat.MarkRead)
	handle("GET /api/unread-count", rt.chat.UnreadCount)

	// Presence
	handle("GET /api/poll/{friendId}", rt.presence.Poll)
	handle("POST /api/typing", rt.presence.Typing)

	// Friends
	handle("GET /api/friends", rt.friends.List)
	handle("DELETE /api/friends/{friendId}", rt.friends.Remove)
	mux.Handle("POST /api/send-friend-request", requireSession(rt.requestLimit.Middleware(http.HandlerFunc(rt.friends.SendRequest))))
	handle("GET /api/friend-requests", rt.friends.ListRequests)
	handle("POST /api/friend-requests/{id}/accept", rt.friends.AcceptRequest)
	handle("POST /api/friend-requests/{id}/reject", rt.friends.RejectRequest)
	handle("DELETE /api/friend-requests/{id}", rt.friends.CancelRequest)
	handle("GET /api/friendship-status/{userId}", rt.friends.Status)
	handle("GET /api/search-users", rt.friends.Search)

	// Push and notifications
	handle("POST /api/push-tokens", rt.push.Register)
	handle("DELETE /api/push-tokens", rt.push.Unregister)
	handle("GET /api/notifications", rt.notifications.List)
	handle("POST /api/notifications/{id}/read", rt.notifications.MarkRead)
	handle("GET /api/notifications/unread-count", rt.notifications.UnreadCount)

	var handler http.Handler = mux
	handler = rt.auth.Authenticate(handler)
	handler = rt.requestLogger.Apply(handler)
	return handler
}

type edgeRepairer interface {
	RepairAsymmetricEdges(ctx context.Context) (int, error)
}

// repairFriendEdges only reports failures. The service logs what it fixed.
func repairFriendEdges(repairer edgeRepairer, logger *logging.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		if _, err := repairer.RepairAsymmetricEdges(ctx); err != nil {
			logger.Warn("Friend edge repair failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// runPeriodic calls fn once at start and then every interval until ctx ends.
func runPeriodic(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
