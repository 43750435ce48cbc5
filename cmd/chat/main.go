package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"sudooom.im.chat/internal/cache"
	"sudooom.im.chat/internal/config"
	"sudooom.im.chat/internal/eventid"
	"sudooom.im.chat/internal/handler"
	"sudooom.im.chat/internal/health"
	imNats "sudooom.im.chat/internal/nats"
	"sudooom.im.chat/internal/push"
	"sudooom.im.chat/internal/repository"
	"sudooom.im.chat/internal/service"
)

func main() {
	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// 加载配置
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.App.LogLevel != "" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel(cfg.App.LogLevel),
		}))
		slog.SetDefault(logger)
	}

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接 NATS
	natsClient, err := imNats.NewClient(cfg.NATS)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	logger.Info("Connected to NATS", "url", cfg.NATS.URL)

	// 连接 Redis
	redisClient := connectRedis(cfg.Redis)
	defer redisClient.Close()
	logger.Info("Connected to Redis", "host", cfg.Redis.Host)

	// 连接数据库
	db, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)

	// 存储层
	idGen := eventid.NewGenerator(cfg.App.NodeID)
	eventRepo := repository.NewEventRepository(db, idGen)
	conversationRepo := repository.NewConversationRepository(db)
	pushSubRepo := repository.NewPushSubscriptionRepository(db)

	// 会话存储套缓存装饰器
	conversationCache := cache.New(redisClient, cfg.Chat.CacheTTL)
	conversationStore := cache.NewCachedConversationStore(conversationRepo, conversationCache)

	// 推送分发
	pushSender := imNats.NewPushSender(natsClient.Conn())
	pushDispatcher := push.NewDispatcher(pushSender, push.Options{
		Workers:   cfg.Chat.PushWorkers,
		QueueSize: cfg.Chat.PushQueueSize,
	})
	defer pushDispatcher.Shutdown()

	// 服务层
	publisher := imNats.NewEventPublisher(natsClient.Conn())
	topicBus := imNats.NewTopicSubscriber(natsClient.Conn())
	pushSubs := service.NewPushSubscriptionManager(pushSubRepo)
	conversations := service.NewConversationManager(conversationStore)
	events := service.NewEventManager(eventRepo, publisher, pushSubs, pushDispatcher)
	subscriptions := service.NewSubscriptionManager(topicBus, cfg.Chat.SubscriberBuffer)
	chatService := service.NewChatService(conversations, events, pushSubs, subscriptions, cfg.Chat)

	// 边界订阅
	chatHandler := handler.NewChatHandler(chatService)
	subscriber := imNats.NewRequestSubscriber(natsClient.Conn(), chatHandler, imNats.SubscriberConfig{
		WorkerCount: cfg.Chat.HandlerWorkers,
		BufferSize:  cfg.Chat.HandlerBuffer,
	})
	if err := subscriber.Start(ctx); err != nil {
		logger.Error("Failed to start subscriber", "error", err)
		os.Exit(1)
	}

	// 健康检查与指标
	healthChecker := health.NewChecker(natsClient.Conn(), redisClient, db, subscriptions)
	go startOpsServer(cfg.App.OpsAddr, healthChecker, logger)

	logger.Info("Chat service started", "name", cfg.App.Name, "node", cfg.App.NodeID)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()
	subscriber.Stop()
	logger.Info("Chat service stopped")
}

// startOpsServer 启动健康检查与指标 HTTP 服务
func startOpsServer(addr string, healthChecker *health.Checker, logger *slog.Logger) {
	if addr == "" {
		addr = ":8082"
	}

	mux := http.NewServeMux()
	mux.Handle("/health", healthChecker)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if healthChecker.IsHealthy(r.Context()) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Not Ready"))
		}
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	logger.Info("Ops server started", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Ops server failed", "error", err)
	}
}

// connectRedis 连接 Redis
func connectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// connectDatabase 连接 PostgreSQL
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	return pgxpool.NewWithConfig(ctx, poolConfig)
}

// logLevel 解析日志级别，默认 info
func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
