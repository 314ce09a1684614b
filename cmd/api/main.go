package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sevenatma743-beep/streetconnect/cmd/api/router/v1"
	"github.com/sevenatma743-beep/streetconnect/internal/config"
	cacheAdapter "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/adapter"
	cacheport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/cache/port"
	"github.com/sevenatma743-beep/streetconnect/internal/infrastructure/changefeed"
	"github.com/sevenatma743-beep/streetconnect/internal/infrastructure/database"
	queueAdapter "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/queue/adapter"
	qport "github.com/sevenatma743-beep/streetconnect/internal/infrastructure/queue/port"
	"github.com/sevenatma743-beep/streetconnect/internal/logging"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/task"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/application/usecase"
	repoAdapter "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/persistence/repository/adapter"
	httpHandler "github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/presentation/http"
	"github.com/sevenatma743-beep/streetconnect/internal/pkg/messaging/session"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	var cache cacheport.Cache
	if cfg.RedisURL != "" {
		redis, err := cacheAdapter.NewRedisAdapter(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = redis.Close() }()
		cache = redis
	}

	var queue qport.Client
	var worker qport.Server
	if cfg.RedisURL != "" {
		client, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to build queue client", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		queue = client

		srv, err := queueAdapter.NewAsynqServer(cfg.RedisURL, 10, logger)
		if err != nil {
			logger.Fatal("failed to build queue server", zap.Error(err))
		}
		task.RegisterNotifyMessageTask(srv, pool, logger)
		worker = srv
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := repoAdapter.NewPgMessagingStore(pool)
	feed := changefeed.NewDialer(cfg.Feed.URL, cfg.Feed.MinBackoff, cfg.Feed.MaxBackoff, logger)
	hub := session.NewHub(session.Deps{
		Threads:   usecase.NewGetThreadUseCase(store),
		Sender:    usecase.NewSendMessageUseCase(store),
		Reader:    usecase.NewMarkReadUseCase(store),
		Messages:  usecase.NewGetMessageUseCase(store),
		Feed:      feed,
		Log:       logger,
		Metrics:   session.NewMetrics(registry),
		OpTimeout: cfg.Timeouts.Request,
	})

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1.RegisterRoutes(r, pool, cache, queue, hub, logger, httpHandler.Timeouts{
		Request: cfg.Timeouts.Request,
		Send:    cfg.Timeouts.Send,
	})

	srv := &http.Server{Addr: cfg.HTTPAddress, Handler: r}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if worker != nil {
		go func() {
			if err := worker.Run(rootCtx); err != nil {
				logger.Error("queue worker stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("http server listening", zap.String("address", cfg.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer cancelShutdown()

	hub.CloseAll()
	if worker != nil {
		_ = worker.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}
