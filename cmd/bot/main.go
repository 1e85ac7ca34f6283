package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xaenox/rc-intel-bot/internal/bot"
	"github.com/xaenox/rc-intel-bot/internal/cache"
	"github.com/xaenox/rc-intel-bot/internal/classifier"
	"github.com/xaenox/rc-intel-bot/internal/conversation"
	"github.com/xaenox/rc-intel-bot/internal/lookup"
	"github.com/xaenox/rc-intel-bot/internal/metrics"
	"github.com/xaenox/rc-intel-bot/internal/quota"
	"github.com/xaenox/rc-intel-bot/internal/storage"
	"github.com/xaenox/rc-intel-bot/internal/upstream"
	"github.com/xaenox/rc-intel-bot/pkg/config"
)

func newLogger(development bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		zap.NewExample().Fatal("Failed to load config", zap.Error(err), zap.String("path", configPath))
	}

	logger := newLogger(cfg.Log.Development)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage", zap.String("host", cfg.Database.Host), zap.String("dbname", cfg.Database.DBName))
		dbConfig := storage.DatabaseConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		}
		store, err = storage.NewPostgresStorage(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	var cacheStore storage.CacheStorage = store
	if cfg.Redis.Enabled {
		redisStore, err := storage.OpenRedisCacheStorage(ctx, storage.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Retention: cfg.Redis.Retention,
		})
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}
		defer redisStore.Close()
		logger.Info("Using Redis report cache", zap.String("addr", cfg.Redis.Addr))
		cacheStore = redisStore
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	policy := upstream.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.Lookup.MaxAttempts
	policy.Backoff = upstream.ExponentialBackoff(cfg.Lookup.BackoffBase)
	fetcher, err := upstream.NewFetcher(upstream.Config{
		Endpoint:      cfg.Lookup.Endpoint,
		Timeout:       cfg.Lookup.Timeout,
		RatePerSecond: cfg.Lookup.RatePerSecond,
		RateBurst:     cfg.Lookup.RateBurst,
	}, policy, logger, m)
	if err != nil {
		logger.Fatal("Failed to create fetcher", zap.Error(err))
	}

	reports := cache.New(cacheStore, cfg.Lookup.CacheTTL)
	lookups := lookup.NewService(reports, fetcher, logger, m)
	ledger := quota.NewLedger(store, cfg.Lookup.DailyLimit)

	var clf classifier.Classifier = classifier.NewKeywordClassifier()
	if cfg.OpenAI.APIKey != "" {
		logger.Info("Using GPT feedback classifier", zap.String("model", cfg.OpenAI.Model))
		clf = classifier.NewGPTClassifier(classifier.GPTConfig{
			APIKey:      cfg.OpenAI.APIKey,
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       cfg.OpenAI.Model,
			MaxTokens:   cfg.OpenAI.MaxTokens,
			Temperature: cfg.OpenAI.Temperature,
		}, clf, logger)
	}

	api, err := bot.NewAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	controller, err := conversation.NewController(conversation.Deps{
		Ledger:     ledger,
		Lookups:    lookups,
		Store:      store,
		Cache:      reports,
		Classifier: clf,
		Outbox:     bot.NewOutbox(api, logger),
		Logger:     logger,
		Metrics:    m,
	}, conversation.Options{
		BatchMaxSize:   cfg.Batch.MaxSize,
		BatchItemDelay: cfg.Batch.ItemDelay,
		AdminIDs:       cfg.Admin.UserIDs,
	})
	if err != nil {
		logger.Fatal("Failed to create controller", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving metrics", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	b := bot.New(api, controller, cfg.Telegram.PollTimeout, logger)
	g.Go(func() error {
		defer stop()
		return b.Start(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
	logger.Info("Bot stopped")
}
