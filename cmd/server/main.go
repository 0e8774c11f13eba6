package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"

	"tradedeck/internal/api"
	"tradedeck/internal/auth"
	"tradedeck/internal/chat"
	"tradedeck/internal/config"
	"tradedeck/internal/kafka"
	"tradedeck/internal/market"
	"tradedeck/internal/models"
	"tradedeck/internal/realtime"
	"tradedeck/internal/redis"
	"tradedeck/internal/store"
	"tradedeck/internal/watch"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "dashboard").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Connect to the remote store
	db, err := store.New(cfg.Store.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	if err := runMigrations(cfg.Store.DatabaseURL, log); err != nil {
		log.Fatal().Err(err).Msg("failed to run database migrations")
	}

	// Redis holds sessions and the market snapshot cache. Without it sessions
	// fall back to process memory.
	var sessions auth.SessionCache
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory sessions")
		redisClient = nil
		sessions = auth.NewMemorySessionCache()
	} else {
		defer redisClient.Close()
		sessions = redisClient
		log.Info().Msg("connected to Redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Change feed: local writes are published to Kafka and come back through
	// the consumer, so all instances observe the same stream.
	feed := store.NewChangeFeed(log)

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ChangesTopic, log)
	defer producer.Close()

	consumer := kafka.NewChangesConsumer(cfg.Kafka.Brokers, cfg.Kafka.ChangesTopic, cfg.Kafka.ConsumerGroup, feed, log)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("changes consumer stopped")
		}
	}()

	authSvc := auth.NewService(db, sessions, log)

	// Provisions the profile row and default portfolio on every sign-up
	authWatcher := watch.NewAuthWatcher(authSvc, db, log)
	authWatcher.Start(ctx, "")
	defer authWatcher.Stop()

	manager := watch.NewManager(ctx, db, feed, producer, log)
	defer manager.Close()

	broker := realtime.NewBroker(log)
	go broker.Run(ctx)

	// Every row change reaches connected dashboards as a refetch hint
	feed.Subscribe("", nil, func(ev store.ChangeEvent) {
		broker.Broadcast("change", ev)
	})

	// Ticks reach SSE clients through Redis pub/sub when it is available, so
	// dashboards on one instance see ticks generated on another. Without
	// Redis each instance broadcasts its own ticks directly.
	simulator := market.NewSimulator(cfg.Market.TickInterval, market.DefaultTickers(), log)
	var marketCache api.MarketCache
	if redisClient != nil {
		marketCache = redisClient
		simulator.OnTick(func(data []models.MarketData) {
			tickCtx, tickCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer tickCancel()
			if err := redisClient.PublishMarketTicks(tickCtx, data); err != nil {
				log.Warn().Err(err).Msg("failed to publish market ticks")
				broker.Broadcast("market_tick", data)
			}
			if err := redisClient.SetMarketSnapshot(tickCtx, data, 30*time.Second); err != nil {
				log.Warn().Err(err).Msg("failed to cache market snapshot")
			}
		})
		go func() {
			err := redisClient.SubscribeMarketTicks(ctx, func(data []models.MarketData) {
				broker.Broadcast("market_tick", data)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("market tick subscription stopped")
			}
		}()
	} else {
		simulator.OnTick(func(data []models.MarketData) {
			broker.Broadcast("market_tick", data)
		})
	}
	simulator.Start(ctx)
	defer simulator.Stop()

	assistant := chat.NewAssistant(chat.DefaultResponseDelay)

	handler := api.NewHandler(authSvc, manager, simulator, marketCache, assistant, broker, cfg.Store.APIPublicKey, log)
	router := api.SetupRoutes(handler)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("error closing changes consumer")
	}
	log.Info().Msg("server stopped")
}

func runMigrations(databaseURL string, log zerolog.Logger) error {
	m, err := migrate.New("file://./db/migrations", databaseURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("database schema is up to date")
			return nil
		}
		return err
	}
	log.Info().Msg("database migrations applied")
	return nil
}
