package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"crmtriage/internal/config"
	"crmtriage/internal/logging"
	"crmtriage/internal/queue"
	"crmtriage/internal/repository"
	"crmtriage/internal/worker"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	log := logging.Component("worker")

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("connected to database")

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer conn.Close()

	writer := worker.NewSnapshotWriter(repository.NewMessageRepository(db), logging.Component("snapshots"))

	consumer, err := queue.NewConsumer(conn, cfg.RabbitMQ.EventsQueue, cfg.RabbitMQ.Prefetch, writer.Handle)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create consumer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start consumer")
	}
	log.Info().Str("queue", cfg.RabbitMQ.EventsQueue).Msg("worker started")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-consumer.Done():
			return errors.New("consumer stopped unexpectedly")
		}
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("worker failed")
	}

	log.Info().Msg("shutting down")
	if err := consumer.Stop(); err != nil {
		log.Error().Err(err).Msg("error stopping consumer")
	}
	log.Info().Msg("worker stopped")
}
