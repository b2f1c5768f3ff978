package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"crmtriage/internal/config"
	"crmtriage/internal/events"
	"crmtriage/internal/handler"
	"crmtriage/internal/logging"
	"crmtriage/internal/metrics"
	"crmtriage/internal/models"
	"crmtriage/internal/queue"
	"crmtriage/internal/repository"
	"crmtriage/internal/service"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
	log := logging.Component("api")

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Msg("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tagRepo := repository.NewTagRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	registry, err := loadTags(ctx, tagRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load tags")
	}

	recorder := metrics.NewRecorder()
	bus := events.NewBus()

	// The queue is optional: without it boards still work, changes just
	// are not persisted by the worker.
	var bridge *events.QueueBridge
	conn, err := queue.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Warn().Err(err).Msg("RabbitMQ unavailable, change events will not be persisted")
	} else {
		defer conn.Close()
		publisher, err := queue.NewPublisher(conn, cfg.RabbitMQ.EventsQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create publisher")
		}
		defer publisher.Close()

		bridge = events.NewQueueBridge(publisher, recorder, cfg.Triage.EventBuffer, logging.Component("bridge"))
		if err := bus.Subscribe("queue-bridge", events.Filter{}, bridge.Handle); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe queue bridge")
		}
	}

	engine := service.NewFilterEngine(time.Now, cfg.Triage.Location)
	directory := service.NewStaticDirectory(nil, nil)
	customers, err := service.RefreshDirectory(ctx, directory, customerRepo, campaignRepo)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load directory")
	}

	book := service.NewCustomerBook(registry, engine, customerRepo, logging.Component("customers"))
	if err := book.Load(customers); err != nil {
		log.Fatal().Err(err).Msg("failed to load customers")
	}

	stores := make([]*service.MessageStore, 0, len(cfg.Triage.Boards))
	for _, board := range cfg.Triage.Boards {
		store, err := loadBoard(ctx, cfg, board, registry, messageRepo,
			service.WithNotifier(bus),
			service.WithObserver(recorder),
			service.WithDirectory(directory),
			service.WithFilterEngine(engine),
			service.WithLogger(logging.WithBoard(logging.Component("store"), board)),
		)
		if err != nil {
			log.Fatal().Err(err).Str("board", board).Msg("failed to load board")
		}
		stores = append(stores, store)
		log.Info().Str("board", board).Int("messages", store.Len()).Msg("board loaded")
	}

	router := handler.NewRouter(handler.RouterConfig{
		Boards:    handler.NewBoardHandler(stores, book, service.NewTemplateService()),
		Customers: handler.NewCustomerHandler(book),
		Tags:      handler.NewTagHandler(registry, tagRepo),
		Health:    handler.NewHealthHandler(service.NewHealthService(db, cfg.GetRabbitMQURL(), version, stores...)),
		Metrics:   recorder.Handler(),
		Observer:  recorder,
		Logger:    logging.Component("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Str("version", version).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if bridge != nil {
		// Run outlives gctx so events from requests still draining are
		// flushed; it is stopped with Close after the server shuts down.
		g.Go(func() error {
			return bridge.Run(context.Background())
		})
	}

	g.Go(func() error {
		refreshDirectory(gctx, cfg.Triage.DirectoryRefresh, directory, book, customerRepo, campaignRepo, log)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if bridge != nil {
			bridge.Close()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server stopped")
}

func loadTags(ctx context.Context, repo repository.TagRepository) (*service.TagRegistry, error) {
	tags, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]models.Tag, 0, len(tags))
	for _, t := range tags {
		list = append(list, *t)
	}
	return service.NewTagRegistry(list...)
}

func loadBoard(ctx context.Context, cfg *config.Config, board string, registry *service.TagRegistry, repo repository.MessageRepository, opts ...service.StoreOption) (*service.MessageStore, error) {
	pipeline, err := service.PipelineFor(board, cfg.Triage.Pipelines[board])
	if err != nil {
		return nil, err
	}
	store := service.NewMessageStore(board, pipeline, registry, opts...)

	messages, err := repo.ListByBoard(ctx, board)
	if err != nil {
		return nil, err
	}
	if err := store.Load(messages); err != nil {
		return nil, err
	}
	return store, nil
}

// refreshDirectory reloads customer and campaign lookups until ctx is done
func refreshDirectory(ctx context.Context, every time.Duration, directory *service.StaticDirectory, book *service.CustomerBook,
	customers service.CustomerLister, campaigns service.CampaignLister, log zerolog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loaded, err := service.RefreshDirectory(ctx, directory, customers, campaigns)
			if err != nil {
				log.Error().Err(err).Msg("directory refresh failed")
				continue
			}
			if err := book.Load(loaded); err != nil {
				log.Error().Err(err).Msg("customer reload failed")
				continue
			}
			log.Debug().Int("customers", len(loaded)).Msg("directory refreshed")
		}
	}
}
