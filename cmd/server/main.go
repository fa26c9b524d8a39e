package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	apihttp "launcherd/internal/api/http"
	"launcherd/internal/app"
	"launcherd/internal/backend/redisbus"
	"launcherd/internal/backend/simulated"
	"launcherd/internal/domain"
	"launcherd/internal/domain/ports"
	"launcherd/internal/i18n"
	"launcherd/internal/metrics"
	"launcherd/internal/orchestrator"
	mongorepo "launcherd/internal/repository/mongo"
	"launcherd/internal/storage/memory"
	"launcherd/internal/telemetry"
	"launcherd/internal/usecase"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

const serviceName = "launcherd"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	instanceID := uuid.NewString()

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, instanceID, logger)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("instanceId", instanceID),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("backendMode", cfg.BackendMode),
		slog.Bool("journal", cfg.JournalEnabled),
		slog.Bool("mongo", cfg.MongoURI != ""),
		slog.Duration("dispatchTimeout", cfg.DispatchTimeout),
		slog.Duration("launchSignalTimeout", cfg.LaunchSignalTimeout),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, events, closeBackend, err := newBackend(rootCtx, cfg, instanceID, logger)
	if err != nil {
		logger.Error("backend init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeBackend()

	journal, closeJournal, err := newJournal(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("journal init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeJournal()

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithDispatchTimeout(cfg.DispatchTimeout),
		orchestrator.WithLaunchTimeout(cfg.LaunchSignalTimeout),
	}
	var recorder *usecase.RecordJournal
	if journal != nil {
		recorder = usecase.NewRecordJournal(journal, instanceID, logger, 0)
		orchOpts = append(orchOpts, orchestrator.WithTransitionHook(recorder.Record))
	}
	orch := orchestrator.New(backend, orchOpts...)

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.HTTPRateLimitRPS, cfg.HTTPRateLimitBurst),
	}
	if catalog, err := i18n.New(cfg.DefaultLocale); err != nil {
		logger.Warn("localisation disabled", slog.String("error", err.Error()))
	} else {
		serverOpts = append(serverOpts, apihttp.WithLocalizer(catalog))
	}
	if journal != nil {
		serverOpts = append(serverOpts, apihttp.WithDiagnostics(usecase.ListDiagnostics{Journal: journal}))
	}
	handler := apihttp.NewServer(orch, serverOpts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		usecase.ConsumeEvents{
			Source:  events,
			Handler: func(ev domain.Event) { orch.HandleEvent(ev) },
			Logger:  logger,
		}.Run(gctx)
		return nil
	})
	if recorder != nil {
		g.Go(func() error {
			recorder.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		usecase.StreamSession{
			Source:       orch,
			Sink:         handler,
			MaxPerSecond: cfg.BroadcastMaxPerSecond,
		}.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("server started", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		handler.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		closeJournal()
		closeBackend()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newBackend returns the command side and the event side of the configured
// backend together with a cleanup func.
func newBackend(ctx context.Context, cfg app.Config, instanceID string, logger *slog.Logger) (ports.Backend, ports.EventSource, func(), error) {
	switch cfg.BackendMode {
	case app.BackendSimulated:
		opts := []simulated.Option{
			simulated.WithLogger(logger),
			simulated.WithStepInterval(cfg.SimulatedStepInterval),
		}
		switch cfg.SimulatedStartup {
		case "ready":
			opts = append(opts, simulated.WithStartupReady())
		case "update":
			url := cfg.SimulatedUpdateURL
			if url == "" {
				url = "https://updates.invalid/launcher/latest"
			}
			opts = append(opts, simulated.WithStartupUpdate(domain.UpdateAsset{URL: url, Version: "latest"}))
		}
		if cfg.SimulatedFailAt != "" {
			opts = append(opts, simulated.WithFailureAt(domain.ParseStage(cfg.SimulatedFailAt)))
		}
		sim := simulated.New(opts...)
		logger.Info("using simulated backend")
		return sim, sim, func() {}, nil

	case app.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// The subscriber keeps reconnecting; commands fail until Redis is up.
			logger.Warn("redis ping failed", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		}
		publisher := redisbus.NewPublisher(client, cfg.BackendCommandChannel,
			redisbus.WithInstanceID(instanceID),
			redisbus.WithPublisherLogger(logger),
		)
		subscriber := redisbus.NewSubscriber(client, cfg.BackendEventChannel, logger)
		closeFn := func() {
			if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
				logger.Warn("redis close error", slog.String("error", err.Error()))
			}
		}
		return publisher, subscriber, closeFn, nil

	default:
		return nil, nil, nil, errors.New("unknown BACKEND_MODE " + cfg.BackendMode)
	}
}

// newJournal returns nil when the journal is disabled.
func newJournal(ctx context.Context, cfg app.Config, logger *slog.Logger) (ports.Journal, func(), error) {
	if !cfg.JournalEnabled {
		return nil, func() {}, nil
	}
	if cfg.MongoURI == "" {
		logger.Info("using in-memory journal", slog.Int("capacity", cfg.JournalMemoryCapacity))
		return memory.NewJournal(cfg.JournalMemoryCapacity), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	repo := mongorepo.NewJournalRepository(client, cfg.MongoDatabase, cfg.MongoJournalCollection)
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		logger.Warn("journal index creation failed", slog.String("error", err.Error()))
	}
	return repo, disconnectOnce(client, logger), nil
}

func disconnectOnce(client *mongo.Client, logger *slog.Logger) func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
