package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rteja-dev/trivia-bot/internal/bot"
	"github.com/rteja-dev/trivia-bot/internal/config"
	"github.com/rteja-dev/trivia-bot/internal/gateway"
	"github.com/rteja-dev/trivia-bot/internal/logging"
	"github.com/rteja-dev/trivia-bot/internal/metrics"
	"github.com/rteja-dev/trivia-bot/internal/server"
	"github.com/rteja-dev/trivia-bot/internal/trivia"
)

// Application aggregates the bot's shared infrastructure.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	redis      *redis.Client
	gateway    *gateway.Client
	manager    *trivia.Manager
	dispatcher *bot.Dispatcher
	http       *http.Server
}

// New bootstraps config, logger, the chat gateway connection and the session
// engine.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting bot bootstrap")

	var redisClient *redis.Client
	var registry trivia.Registry
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		registry = trivia.NewRedisRegistry(redisClient, logger)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("using shared session registry")
	} else {
		registry = trivia.NewMemoryRegistry()
	}

	gw, err := gateway.Dial(ctx, cfg.Gateway.URL, cfg.Gateway.BotID, logger)
	if err != nil {
		return nil, fmt.Errorf("connect gateway: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	sessionMetrics := metrics.NewSessionMetrics(promRegistry)

	fetcher := trivia.NewOpenTDBClient(cfg.Trivia.BaseURL, nil)
	presenter := gateway.NewPresenter(gw)

	manager := trivia.NewManager(
		registry,
		fetcher,
		gw,
		presenter,
		sessionMetrics,
		trivia.ManagerOptions{
			DefaultCount: cfg.Trivia.DefaultCount,
			MaxCount:     cfg.Trivia.MaxCount,
			PollInterval: cfg.Trivia.PollInterval,
			FetchTimeout: cfg.Trivia.FetchTimeout,
			SelfID:       cfg.Gateway.BotID,
		},
		logger,
	)

	return &Application{
		cfg:        cfg,
		logger:     logger,
		redis:      redisClient,
		gateway:    gw,
		manager:    manager,
		dispatcher: bot.NewDispatcher(manager, gw, logger),
		http:       server.NewHTTPServer(cfg.MetricsAddr, promRegistry),
	}, nil
}

// Run starts the dispatcher and metrics server, then waits for termination.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		a.logger.Info().Str("addr", a.http.Addr).Msg("metrics server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()
	go func() {
		if err := a.dispatcher.Run(dispatchCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("dispatcher stopped: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	// Active players get their heads-up before anything is torn down.
	a.manager.BroadcastShutdownWarning(context.Background())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("metrics server shutdown error")
	}

	cancelDispatch()
	a.manager.CancelAll(shutdownCtx)

	if err := a.gateway.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("gateway close error")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
