package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/italolelis/torrent_finder/internal/bot"
	"github.com/italolelis/torrent_finder/internal/config"
	"github.com/italolelis/torrent_finder/internal/dispatch"
	"github.com/italolelis/torrent_finder/internal/dispatch/transmission"
	"github.com/italolelis/torrent_finder/internal/http/rest"
	"github.com/italolelis/torrent_finder/internal/logctx"
	"github.com/italolelis/torrent_finder/internal/search/torznab"
	"github.com/italolelis/torrent_finder/internal/telemetry"
	"github.com/italolelis/torrent_finder/internal/track"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("torrent finder starting...", "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(telemetry.Config{Enabled: true, ServiceName: "torrent_finder"})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	// =========================================================================
	// Start Feed Client
	feed := torznab.NewClient(
		cfg.Torznab.URL,
		cfg.Torznab.APIKey,
		cfg.Torznab.RequestTimeout,
		cfg.Torznab.RequestDelay,
		cfg.Torznab.Debug,
	)

	// =========================================================================
	// Start Dispatch Backend
	backend, err := buildDispatchBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to build dispatch backend: %w", err)
	}

	// =========================================================================
	// Start Chat Bot
	tracker := track.NewTracker()

	tg, err := bot.NewTelegramBot(cfg.Telegram.Token, cfg.Telegram.AllowedChatID)
	if err != nil {
		return fmt.Errorf("failed to setup telegram bot: %w", err)
	}

	engine := bot.NewEngine(
		bot.NewStore(),
		feed,
		backend,
		tracker,
		tg,
		bot.Options{
			DownloadDirs: cfg.DownloadDirs,
			PageSize:     cfg.Telegram.PageSize,
			StartPaused:  cfg.Transmission.StartPaused,
			Debug:        cfg.Torznab.Debug,
		},
		tel,
	)
	tg.SetHandler(engine)

	// =========================================================================
	// Start Completion Watcher
	watcher := track.NewWatcher(tracker, backend, tg, cfg.PollInterval, tel)

	// =========================================================================
	// Start API Service
	server := setupServer(ctx, backend, tracker, tel, cfg)

	logger.Info("waiting for chat commands...",
		"transport", cfg.Transmission.Transport,
		"poll_interval", cfg.PollInterval.String(),
		"bind_address", cfg.Web.BindAddress,
	)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return tg.Run(gctx)
	})

	group.Go(func() error {
		return watcher.Run(gctx)
	})

	group.Go(func() error {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-gctx.Done()
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	return group.Wait()
}

// This is an abstract factory for the dispatch backend.
func buildDispatchBackend(cfg *config.Config) (dispatch.TransferClient, error) {
	switch cfg.Transmission.Transport {
	case "rpc":
		return transmission.NewRPCClient(
			cfg.Transmission.Host,
			cfg.Transmission.Port,
			cfg.Transmission.Username,
			cfg.Transmission.Password,
		), nil
	case "cli":
		return transmission.NewRemoteClient(
			cfg.Transmission.Host,
			cfg.Transmission.Port,
			cfg.Transmission.Username,
			cfg.Transmission.Password,
		), nil
	}

	return nil, fmt.Errorf("invalid dispatch transport: %s", cfg.Transmission.Transport)
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(
	ctx context.Context,
	backend dispatch.TransferClient,
	tracker *track.Tracker,
	tel *telemetry.Telemetry,
	cfg *config.Config,
) *http.Server {
	statusHandler := rest.NewStatusHandler(backend, tracker)

	r := chi.NewRouter()
	r.Mount("/", statusHandler.Routes())
	r.Handle("/metrics", tel.Handler())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
