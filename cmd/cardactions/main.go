// Command cardactions serves the card-actions lookup API and publishes
// domain events to the configured bus.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nexacard/cardactions/cards"
	"github.com/nexacard/cardactions/config"
	"github.com/nexacard/cardactions/eventbus"
	"github.com/nexacard/cardactions/httpapi"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	bus, cleanup, err := eventbus.New(cfg.EventBus, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cards.NewSampleStore(cfg.Cards.Users, cfg.Cards.CardsPerType)
	logger.Info("sample cards generated", "users", cfg.Cards.Users, "cards", store.Len())

	svc := cards.NewService(store, bus, logger)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.New(svc, bus, logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
