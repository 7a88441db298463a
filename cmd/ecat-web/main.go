package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go-ecat/internal/config"
	"github.com/anatolykoptev/go-ecat/internal/web"
)

var version = "dev"

func main() {
	cfgFile := pflag.StringP("config", "c", "", "config file (default: ./ecat.yaml or ~/.config/ecat/ecat.yaml)")
	pflag.Parse()

	v := viper.New()
	if err := config.New(v, *cfgFile); err != nil {
		log.Fatal("config load failed: ", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		log.Fatal("config load failed: ", err)
	}

	logger, err := cfg.Logging.Logger(os.Stderr)
	if err != nil {
		log.Fatal("logger setup failed: ", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("ecat-web stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("ecat-web stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	h, err := web.NewHandler(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      web.Server(h, logger.With("system", "http")),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("ecat-web starting", "version", version, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
