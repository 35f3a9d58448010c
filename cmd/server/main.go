package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/filegrab/internal/api"
	"github.com/iconidentify/filegrab/internal/api/handler"
	"github.com/iconidentify/filegrab/internal/config"
	"github.com/iconidentify/filegrab/internal/convert"
	"github.com/iconidentify/filegrab/internal/service"
	"github.com/iconidentify/filegrab/internal/source"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *showVersion {
		fmt.Printf("filegrab-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting filegrab server",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Resolvers are tried in priority order; the direct resolver takes
	// whatever the platform resolvers decline.
	registry := source.NewRegistry()
	if cfg.Video.Enabled {
		registry.MustAdd(source.NewVideoPlatformResolver(cfg.Video, cfg.Fetch, nil, logger), source.PriorityHighest)
	}
	registry.MustAdd(source.NewDirectResolver(cfg.Fetch, logger), source.PriorityLowest)

	converter, err := convert.New(cfg.Convert)
	if err != nil {
		logger.Error("failed to initialize converter", "mode", cfg.Convert.Mode, "error", err)
		os.Exit(1)
	}

	files := service.NewFileService(registry, converter, logger)

	fileHandler := handler.NewFileHandler(files, cfg.Fetch.ChunkSize, logger)
	healthHandler := handler.NewHealthHandler(files, fileHandler, converter.Name())

	router := api.NewRouter(fileHandler, healthHandler, cfg.Fetch.ProbeTimeout+cfg.Video.Timeout)

	logger.Info("resolvers registered",
		"resolvers", files.Resolvers(),
		"converter", converter.Name(),
	)

	// WriteTimeout is left to config; long transfers need a generous value.
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "active_transfers", fileHandler.ActiveTransfers())

		// In-flight transfers get until the shutdown timeout to finish.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
