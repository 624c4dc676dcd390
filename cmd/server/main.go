package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clientlookup/internal/cache"
	"clientlookup/internal/config"
	"clientlookup/internal/db"
	"clientlookup/internal/jobs"
	"clientlookup/internal/metrics"
	"clientlookup/internal/server"
	"clientlookup/internal/source"
	"clientlookup/internal/validation"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	if !cfg.IsDev() {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}

	schema, err := config.LoadSchema(cfg.SchemaFile)
	if err != nil {
		log.Fatalf("Failed to load dataset schema: %v", err)
	}

	src, closeSrc, err := newSource(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s source: %v", cfg.SourceKind, err)
	}
	defer closeSrc()

	mgr := cache.NewManager(src, cache.Options{
		Ref:              cfg.SourceRef,
		TTL:              cfg.CacheTTL,
		Parse:            schema.ParseOptions(cfg),
		SuggestLimit:     cfg.SuggestLimit,
		SuggestMinLength: cfg.SuggestMinLength,
		SuggestFields:    schema.SuggestColumns(),
		SuggestCacheSize: cfg.SuggestCacheSize,
		OnLoad:           metrics.ObserveLoad,
	})
	metrics.Init(mgr)

	if cfg.WarmOnStart {
		if _, err := mgr.Warm(ctx, ""); err != nil {
			// Queries retry the load; readiness stays down until one succeeds.
			log.Printf("Warning: initial cache warm failed: %v", err)
		}
	}

	if cfg.WarmInterval > 0 {
		go jobs.NewWarmer(mgr, "", cfg.WarmInterval).Start(ctx)
	}

	if cfg.WatchSource {
		if fileSrc, ok := src.(*source.File); ok {
			watcher, err := jobs.NewWatcher(mgr, fileSrc.Path(cfg.SourceRef), "", jobs.DefaultDebounce)
			if err != nil {
				log.Printf("Warning: source watcher disabled: %v", err)
			} else {
				go watcher.Start(ctx)
			}
		} else {
			log.Printf("WATCH_SOURCE ignored for %s source", cfg.SourceKind)
		}
	}

	srv := server.New(cfg)
	srv.RegisterRoutes(mgr, schema)

	// Graceful shutdown
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("Server started on %s (source: %s %s)", cfg.ServerAddr, cfg.SourceKind, cfg.SourceRef)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancel()
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

// newSource builds the dataset source selected by SOURCE_KIND. The returned
// function releases any resources the source holds.
func newSource(ctx context.Context, cfg *config.Config) (source.Source, func(), error) {
	noop := func() {}

	switch cfg.SourceKind {
	case config.SourceFile:
		return source.NewFile(""), noop, nil

	case config.SourceHTTP:
		if valid, msg := validation.ValidateURL(cfg.SourceURL); !valid {
			return nil, noop, fmt.Errorf("SOURCE_URL: %s", msg)
		}
		client := &http.Client{Timeout: 2 * time.Minute}
		return source.NewHTTP(client, cfg.SourceURL), noop, nil

	case config.SourceDrive:
		if cfg.DriveRefreshToken == "" {
			return nil, noop, fmt.Errorf("DRIVE_REFRESH_TOKEN is required")
		}
		client := source.NewDriveClient(ctx, source.DriveCredentials{
			ClientID:     cfg.DriveClientID,
			ClientSecret: cfg.DriveClientSecret,
			RefreshToken: cfg.DriveRefreshToken,
		})
		return source.NewDrive(client, cfg.DriveAPIURL), noop, nil

	case config.SourcePostgres:
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			database.Close()
			return nil, noop, fmt.Errorf("run migrations: %w", err)
		}
		log.Println("Migrations completed successfully")
		return source.NewPostgres(database), database.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown source kind %q", cfg.SourceKind)
}
