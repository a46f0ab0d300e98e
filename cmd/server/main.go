package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"standmap-service/internal/adapters/directions"
	"standmap-service/internal/adapters/geolocation"
	"standmap-service/internal/adapters/kv"
	"standmap-service/internal/adapters/repositories"
	"standmap-service/internal/api"
	"standmap-service/internal/config"
	"standmap-service/internal/domain"
	"standmap-service/internal/platform/db"
	"standmap-service/internal/platform/errreport"
	"standmap-service/internal/platform/obs"
	"standmap-service/internal/ports"
	"standmap-service/internal/services/mapstate"
	"standmap-service/internal/services/routing"
	"standmap-service/internal/services/sessions"
)

// main is the application composition root.
// It wires concrete adapters (storage, ORS, position sources) behind ports
// and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter, err := errreport.New(errreport.Config{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		TracesSampleRate: 0,
	}, logger)
	if err != nil {
		return err
	}
	defer reporter.Flush(2 * time.Second)

	store, catalog, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	stands, err := catalog.ListStands(ctx)
	if err != nil {
		return fmt.Errorf("load stand catalog: %w", err)
	}
	logger.Info("stand catalog loaded", zap.Int("stands", len(stands)))

	provider, err := newDirectionsProvider(cfg.Routing, logger)
	if err != nil {
		return err
	}
	routes := routing.NewService(provider, cfg.Routing.Timeout, logger, reporter)
	defer routes.Close()

	policy, err := mapstate.ParseCarMarkerPolicy(cfg.Map.CarMarkerPolicy)
	if err != nil {
		return err
	}

	watch := mapstate.DefaultWatchOptions
	watch.MaxZoom = cfg.Map.Zoom

	var newWatcher func() ports.PositionWatcher
	if cfg.GPSD.Addr != "" {
		logger.Info("positions from gpsd", zap.String("addr", cfg.GPSD.Addr))
		watch.Timeout = 30 * time.Second
		newWatcher = func() ports.PositionWatcher {
			return geolocation.NewGPSDWatcher(cfg.GPSD.Addr, logger)
		}
	}

	manager := sessions.NewManager(sessions.Config{
		Map: mapstate.Options{
			Center:           cfg.Map.Center,
			Zoom:             cfg.Map.Zoom,
			CarKey:           cfg.Map.CarLocationKey,
			CarMarkerPolicy:  policy,
			ShowStandMarkers: cfg.Map.ShowStandMarkers,
		},
		Watch:       watch,
		IdleTimeout: cfg.Session.IdleTimeout,
	}, routes, store, stands, newWatcher, reporter, logger)
	go manager.Run(ctx)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(manager, catalog, logger)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"Origin",
			"X-Device-ID",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Device-ID",
			"X-Request-ID",
		},
		MaxAge: 86400,
	})

	// No WriteTimeout: the events endpoint keeps its response open.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Closing sessions ends their event streams so Shutdown can finish.
	manager.CloseAll(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore selects the key/value backend for saved car locations and the
// matching stand catalog source.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.KeyValueStore, ports.StandCatalog, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case "postgres":
		conn, err := db.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, noop, err
		}
		catalog, err := sqlCatalog(ctx, conn, repositories.Postgres, cfg, logger)
		if err != nil {
			conn.Close()
			return nil, nil, noop, err
		}
		return kv.NewSQLStore(conn, logger), catalog, func() { conn.Close() }, nil

	case "sqlite":
		conn, err := db.OpenSqlite(ctx, cfg.Store.SqlitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		catalog, err := sqlCatalog(ctx, conn, repositories.Sqlite, cfg, logger)
		if err != nil {
			conn.Close()
			return nil, nil, noop, err
		}
		return kv.NewSqliteStore(conn), catalog, func() { conn.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, noop, fmt.Errorf("connect redis %s: %w", cfg.Store.RedisAddr, err)
		}
		catalog, err := fileCatalog(cfg)
		if err != nil {
			client.Close()
			return nil, nil, noop, err
		}
		return kv.NewRedisStore(client), catalog, func() { client.Close() }, nil

	default:
		logger.Warn("using in-memory store, saved car locations are lost on restart")
		catalog, err := fileCatalog(cfg)
		if err != nil {
			return nil, nil, noop, err
		}
		return kv.NewMemoryStore(), catalog, noop, nil
	}
}

// sqlCatalog initializes both schemas and seeds the stands table when it
// is empty.
func sqlCatalog(ctx context.Context, conn *sql.DB, dialect repositories.Dialect, cfg *config.Config, logger *zap.Logger) (ports.StandCatalog, error) {
	if err := kv.InitSchema(ctx, conn); err != nil {
		return nil, err
	}
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return nil, err
	}

	repo := repositories.NewSQLStandRepository(conn, logger)
	existing, err := repo.ListStands(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return repo, nil
	}

	stands, err := seedStands(cfg)
	if err != nil {
		return nil, err
	}
	if err := repositories.SeedStands(ctx, conn, dialect, stands); err != nil {
		return nil, err
	}
	logger.Info("seeded stand catalog", zap.Int("stands", len(stands)))
	return repo, nil
}

func fileCatalog(cfg *config.Config) (ports.StandCatalog, error) {
	stands, err := seedStands(cfg)
	if err != nil {
		return nil, err
	}
	return repositories.NewStaticStandCatalog(stands), nil
}

func seedStands(cfg *config.Config) ([]domain.Stand, error) {
	if cfg.Map.StandsPath == "" {
		return repositories.DefaultStands(), nil
	}
	return repositories.LoadStandsJSON(cfg.Map.StandsPath)
}

// newDirectionsProvider uses OpenRouteService when a key is configured and
// straight lines otherwise. Either way results are cached.
func newDirectionsProvider(cfg config.RoutingConfig, logger *zap.Logger) (ports.DirectionsProvider, error) {
	if cfg.ORSAPIKey == "" {
		logger.Warn("ORS_API_KEY not set, routes are straight lines")
		return directions.NewCachedProvider(directions.NewMockDirectionsProvider(), cfg.CacheTTL), nil
	}

	ors, err := directions.NewORSDirectionsProvider(cfg.ORSAPIKey, logger,
		directions.WithBaseURL(cfg.ORSBaseURL),
		directions.WithProfile(cfg.Profile),
	)
	if err != nil {
		return nil, err
	}
	return directions.NewCachedProvider(ors, cfg.CacheTTL), nil
}
