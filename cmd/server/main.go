// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/cache"
	"github.com/jason-s-yu/shootingstars/internal/config"
	"github.com/jason-s-yu/shootingstars/internal/database"
	"github.com/jason-s-yu/shootingstars/internal/display"
	"github.com/jason-s-yu/shootingstars/internal/handlers"
	"github.com/jason-s-yu/shootingstars/internal/hub"
	"github.com/jason-s-yu/shootingstars/internal/metrics"
	"github.com/jason-s-yu/shootingstars/internal/ratelimit"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/jason-s-yu/shootingstars/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorf("server exited: %v", err)
		stop()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func openBackend(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.Backend, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		pool, err := database.ConnectDB(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		b, err := database.NewPostgresBackend(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return b, nil
	case config.DriverSQLite:
		return database.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return store.NewMemoryBackend(), nil
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return err
	}
	controllers, err := settings.Controllers()
	if err != nil {
		return err
	}
	presence, err := settings.Presence()
	if err != nil {
		return err
	}
	logger.Infof("Loaded %d controller and %d presence tokens", controllers.Len(), presence.Len())

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}
	st := store.New(backend,
		store.WithLogger(logger),
		store.WithNotifier(metrics.CommitCounter()),
	)
	defer st.Close()

	registry := rpc.NewRegistry()
	svc := display.NewService(st, controllers, presence, cfg.Limits(), logger)
	svc.Register(registry)
	if err := svc.SeedLights(ctx); err != nil {
		return err
	}

	h := hub.New(registry, st, logger)
	st.AddNotifier(h)

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		st.AddNotifier(cache.NewChangePublisher(rdb, cfg.ChangeChannel, logger))
		limiter = ratelimit.NewRedisLimiter(rdb, "shootingstars:rl:", cfg.RateLimitMax, cfg.RateLimitWindow)
		logger.Infof("Publishing changes to Redis channel %s", cfg.ChangeChannel)
	}
	rule := &ratelimit.Rule{Names: display.LightMethods(), Limiter: limiter}

	metricsHandler, err := metrics.Register(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv := handlers.NewSyncServer(registry, h, rule, logger)
	g, gctx := errgroup.WithContext(ctx)
	httpSrv := &http.Server{
		Addr: cfg.Addr(),
		Handler: handlers.NewRouter(srv, logger, handlers.RouterOptions{
			AllowedOrigins: cfg.AllowedOrigins,
			Metrics:        metricsHandler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		// Websocket handlers watch the request context, so stopping closes them.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.Infof("Running on %s", cfg.Addr())
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
