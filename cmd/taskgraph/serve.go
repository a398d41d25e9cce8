package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trello-project/microservices/taskgraph-service/cache"
	"trello-project/microservices/taskgraph-service/config"
	"trello-project/microservices/taskgraph-service/handlers"
	"trello-project/microservices/taskgraph-service/logging"
	"trello-project/microservices/taskgraph-service/notifications"
	"trello-project/microservices/taskgraph-service/services"
	"trello-project/microservices/taskgraph-service/store"
	"trello-project/microservices/taskgraph-service/store/memstore"
	"trello-project/microservices/taskgraph-service/store/mongostore"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			logging.InitLogger(cfg.LogFile, cfg.LogLevel)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logging.Logger.Info("Event ID: SERVICE_START, Description: Starting taskgraph service...")

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	backend, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	var notifier notifications.Notifier = notifications.Nop{}
	if cfg.CassandraHost != "" {
		cn, err := notifications.NewCassandraNotifier(cfg.CassandraHost, cfg.CassKeyspace)
		if err != nil {
			return fmt.Errorf("failed to connect to Cassandra: %w", err)
		}
		defer cn.Close()
		notifier = cn
	} else {
		logging.Logger.Warn("Event ID: NOTIFICATIONS_DISABLED, Description: CASS_DB is not set, notifications are discarded")
	}

	gateway := cache.NewGateway(backend, cfg.CacheTTL)
	logging.Logger.Infof("Event ID: CACHE_READY, Description: Using %s cache with TTL %s", cfg.CacheBackend, gateway.TTL())

	svc := services.New(services.Deps{
		Store:    st,
		Cache:    gateway,
		Notifier: notifier,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(svc, cfg.CORSOrigin),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger.Infof("Event ID: SERVER_START_INFO, Description: Server running on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Logger.Errorf("Event ID: SERVER_FATAL_ERROR, Description: Server failed to start: %v", err)
		}
		return err
	case <-ctx.Done():
	}

	logging.Logger.Info("Event ID: SERVER_SHUTDOWN, Description: Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, func(), error) {
	if cfg.StoreBackend == config.StoreMemory {
		logging.Logger.Warn("Event ID: STORE_IN_MEMORY, Description: Using the in-memory store, data is lost on exit")
		return memstore.New(), func() {}, nil
	}
	client, err := mongostore.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	if err := mongostore.EnsureIndexes(ctx, client, cfg.MongoDBName); err != nil {
		client.Disconnect(context.Background())
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logging.Logger.Warnf("Event ID: DB_DISCONNECT_FAILED, Description: %v", err)
		}
	}
	return mongostore.New(client, cfg.MongoDBName), closeFn, nil
}

func openCache(ctx context.Context, cfg *config.Config) (cache.Backend, func(), error) {
	if cfg.CacheBackend == config.CacheMemory {
		return cache.NewMemoryBackend(10 * time.Minute), func() {}, nil
	}
	client, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logging.Logger.Warnf("Event ID: CACHE_CLOSE_FAILED, Description: %v", err)
		}
	}
	return cache.NewRedisBackend(client), closeFn, nil
}
