/*
Package coordinator wires together every board component and holds the
handles a running process needs to serve traffic and shut down cleanly:
construct the stack once, start its background loops, and stop them in
reverse order on shutdown.
*/
package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/collabboard/coordinator/pkg/api"
	"github.com/collabboard/coordinator/pkg/cache"
	"github.com/collabboard/coordinator/pkg/conflict"
	"github.com/collabboard/coordinator/pkg/durable"
	"github.com/collabboard/coordinator/pkg/events"
	"github.com/collabboard/coordinator/pkg/flush"
	"github.com/collabboard/coordinator/pkg/lock"
	"github.com/collabboard/coordinator/pkg/log"
	"github.com/collabboard/coordinator/pkg/metrics"
	"github.com/collabboard/coordinator/pkg/presence"
	"github.com/collabboard/coordinator/pkg/router"
	"github.com/collabboard/coordinator/pkg/task"
)

// DrainTimeout bounds how long Shutdown waits for the flush queue to
// empty before closing the durable store regardless.
const DrainTimeout = 10 * time.Second

// Config holds the environment-derived settings a Coordinator needs.
// Field names mirror the BOARD_* environment variables cmd/board reads.
type Config struct {
	ListenAddr string
	DataDir    string
	CacheAddr  string // empty selects the in-process cache
	CacheToken string
	CORSOrigin string
	Version    string
}

// Coordinator owns the full component graph for one board: cache,
// durable store, flush queue, task service, conflict resolver,
// presence registry, event broker, router, and HTTP/websocket server.
type Coordinator struct {
	cfg Config

	store     *durable.BoltStore
	cacheImpl cache.Cache
	queue     *flush.Queue
	tasks     *task.Service
	resolver  *conflict.Resolver
	presences *presence.Registry
	broker    *events.Broker
	rt        *router.Router
	server    *api.Server
	collector *metrics.Collector

	logger zerolog.Logger
}

// New constructs the full component graph but starts nothing.
func New(cfg Config) (*Coordinator, error) {
	logger := log.WithComponent("coordinator")

	store, err := durable.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open durable store: %w", err)
	}

	var cacheImpl cache.Cache
	if cfg.CacheAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.CacheAddr,
			Password: cfg.CacheToken,
		})
		cacheImpl = cache.NewRedisCache(client, "board")
		logger.Info().Str("addr", cfg.CacheAddr).Msg("using external redis cache")
	} else {
		cacheImpl = cache.NewMemCache()
		logger.Info().Msg("using in-process cache")
	}

	if err := hydrateCache(context.Background(), store, cacheImpl); err != nil {
		return nil, fmt.Errorf("hydrate cache from durable store: %w", err)
	}

	queue := flush.NewQueue(store, cacheImpl)
	tasks := task.NewService(cacheImpl, queue)
	locks := lock.NewManager()
	resolver := conflict.NewResolver(locks, store)
	presences := presence.NewRegistry()
	broker := events.NewBroker()
	rt := router.New(tasks, resolver, presences, broker)
	server := api.NewServer(rt, broker, tasks, api.Config{AllowedOrigin: cfg.CORSOrigin})
	collector := metrics.NewCollector(cacheImpl, presences, queue)

	if cfg.Version != "" {
		metrics.SetVersion(cfg.Version)
	}

	return &Coordinator{
		cfg:       cfg,
		store:     store,
		cacheImpl: cacheImpl,
		queue:     queue,
		tasks:     tasks,
		resolver:  resolver,
		presences: presences,
		broker:    broker,
		rt:        rt,
		server:    server,
		collector: collector,
		logger:    logger,
	}, nil
}

// hydrateCache loads every durably-stored task into cacheImpl before the
// coordinator starts serving, so a process restart doesn't make existing
// board state invisible until a client happens to re-touch it.
func hydrateCache(ctx context.Context, store durable.Store, cacheImpl cache.Cache) error {
	tasks, err := store.ListTasks()
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := cacheImpl.Put(ctx, t); err != nil {
			return fmt.Errorf("put task %s: %w", t.ID, err)
		}
	}
	return nil
}

// Handler returns the HTTP handler serving the websocket and read-only
// REST surface, for embedding in a test server or a custom listener.
func (c *Coordinator) Handler() http.Handler {
	return c.server.Handler()
}

// Start begins the event broker, flush queue, and metrics collector,
// and serves the HTTP surface in the background. It returns
// immediately; errors from the listener arrive on the returned channel.
func (c *Coordinator) Start(ctx context.Context) <-chan error {
	c.broker.Start()
	c.queue.Start(ctx)
	c.collector.Start()

	metrics.RegisterComponent("cache", true, "")
	metrics.RegisterComponent("durable_store", true, "")
	metrics.RegisterComponent("transport", false, "starting")

	errCh := make(chan error, 1)
	go func() {
		metrics.RegisterComponent("transport", true, "listening")
		c.logger.Info().Str("addr", c.cfg.ListenAddr).Msg("serving board")
		if err := c.server.Start(c.cfg.ListenAddr); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	return errCh
}

// Shutdown stops the HTTP surface from accepting new work, drains any
// pending durability writes within DrainTimeout, and closes the
// durable store, in that order.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	metrics.RegisterComponent("transport", false, "shutting down")

	if err := c.server.Shutdown(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("http server shutdown")
	}

	c.collector.Stop()

	drainCtx, cancel := context.WithTimeout(ctx, DrainTimeout)
	defer cancel()
	c.queue.Drain(drainCtx)
	c.queue.Stop()

	c.broker.Stop()

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("close durable store: %w", err)
	}

	c.logger.Info().Msg("shutdown complete")
	return nil
}
