package internal

import (
	"context"

	"github.com/dealmungchi/reviewcrawler/config"
	"github.com/dealmungchi/reviewcrawler/logger"
	"github.com/dealmungchi/reviewcrawler/services/cache"
	"github.com/dealmungchi/reviewcrawler/services/publisher"
	"github.com/dealmungchi/reviewcrawler/services/storage"
	"github.com/dealmungchi/reviewcrawler/services/worker"
)

// publishQueueSize bounds results waiting for Redis
const publishQueueSize = 64

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     *storage.FileStore
}

// NewDependencies connects the services named in cfg. Memcache and Redis
// are optional; an unreachable server is logged and the service still runs
// against an in-process cache or without publishing.
func NewDependencies(ctx context.Context, cfg *config.Config) *Dependencies {
	log := logger.ForComponent("dependencies")
	deps := &Dependencies{
		Cache: cache.New(cfg.MemcacheAddr),
		Store: storage.NewFileStore(cfg.ResultsDir),
	}

	if mc, ok := deps.Cache.(*cache.MemcacheService); ok {
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, falling back to in-memory cache")
			deps.Cache = cache.NewMemoryCache()
		} else {
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	}

	if cfg.RedisAddr != "" {
		p := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLength)
		if err := p.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, results will not be published")
			_ = p.Close()
		} else {
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
			deps.Publisher = worker.NewWorker(p, publishQueueSize)
		}
	}

	return deps
}

// Close flushes queued results and releases connections
func (d *Dependencies) Close() {
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("Failed to close publisher")
		}
	}
}
