package embed

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/errors"
)

// NewEmbedder builds the configured embedder wrapped in the cache stack:
// LRU always, Redis tier when a URL is configured.
func NewEmbedder(cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	switch cfg.Embed.Provider {
	case "openai":
		inner = NewOpenAIEmbedder(cfg.Embed.BaseURL, cfg.Embed.APIKey, cfg.Embed.Model, cfg.EmbedTimeout())
	case "static":
		inner = NewStaticEmbedder()
	default:
		return nil, errors.ConfigError(
			fmt.Sprintf("unknown embed provider %q", cfg.Embed.Provider), nil)
	}

	logger.Info("embedder_selected",
		slog.String("provider", cfg.Embed.Provider),
		slog.String("model", inner.ModelName()))

	cached := NewCachedEmbedder(inner, cfg.Embed.CacheSize)

	if cfg.Embed.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Embed.RedisURL)
		if err != nil {
			return nil, errors.ConfigError("invalid redis_url", err)
		}
		cached = cached.WithSharedCache(redis.NewClient(opts), logger)
		logger.Info("embedding_shared_cache_enabled", slog.String("addr", opts.Addr))
	}

	return cached, nil
}
