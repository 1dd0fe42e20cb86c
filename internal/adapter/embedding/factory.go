package embedding

import (
	"fmt"
	"log/slog"
	"time"

	"artscope/config"
	"artscope/internal/adapter/cache"
	"artscope/internal/port"
)

// New builds the extractor selected by cfg.Provider, wrapped in an embedding
// cache when cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig, logger *slog.Logger) (port.Extractor, error) {
	var ext port.Extractor
	switch cfg.Provider {
	case "http":
		e, err := NewHTTPExtractor(HTTPOptions{
			Endpoint:   cfg.Endpoint,
			Model:      cfg.Model,
			APIKeyEnv:  cfg.APIKeyEnv,
			Dimension:  cfg.Dimension,
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		ext = e
	case "histogram", "":
		ext = NewHistogramExtractor(cfg.MaxPixels)
	case "mock":
		ext = NewMockExtractor(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
		ext = cache.NewCachedExtractor(ext, cache.NewEmbeddingCache(cfg.CacheSize, ttl))
	}
	return ext, nil
}
