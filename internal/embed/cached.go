package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheSize is the default number of embeddings held in memory.
const DefaultCacheSize = 1000

// redisTTL bounds how long shared cache entries live. Embeddings are
// pure functions of (model, text), so staleness is not a concern; this
// only caps memory on the Redis side.
const redisTTL = 24 * time.Hour

// CachedEmbedder wraps an Embedder with an in-process LRU and an optional
// shared Redis tier. Repeated questions skip the model entirely; cold
// processes hitting the shared tier skip it too.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	shared *redis.Client
	logger *slog.Logger
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with an LRU of cacheSize entries.
func NewCachedEmbedder(inner Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache,
		logger: slog.Default(),
	}
}

// WithSharedCache adds a Redis tier behind the LRU. Redis failures are
// logged and treated as misses.
func (c *CachedEmbedder) WithSharedCache(client *redis.Client, logger *slog.Logger) *CachedEmbedder {
	c.shared = client
	if logger != nil {
		c.logger = logger
	}
	return c
}

// cacheKey hashes text and model together so model switches never serve
// stale vectors.
func (c *CachedEmbedder) cacheKey(text string) string {
	combined := text + "\x00" + c.inner.ModelName()
	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	if vec, ok := c.sharedGet(ctx, key); ok {
		c.cache.Add(key, vec)
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Add(key, vec)
	c.sharedSet(ctx, key, vec)
	return vec, nil
}

// EmbedBatch checks each text separately so partial cache hits still
// shrink the provider call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	missIndices := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		if vec, ok := c.sharedGet(ctx, key); ok {
			c.cache.Add(key, vec)
			results[i] = vec
			continue
		}
		missIndices = append(missIndices, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			i := missIndices[j]
			results[i] = vec
			key := c.cacheKey(texts[i])
			c.cache.Add(key, vec)
			c.sharedSet(ctx, key, vec)
		}
	}

	return results, nil
}

func (c *CachedEmbedder) sharedGet(ctx context.Context, key string) ([]float32, bool) {
	if c.shared == nil {
		return nil, false
	}
	raw, err := c.shared.Get(ctx, "ragline:emb:"+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("shared_cache_get_failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	vec := decodeVector(raw)
	if vec == nil {
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) sharedSet(ctx context.Context, key string, vec []float32) {
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, "ragline:emb:"+key, encodeVector(vec), redisTTL).Err(); err != nil {
		c.logger.Debug("shared_cache_set_failed", slog.String("error", err.Error()))
	}
}

func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }

func (c *CachedEmbedder) Close() error {
	if c.shared != nil {
		if err := c.shared.Close(); err != nil {
			c.logger.Debug("shared_cache_close_failed", slog.String("error", err.Error()))
		}
	}
	return c.inner.Close()
}

// encodeVector packs a vector as little-endian float32s for Redis.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
