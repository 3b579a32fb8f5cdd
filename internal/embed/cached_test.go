package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the static embedder and counts provider calls.
type countingEmbedder struct {
	*StaticEmbedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitSkipsProvider(t *testing.T) {
	// Given: a cached embedder
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()
	ctx := context.Background()

	// When: the same text is embedded twice
	v1, err := cached.Embed(ctx, "repeat me")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "repeat me")
	require.NoError(t, err)

	// Then: the provider ran once and both results match
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, v1, v2)
}

func TestCachedEmbedder_BatchPartialHits(t *testing.T) {
	// Given: one text already cached
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	defer cached.Close()
	ctx := context.Background()

	warm, err := cached.Embed(ctx, "cached text")
	require.NoError(t, err)
	require.Equal(t, int32(1), inner.calls.Load())

	// When: a batch mixes the cached text with new ones
	vecs, err := cached.EmbedBatch(ctx, []string{"new one", "cached text", "new two"})
	require.NoError(t, err)

	// Then: order is preserved and the cached slot reused
	require.Len(t, vecs, 3)
	assert.Equal(t, warm, vecs[1])

	// And: the provider saw exactly one more call (the misses batch)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedder_SharedTier(t *testing.T) {
	// Given: two processes sharing a Redis tier
	mr := miniredis.RunT(t)
	opts := &redis.Options{Addr: mr.Addr()}

	inner1 := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	warmProc := NewCachedEmbedder(inner1, 10).WithSharedCache(redis.NewClient(opts), nil)
	defer warmProc.Close()

	ctx := context.Background()
	want, err := warmProc.Embed(ctx, "shared question")
	require.NoError(t, err)

	// When: a cold process with an empty LRU asks the same question
	inner2 := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	coldProc := NewCachedEmbedder(inner2, 10).WithSharedCache(redis.NewClient(opts), nil)
	defer coldProc.Close()

	got, err := coldProc.Embed(ctx, "shared question")
	require.NoError(t, err)

	// Then: the vector came from Redis, not the provider
	assert.Equal(t, want, got)
	assert.Equal(t, int32(0), inner2.calls.Load())
}

func TestCachedEmbedder_RedisDownIsJustAMiss(t *testing.T) {
	// Given: a shared tier pointing at nothing
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10).
		WithSharedCache(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), nil)
	defer cached.Close()

	// When: I embed through it
	vec, err := cached.Embed(context.Background(), "text")

	// Then: the provider result flows through unharmed
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestVectorCodec_Roundtrip(t *testing.T) {
	vec := []float32{1.5, -2.25, 0, 3.14159}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
	assert.Nil(t, decodeVector([]byte{1, 2, 3}))
}
