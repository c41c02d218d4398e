package retrieval

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/lead-extractor/internal/llm"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// DefaultCacheTTL is how long cached embeddings live.
const DefaultCacheTTL = 24 * time.Hour

// NewRedisClient connects to the Redis server at url (redis://host:port/db).
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// CachedEmbedder memoizes document embeddings in Redis. Query embeddings are
// never cached since providers may embed queries differently from documents.
// Cache failures are logged and the inner embedder is used directly.
type CachedEmbedder struct {
	inner  llm.Embedder
	client *redis.Client
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// CacheOptions configures a CachedEmbedder.
type CacheOptions struct {
	// Model namespaces the keys so vectors from different models never mix.
	Model  string
	TTL    time.Duration
	Logger *zap.Logger
}

// NewCachedEmbedder wraps inner with a Redis cache.
func NewCachedEmbedder(inner llm.Embedder, client *redis.Client, opts CacheOptions) *CachedEmbedder {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &CachedEmbedder{
		inner:  inner,
		client: client,
		model:  opts.Model,
		ttl:    opts.TTL,
		logger: opts.Logger,
	}
}

// Key returns the cache key for text: emb:<model>:<blake2b-256 hex>.
func (c *CachedEmbedder) Key(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return "emb:" + c.model + ":" + hex.EncodeToString(sum[:])
}

// EmbedDocuments implements llm.Embedder.
func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.Key(t)
	}

	vectors := make([][]float64, len(texts))
	var missing []int
	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		cached = nil
	}
	for i := range texts {
		if cached != nil {
			if s, ok := cached[i].(string); ok {
				var v []float64
				if err := json.Unmarshal([]byte(s), &v); err == nil {
					vectors[i] = v
					continue
				}
				c.logger.Warn("discarding corrupt cached embedding", zap.String("key", keys[i]))
			}
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	fresh, err := c.inner.EmbedDocuments(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(fresh))
	}

	pipe := c.client.Pipeline()
	for j, i := range missing {
		vectors[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			return nil, fmt.Errorf("failed to encode embedding: %w", err)
		}
		pipe.Set(ctx, keys[i], data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	c.logger.Debug("embedded documents",
		zap.Int("cached", len(texts)-len(missing)),
		zap.Int("embedded", len(missing)))
	return vectors, nil
}

// EmbedQuery implements llm.Embedder.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return c.inner.EmbedQuery(ctx, text)
}
