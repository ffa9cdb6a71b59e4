package redis

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/wyfcoding/optionescrow/internal/pricing/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// QuoteCache 基于 redis 的报价缓存
type QuoteCache struct {
	client redis.UniversalClient
	prefix string
}

func NewQuoteCache(client redis.UniversalClient) *QuoteCache {
	return &QuoteCache{client: client, prefix: "quote:"}
}

var _ domain.QuoteCache = (*QuoteCache)(nil)

func (c *QuoteCache) Get(ctx context.Context, key string) (*domain.Quote, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *QuoteCache) Set(ctx context.Context, key string, quote *domain.Quote, ttl time.Duration) error {
	if quote == nil {
		return nil
	}
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}
