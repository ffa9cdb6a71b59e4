package domain

import (
	"context"
	"time"
)

// QuoteCache 报价缓存；未命中返回 (nil, nil)
type QuoteCache interface {
	Get(ctx context.Context, key string) (*Quote, error)
	Set(ctx context.Context, key string, quote *Quote, ttl time.Duration) error
}
