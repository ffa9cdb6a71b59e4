// Package application 报价应用服务：在定价公式之上提供缓存与并发合并。
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"golang.org/x/sync/singleflight"
)

// Pricer 报价服务。缓存只是加速手段，读写失败记录日志后继续计算。
type Pricer struct {
	formula domain.FormulaVersion
	cache   domain.QuoteCache
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
}

// NewPricer cache 可以为 nil
func NewPricer(formula domain.FormulaVersion, cache domain.QuoteCache, ttl time.Duration, logger *slog.Logger) *Pricer {
	return &Pricer{
		formula: formula,
		cache:   cache,
		ttl:     ttl,
		logger:  logger.With("module", "pricing"),
	}
}

// Formula 新合约使用的公式版本
func (p *Pricer) Formula() domain.FormulaVersion { return p.formula }

// Price 使用默认公式计算权利金，不经过缓存；合约创建走这条路径
func (p *Pricer) Price(in domain.BlackScholesInput) (uint64, domain.FormulaVersion, error) {
	premium, err := domain.PriceOption(in, p.formula)
	return premium, p.formula, err
}

// Quote 计算报价；formula 为空时使用默认公式
func (p *Pricer) Quote(ctx context.Context, in domain.BlackScholesInput, formula domain.FormulaVersion) (*domain.Quote, error) {
	if formula == "" {
		formula = p.formula
	}
	key := domain.QuoteKey(in, formula)

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.WarnContext(ctx, "quote cache read failed", "key", key, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	v, err, _ := p.group.Do(key, func() (any, error) {
		ev, err := domain.Evaluate(in, formula)
		if err != nil {
			return nil, err
		}
		q := domain.NewQuote(in, ev, time.Now())
		if p.cache != nil {
			if err := p.cache.Set(ctx, key, q, p.ttl); err != nil {
				p.logger.WarnContext(ctx, "quote cache write failed", "key", key, "error", err)
			}
		}
		return q, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Quote), nil
}
