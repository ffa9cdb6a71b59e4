package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	custodyapp "github.com/wyfcoding/optionescrow/internal/custody/application"
	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
	custodymysql "github.com/wyfcoding/optionescrow/internal/custody/infrastructure/persistence/mysql"
	"github.com/wyfcoding/optionescrow/internal/options/application"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	"github.com/wyfcoding/optionescrow/internal/options/infrastructure/lock"
	"github.com/wyfcoding/optionescrow/internal/options/infrastructure/messaging"
	optionsmemory "github.com/wyfcoding/optionescrow/internal/options/infrastructure/persistence/memory"
	optionsmysql "github.com/wyfcoding/optionescrow/internal/options/infrastructure/persistence/mysql"
	pricingapp "github.com/wyfcoding/optionescrow/internal/pricing/application"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	pricingredis "github.com/wyfcoding/optionescrow/internal/pricing/infrastructure/persistence/redis"
	"github.com/wyfcoding/optionescrow/pkg/cache"
	"github.com/wyfcoding/optionescrow/pkg/config"
	"github.com/wyfcoding/optionescrow/pkg/db"
	"github.com/wyfcoding/optionescrow/pkg/metrics"
	"github.com/wyfcoding/optionescrow/pkg/mq"
	"github.com/wyfcoding/optionescrow/pkg/ratelimit"
)

// components 运行期依赖
type components struct {
	options *application.OptionService
	custody *custodyapp.CustodyService
	relay   *messaging.OutboxRelay
	limiter ratelimit.RateLimiter
	metrics *metrics.Metrics
	closers []func() error
}

type storage interface {
	domain.UnitOfWork
	domain.ContractReader
	domain.OutboxStore
}

func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *components, err error) {
	c := &components{metrics: metrics.New(cfg.ServiceName)}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	formula, err := pricing.ParseFormula(cfg.Pricing.Formula)
	if err != nil {
		return nil, err
	}

	var (
		store  storage
		runner custody.LedgerRunner
	)
	switch cfg.Database.Driver {
	case "mysql":
		gdb, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error { return db.Close(gdb) })
		store = optionsmysql.NewStore(gdb)
		runner = custodymysql.NewRunner(gdb)
	default:
		mem := optionsmemory.NewStore()
		store, runner = mem, mem
		log.Warn("using in-memory storage, state is lost on restart")
	}

	var (
		rdb        *redis.Client
		locker     domain.Locker = lock.NewLocalLocker()
		quoteCache pricing.QuoteCache
	)
	c.limiter = ratelimit.NewLocalRateLimiter()
	if cfg.Redis.Enabled() {
		rdb, err = cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, time.Duration(cfg.Redis.LockTTL)*time.Millisecond)
		quoteCache = pricingredis.NewQuoteCache(rdb)
		c.limiter = ratelimit.NewRedisRateLimiter(rdb)
	}

	pricer := pricingapp.NewPricer(formula, quoteCache, config.Seconds(cfg.Pricing.QuoteCacheTTL), log)
	c.options = application.NewOptionService(store, store, locker, domain.SystemClock{}, pricer, c.metrics, log)
	c.custody = custodyapp.NewCustodyService(runner, cfg.Admin.PartyID, log)

	if cfg.Kafka.Enabled() {
		producer := mq.NewProducer(mq.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchTimeout: time.Duration(cfg.Kafka.BatchTimeout) * time.Millisecond,
			MaxAttempts:  3,
		})
		c.closers = append(c.closers, producer.Close)
		c.relay = messaging.NewOutboxRelay(store, producer, cfg.Scheduler.BatchSize, c.metrics, log)
	}
	return c, nil
}

// Close 逆序释放资源
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close components: %w", errors.Join(errs...))
	}
	return nil
}
