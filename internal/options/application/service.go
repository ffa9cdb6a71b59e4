// Package application 期权生命周期应用服务。
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"github.com/wyfcoding/optionescrow/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PremiumCalculator 定价协作方
type PremiumCalculator interface {
	Price(in pricing.BlackScholesInput) (uint64, pricing.FormulaVersion, error)
	Quote(ctx context.Context, in pricing.BlackScholesInput, formula pricing.FormulaVersion) (*pricing.Quote, error)
}

// OptionService 期权生命周期服务
type OptionService struct {
	uow     domain.UnitOfWork
	reader  domain.ContractReader
	locker  domain.Locker
	clock   domain.Clock
	pricer  PremiumCalculator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewOptionService metrics 可以为 nil
func NewOptionService(
	uow domain.UnitOfWork,
	reader domain.ContractReader,
	locker domain.Locker,
	clock domain.Clock,
	pricer PremiumCalculator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OptionService {
	return &OptionService{
		uow:     uow,
		reader:  reader,
		locker:  locker,
		clock:   clock,
		pricer:  pricer,
		metrics: m,
		logger:  logger.With("module", "options"),
	}
}

// Create 定价、开立托管、转入标的并落库，全部在一个工作单元内完成
func (s *OptionService) Create(ctx context.Context, cmd CreateCommand) (*OptionView, error) {
	c, err := s.create(ctx, cmd)
	if err != nil {
		s.reject(ctx, "create", err, "creator", cmd.Creator)
		return nil, err
	}
	s.metrics.RecordCreated(c.OptionPrice)
	s.logger.InfoContext(ctx, "option created",
		"address", c.Address,
		"creator", c.Creator,
		"nonce", c.Nonce,
		"premium", c.OptionPrice,
		"formula", c.FormulaVersion,
		"amount", c.Amount)
	return toView(c, c.CreatedAt)
}

func (s *OptionService) create(ctx context.Context, cmd CreateCommand) (*domain.OptionContract, error) {
	if cmd.Creator == "" || cmd.UnderlyingAssetID == "" || cmd.StrikeAssetID == "" {
		return nil, fmt.Errorf("%w: creator, underlying and strike assets are required", domain.ErrInvalidRequest)
	}
	if cmd.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}
	// 行权时的对价转移要求正数金额
	if cmd.StrikePrice == 0 {
		return nil, fmt.Errorf("%w: strike price must be positive", domain.ErrInvalidRequest)
	}
	now := s.clock.Now()
	if err := domain.ValidateExpiration(now, cmd.Expiration); err != nil {
		return nil, err
	}

	premium, formula, err := s.pricer.Price(pricing.BlackScholesInput{
		Spot:                cmd.Spot,
		Strike:              cmd.StrikePrice,
		TimeToExpirySeconds: domain.TimeToExpirySeconds(now, cmd.Expiration),
		RiskFreeRate:        cmd.RiskFreeRate,
		Volatility:          cmd.Volatility,
	})
	if err != nil {
		return nil, fmt.Errorf("price option: %w", err)
	}

	var created *domain.OptionContract
	err = s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		nonce, err := tx.Contracts().NextNonce(ctx, cmd.Creator)
		if err != nil {
			return err
		}
		address, err := domain.DeriveAddress(cmd.Creator, nonce)
		if err != nil {
			return err
		}
		c := &domain.OptionContract{
			Address:           address,
			Creator:           cmd.Creator,
			Nonce:             nonce,
			UnderlyingAssetID: cmd.UnderlyingAssetID,
			StrikeAssetID:     cmd.StrikeAssetID,
			StrikePrice:       cmd.StrikePrice,
			Expiration:        cmd.Expiration,
			OptionPrice:       premium,
			Amount:            cmd.Amount,
			FormulaVersion:    formula,
			CreatedAt:         now,
		}

		if err := tx.Ledger().OpenEscrow(ctx, address, cmd.UnderlyingAssetID); err != nil {
			return fmt.Errorf("open escrow: %w", err)
		}
		if err := tx.Ledger().Transfer(ctx, custody.TransferRequest{
			Asset:  cmd.UnderlyingAssetID,
			From:   cmd.Creator,
			To:     address,
			Amount: cmd.Amount,
			Auth:   custody.PartyAuthorization{Party: cmd.Creator},
			Reason: "escrow deposit " + address,
		}); err != nil {
			return fmt.Errorf("fund escrow: %w", err)
		}
		if err := tx.Contracts().Create(ctx, c); err != nil {
			return fmt.Errorf("save contract: %w", err)
		}

		msg, err := newOutboxMessage(domain.EventOptionCreated, address, domain.OptionCreatedEvent{
			Address:           address,
			Creator:           c.Creator,
			UnderlyingAssetID: c.UnderlyingAssetID,
			StrikeAssetID:     c.StrikeAssetID,
			StrikePrice:       c.StrikePrice,
			Amount:            c.Amount,
			OptionPrice:       c.OptionPrice,
			FormulaVersion:    c.FormulaVersion.String(),
			Expiration:        c.Expiration.Unix(),
			OccurredOn:        now,
		}, now)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Add(ctx, msg); err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}
		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Exercise 支付行权价并释放托管标的，两笔转移与行权标记同属一个工作单元
func (s *OptionService) Exercise(ctx context.Context, cmd ExerciseCommand) (*OptionView, error) {
	c, now, err := s.exercise(ctx, cmd)
	if err != nil {
		s.reject(ctx, "exercise", err, "address", cmd.Address, "exerciser", cmd.Exerciser)
		return nil, err
	}
	s.metrics.RecordExercised()
	s.logger.InfoContext(ctx, "option exercised",
		"address", c.Address,
		"exerciser", c.Exerciser,
		"strike_price", c.StrikePrice,
		"amount", c.Amount)
	return toView(c, now)
}

func (s *OptionService) exercise(ctx context.Context, cmd ExerciseCommand) (*domain.OptionContract, time.Time, error) {
	if cmd.Exerciser == "" || cmd.Address == "" {
		return nil, time.Time{}, fmt.Errorf("%w: exerciser and contract address are required", domain.ErrInvalidRequest)
	}
	unlock, err := s.locker.Lock(ctx, cmd.Address)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer unlock()

	var (
		exercised *domain.OptionContract
		now       time.Time
	)
	err = s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		c, err := tx.Contracts().GetForUpdate(ctx, cmd.Address)
		if err != nil {
			return err
		}
		now = s.clock.Now()
		if err := c.CheckExercisable(now); err != nil {
			return err
		}

		if err := tx.Ledger().Transfer(ctx, custody.TransferRequest{
			Asset:  c.StrikeAssetID,
			From:   cmd.Exerciser,
			To:     c.Creator,
			Amount: c.StrikePrice,
			Auth:   custody.PartyAuthorization{Party: cmd.Exerciser},
			Reason: "strike payment " + c.Address,
		}); err != nil {
			return fmt.Errorf("pay strike: %w", err)
		}
		if err := tx.Ledger().Transfer(ctx, custody.TransferRequest{
			Asset:  c.UnderlyingAssetID,
			From:   c.Address,
			To:     cmd.Exerciser,
			Amount: c.Amount,
			Auth:   custody.EscrowAuthorization{Contract: c.EscrowAuthority()},
			Reason: "escrow release " + c.Address,
		}); err != nil {
			return fmt.Errorf("release escrow: %w", err)
		}
		if err := tx.Contracts().MarkExercised(ctx, c.Address, cmd.Exerciser, now); err != nil {
			return err
		}
		if err := c.MarkExercised(cmd.Exerciser, now); err != nil {
			return err
		}

		msg, err := newOutboxMessage(domain.EventOptionExercised, c.Address, domain.OptionExercisedEvent{
			Address:           c.Address,
			Creator:           c.Creator,
			Exerciser:         cmd.Exerciser,
			UnderlyingAssetID: c.UnderlyingAssetID,
			StrikeAssetID:     c.StrikeAssetID,
			StrikePrice:       c.StrikePrice,
			Amount:            c.Amount,
			OccurredOn:        now,
		}, now)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Add(ctx, msg); err != nil {
			return fmt.Errorf("write outbox: %w", err)
		}
		exercised = c
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return exercised, now, nil
}

// Get 查询单个合约
func (s *OptionService) Get(ctx context.Context, address string) (*OptionView, error) {
	c, err := s.reader.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	return toView(c, s.clock.Now())
}

// List 按创建者查询，activeOnly 只返回未行权且未过期的合约
func (s *OptionService) List(ctx context.Context, creator string, activeOnly bool) ([]*OptionView, error) {
	now := s.clock.Now()
	contracts, err := s.reader.List(ctx, domain.ListFilter{Creator: creator, ActiveOnly: activeOnly, Now: now})
	if err != nil {
		return nil, err
	}
	views := make([]*OptionView, 0, len(contracts))
	for _, c := range contracts {
		v, err := toView(c, now)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Quote 只计算报价
func (s *OptionService) Quote(ctx context.Context, cmd QuoteCommand) (*pricing.Quote, error) {
	var formula pricing.FormulaVersion
	if cmd.Formula != "" {
		f, err := pricing.ParseFormula(cmd.Formula)
		if err != nil {
			return nil, err
		}
		formula = f
	}
	q, err := s.pricer.Quote(ctx, cmd.input(), formula)
	if err != nil {
		s.reject(ctx, "quote", err)
		return nil, err
	}
	return q, nil
}

// SweepExpired 统计过期未行权的合约；托管资产的回收不在这里处理
func (s *OptionService) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	expired, err := s.reader.ListExpiredUnexercised(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	s.metrics.SetExpiredUnexercised(len(expired))
	for _, c := range expired {
		s.logger.DebugContext(ctx, "option expired unexercised", "address", c.Address, "expiration", c.Expiration)
	}
	if len(expired) > 0 {
		s.logger.InfoContext(ctx, "expiry sweep", "expired_unexercised", len(expired))
	}
	return len(expired), nil
}

func (s *OptionService) reject(ctx context.Context, op string, err error, args ...any) {
	code := domain.Code(err)
	s.metrics.RecordRejected(op, string(code))
	args = append(args, "code", code, "error", err)
	if code == domain.CodeInternal {
		s.logger.ErrorContext(ctx, op+" failed", args...)
		return
	}
	s.logger.WarnContext(ctx, op+" rejected", args...)
}

func newOutboxMessage(eventType, key string, event any, at time.Time) (*domain.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", eventType, err)
	}
	return &domain.OutboxMessage{
		ID:        uuid.NewString(),
		EventType: eventType,
		Key:       key,
		Payload:   payload,
		CreatedAt: at,
	}, nil
}
