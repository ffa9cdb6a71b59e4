// Package application 托管应用服务：管理员注资与余额查询。
package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wyfcoding/optionescrow/internal/custody/domain"
)

// DepositCommand 管理员注资命令
type DepositCommand struct {
	Caller string
	Owner  string
	Asset  string
	Amount uint64
	Reason string
}

// CustodyService 托管应用服务
type CustodyService struct {
	runner  domain.LedgerRunner
	adminID string
	logger  *slog.Logger
}

// NewCustodyService adminID 为配置中的管理员参与方，为空时禁止注资
func NewCustodyService(runner domain.LedgerRunner, adminID string, logger *slog.Logger) *CustodyService {
	return &CustodyService{
		runner:  runner,
		adminID: adminID,
		logger:  logger.With("module", "custody"),
	}
}

// Deposit 向参与方账户注资，仅管理员可调用
func (s *CustodyService) Deposit(ctx context.Context, cmd DepositCommand) (uint64, error) {
	if s.adminID == "" || cmd.Caller != s.adminID {
		s.logger.WarnContext(ctx, "deposit rejected", "caller", cmd.Caller, "owner", cmd.Owner)
		return 0, fmt.Errorf("%w: caller %q is not the administrator", domain.ErrUnauthorized, cmd.Caller)
	}
	if cmd.Owner == "" || cmd.Asset == "" {
		return 0, fmt.Errorf("%w: owner and asset are required", domain.ErrInvalidAccount)
	}
	reason := cmd.Reason
	if reason == "" {
		reason = "admin deposit"
	}

	ref := domain.AccountRef{Owner: cmd.Owner, Asset: cmd.Asset}
	var balance uint64
	err := s.runner.WithLedger(ctx, func(ctx context.Context, ledger domain.Ledger) error {
		if err := ledger.Credit(ctx, ref, cmd.Amount, reason); err != nil {
			return err
		}
		var err error
		balance, err = ledger.Balance(ctx, ref)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("deposit to %s: %w", ref, err)
	}
	s.logger.InfoContext(ctx, "deposit completed", "owner", cmd.Owner, "asset", cmd.Asset, "amount", cmd.Amount, "balance", balance)
	return balance, nil
}

// Balance 查询余额
func (s *CustodyService) Balance(ctx context.Context, owner, asset string) (uint64, error) {
	var balance uint64
	err := s.runner.WithLedger(ctx, func(ctx context.Context, ledger domain.Ledger) error {
		var err error
		balance, err = ledger.Balance(ctx, domain.AccountRef{Owner: owner, Asset: asset})
		return err
	})
	return balance, err
}
