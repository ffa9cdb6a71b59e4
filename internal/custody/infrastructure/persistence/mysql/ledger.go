package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wyfcoding/optionescrow/internal/custody/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger 基于 gorm 的账本，db 通常是调用方事务内的句柄
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

var _ domain.Ledger = (*Ledger)(nil)

func (l *Ledger) OpenEscrow(ctx context.Context, contract, asset string) error {
	model := AccountModel{
		Owner:     contract,
		Asset:     asset,
		Kind:      string(domain.AccountEscrow),
		Authority: contract,
	}
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrEscrowExists, contract, asset)
	}
	return nil
}

func (l *Ledger) Transfer(ctx context.Context, req domain.TransferRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	srcRef := req.Source()
	src, err := l.lockAccount(ctx, srcRef)
	if err != nil {
		return err
	}
	var srcAcct *domain.Account
	if src != nil {
		srcAcct = toDomainAccount(src)
	}
	if err := domain.Authorize(req.Auth, srcRef, srcAcct); err != nil {
		return err
	}

	res := debit(l.db.WithContext(ctx), src.ID, req.Amount)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return fmt.Errorf("%w: account %s has %d, needs %d", domain.ErrInsufficientFunds, srcRef, src.Balance, req.Amount)
	}
	if err := l.credit(ctx, req.Destination(), req.Amount); err != nil {
		return err
	}
	return l.appendJournal(ctx, req.Asset, req.From, req.To, req.Amount, req.Reason)
}

func (l *Ledger) Credit(ctx context.Context, ref domain.AccountRef, amount uint64, reason string) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	if err := l.credit(ctx, ref, amount); err != nil {
		return err
	}
	return l.appendJournal(ctx, ref.Asset, "", ref.Owner, amount, reason)
}

func (l *Ledger) Balance(ctx context.Context, ref domain.AccountRef) (uint64, error) {
	var model AccountModel
	err := l.db.WithContext(ctx).
		Where("owner = ? AND asset = ?", ref.Owner, ref.Asset).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return model.Balance, nil
}

// lockAccount 行锁读取，不存在时返回 nil
func (l *Ledger) lockAccount(ctx context.Context, ref domain.AccountRef) (*AccountModel, error) {
	var model AccountModel
	err := lockedAccount(l.db.WithContext(ctx), ref).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}

// credit 目标参与方账户不存在时自动开立
func (l *Ledger) credit(ctx context.Context, ref domain.AccountRef, amount uint64) error {
	dst, err := l.lockAccount(ctx, ref)
	if err != nil {
		return err
	}
	if dst == nil {
		acct, err := domain.AutoOpenPartyAccount(ref)
		if err != nil {
			return err
		}
		dst = &AccountModel{Owner: acct.Owner, Asset: acct.Asset, Kind: string(acct.Kind)}
		if err := l.db.WithContext(ctx).Create(dst).Error; err != nil {
			return err
		}
	}
	if dst.Balance > ^uint64(0)-amount {
		return fmt.Errorf("%w: account %s", domain.ErrBalanceOverflow, ref)
	}
	return l.db.WithContext(ctx).Model(&AccountModel{}).
		Where("id = ?", dst.ID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

func (l *Ledger) appendJournal(ctx context.Context, asset, from, to string, amount uint64, reason string) error {
	return l.db.WithContext(ctx).Create(&JournalModel{
		EntryID:   uuid.NewString(),
		Asset:     asset,
		FromOwner: from,
		ToOwner:   to,
		Amount:    amount,
		Reason:    reason,
	}).Error
}

func lockedAccount(db *gorm.DB, ref domain.AccountRef) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("owner = ? AND asset = ?", ref.Owner, ref.Asset)
}

// debit 余额不足时影响行数为 0
func debit(db *gorm.DB, id uint, amount uint64) *gorm.DB {
	return db.Model(&AccountModel{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
}

func toDomainAccount(m *AccountModel) *domain.Account {
	return &domain.Account{
		Owner:     m.Owner,
		Asset:     m.Asset,
		Kind:      domain.AccountKind(m.Kind),
		Authority: m.Authority,
		Balance:   m.Balance,
		UpdatedAt: m.UpdatedAt,
	}
}

// Runner 以数据库事务作为账本的原子单元
type Runner struct {
	db *gorm.DB
}

func NewRunner(db *gorm.DB) *Runner {
	return &Runner{db: db}
}

func (r *Runner) WithLedger(ctx context.Context, fn func(ctx context.Context, ledger domain.Ledger) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewLedger(tx))
	})
}
