// Package mysql 基于 gorm 的合约存储；工作单元即数据库事务，账本与发件箱共享同一事务句柄。
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
	custodymysql "github.com/wyfcoding/optionescrow/internal/custody/infrastructure/persistence/mysql"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store 合约仓储
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

var (
	_ domain.UnitOfWork     = (*Store)(nil)
	_ domain.ContractReader = (*Store)(nil)
	_ domain.OutboxStore    = (*Store)(nil)
)

// Migrate 迁移合约、发件箱与账本表
func Migrate(ctx context.Context, db *gorm.DB) error {
	models := append(Models(), custodymysql.Models()...)
	return db.WithContext(ctx).AutoMigrate(models...)
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, &tx{db: db, ledger: custodymysql.NewLedger(db)})
	})
}

func (s *Store) Get(ctx context.Context, address string) (*domain.OptionContract, error) {
	var m ContractModel
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOptionNotFound, address)
	}
	if err != nil {
		return nil, err
	}
	return toDomainContract(&m), nil
}

func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]*domain.OptionContract, error) {
	query := s.db.WithContext(ctx).Model(&ContractModel{})
	if filter.Creator != "" {
		query = query.Where("creator = ?", filter.Creator)
	}
	if filter.ActiveOnly {
		query = query.Where("is_exercised = ? AND expiration >= ?", false, domain.ExpiryCutoff(filter.Now))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var models []ContractModel
	if err := query.Order("creator, nonce").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.OptionContract, 0, len(models))
	for i := range models {
		out = append(out, toDomainContract(&models[i]))
	}
	return out, nil
}

func (s *Store) ListExpiredUnexercised(ctx context.Context, now time.Time, limit int) ([]*domain.OptionContract, error) {
	query := s.db.WithContext(ctx).
		Where("is_exercised = ? AND expiration < ?", false, domain.ExpiryCutoff(now)).
		Order("expiration, address")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []ContractModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.OptionContract, 0, len(models))
	for i := range models {
		out = append(out, toDomainContract(&models[i]))
	}
	return out, nil
}

func (s *Store) Pending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	query := s.db.WithContext(ctx).Where("status = ?", outboxPending).Order("created_at, id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []OutboxModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.OutboxMessage, 0, len(models))
	for i := range models {
		out = append(out, toDomainOutbox(&models[i]))
	}
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&OutboxModel{}).
		Where("id IN ? AND status = ?", ids, outboxPending).
		Updates(map[string]any{"status": outboxSent, "sent_at": at}).Error
}

// tx 绑定到一个数据库事务
type tx struct {
	db     *gorm.DB
	ledger *custodymysql.Ledger
}

func (t *tx) Contracts() domain.ContractRepository { return t }
func (t *tx) Ledger() custody.Ledger { return t.ledger }
func (t *tx) Outbox() domain.Outbox { return t }

func (t *tx) NextNonce(ctx context.Context, creator string) (uint64, error) {
	db := t.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&CreatorNonceModel{Creator: creator}).Error; err != nil {
		return 0, err
	}
	var m CreatorNonceModel
	if err := lockedNonce(db, creator).First(&m).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&CreatorNonceModel{}).
		Where("creator = ?", creator).
		Update("next_nonce", m.NextNonce+1).Error; err != nil {
		return 0, err
	}
	return m.NextNonce, nil
}

func (t *tx) Create(ctx context.Context, c *domain.OptionContract) error {
	return t.db.WithContext(ctx).Create(fromDomainContract(c)).Error
}

func (t *tx) GetForUpdate(ctx context.Context, address string) (*domain.OptionContract, error) {
	var m ContractModel
	err := lockedContract(t.db.WithContext(ctx), address).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOptionNotFound, address)
	}
	if err != nil {
		return nil, err
	}
	return toDomainContract(&m), nil
}

func (t *tx) MarkExercised(ctx context.Context, address, exerciser string, at time.Time) error {
	res := markExercised(t.db.WithContext(ctx), address, exerciser, at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return domain.ErrOptionAlreadyExercised
	}
	return nil
}

func (t *tx) Add(ctx context.Context, msg *domain.OutboxMessage) error {
	return t.db.WithContext(ctx).Create(&OutboxModel{
		ID:        msg.ID,
		EventType: msg.EventType,
		Key:       msg.Key,
		Payload:   msg.Payload,
		Status:    outboxPending,
		CreatedAt: msg.CreatedAt,
	}).Error
}

func lockedContract(db *gorm.DB, address string) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("address = ?", address)
}

func lockedNonce(db *gorm.DB, creator string) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("creator = ?", creator)
}

func markExercised(db *gorm.DB, address, exerciser string, at time.Time) *gorm.DB {
	return db.Model(&ContractModel{}).
		Where("address = ? AND is_exercised = ?", address, false).
		Updates(map[string]any{"is_exercised": true, "exerciser": exerciser, "exercised_at": at})
}
