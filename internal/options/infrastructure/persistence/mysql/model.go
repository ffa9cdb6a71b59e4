package mysql

import (
	"time"

	"github.com/wyfcoding/optionescrow/internal/options/domain"
	pricing "github.com/wyfcoding/optionescrow/internal/pricing/domain"
	"gorm.io/gorm"
)

// ContractModel 期权合约表
type ContractModel struct {
	gorm.Model
	Address           string     `gorm:"column:address;type:char(64);uniqueIndex;not null"`
	Creator           string     `gorm:"column:creator;type:varchar(64);uniqueIndex:uk_creator_nonce;not null"`
	Nonce             uint64     `gorm:"column:nonce;uniqueIndex:uk_creator_nonce;not null"`
	UnderlyingAssetID string     `gorm:"column:underlying_asset_id;type:varchar(64);not null"`
	StrikeAssetID     string     `gorm:"column:strike_asset_id;type:varchar(64);not null"`
	StrikePrice       uint64     `gorm:"column:strike_price;type:bigint unsigned;not null"`
	Expiration        time.Time  `gorm:"column:expiration;index:idx_expiry_exercised;not null"`
	OptionPrice       uint64     `gorm:"column:option_price;type:bigint unsigned;not null"`
	Amount            uint64     `gorm:"column:amount;type:bigint unsigned;not null"`
	FormulaVersion    string     `gorm:"column:formula_version;type:varchar(32);not null"`
	IsExercised       bool       `gorm:"column:is_exercised;index:idx_expiry_exercised;not null;default:false"`
	Exerciser         string     `gorm:"column:exerciser;type:varchar(64)"`
	ExercisedAt       *time.Time `gorm:"column:exercised_at"`
}

func (ContractModel) TableName() string { return "option_contracts" }

// CreatorNonceModel 创建者序号
type CreatorNonceModel struct {
	Creator   string `gorm:"column:creator;type:varchar(64);primaryKey"`
	NextNonce uint64 `gorm:"column:next_nonce;not null;default:0"`
	UpdatedAt time.Time
}

func (CreatorNonceModel) TableName() string { return "option_creator_nonces" }

// OutboxModel 事件发件箱
type OutboxModel struct {
	ID        string     `gorm:"column:id;type:varchar(36);primaryKey"`
	EventType string     `gorm:"column:event_type;type:varchar(64);index;not null"`
	Key       string     `gorm:"column:message_key;type:varchar(64);not null"`
	Payload   []byte     `gorm:"column:payload;type:blob;not null"`
	Status    string     `gorm:"column:status;type:varchar(16);index:idx_status_created;not null;default:'pending'"`
	CreatedAt time.Time  `gorm:"column:created_at;index:idx_status_created"`
	SentAt    *time.Time `gorm:"column:sent_at"`
}

func (OutboxModel) TableName() string { return "option_outbox_messages" }

const (
	outboxPending = "pending"
	outboxSent    = "sent"
)

// Models 需要迁移的表
func Models() []any {
	return []any{&ContractModel{}, &CreatorNonceModel{}, &OutboxModel{}}
}

func fromDomainContract(c *domain.OptionContract) *ContractModel {
	m := &ContractModel{
		Address:           c.Address,
		Creator:           c.Creator,
		Nonce:             c.Nonce,
		UnderlyingAssetID: c.UnderlyingAssetID,
		StrikeAssetID:     c.StrikeAssetID,
		StrikePrice:       c.StrikePrice,
		Expiration:        c.Expiration,
		OptionPrice:       c.OptionPrice,
		Amount:            c.Amount,
		FormulaVersion:    c.FormulaVersion.String(),
		IsExercised:       c.IsExercised,
		Exerciser:         c.Exerciser,
		ExercisedAt:       c.ExercisedAt,
	}
	m.CreatedAt = c.CreatedAt
	return m
}

func toDomainContract(m *ContractModel) *domain.OptionContract {
	return &domain.OptionContract{
		Address:           m.Address,
		Creator:           m.Creator,
		Nonce:             m.Nonce,
		UnderlyingAssetID: m.UnderlyingAssetID,
		StrikeAssetID:     m.StrikeAssetID,
		StrikePrice:       m.StrikePrice,
		Expiration:        m.Expiration,
		OptionPrice:       m.OptionPrice,
		Amount:            m.Amount,
		FormulaVersion:    pricing.FormulaVersion(m.FormulaVersion),
		IsExercised:       m.IsExercised,
		Exerciser:         m.Exerciser,
		ExercisedAt:       m.ExercisedAt,
		CreatedAt:         m.CreatedAt,
	}
}

func toDomainOutbox(m *OutboxModel) *domain.OutboxMessage {
	return &domain.OutboxMessage{
		ID:        m.ID,
		EventType: m.EventType,
		Key:       m.Key,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
		SentAt:    m.SentAt,
	}
}
