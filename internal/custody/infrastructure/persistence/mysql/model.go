package mysql

import (
	"time"

	"gorm.io/gorm"
)

// AccountModel 账户表，(owner, asset) 唯一
type AccountModel struct {
	gorm.Model
	Owner     string `gorm:"column:owner;type:varchar(64);uniqueIndex:uk_owner_asset;not null"`
	Asset     string `gorm:"column:asset;type:varchar(64);uniqueIndex:uk_owner_asset;not null"`
	Kind      string `gorm:"column:kind;type:varchar(16);not null"`
	Authority string `gorm:"column:authority;type:varchar(64);index"`
	Balance   uint64 `gorm:"column:balance;type:bigint unsigned;not null;default:0"`
}

func (AccountModel) TableName() string { return "custody_accounts" }

// JournalModel 转移流水
type JournalModel struct {
	gorm.Model
	EntryID   string    `gorm:"column:entry_id;type:varchar(64);uniqueIndex;not null"`
	Asset     string    `gorm:"column:asset;type:varchar(64);index;not null"`
	FromOwner string    `gorm:"column:from_owner;type:varchar(64);index"`
	ToOwner   string    `gorm:"column:to_owner;type:varchar(64);index;not null"`
	Amount    uint64    `gorm:"column:amount;type:bigint unsigned;not null"`
	Reason    string    `gorm:"column:reason;type:varchar(255)"`
	Timestamp time.Time `gorm:"column:timestamp;autoCreateTime"`
}

func (JournalModel) TableName() string { return "custody_journal" }

// Models 需要迁移的表
func Models() []any {
	return []any{&AccountModel{}, &JournalModel{}}
}
