// Package domain 提供了资产托管（Custody）领域的业务逻辑。
// 账户按 (持有人, 资产) 唯一；托管账户由期权合约地址持有，只能凭该合约的托管授权转出。
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("transfer not authorized")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidAmount     = errors.New("invalid transfer amount")
	ErrInvalidAccount    = errors.New("invalid account reference")
	ErrEscrowExists      = errors.New("escrow account already exists")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// AccountKind 账户类型
type AccountKind string

const (
	AccountParty  AccountKind = "PARTY"  // 参与方自有账户
	AccountEscrow AccountKind = "ESCROW" // 合约托管账户
)

// AccountRef 账户定位：持有人 + 资产
type AccountRef struct {
	Owner string `json:"owner"`
	Asset string `json:"asset"`
}

func (r AccountRef) String() string { return r.Owner + "/" + r.Asset }

// Account 账户实体
type Account struct {
	Owner     string      `json:"owner"`
	Asset     string      `json:"asset"`
	Kind      AccountKind `json:"kind"`
	Authority string      `json:"authority,omitempty"` // 托管账户登记的合约地址
	Balance   uint64      `json:"balance"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewPartyAccount 创建参与方账户
func NewPartyAccount(ref AccountRef) *Account {
	return &Account{Owner: ref.Owner, Asset: ref.Asset, Kind: AccountParty, UpdatedAt: time.Now()}
}

// ContractAddressLen 合约地址长度：32 字节哈希的小写十六进制
const ContractAddressLen = 64

// IsContractAddress 持有人是否落在合约地址空间内
func IsContractAddress(owner string) bool {
	if len(owner) != ContractAddressLen {
		return false
	}
	for i := 0; i < len(owner); i++ {
		c := owner[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// AutoOpenPartyAccount 入账时自动开立参与方账户。
// 合约地址空间只能通过 OpenEscrow 开户，否则后续同地址的托管账户将无法开立。
func AutoOpenPartyAccount(ref AccountRef) (*Account, error) {
	if ref.Owner == "" || ref.Asset == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccount, ref)
	}
	if IsContractAddress(ref.Owner) {
		return nil, fmt.Errorf("%w: %s is reserved for escrow accounts", ErrInvalidAccount, ref)
	}
	return NewPartyAccount(ref), nil
}

// NewEscrowAccount 创建托管账户，持有人与授权方均为合约地址
func NewEscrowAccount(contract, asset string) *Account {
	return &Account{Owner: contract, Asset: asset, Kind: AccountEscrow, Authority: contract, UpdatedAt: time.Now()}
}

func (a *Account) Ref() AccountRef { return AccountRef{Owner: a.Owner, Asset: a.Asset} }

// SafeDebit 安全扣减
func (a *Account) SafeDebit(amount uint64) error {
	if a.Balance < amount {
		return fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, a.Ref(), a.Balance, amount)
	}
	a.Balance -= amount
	a.UpdatedAt = time.Now()
	return nil
}

// SafeCredit 安全入账
func (a *Account) SafeCredit(amount uint64) error {
	if a.Balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: account %s", ErrBalanceOverflow, a.Ref())
	}
	a.Balance += amount
	a.UpdatedAt = time.Now()
	return nil
}

// TransferRequest 一次托管转移请求
type TransferRequest struct {
	Asset  string
	From   string
	To     string
	Amount uint64
	Auth   Authorization
	Reason string
}

func (r TransferRequest) Source() AccountRef      { return AccountRef{Owner: r.From, Asset: r.Asset} }
func (r TransferRequest) Destination() AccountRef { return AccountRef{Owner: r.To, Asset: r.Asset} }

// Validate 校验请求本身（不含余额）
func (r TransferRequest) Validate() error {
	if r.Amount == 0 {
		return ErrInvalidAmount
	}
	if r.Auth == nil {
		return fmt.Errorf("%w: missing authorization", ErrUnauthorized)
	}
	return nil
}

// JournalEntry 托管转移流水
type JournalEntry struct {
	ID        string    `json:"id"`
	Asset     string    `json:"asset"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    uint64    `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger 托管/账本协作方，所有方法都在调用方的原子单元内执行
type Ledger interface {
	// OpenEscrow 为合约登记托管账户
	OpenEscrow(ctx context.Context, contract, asset string) error
	// Transfer 在授权校验后转移资产，余额不足返回 ErrInsufficientFunds
	Transfer(ctx context.Context, req TransferRequest) error
	// Credit 外部入金（管理员注资）
	Credit(ctx context.Context, ref AccountRef, amount uint64, reason string) error
	// Balance 查询余额，账户不存在时为 0
	Balance(ctx context.Context, ref AccountRef) (uint64, error)
}

// LedgerRunner 在一个原子单元内执行账本操作
type LedgerRunner interface {
	WithLedger(ctx context.Context, fn func(ctx context.Context, ledger Ledger) error) error
}
