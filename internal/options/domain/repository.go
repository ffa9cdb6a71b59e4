package domain

import (
	"context"
	"time"

	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
)

// ListFilter 合约查询条件
type ListFilter struct {
	Creator    string
	ActiveOnly bool
	Now        time.Time
	Limit      int
}

// ContractRepository 工作单元内的合约仓储
type ContractRepository interface {
	// NextNonce 分配创建者的下一个序号，工作单元回滚时序号不被消耗
	NextNonce(ctx context.Context, creator string) (uint64, error)
	Create(ctx context.Context, c *OptionContract) error
	// GetForUpdate 读取并锁定合约直到工作单元结束
	GetForUpdate(ctx context.Context, address string) (*OptionContract, error)
	// MarkExercised 仅当合约尚未行权时生效
	MarkExercised(ctx context.Context, address, exerciser string, at time.Time) error
}

// ContractReader 只读查询
type ContractReader interface {
	Get(ctx context.Context, address string) (*OptionContract, error)
	List(ctx context.Context, filter ListFilter) ([]*OptionContract, error)
	// ListExpiredUnexercised 到期时间早于 now 且未行权的合约
	ListExpiredUnexercised(ctx context.Context, now time.Time, limit int) ([]*OptionContract, error)
}

// Outbox 事件发件箱
type Outbox interface {
	Add(ctx context.Context, msg *OutboxMessage) error
}

// OutboxStore 供中继读取与确认
type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]*OutboxMessage, error)
	MarkSent(ctx context.Context, ids []string, at time.Time) error
}

// Tx 绑定到同一原子单元的协作方
type Tx interface {
	Contracts() ContractRepository
	Ledger() custody.Ledger
	Outbox() Outbox
}

// UnitOfWork fn 返回错误时全部效果回滚
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Locker 按合约串行化行权
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Clock 服务端时钟，调用方无法注入自己的时间
type Clock interface {
	Now() time.Time
}

// SystemClock 读取系统时间
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
