package memory

import (
	"context"
	"sync"

	"github.com/wyfcoding/optionescrow/internal/custody/domain"
)

// UndoLog 工作单元内登记的逆操作
type UndoLog struct {
	fns []func()
}

func (u *UndoLog) Record(fn func()) { u.fns = append(u.fns, fn) }

// Rollback 逆序执行全部逆操作
func (u *UndoLog) Rollback() {
	for i := len(u.fns) - 1; i >= 0; i-- {
		u.fns[i]()
	}
	u.fns = nil
}

// Runner 在互斥锁下执行账本操作，失败时回滚。
// mu 可以与其他内存仓储共享，使账本与它们处于同一串行域。
type Runner struct {
	mu   *sync.Mutex
	book *Book
}

func NewRunner(mu *sync.Mutex, book *Book) *Runner {
	return &Runner{mu: mu, book: book}
}

func (r *Runner) WithLedger(ctx context.Context, fn func(ctx context.Context, ledger domain.Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	undo := &UndoLog{}
	if err := fn(ctx, NewLedger(r.book, undo.Record)); err != nil {
		undo.Rollback()
		return err
	}
	return nil
}
