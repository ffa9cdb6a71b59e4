// Package memory 内存账本，供单进程部署与测试使用。
// Book 本身不加锁，调用方负责串行化并在失败时执行回滚函数。
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wyfcoding/optionescrow/internal/custody/domain"
)

// Book 账户与流水
type Book struct {
	accounts map[domain.AccountRef]*domain.Account
	journal  []domain.JournalEntry
}

func NewBook() *Book {
	return &Book{accounts: make(map[domain.AccountRef]*domain.Account)}
}

// Account 返回账户副本
func (b *Book) Account(ref domain.AccountRef) (domain.Account, bool) {
	acct, ok := b.accounts[ref]
	if !ok {
		return domain.Account{}, false
	}
	return *acct, true
}

// Journal 返回流水副本
func (b *Book) Journal() []domain.JournalEntry {
	out := make([]domain.JournalEntry, len(b.journal))
	copy(out, b.journal)
	return out
}

// Ledger 绑定到一个工作单元的账本视图，每次修改都登记一个回滚函数
type Ledger struct {
	book       *Book
	onRollback func(func())
}

// NewLedger onRollback 接收逆操作，工作单元失败时按登记的逆序执行
func NewLedger(book *Book, onRollback func(func())) *Ledger {
	return &Ledger{book: book, onRollback: onRollback}
}

var _ domain.Ledger = (*Ledger)(nil)

func (l *Ledger) OpenEscrow(ctx context.Context, contract, asset string) error {
	ref := domain.AccountRef{Owner: contract, Asset: asset}
	if _, ok := l.book.accounts[ref]; ok {
		return fmt.Errorf("%w: %s", domain.ErrEscrowExists, ref)
	}
	l.book.accounts[ref] = domain.NewEscrowAccount(contract, asset)
	l.onRollback(func() { delete(l.book.accounts, ref) })
	return nil
}

func (l *Ledger) Transfer(ctx context.Context, req domain.TransferRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	srcRef := req.Source()
	src := l.book.accounts[srcRef]
	if err := domain.Authorize(req.Auth, srcRef, src); err != nil {
		return err
	}
	dst, err := l.destination(req.Destination())
	if err != nil {
		return err
	}

	srcBefore, dstBefore := src.Balance, dst.Balance
	if err := src.SafeDebit(req.Amount); err != nil {
		return err
	}
	if err := dst.SafeCredit(req.Amount); err != nil {
		src.Balance = srcBefore
		return err
	}
	l.onRollback(func() {
		src.Balance = srcBefore
		dst.Balance = dstBefore
	})
	l.appendJournal(req.Asset, req.From, req.To, req.Amount, req.Reason)
	return nil
}

func (l *Ledger) Credit(ctx context.Context, ref domain.AccountRef, amount uint64, reason string) error {
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	dst, err := l.destination(ref)
	if err != nil {
		return err
	}
	before := dst.Balance
	if err := dst.SafeCredit(amount); err != nil {
		return err
	}
	l.onRollback(func() { dst.Balance = before })
	l.appendJournal(ref.Asset, "", ref.Owner, amount, reason)
	return nil
}

func (l *Ledger) Balance(ctx context.Context, ref domain.AccountRef) (uint64, error) {
	if acct, ok := l.book.accounts[ref]; ok {
		return acct.Balance, nil
	}
	return 0, nil
}

// destination 参与方账户不存在时自动开立
func (l *Ledger) destination(ref domain.AccountRef) (*domain.Account, error) {
	if acct, ok := l.book.accounts[ref]; ok {
		return acct, nil
	}
	acct, err := domain.AutoOpenPartyAccount(ref)
	if err != nil {
		return nil, err
	}
	l.book.accounts[ref] = acct
	l.onRollback(func() { delete(l.book.accounts, ref) })
	return acct, nil
}

func (l *Ledger) appendJournal(asset, from, to string, amount uint64, reason string) {
	n := len(l.book.journal)
	l.book.journal = append(l.book.journal, domain.JournalEntry{
		ID:        uuid.NewString(),
		Asset:     asset,
		From:      from,
		To:        to,
		Amount:    amount,
		Reason:    reason,
		Timestamp: time.Now(),
	})
	l.onRollback(func() { l.book.journal = l.book.journal[:n] })
}
