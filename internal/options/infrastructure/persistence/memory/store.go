// Package memory 单进程内存存储：合约、创建者序号、发件箱与账本共享同一把锁，
// 工作单元失败时通过撤销日志回滚。
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	utils "github.com/emirpasic/gods/utils"
	custody "github.com/wyfcoding/optionescrow/internal/custody/domain"
	custodymem "github.com/wyfcoding/optionescrow/internal/custody/infrastructure/persistence/memory"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
)

// expiryKey 到期索引键（Unix 秒），同一秒到期的合约按地址排序
type expiryKey struct {
	at      int64
	address string
}

func compareExpiry(a, b interface{}) int {
	ka, kb := a.(expiryKey), b.(expiryKey)
	if c := utils.Int64Comparator(ka.at, kb.at); c != 0 {
		return c
	}
	return strings.Compare(ka.address, kb.address)
}

// Store 内存存储
type Store struct {
	mu        sync.Mutex
	contracts map[string]*domain.OptionContract
	// 仅索引未行权的合约
	byExpiry *rbt.Tree
	nonces   map[string]uint64
	outbox   []*domain.OutboxMessage
	book     *custodymem.Book
	ledger   *custodymem.Runner
}

func NewStore() *Store {
	s := &Store{
		contracts: make(map[string]*domain.OptionContract),
		byExpiry:  rbt.NewWith(compareExpiry),
		nonces:    make(map[string]uint64),
		book:      custodymem.NewBook(),
	}
	s.ledger = custodymem.NewRunner(&s.mu, s.book)
	return s
}

var (
	_ domain.UnitOfWork     = (*Store)(nil)
	_ domain.ContractReader = (*Store)(nil)
	_ domain.OutboxStore    = (*Store)(nil)
	_ custody.LedgerRunner  = (*Store)(nil)
)

// Do 串行执行工作单元
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	undo := &custodymem.UndoLog{}
	t := &tx{store: s, undo: undo, ledger: custodymem.NewLedger(s.book, undo.Record)}
	if err := fn(ctx, t); err != nil {
		undo.Rollback()
		return err
	}
	return nil
}

// WithLedger 与合约工作单元处于同一串行域
func (s *Store) WithLedger(ctx context.Context, fn func(ctx context.Context, ledger custody.Ledger) error) error {
	return s.ledger.WithLedger(ctx, fn)
}

// Book 账本快照访问，测试使用
func (s *Store) Book() *custodymem.Book { return s.book }

func (s *Store) Get(ctx context.Context, address string) (*domain.OptionContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOptionNotFound, address)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) List(ctx context.Context, filter domain.ListFilter) ([]*domain.OptionContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.OptionContract, 0)
	for _, c := range s.contracts {
		if filter.Creator != "" && c.Creator != filter.Creator {
			continue
		}
		if filter.ActiveOnly && c.Status(filter.Now) != domain.StatusActive {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Creator != out[j].Creator {
			return out[i].Creator < out[j].Creator
		}
		return out[i].Nonce < out[j].Nonce
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) ListExpiredUnexercised(ctx context.Context, now time.Time, limit int) ([]*domain.OptionContract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.OptionContract
	it := s.byExpiry.Iterator()
	for it.Next() {
		key := it.Key().(expiryKey)
		if key.at >= now.Unix() {
			break
		}
		cp := *s.contracts[key.address]
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Pending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.OutboxMessage
	for _, m := range s.outbox {
		cp := *m
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkSent 已投递的消息直接移出发件箱，内存模式不保留投递历史
func (s *Store) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		sent[id] = struct{}{}
	}
	kept := s.outbox[:0]
	for _, m := range s.outbox {
		if _, ok := sent[m.ID]; ok {
			continue
		}
		kept = append(kept, m)
	}
	clear(s.outbox[len(kept):])
	s.outbox = kept
	return nil
}

// tx 工作单元视图，调用期间 Store.mu 已被持有
type tx struct {
	store  *Store
	undo   *custodymem.UndoLog
	ledger *custodymem.Ledger
}

func (t *tx) Contracts() domain.ContractRepository { return t }
func (t *tx) Ledger() custody.Ledger { return t.ledger }
func (t *tx) Outbox() domain.Outbox { return t }

func (t *tx) NextNonce(ctx context.Context, creator string) (uint64, error) {
	n, existed := t.store.nonces[creator]
	t.store.nonces[creator] = n + 1
	t.undo.Record(func() {
		if existed {
			t.store.nonces[creator] = n
		} else {
			delete(t.store.nonces, creator)
		}
	})
	return n, nil
}

func (t *tx) Create(ctx context.Context, c *domain.OptionContract) error {
	if _, ok := t.store.contracts[c.Address]; ok {
		return fmt.Errorf("contract %s already exists", c.Address)
	}
	cp := *c
	key := expiryKey{at: c.Expiration.Unix(), address: c.Address}
	t.store.contracts[c.Address] = &cp
	t.store.byExpiry.Put(key, struct{}{})
	t.undo.Record(func() {
		delete(t.store.contracts, c.Address)
		t.store.byExpiry.Remove(key)
	})
	return nil
}

func (t *tx) GetForUpdate(ctx context.Context, address string) (*domain.OptionContract, error) {
	c, ok := t.store.contracts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOptionNotFound, address)
	}
	cp := *c
	return &cp, nil
}

func (t *tx) MarkExercised(ctx context.Context, address, exerciser string, at time.Time) error {
	c, ok := t.store.contracts[address]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOptionNotFound, address)
	}
	if c.IsExercised {
		return domain.ErrOptionAlreadyExercised
	}
	before := *c
	key := expiryKey{at: c.Expiration.Unix(), address: address}
	exercisedAt := at
	c.IsExercised = true
	c.Exerciser = exerciser
	c.ExercisedAt = &exercisedAt
	t.store.byExpiry.Remove(key)
	t.undo.Record(func() {
		*c = before
		t.store.byExpiry.Put(key, struct{}{})
	})
	return nil
}

func (t *tx) Add(ctx context.Context, msg *domain.OutboxMessage) error {
	n := len(t.store.outbox)
	cp := *msg
	t.store.outbox = append(t.store.outbox, &cp)
	t.undo.Record(func() { t.store.outbox = t.store.outbox[:n] })
	return nil
}
