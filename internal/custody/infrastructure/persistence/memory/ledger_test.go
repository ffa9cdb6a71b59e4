package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/optionescrow/internal/custody/domain"
)

func fundedRunner(t *testing.T) (*Runner, *Book) {
	t.Helper()
	book := NewBook()
	runner := NewRunner(&sync.Mutex{}, book)
	err := runner.WithLedger(context.Background(), func(ctx context.Context, l domain.Ledger) error {
		if err := l.Credit(ctx, domain.AccountRef{Owner: "alice", Asset: "BTC"}, 50, "seed"); err != nil {
			return err
		}
		return l.Credit(ctx, domain.AccountRef{Owner: "bob", Asset: "USDC"}, 1_000, "seed")
	})
	require.NoError(t, err)
	return runner, book
}

func balance(t *testing.T, book *Book, owner, asset string) uint64 {
	t.Helper()
	acct, _ := book.Account(domain.AccountRef{Owner: owner, Asset: asset})
	return acct.Balance
}

func TestLedger_EscrowRoundTrip(t *testing.T) {
	runner, book := fundedRunner(t)
	ctx := context.Background()

	err := runner.WithLedger(ctx, func(ctx context.Context, l domain.Ledger) error {
		if err := l.OpenEscrow(ctx, "contract-1", "BTC"); err != nil {
			return err
		}
		return l.Transfer(ctx, domain.TransferRequest{
			Asset: "BTC", From: "alice", To: "contract-1", Amount: 10,
			Auth: domain.PartyAuthorization{Party: "alice"},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(40), balance(t, book, "alice", "BTC"))
	assert.Equal(t, uint64(10), balance(t, book, "contract-1", "BTC"))

	err = runner.WithLedger(ctx, func(ctx context.Context, l domain.Ledger) error {
		return l.Transfer(ctx, domain.TransferRequest{
			Asset: "BTC", From: "contract-1", To: "bob", Amount: 10,
			Auth: domain.EscrowAuthorization{Contract: "contract-1"},
		})
	})
	require.NoError(t, err)
	assert.Zero(t, balance(t, book, "contract-1", "BTC"))
	assert.Equal(t, uint64(10), balance(t, book, "bob", "BTC"))
	assert.Len(t, book.Journal(), 4)
}

func TestLedger_RollbackRestoresEverything(t *testing.T) {
	runner, book := fundedRunner(t)
	journal := len(book.Journal())
	boom := errors.New("boom")

	err := runner.WithLedger(context.Background(), func(ctx context.Context, l domain.Ledger) error {
		if err := l.OpenEscrow(ctx, "contract-1", "BTC"); err != nil {
			return err
		}
		if err := l.Transfer(ctx, domain.TransferRequest{
			Asset: "BTC", From: "alice", To: "contract-1", Amount: 10,
			Auth: domain.PartyAuthorization{Party: "alice"},
		}); err != nil {
			return err
		}
		if err := l.Transfer(ctx, domain.TransferRequest{
			Asset: "USDC", From: "bob", To: "carol", Amount: 5,
			Auth: domain.PartyAuthorization{Party: "bob"},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(50), balance(t, book, "alice", "BTC"))
	assert.Equal(t, uint64(1_000), balance(t, book, "bob", "USDC"))
	_, ok := book.Account(domain.AccountRef{Owner: "contract-1", Asset: "BTC"})
	assert.False(t, ok)
	_, ok = book.Account(domain.AccountRef{Owner: "carol", Asset: "USDC"})
	assert.False(t, ok)
	assert.Len(t, book.Journal(), journal)
}

func TestLedger_TransferFailures(t *testing.T) {
	runner, book := fundedRunner(t)
	ctx := context.Background()
	require.NoError(t, runner.WithLedger(ctx, func(ctx context.Context, l domain.Ledger) error {
		if err := l.OpenEscrow(ctx, "contract-1", "BTC"); err != nil {
			return err
		}
		return l.OpenEscrow(ctx, "contract-2", "BTC")
	}))

	cases := []struct {
		name string
		req  domain.TransferRequest
		want error
	}{
		{"overdraw", domain.TransferRequest{Asset: "BTC", From: "alice", To: "bob", Amount: 51, Auth: domain.PartyAuthorization{Party: "alice"}}, domain.ErrInsufficientFunds},
		{"unfunded party", domain.TransferRequest{Asset: "USDC", From: "carol", To: "bob", Amount: 1, Auth: domain.PartyAuthorization{Party: "carol"}}, domain.ErrInsufficientFunds},
		{"foreign signature", domain.TransferRequest{Asset: "BTC", From: "alice", To: "bob", Amount: 1, Auth: domain.PartyAuthorization{Party: "bob"}}, domain.ErrUnauthorized},
		{"escrow capability on party", domain.TransferRequest{Asset: "BTC", From: "alice", To: "bob", Amount: 1, Auth: domain.EscrowAuthorization{Contract: "contract-1"}}, domain.ErrUnauthorized},
		{"escrow capability on other escrow", domain.TransferRequest{Asset: "BTC", From: "contract-2", To: "bob", Amount: 1, Auth: domain.EscrowAuthorization{Contract: "contract-1"}}, domain.ErrUnauthorized},
		{"zero amount", domain.TransferRequest{Asset: "BTC", From: "alice", To: "bob", Auth: domain.PartyAuthorization{Party: "alice"}}, domain.ErrInvalidAmount},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := runner.WithLedger(ctx, func(ctx context.Context, l domain.Ledger) error {
				return l.Transfer(ctx, c.req)
			})
			assert.ErrorIs(t, err, c.want)
		})
	}
	assert.Equal(t, uint64(50), balance(t, book, "alice", "BTC"))
}

func TestLedger_OpenEscrowTwice(t *testing.T) {
	runner, _ := fundedRunner(t)
	err := runner.WithLedger(context.Background(), func(ctx context.Context, l domain.Ledger) error {
		if err := l.OpenEscrow(ctx, "contract-1", "BTC"); err != nil {
			return err
		}
		return l.OpenEscrow(ctx, "contract-1", "BTC")
	})
	assert.ErrorIs(t, err, domain.ErrEscrowExists)
}

func TestLedger_ContractAddressReservedForEscrow(t *testing.T) {
	runner, book := fundedRunner(t)
	ctx := context.Background()
	contract := strings.Repeat("0f", 32)
	ref := domain.AccountRef{Owner: contract, Asset: "BTC"}

	err := runner.WithLedger(ctx, func(ctx context.Context, l domain.Ledger) error {
		return l.Credit(ctx, ref, 5, "stray deposit")
	})
	require.ErrorIs(t, err, domain.ErrInvalidAccount)
	_, exists := book.Account(ref)
	assert.False(t, exists)

	err = runner.WithLedger(ctx, func(ctx context.Context, l domain.Ledger) error {
		return l.Transfer(ctx, domain.TransferRequest{
			Asset: "BTC", From: "alice", To: contract, Amount: 5,
			Auth: domain.PartyAuthorization{Party: "alice"},
		})
	})
	require.ErrorIs(t, err, domain.ErrInvalidAccount)
	assert.Equal(t, uint64(50), balance(t, book, "alice", "BTC"))

	err = runner.WithLedger(ctx, func(ctx context.Context, l domain.Ledger) error {
		if err := l.OpenEscrow(ctx, contract, "BTC"); err != nil {
			return err
		}
		return l.Transfer(ctx, domain.TransferRequest{
			Asset: "BTC", From: "alice", To: contract, Amount: 5,
			Auth: domain.PartyAuthorization{Party: "alice"},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance(t, book, contract, "BTC"))
}
