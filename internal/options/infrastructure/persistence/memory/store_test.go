package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/optionescrow/internal/options/domain"
)

func addOutbox(t *testing.T, s *Store, n int) {
	t.Helper()
	err := s.Do(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("msg-%d", len(s.outbox))
			if err := tx.Outbox().Add(ctx, &domain.OutboxMessage{ID: id, EventType: domain.EventOptionCreated, Key: "c"}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestStore_MarkSentCompactsOutbox(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	addOutbox(t, s, 5)

	batch, err := s.Pending(ctx, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	ids := make([]string, 0, len(batch))
	for _, m := range batch {
		ids = append(ids, m.ID)
	}
	require.NoError(t, s.MarkSent(ctx, ids, time.Now()))
	assert.Len(t, s.outbox, 2)

	rest, err := s.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "msg-3", rest[0].ID)
	assert.Equal(t, "msg-4", rest[1].ID)

	// 重复确认与未知 id 都是空操作
	require.NoError(t, s.MarkSent(ctx, append(ids, "unknown"), time.Now()))
	assert.Len(t, s.outbox, 2)

	require.NoError(t, s.MarkSent(ctx, []string{"msg-3", "msg-4"}, time.Now()))
	assert.Empty(t, s.outbox)

	addOutbox(t, s, 1)
	rest, err = s.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
}

func TestStore_OutboxRollback(t *testing.T) {
	s := NewStore()
	addOutbox(t, s, 2)

	err := s.Do(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Outbox().Add(ctx, &domain.OutboxMessage{ID: "doomed"}); err != nil {
			return err
		}
		return domain.ErrInvalidRequest
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Len(t, s.outbox, 2)
}
