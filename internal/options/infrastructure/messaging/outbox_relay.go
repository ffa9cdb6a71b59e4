// Package messaging 发件箱中继：把与业务同事务写入的事件投递到 Kafka。
package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyfcoding/optionescrow/internal/options/domain"
	"github.com/wyfcoding/optionescrow/pkg/metrics"
	"github.com/wyfcoding/optionescrow/pkg/mq"
)

// Publisher 事件投递目标
type Publisher interface {
	Publish(ctx context.Context, msgs ...mq.Message) error
}

// OutboxRelay 至少一次投递；消费方按 message_id 去重
type OutboxRelay struct {
	store     domain.OutboxStore
	publisher Publisher
	batchSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewOutboxRelay(store domain.OutboxStore, publisher Publisher, batchSize int, m *metrics.Metrics, logger *slog.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		batchSize: batchSize,
		metrics:   m,
		logger:    logger.With("module", "outbox"),
	}
}

// RelayOnce 投递一批待发消息，返回成功投递的条数
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.store.Pending(ctx, r.batchSize)
	if err != nil {
		r.metrics.RecordOutbox(0, err)
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	msgs := make([]mq.Message, 0, len(pending))
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		msgs = append(msgs, mq.Message{
			Key:   p.Key,
			Value: p.Payload,
			Headers: map[string]string{
				"event_type": p.EventType,
				"message_id": p.ID,
			},
		})
		ids = append(ids, p.ID)
	}

	if err := r.publisher.Publish(ctx, msgs...); err != nil {
		r.metrics.RecordOutbox(0, err)
		r.logger.WarnContext(ctx, "outbox publish failed", "count", len(msgs), "error", err)
		return 0, err
	}
	if err := r.store.MarkSent(ctx, ids, time.Now()); err != nil {
		r.metrics.RecordOutbox(0, err)
		r.logger.ErrorContext(ctx, "outbox mark sent failed, messages will be redelivered", "count", len(ids), "error", err)
		return 0, err
	}
	r.metrics.RecordOutbox(len(ids), nil)
	r.logger.DebugContext(ctx, "outbox relayed", "count", len(ids))
	return len(ids), nil
}
