// Package mq Kafka 生产者封装；同一 key 的消息进入同一分区以保持顺序
package mq

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/optionescrow/pkg/logger"
)

// Config Kafka 生产者配置
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	MaxAttempts  int
}

// Message 待发送消息
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Writer kafka.Writer 的最小接口，测试中可替换
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer Kafka 生产者
type Producer struct {
	writer Writer
	topic  string
}

// NewProducer 创建 Kafka 生产者
func NewProducer(cfg Config) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		BatchTimeout:           cfg.BatchTimeout,
	}
	logger.Info(context.Background(), "kafka producer created", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &Producer{writer: writer, topic: cfg.Topic}
}

// NewProducerWithWriter 使用自定义 writer
func NewProducerWithWriter(w Writer, topic string) *Producer {
	return &Producer{writer: w, topic: topic}
}

// Publish 批量同步发送，全部确认后返回
func (p *Producer) Publish(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]kafka.Message, 0, len(msgs))
	for _, m := range msgs {
		km := kafka.Message{Key: []byte(m.Key), Value: m.Value}
		for k, v := range m.Headers {
			km.Headers = append(km.Headers, kafka.Header{Key: k, Value: []byte(v)})
		}
		out = append(out, km)
	}
	if err := p.writer.WriteMessages(ctx, out...); err != nil {
		logger.Error(ctx, "failed to send kafka messages", "topic", p.topic, "count", len(out), "error", err)
		return err
	}
	logger.Debug(ctx, "kafka messages sent", "topic", p.topic, "count", len(out))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	return p.writer.Close()
}
