// internal/service/promo/infrastructure/kafka_publisher.go
package infrastructure

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"promohub/internal/pkg/mq"
	"promohub/internal/service/promo/domain"
)

// KafkaPromoPublisher 把促销事件写入 promo-topic。
// 消息以 promoId 为 Key 做哈希分区，同一条促销的事件保持分区内有序。
//
// 事务会话的实现方式是缓冲后整批提交：Publish 只进缓冲，Commit 把整批
// 消息用一次 WriteMessages 写入。对调用方来说这一批要么整体成功要么整体
// 失败，Abort 则直接丢弃缓冲——提交前不会有任何消息离开进程。
type KafkaPromoPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPromoPublisher(writer *kafka.Writer) *KafkaPromoPublisher {
	return &KafkaPromoPublisher{writer: writer}
}

func (p *KafkaPromoPublisher) Begin(ctx context.Context) (domain.EventSession, error) {
	return &publishSession{writer: p.writer}, nil
}

// Publish 一次性发送，供 fire-and-forget 路径使用。
func (p *KafkaPromoPublisher) Publish(ctx context.Context, event *domain.PromoEvent) error {
	msg, err := buildMessage(ctx, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "failed to publish %s event for promo %s", event.EventType, event.Payload.PromoID)
	}
	return nil
}

type publishSession struct {
	writer *kafka.Writer

	mu       sync.Mutex
	messages []kafka.Message
	done     bool
}

func (s *publishSession) Publish(ctx context.Context, event *domain.PromoEvent) error {
	msg, err := buildMessage(ctx, event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.New("event session already closed")
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *publishSession) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return errors.New("event session already closed")
	}
	s.done = true

	if len(s.messages) == 0 {
		return nil
	}
	if err := s.writer.WriteMessages(ctx, s.messages...); err != nil {
		return errors.Wrap(err, "failed to commit event batch")
	}
	return nil
}

func (s *publishSession) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.messages = nil
	return nil
}

func buildMessage(ctx context.Context, event *domain.PromoEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "failed to marshal promo event")
	}
	msg := kafka.Message{
		Key:   []byte(event.Payload.PromoID),
		Value: value,
	}
	mq.InjectTraceContext(ctx, &msg.Headers)
	return msg, nil
}
