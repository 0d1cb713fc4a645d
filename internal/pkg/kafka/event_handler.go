package kafka

import (
	"Tandem/internal/api/dto"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// Fanout 将事件推送到用户个人频道
type Fanout interface {
	PublishRaw(ctx context.Context, userIDs []uint64, data []byte) error
}

// EventHandler 消费事件总线并扇出到 Redis
type EventHandler struct {
	fanout Fanout
}

func NewEventHandler(fanout Fanout) *EventHandler {
	return &EventHandler{fanout: fanout}
}

func (s *EventHandler) Setup(sarama.ConsumerGroupSession) error {
	log.Info("im event consumer setup")
	return nil
}

func (s *EventHandler) Cleanup(sarama.ConsumerGroupSession) error {
	log.Info("im event consumer cleanup")
	return nil
}

func (s *EventHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	return pullMessageBatch(session, claim, s.handle)
}

// handle 无法解析的消息直接跳过，推送失败交给批处理重试
func (s *EventHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var envelope dto.EventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		log.Error("unmarshal event envelope error", "offset", msg.Offset, "err", err)
		return nil
	}
	if envelope.Event == nil || len(envelope.UserIDs) == 0 {
		return nil
	}
	data, err := json.Marshal(envelope.Event)
	if err != nil {
		return nil
	}
	return s.fanout.PublishRaw(ctx, envelope.UserIDs, data)
}
