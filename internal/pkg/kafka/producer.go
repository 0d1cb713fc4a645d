package kafka

import (
	"Tandem/internal/api/config"
	"Tandem/internal/api/dto"
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

// Producer 将变更事件写入 Kafka，由 EventHandler 扇出到 Redis
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, newSaramaConfig(cfg))
	if err != nil {
		return nil, err
	}
	return NewProducerWith(producer, cfg.Topic), nil
}

func NewProducerWith(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// Publish 以会话 ID 作为分区键
func (s *Producer) Publish(ctx context.Context, userIDs []uint64, evt *dto.EventDTO) error {
	if len(userIDs) == 0 {
		return nil
	}
	data, err := json.Marshal(&dto.EventEnvelope{UserIDs: userIDs, Event: evt})
	if err != nil {
		return err
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(evt.ConversationID, 10)),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return fmt.Errorf("kafka 发送事件失败: %w", err)
	}
	return nil
}

func (s *Producer) Close() error {
	return s.producer.Close()
}
