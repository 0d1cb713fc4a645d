package kafka

import (
	"Tandem/internal/api/config"
	"context"
	log "log/slog"

	"github.com/IBM/sarama"
)

// ConsumerManager 管理事件总线消费者
type ConsumerManager struct {
	eventConsumer sarama.ConsumerGroup
	eventHandler  sarama.ConsumerGroupHandler
	topic         string
}

// NewConsumerManager 构造函数
func NewConsumerManager(cfg config.KafkaConfig, fanout Fanout) (*ConsumerManager, error) {
	saramaCfg := newSaramaConfig(cfg)

	eventConsumer, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, err
	}

	return &ConsumerManager{
		eventConsumer: eventConsumer,
		eventHandler:  NewEventHandler(fanout),
		topic:         cfg.Topic,
	}, nil
}

// Start 启动消费者，阻塞直到 ctx 结束
func (m *ConsumerManager) Start(ctx context.Context) error {
	go func() {
		for err := range m.eventConsumer.Errors() {
			log.Error("Error from consumer group", "err", err)
		}
	}()

	go func() {
		log.Info("IM event consumer started", "topic", m.topic)
		for {
			if err := m.eventConsumer.Consume(ctx, []string{m.topic}, m.eventHandler); err != nil {
				log.Error("Error from consumer", "err", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	<-ctx.Done()
	log.Info("Kafka Manager shutting down...")

	if err := m.eventConsumer.Close(); err != nil {
		log.Error("Failed to close event consumer", "err", err)
	}
	return nil
}
