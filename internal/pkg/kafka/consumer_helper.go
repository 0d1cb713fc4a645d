package kafka

import (
	"context"
	log "log/slog"
	"time"

	"github.com/IBM/sarama"
)

const (
	batchSize    = 32
	batchTimeout = 200 * time.Millisecond

	retryInitial = 100 * time.Millisecond
	retryMax     = 5 * time.Second
)

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullMessageBatch 攒批消费，凑满 batchSize 或超时即提交
func pullMessageBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, batchSize)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				processBatch(session, batch, logic)
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				processBatch(session, batch, logic)
				batch = batch[:0]
				ticker.Reset(batchTimeout)
			}
		case <-ticker.C:
			processBatch(session, batch, logic)
			batch = batch[:0]
		case <-session.Context().Done():
			return nil
		}
	}
}

// processBatch 同一分区内按 offset 顺序处理，保证同一会话的事件不乱序
// 单条失败时退避重试，会话结束则放弃本批剩余消息且不提交
func processBatch(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) {
	ctx := session.Context()
	for _, m := range messages {
		if !retryUntilDone(ctx, m, logic) {
			return
		}
		session.MarkMessage(m, "")
	}
}

func retryUntilDone(ctx context.Context, m *sarama.ConsumerMessage, logic LogicFunc) bool {
	interval := retryInitial
	for {
		err := logic(ctx, m)
		if err == nil {
			return true
		}
		log.ErrorContext(ctx, "process message error", "topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "err", err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
		interval *= 2
		if interval > retryMax {
			interval = retryMax
		}
	}
}
