package redis

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/pkg/consts"
	"context"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Publisher 将变更事件推送到用户个人频道
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// UserChannel 用户个人频道名
func UserChannel(userID uint64) string {
	return consts.IMUserKey + strconv.FormatUint(userID, 10)
}

// Publish 序列化事件后推送给每个目标用户
func (s *Publisher) Publish(ctx context.Context, userIDs []uint64, evt *dto.EventDTO) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.PublishRaw(ctx, userIDs, data)
}

// PublishRaw 推送已序列化的事件
func (s *Publisher) PublishRaw(ctx context.Context, userIDs []uint64, data []byte) error {
	if len(userIDs) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for _, uid := range userIDs {
		pipe.Publish(ctx, UserChannel(uid), data)
	}
	_, err := pipe.Exec(ctx)
	return err
}
