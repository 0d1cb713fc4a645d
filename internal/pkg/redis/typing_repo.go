package redis

import (
	"Tandem/internal/pkg/consts"
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypingRepo 输入状态标记，score 为过期时间 (unix ms)
// 过期成员不会被清理，读取时按时间过滤
type TypingRepo interface {
	Set(ctx context.Context, convID, userID uint64, expiresAt time.Time) error
	Clear(ctx context.Context, convID, userID uint64) error
	GetActive(ctx context.Context, convID uint64, now time.Time) ([]uint64, error)
}

type typingRepoImpl struct {
	rdb *redis.Client
}

func NewTypingRepo(rdb *redis.Client) TypingRepo {
	return &typingRepoImpl{rdb: rdb}
}

func typingKey(convID uint64) string {
	return consts.IMTypingKey + strconv.FormatUint(convID, 10)
}

// Set 写入或刷新过期时间
func (s *typingRepoImpl) Set(ctx context.Context, convID, userID uint64, expiresAt time.Time) error {
	return s.rdb.ZAdd(ctx, typingKey(convID), redis.Z{
		Score:  float64(expiresAt.UnixMilli()),
		Member: strconv.FormatUint(userID, 10),
	}).Err()
}

// Clear 将已存在的标记立即置为过期
func (s *typingRepoImpl) Clear(ctx context.Context, convID, userID uint64) error {
	return s.rdb.ZAddXX(ctx, typingKey(convID), redis.Z{
		Score:  0,
		Member: strconv.FormatUint(userID, 10),
	}).Err()
}

// GetActive 返回 expiresAt > now 的用户
func (s *typingRepoImpl) GetActive(ctx context.Context, convID uint64, now time.Time) ([]uint64, error) {
	members, err := s.rdb.ZRangeByScore(ctx, typingKey(convID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	res := make([]uint64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			continue
		}
		res = append(res, id)
	}
	return res, nil
}
