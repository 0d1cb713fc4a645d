package util

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor 将排序值数组编码为 Base64 字符串
func EncodeCursor(sortValues []interface{}) string {
	if len(sortValues) == 0 {
		return ""
	}
	b, _ := json.Marshal(sortValues)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor 将前端传来的 Base64 字符串解码为排序值数组
func DecodeCursor(cursor string) ([]interface{}, error) {
	if cursor == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, err
	}
	var sortValues []interface{}
	err = json.Unmarshal(b, &sortValues)
	return sortValues, err
}

// EncodeActivityCursor 会话列表游标：[活跃时间毫秒, 会话 ID]
func EncodeActivityCursor(at time.Time, convID uint64) string {
	return EncodeCursor([]interface{}{at.UnixMilli(), convID})
}

// DecodeActivityCursor 解析会话列表游标，空串返回 ok=false
func DecodeActivityCursor(cursor string) (at time.Time, convID uint64, ok bool, err error) {
	values, err := DecodeCursor(cursor)
	if err != nil {
		return time.Time{}, 0, false, ErrInvalidCursor
	}
	if values == nil {
		return time.Time{}, 0, false, nil
	}
	if len(values) != 2 {
		return time.Time{}, 0, false, ErrInvalidCursor
	}
	ms, ok1 := values[0].(float64)
	id, ok2 := values[1].(float64)
	if !ok1 || !ok2 || id < 0 {
		return time.Time{}, 0, false, ErrInvalidCursor
	}
	return time.UnixMilli(int64(ms)), uint64(id), true, nil
}
