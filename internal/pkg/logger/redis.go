package logger

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSlowThreshold = 50 * time.Millisecond
	redisMaxArgsLen    = 256
)

// 订阅类命令会长时间阻塞，不计入慢查询
var redisBlockingCmds = map[string]struct{}{
	"subscribe":    {},
	"psubscribe":   {},
	"unsubscribe":  {},
	"punsubscribe": {},
}

type RedisLoggerHook struct {
	slow time.Duration
}

func NewRedisLogger() *RedisLoggerHook {
	return &RedisLoggerHook{slow: redisSlowThreshold}
}

// DialHook 记录建连失败
func (s *RedisLoggerHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			log.ErrorContext(ctx, "Redis Dial Error",
				log.String("addr", addr),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return conn, err
	}
}

// ProcessHook 记录失败与慢命令，鉴权参数与超长事件负载不落日志
func (s *RedisLoggerHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		name := cmd.Name()
		if _, ok := redisBlockingCmds[name]; ok && err == nil {
			return nil
		}
		if err == nil && elapsed < s.slow {
			return nil
		}
		if err != nil && isExpectedRedisError(name, err) {
			return err
		}

		fields := []any{
			log.String("command", name),
			log.String("args", formatRedisArgs(cmd)),
			log.Duration("latency", elapsed),
		}
		if err != nil {
			log.ErrorContext(ctx, "Redis Error", append(fields, log.Any("err", err))...)
			return err
		}
		log.WarnContext(ctx, "Redis Slow", fields...)
		return nil
	}
}

// ProcessPipelineHook 批量推送事件走 pipeline，只记录失败与慢批次
func (s *RedisLoggerHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			log.ErrorContext(ctx, "Redis Pipeline Error",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", elapsed),
				log.Any("err", err))
		case elapsed >= s.slow:
			log.WarnContext(ctx, "Redis Pipeline Slow",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", elapsed))
		}
		return err
	}
}

func isExpectedRedisError(name string, err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	// 部分服务端不支持 CLIENT SETINFO
	return name == "client" && strings.Contains(err.Error(), "setinfo")
}

func formatRedisArgs(cmd redis.Cmder) string {
	switch cmd.Name() {
	case "auth", "hello":
		return "[PROTECTED]"
	}
	args := fmt.Sprint(cmd.Args())
	if len(args) > redisMaxArgsLen {
		return args[:redisMaxArgsLen] + "..."
	}
	return args
}
