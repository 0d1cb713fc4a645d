package service

import (
	"Tandem/internal/api/config"
	"Tandem/internal/api/dto"
	"Tandem/internal/model"
	"Tandem/internal/pkg/mongo"
	"context"
	log "log/slog"
	"time"

	"github.com/jinzhu/copier"
)

// EventPublisher 变更事件推送
type EventPublisher interface {
	Publish(ctx context.Context, userIDs []uint64, evt *dto.EventDTO) error
}

// Options 即时通讯服务参数
type Options struct {
	OnlineThreshold  time.Duration
	TypingTTL        time.Duration
	MaxMessageLength int
	DefaultPageSize  int
	MaxPageSize      int
	Now              func() time.Time
}

// OptionsFromConfig 由配置构造服务参数
func OptionsFromConfig(cfg config.IMConfig) Options {
	return Options{
		OnlineThreshold:  time.Duration(cfg.OnlineThresholdMs) * time.Millisecond,
		TypingTTL:        time.Duration(cfg.TypingTTLMs) * time.Millisecond,
		MaxMessageLength: cfg.MaxMessageLength,
		DefaultPageSize:  cfg.DefaultPageSize,
		MaxPageSize:      cfg.MaxPageSize,
		Now:              time.Now,
	}
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// publishEvent 推送失败只记录日志，不影响已完成的写操作
func publishEvent(ctx context.Context, p EventPublisher, userIDs []uint64, evt *dto.EventDTO) {
	if p == nil || len(userIDs) == 0 {
		return
	}
	if err := p.Publish(ctx, userIDs, evt); err != nil {
		log.ErrorContext(ctx, "Failed to publish event", "type", evt.Type, "conversation_id", evt.ConversationID, "err", err)
	}
}

func toUserDTO(u *model.User, now time.Time, threshold time.Duration) *dto.UserDTO {
	if u == nil {
		return nil
	}
	d := &dto.UserDTO{}
	_ = copier.Copy(d, u)
	d.IsOnline = u.IsOnline(now, threshold)
	return d
}

func toMessageDTO(m *mongo.Message) *dto.MessageDTO {
	if m == nil {
		return nil
	}
	d := &dto.MessageDTO{
		ID:             m.ID.Hex(),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		MsgType:        m.MsgType,
		Content:        m.Content,
		IsDeleted:      m.IsDeleted,
		Reactions:      make([]*dto.ReactionDTO, 0, len(m.Reactions)),
		Seq:            m.Seq,
		CreatedAt:      m.CreatedAt,
	}
	if m.IsDeleted {
		d.Content = ""
	}
	for _, r := range m.Reactions {
		d.Reactions = append(d.Reactions, &dto.ReactionDTO{
			Emoji:   r.Emoji,
			UserIDs: append([]uint64(nil), r.UserIDs...),
		})
	}
	return d
}

func others(ids []uint64, self uint64) []uint64 {
	res := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id != self {
			res = append(res, id)
		}
	}
	return res
}
