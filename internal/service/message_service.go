package service

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/pkg/consts"
	"Tandem/internal/pkg/mongo"
	"Tandem/internal/pkg/redis"
	"Tandem/internal/pkg/util"
	"Tandem/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

const maxEmojiBytes = 32

// MessageService 消息明细：历史、发送、撤回、回应
type MessageService interface {
	List(ctx context.Context, userID, convID uint64, req *dto.ListMessagesReq) (*dto.MessagePageDTO, error)
	Send(ctx context.Context, userID, convID uint64, content string) (*dto.MessageDTO, error)
	Delete(ctx context.Context, userID uint64, messageID string) error
	React(ctx context.Context, userID uint64, messageID string, emoji string) (*dto.MessageDTO, error)
}

type messageServiceImpl struct {
	convRepo    repository.ConversationRepo
	messageRepo mongo.MessageRepo
	typingRepo  redis.TypingRepo
	publisher   EventPublisher
	opts        Options
}

func NewMessageService(convRepo repository.ConversationRepo, messageRepo mongo.MessageRepo, typingRepo redis.TypingRepo,
	publisher EventPublisher, opts Options) MessageService {
	return &messageServiceImpl{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		typingRepo:  typingRepo,
		publisher:   publisher,
		opts:        opts,
	}
}

// List 拉取历史，页内按 seq 升序
func (s *messageServiceImpl) List(ctx context.Context, userID, convID uint64, req *dto.ListMessagesReq) (*dto.MessagePageDTO, error) {
	res := &dto.MessagePageDTO{Page: make([]*dto.MessageDTO, 0), IsDone: true}
	if userID == 0 {
		return res, nil
	}
	if req == nil {
		req = &dto.ListMessagesReq{}
	}
	isMember, err := s.convRepo.IsMember(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	limit := util.ClampPageSize(req.Limit, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	models, err := s.messageRepo.GetHistory(ctx, convID, req.Before, limit+1)
	if err != nil {
		return nil, err
	}
	if len(models) > limit {
		models = models[:limit]
		res.IsDone = false
	}

	for i := len(models) - 1; i >= 0; i-- {
		res.Page = append(res.Page, toMessageDTO(models[i]))
	}
	if len(res.Page) > 0 {
		res.ContinueCursor = res.Page[0].Seq
	}
	return res, nil
}

// Send 发送文本消息，计数与消息写入在同一事务内完成
func (s *messageServiceImpl) Send(ctx context.Context, userID, convID uint64, content string) (*dto.MessageDTO, error) {
	if userID == 0 {
		return nil, UnauthorizedError
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if s.opts.MaxMessageLength > 0 && utf8.RuneCountInString(content) > s.opts.MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	isMember, err := s.convRepo.IsMember(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	now := s.opts.now()
	msg := &mongo.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: convID,
		SenderID:       userID,
		MsgType:        mongo.MsgTypeText,
		Content:        content,
		Reactions:      []mongo.Reaction{},
		CreatedAt:      now,
	}
	persisted := false
	err = s.convRepo.AppendMessage(ctx, convID, userID, now, func(seq uint64) error {
		msg.Seq = seq
		err := s.messageRepo.SaveMessage(ctx, msg)
		if mongo.IsDuplicateKey(err) {
			// seq 尚未提交，占用它的只能是上次失败发送的残留
			log.WarnContext(ctx, "stale message occupies seq, replacing", "conversation_id", convID, "seq", seq)
			if err = s.messageRepo.DeleteBySeq(ctx, convID, seq); err != nil {
				return err
			}
			err = s.messageRepo.SaveMessage(ctx, msg)
		}
		persisted = err == nil
		return err
	})
	if err != nil {
		if persisted {
			s.discard(ctx, msg)
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("发送消息失败: %w", err)
	}

	if s.typingRepo != nil {
		if err = s.typingRepo.Clear(ctx, convID, userID); err != nil {
			log.WarnContext(ctx, "clear typing marker failed", "conversation_id", convID, "err", err)
		}
	}
	s.notify(ctx, s.event(consts.EventMessageNew, msg, userID))

	return toMessageDTO(msg), nil
}

// Delete 撤回自己的消息，重复撤回不报错
func (s *messageServiceImpl) Delete(ctx context.Context, userID uint64, messageID string) error {
	if userID == 0 {
		return UnauthorizedError
	}
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return ErrForbidden
	}
	if msg.IsDeleted {
		return nil
	}

	if err = s.messageRepo.MarkDeleted(ctx, msg.ID); err != nil {
		return fmt.Errorf("撤回消息失败: %w", err)
	}
	msg.IsDeleted = true
	msg.Content = ""
	s.notify(ctx, s.event(consts.EventMessageUpdated, msg, userID))
	return nil
}

// React 切换当前用户对 emoji 的回应
func (s *messageServiceImpl) React(ctx context.Context, userID uint64, messageID string, emoji string) (*dto.MessageDTO, error) {
	if userID == 0 {
		return nil, UnauthorizedError
	}
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiBytes {
		return nil, ErrEmojiInvalid
	}
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	isMember, err := s.convRepo.IsMember(ctx, msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}
	if msg.IsDeleted {
		return nil, ErrMessageDeleted
	}

	reactions, added := mongo.ToggleReaction(msg.Reactions, emoji, userID)
	ok, err := s.messageRepo.UpdateReactions(ctx, msg.ID, reactions, msg.Version)
	if err != nil {
		return nil, fmt.Errorf("更新回应失败: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentUpdate
	}
	msg.Reactions = reactions
	msg.Version++

	evt := s.event(consts.EventMessageUpdated, msg, userID)
	evt.Emoji = emoji
	evt.Added = &added
	s.notify(ctx, evt)
	return toMessageDTO(msg), nil
}

// discard 删除已写入但事务未提交的消息
func (s *messageServiceImpl) discard(ctx context.Context, msg *mongo.Message) {
	if err := s.messageRepo.DeleteByID(context.WithoutCancel(ctx), msg.ID); err != nil {
		log.ErrorContext(ctx, "discard uncommitted message failed",
			"conversation_id", msg.ConversationID, "seq", msg.Seq, "message_id", msg.ID.Hex(), "err", err)
	}
}

func (s *messageServiceImpl) event(eventType string, msg *mongo.Message, actorID uint64) *dto.EventDTO {
	return &dto.EventDTO{
		Type:           eventType,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID.Hex(),
		UserID:         actorID,
		At:             s.opts.now().UnixMilli(),
	}
}

// notify 通知会话全部成员
func (s *messageServiceImpl) notify(ctx context.Context, evt *dto.EventDTO) {
	memberIDs, err := s.convRepo.GetMemberIDs(ctx, evt.ConversationID)
	if err != nil {
		log.WarnContext(ctx, "load conversation members failed", "conversation_id", evt.ConversationID, "err", err)
		return
	}
	publishEvent(ctx, s.publisher, memberIDs, evt)
}
