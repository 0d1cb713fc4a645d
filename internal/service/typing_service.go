package service

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/pkg/consts"
	"Tandem/internal/pkg/redis"
	"Tandem/internal/repository"
	"context"
)

// TypingService 正在输入信号
type TypingService interface {
	Set(ctx context.Context, userID, convID uint64) error
	Get(ctx context.Context, userID, convID uint64) (*dto.TypingDTO, error)
}

type typingServiceImpl struct {
	typingRepo redis.TypingRepo
	convRepo   repository.ConversationRepo
	userRepo   repository.UserRepo
	publisher  EventPublisher
	opts       Options
}

func NewTypingService(typingRepo redis.TypingRepo, convRepo repository.ConversationRepo, userRepo repository.UserRepo,
	publisher EventPublisher, opts Options) TypingService {
	return &typingServiceImpl{
		typingRepo: typingRepo,
		convRepo:   convRepo,
		userRepo:   userRepo,
		publisher:  publisher,
		opts:       opts,
	}
}

// Set 标记正在输入，有效期为 TypingTTL
func (s *typingServiceImpl) Set(ctx context.Context, userID, convID uint64) error {
	if userID == 0 {
		return UnauthorizedError
	}
	isMember, err := s.convRepo.IsMember(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotMember
	}

	now := s.opts.now()
	if err = s.typingRepo.Set(ctx, convID, userID, now.Add(s.opts.TypingTTL)); err != nil {
		return err
	}

	memberIDs, err := s.convRepo.GetMemberIDs(ctx, convID)
	if err != nil {
		return err
	}
	publishEvent(ctx, s.publisher, others(memberIDs, userID), &dto.EventDTO{
		Type:           consts.EventTyping,
		ConversationID: convID,
		UserID:         userID,
		At:             now.UnixMilli(),
	})
	return nil
}

// Get 返回除自己以外仍在输入的用户名
func (s *typingServiceImpl) Get(ctx context.Context, userID, convID uint64) (*dto.TypingDTO, error) {
	res := &dto.TypingDTO{Names: make([]string, 0)}
	if userID == 0 {
		return res, nil
	}
	isMember, err := s.convRepo.IsMember(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return res, nil
	}

	ids, err := s.typingRepo.GetActive(ctx, convID, s.opts.now())
	if err != nil {
		return nil, err
	}
	ids = others(ids, userID)
	if len(ids) == 0 {
		return res, nil
	}

	users, err := s.userRepo.GetUserByIds(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uint64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	for _, id := range ids {
		if name, ok := names[id]; ok {
			res.Names = append(res.Names, name)
		}
	}
	return res, nil
}
