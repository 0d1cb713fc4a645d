package service

import (
	"Tandem/internal/api/dto"
	"Tandem/internal/model"
	"Tandem/internal/pkg/consts"
	"Tandem/internal/pkg/mongo"
	"Tandem/internal/pkg/util"
	"Tandem/internal/repository"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// IMService 会话目录：单聊创建、会话列表、已读
type IMService interface {
	GetOrCreateConversation(ctx context.Context, userID, otherUserID uint64) (uint64, error)
	GetConversationList(ctx context.Context, userID uint64, req *dto.PageReq) (*dto.ConversationPageDTO, error)
	MarkAsRead(ctx context.Context, userID, convID uint64) error
}

type imServiceImpl struct {
	convRepo    repository.ConversationRepo
	userRepo    repository.UserRepo
	messageRepo mongo.MessageRepo
	publisher   EventPublisher
	opts        Options
}

func NewIMService(convRepo repository.ConversationRepo, userRepo repository.UserRepo, messageRepo mongo.MessageRepo,
	publisher EventPublisher, opts Options) IMService {
	return &imServiceImpl{
		convRepo:    convRepo,
		userRepo:    userRepo,
		messageRepo: messageRepo,
		publisher:   publisher,
		opts:        opts,
	}
}

// GetOrCreateConversation 针对单聊：获取或创建会话，与参数顺序无关
func (s *imServiceImpl) GetOrCreateConversation(ctx context.Context, userID, otherUserID uint64) (uint64, error) {
	if userID == 0 {
		return 0, UnauthorizedError
	}
	if userID == otherUserID {
		return 0, ErrMessageSelf
	}
	other, err := s.userRepo.GetUserById(ctx, otherUserID)
	if err != nil {
		return 0, err
	}
	if other == nil {
		return 0, ErrUserNotFound
	}

	peerKey := model.PeerKey(userID, otherUserID)
	conv, err := s.convRepo.GetConversationByPeerKey(ctx, peerKey)
	if err != nil {
		return 0, err
	}
	if conv != nil {
		return conv.ID, nil
	}

	now := s.opts.now()
	newConv := &model.Conversation{
		PeerKey:   util.PtrString(peerKey),
		CreatedAt: now,
		UpdatedAt: now,
	}
	members := []*model.ConversationMember{
		{UserID: userID, LastActivityAt: now, JoinedAt: now},
		{UserID: otherUserID, LastActivityAt: now, JoinedAt: now},
	}
	err = s.convRepo.CreateConversation(ctx, newConv, members)
	if err == nil {
		return newConv.ID, nil
	}
	if !repository.IsDuplicateKey(err) {
		return 0, fmt.Errorf("创建会话失败: %w", err)
	}

	// 并发创建，读取胜出方写入的会话
	conv, err = s.convRepo.GetConversationByPeerKey(ctx, peerKey)
	if err != nil {
		return 0, err
	}
	if conv == nil {
		return 0, UnExpectedError
	}
	return conv.ID, nil
}

// GetConversationList 按最近活跃倒序分页获取会话列表，并补全对方资料与最新消息
func (s *imServiceImpl) GetConversationList(ctx context.Context, userID uint64, req *dto.PageReq) (*dto.ConversationPageDTO, error) {
	res := &dto.ConversationPageDTO{Page: make([]*dto.ConversationDTO, 0), IsDone: true}
	if userID == 0 {
		return res, nil
	}
	if req == nil {
		req = &dto.PageReq{}
	}

	var after *repository.MemberCursor
	at, convID, ok, err := util.DecodeActivityCursor(req.Cursor)
	if err != nil {
		return nil, ErrParamInvalid
	}
	if ok {
		after = &repository.MemberCursor{LastActivityAt: at, ConversationID: convID}
	}

	limit := util.ClampPageSize(req.Limit, s.opts.DefaultPageSize, s.opts.MaxPageSize)
	members, err := s.convRepo.ListMembers(ctx, userID, after, limit+1)
	if err != nil {
		return nil, err
	}
	if len(members) > limit {
		members = members[:limit]
		res.IsDone = false
	}
	if len(members) == 0 {
		return res, nil
	}

	convIDs := make([]uint64, 0, len(members))
	for _, m := range members {
		convIDs = append(convIDs, m.ConversationID)
	}
	convs, err := s.convRepo.GetConversations(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	convMap := make(map[uint64]*model.Conversation, len(convs))
	peerIDs := make([]uint64, 0, len(convs))
	peerOf := make(map[uint64]uint64, len(convs))
	for _, c := range convs {
		convMap[c.ID] = c
		if c.IsGroup || c.PeerKey == nil {
			continue
		}
		peerID, err := model.ParsePeerID(*c.PeerKey, userID)
		if err != nil {
			continue
		}
		peerOf[c.ID] = peerID
		peerIDs = append(peerIDs, peerID)
	}

	var (
		mu      sync.Mutex
		users   []*model.User
		latests = make(map[uint64]*mongo.Message, len(convIDs))
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.userRepo.GetUserByIds(gCtx, peerIDs)
		return err
	})
	for _, id := range convIDs {
		id := id
		g.Go(func() error {
			msg, err := s.messageRepo.GetLatest(gCtx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			latests[id] = msg
			mu.Unlock()
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	userMap := make(map[uint64]*model.User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}

	now := s.opts.now()
	for _, m := range members {
		conv, ok := convMap[m.ConversationID]
		if !ok {
			continue
		}
		d := &dto.ConversationDTO{
			ConversationID: conv.ID,
			IsGroup:        conv.IsGroup,
			Name:           conv.Name,
			LastMessage:    toMessageDTO(latests[conv.ID]),
			HasUnread:      m.HasUnread,
			UnreadCount:    m.UnreadCount,
			UpdatedAt:      conv.UpdatedAt,
		}
		if peerID, ok := peerOf[conv.ID]; ok {
			d.OtherUser = toUserDTO(userMap[peerID], now, s.opts.OnlineThreshold)
		}
		res.Page = append(res.Page, d)
	}

	if !res.IsDone {
		last := members[len(members)-1]
		res.ContinueCursor = util.EncodeActivityCursor(last.LastActivityAt, last.ConversationID)
	}
	return res, nil
}

// MarkAsRead 清空未读，非成员或无未读时静默返回
func (s *imServiceImpl) MarkAsRead(ctx context.Context, userID, convID uint64) error {
	if userID == 0 {
		return UnauthorizedError
	}
	now := s.opts.now()
	changed, err := s.convRepo.ResetUnread(ctx, convID, userID, now)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	memberIDs, err := s.convRepo.GetMemberIDs(ctx, convID)
	if err != nil {
		return err
	}
	publishEvent(ctx, s.publisher, others(memberIDs, userID), &dto.EventDTO{
		Type:           consts.EventConversationRead,
		ConversationID: convID,
		UserID:         userID,
		At:             now.UnixMilli(),
	})
	return nil
}

