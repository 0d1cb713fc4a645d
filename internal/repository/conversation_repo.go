package repository

import (
	"Tandem/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberCursor 会话列表分页游标
type MemberCursor struct {
	LastActivityAt time.Time
	ConversationID uint64
}

type ConversationRepo interface {
	CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error
	GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error)
	GetConversations(ctx context.Context, convIDs []uint64) ([]*model.Conversation, error)
	GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error)
	GetMember(ctx context.Context, convID, userID uint64) (*model.ConversationMember, error)
	GetMemberIDs(ctx context.Context, convID uint64) ([]uint64, error)
	IsMember(ctx context.Context, convID uint64, userID uint64) (bool, error)

	AppendMessage(ctx context.Context, convID, senderID uint64, now time.Time, persist func(seq uint64) error) error
	ResetUnread(ctx context.Context, convID, userID uint64, now time.Time) (bool, error)

	ListMembers(ctx context.Context, userID uint64, after *MemberCursor, limit int) ([]*model.ConversationMember, error)
	RepairUnreadFlags(ctx context.Context) (int64, error)
}

type conversationRepoImpl struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepoImpl{db: db}
}

// CreateConversation 开启事务创建会话及初始成员
func (s *conversationRepoImpl) CreateConversation(ctx context.Context, conv *model.Conversation, members []*model.ConversationMember) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, m := range members {
			m.ConversationID = conv.ID
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetConversation 根据会话 ID 获取会话，不存在时返回 nil
func (s *conversationRepoImpl) GetConversation(ctx context.Context, convID uint64) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).First(&conv, convID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

func (s *conversationRepoImpl) GetConversations(ctx context.Context, convIDs []uint64) ([]*model.Conversation, error) {
	convs := make([]*model.Conversation, 0, len(convIDs))
	if len(convIDs) == 0 {
		return convs, nil
	}
	err := s.db.WithContext(ctx).Where("id IN ?", convIDs).Find(&convs).Error
	return convs, err
}

// GetConversationByPeerKey 根据单聊标识获取会话，不存在时返回 nil
func (s *conversationRepoImpl) GetConversationByPeerKey(ctx context.Context, peerKey string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("peer_key = ?", peerKey).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetMember 获取成员行，不存在时返回 nil
func (s *conversationRepoImpl) GetMember(ctx context.Context, convID, userID uint64) (*model.ConversationMember, error) {
	var m model.ConversationMember
	err := s.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *conversationRepoImpl) GetMemberIDs(ctx context.Context, convID uint64) ([]uint64, error) {
	var ids []uint64
	err := s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ?", convID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// IsMember 检查用户是否是会话成员
func (s *conversationRepoImpl) IsMember(ctx context.Context, convID uint64, userID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&count).Error
	return count > 0, err
}

// AppendMessage 发送消息的原子部分：行锁会话、递增 seq、刷新活跃时间、累加对方未读
// persist 在事务内执行，返回错误时全部回滚
// 事务脱离请求上下文，persist 成功后提交不会因请求取消而中断
func (s *conversationRepoImpl) AppendMessage(ctx context.Context, convID, senderID uint64, now time.Time, persist func(seq uint64) error) error {
	return s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
		var conv model.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&conv, convID).Error
		if err != nil {
			return err
		}

		seq := conv.MaxMsgSeq + 1
		err = tx.Model(&model.Conversation{}).Where("id = ?", convID).
			Updates(map[string]interface{}{
				"max_msg_seq": seq,
				"updated_at":  now,
			}).Error
		if err != nil {
			return err
		}

		err = tx.Model(&model.ConversationMember{}).
			Where("conversation_id = ?", convID).
			Updates(map[string]interface{}{
				"last_activity_at": now,
				"updated_at":       now,
			}).Error
		if err != nil {
			return err
		}

		err = tx.Model(&model.ConversationMember{}).
			Where("conversation_id = ? AND user_id <> ?", convID, senderID).
			Updates(map[string]interface{}{
				"has_unread":   true,
				"unread_count": gorm.Expr("unread_count + 1"),
			}).Error
		if err != nil {
			return err
		}

		return persist(seq)
	})
}

// ResetUnread 清空未读，仅在当前存在未读时写入
func (s *conversationRepoImpl) ResetUnread(ctx context.Context, convID, userID uint64, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&model.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ? AND (has_unread = ? OR unread_count > 0)", convID, userID, true).
		Updates(map[string]interface{}{
			"has_unread":   false,
			"unread_count": 0,
			"updated_at":   now,
		})
	return result.RowsAffected > 0, result.Error
}

// ListMembers 按最近活跃时间倒序分页获取用户的会话成员行
func (s *conversationRepoImpl) ListMembers(ctx context.Context, userID uint64, after *MemberCursor, limit int) ([]*model.ConversationMember, error) {
	var members []*model.ConversationMember
	tx := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if after != nil {
		tx = tx.Where("((last_activity_at < ?) OR (last_activity_at = ? AND conversation_id < ?))",
			after.LastActivityAt, after.LastActivityAt, after.ConversationID)
	}
	err := tx.Order("last_activity_at DESC, conversation_id DESC").
		Limit(limit).
		Find(&members).Error
	return members, err
}

// RepairUnreadFlags 修复未读标记与未读数不一致的成员行
func (s *conversationRepoImpl) RepairUnreadFlags(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ConversationMember{}).
			Where("unread_count = 0 AND has_unread = ?", true).
			Update("has_unread", false)
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected

		res = tx.Model(&model.ConversationMember{}).
			Where("unread_count > 0 AND has_unread = ?", false).
			Update("has_unread", true)
		if res.Error != nil {
			return res.Error
		}
		total += res.RowsAffected
		return nil
	})
	return total, err
}
