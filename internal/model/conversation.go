package model

import (
	"fmt"
	"time"
)

// Conversation 会话主表
type Conversation struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	IsGroup   bool      `gorm:"not null;default:0" json:"isGroup"`
	Name      *string   `gorm:"type:varchar(100)" json:"name"`
	PeerKey   *string   `gorm:"uniqueIndex;type:varchar(64)" json:"peerKey"` // 单聊: minUID_maxUID
	MaxMsgSeq uint64    `gorm:"not null;default:0" json:"maxMsgSeq"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"` // 最近活跃时间
}

func (Conversation) TableName() string { return "conversations" }

// ConversationMember 会话成员表，承载未读状态
type ConversationMember struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64    `gorm:"uniqueIndex:idx_conv_user" json:"conversationId"`
	UserID         uint64    `gorm:"uniqueIndex:idx_conv_user;index:idx_user_activity,priority:1" json:"userId"`
	HasUnread      bool      `gorm:"not null;default:0" json:"hasUnread"`
	UnreadCount    uint64    `gorm:"not null;default:0" json:"unreadCount"`
	LastActivityAt time.Time `gorm:"index:idx_user_activity,priority:2" json:"lastActivityAt"`
	JoinedAt       time.Time `json:"joinedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (ConversationMember) TableName() string { return "conversation_members" }

// PeerKey 生成单聊唯一标识，与参与者顺序无关
func PeerKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

// ParsePeerID 从单聊标识中解析出对方 ID
func ParsePeerID(peerKey string, currentUserID uint64) (uint64, error) {
	var u1, u2 uint64
	if _, err := fmt.Sscanf(peerKey, "%d_%d", &u1, &u2); err != nil {
		return 0, err
	}
	if u1 == currentUserID {
		return u2, nil
	}
	return u1, nil
}
