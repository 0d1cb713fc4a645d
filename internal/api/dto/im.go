package dto

import "time"

// GetOrCreateConversationReq 获取或创建单聊
type GetOrCreateConversationReq struct {
	OtherUserID uint64 `json:"other_user_id" binding:"required"`
}

// ConversationIDDTO 会话 ID 响应
type ConversationIDDTO struct {
	ConversationID uint64 `json:"conversation_id"`
}

// ConversationDTO 会话列表项响应
type ConversationDTO struct {
	ConversationID uint64      `json:"conversation_id"`
	IsGroup        bool        `json:"is_group"`
	Name           *string     `json:"name,omitempty"`
	OtherUser      *UserDTO    `json:"other_user"`
	LastMessage    *MessageDTO `json:"last_message"`
	HasUnread      bool        `json:"has_unread"`
	UnreadCount    uint64      `json:"unread_count"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ConversationPageDTO 会话分页
type ConversationPageDTO struct {
	Page           []*ConversationDTO `json:"page"`
	ContinueCursor string             `json:"continue_cursor"`
	IsDone         bool               `json:"is_done"`
}

// PageReq 游标分页参数
type PageReq struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"` // 超出范围由服务层截断
}
