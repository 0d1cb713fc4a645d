package dto

import "time"

// SendMessageReq 发送消息请求体
type SendMessageReq struct {
	Content string `json:"content"`
}

// ReactReq 回应请求体
type ReactReq struct {
	Emoji string `json:"emoji" binding:"required"`
}

// ListMessagesReq 历史消息参数，before 为当前最旧消息的 seq
type ListMessagesReq struct {
	Before uint64 `form:"before"`
	Limit  int    `form:"limit"` // 超出范围由服务层截断
}

// ReactionDTO 回应
type ReactionDTO struct {
	Emoji   string   `json:"emoji"`
	UserIDs []uint64 `json:"user_ids"`
}

// MessageDTO 消息明细响应
type MessageDTO struct {
	ID             string         `json:"id"`
	ConversationID uint64         `json:"conversation_id"`
	SenderID       uint64         `json:"sender_id"`
	MsgType        string         `json:"msg_type"`
	Content        string         `json:"content"`
	IsDeleted      bool           `json:"is_deleted"`
	Reactions      []*ReactionDTO `json:"reactions"`
	Seq            uint64         `json:"seq"`
	CreatedAt      time.Time      `json:"created_at"`
}

// MessagePageDTO 消息分页，page 内按 seq 升序
type MessagePageDTO struct {
	Page           []*MessageDTO `json:"page"`
	ContinueCursor uint64        `json:"continue_cursor"`
	IsDone         bool          `json:"is_done"`
}

// TypingDTO 正在输入的用户名
type TypingDTO struct {
	Names []string `json:"names"`
}
