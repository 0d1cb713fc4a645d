package dto

// EventDTO 推送给订阅者的变更通知，客户端据此重新拉取对应查询
type EventDTO struct {
	Type           string `json:"type"`
	ConversationID uint64 `json:"conversation_id"`
	MessageID      string `json:"message_id,omitempty"`
	UserID         uint64 `json:"user_id,omitempty"`
	Emoji          string `json:"emoji,omitempty"`
	Added          *bool  `json:"added,omitempty"` // 回应事件：true 为新增，false 为取消
	At             int64  `json:"at"`
}

// EventEnvelope 事件总线上传输的载体
type EventEnvelope struct {
	UserIDs []uint64  `json:"user_ids"`
	Event   *EventDTO `json:"event"`
}

// ClientFrame WebSocket 客户端上行帧
type ClientFrame struct {
	Type           string `json:"type"` // select | typing | heartbeat
	ConversationID uint64 `json:"conversation_id"`
}
