package dto

import "time"

// UserDTO 用户资料
type UserDTO struct {
	ID       uint64    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Image    *string   `json:"image,omitempty"`
	LastSeen time.Time `json:"last_seen"`
	IsOnline bool      `json:"is_online"`
}

// PresenceReq 心跳请求，online 为 false 表示会话结束
type PresenceReq struct {
	Online *bool `json:"online"`
}

// SearchUserReq 搜索用户
type SearchUserReq struct {
	Query string `form:"q" validate:"max=100"`
}
