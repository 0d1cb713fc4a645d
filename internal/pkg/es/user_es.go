package es

import (
	"Tandem/internal/model"
)

// UserES 对应 user_index 的文档结构
type UserES struct {
	ID    uint64  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

func NewUserES(u *model.User) *UserES {
	return &UserES{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Image: u.Image,
	}
}
