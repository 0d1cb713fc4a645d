package security

import (
	"github.com/golang-jwt/jwt/v5"
)

// IdentityClaims 身份提供方签发的 Token 声明，sub 为外部身份标识
type IdentityClaims struct {
	Name    string  `json:"name,omitempty"`
	Email   string  `json:"email,omitempty"`
	Picture *string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Identity 已认证的外部身份
type Identity struct {
	Subject string
	Name    string
	Email   string
	Picture *string
}

// Identity 从声明中提取身份
func (c *IdentityClaims) Identity() *Identity {
	return &Identity{
		Subject: c.Subject,
		Name:    c.Name,
		Email:   c.Email,
		Picture: c.Picture,
	}
}
