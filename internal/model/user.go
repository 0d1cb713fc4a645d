package model

import (
	"time"
)

// User 本地用户，首次鉴权时由外部身份创建
type User struct {
	ID              uint64    `gorm:"primaryKey"`
	TokenIdentifier string    `gorm:"type:varchar(191);uniqueIndex:idx_token;not null"`
	Name            string    `gorm:"type:varchar(100);index;not null"`
	Email           string    `gorm:"type:varchar(191);not null;default:''"`
	Image           *string   `gorm:"type:varchar(512)"`
	LastSeen        time.Time `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (User) TableName() string {
	return "users"
}

// IsOnline 在线状态由最近活跃时间推导
func (u *User) IsOnline(now time.Time, threshold time.Duration) bool {
	return now.Sub(u.LastSeen) < threshold
}
