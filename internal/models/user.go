package models

import "time"

// User represents an account holder.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    *time.Time // 最近成功登录时间
	IsAdmin      bool       `gorm:"default:false"`
	IsActive     bool       `gorm:"default:true"`

	FailedLoginAttempts int        `gorm:"default:0"`     // 连续登录失败次数
	LockedUntil         *time.Time `gorm:"index"`         // 临时锁定到期时间
	PermanentLock       bool       `gorm:"default:false"` // 永久锁定，只能由管理员解除
}
