package models

import "time"

// Session stores issued login sessions (for logout, invalidation, audit).
type Session struct {
	ID        string `gorm:"primaryKey;size:64"` // e.g. UUID
	UserID    uint   `gorm:"index;not null"`
	Token     string `gorm:"size:64;uniqueIndex;not null"`
	IPAddress string `gorm:"size:64"`
	UserAgent string `gorm:"size:255"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`
	IsActive  bool      `gorm:"index;not null"`

	User User `gorm:"constraint:OnDelete:CASCADE"`
}

// Valid reports whether the session can still authenticate requests.
// 登出只翻转 IsActive，行本身保留用于审计。
func (s *Session) Valid(now time.Time) bool {
	return s.IsActive && s.ExpiresAt.After(now)
}
