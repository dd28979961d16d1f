package models

import "time"

// Failure reasons recorded with unsuccessful login attempts.
const (
	ReasonUnknownUser            = "unknown-user"
	ReasonPermanentLock          = "permanent-lock"
	ReasonTemporaryLock          = "temporary-lock"
	ReasonBadCredential          = "bad-credential"
	ReasonBadCredentialNowLocked = "bad-credential-now-locked"
)

// LoginHistory records every login attempt, success or failure.
// Append-only; rows are never updated or deleted.
type LoginHistory struct {
	ID            uint       `gorm:"primaryKey"`
	UserID        *uint      `gorm:"index"` // 未知用户名时为 nil
	IPAddress     string     `gorm:"size:64"`
	UserAgent     string     `gorm:"size:255"`
	Timestamp     time.Time  `gorm:"index"`
	Success       bool
	FailureReason string     `gorm:"size:64"` // 成功时为空

	User *User `gorm:"constraint:OnDelete:CASCADE"`
}
