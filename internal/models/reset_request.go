package models

import "time"

// Reset request statuses. A request is resolved exactly once:
// pending -> approved or pending -> rejected.
const (
	ResetStatusPending  = "pending"
	ResetStatusApproved = "approved"
	ResetStatusRejected = "rejected"
)

// ResetRequest is a user's plea for administrative unlock or recovery help.
type ResetRequest struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        uint      `gorm:"index;not null"`
	RequestReason string    `gorm:"size:1024"`
	Timestamp     time.Time `gorm:"index"`
	Status        string    `gorm:"size:16;index;default:pending"`
	ResolvedBy    *uint                  // 处理该请求的管理员 ID
	ResolvedAt    *time.Time

	User User `gorm:"constraint:OnDelete:CASCADE"`
}
