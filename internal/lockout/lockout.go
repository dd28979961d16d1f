// Package lockout implements the account lockout policy as pure decision
// logic over a user's failed-attempt state. It performs no I/O; callers
// persist the mutated user in the same transaction as the decision.
package lockout

import (
	"time"

	"github.com/shimesaba-type0/openlockey/internal/models"
)

// Policy holds the configured lockout thresholds.
type Policy struct {
	MaxAttempts  int           // 连续失败多少次触发临时锁定
	LockDuration time.Duration // 临时锁定时长
}

// New returns a policy with the given thresholds, falling back to the
// defaults (5 attempts, 2 hours) when values are not positive.
func New(maxAttempts int, lockDuration time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if lockDuration <= 0 {
		lockDuration = 2 * time.Hour
	}
	return Policy{MaxAttempts: maxAttempts, LockDuration: lockDuration}
}

// IsLocked reports whether the account refuses logins at instant now.
// A LockedUntil in the past counts as not locked.
func (p Policy) IsLocked(u *models.User, now time.Time) bool {
	if u.PermanentLock {
		return true
	}
	return p.IsTemporarilyLocked(u, now)
}

// IsTemporarilyLocked reports whether only the temporary lock is in effect.
func (p Policy) IsTemporarilyLocked(u *models.User, now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RecordFailure increments the failed-attempt counter and trips the
// temporary lock once the counter reaches the threshold. It returns true
// only when this failure is the one that locked the account.
// 计数在锁定时不清零，解锁由 RecordSuccess / ClearTemporaryLock 负责。
func (p Policy) RecordFailure(u *models.User, now time.Time) (nowLocked bool) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		u.LockedUntil = &until
		return true
	}
	return false
}

// RecordSuccess resets the failure state after a successful authentication
// and stamps the login time. PermanentLock is never touched here.
func (p Policy) RecordSuccess(u *models.User, now time.Time) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	login := now
	u.LastLogin = &login
}

// ClearTemporaryLock resets the failure counter and lifts the temporary
// lock. Used by admin password reset and approved reset requests.
// 永久锁定需要管理员单独显式解除。
func (p Policy) ClearTemporaryLock(u *models.User) {
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
}

// RemainingMinutes returns how many minutes of temporary lock are left,
// rounded up. Zero when the user is not temporarily locked.
func (p Policy) RemainingMinutes(u *models.User, now time.Time) int {
	if !p.IsTemporarilyLocked(u, now) {
		return 0
	}
	remaining := u.LockedUntil.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	return minutes
}
