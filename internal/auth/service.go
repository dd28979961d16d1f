// Package auth implements the authentication service: credential
// verification, lockout bookkeeping, session issuance and revocation.
// Every operation runs as a single transaction against the store, so a
// lock decision is never persisted without its audit entry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shimesaba-type0/openlockey/internal/lockout"
	"github.com/shimesaba-type0/openlockey/internal/models"
	"github.com/shimesaba-type0/openlockey/internal/util"
)

// Service orchestrates credential store, lockout policy and session store.
type Service struct {
	db     *gorm.DB
	policy lockout.Policy
	ttl    time.Duration

	// 未知用户名时也跑一次哈希校验，保持与密码错误同一耗时级别
	dummyHash string
}

// NewService constructs the service with the given policy and session TTL.
func NewService(db *gorm.DB, policy lockout.Policy, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 72 * time.Hour
	}
	dummy, err := util.HashPassword(uuid.NewString())
	if err != nil {
		// crypto/rand 不可用时整个服务都无法工作
		log.WithError(err).Fatal("init dummy hash")
	}
	return &Service{db: db, policy: policy, ttl: sessionTTL, dummyHash: dummy}
}

// Policy exposes the lockout policy for collaborators (admin handlers).
func (s *Service) Policy() lockout.Policy { return s.policy }

// SessionTTL exposes the configured session lifetime (cookie max-age).
func (s *Service) SessionTTL() time.Duration { return s.ttl }

// Credentials is one login attempt as seen at the boundary.
type Credentials struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// Login verifies credentials, applies the lockout policy and issues a new
// session. User update, session insert and history insert commit together.
// Business failures (bad credentials, locked account) still commit their
// counter updates and audit rows; only storage errors roll back.
func (s *Service) Login(ctx context.Context, cred Credentials, now time.Time) (*LoginResult, error) {
	var (
		result  *LoginResult
		authErr error
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		history := models.LoginHistory{
			IPAddress: cred.IPAddress,
			UserAgent: cred.UserAgent,
			Timestamp: now,
		}

		var user models.User
		if errFind := tx.Where("username = ?", cred.Username).First(&user).Error; errFind != nil {
			if !errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("find user: %w", errFind)
			}
			// 未知用户：同样做一次哈希校验再拒绝，防止用户名枚举
			util.CheckPassword(cred.Password, s.dummyHash)
			history.FailureReason = models.ReasonUnknownUser
			if errLog := tx.Create(&history).Error; errLog != nil {
				return fmt.Errorf("record login history: %w", errLog)
			}
			authErr = ErrInvalidCredentials
			return nil
		}

		history.UserID = &user.ID

		if s.policy.IsLocked(&user, now) {
			if user.PermanentLock {
				history.FailureReason = models.ReasonPermanentLock
				authErr = &LockedError{Permanent: true}
			} else {
				history.FailureReason = models.ReasonTemporaryLock
				authErr = &LockedError{RemainingMinutes: s.policy.RemainingMinutes(&user, now)}
			}
			if errLog := tx.Create(&history).Error; errLog != nil {
				return fmt.Errorf("record login history: %w", errLog)
			}
			return nil
		}

		if !util.CheckPassword(cred.Password, user.PasswordHash) {
			nowLocked := s.policy.RecordFailure(&user, now)
			if nowLocked {
				history.FailureReason = models.ReasonBadCredentialNowLocked
				log.WithFields(log.Fields{
					"user_id": user.ID,
					"ip":      cred.IPAddress,
				}).Warn("account temporarily locked after repeated failures")
			} else {
				history.FailureReason = models.ReasonBadCredential
			}
			if errSave := tx.Save(&user).Error; errSave != nil {
				return fmt.Errorf("save failure state: %w", errSave)
			}
			if errLog := tx.Create(&history).Error; errLog != nil {
				return fmt.Errorf("record login history: %w", errLog)
			}
			authErr = ErrInvalidCredentials
			return nil
		}

		// 认证成功
		s.policy.RecordSuccess(&user, now)
		if errSave := tx.Save(&user).Error; errSave != nil {
			return fmt.Errorf("save success state: %w", errSave)
		}

		token, errToken := util.GenerateSessionToken()
		if errToken != nil {
			return fmt.Errorf("generate session token: %w", errToken)
		}
		session := models.Session{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Token:     token,
			IPAddress: cred.IPAddress,
			UserAgent: cred.UserAgent,
			ExpiresAt: now.Add(s.ttl),
			IsActive:  true,
		}
		if errCreate := tx.Create(&session).Error; errCreate != nil {
			return fmt.Errorf("create session: %w", errCreate)
		}

		history.Success = true
		if errLog := tx.Create(&history).Error; errLog != nil {
			return fmt.Errorf("record login history: %w", errLog)
		}

		result = &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if authErr != nil {
		return nil, authErr
	}
	return result, nil
}

// Logout deactivates the session owning the token. Idempotent: unknown or
// already-revoked tokens succeed silently.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("token = ?", token).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// ResolveSession returns the user owning a valid session token. It is the
// sole gate for protected operations and is re-verified per request.
func (s *Service) ResolveSession(ctx context.Context, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var session models.Session
	if err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	// 过期会话懒失效：不依赖后台清理任务
	if !session.Valid(now) {
		return nil, ErrUnauthenticated
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, session.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("find session user: %w", err)
	}
	return &user, nil
}

// CountActiveSessions returns how many live sessions a user holds.
func (s *Service) CountActiveSessions(ctx context.Context, userID uint, now time.Time) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, now).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}
