package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shimesaba-type0/openlockey/internal/models"
)

// SubmitResetRequest records a user's request for administrative help.
// It reports success regardless of whether the username exists, so the
// endpoint cannot be used to enumerate accounts. Duplicate pending
// requests for the same user are allowed.
func (s *Service) SubmitResetRequest(ctx context.Context, username, reason string, now time.Time) error {
	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 用户不存在也返回成功
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	request := models.ResetRequest{
		UserID:        user.ID,
		RequestReason: reason,
		Timestamp:     now,
		Status:        models.ResetStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return fmt.Errorf("create reset request: %w", err)
	}
	return nil
}

// ResolveResetRequest applies an administrator's decision to a pending
// request, exactly once. Approval additionally lifts the target user's
// temporary lock; a permanent lock stays until explicitly removed via a
// user update.
func (s *Service) ResolveResetRequest(ctx context.Context, requestID uint, admin *models.User, approve bool, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var request models.ResetRequest
		if err := tx.First(&request, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("find reset request: %w", err)
		}

		if request.Status != models.ResetStatusPending {
			return ErrAlreadyResolved
		}

		request.Status = models.ResetStatusRejected
		if approve {
			request.Status = models.ResetStatusApproved
		}
		request.ResolvedBy = &admin.ID
		resolvedAt := now
		request.ResolvedAt = &resolvedAt

		if err := tx.Save(&request).Error; err != nil {
			return fmt.Errorf("save reset request: %w", err)
		}

		if approve {
			var user models.User
			if err := tx.First(&user, request.UserID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					// 用户已被删除，请求本身仍然标记为已处理
					return nil
				}
				return fmt.Errorf("find request user: %w", err)
			}
			s.policy.ClearTemporaryLock(&user)
			if err := tx.Save(&user).Error; err != nil {
				return fmt.Errorf("clear temporary lock: %w", err)
			}
			log.WithFields(log.Fields{
				"request_id": request.ID,
				"user_id":    user.ID,
				"admin_id":   admin.ID,
			}).Info("reset request approved, temporary lock cleared")
		}
		return nil
	})
}
