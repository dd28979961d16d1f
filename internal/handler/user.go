package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shimesaba-type0/openlockey/internal/auth"
	"github.com/shimesaba-type0/openlockey/internal/config"
	"github.com/shimesaba-type0/openlockey/internal/middleware"
	"github.com/shimesaba-type0/openlockey/internal/util"
)

// UserHandler 负责当前用户自助接口
type UserHandler struct {
	DB      *gorm.DB
	Svc     *auth.Service
	AuthCfg config.AuthConfig
}

func NewUserHandler(db *gorm.DB, svc *auth.Service, authCfg config.AuthConfig) *UserHandler {
	return &UserHandler{DB: db, Svc: svc, AuthCfg: authCfg}
}

// GetMe 返回当前登录用户信息（需要经过 SessionMiddleware）
func (h *UserHandler) GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	sessions, err := h.Svc.CountActiveSessions(c.Request.Context(), user.ID, time.Now())
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询会话失败")
		return
	}

	util.Success(c, util.Response{
		"user": gin.H{
			"id":              user.ID,
			"username":        user.Username,
			"is_admin":        user.IsAdmin,
			"is_active":       user.IsActive,
			"created_at":      user.CreatedAt,
			"last_login":      user.LastLogin,
			"active_sessions": sessions,
		},
	})
}

// updateProfileReq 自助资料更新。指针字段缺省表示不修改。
type updateProfileReq struct {
	Username *string `json:"username"`
	IsAdmin  *bool   `json:"is_admin"`
	IsActive *bool   `json:"is_active"`
}

// UpdateMe 更新当前用户资料。非管理员提交的 is_admin / is_active
// 会在服务端直接剥除，不信任客户端。
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	if !user.IsAdmin {
		req.IsAdmin = nil
		req.IsActive = nil
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if err := util.ValidateUsername(username); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "用户名必须为3-64位字母、数字或下划线")
			return
		}
		user.Username = username
	}
	if req.IsAdmin != nil {
		user.IsAdmin = *req.IsAdmin
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.Error(c, http.StatusConflict, util.CodeConflict, "用户名已存在")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新失败")
		return
	}

	util.Success(c, util.Response{
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"is_admin":  user.IsAdmin,
			"is_active": user.IsActive,
		},
	})
}

// changePasswordReq 修改密码请求
type changePasswordReq struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword 修改当前用户密码短语
func (h *UserHandler) ChangePassword(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	if !util.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "当前密码短语不正确")
		return
	}

	if err := util.ValidatePassword(req.NewPassword, h.AuthCfg.MinPasswordLength, h.AuthCfg.MaxPasswordLength); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			fmt.Sprintf("密码短语长度需在%d-%d位之间", h.AuthCfg.MinPasswordLength, h.AuthCfg.MaxPasswordLength))
		return
	}

	hash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	if err := h.DB.WithContext(c.Request.Context()).
		Model(user).Update("password_hash", hash).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新密码失败")
		return
	}

	util.Success(c, util.Response{
		"message": "密码短语修改成功",
	})
}
