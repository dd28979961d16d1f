package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shimesaba-type0/openlockey/internal/auth"
	"github.com/shimesaba-type0/openlockey/internal/config"
	"github.com/shimesaba-type0/openlockey/internal/middleware"
	"github.com/shimesaba-type0/openlockey/internal/models"
	"github.com/shimesaba-type0/openlockey/internal/util"
)

// AdminHandler 负责管理员接口（需要 SessionMiddleware + AdminMiddleware）
type AdminHandler struct {
	DB      *gorm.DB
	Svc     *auth.Service
	AuthCfg config.AuthConfig
}

func NewAdminHandler(db *gorm.DB, svc *auth.Service, authCfg config.AuthConfig) *AdminHandler {
	return &AdminHandler{DB: db, Svc: svc, AuthCfg: authCfg}
}

// userOut 管理员视角的用户信息
type userOut struct {
	ID                  uint       `json:"id"`
	Username            string     `json:"username"`
	IsAdmin             bool       `json:"is_admin"`
	IsActive            bool       `json:"is_active"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	LastLogin           *time.Time `json:"last_login"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"locked_until"`
	PermanentLock       bool       `json:"permanent_lock"`
}

func toUserOut(u *models.User) userOut {
	return userOut{
		ID:                  u.ID,
		Username:            u.Username,
		IsAdmin:             u.IsAdmin,
		IsActive:            u.IsActive,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
		LastLogin:           u.LastLogin,
		FailedLoginAttempts: u.FailedLoginAttempts,
		LockedUntil:         u.LockedUntil,
		PermanentLock:       u.PermanentLock,
	}
}

// ---------- 用户管理 ----------

// ListUsers 用户列表（skip/limit 分页 + 模糊搜索 + 状态过滤）。
// 搜索对用户名做不区分大小写的子串匹配，仅限管理员使用。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if skip < 0 {
		skip = 0
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := h.DB.WithContext(c.Request.Context()).Model(&models.User{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query = query.Where("LOWER(username) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	now := time.Now()
	switch c.Query("status") {
	case "active":
		query = query.Where("is_active = ?", true)
	case "inactive":
		query = query.Where("is_active = ?", false)
	case "locked":
		query = query.Where("permanent_lock = ? OR (locked_until IS NOT NULL AND locked_until > ?)", true, now)
	case "admin":
		query = query.Where("is_admin = ?", true)
	}

	var users []models.User
	if err := query.Offset(skip).Limit(limit).Find(&users).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}

	out := make([]userOut, 0, len(users))
	for i := range users {
		out = append(out, toUserOut(&users[i]))
	}

	util.Success(c, util.Response{
		"users": out,
	})
}

// GetUser 查询单个用户
func (h *AdminHandler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户不存在")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}

	util.Success(c, util.Response{
		"user": toUserOut(&user),
	})
}

// updateUserReq 管理员部分更新。指针字段缺省表示不修改。
type updateUserReq struct {
	Username      *string    `json:"username"`
	IsAdmin       *bool      `json:"is_admin"`
	IsActive      *bool      `json:"is_active"`
	PermanentLock *bool      `json:"permanent_lock"`
	LockedUntil   *time.Time `json:"locked_until"`
}

// UpdateUser 更新用户信息。每个字段只在请求中出现时才生效。
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	var req updateUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户不存在")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}

	if req.Username != nil && *req.Username != user.Username {
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
	if req.PermanentLock != nil {
		user.PermanentLock = *req.PermanentLock
	}
	if req.LockedUntil != nil {
		user.LockedUntil = req.LockedUntil
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.Error(c, http.StatusConflict, util.CodeConflict, "用户名已存在")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "更新失败")
		return
	}

	util.Success(c, util.Response{
		"message": "用户信息已更新",
		"user":    toUserOut(&user),
	})
}

// resetPasswordReq 管理员重置密码。generate 为 true 时服务端生成。
type resetPasswordReq struct {
	NewPassword    string `json:"new_password"`
	Generate       bool   `json:"generate"`
	PasswordLength int    `json:"password_length"`
}

// ResetPassword 重置用户密码并清除临时锁定。生成的明文只返回一次，
// 不落库也不写日志。
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req := resetPasswordReq{PasswordLength: util.PasswordDefaultLength}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	var user models.User
	if err := h.DB.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "用户不存在")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
		return
	}

	newPassword := req.NewPassword
	if req.Generate {
		newPassword, err = util.GeneratePassword(req.PasswordLength)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
				fmt.Sprintf("长度需在%d-%d之间", util.PasswordMinLength, util.PasswordMaxLength))
			return
		}
	} else if err := util.ValidatePassword(newPassword, h.AuthCfg.MinPasswordLength, h.AuthCfg.MaxPasswordLength); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			fmt.Sprintf("密码短语长度需在%d-%d位之间", h.AuthCfg.MinPasswordLength, h.AuthCfg.MaxPasswordLength))
		return
	}

	hash, err := util.HashPassword(newPassword)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	user.PasswordHash = hash
	h.Svc.Policy().ClearTemporaryLock(&user)

	if err := h.DB.WithContext(c.Request.Context()).Save(&user).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "重置密码失败")
		return
	}

	data := util.Response{
		"message": "密码已重置",
	}
	if req.Generate {
		data["new_password"] = newPassword
	}
	util.Success(c, data)
}

// ---------- 重置申请管理 ----------

type resetRequestOut struct {
	ID               uint       `json:"id"`
	UserID           uint       `json:"user_id"`
	Username         string     `json:"username"`
	RequestReason    string     `json:"request_reason"`
	Timestamp        time.Time  `json:"timestamp"`
	Status           string     `json:"status"`
	ResolvedBy       *uint      `json:"resolved_by"`
	ResolvedAt       *time.Time `json:"resolved_at"`
	ResolverUsername *string    `json:"resolver_username"`
}

// ListResetRequests 重置申请列表，按时间从新到旧，可按状态过滤。
func (h *AdminHandler) ListResetRequests(c *gin.Context) {
	query := h.DB.WithContext(c.Request.Context()).Model(&models.ResetRequest{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.ResetRequest
	if err := query.Order("timestamp DESC").Find(&requests).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询重置申请失败")
		return
	}

	// 批量查用户名，申请人和处理人共用一张表
	ids := make([]uint, 0, len(requests)*2)
	for _, r := range requests {
		ids = append(ids, r.UserID)
		if r.ResolvedBy != nil {
			ids = append(ids, *r.ResolvedBy)
		}
	}
	names := map[uint]string{}
	if len(ids) > 0 {
		var users []models.User
		if err := h.DB.WithContext(c.Request.Context()).Where("id IN ?", ids).Find(&users).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
			return
		}
		for _, u := range users {
			names[u.ID] = u.Username
		}
	}

	out := make([]resetRequestOut, 0, len(requests))
	for _, r := range requests {
		username, ok := names[r.UserID]
		if !ok {
			username = "未知用户"
		}
		item := resetRequestOut{
			ID:            r.ID,
			UserID:        r.UserID,
			Username:      username,
			RequestReason: r.RequestReason,
			Timestamp:     r.Timestamp,
			Status:        r.Status,
			ResolvedBy:    r.ResolvedBy,
			ResolvedAt:    r.ResolvedAt,
		}
		if r.ResolvedBy != nil {
			if name, ok := names[*r.ResolvedBy]; ok {
				item.ResolverUsername = &name
			}
		}
		out = append(out, item)
	}

	util.Success(c, util.Response{
		"requests": out,
	})
}

type resolveResetRequestReq struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// ResolveResetRequest 处理一条重置申请，只能处理一次。
func (h *AdminHandler) ResolveResetRequest(c *gin.Context) {
	admin := middleware.CurrentUser(c)
	if admin == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	var req resolveResetRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	approve := req.Status == models.ResetStatusApproved
	err = h.Svc.ResolveResetRequest(c.Request.Context(), uint(id), admin, approve, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			util.Error(c, http.StatusNotFound, util.CodeNotFound, "重置申请不存在")
		case errors.Is(err, auth.ErrAlreadyResolved):
			util.Error(c, http.StatusBadRequest, util.CodeAlreadyResolved, "该申请已被处理")
		default:
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "处理失败")
		}
		return
	}

	util.Success(c, util.Response{
		"message": "重置申请已更新",
	})
}

// ---------- 统计 ----------

// Stats 管理面板统计：用户数、活跃会话数、锁定账户数、待处理申请数
// 和最近 10 条登录记录。
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()

	var totalUsers int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	var activeSessions int64
	if err := h.DB.WithContext(ctx).Model(&models.Session{}).
		Where("is_active = ? AND expires_at > ?", true, now).
		Count(&activeSessions).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	var lockedAccounts int64
	if err := h.DB.WithContext(ctx).Model(&models.User{}).
		Where("permanent_lock = ? OR (locked_until IS NOT NULL AND locked_until > ?)", true, now).
		Count(&lockedAccounts).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	var pendingRequests int64
	if err := h.DB.WithContext(ctx).Model(&models.ResetRequest{}).
		Where("status = ?", models.ResetStatusPending).
		Count(&pendingRequests).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	var recent []models.LoginHistory
	if err := h.DB.WithContext(ctx).
		Order("timestamp DESC").Limit(10).Find(&recent).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "统计失败")
		return
	}

	util.Success(c, util.Response{
		"total_users":            totalUsers,
		"active_sessions":        activeSessions,
		"locked_accounts":        lockedAccounts,
		"pending_reset_requests": pendingRequests,
		"recent_login_attempts":  h.historyOut(c, recent),
	})
}

// ---------- 登录历史 ----------

type loginHistoryOut struct {
	ID            uint      `json:"id"`
	UserID        *uint     `json:"user_id"`
	Username      string    `json:"username"`
	IPAddress     string    `json:"ip_address"`
	UserAgent     string    `json:"user_agent"`
	Timestamp     time.Time `json:"timestamp"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason"`
}

func (h *AdminHandler) historyOut(c *gin.Context, rows []models.LoginHistory) []loginHistoryOut {
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		if r.UserID != nil {
			ids = append(ids, *r.UserID)
		}
	}
	names := map[uint]string{}
	if len(ids) > 0 {
		var users []models.User
		if err := h.DB.WithContext(c.Request.Context()).Where("id IN ?", ids).Find(&users).Error; err == nil {
			for _, u := range users {
				names[u.ID] = u.Username
			}
		}
	}

	out := make([]loginHistoryOut, 0, len(rows))
	for _, r := range rows {
		username := "未知用户"
		if r.UserID != nil {
			if name, ok := names[*r.UserID]; ok {
				username = name
			}
		}
		out = append(out, loginHistoryOut{
			ID:            r.ID,
			UserID:        r.UserID,
			Username:      username,
			IPAddress:     r.IPAddress,
			UserAgent:     r.UserAgent,
			Timestamp:     r.Timestamp,
			Success:       r.Success,
			FailureReason: r.FailureReason,
		})
	}
	return out
}

// ListLoginHistory 登录历史（skip/limit 分页，从新到旧，可按用户过滤）。
// 审计记录只读，不提供任何修改接口。
func (h *AdminHandler) ListLoginHistory(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if skip < 0 {
		skip = 0
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := h.DB.WithContext(c.Request.Context()).Model(&models.LoginHistory{})
	if userIDStr := c.Query("user_id"); userIDStr != "" {
		userID, err := strconv.ParseUint(userIDStr, 10, 64)
		if err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
			return
		}
		query = query.Where("user_id = ?", userID)
	}

	var rows []models.LoginHistory
	if err := query.Order("timestamp DESC").Offset(skip).Limit(limit).Find(&rows).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询登录历史失败")
		return
	}

	util.Success(c, util.Response{
		"history": h.historyOut(c, rows),
	})
}
