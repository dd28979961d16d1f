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
	"github.com/shimesaba-type0/openlockey/internal/models"
	"github.com/shimesaba-type0/openlockey/internal/util"
)

// AuthHandler 负责登录/注册/登出和重置申请接口
type AuthHandler struct {
	DB      *gorm.DB
	Svc     *auth.Service
	AuthCfg config.AuthConfig
}

// NewAuthHandler 构造函数
func NewAuthHandler(db *gorm.DB, svc *auth.Service, authCfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{DB: db, Svc: svc, AuthCfg: authCfg}
}

// setSessionCookie 设置会话 cookie：HttpOnly + SameSite=Lax，
// 非 debug 部署加 Secure。
func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.AuthCfg.CookieName, token, maxAge, "/", "", !h.AuthCfg.Debug, true)
}

// ---------- 注册 ----------

type registerReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	req.Username = strings.TrimSpace(req.Username)

	if err := util.ValidateUsername(req.Username); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "用户名必须为3-64位字母、数字或下划线")
		return
	}
	if err := util.ValidatePassword(req.Password, h.AuthCfg.MinPasswordLength, h.AuthCfg.MaxPasswordLength); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			fmt.Sprintf("密码短语长度需在%d-%d位之间", h.AuthCfg.MinPasswordLength, h.AuthCfg.MaxPasswordLength))
		return
	}

	hash, err := util.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "密码加密失败")
		return
	}

	user := models.User{
		Username:     req.Username,
		PasswordHash: hash,
		IsActive:     true,
	}
	// 唯一约束是冲突判定的最终权威
	if err := h.DB.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.Error(c, http.StatusConflict, util.CodeConflict, "用户名已存在")
			return
		}
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建用户失败")
		return
	}

	util.Success(c, util.Response{
		"message": "注册成功",
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
		},
	})
}

// ---------- 登录 ----------

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	cred := auth.Credentials{
		Username:  strings.TrimSpace(req.Username),
		Password:  req.Password,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	result, err := h.Svc.Login(c.Request.Context(), cred, time.Now())
	if err != nil {
		var locked *auth.LockedError
		switch {
		case errors.As(err, &locked):
			if locked.Permanent {
				util.Error(c, http.StatusUnauthorized, util.CodeLocked, "账户已被锁定，请联系管理员")
			} else {
				util.Error(c, http.StatusUnauthorized, util.CodeLocked,
					fmt.Sprintf("账户已被临时锁定，请约%d分钟后再试", locked.RemainingMinutes))
			}
		case errors.Is(err, auth.ErrInvalidCredentials):
			// 未知用户和密码错误必须返回完全相同的响应
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "用户名或密码错误")
		default:
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "登录失败，请稍后再试")
		}
		return
	}

	h.setSessionCookie(c, result.Token, int(h.Svc.SessionTTL().Seconds()))

	util.Success(c, util.Response{
		"message": "登录成功",
		"user": gin.H{
			"id":       result.User.ID,
			"username": result.User.Username,
			"is_admin": result.User.IsAdmin,
		},
	})
}

// ---------- 登出 ----------

// Logout 使当前会话失效。幂等：重复登出或未知令牌同样返回成功。
func (h *AuthHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(h.AuthCfg.CookieName)

	if err := h.Svc.Logout(c.Request.Context(), token); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "登出失败")
		return
	}

	// 删除 cookie
	h.setSessionCookie(c, "", -1)

	util.Success(c, util.Response{
		"message": "已登出",
	})
}

// ---------- 重置申请 ----------

type resetRequestReq struct {
	Username string `json:"username" binding:"required"`
	Reason   string `json:"reason" binding:"max=1024"`
}

// SubmitResetRequest 提交重置申请。无论用户名是否存在都返回同样的成功
// 响应，防止用户名枚举。
func (h *AuthHandler) SubmitResetRequest(c *gin.Context) {
	var req resetRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
		return
	}

	if err := h.Svc.SubmitResetRequest(c.Request.Context(),
		strings.TrimSpace(req.Username), req.Reason, time.Now()); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "提交失败，请稍后再试")
		return
	}

	util.Success(c, util.Response{
		"message": "重置申请已提交，请等待管理员确认",
	})
}

// ---------- 密码短语生成 ----------

type generatePasswordReq struct {
	Length int `json:"length"`
}

// GeneratePassword 生成一个随机密码短语，明文只在响应里出现一次。
func (h *AuthHandler) GeneratePassword(c *gin.Context) {
	req := generatePasswordReq{Length: util.PasswordDefaultLength}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "参数错误")
			return
		}
	}

	password, err := util.GeneratePassword(req.Length)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam,
			fmt.Sprintf("长度需在%d-%d之间", util.PasswordMinLength, util.PasswordMaxLength))
		return
	}

	util.Success(c, util.Response{
		"password": password,
	})
}
