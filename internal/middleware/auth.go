package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shimesaba-type0/openlockey/internal/auth"
	"github.com/shimesaba-type0/openlockey/internal/models"
	"github.com/shimesaba-type0/openlockey/internal/util"
)

const currentUserKey = "currentUser"

// SessionMiddleware 从会话 cookie 解析当前用户并放入 context。
// 每个请求都重新查一次会话存储，不做缓存。
func SessionMiddleware(svc *auth.Service, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookieName)

		user, err := svc.ResolveSession(c.Request.Context(), token, time.Now())
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				util.Error(c, http.StatusUnauthorized, util.CodeAuth, "会话无效或已过期，请重新登录")
			} else {
				util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询会话失败")
			}
			c.Abort()
			return
		}

		c.Set(currentUserKey, user)
		c.Next()
	}
}

// AdminMiddleware 在 SessionMiddleware 之后使用，要求管理员权限。
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "未登录")
			c.Abort()
			return
		}
		if !user.IsAdmin {
			util.Error(c, http.StatusForbidden, util.CodeForbidden, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user injected by SessionMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, ok := v.(*models.User)
	if !ok {
		return nil
	}
	return user
}
