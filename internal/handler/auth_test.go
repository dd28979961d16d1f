package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shimesaba-type0/openlockey/internal/config"
	"github.com/shimesaba-type0/openlockey/internal/database"
	"github.com/shimesaba-type0/openlockey/internal/models"
	"github.com/shimesaba-type0/openlockey/internal/router"
)

const testPassword = "correct-horse-battery-staple-23456789AB"

func testServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		Auth: config.AuthConfig{
			CookieName:            "openlockey_session",
			SessionExpireHours:    72,
			FailLockAttempts:      5,
			FailLockDurationHours: 2,
			MinPasswordLength:     32,
			MaxPasswordLength:     128,
			Debug:                 true,
		},
	}
	return router.SetupRouter(cfg, db), db
}

func postJSON(t *testing.T, r *gin.Engine, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getWithCookie(t *testing.T, r *gin.Engine, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func register(t *testing.T, r *gin.Engine, username, password string) {
	t.Helper()
	w := postJSON(t, r, "/api/auth/register", gin.H{"username": username, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("注册失败: status=%d body=%s", w.Code, w.Body.String())
	}
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "openlockey_session" {
			return cookie
		}
	}
	t.Fatal("响应中没有会话 cookie")
	return nil
}

// ============ 注册 ============

func TestRegister_DuplicateConflict(t *testing.T) {
	r, _ := testServer(t)
	register(t, r, "alice", testPassword)

	w := postJSON(t, r, "/api/auth/register", gin.H{"username": "alice", "password": testPassword})
	if w.Code != http.StatusConflict {
		t.Errorf("重复注册 status = %d, want 409", w.Code)
	}
}

func TestRegister_PasswordTooShort(t *testing.T) {
	r, _ := testServer(t)

	w := postJSON(t, r, "/api/auth/register", gin.H{"username": "alice", "password": "short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("短密码注册 status = %d, want 400", w.Code)
	}
}

// ============ 登录 ============

// TestLogin_UnknownAndWrongPasswordSameResponse 未知用户与密码错误的
// 外部响应必须逐字节一致
func TestLogin_UnknownAndWrongPasswordSameResponse(t *testing.T) {
	r, _ := testServer(t)
	register(t, r, "alice", testPassword)

	wUnknown := postJSON(t, r, "/api/auth/login", gin.H{
		"username": "nobody",
		"password": testPassword,
	})
	wWrong := postJSON(t, r, "/api/auth/login", gin.H{
		"username": "alice",
		"password": "plausible-but-wrong-passphrase-xx",
	})

	if wUnknown.Code != wWrong.Code {
		t.Errorf("状态码不一致: %d vs %d", wUnknown.Code, wWrong.Code)
	}
	if !bytes.Equal(wUnknown.Body.Bytes(), wWrong.Body.Bytes()) {
		t.Errorf("响应体不一致:\n%s\n%s", wUnknown.Body.String(), wWrong.Body.String())
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	r, _ := testServer(t)
	register(t, r, "alice", testPassword)

	w := postJSON(t, r, "/api/auth/login", gin.H{"username": "alice", "password": testPassword})
	if w.Code != http.StatusOK {
		t.Fatalf("登录失败: %s", w.Body.String())
	}

	cookie := sessionCookie(t, w)
	if cookie.Value == "" {
		t.Error("cookie 值为空")
	}
	if !cookie.HttpOnly {
		t.Error("会话 cookie 必须是 HttpOnly")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
	}
	if cookie.MaxAge != 72*3600 {
		t.Errorf("MaxAge = %d, want %d", cookie.MaxAge, 72*3600)
	}
}

// TestLogin_LockedResponseDiffersFromInvalid 锁定提示与凭据错误提示是
// 两种响应（锁定状态不是秘密）
func TestLogin_LockedResponseDiffersFromInvalid(t *testing.T) {
	r, _ := testServer(t)
	register(t, r, "alice", testPassword)

	wrong := gin.H{"username": "alice", "password": "plausible-but-wrong-passphrase-xx"}
	for i := 0; i < 5; i++ {
		postJSON(t, r, "/api/auth/login", wrong)
	}

	// 锁定期内即使密码正确也提示锁定
	w := postJSON(t, r, "/api/auth/login", gin.H{"username": "alice", "password": testPassword})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if !strings.Contains(w.Body.String(), "锁定") {
		t.Errorf("锁定响应不正确: %s", w.Body.String())
	}
}

// ============ 登出与会话 ============

func TestLogoutTwice_BothSucceed(t *testing.T) {
	r, _ := testServer(t)
	register(t, r, "alice", testPassword)

	login := postJSON(t, r, "/api/auth/login", gin.H{"username": "alice", "password": testPassword})
	cookie := sessionCookie(t, login)

	first := postJSON(t, r, "/api/auth/logout", gin.H{}, cookie)
	if first.Code != http.StatusOK {
		t.Errorf("首次登出 status = %d, want 200", first.Code)
	}
	second := postJSON(t, r, "/api/auth/logout", gin.H{}, cookie)
	if second.Code != http.StatusOK {
		t.Errorf("重复登出 status = %d, want 200", second.Code)
	}

	// 未知令牌也成功
	bogus := postJSON(t, r, "/api/auth/logout", gin.H{}, &http.Cookie{Name: "openlockey_session", Value: "bogus"})
	if bogus.Code != http.StatusOK {
		t.Errorf("未知令牌登出 status = %d, want 200", bogus.Code)
	}
}

func TestProtectedRoute(t *testing.T) {
	r, _ := testServer(t)
	register(t, r, "alice", testPassword)

	// 未登录
	if w := getWithCookie(t, r, "/api/me"); w.Code != http.StatusUnauthorized {
		t.Errorf("未登录 status = %d, want 401", w.Code)
	}

	login := postJSON(t, r, "/api/auth/login", gin.H{"username": "alice", "password": testPassword})
	cookie := sessionCookie(t, login)

	w := getWithCookie(t, r, "/api/me", cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("登录后 status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "alice") {
		t.Errorf("响应应包含用户名: %s", w.Body.String())
	}

	// 登出后同一 cookie 立即失效
	postJSON(t, r, "/api/auth/logout", gin.H{}, cookie)
	if w := getWithCookie(t, r, "/api/me", cookie); w.Code != http.StatusUnauthorized {
		t.Errorf("登出后 status = %d, want 401", w.Code)
	}
}

// ============ 管理员权限 ============

func TestAdminRoute_ForbiddenForNonAdmin(t *testing.T) {
	r, db := testServer(t)
	register(t, r, "alice", testPassword)

	login := postJSON(t, r, "/api/auth/login", gin.H{"username": "alice", "password": testPassword})
	cookie := sessionCookie(t, login)

	if w := getWithCookie(t, r, "/api/admin/users", cookie); w.Code != http.StatusForbidden {
		t.Errorf("非管理员 status = %d, want 403", w.Code)
	}

	// 提升为管理员后放行
	if err := db.Model(&models.User{}).Where("username = ?", "alice").
		Update("is_admin", true).Error; err != nil {
		t.Fatalf("提升管理员失败: %v", err)
	}
	relogin := postJSON(t, r, "/api/auth/login", gin.H{"username": "alice", "password": testPassword})
	adminCookie := sessionCookie(t, relogin)
	if w := getWithCookie(t, r, "/api/admin/users", adminCookie); w.Code != http.StatusOK {
		t.Errorf("管理员 status = %d, want 200", w.Code)
	}
}

// ============ 重置申请 ============

// TestResetRequest_SameResponseForAnyUsername 任何用户名提交重置申请
// 响应完全一致
func TestResetRequest_SameResponseForAnyUsername(t *testing.T) {
	r, db := testServer(t)
	register(t, r, "alice", testPassword)

	wKnown := postJSON(t, r, "/api/auth/reset-request", gin.H{"username": "alice", "reason": "locked out"})
	wUnknown := postJSON(t, r, "/api/auth/reset-request", gin.H{"username": "nobody", "reason": "locked out"})

	if wKnown.Code != http.StatusOK || wUnknown.Code != http.StatusOK {
		t.Fatalf("status = %d / %d, want 200", wKnown.Code, wUnknown.Code)
	}
	if !bytes.Equal(wKnown.Body.Bytes(), wUnknown.Body.Bytes()) {
		t.Error("已知与未知用户名的响应必须一致")
	}

	// 只有已知用户名落库
	var count int64
	db.Model(&models.ResetRequest{}).Count(&count)
	if count != 1 {
		t.Errorf("申请数 = %d, want 1", count)
	}
}

// ============ 密码短语生成 ============

func TestGeneratePasswordEndpoint(t *testing.T) {
	r, _ := testServer(t)

	w := postJSON(t, r, "/api/password/generate", gin.H{"length": 64})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Password string `json:"password"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(resp.Data.Password) != 64 {
		t.Errorf("密码长度 = %d, want 64", len(resp.Data.Password))
	}

	// 超出范围
	if w := postJSON(t, r, "/api/password/generate", gin.H{"length": 12}); w.Code != http.StatusBadRequest {
		t.Errorf("无效长度 status = %d, want 400", w.Code)
	}
}
