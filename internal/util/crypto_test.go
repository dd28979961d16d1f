package util

import (
	"strings"
	"testing"
)

// ============ 密码哈希测试 ============

func TestHashPassword(t *testing.T) {
	password := "MyPassphrase123MyPassphrase123xx"

	// 测试正常哈希
	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("哈希失败: %v", err)
	}
	if !strings.HasPrefix(hashed, "$argon2id$") {
		t.Errorf("哈希格式错误: %s", hashed)
	}

	// 测试空密码
	if _, err := HashPassword(""); err == nil {
		t.Error("空密码应返回错误")
	}

	// 测试相同密码生成不同哈希
	hashed2, _ := HashPassword(password)
	if hashed == hashed2 {
		t.Error("相同密码应生成不同哈希（随机salt）")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "MyPassphrase123MyPassphrase123xx"
	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("哈希失败: %v", err)
	}

	if !CheckPassword(password, hashed) {
		t.Error("正确密码应验证通过")
	}
	if CheckPassword("wrong-password", hashed) {
		t.Error("错误密码不应验证通过")
	}
	if CheckPassword("", hashed) {
		t.Error("空密码不应验证通过")
	}
	if CheckPassword(password, "") {
		t.Error("空哈希不应验证通过")
	}
}

// TestCheckPassword_Malformed 损坏的哈希只返回 false，不 panic
func TestCheckPassword_Malformed(t *testing.T) {
	testCases := []string{
		"plain",
		"$argon2id$",
		"$argon2id$v=19$m=65536,t=3,p=4$notbase64!!$alsonot!!",
		"$bcrypt$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=4$c2FsdA$aGFzaA", // 版本不符
	}
	for _, stored := range testCases {
		if CheckPassword("password", stored) {
			t.Errorf("CheckPassword(%q) = true, want false", stored)
		}
	}
}

// ============ 会话令牌测试 ============

func TestGenerateSessionToken(t *testing.T) {
	token, err := GenerateSessionToken()
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	// 32 字节 base64url 编码后为 43 个字符
	if len(token) != 43 {
		t.Errorf("令牌长度 = %d, want 43", len(token))
	}

	// 令牌不可重复
	seen := map[string]bool{token: true}
	for i := 0; i < 100; i++ {
		next, err := GenerateSessionToken()
		if err != nil {
			t.Fatalf("生成失败: %v", err)
		}
		if seen[next] {
			t.Fatal("生成了重复令牌")
		}
		seen[next] = true
	}
}
