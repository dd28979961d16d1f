package util

import (
	"strings"
	"testing"
)

// ============ 密码短语生成测试 ============

// TestGeneratePassword_Length64 长度64的密码短语：长度精确、只用受限
// 字母表、且三类字符各至少一个
func TestGeneratePassword_Length64(t *testing.T) {
	for i := 0; i < 20; i++ {
		password, err := GeneratePassword(64)
		if err != nil {
			t.Fatalf("生成失败: %v", err)
		}
		if len(password) != 64 {
			t.Fatalf("长度 = %d, want 64", len(password))
		}

		alphabet := passwordLower + passwordUpper + passwordDigits
		for _, ch := range password {
			if !strings.ContainsRune(alphabet, ch) {
				t.Fatalf("包含受限字母表之外的字符: %q", ch)
			}
		}

		if !strings.ContainsAny(password, passwordLower) {
			t.Error("缺少小写字母")
		}
		if !strings.ContainsAny(password, passwordUpper) {
			t.Error("缺少大写字母")
		}
		if !strings.ContainsAny(password, passwordDigits) {
			t.Error("缺少数字")
		}
	}
}

// TestGeneratePassword_ExcludesAmbiguous 易混淆字符 l I O 0 1 不出现
func TestGeneratePassword_ExcludesAmbiguous(t *testing.T) {
	password, err := GeneratePassword(128)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if strings.ContainsAny(password, "lIO01") {
		t.Errorf("包含易混淆字符: %s", password)
	}
}

func TestGeneratePassword_Bounds(t *testing.T) {
	for _, length := range []int{32, 128} {
		password, err := GeneratePassword(length)
		if err != nil {
			t.Errorf("GeneratePassword(%d) error = %v", length, err)
			continue
		}
		if len(password) != length {
			t.Errorf("长度 = %d, want %d", len(password), length)
		}
	}

	for _, length := range []int{0, 31, 129, -1} {
		if _, err := GeneratePassword(length); err == nil {
			t.Errorf("GeneratePassword(%d) 应返回错误", length)
		}
	}
}

func TestGeneratePassword_NotRepeating(t *testing.T) {
	a, err := GeneratePassword(64)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	b, err := GeneratePassword(64)
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}
	if a == b {
		t.Error("两次生成结果相同")
	}
}
