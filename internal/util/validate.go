package util

import (
	"fmt"
	"regexp"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,64}$`)

// ValidateUsername 验证用户名（3-64 位，仅字母、数字、下划线）
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username is empty")
	}
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username must be 3-64 characters of letters, digits or underscore")
	}
	return nil
}

// ValidatePassword 验证密码短语长度是否在配置的范围内
func ValidatePassword(password string, minLen, maxLen int) error {
	if password == "" {
		return fmt.Errorf("password is empty")
	}
	if len(password) < minLen {
		return fmt.Errorf("password too short, min %d characters", minLen)
	}
	if len(password) > maxLen {
		return fmt.Errorf("password too long, max %d characters", maxLen)
	}
	return nil
}
