package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Generated passphrase character sets. Visually ambiguous glyphs are
// excluded: l, I, O, 0, 1.
const (
	passwordLower  = "abcdefghijkmnopqrstuvwxyz"
	passwordUpper  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	passwordDigits = "23456789"

	// Length bounds enforced regardless of caller configuration.
	PasswordMinLength     = 32
	PasswordMaxLength     = 128
	PasswordDefaultLength = 64
)

// GeneratePassword 生成指定长度的随机密码短语，保证至少包含
// 一个小写字母、一个大写字母和一个数字。明文只返回一次，决不落库。
func GeneratePassword(length int) (string, error) {
	if length < PasswordMinLength || length > PasswordMaxLength {
		return "", fmt.Errorf("password length must be between %d and %d, got %d",
			PasswordMinLength, PasswordMaxLength, length)
	}

	alphabet := passwordLower + passwordUpper + passwordDigits
	max := big.NewInt(int64(len(alphabet)))

	// 不满足字符类要求时整体重新生成
	for {
		var b strings.Builder
		b.Grow(length)
		for i := 0; i < length; i++ {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("read random: %w", err)
			}
			b.WriteByte(alphabet[n.Int64()])
		}

		password := b.String()
		if strings.ContainsAny(password, passwordLower) &&
			strings.ContainsAny(password, passwordUpper) &&
			strings.ContainsAny(password, passwordDigits) {
			return password, nil
		}
	}
}
