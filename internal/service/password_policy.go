package service

import (
	"fmt"
	"unicode"
)

const defaultPasswordMinLength = 8

// validatePassword 校验密码长度并要求同时包含字母与数字
func validatePassword(minLength int, password string) error {
	if minLength <= 0 {
		minLength = defaultPasswordMinLength
	}
	if len([]rune(password)) < minLength {
		return wrapError(ErrWeakPassword, fmt.Errorf("at least %d characters required", minLength))
	}

	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter || !hasNumber {
		return wrapError(ErrWeakPassword, fmt.Errorf("letters and digits required"))
	}
	return nil
}
