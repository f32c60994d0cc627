package user

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// Password policy.
const (
	PasswordMinLen = 8
	passwordMaxSim = .7
	passwordMaxLen = 72 // bcrypt ignores the rest
)

// Policy violation texts, also used as validator translations.
var (
	PasswordTooShortText = fmt.Sprintf("password must contain at least %d characters", PasswordMinLen)
	PasswordTooLongText  = fmt.Sprintf("password must contain at most %d bytes", passwordMaxLen)
	PasswordSpaceText    = "password must not contain whitespace"
	PasswordNumericText  = "password cannot be entirely numeric"
	PasswordSimilarText  = "password cannot be similar to user attributes"
)

// CheckPasswordPolicy applies the password policy and returns the first
// violation text, or "" when pwd is acceptable:
//   - at least PasswordMinLen characters
//   - no whitespace
//   - not entirely numeric
//   - not similar to any of attrs (email, name)
func CheckPasswordPolicy(pwd string, attrs ...string) string {
	if len([]rune(pwd)) < PasswordMinLen {
		return PasswordTooShortText
	}
	if len(pwd) > passwordMaxLen {
		return PasswordTooLongText
	}
	digits := 0
	for _, r := range pwd {
		if unicode.IsSpace(r) {
			return PasswordSpaceText
		}
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits == len([]rune(pwd)) {
		return PasswordNumericText
	}
	lower := strings.ToLower(pwd)
	for _, attr := range attrs {
		if similarity(lower, strings.ToLower(attr)) >= passwordMaxSim {
			return PasswordSimilarText
		}
	}
	return ""
}

func similarity(a, b string) float64 {
	if b == "" {
		return 0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).QuickRatio()
}
