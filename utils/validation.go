// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// ValidatePhone accepts international numbers with an optional + prefix and
// 7 to 15 digits. Spaces, dashes, dots and parentheses are ignored.
func ValidatePhone(phone string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(phone))
	return phonePattern.MatchString(cleaned)
}
