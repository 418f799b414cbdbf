package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 200

// ValidateName checks a user-supplied entity name or title.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("name must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return fmt.Errorf("name must not exceed %d characters", maxNameLength)
	}
	return nil
}

// ValidateAmount checks a monetary or quantity value.
func ValidateAmount(amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	return nil
}
