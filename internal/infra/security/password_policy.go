package security

import (
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

const (
	minPasswordLength = 10
	maxPasswordLength = 128
	minZxcvbnScore    = 3
)

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules and reports the
// first violation.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// Validate executes all rules in order.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// DefaultPasswordValidator gates new credentials at issue time: a length
// window plus a zxcvbn strength floor.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		PasswordRuleFunc(func(password string) error {
			length := utf8.RuneCountInString(password)
			if length < minPasswordLength {
				return fmt.Errorf("password must be at least %d characters", minPasswordLength)
			}
			if length > maxPasswordLength {
				return fmt.Errorf("password must be at most %d characters", maxPasswordLength)
			}
			return nil
		}),
		PasswordRuleFunc(func(password string) error {
			result := zxcvbn.PasswordStrength(password, nil)
			if result.Score < minZxcvbnScore {
				return fmt.Errorf("password is too predictable")
			}
			return nil
		}),
	)
}
