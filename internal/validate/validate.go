package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"shopfront/internal/domain"
)

// Field bounds.
const (
	CategoryNameMax = 100
	ProductNameMax  = 255
	UsernameMax     = 150
	EmailMax        = 254
	PhoneMax        = 15

	MoneyDigits = 10
	MoneyPlaces = 2
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ     = regexp.MustCompile(`^[\p{L}\p{N} _'.,&\-]{1,50}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	reUser  = regexp.MustCompile(`^[\w.@+-]+$`)

	moneyCeil = decimal.New(1, MoneyDigits-MoneyPlaces)
)

// RequiredText trims s and checks it is non-empty and at most max characters.
func RequiredText(entity, field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", domain.Invalid(entity, field, "required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", domain.Invalid(entity, field, fmt.Sprintf("at most %d characters", max))
	}
	return s, nil
}

// OptionalText checks an optional bounded string; max <= 0 means unbounded.
func OptionalText(entity, field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if max > 0 && utf8.RuneCountInString(s) > max {
		return "", domain.Invalid(entity, field, fmt.Sprintf("at most %d characters", max))
	}
	return s, nil
}

// Money checks a fixed-point amount fits NUMERIC(10,2) and is not negative.
func Money(entity, field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return domain.Invalid(entity, field, "must not be negative")
	}
	if !d.Equal(d.Round(MoneyPlaces)) {
		return domain.Invalid(entity, field, fmt.Sprintf("at most %d decimal places", MoneyPlaces))
	}
	if d.GreaterThanOrEqual(moneyCeil) {
		return domain.Invalid(entity, field, fmt.Sprintf("at most %d digits in total", MoneyDigits))
	}
	return nil
}

// MoneyString renders an amount the way it is persisted.
func MoneyString(d decimal.Decimal) string { return d.StringFixed(MoneyPlaces) }

// Quantity rejects anything below one.
func Quantity(n int) error {
	if n < 1 {
		return domain.Invalid("order_item", "quantity", "must be at least 1")
	}
	return nil
}

// Username follows the identity provider's rules: letters, digits and @.+-_ only.
func Username(s string) (string, error) {
	s, err := RequiredText("user", "username", s, UsernameMax)
	if err != nil {
		return "", err
	}
	if !reUser.MatchString(s) {
		return "", domain.Invalid("user", "username", "letters, digits and @.+-_ only")
	}
	return s, nil
}

// Email validates an optional address.
func Email(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if len(s) > EmailMax || !reEmail.MatchString(s) {
		return "", domain.Invalid("user", "email", "malformed address")
	}
	return s, nil
}

// Q validates a search query: trims, enforces allowed characters and max length
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if utf8.RuneCountInString(s) > 50 {
		s = string([]rune(s)[:50])
	}
	return s, reQ.MatchString(s)
}

// ID validates a simple resource identifier taken from a URL.
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Password enforces a length window and character classes for staff accounts.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 72 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
