package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tictactoe-promo/internal/model"
)

// Settings errors.
var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
	ErrReadOnly     = errors.New("settings store not configured")
)

// Validate checks that value is acceptable for key.
func Validate(key, value string) error {
	v := strings.TrimSpace(value)

	switch key {
	case KeyTelegramEnabled:
		if _, ok := parseBool(v); !ok {
			return fmt.Errorf("%w: %s expects true or false", ErrInvalidValue, key)
		}
	case KeyPromoTTLHours:
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s expects a positive integer", ErrInvalidValue, key)
		}
	case KeyPromoDailyLimit:
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s expects a non-negative integer", ErrInvalidValue, key)
		}
	case KeyDefaultDifficulty:
		if _, ok := model.ParseDifficulty(strings.ToLower(v)); !ok {
			return fmt.Errorf("%w: %s expects easy, medium or hard", ErrInvalidValue, key)
		}
	case KeyTelegramChatID, KeyTemplateLose:
		if v == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidValue, key)
		}
	case KeyTemplateWin:
		if !strings.Contains(v, "{code}") {
			return fmt.Errorf("%w: %s must contain {code}", ErrInvalidValue, key)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	return nil
}
