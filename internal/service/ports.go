// Package service provides the game session state machine and voucher
// issuance on top of the repositories.
package service

import (
	"context"
	"errors"
	"time"

	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/settings"
)

// Service errors. Board-level invalid moves surface as tictactoe.ErrInvalidMove.
var (
	ErrSessionNotFound         = errors.New("game session not found")
	ErrQuotaExceeded           = errors.New("daily voucher quota exceeded")
	ErrCodeGenerationExhausted = errors.New("could not generate a unique voucher code")
)

// SessionStore persists game sessions.
// Update must run fn under a lock that serializes writers of the same
// session and must not persist anything when fn fails.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	Update(ctx context.Context, id string, fn func(s *model.Session) error) (*model.Session, error)
	MarkNotified(ctx context.Context, id string, kind model.NotificationKind) (bool, error)
}

// VoucherStore persists vouchers. Create must report a duplicate code as
// repository.ErrCodeTaken and a second voucher for one session as
// repository.ErrSessionHasVoucher.
type VoucherStore interface {
	Create(ctx context.Context, v *model.Voucher) error
	GetBySessionID(ctx context.Context, sessionID string) (*model.Voucher, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// SettingsSource yields the effective runtime settings.
type SettingsSource interface {
	Snapshot(ctx context.Context) settings.Snapshot
}

// Notifier delivers outcome messages. Dispatch must return immediately
// and never fail the caller.
type Notifier interface {
	Dispatch(destination, text string)
}
