package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog/log"

	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/repository"
	"tictactoe-promo/internal/settings"
)

const (
	// CodeLength is the number of digits in a voucher code.
	CodeLength = 5

	// MaxCodeAttempts bounds the retries on code collisions.
	MaxCodeAttempts = 30
)

var codeSpace = big.NewInt(100000)

// GenerateCode returns a zero-padded 5 digit code drawn from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// VoucherService issues unique, expiring voucher codes.
// Uniqueness is enforced by the store; the retry loop handles collisions.
type VoucherService struct {
	vouchers VoucherStore
	now      func() time.Time
	codes    func() (string, error)
}

// NewVoucherService creates a new VoucherService instance.
func NewVoucherService(vouchers VoucherStore) *VoucherService {
	return &VoucherService{
		vouchers: vouchers,
		now:      time.Now,
		codes:    GenerateCode,
	}
}

// IssueForSession returns the session's voucher, issuing one if it has none.
// Repeated calls for the same session return the same voucher.
func (s *VoucherService) IssueForSession(ctx context.Context, session *model.Session, policy settings.VoucherPolicy) (*model.Voucher, error) {
	if session.Voucher != nil {
		return session.Voucher, nil
	}

	existing, err := s.vouchers.GetBySessionID(ctx, session.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrVoucherNotFound) {
		return nil, fmt.Errorf("failed to look up session voucher: %w", err)
	}

	sessionID := session.ID
	return s.issue(ctx, &sessionID, policy)
}

// IssueStandalone issues a voucher that is not tied to any session.
func (s *VoucherService) IssueStandalone(ctx context.Context, policy settings.VoucherPolicy) (*model.Voucher, error) {
	return s.issue(ctx, nil, policy)
}

func (s *VoucherService) issue(ctx context.Context, sessionID *string, policy settings.VoucherPolicy) (*model.Voucher, error) {
	now := s.now().UTC()

	// The count and the insert are separate statements, so the quota can be
	// overshot by concurrent issuers near the boundary.
	if policy.DailyLimit > 0 {
		issued, err := s.vouchers.CountSince(ctx, startOfDay(now))
		if err != nil {
			return nil, fmt.Errorf("failed to count today's vouchers: %w", err)
		}
		if issued >= policy.DailyLimit {
			return nil, fmt.Errorf("%w: %d of %d issued today", ErrQuotaExceeded, issued, policy.DailyLimit)
		}
	}

	expiresAt := now.Add(policy.TTL)

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code, err := s.codes()
		if err != nil {
			return nil, err
		}

		v := &model.Voucher{
			Code:      code,
			ExpiresAt: expiresAt,
			Status:    model.VoucherIssued,
			SessionID: sessionID,
		}

		err = s.vouchers.Create(ctx, v)
		switch {
		case err == nil:
			log.Info().
				Str("code", v.Code).
				Str("session_id", deref(sessionID)).
				Time("expires_at", v.ExpiresAt).
				Int("attempt", attempt).
				Msg("Voucher issued")
			return v, nil

		case errors.Is(err, repository.ErrCodeTaken):
			log.Debug().Int("attempt", attempt).Msg("Voucher code collision, retrying")
			continue

		case errors.Is(err, repository.ErrSessionHasVoucher) && sessionID != nil:
			// A concurrent issuer won the race for this session.
			existing, getErr := s.vouchers.GetBySessionID(ctx, *sessionID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrently issued voucher: %w", getErr)
			}
			return existing, nil

		default:
			return nil, fmt.Errorf("failed to store voucher: %w", err)
		}
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrCodeGenerationExhausted, MaxCodeAttempts)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
