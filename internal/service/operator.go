package service

import (
	"context"
	"fmt"
	"time"

	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/settings"
)

// MaxRecentVouchers caps the operator voucher listing.
const MaxRecentVouchers = 50

// ReportStore exposes the aggregate reads the operator reports need.
type ReportStore interface {
	CountByStatusSince(ctx context.Context, since time.Time) (map[model.Status]int, error)
}

// VoucherLister lists and counts vouchers for reports.
type VoucherLister interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
	ListRecent(ctx context.Context, limit int) ([]*model.Voucher, error)
}

// SettingsEditor validates and stores setting overrides.
type SettingsEditor interface {
	SettingsSource
	Set(ctx context.Context, key, value string) error
}

// DailyStats summarizes today's (UTC) activity.
type DailyStats struct {
	Day            time.Time
	Sessions       map[model.Status]int
	VouchersIssued int
	DailyLimit     int
}

// Remaining returns how many vouchers can still be issued today, or -1
// when there is no limit.
func (d DailyStats) Remaining() int {
	if d.DailyLimit <= 0 {
		return -1
	}
	if left := d.DailyLimit - d.VouchersIssued; left > 0 {
		return left
	}
	return 0
}

// OperatorService answers operator queries.
type OperatorService struct {
	sessions ReportStore
	lookup   SessionStore
	vouchers VoucherLister
	settings SettingsEditor
	now      func() time.Time
}

// NewOperatorService creates a new OperatorService instance.
func NewOperatorService(sessions ReportStore, lookup SessionStore, vouchers VoucherLister, editor SettingsEditor) *OperatorService {
	return &OperatorService{
		sessions: sessions,
		lookup:   lookup,
		vouchers: vouchers,
		settings: editor,
		now:      time.Now,
	}
}

// Today returns activity since the start of the current UTC day.
func (s *OperatorService) Today(ctx context.Context) (*DailyStats, error) {
	day := startOfDay(s.now())

	sessions, err := s.sessions.CountByStatusSince(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get session stats: %w", err)
	}

	issued, err := s.vouchers.CountSince(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher stats: %w", err)
	}

	return &DailyStats{
		Day:            day,
		Sessions:       sessions,
		VouchersIssued: issued,
		DailyLimit:     s.settings.Snapshot(ctx).DailyLimit,
	}, nil
}

// RecentVouchers lists the newest vouchers, clamping limit to [1, MaxRecentVouchers].
func (s *OperatorService) RecentVouchers(ctx context.Context, limit int) ([]*model.Voucher, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > MaxRecentVouchers {
		limit = MaxRecentVouchers
	}
	return s.vouchers.ListRecent(ctx, limit)
}

// Session returns one session for inspection.
func (s *OperatorService) Session(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.lookup.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return session, nil
}

// Settings returns the effective settings.
func (s *OperatorService) Settings(ctx context.Context) settings.Snapshot {
	return s.settings.Snapshot(ctx)
}

// SetSetting stores an override.
func (s *OperatorService) SetSetting(ctx context.Context, key, value string) error {
	return s.settings.Set(ctx, key, value)
}
