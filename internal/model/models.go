// Package model defines the data models shared by the game and voucher services.
package model

import (
	"time"

	"tictactoe-promo/internal/game/tictactoe"
)

// Status is the lifecycle state of a game session.
type Status string

// Session statuses. Everything except StatusInProgress is terminal.
const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusWin        Status = "WIN"
	StatusLose       Status = "LOSE"
	StatusDraw       Status = "DRAW"
)

// Terminal reports whether no further moves can be applied.
func (s Status) Terminal() bool {
	return s != StatusInProgress
}

// Difficulty selects the opponent strategy.
type Difficulty string

// Known difficulties.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps user input to a known difficulty.
func ParseDifficulty(s string) (Difficulty, bool) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	default:
		return "", false
	}
}

// VoucherStatus is the redemption state of a voucher.
type VoucherStatus string

// Voucher statuses. Only issuance happens in this service.
const (
	VoucherIssued   VoucherStatus = "ISSUED"
	VoucherRedeemed VoucherStatus = "REDEEMED"
	VoucherExpired  VoucherStatus = "EXPIRED"
)

// NotificationKind identifies which outcome notification flag to set.
type NotificationKind string

// Notification kinds, one flag each on the session.
const (
	NotifyWin  NotificationKind = "win"
	NotifyLose NotificationKind = "lose"
)

// Move is one entry of a session's append-only move history.
type Move struct {
	Actor tictactoe.Mark `json:"player"`
	Cell  int            `json:"cell"`
	At    time.Time      `json:"ts"`
}

// Session is a single game against the scripted opponent.
type Session struct {
	ID           string          `db:"id"`
	Board        tictactoe.Board `db:"board"`
	Status       Status          `db:"status"`
	Difficulty   Difficulty      `db:"difficulty"`
	History      []Move          `db:"history"`
	WinNotified  bool            `db:"win_notified"`
	LoseNotified bool            `db:"lose_notified"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
	FinishedAt   *time.Time      `db:"finished_at"`

	// Voucher is populated on reads when one was issued for this session.
	Voucher *Voucher `db:"-"`
}

// Winner returns the mark of the winner, or Empty.
func (s *Session) Winner() tictactoe.Mark {
	return tictactoe.Evaluate(s.Board).Winner
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]Move(nil), s.History...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	if s.Voucher != nil {
		v := *s.Voucher
		c.Voucher = &v
	}
	return &c
}

// Voucher is a unique, expiring reward code.
type Voucher struct {
	ID        int64         `db:"id"`
	Code      string        `db:"code"`
	CreatedAt time.Time     `db:"created_at"`
	ExpiresAt time.Time     `db:"expires_at"`
	Status    VoucherStatus `db:"status"`
	SessionID *string       `db:"session_id"`
}
