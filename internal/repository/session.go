// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tictactoe-promo/internal/game/tictactoe"
	"tictactoe-promo/internal/model"
)

// Common errors for session operations.
var (
	ErrSessionNotFound = errors.New("session not found")
)

const sessionSelect = `
	SELECT s.id::text, s.status, s.difficulty, s.board, s.history,
	       s.win_notified, s.lose_notified, s.created_at, s.updated_at, s.finished_at,
	       v.id, v.code, v.created_at, v.expires_at, v.status
	FROM game_sessions s
	LEFT JOIN vouchers v ON v.session_id = s.id
	WHERE s.id = $1
`

// SessionRepository handles game session persistence.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create inserts a new session. CreatedAt and UpdatedAt are filled in
// from the database clock.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	const query = `
		INSERT INTO game_sessions (id, status, difficulty, board, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	history, err := encodeHistory(s.History)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, query, s.ID, string(s.Status), string(s.Difficulty), s.Board.String(), history).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session together with its voucher, if any.
// Returns ErrSessionNotFound if the session does not exist.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	s, err := scanSession(r.pool.QueryRow(ctx, sessionSelect, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s, nil
}

// Update loads the session under a row lock, lets fn mutate it and writes
// the result back in the same transaction. Concurrent updates of one
// session are serialized by the database, so fn always sees the latest
// committed state. If fn returns an error nothing is written.
func (r *SessionRepository) Update(ctx context.Context, id string, fn func(s *model.Session) error) (*model.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	var updated *model.Session
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSession(tx.QueryRow(ctx, sessionSelect+" FOR UPDATE OF s", id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to lock session: %w", err)
		}

		if err := fn(s); err != nil {
			return err
		}

		history, err := encodeHistory(s.History)
		if err != nil {
			return err
		}

		const query = `
			UPDATE game_sessions
			SET status = $2, board = $3, history = $4, win_notified = $5,
			    lose_notified = $6, finished_at = $7, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`
		err = tx.QueryRow(ctx, query, id, string(s.Status), s.Board.String(), history,
			s.WinNotified, s.LoseNotified, s.FinishedAt).Scan(&s.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}

		updated = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MarkNotified sets the notification flag of the given kind if it is not
// set yet. It returns true only for the caller that flipped the flag.
func (r *SessionRepository) MarkNotified(ctx context.Context, id string, kind model.NotificationKind) (bool, error) {
	var query string
	switch kind {
	case model.NotifyWin:
		query = `UPDATE game_sessions SET win_notified = TRUE, updated_at = NOW() WHERE id = $1 AND win_notified = FALSE`
	case model.NotifyLose:
		query = `UPDATE game_sessions SET lose_notified = TRUE, updated_at = NOW() WHERE id = $1 AND lose_notified = FALSE`
	default:
		return false, fmt.Errorf("unknown notification kind %q", kind)
	}

	if _, err := uuid.Parse(id); err != nil {
		return false, ErrSessionNotFound
	}

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark %s notification: %w", kind, err)
	}

	return result.RowsAffected() == 1, nil
}

// CountByStatusSince counts sessions created since the given instant,
// grouped by status.
func (r *SessionRepository) CountByStatusSince(ctx context.Context, since time.Time) (map[model.Status]int, error) {
	const query = `
		SELECT status, COUNT(*)
		FROM game_sessions
		WHERE created_at >= $1
		GROUP BY status
	`

	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan session count: %w", err)
		}
		counts[model.Status(status)] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session counts: %w", err)
	}

	return counts, nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var (
		s          model.Session
		status     string
		difficulty string
		board      string
		history    []byte

		voucherID      *int64
		voucherCode    *string
		voucherCreated *time.Time
		voucherExpires *time.Time
		voucherStatus  *string
	)

	err := row.Scan(
		&s.ID,
		&status,
		&difficulty,
		&board,
		&history,
		&s.WinNotified,
		&s.LoseNotified,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.FinishedAt,
		&voucherID,
		&voucherCode,
		&voucherCreated,
		&voucherExpires,
		&voucherStatus,
	)
	if err != nil {
		return nil, err
	}

	s.Status = model.Status(status)
	s.Difficulty = model.Difficulty(difficulty)

	s.Board, err = tictactoe.ParseBoard(board)
	if err != nil {
		return nil, fmt.Errorf("corrupt board for session %s: %w", s.ID, err)
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &s.History); err != nil {
			return nil, fmt.Errorf("corrupt history for session %s: %w", s.ID, err)
		}
	}

	if voucherID != nil {
		sessionID := s.ID
		s.Voucher = &model.Voucher{
			ID:        *voucherID,
			Code:      *voucherCode,
			CreatedAt: *voucherCreated,
			ExpiresAt: *voucherExpires,
			Status:    model.VoucherStatus(*voucherStatus),
			SessionID: &sessionID,
		}
	}

	return &s, nil
}

func encodeHistory(history []model.Move) ([]byte, error) {
	if history == nil {
		history = []model.Move{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to encode move history: %w", err)
	}
	return b, nil
}
