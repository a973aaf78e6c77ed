package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"tictactoe-promo/internal/model"
)

// Constraint names from the vouchers table.
const (
	uniqueViolation          = "23505"
	constraintVoucherCode    = "uq_vouchers_code"
	constraintVoucherSession = "uq_vouchers_session"
)

// Voucher errors.
var (
	ErrVoucherNotFound = errors.New("voucher not found")

	// ErrCodeTaken means another voucher already uses the code.
	ErrCodeTaken = errors.New("voucher code already taken")

	// ErrSessionHasVoucher means the session already owns a voucher.
	ErrSessionHasVoucher = errors.New("session already has a voucher")
)

// VoucherRepository handles voucher persistence.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository creates a new VoucherRepository instance.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// Create inserts a voucher. ID, CreatedAt and Status are filled in on success.
// Unique violations are reported as ErrCodeTaken or ErrSessionHasVoucher.
func (r *VoucherRepository) Create(ctx context.Context, v *model.Voucher) error {
	const query = `
		INSERT INTO vouchers (code, expires_at, status, session_id, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`

	if v.Status == "" {
		v.Status = model.VoucherIssued
	}

	err := r.pool.QueryRow(ctx, query, v.Code, v.ExpiresAt, string(v.Status), v.SessionID).
		Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case constraintVoucherCode:
				return ErrCodeTaken
			case constraintVoucherSession:
				return ErrSessionHasVoucher
			}
		}
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	return nil
}

// GetBySessionID retrieves the voucher issued for a session.
// Returns ErrVoucherNotFound if there is none.
func (r *VoucherRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Voucher, error) {
	const query = `
		SELECT id, code, created_at, expires_at, status, session_id::text
		FROM vouchers
		WHERE session_id = $1
	`

	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, ErrVoucherNotFound
	}

	v, err := scanVoucher(r.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}

	return v, nil
}

// CountSince counts vouchers created at or after the given instant.
func (r *VoucherRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM vouchers WHERE created_at >= $1`

	var n int
	if err := r.pool.QueryRow(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vouchers: %w", err)
	}

	return n, nil
}

// ListRecent returns the newest vouchers first.
func (r *VoucherRepository) ListRecent(ctx context.Context, limit int) ([]*model.Voucher, error) {
	const query = `
		SELECT id, code, created_at, expires_at, status, session_id::text
		FROM vouchers
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []*model.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		vouchers = append(vouchers, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vouchers: %w", err)
	}

	return vouchers, nil
}

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	var status string
	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.CreatedAt,
		&v.ExpiresAt,
		&status,
		&v.SessionID,
	)
	if err != nil {
		return nil, err
	}
	v.Status = model.VoucherStatus(status)
	return &v, nil
}
