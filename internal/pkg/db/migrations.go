package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// migrations are applied in order; each statement must be idempotent.
var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "game_sessions table",
		sql: `
			CREATE TABLE IF NOT EXISTS game_sessions (
				id UUID PRIMARY KEY,
				status VARCHAR(16) NOT NULL,
				difficulty VARCHAR(16) NOT NULL,
				board CHAR(9) NOT NULL,
				history JSONB NOT NULL DEFAULT '[]'::jsonb,
				win_notified BOOLEAN NOT NULL DEFAULT FALSE,
				lose_notified BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				finished_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_game_sessions_status ON game_sessions(status, created_at DESC);
		`,
	},
	{
		name: "vouchers table",
		sql: `
			CREATE TABLE IF NOT EXISTS vouchers (
				id BIGSERIAL PRIMARY KEY,
				code CHAR(5) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMPTZ NOT NULL,
				status VARCHAR(16) NOT NULL DEFAULT 'ISSUED',
				session_id UUID REFERENCES game_sessions(id),
				CONSTRAINT uq_vouchers_code UNIQUE (code),
				CONSTRAINT uq_vouchers_session UNIQUE (session_id)
			);
			CREATE INDEX IF NOT EXISTS idx_vouchers_created_at ON vouchers(created_at DESC);
		`,
	},
	{
		name: "app_settings table",
		sql: `
			CREATE TABLE IF NOT EXISTS app_settings (
				key VARCHAR(128) PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, conn Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := conn.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
