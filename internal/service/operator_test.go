package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/settings"
)

func newOperatorEnv() (*OperatorService, *gameEnv) {
	env := newGameEnv(3, 4, 5)
	op := NewOperatorService(env.sessions, env.sessions, env.vouchers, env.settings)
	return op, env
}

func TestOperatorService_Today(t *testing.T) {
	op, env := newOperatorEnv()
	env.settings.update(func(s *settings.Snapshot) { s.DailyLimit = 10 })
	ctx := context.Background()

	won, err := env.svc.Create(ctx, "easy")
	require.NoError(t, err)
	env.play(t, won.ID, 0, 1, 2)
	_, err = env.svc.Create(ctx, "easy")
	require.NoError(t, err)
	env.vouchers.seed("12345", time.Now().Add(-48*time.Hour))

	stats, err := op.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Sessions[model.StatusWin])
	assert.Equal(t, 1, stats.Sessions[model.StatusInProgress])
	assert.Equal(t, 1, stats.VouchersIssued)
	assert.Equal(t, 9, stats.Remaining())
}

func TestDailyStats_Remaining(t *testing.T) {
	assert.Equal(t, -1, DailyStats{DailyLimit: 0, VouchersIssued: 7}.Remaining())
	assert.Equal(t, 0, DailyStats{DailyLimit: 3, VouchersIssued: 5}.Remaining())
	assert.Equal(t, 2, DailyStats{DailyLimit: 3, VouchersIssued: 1}.Remaining())
}

func TestOperatorService_RecentVouchers(t *testing.T) {
	op, env := newOperatorEnv()
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		_, err := env.svc.IssueBonusVoucher(ctx, "")
		require.NoError(t, err)
	}

	list, err := op.RecentVouchers(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 10)

	list, err = op.RecentVouchers(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, list, MaxRecentVouchers)
	assert.Greater(t, list[0].ID, list[1].ID)
}

func TestOperatorService_Session(t *testing.T) {
	op, env := newOperatorEnv()
	ctx := context.Background()

	s, err := env.svc.Create(ctx, "hard")
	require.NoError(t, err)

	got, err := op.Session(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DifficultyHard, got.Difficulty)

	_, err = op.Session(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestOperatorService_SetSetting(t *testing.T) {
	op, env := newOperatorEnv()
	ctx := context.Background()

	require.NoError(t, op.SetSetting(ctx, settings.KeyPromoDailyLimit, "5"))
	assert.Equal(t, "5", env.settings.set[settings.KeyPromoDailyLimit])

	assert.ErrorIs(t, op.SetSetting(ctx, "nope", "1"), settings.ErrUnknownKey)
	assert.Equal(t, env.settings.Snapshot(ctx), op.Settings(ctx))
}
