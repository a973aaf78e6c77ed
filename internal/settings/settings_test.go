package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tictactoe-promo/internal/config"
	"tictactoe-promo/internal/model"
)

type memStore struct {
	values map[string]string
	err    error
}

func (m *memStore) All(context.Context) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Telegram.Enabled = true
	cfg.Telegram.ChatID = "100"
	cfg.Templates.Win = config.DefaultWinTemplate
	cfg.Templates.Lose = config.DefaultLoseTemplate
	cfg.Promo.TTLHours = 72
	cfg.Promo.DailyLimit = 500
	cfg.Game.DefaultDifficulty = "medium"
	return cfg
}

func TestProvider_DefaultsWithoutStore(t *testing.T) {
	p := NewProvider(testConfig(), nil)
	snap := p.Snapshot(context.Background())

	assert.True(t, snap.TelegramEnabled)
	assert.Equal(t, "100", snap.ChatID)
	assert.Equal(t, model.DifficultyMedium, snap.DefaultDifficulty)
	assert.Equal(t, VoucherPolicy{TTL: 72 * time.Hour, DailyLimit: 500}, snap.VoucherPolicy())

	assert.ErrorIs(t, p.Set(context.Background(), KeyPromoDailyLimit, "1"), ErrReadOnly)
}

func TestProvider_UnknownDefaultDifficulty(t *testing.T) {
	cfg := testConfig()
	cfg.Game.DefaultDifficulty = "nightmare"

	snap := NewProvider(cfg, nil).Defaults()
	assert.Equal(t, model.DifficultyMedium, snap.DefaultDifficulty)
}

func TestProvider_Overrides(t *testing.T) {
	store := &memStore{values: map[string]string{
		KeyTelegramEnabled:   "false",
		KeyTelegramChatID:    " @promo_channel ",
		KeyTemplateWin:       "code={code}",
		KeyTemplateLose:      "lost",
		KeyPromoTTLHours:     "24",
		KeyPromoDailyLimit:   "0",
		KeyDefaultDifficulty: "HARD",
	}}
	snap := NewProvider(testConfig(), store).Snapshot(context.Background())

	assert.False(t, snap.TelegramEnabled)
	assert.Equal(t, "@promo_channel", snap.ChatID)
	assert.Equal(t, "code=01234", snap.WinText("01234"))
	assert.Equal(t, "lost", snap.LoseText())
	assert.Equal(t, VoucherPolicy{TTL: 24 * time.Hour, DailyLimit: 0}, snap.VoucherPolicy())
	assert.Equal(t, model.DifficultyHard, snap.DefaultDifficulty)
}

func TestProvider_UnparseableOverridesKeepDefaults(t *testing.T) {
	store := &memStore{values: map[string]string{
		KeyTelegramEnabled:   "maybe",
		KeyPromoTTLHours:     "soon",
		KeyPromoDailyLimit:   "-4",
		KeyDefaultDifficulty: "impossible",
		KeyTelegramChatID:    "   ",
	}}
	snap := NewProvider(testConfig(), store).Snapshot(context.Background())

	assert.Equal(t, NewProvider(testConfig(), nil).Defaults(), snap)
}

func TestProvider_StoreFailureDegrades(t *testing.T) {
	store := &memStore{err: errors.New("connection refused")}
	snap := NewProvider(testConfig(), store).Snapshot(context.Background())

	assert.Equal(t, 500, snap.DailyLimit)
}

func TestProvider_Set(t *testing.T) {
	store := &memStore{}
	p := NewProvider(testConfig(), store)
	ctx := context.Background()

	require.NoError(t, p.Set(ctx, KeyPromoDailyLimit, " 7 "))
	assert.Equal(t, "7", store.values[KeyPromoDailyLimit])
	assert.Equal(t, 7, p.Snapshot(ctx).DailyLimit)

	assert.ErrorIs(t, p.Set(ctx, "admin_password", "x"), ErrUnknownKey)
	assert.ErrorIs(t, p.Set(ctx, KeyPromoTTLHours, "0"), ErrInvalidValue)
	assert.ErrorIs(t, p.Set(ctx, KeyTemplateWin, "no placeholder"), ErrInvalidValue)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		key, value string
		ok         bool
	}{
		{KeyTelegramEnabled, "on", true},
		{KeyTelegramEnabled, "2", false},
		{KeyPromoDailyLimit, "0", true},
		{KeyPromoDailyLimit, "-1", false},
		{KeyPromoTTLHours, "1", true},
		{KeyDefaultDifficulty, "Easy", true},
		{KeyTelegramChatID, "", false},
		{KeyTemplateLose, "bye", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := Validate(tt.key, tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
