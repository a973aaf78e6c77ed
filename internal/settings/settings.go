// Package settings resolves the runtime configuration used by the game and
// voucher flows: process defaults from config overlaid by operator edits
// stored in the database.
package settings

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tictactoe-promo/internal/config"
	"tictactoe-promo/internal/model"
)

// Keys understood in the app_settings table.
const (
	KeyTelegramEnabled   = "telegram_enabled"
	KeyTelegramChatID    = "telegram_chat_id"
	KeyTemplateWin       = "telegram_template_win"
	KeyTemplateLose      = "telegram_template_lose"
	KeyPromoTTLHours     = "promo_ttl_hours"
	KeyPromoDailyLimit   = "promo_daily_limit"
	KeyDefaultDifficulty = "default_difficulty"
)

// Keys lists every setting an operator may override.
var Keys = []string{
	KeyTelegramEnabled,
	KeyTelegramChatID,
	KeyTemplateWin,
	KeyTemplateLose,
	KeyPromoTTLHours,
	KeyPromoDailyLimit,
	KeyDefaultDifficulty,
}

// Store reads and writes raw key/value overrides.
type Store interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
}

// VoucherPolicy is the issuance configuration captured once per request.
type VoucherPolicy struct {
	TTL        time.Duration
	DailyLimit int // 0 means unlimited
}

// Snapshot is an immutable view of the effective settings.
type Snapshot struct {
	TelegramEnabled   bool
	ChatID            string
	WinTemplate       string
	LoseTemplate      string
	TTLHours          int
	DailyLimit        int
	DefaultDifficulty model.Difficulty
}

// VoucherPolicy extracts the issuance policy.
func (s Snapshot) VoucherPolicy() VoucherPolicy {
	return VoucherPolicy{
		TTL:        time.Duration(s.TTLHours) * time.Hour,
		DailyLimit: s.DailyLimit,
	}
}

// WinText renders the win template with the voucher code.
func (s Snapshot) WinText(code string) string {
	return strings.ReplaceAll(s.WinTemplate, "{code}", code)
}

// LoseText renders the lose template.
func (s Snapshot) LoseText() string {
	return s.LoseTemplate
}

// Provider produces settings snapshots.
type Provider struct {
	cfg   *config.Config
	store Store
}

// NewProvider creates a provider. store may be nil, in which case only the
// static configuration is used.
func NewProvider(cfg *config.Config, store Store) *Provider {
	return &Provider{cfg: cfg, store: store}
}

// Defaults returns the snapshot built from static configuration only.
func (p *Provider) Defaults() Snapshot {
	difficulty, ok := model.ParseDifficulty(p.cfg.Game.DefaultDifficulty)
	if !ok {
		difficulty = model.DifficultyMedium
	}
	return Snapshot{
		TelegramEnabled:   p.cfg.Telegram.Enabled,
		ChatID:            p.cfg.Telegram.ChatID,
		WinTemplate:       p.cfg.Templates.Win,
		LoseTemplate:      p.cfg.Templates.Lose,
		TTLHours:          p.cfg.Promo.TTLHours,
		DailyLimit:        p.cfg.Promo.DailyLimit,
		DefaultDifficulty: difficulty,
	}
}

// Snapshot returns the effective settings. A failing store degrades to the
// static defaults so games stay playable.
func (p *Provider) Snapshot(ctx context.Context) Snapshot {
	snap := p.Defaults()
	if p.store == nil {
		return snap
	}

	overrides, err := p.store.All(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load settings overrides, using defaults")
		return snap
	}

	return apply(snap, overrides)
}

// Set validates and stores an override.
func (p *Provider) Set(ctx context.Context, key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	if p.store == nil {
		return ErrReadOnly
	}
	return p.store.Set(ctx, key, strings.TrimSpace(value))
}

func apply(snap Snapshot, overrides map[string]string) Snapshot {
	if v, ok := overrides[KeyTelegramEnabled]; ok {
		if b, ok := parseBool(v); ok {
			snap.TelegramEnabled = b
		}
	}
	if v, ok := overrides[KeyTelegramChatID]; ok && strings.TrimSpace(v) != "" {
		snap.ChatID = strings.TrimSpace(v)
	}
	if v, ok := overrides[KeyTemplateWin]; ok && v != "" {
		snap.WinTemplate = v
	}
	if v, ok := overrides[KeyTemplateLose]; ok && v != "" {
		snap.LoseTemplate = v
	}
	if v, ok := overrides[KeyPromoTTLHours]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			snap.TTLHours = n
		}
	}
	if v, ok := overrides[KeyPromoDailyLimit]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			snap.DailyLimit = n
		}
	}
	if v, ok := overrides[KeyDefaultDifficulty]; ok {
		if d, ok := model.ParseDifficulty(strings.ToLower(strings.TrimSpace(v))); ok {
			snap.DefaultDifficulty = d
		}
	}
	return snap
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}
