// Package handler provides Telegram bot command handlers for operators.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/notify"
	"tictactoe-promo/internal/service"
	"tictactoe-promo/internal/settings"
)

const defaultVoucherListing = 10

// Operator is the subset of the operator service the commands use.
type Operator interface {
	Today(ctx context.Context) (*service.DailyStats, error)
	RecentVouchers(ctx context.Context, limit int) ([]*model.Voucher, error)
	Session(ctx context.Context, id string) (*model.Session, error)
	Settings(ctx context.Context) settings.Snapshot
	SetSetting(ctx context.Context, key, value string) error
}

// OperatorHandler handles operator commands.
type OperatorHandler struct {
	ops     Operator
	timeout time.Duration
}

// NewOperatorHandler creates a new OperatorHandler.
func NewOperatorHandler(ops Operator) *OperatorHandler {
	return &OperatorHandler{
		ops:     ops,
		timeout: 10 * time.Second,
	}
}

func (h *OperatorHandler) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.timeout)
}

// HandleHelp handles /start and /help.
func (h *OperatorHandler) HandleHelp(c tele.Context) error {
	return c.Reply(
		"🛠 Команды оператора\n\n" +
			"/stats — статистика за сегодня\n" +
			"/vouchers [n] — последние промокоды\n" +
			"/game <id> — информация об игре\n" +
			"/settings — текущие настройки\n" +
			"/set <ключ> <значение> — изменить настройку",
	)
}

// HandleStats handles the /stats command.
func (h *OperatorHandler) HandleStats(c tele.Context) error {
	ctx, cancel := h.context()
	defer cancel()

	stats, err := h.ops.Today(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load daily stats")
		return c.Reply("❌ Не удалось получить статистику")
	}

	return c.Reply(FormatStats(stats))
}

// HandleVouchers handles the /vouchers command.
// Format: /vouchers [n]
func (h *OperatorHandler) HandleVouchers(c tele.Context) error {
	limit := defaultVoucherListing
	if args := c.Args(); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return c.Reply(fmt.Sprintf("❌ Укажите число от 1 до %d", service.MaxRecentVouchers))
		}
		limit = n
	}

	ctx, cancel := h.context()
	defer cancel()

	vouchers, err := h.ops.RecentVouchers(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list vouchers")
		return c.Reply("❌ Не удалось получить список промокодов")
	}

	return c.Reply(FormatVouchers(vouchers))
}

// HandleGame handles the /game command.
// Format: /game <session_id>
func (h *OperatorHandler) HandleGame(c tele.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Формат: /game <id>")
	}

	ctx, cancel := h.context()
	defer cancel()

	session, err := h.ops.Session(ctx, args[0])
	if errors.Is(err, service.ErrSessionNotFound) {
		return c.Reply("❌ Игра не найдена")
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", args[0]).Msg("Failed to load session")
		return c.Reply("❌ Не удалось загрузить игру")
	}

	return c.Reply(FormatSession(session))
}

// HandleSettings handles the /settings command.
func (h *OperatorHandler) HandleSettings(c tele.Context) error {
	ctx, cancel := h.context()
	defer cancel()

	return c.Reply(FormatSettings(h.ops.Settings(ctx)))
}

// HandleSet handles the /set command. The value is the rest of the line so
// templates may contain spaces.
// Format: /set <key> <value>
func (h *OperatorHandler) HandleSet(c tele.Context) error {
	key, value, ok := splitSetPayload(c.Message())
	if !ok {
		return c.Reply("❌ Формат: /set <ключ> <значение>\nКлючи: " + strings.Join(settings.Keys, ", "))
	}

	ctx, cancel := h.context()
	defer cancel()

	err := h.ops.SetSetting(ctx, key, value)
	switch {
	case errors.Is(err, settings.ErrUnknownKey):
		return c.Reply("❌ Неизвестный ключ. Доступные: " + strings.Join(settings.Keys, ", "))
	case errors.Is(err, settings.ErrInvalidValue):
		return c.Reply("❌ Некорректное значение: " + err.Error())
	case err != nil:
		log.Error().Err(err).Str("key", key).Msg("Failed to store setting")
		return c.Reply("❌ Не удалось сохранить настройку")
	}

	var operator int64
	if sender := c.Sender(); sender != nil {
		operator = sender.ID
	}
	log.Info().
		Int64("operator_id", operator).
		Str("key", key).
		Msg("Setting updated")

	return c.Reply(fmt.Sprintf("✅ %s обновлён", key))
}

func splitSetPayload(msg *tele.Message) (key, value string, ok bool) {
	if msg == nil {
		return "", "", false
	}
	key, value, ok = strings.Cut(strings.TrimSpace(msg.Payload), " ")
	value = strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

// FormatStats renders the daily report.
func FormatStats(s *service.DailyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статистика за %s (UTC)\n\n", s.Day.Format("2006-01-02"))

	total := 0
	for _, n := range s.Sessions {
		total += n
	}
	fmt.Fprintf(&b, "🎮 Игр начато: %d\n", total)
	fmt.Fprintf(&b, "   в процессе: %d\n", s.Sessions[model.StatusInProgress])
	fmt.Fprintf(&b, "   победы: %d\n", s.Sessions[model.StatusWin])
	fmt.Fprintf(&b, "   поражения: %d\n", s.Sessions[model.StatusLose])
	fmt.Fprintf(&b, "   ничьи: %d\n\n", s.Sessions[model.StatusDraw])

	if s.DailyLimit > 0 {
		fmt.Fprintf(&b, "🎁 Промокодов выдано: %d из %d (осталось %d)", s.VouchersIssued, s.DailyLimit, s.Remaining())
	} else {
		fmt.Fprintf(&b, "🎁 Промокодов выдано: %d (без лимита)", s.VouchersIssued)
	}
	return b.String()
}

// FormatVouchers renders a voucher listing, newest first.
func FormatVouchers(vouchers []*model.Voucher) string {
	if len(vouchers) == 0 {
		return "📭 Промокодов пока нет"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎁 Последние промокоды (%d)\n", len(vouchers))
	for _, v := range vouchers {
		origin := "бонус"
		if v.SessionID != nil {
			origin = shortID(*v.SessionID)
		}
		fmt.Fprintf(&b, "\n%s · %s · до %s · %s",
			v.Code, v.Status, v.ExpiresAt.UTC().Format("2006-01-02 15:04"), origin)
	}
	return b.String()
}

// FormatSession renders one session.
func FormatSession(s *model.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎮 Игра %s\n\n", s.ID)
	fmt.Fprintf(&b, "Статус: %s\nСложность: %s\n", s.Status, s.Difficulty)
	fmt.Fprintf(&b, "Ходов: %d\n", len(s.History))
	fmt.Fprintf(&b, "Начата: %s\n", s.CreatedAt.UTC().Format(time.RFC3339))
	if s.FinishedAt != nil {
		fmt.Fprintf(&b, "Завершена: %s\n", s.FinishedAt.UTC().Format(time.RFC3339))
	}

	cells := s.Board.Cells()
	b.WriteString("\n")
	for row := 0; row < 3; row++ {
		b.WriteString(strings.Join(cells[row*3:row*3+3], " "))
		b.WriteString("\n")
	}

	if s.Voucher != nil {
		fmt.Fprintf(&b, "\n🎁 Промокод: %s (до %s)", s.Voucher.Code, s.Voucher.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSettings renders the effective settings.
func FormatSettings(s settings.Snapshot) string {
	limit := strconv.Itoa(s.DailyLimit)
	if s.DailyLimit <= 0 {
		limit = "без лимита"
	}

	return fmt.Sprintf(
		"⚙️ Настройки\n\n"+
			"%s: %t\n"+
			"%s: %s\n"+
			"%s: %d\n"+
			"%s: %s\n"+
			"%s: %s\n\n"+
			"%s:\n%s\n\n"+
			"%s:\n%s",
		settings.KeyTelegramEnabled, s.TelegramEnabled,
		settings.KeyTelegramChatID, notify.MaskChatID(s.ChatID),
		settings.KeyPromoTTLHours, s.TTLHours,
		settings.KeyPromoDailyLimit, limit,
		settings.KeyDefaultDifficulty, s.DefaultDifficulty,
		settings.KeyTemplateWin, s.WinTemplate,
		settings.KeyTemplateLose, s.LoseTemplate,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
