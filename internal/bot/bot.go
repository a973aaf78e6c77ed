// Package bot provides the operator Telegram bot: initialization,
// middleware and command registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"tictactoe-promo/internal/config"
	"tictactoe-promo/internal/handler"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	operatorHandler *handler.OperatorHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Operator handler.Operator
}

// New creates a long-polling Bot with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Telegram.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	return newWithSettings(tele.Settings{
		Token:  deps.Config.Telegram.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}, deps)
}

func newWithSettings(pref tele.Settings, deps *Dependencies) (*Bot, error) {
	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:             teleBot,
		cfg:             deps.Config,
		operatorHandler: handler.NewOperatorHandler(deps.Operator),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command handlers. Every command is
// operator-only.
func (b *Bot) registerHandlers() {
	ops := b.bot.Group()
	ops.Use(AdminMiddleware(b.cfg))

	ops.Handle("/start", b.operatorHandler.HandleHelp)
	ops.Handle("/help", b.operatorHandler.HandleHelp)
	ops.Handle("/stats", b.operatorHandler.HandleStats)
	ops.Handle("/vouchers", b.operatorHandler.HandleVouchers)
	ops.Handle("/game", b.operatorHandler.HandleGame)
	ops.Handle("/settings", b.operatorHandler.HandleSettings)
	ops.Handle("/set", b.operatorHandler.HandleSet)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Int("admins", len(b.cfg.Telegram.AdminIDs)).Msg("Starting operator bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping operator bot...")
	b.bot.Stop()
}

// GetBot returns the underlying telebot instance.
func (b *Bot) GetBot() *tele.Bot {
	return b.bot
}
