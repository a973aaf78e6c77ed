// Package notify delivers game outcome messages to a Telegram chat.
// Delivery is best-effort: failures are logged and dropped.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// ErrNoDestination is returned when there is nowhere to send a message.
var ErrNoDestination = errors.New("no notification destination")

// Sender is the subset of *tele.Bot used for delivery.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// chatRef addresses a chat by numeric id or @username.
type chatRef string

func (c chatRef) Recipient() string { return string(c) }

// Dispatcher sends messages in the background.
type Dispatcher struct {
	sender       Sender
	chatUsername string
	wg           sync.WaitGroup
}

// NewTelegramBot creates a bot that only sends. Offline mode skips the
// getMe handshake so startup does not depend on Telegram being reachable.
func NewTelegramBot(token string, timeout time.Duration) (*tele.Bot, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram sender: %w", err)
	}
	return bot, nil
}

// NewDispatcher creates a dispatcher. chatUsername is the last-resort
// destination when a numeric chat id is not found.
func NewDispatcher(sender Sender, chatUsername string) *Dispatcher {
	return &Dispatcher{sender: sender, chatUsername: chatUsername}
}

// Dispatch sends text in a new goroutine and returns immediately.
func (d *Dispatcher) Dispatch(destination, text string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Notification dispatch panicked")
			}
		}()

		if err := d.Send(destination, text); err != nil {
			log.Error().Err(err).Str("chat_id", MaskChatID(destination)).Msg("Failed to deliver notification")
		}
	}()
}

// Wait blocks until in-flight dispatches finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers text synchronously, trying the alternative ids of a
// group or channel when Telegram does not know the configured chat.
func (d *Dispatcher) Send(destination, text string) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return ErrNoDestination
	}

	_, err := d.sender.Send(chatRef(destination), text)
	if err == nil {
		log.Info().Str("chat_id", MaskChatID(destination)).Int("length", len(text)).Msg("Notification sent")
		return nil
	}
	if !isChatNotFound(err) {
		return err
	}

	for _, alt := range Alternatives(destination, d.chatUsername) {
		_, altErr := d.sender.Send(chatRef(alt), text)
		if altErr == nil {
			log.Info().
				Str("chat_id", MaskChatID(destination)).
				Str("resolved", MaskChatID(alt)).
				Msg("Notification sent to alternative chat id")
			return nil
		}
		log.Debug().Err(altErr).Str("chat_id", MaskChatID(alt)).Msg("Alternative chat id rejected")
	}

	return err
}

// Alternatives lists the destinations to try after "chat not found".
// A positive numeric id may really be a group (-id) or a supergroup
// (-100id); the configured username comes last.
func Alternatives(destination, username string) []string {
	var out []string

	if id, err := strconv.ParseInt(destination, 10, 64); err == nil && id > 0 {
		out = append(out, "-"+destination, "-100"+destination)
	}

	username = strings.TrimSpace(username)
	if username != "" {
		if !strings.HasPrefix(username, "@") {
			username = "@" + username
		}
		if username != destination {
			out = append(out, username)
		}
	}

	return out
}

func isChatNotFound(err error) bool {
	if errors.Is(err, tele.ErrChatNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "chat not found")
}

// MaskChatID shortens an id for logs.
func MaskChatID(id string) string {
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}

// Noop discards every message. It is used when no bot token is configured.
type Noop struct{}

// Dispatch logs and drops the message.
func (Noop) Dispatch(destination, _ string) {
	log.Debug().Str("chat_id", MaskChatID(destination)).Msg("Telegram not configured, notification dropped")
}
