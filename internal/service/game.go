package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tictactoe-promo/internal/game"
	"tictactoe-promo/internal/game/tictactoe"
	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/pkg/lock"
	"tictactoe-promo/internal/repository"
	"tictactoe-promo/internal/settings"
)

// BonusMessageFormat is shown to the player on a bonus voucher.
const BonusMessageFormat = "🎁 Победа по подаркам! Ваш промокод: %s"

// RewardTimeout bounds voucher issuance after a win has been committed.
const RewardTimeout = 10 * time.Second

// errSessionFinished aborts an update that found the session already terminal.
var errSessionFinished = errors.New("session already finished")

// MoveResult is the outcome of one player move.
// PlayerMove and OpponentMove are nil when the move was not applied
// (session already finished) or when the opponent did not get to reply.
type MoveResult struct {
	Session      *model.Session
	PlayerMove   *int
	OpponentMove *int
}

// BonusResult is the outcome of a bonus voucher request.
type BonusResult struct {
	Voucher *model.Voucher
	Message string
}

// turn records what happened inside a single move transaction.
type turn struct {
	player     int
	opponent   *int
	notifyLose bool
}

// GameService runs game sessions against the scripted opponent.
type GameService struct {
	sessions   SessionStore
	vouchers   *VoucherService
	strategies *game.Registry
	settings   SettingsSource
	notifier   Notifier
	locks      *lock.KeyLock
	now        func() time.Time
	newID      func() string
}

// NewGameService creates a new GameService instance.
func NewGameService(
	sessions SessionStore,
	vouchers *VoucherService,
	strategies *game.Registry,
	settingsSource SettingsSource,
	notifier Notifier,
	locks *lock.KeyLock,
) *GameService {
	return &GameService{
		sessions:   sessions,
		vouchers:   vouchers,
		strategies: strategies,
		settings:   settingsSource,
		notifier:   notifier,
		locks:      locks,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Create starts a new session. An empty or unknown difficulty uses the
// configured default.
func (s *GameService) Create(ctx context.Context, difficulty string) (*model.Session, error) {
	d, ok := model.ParseDifficulty(strings.ToLower(strings.TrimSpace(difficulty)))
	if !ok {
		d = s.settings.Snapshot(ctx).DefaultDifficulty
	}

	session := &model.Session{
		ID:         s.newID(),
		Board:      tictactoe.NewBoard(),
		Status:     model.StatusInProgress,
		Difficulty: d,
		History:    []model.Move{},
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", session.ID).
		Str("difficulty", string(d)).
		Msg("Game session created")

	return session, nil
}

// Get returns the current state of a session without side effects.
func (s *GameService) Get(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return session, nil
}

// ApplyPlayerMove applies the player's move and, if the game goes on, the
// opponent's reply. A move on a finished session returns the session as is.
func (s *GameService) ApplyPlayerMove(ctx context.Context, id string, cell int) (*MoveResult, error) {
	if err := s.locks.LockContext(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	defer s.locks.Unlock(id)

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return &MoveResult{Session: current}, nil
	}

	snap := s.settings.Snapshot(ctx)
	notify := snap.TelegramEnabled && snap.ChatID != ""

	var t turn
	updated, err := s.sessions.Update(ctx, id, func(session *model.Session) error {
		if session.Status.Terminal() {
			return errSessionFinished
		}
		var err error
		t, err = s.play(session, cell, notify)
		return err
	})
	switch {
	case errors.Is(err, errSessionFinished):
		latest, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &MoveResult{Session: latest}, nil
	case errors.Is(err, repository.ErrSessionNotFound):
		return nil, ErrSessionNotFound
	case errors.Is(err, tictactoe.ErrInvalidMove):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to apply move: %w", err)
	}

	result := &MoveResult{
		Session:      updated,
		PlayerMove:   &t.player,
		OpponentMove: t.opponent,
	}

	switch updated.Status {
	case model.StatusWin:
		log.Info().Str("session_id", id).Int("cell", cell).Msg("Player won")
		// The win is already committed and a retried move will not reward
		// it again, so the client going away must not abort issuance.
		rewardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RewardTimeout)
		s.rewardWin(rewardCtx, updated, snap, notify)
		cancel()
	case model.StatusLose:
		log.Info().Str("session_id", id).Msg("Opponent won")
		if t.notifyLose {
			s.notifier.Dispatch(snap.ChatID, snap.LoseText())
		}
	case model.StatusDraw:
		log.Info().Str("session_id", id).Msg("Game ended in a draw")
	}

	return result, nil
}

// play mutates session for one full turn. It runs inside the session
// transaction, so the status change and the lose flag commit together.
func (s *GameService) play(session *model.Session, cell int, notify bool) (turn, error) {
	t := turn{player: cell}

	board, err := tictactoe.ApplyMove(session.Board, cell, tictactoe.Player)
	if err != nil {
		return t, err
	}
	now := s.now().UTC()
	session.Board = board
	session.History = append(session.History, model.Move{Actor: tictactoe.Player, Cell: cell, At: now})

	res := tictactoe.Evaluate(board)
	switch {
	case res.Winner == tictactoe.Player:
		s.finish(session, model.StatusWin, now)
		return t, nil
	case res.IsDraw:
		s.finish(session, model.StatusDraw, now)
		return t, nil
	}

	strategy := s.strategies.Get(session.Difficulty)
	reply, err := strategy.ChooseMove(board)
	if err != nil {
		return t, fmt.Errorf("%s strategy failed: %w", strategy.Name(), err)
	}
	board, err = tictactoe.ApplyMove(board, reply, tictactoe.Opponent)
	if err != nil {
		return t, fmt.Errorf("%s strategy chose an illegal cell %d: %w", strategy.Name(), reply, err)
	}
	session.Board = board
	session.History = append(session.History, model.Move{Actor: tictactoe.Opponent, Cell: reply, At: now})
	t.opponent = &reply

	res = tictactoe.Evaluate(board)
	switch {
	case res.Winner == tictactoe.Opponent:
		s.finish(session, model.StatusLose, now)
		if notify && !session.LoseNotified {
			session.LoseNotified = true
			t.notifyLose = true
		}
	case res.IsDraw:
		s.finish(session, model.StatusDraw, now)
	}

	return t, nil
}

func (s *GameService) finish(session *model.Session, status model.Status, at time.Time) {
	session.Status = status
	session.FinishedAt = &at
}

// rewardWin issues the session voucher and sends the win notification at
// most once. Failures degrade to a win without a voucher.
func (s *GameService) rewardWin(ctx context.Context, session *model.Session, snap settings.Snapshot, notify bool) {
	voucher, err := s.vouchers.IssueForSession(ctx, session, snap.VoucherPolicy())
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to issue voucher for win")
		return
	}
	session.Voucher = voucher

	if !notify {
		log.Info().Str("session_id", session.ID).Msg("Notifications disabled, skipping win message")
		return
	}
	s.notifyWinOnce(ctx, session, snap, voucher.Code)
}

// notifyWinOnce flips the durable win flag and dispatches only if this
// caller was the one to flip it.
func (s *GameService) notifyWinOnce(ctx context.Context, session *model.Session, snap settings.Snapshot, code string) {
	first, err := s.sessions.MarkNotified(ctx, session.ID, model.NotifyWin)
	if err != nil {
		log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to mark win notification")
		return
	}
	if !first {
		log.Info().Str("session_id", session.ID).Msg("Win message already sent")
		return
	}
	session.WinNotified = true
	s.notifier.Dispatch(snap.ChatID, snap.WinText(code))
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return fmt.Errorf("failed to get session: %w", err)
}

// IssueBonusVoucher issues a voucher for a win confirmed outside the board
// game. A known session gets its (single) voucher; otherwise a standalone
// voucher is issued.
func (s *GameService) IssueBonusVoucher(ctx context.Context, sessionID string) (*BonusResult, error) {
	snap := s.settings.Snapshot(ctx)
	policy := snap.VoucherPolicy()
	notify := snap.TelegramEnabled && snap.ChatID != ""

	var session *model.Session
	if sessionID != "" {
		if err := s.locks.LockContext(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("failed to lock session: %w", err)
		}
		defer s.locks.Unlock(sessionID)

		found, err := s.Get(ctx, sessionID)
		switch {
		case errors.Is(err, ErrSessionNotFound):
			log.Warn().Str("session_id", sessionID).Msg("Bonus session not found, issuing standalone voucher")
		case err != nil:
			return nil, err
		default:
			session = found
		}
	}

	var (
		voucher *model.Voucher
		err     error
	)
	if session != nil {
		voucher, err = s.vouchers.IssueForSession(ctx, session, policy)
	} else {
		voucher, err = s.vouchers.IssueStandalone(ctx, policy)
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to issue bonus voucher")
		return nil, err
	}

	if notify {
		if session != nil {
			s.notifyWinOnce(ctx, session, snap, voucher.Code)
		} else {
			s.notifier.Dispatch(snap.ChatID, snap.WinText(voucher.Code))
		}
	}

	return &BonusResult{
		Voucher: voucher,
		Message: fmt.Sprintf(BonusMessageFormat, voucher.Code),
	}, nil
}
