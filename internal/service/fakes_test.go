package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"tictactoe-promo/internal/game/tictactoe"
	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/repository"
	"tictactoe-promo/internal/settings"
)

// memVouchers mirrors the vouchers table: unique code, at most one
// voucher per session.
type memVouchers struct {
	mu        sync.Mutex
	rows      []*model.Voucher
	nextID    int64
	now       func() time.Time
	creates   int
	createErr error
}

func newMemVouchers() *memVouchers {
	return &memVouchers{now: time.Now}
}

func (m *memVouchers) Create(_ context.Context, v *model.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, row := range m.rows {
		if row.Code == v.Code {
			return repository.ErrCodeTaken
		}
		if v.SessionID != nil && row.SessionID != nil && *row.SessionID == *v.SessionID {
			return repository.ErrSessionHasVoucher
		}
	}

	m.nextID++
	v.ID = m.nextID
	v.CreatedAt = m.now()
	if v.Status == "" {
		v.Status = model.VoucherIssued
	}
	stored := *v
	m.rows = append(m.rows, &stored)
	return nil
}

func (m *memVouchers) GetBySessionID(_ context.Context, sessionID string) (*model.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v := m.bySessionLocked(sessionID); v != nil {
		return v, nil
	}
	return nil, repository.ErrVoucherNotFound
}

func (m *memVouchers) bySessionLocked(sessionID string) *model.Voucher {
	for _, row := range m.rows {
		if row.SessionID != nil && *row.SessionID == sessionID {
			v := *row
			return &v
		}
	}
	return nil
}

func (m *memVouchers) CountSince(_ context.Context, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if !row.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memVouchers) ListRecent(_ context.Context, limit int) ([]*model.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Voucher, 0, len(m.rows))
	for _, row := range m.rows {
		v := *row
		out = append(out, &v)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memVouchers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// seed stores a voucher directly, bypassing the clock.
func (m *memVouchers) seed(code string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows = append(m.rows, &model.Voucher{ID: m.nextID, Code: code, CreatedAt: createdAt, Status: model.VoucherIssued})
}

// memSessions mirrors the game_sessions table. Update holds the store
// mutex for the whole callback, like a row lock held for a transaction.
type memSessions struct {
	mu       sync.Mutex
	rows     map[string]*model.Session
	vouchers *memVouchers
}

func newMemSessions(vouchers *memVouchers) *memSessions {
	return &memSessions{rows: make(map[string]*model.Session), vouchers: vouchers}
}

func (m *memSessions) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	stored := s.Clone()
	stored.Voucher = nil
	m.rows[s.ID] = stored
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(id)
}

func (m *memSessions) loadLocked(id string) (*model.Session, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	s := row.Clone()
	if m.vouchers != nil {
		m.vouchers.mu.Lock()
		s.Voucher = m.vouchers.bySessionLocked(id)
		m.vouchers.mu.Unlock()
	}
	return s, nil
}

func (m *memSessions) Update(_ context.Context, id string, fn func(s *model.Session) error) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.loadLocked(id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.Now()
	stored := s.Clone()
	stored.Voucher = nil
	m.rows[id] = stored
	return s, nil
}

func (m *memSessions) MarkNotified(_ context.Context, id string, kind model.NotificationKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return false, repository.ErrSessionNotFound
	}
	switch kind {
	case model.NotifyWin:
		if row.WinNotified {
			return false, nil
		}
		row.WinNotified = true
	case model.NotifyLose:
		if row.LoseNotified {
			return false, nil
		}
		row.LoseNotified = true
	}
	return true, nil
}

func (m *memSessions) CountByStatusSince(_ context.Context, since time.Time) (map[model.Status]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[model.Status]int)
	for _, row := range m.rows {
		if !row.CreatedAt.Before(since) {
			out[row.Status]++
		}
	}
	return out, nil
}

// sentMessage is one captured notification.
type sentMessage struct {
	Destination string
	Text        string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Dispatch(destination, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{Destination: destination, Text: text})
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// staticSettings serves a fixed snapshot and records overrides.
type staticSettings struct {
	mu   sync.Mutex
	snap settings.Snapshot
	set  map[string]string
}

func newStaticSettings() *staticSettings {
	return &staticSettings{snap: settings.Snapshot{
		TelegramEnabled:   true,
		ChatID:            "-100500",
		WinTemplate:       "win {code}",
		LoseTemplate:      "lose",
		TTLHours:          72,
		DailyLimit:        0,
		DefaultDifficulty: model.DifficultyMedium,
	}}
}

func (s *staticSettings) Snapshot(context.Context) settings.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *staticSettings) Set(_ context.Context, key, value string) error {
	if err := settings.Validate(key, value); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[string]string)
	}
	s.set[key] = value
	return nil
}

func (s *staticSettings) update(fn func(*settings.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
}

// scripted plays the first empty cell of its order list, then any cell.
type scripted struct {
	order []int
}

func (s scripted) Name() string { return "scripted" }

func (s scripted) ChooseMove(b tictactoe.Board) (int, error) {
	for _, c := range s.order {
		if b[c] == tictactoe.Empty {
			return c, nil
		}
	}
	moves := tictactoe.AvailableMoves(b)
	if len(moves) == 0 {
		return 0, tictactoe.ErrNoMoves
	}
	return moves[0], nil
}
