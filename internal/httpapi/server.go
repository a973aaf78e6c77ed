// Package httpapi exposes the game and voucher operations as a JSON API.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/pkg/ratelimit"
	"tictactoe-promo/internal/service"
)

// GameAPI is the game service as seen by the handlers.
type GameAPI interface {
	Create(ctx context.Context, difficulty string) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	ApplyPlayerMove(ctx context.Context, id string, cell int) (*service.MoveResult, error)
	IssueBonusVoucher(ctx context.Context, sessionID string) (*service.BonusResult, error)
}

// Limiter decides whether a request fits in its budget.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (ratelimit.Result, error)
}

// Options configures optional parts of the server.
type Options struct {
	// Limiter is nil when rate limiting is disabled.
	Limiter            Limiter
	NewGamePerMinute   int
	GiftPromoPerMinute int

	// Health reports whether dependencies are reachable.
	Health func(ctx context.Context) error
}

// NewServer wires routes and returns an http.Handler.
func NewServer(svc GameAPI, opts Options) http.Handler {
	h := &handlers{svc: svc, health: opts.Health}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Route("/api/game", func(r chi.Router) {
		r.With(rateLimit(opts.Limiter, "new-game", opts.NewGamePerMinute)).Post("/new", h.newGame)
		r.Post("/move", h.move)
		r.With(rateLimit(opts.Limiter, "gift-promo", opts.GiftPromoPerMinute)).Post("/gift-promo", h.giftPromo)
		r.Get("/{id}", h.getGame)
	})

	return r
}
