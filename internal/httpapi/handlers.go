package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tictactoe-promo/internal/game/tictactoe"
	"tictactoe-promo/internal/model"
	"tictactoe-promo/internal/service"
)

const maxBodyBytes = 1 << 16

type handlers struct {
	svc    GameAPI
	health func(ctx context.Context) error
}

type newGameRequest struct {
	Difficulty string `json:"difficulty"`
}

type moveRequest struct {
	SessionID string `json:"session_id"`
	Cell      *int   `json:"cell"`
}

type giftPromoRequest struct {
	SessionID string `json:"session_id"`
}

type gameStateResponse struct {
	SessionID      string       `json:"session_id"`
	Board          []string     `json:"board"`
	Status         model.Status `json:"status"`
	Winner         *string      `json:"winner"`
	LastPlayerMove *int         `json:"last_player_move"`
	LastBotMove    *int         `json:"last_bot_move"`
	PromoCode      *string      `json:"promo_code"`
	PromoExpiresAt *string      `json:"promo_expires_at"`
}

type promoResponse struct {
	PromoCode      string `json:"promo_code"`
	PromoExpiresAt string `json:"promo_expires_at"`
	Message        string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *handlers) newGame(w http.ResponseWriter, r *http.Request) {
	var req newGameRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректный запрос.")
		return
	}

	session, err := h.svc.Create(r.Context(), req.Difficulty)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stateResponse(session))
}

func (h *handlers) move(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректный запрос.")
		return
	}
	if _, err := uuid.Parse(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректный идентификатор сессии.")
		return
	}
	if req.Cell == nil || *req.Cell < 0 || *req.Cell >= tictactoe.BoardSize {
		writeError(w, http.StatusBadRequest, "Номер клетки должен быть от 0 до 8.")
		return
	}

	res, err := h.svc.ApplyPlayerMove(r.Context(), req.SessionID, *req.Cell)
	if err != nil {
		h.fail(w, err)
		return
	}

	resp := stateResponse(res.Session)
	resp.LastPlayerMove = res.PlayerMove
	resp.LastBotMove = res.OpponentMove
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse(session))
}

func (h *handlers) giftPromo(w http.ResponseWriter, r *http.Request) {
	var req giftPromoRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Некорректный запрос.")
		return
	}

	res, err := h.svc.IssueBonusVoucher(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Не удалось выдать промокод: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, promoResponse{
		PromoCode:      res.Voucher.Code,
		PromoExpiresAt: res.Voucher.ExpiresAt.UTC().Format(time.RFC3339),
		Message:        res.Message,
	})
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// fail maps service errors to HTTP statuses.
func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tictactoe.ErrInvalidMove):
		writeError(w, http.StatusBadRequest, "Недопустимый ход.")
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Игровая сессия не найдена.")
	default:
		log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера.")
	}
}

func stateResponse(s *model.Session) gameStateResponse {
	resp := gameStateResponse{
		SessionID: s.ID,
		Board:     s.Board.Cells(),
		Status:    s.Status,
	}
	if w := s.Winner(); w != tictactoe.Empty {
		mark := string(w)
		resp.Winner = &mark
	}
	if s.Voucher != nil {
		code := s.Voucher.Code
		expires := s.Voucher.ExpiresAt.UTC().Format(time.RFC3339)
		resp.PromoCode = &code
		resp.PromoExpiresAt = &expires
	}
	return resp
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

// decodeOptionalJSON accepts an empty body as the zero request.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if err := decodeJSON(w, r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
