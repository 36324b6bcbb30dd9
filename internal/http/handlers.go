package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stagedoor/seat-inventory/internal/config"
	"github.com/stagedoor/seat-inventory/internal/domain"
	"github.com/stagedoor/seat-inventory/internal/idempotency"
	"github.com/stagedoor/seat-inventory/internal/inventory"
	"github.com/stagedoor/seat-inventory/internal/observability"
)

type Handlers struct {
	cfg        *config.Config
	holds      *inventory.HoldManager
	reconciler *inventory.Reconciler
	ledger     *inventory.Ledger
	blocks     *inventory.BlockManager
	index      *inventory.Index
	idemp      *idempotency.Idempotency
	logger     observability.Logger
}

func NewHandlers(cfg *config.Config, holds *inventory.HoldManager, reconciler *inventory.Reconciler, ledger *inventory.Ledger, blocks *inventory.BlockManager, index *inventory.Index, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:        cfg,
		holds:      holds,
		reconciler: reconciler,
		ledger:     ledger,
		blocks:     blocks,
		index:      index,
		idemp:      idemp,
		logger:     logger,
	}
}

// replay short-circuits a repeated Idempotency-Key with the stored
// response. Returns true when the request was already answered.
func (h *Handlers) replay(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		reqLogger(r, h.logger).Warn("idempotency lookup failed: ", err)
		return key, false
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return key, true
	}
	return key, false
}

func (h *Handlers) remember(r *http.Request, key string, status int, body []byte) {
	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: body}); err != nil {
		reqLogger(r, h.logger).Warn("idempotency store failed: ", err)
	}
}

func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	token, err := domain.NewSessionToken()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"session_id": token})
}

func (h *Handlers) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "event_id"))
	if err != nil {
		writeError(w, errInvalid("invalid event id"))
		return
	}
	av, err := h.index.Unavailable(r.Context(), eventID, r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	key, done := h.replay(w, r)
	if done {
		return
	}

	var req struct {
		EventID   uuid.UUID `json:"event_id"`
		Seats     []string  `json:"seats"`
		SessionID string    `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	res, err := h.holds.CreateHold(r.Context(), req.EventID, req.Seats, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if len(res.Held) == 0 {
		// Every requested seat was taken; the per-seat detail still goes
		// back so the client can show exactly which seats failed.
		status = http.StatusConflict
	}
	body := writeJSON(w, status, map[string]interface{}{
		"held_seats":        res.Held,
		"unavailable_seats": res.Unavailable,
		"expires_at":        res.ExpiresAt.Format(time.RFC3339),
	})
	h.remember(r, key, status, body)
}

func (h *Handlers) ReleaseHolds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID   uuid.UUID `json:"event_id"`
		SessionID string    `json:"session_id"`
		Seats     []string  `json:"seats"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	count, err := h.holds.ReleaseHolds(r.Context(), req.EventID, req.SessionID, req.Seats)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"released": count})
}

func (h *Handlers) ExtendHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID         uuid.UUID `json:"event_id"`
		SessionID       string    `json:"session_id"`
		DurationSeconds int       `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	expiresAt, err := h.holds.ExtendHold(r.Context(), req.EventID, req.SessionID, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"expires_at": expiresAt.Format(time.RFC3339)})
}

func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	key, done := h.replay(w, r)
	if done {
		return
	}

	var req struct {
		EventID   uuid.UUID            `json:"event_id"`
		SessionID string               `json:"session_id"`
		Seats     []string             `json:"seats"`
		CartItems []inventory.CartItem `json:"cart_items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	committed, err := h.reconciler.Reconcile(r.Context(), req.EventID, req.Seats, req.SessionID, req.CartItems)
	if err != nil {
		writeError(w, err)
		return
	}
	body := writeJSON(w, http.StatusOK, map[string]interface{}{"seats": committed})
	h.remember(r, key, http.StatusOK, body)
}

func (h *Handlers) CommitBooking(w http.ResponseWriter, r *http.Request) {
	key, done := h.replay(w, r)
	if done {
		return
	}

	var req struct {
		EventID       uuid.UUID        `json:"event_id"`
		Seats         []string         `json:"seats"`
		SessionID     string           `json:"session_id"`
		OrderID       int64            `json:"order_id"`
		OrderItemIDs  map[string]int64 `json:"order_item_ids"`
		CustomerEmail string           `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	bookings, err := h.ledger.CommitBooking(r.Context(), req.EventID, req.Seats, req.SessionID, req.OrderID, req.OrderItemIDs, req.CustomerEmail)
	if err != nil {
		writeError(w, err)
		return
	}

	seats := make([]string, len(bookings))
	for i, b := range bookings {
		seats[i] = b.SeatID
	}
	body := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"order_id": req.OrderID,
		"seats":    seats,
		"status":   domain.BookingConfirmed,
	})
	h.remember(r, key, http.StatusCreated, body)
}

func (h *Handlers) ReassignSeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID     int64  `json:"order_id"`
		OldSeat     string `json:"old_seat"`
		NewSeat     string `json:"new_seat"`
		OrderItemID int64  `json:"order_item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	booking, err := h.ledger.Reassign(r.Context(), req.OrderID, req.OldSeat, req.NewSeat, req.OrderItemID, adminActor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": booking.OrderID,
		"seat_id":  booking.SeatID,
		"status":   booking.Status,
	})
}

func (h *Handlers) SelectiveRefund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID    int64    `json:"order_id"`
		Seats      []string `json:"seats"`
		KeepHeld   bool     `json:"keep_held"`
		RefundID   string   `json:"refund_id"`
		OrderTotal float64  `json:"order_total"`
		TotalSeats int      `json:"total_seats"`
		Reason     string   `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	updated, err := h.ledger.SelectiveRefund(r.Context(), req.OrderID, req.Seats, req.KeepHeld, req.RefundID, req.OrderTotal, req.TotalSeats, req.Reason, adminActor(r))
	if err != nil {
		writeError(w, err)
		return
	}

	seats := make([]string, len(updated))
	for i, b := range updated {
		seats[i] = b.SeatID
	}
	status := domain.BookingPartiallyRefunded
	if req.KeepHeld {
		status = domain.BookingGuestList
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"refunded_seats":  seats,
		"amount_per_seat": domain.PerSeatRefundAmount(req.OrderTotal, req.TotalSeats),
		"status":          status,
	})
}

func (h *Handlers) FullRefundRelease(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID       int64   `json:"order_id"`
		OrderTotal    float64 `json:"order_total"`
		RefundedTotal float64 `json:"refunded_total"`
		Reason        string  `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	released, err := h.ledger.FullRefundRelease(r.Context(), req.OrderID, req.OrderTotal, req.RefundedTotal, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	seats := make([]string, len(released))
	for i, b := range released {
		seats[i] = b.SeatID
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"released_seats": seats})
}

func (h *Handlers) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID    uuid.UUID  `json:"event_id"`
		Seats      []string   `json:"seats"`
		Type       string     `json:"type"`
		Reason     string     `json:"reason"`
		ValidFrom  *time.Time `json:"valid_from"`
		ValidUntil *time.Time `json:"valid_until"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errInvalid("malformed request body"))
		return
	}

	blockID, err := h.blocks.CreateBlock(r.Context(), req.EventID, req.Seats, req.Type, req.Reason, adminActor(r), req.ValidFrom, req.ValidUntil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"block_id": blockID})
}

func (h *Handlers) RemoveBlock(w http.ResponseWriter, r *http.Request) {
	blockID, err := uuid.Parse(chi.URLParam(r, "block_id"))
	if err != nil {
		writeError(w, errInvalid("invalid block id"))
		return
	}
	if err := h.blocks.RemoveBlock(r.Context(), blockID, adminActor(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": true})
}

func (h *Handlers) ListBlocks(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "event_id"))
	if err != nil {
		writeError(w, errInvalid("invalid event id"))
		return
	}
	blocks, err := h.blocks.ListBlocks(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	if blocks == nil {
		blocks = []domain.SeatBlock{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"blocks": blocks})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func errInvalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, domain.ErrInvalidInput)
}

func adminActor(r *http.Request) string {
	if actor := r.Header.Get("X-Admin-User"); actor != "" {
		return actor
	}
	return "admin"
}
