package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/remember-rp/concierge/internal/availability"
	"github.com/remember-rp/concierge/internal/board"
	"github.com/remember-rp/concierge/internal/calendar"
	"github.com/remember-rp/concierge/internal/negotiation"
)

type NegotiationHandler struct {
	engine *negotiation.Engine
	board  *board.Refresher
	hours  []string
	logger *slog.Logger
}

func NewNegotiationHandler(engine *negotiation.Engine, boardRefresher *board.Refresher, hours []string, logger *slog.Logger) *NegotiationHandler {
	return &NegotiationHandler{engine: engine, board: boardRefresher, hours: hours, logger: logger}
}

type proposeRequest struct {
	InitiatorID   string `json:"initiator_id"`
	CounterpartID string `json:"counterpart_id"`
	ChannelRef    string `json:"channel_ref"`
	Day           string `json:"day"`
	Hour          string `json:"hour"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	SlotAt    string `json:"slot_at"`
	ExpiresAt string `json:"expires_at"`
}

type acceptRequest struct {
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id"`
}

type counterRequest struct {
	SessionID string `json:"session_id"`
	ActorID   string `json:"actor_id"`
	Day       string `json:"day"`
	Hour      string `json:"hour"`
}

type acceptResponse struct {
	AppointmentID string `json:"appointment_id"`
	StartsAt      string `json:"starts_at"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	ActorID       string `json:"actor_id"`
}

type dayOptionItem struct {
	Day   string `json:"day"`
	Date  string `json:"date"`
	Label string `json:"label"`
}

type dayOptionsResponse struct {
	Days  []dayOptionItem `json:"days"`
	Hours []string        `json:"hours"`
}

func (h *NegotiationHandler) Propose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.InitiatorID = strings.TrimSpace(req.InitiatorID)
	req.CounterpartID = strings.TrimSpace(req.CounterpartID)
	if req.InitiatorID == "" || req.CounterpartID == "" || req.Day == "" {
		http.Error(w, "initiator_id, counterpart_id and day required", http.StatusBadRequest)
		return
	}

	sess, err := h.engine.Propose(r.Context(), req.InitiatorID, req.CounterpartID,
		strings.TrimSpace(req.ChannelRef), req.Day, req.Hour)
	if err != nil {
		if errors.Is(err, calendar.ErrUnknownDay) {
			http.Error(w, "unknown day", http.StatusBadRequest)
			return
		}
		if errors.Is(err, availability.ErrSlotConflict) {
			http.Error(w, "slot already taken", http.StatusConflict)
			return
		}
		h.logger.Error("propose failed", "err", err)
		http.Error(w, "failed to open negotiation", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, sessionToResponse(sess))
}

func (h *NegotiationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.ActorID == "" {
		http.Error(w, "session_id and actor_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.engine.Accept(r.Context(), req.SessionID, req.ActorID)
	if err != nil {
		h.writeEngineError(w, err, "accept failed")
		return
	}

	h.refreshPlanning(r)
	writeJSON(w, http.StatusOK, acceptResponse{
		AppointmentID: appt.ID,
		StartsAt:      appt.StartsAt.Format(time.RFC3339),
	})
}

func (h *NegotiationHandler) Counter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req counterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.ActorID == "" || req.Day == "" {
		http.Error(w, "session_id, actor_id and day required", http.StatusBadRequest)
		return
	}

	sess, err := h.engine.CounterPropose(r.Context(), req.SessionID, req.ActorID, req.Day, req.Hour)
	if err != nil {
		if errors.Is(err, calendar.ErrUnknownDay) {
			http.Error(w, "unknown day", http.StatusBadRequest)
			return
		}
		h.writeEngineError(w, err, "counter-propose failed")
		return
	}

	writeJSON(w, http.StatusOK, sessionToResponse(sess))
}

func (h *NegotiationHandler) Restart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.ActorID == "" {
		http.Error(w, "session_id and actor_id required", http.StatusBadRequest)
		return
	}

	if err := h.engine.Restart(r.Context(), req.SessionID, req.ActorID); err != nil {
		h.writeEngineError(w, err, "restart failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func (h *NegotiationHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	_, err := h.engine.CancelAppointment(r.Context(), req.AppointmentID, strings.TrimSpace(req.ActorID))
	if err != nil {
		if errors.Is(err, negotiation.ErrNotFound) {
			// Concurrent cancellation; nothing left to do.
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_handled"})
			return
		}
		h.logger.Error("cancel failed", "appointment_id", req.AppointmentID, "err", err)
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	h.refreshPlanning(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// DayOptions returns the seven selectable weekdays, each resolved to its next
// occurrence starting tomorrow, plus the configured hour choices.
func (h *NegotiationHandler) DayOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	options := calendar.UpcomingDays(time.Now())
	items := make([]dayOptionItem, 0, len(options))
	for _, o := range options {
		items = append(items, dayOptionItem{
			Day:   o.Day.String(),
			Date:  o.Date.Format(time.DateOnly),
			Label: o.Label(),
		})
	}
	writeJSON(w, http.StatusOK, dayOptionsResponse{Days: items, Hours: h.hours})
}

func (h *NegotiationHandler) writeEngineError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, negotiation.ErrNotFound):
		// Expired or already handled; both are benign for the caller.
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_handled"})
	case errors.Is(err, negotiation.ErrNotAddressed):
		http.Error(w, "not your turn to decide", http.StatusForbidden)
	case errors.Is(err, availability.ErrSlotConflict):
		http.Error(w, "slot already taken", http.StatusConflict)
	default:
		h.logger.Error(logMsg, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *NegotiationHandler) refreshPlanning(r *http.Request) {
	if err := h.board.Planning(r.Context()); err != nil {
		h.logger.Warn("planning panel refresh failed", "err", err)
	}
}

func sessionToResponse(sess *negotiation.Session) sessionResponse {
	return sessionResponse{
		SessionID: sess.ID,
		Status:    sess.Status.String(),
		SlotAt:    sess.SlotAt.Format(time.RFC3339),
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
