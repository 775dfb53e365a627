package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/remember-rp/concierge/internal/board"
	"github.com/remember-rp/concierge/internal/icalfeed"
	"github.com/remember-rp/concierge/internal/links"
	"github.com/remember-rp/concierge/internal/storage"
)

type PlanningHandler struct {
	appts  *storage.AppointmentRepository
	links  *links.Service
	board  *board.Refresher
	logger *slog.Logger
}

func NewPlanningHandler(appts *storage.AppointmentRepository, linkSvc *links.Service, boardRefresher *board.Refresher, logger *slog.Logger) *PlanningHandler {
	return &PlanningHandler{appts: appts, links: linkSvc, board: boardRefresher, logger: logger}
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	RequesterID   string `json:"requester_id"`
	CounterpartID string `json:"counterpart_id"`
	StartsAt      string `json:"starts_at"`
	ChannelRef    string `json:"channel_ref,omitempty"`
}

type addLinkRequest struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type removeLinkRequest struct {
	Label string `json:"label"`
}

func (h *PlanningHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.appts.ListUpcoming(r.Context(), time.Now(), limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, appointmentItem{
			AppointmentID: a.ID,
			RequesterID:   a.RequesterID,
			CounterpartID: a.CounterpartID,
			StartsAt:      a.StartsAt.Format(time.RFC3339),
			ChannelRef:    a.ChannelRef,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *PlanningHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n, err := h.appts.Clear(r.Context())
	if err != nil {
		h.logger.Error("clear appointments failed", "err", err)
		http.Error(w, "failed to clear appointments", http.StatusInternalServerError)
		return
	}

	if err := h.board.Planning(r.Context()); err != nil {
		h.logger.Warn("planning panel refresh failed", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// Feed exports the upcoming schedule as an iCalendar document so staff can
// subscribe from their own calendar apps.
func (h *PlanningHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	appts, err := h.appts.ListUpcoming(r.Context(), now, 100)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(icalfeed.Serialize(appts, now)))
}

func (h *PlanningHandler) AddLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req addLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		http.Error(w, "label required", http.StatusBadRequest)
		return
	}

	if err := h.links.Add(r.Context(), req.Label, req.URL); err != nil {
		if errors.Is(err, links.ErrInvalidURL) {
			http.Error(w, "url must start with http:// or https://", http.StatusBadRequest)
			return
		}
		h.logger.Error("add link failed", "err", err)
		http.Error(w, "failed to add link", http.StatusInternalServerError)
		return
	}

	h.refreshLinks(r)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (h *PlanningHandler) RemoveLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req removeLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		http.Error(w, "label required", http.StatusBadRequest)
		return
	}

	if err := h.links.Remove(r.Context(), strings.TrimSpace(req.Label)); err != nil {
		if errors.Is(err, links.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_handled"})
			return
		}
		h.logger.Error("remove link failed", "err", err)
		http.Error(w, "failed to remove link", http.StatusInternalServerError)
		return
	}

	h.refreshLinks(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *PlanningHandler) refreshLinks(r *http.Request) {
	if err := h.board.Links(r.Context()); err != nil {
		h.logger.Warn("links panel refresh failed", "err", err)
	}
}
