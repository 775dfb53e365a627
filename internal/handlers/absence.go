package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/remember-rp/concierge/internal/absence"
	"github.com/remember-rp/concierge/internal/board"
	"github.com/remember-rp/concierge/internal/calendar"
	"github.com/remember-rp/concierge/internal/model"
)

type AbsenceHandler struct {
	svc    *absence.Service
	board  *board.Refresher
	logger *slog.Logger
}

func NewAbsenceHandler(svc *absence.Service, boardRefresher *board.Refresher, logger *slog.Logger) *AbsenceHandler {
	return &AbsenceHandler{svc: svc, board: boardRefresher, logger: logger}
}

type declareAbsenceRequest struct {
	StaffID   string `json:"staff_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

type absenceItem struct {
	AbsenceID string `json:"absence_id"`
	StaffID   string `json:"staff_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
}

type deleteAbsenceRequest struct {
	AbsenceID string `json:"absence_id"`
	StaffID   string `json:"staff_id"`
}

func (h *AbsenceHandler) Declare(w http.ResponseWriter, r *http.Request) {
	h.declare(w, r, false)
}

// ForceDeclare is the administrative variant: backdated ranges are allowed.
func (h *AbsenceHandler) ForceDeclare(w http.ResponseWriter, r *http.Request) {
	h.declare(w, r, true)
}

func (h *AbsenceHandler) declare(w http.ResponseWriter, r *http.Request, force bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req declareAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" || req.StartDate == "" || req.EndDate == "" {
		http.Error(w, "staff_id, start_date and end_date required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	start, err := calendar.ParseDate(req.StartDate, now)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	end, err := calendar.ParseDate(req.EndDate, now)
	if err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	declare := h.svc.Declare
	if force {
		declare = h.svc.ForceDeclare
	}
	a, err := declare(r.Context(), req.StaffID, start, end, strings.TrimSpace(req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, absence.ErrInvalidRange):
			http.Error(w, "end date before start date", http.StatusBadRequest)
		case errors.Is(err, absence.ErrPastRange):
			http.Error(w, "absence period already over", http.StatusBadRequest)
		case errors.Is(err, absence.ErrOverlap):
			http.Error(w, "overlapping absence already declared", http.StatusConflict)
		default:
			h.logger.Error("declare absence failed", "err", err)
			http.Error(w, "failed to declare absence", http.StatusInternalServerError)
		}
		return
	}

	h.refresh(r)
	writeJSON(w, http.StatusCreated, toAbsenceItem(*a))
}

func (h *AbsenceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req deleteAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.AbsenceID == "" || req.StaffID == "" {
		http.Error(w, "absence_id and staff_id required", http.StatusBadRequest)
		return
	}

	if err := h.svc.Delete(r.Context(), req.AbsenceID, strings.TrimSpace(req.StaffID)); err != nil {
		if errors.Is(err, absence.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_handled"})
			return
		}
		h.logger.Error("delete absence failed", "err", err)
		http.Error(w, "failed to delete absence", http.StatusInternalServerError)
		return
	}

	h.refresh(r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AbsenceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	n, err := h.svc.Clear(r.Context())
	if err != nil {
		h.logger.Error("clear absences failed", "err", err)
		http.Error(w, "failed to clear absences", http.StatusInternalServerError)
		return
	}

	h.refresh(r)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *AbsenceHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		absences []model.Absence
		err      error
	)
	if staffID := strings.TrimSpace(r.URL.Query().Get("staff_id")); staffID != "" {
		absences, err = h.svc.ListMine(r.Context(), staffID)
	} else {
		absences, err = h.svc.ListUpcoming(r.Context(), 0)
	}
	if err != nil {
		http.Error(w, "failed to list absences", http.StatusInternalServerError)
		return
	}

	items := make([]absenceItem, 0, len(absences))
	for _, a := range absences {
		items = append(items, toAbsenceItem(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AbsenceHandler) refresh(r *http.Request) {
	if err := h.board.Absences(r.Context()); err != nil {
		h.logger.Warn("absence panel refresh failed", "err", err)
	}
}

func toAbsenceItem(a model.Absence) absenceItem {
	return absenceItem{
		AbsenceID: a.ID,
		StaffID:   a.StaffID,
		StartDate: a.StartDate.Format(time.DateOnly),
		EndDate:   a.EndDate.Format(time.DateOnly),
		Reason:    a.Reason,
	}
}
