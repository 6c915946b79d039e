package appointments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// Handler handles HTTP requests for appointments
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a new appointments handler
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /api/appointments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list appointments", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": all})
}

// Get handles GET /api/appointments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appt, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.Error("failed to fetch appointment", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch appointment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": appt})
}

// Create handles POST /api/appointments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	appt, err := h.repo.Create(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingPatient), errors.Is(err, ErrMissingSchedule), errors.Is(err, ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to create appointment", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create appointment")
		}
		return
	}
	h.logger.Info("appointment created",
		"appointment_id", appt.ID, "medical_id", appt.MedicalID,
		"date", appt.Date, "time", appt.Time)
	writeJSON(w, http.StatusCreated, map[string]any{"appointment": appt})
}

// UpdateOutcome handles PATCH /api/appointments/{id}
func (h *Handler) UpdateOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Status Status `json:"status"`
		Date   string `json:"date,omitempty"`
		Time   string `json:"time,omitempty"`
		Note   string `json:"note,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	appt, err := h.repo.ApplyOutcome(r.Context(), id, Outcome{
		Status: req.Status,
		Date:   req.Date,
		Time:   req.Time,
		Note:   req.Note,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrAppointmentNotFound):
			writeError(w, http.StatusNotFound, "Appointment not found")
		default:
			h.logger.Error("failed to update appointment", "appointment_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to update appointment")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": appt})
}

// Delete handles DELETE /api/appointments/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			writeError(w, http.StatusNotFound, "Appointment not found")
			return
		}
		h.logger.Error("failed to delete appointment", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete appointment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Appointment deleted"})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
