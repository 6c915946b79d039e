package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// Handler handles HTTP requests for patients
type Handler struct {
	repo      Repository
	scheduler func(r *http.Request, patientID, medicalID string) error
	logger    *logging.Logger
}

// NewHandler creates a new patients handler. scheduleIntake may be nil when
// intake should not auto-book an appointment.
func NewHandler(repo Repository, scheduleIntake func(r *http.Request, patientID, medicalID string) error, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:      repo,
		scheduler: scheduleIntake,
		logger:    logger,
	}
}

// List handles GET /api/patients
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list patients", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch patients")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": all})
}

// Get handles GET /api/patients/{medicalId}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	medicalID := chi.URLParam(r, "medicalId")
	patient, err := h.repo.GetByMedicalID(r.Context(), medicalID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			writeError(w, http.StatusNotFound, "Patient not found")
			return
		}
		h.logger.Error("failed to fetch patient", "medical_id", medicalID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch patient")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patient": patient})
}

// Create handles POST /api/patients
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode patient request", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patient := newPatientFromRequest(&req)
	if err := h.repo.Create(r.Context(), patient); err != nil {
		h.logger.Error("failed to create patient", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create patient")
		return
	}

	if h.scheduler != nil {
		if err := h.scheduler(r, patient.ID, patient.MedicalID); err != nil {
			// Intake appointment is best-effort; the patient record stands.
			h.logger.Error("failed to schedule intake appointment",
				"medical_id", patient.MedicalID, "error", err)
		}
	}

	h.logger.Info("patient created", "medical_id", patient.MedicalID, "name", patient.FullName())
	writeJSON(w, http.StatusCreated, map[string]any{"patient": patient})
}

// Update handles PUT /api/patients/{medicalId}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	medicalID := chi.URLParam(r, "medicalId")
	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	patient, err := h.repo.Update(r.Context(), medicalID, &req)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			writeError(w, http.StatusNotFound, "Patient not found")
			return
		}
		h.logger.Error("failed to update patient", "medical_id", medicalID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update patient")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patient": patient})
}

// Delete handles DELETE /api/patients/{medicalId}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	medicalID := chi.URLParam(r, "medicalId")
	if err := h.repo.Delete(r.Context(), medicalID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			writeError(w, http.StatusNotFound, "Patient not found")
			return
		}
		h.logger.Error("failed to delete patient", "medical_id", medicalID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete patient")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Patient deleted"})
}

func newPatientFromRequest(req *CreatePatientRequest) *Patient {
	gender := req.Gender
	if gender == "" {
		gender = GenderOther
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		dob = time.Time{}
	}
	return &Patient{
		ID:          uuid.NewString(),
		MedicalID:   NewMedicalID(),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		DateOfBirth: dob,
		Gender:      gender,
		Address:     req.Address,
		MedicalHistory: MedicalHistory{
			Allergies:   []string{},
			Medications: []string{},
			Conditions:  []string{},
			Surgeries:   []string{},
		},
		Notes:          []string{},
		AvailableTimes: []string{},
	}
}

// NewMedicalID mints a clinic-issued patient identifier.
func NewMedicalID() string {
	return "MED-" + strings.ToUpper(uuid.NewString()[:8])
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
