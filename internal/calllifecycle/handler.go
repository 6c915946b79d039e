package calllifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medintake/intake-ai-platform/internal/audit"
	"github.com/medintake/intake-ai-platform/internal/observability/metrics"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

const (
	genericGreeting = "Welcome to our medical practice. I'll help you with your intake today."
	needMedicalID   = "I need your medical ID to look up your information. Could you please provide it?"
	lookupTrouble   = "I'm having trouble accessing the patient database right now. Please try again in a moment."
)

// Handler exposes the three provider webhooks that drive the state machine.
type Handler struct {
	machine  *Machine
	metrics  *metrics.WebhookMetrics
	archiver *audit.Archiver
	logger   *logging.Logger
}

// NewHandler creates the webhook handler. metrics and archiver may be nil.
func NewHandler(machine *Machine, m *metrics.WebhookMetrics, archiver *audit.Archiver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		machine:  machine,
		metrics:  m,
		archiver: archiver,
		logger:   logger.WithComponent("webhooks"),
	}
}

// PreCall handles POST /api/webhooks/pre-call
func (h *Handler) PreCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveLatency("pre-call", time.Since(start).Seconds()) }()

	var payload PreCallPayload
	raw, err := decodePayload(r, &payload)
	if err != nil {
		h.metrics.ObserveInbound("pre-call", "invalid")
		writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := payload.Validate(); err != nil {
		h.metrics.ObserveInbound("pre-call", "invalid")
		writeError(w, http.StatusBadRequest, err.Error(), genericGreeting)
		return
	}

	result, err := h.machine.ApplyPreCall(r.Context(), payload, raw)
	if err != nil {
		// Never block the live call: answer success-shaped with a generic
		// greeting and leave the failure in the logs.
		h.logger.Error("pre-call processing failed", "call_id", payload.CallID, "error", err)
		h.metrics.ObserveInbound("pre-call", "error")
		writeJSON(w, http.StatusOK, PreCallResponse{
			CallID:       payload.CallID,
			PatientFound: false,
			Message:      genericGreeting,
		})
		return
	}

	h.metrics.ObserveInbound("pre-call", "ok")
	resp := PreCallResponse{CallID: payload.CallID}
	if result.Patient != nil {
		resp.PatientFound = true
		resp.PatientData = snapshotOf(result.Patient)
		resp.Message = greetingFor(result)
	} else {
		resp.Message = genericGreeting
	}
	h.logger.Info("pre-call processed",
		"call_id", payload.CallID, "patient_found", resp.PatientFound,
		"already_applied", result.Outcome == AlreadyApplied)
	writeJSON(w, http.StatusOK, resp)
}

// FunctionCall handles POST /api/webhooks/in-call
func (h *Handler) FunctionCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveLatency("function-call", time.Since(start).Seconds()) }()

	var payload FunctionCallPayload
	raw, err := decodePayload(r, &payload)
	if err != nil {
		h.metrics.ObserveInbound("function-call", "invalid")
		writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := payload.Validate(); err != nil {
		h.metrics.ObserveInbound("function-call", "invalid")
		if errors.Is(err, ErrUnknownFunction) {
			writeError(w, http.StatusBadRequest, "Unknown function",
				fmt.Sprintf("I don't know how to handle %q yet. Let me connect you with our staff.", payload.FunctionName))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error(), needMedicalID)
		return
	}
	if payload.MedicalID() == "" {
		h.metrics.ObserveInbound("function-call", "invalid")
		writeError(w, http.StatusBadRequest, "Medical ID is required", needMedicalID)
		return
	}

	result, err := h.machine.ApplyFunctionCall(r.Context(), payload, raw)
	if err != nil {
		h.logger.Error("function-call processing failed", "call_id", payload.CallID, "error", err)
		h.metrics.ObserveInbound("function-call", "error")
		writeError(w, http.StatusInternalServerError, "Internal server error", lookupTrouble)
		return
	}

	switch result.Outcome {
	case NotFound:
		h.metrics.ObserveInbound("function-call", "not_found")
		writeError(w, http.StatusNotFound, "Call not found",
			"I couldn't match this conversation to an active call. Could you please call back?")
	case InvalidTransition:
		h.metrics.ObserveInbound("function-call", "invalid_transition")
		writeError(w, http.StatusConflict, "Call already ended",
			"This call has already been completed.")
	default:
		h.metrics.ObserveInbound("function-call", "ok")
		if result.Patient == nil {
			writeJSON(w, http.StatusOK, LookupResponse{
				PatientFound: false,
				Message: fmt.Sprintf("I couldn't find a patient with medical ID %s. Could you please verify the ID or provide your full name and date of birth?",
					payload.MedicalID()),
			})
			return
		}
		h.logger.Info("patient verified on call",
			"call_id", payload.CallID, "medical_id", result.Patient.MedicalID)
		writeJSON(w, http.StatusOK, LookupResponse{
			PatientFound: true,
			PatientData:  snapshotOf(result.Patient),
			Message:      fmt.Sprintf("Thank you %s for confirmation", result.Patient.FirstName),
		})
	}
}

// PostCall handles POST /api/webhooks/post-call
func (h *Handler) PostCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveLatency("post-call", time.Since(start).Seconds()) }()

	var payload PostCallPayload
	raw, err := decodePayload(r, &payload)
	if err != nil {
		h.metrics.ObserveInbound("post-call", "invalid")
		writeError(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if err := payload.Validate(); err != nil {
		h.metrics.ObserveInbound("post-call", "invalid")
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.machine.ApplyPostCall(r.Context(), payload, raw)
	if err != nil {
		h.logger.Error("post-call processing failed", "call_id", payload.CallID, "error", err)
		h.metrics.ObserveInbound("post-call", "error")
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}

	if result.Outcome == NotFound {
		h.metrics.ObserveInbound("post-call", "not_found")
		writeError(w, http.StatusNotFound, "Call not found", "")
		return
	}

	if result.Outcome == Applied {
		h.metrics.ObserveCallTerminal(string(result.Call.Status))
		if err := h.archiver.ArchiveCall(r.Context(), result.Call, *result.Insights); err != nil {
			// The record is already persisted; archival is best effort.
			h.logger.Error("call archival failed", "call_id", payload.CallID, "error", err)
		}
	}
	h.metrics.ObserveInbound("post-call", "ok")
	h.logger.Info("post-call processed",
		"call_id", payload.CallID, "status", result.Call.Status,
		"already_applied", result.Outcome == AlreadyApplied)
	writeJSON(w, http.StatusOK, PostCallResponse{
		Success:  true,
		CallID:   payload.CallID,
		Insights: *result.Insights,
		Message:  "Call processed successfully",
	})
}

// decodePayload reads the body once and returns it raw for snapshotting
// alongside the typed decode.
func decodePayload(r *http.Request, dst any) (json.RawMessage, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return raw, nil
}

func greetingFor(result TransitionResult) string {
	p := result.Patient
	msg := fmt.Sprintf("Hello %s, welcome back to our medical practice.", p.FirstName)
	if p.LastVisit != nil {
		msg += fmt.Sprintf(" Your last visit with us was on %s.", p.LastVisit.Format("January 2, 2006"))
	}
	if len(p.MedicalHistory.Allergies) > 0 {
		msg += " I have your allergy history on file."
	}
	return msg
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, errMsg, spoken string) {
	body := map[string]string{"error": errMsg}
	if spoken != "" {
		body["message"] = spoken
	}
	writeJSON(w, code, body)
}
