package calls

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/medintake/intake-ai-platform/internal/openmic"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// Dialer places outbound calls with the voice provider.
type Dialer interface {
	InitiateCall(ctx context.Context, req openmic.InitiateCallRequest) (*openmic.Call, error)
}

// Handler handles HTTP requests for calls
type Handler struct {
	repo   Repository
	dialer Dialer
	logger *logging.Logger
}

// NewHandler creates a new calls handler. dialer may be nil when outbound
// calling is disabled.
func NewHandler(repo Repository, dialer Dialer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, dialer: dialer, logger: logger}
}

// List handles GET /api/calls with optional bot_id and status filters
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		BotID:  r.URL.Query().Get("bot_id"),
		Status: Status(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !ValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}
	all, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list calls", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch calls")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": all})
}

// Get handles GET /api/calls/{callId}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")
	call, err := h.repo.GetByCallID(r.Context(), callID)
	if err != nil {
		if errors.Is(err, ErrCallNotFound) {
			writeError(w, http.StatusNotFound, "Call not found")
			return
		}
		h.logger.Error("failed to fetch call", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"call": call})
}

// Initiate handles POST /api/calls: it asks the provider to dial out and
// records the initiated call.
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	if h.dialer == nil {
		writeError(w, http.StatusServiceUnavailable, "Outbound calling is not configured")
		return
	}
	var req struct {
		BotID       string `json:"bot_id"`
		PhoneNumber string `json:"phone_number"`
		PatientID   string `json:"patient_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.BotID) == "" || strings.TrimSpace(req.PhoneNumber) == "" {
		writeError(w, http.StatusBadRequest, "bot_id and phone_number are required")
		return
	}

	providerCall, err := h.dialer.InitiateCall(r.Context(), openmic.InitiateCallRequest{
		BotID:       req.BotID,
		PhoneNumber: req.PhoneNumber,
		CustomerID:  req.PatientID,
	})
	if err != nil {
		var apiErr *openmic.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			writeError(w, http.StatusBadGateway, "Provider rejected the call request")
			return
		}
		h.logger.Error("failed to initiate call", "bot_id", req.BotID, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to initiate call")
		return
	}

	call := &Call{
		CallID:        providerCall.ID,
		ProviderBotID: req.BotID,
		PatientID:     req.PatientID,
		PhoneNumber:   req.PhoneNumber,
		Status:        StatusInitiated,
	}
	if err := h.repo.Create(r.Context(), call); err != nil && !errors.Is(err, ErrDuplicateCall) {
		// The provider is already dialing; surface the record failure but
		// keep the call id in the response.
		h.logger.Error("failed to record initiated call", "call_id", providerCall.ID, "error", err)
	}

	h.logger.Info("outbound call initiated", "call_id", providerCall.ID, "bot_id", req.BotID)
	writeJSON(w, http.StatusCreated, map[string]any{"call": call})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
