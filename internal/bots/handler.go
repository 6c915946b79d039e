package bots

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// Handler handles HTTP requests for bots
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new bots handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /api/bots
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list bots", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch bots")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bots": all})
}

// Get handles GET /api/bots/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bot, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "Bot not found")
			return
		}
		h.logger.Error("failed to fetch bot", "provider_bot_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch bot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bot": bot})
}

// Create handles POST /api/bots
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	bot, err := h.service.Create(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingName), errors.Is(err, ErrMissingPrompt), errors.Is(err, ErrInvalidDomain):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to create bot", "error", err)
			writeError(w, http.StatusBadGateway, "Failed to create bot")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bot": bot})
}

// Update handles PATCH /api/bots/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	bot, err := h.service.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "Bot not found")
			return
		}
		h.logger.Error("failed to update bot", "provider_bot_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to update bot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bot": bot})
}

// Delete handles DELETE /api/bots/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrBotNotFound) {
			writeError(w, http.StatusNotFound, "Bot not found")
			return
		}
		h.logger.Error("failed to delete bot", "provider_bot_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to delete bot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Bot deleted successfully"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
