package calls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/medintake/intake-ai-platform/internal/openmic"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

type stubDialer struct {
	req  openmic.InitiateCallRequest
	call *openmic.Call
	err  error
}

func (d *stubDialer) InitiateCall(_ context.Context, req openmic.InitiateCallRequest) (*openmic.Call, error) {
	d.req = req
	return d.call, d.err
}

func newCallRequest(method, target, callID string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("callId", callID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestInitiateCall_RecordsCall(t *testing.T) {
	repo := NewInMemoryRepository()
	dialer := &stubDialer{call: &openmic.Call{ID: "call-99", BotID: "bot-1", Status: "registered"}}
	handler := NewHandler(repo, dialer, logging.Default())

	body, _ := json.Marshal(map[string]string{
		"bot_id":       "bot-1",
		"phone_number": "+15551234567",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/calls", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Initiate(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	if dialer.req.BotID != "bot-1" || dialer.req.PhoneNumber != "+15551234567" {
		t.Fatalf("unexpected provider request: %+v", dialer.req)
	}
	stored, err := repo.GetByCallID(context.Background(), "call-99")
	if err != nil {
		t.Fatalf("expected call to be recorded: %v", err)
	}
	if stored.Status != StatusInitiated {
		t.Fatalf("expected initiated status, got %s", stored.Status)
	}
}

func TestInitiateCall_MissingFields(t *testing.T) {
	handler := NewHandler(NewInMemoryRepository(), &stubDialer{}, logging.Default())

	body, _ := json.Marshal(map[string]string{"bot_id": "bot-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/calls", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Initiate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestInitiateCall_ProviderFailure(t *testing.T) {
	dialer := &stubDialer{err: errors.New("connection refused")}
	handler := NewHandler(NewInMemoryRepository(), dialer, logging.Default())

	body, _ := json.Marshal(map[string]string{
		"bot_id":       "bot-1",
		"phone_number": "+15551234567",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/calls", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Initiate(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, w.Code)
	}
}

func TestInitiateCall_NoDialerConfigured(t *testing.T) {
	handler := NewHandler(NewInMemoryRepository(), nil, logging.Default())

	body, _ := json.Marshal(map[string]string{
		"bot_id":       "bot-1",
		"phone_number": "+15551234567",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/calls", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Initiate(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	handler := NewHandler(NewInMemoryRepository(), nil, logging.Default())

	req := newCallRequest(http.MethodGet, "/api/calls/missing", "missing", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestListCalls_FiltersByBot(t *testing.T) {
	repo := NewInMemoryRepository()
	handler := NewHandler(repo, nil, logging.Default())
	seedCall(t, repo, "call-1", "bot-1", "+15551111111")
	seedCall(t, repo, "call-2", "bot-2", "+15552222222")

	req := httptest.NewRequest(http.MethodGet, "/api/calls?bot_id=bot-1", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp struct {
		Calls []Call `json:"calls"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Calls) != 1 || resp.Calls[0].CallID != "call-1" {
		t.Fatalf("expected only bot-1 calls, got %+v", resp.Calls)
	}
}

func TestListCalls_InvalidStatusFilter(t *testing.T) {
	handler := NewHandler(NewInMemoryRepository(), nil, logging.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/calls?status=ringing", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
