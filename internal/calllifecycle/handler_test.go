package calllifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medintake/intake-ai-platform/pkg/logging"
)

func newWebhookHandler(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	return NewHandler(f.machine, nil, nil, logging.Default()), f
}

func postWebhook(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestPreCallWebhook_KnownPatient(t *testing.T) {
	handler, f := newWebhookHandler(t)
	f.addPatient(t, "MED-1", "Jane", "+15551234567")

	w := postWebhook(t, handler.PreCall, "/api/webhooks/pre-call", preCall("call-1", "bot-1", "+15551234567"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp PreCallResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.PatientFound {
		t.Fatal("expected patient_found true")
	}
	if resp.PatientData == nil || resp.PatientData.MedicalID != "MED-1" {
		t.Fatal("expected medical id in patient data")
	}
	if resp.Message == "" {
		t.Fatal("expected a greeting message")
	}
}

func TestPreCallWebhook_UnknownCaller(t *testing.T) {
	handler, f := newWebhookHandler(t)

	w := postWebhook(t, handler.PreCall, "/api/webhooks/pre-call", preCall("call-1", "bot-1", "+15550000000"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	var resp PreCallResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.PatientFound {
		t.Fatal("expected patient_found false")
	}
	if resp.Message != genericGreeting {
		t.Fatalf("expected generic greeting, got %q", resp.Message)
	}
	if _, err := f.calls.GetByCallID(context.Background(), "call-1"); err != nil {
		t.Fatal("expected call record to exist for unknown caller")
	}
}

func TestPreCallWebhook_InvalidPayload(t *testing.T) {
	handler, _ := newWebhookHandler(t)

	w := postWebhook(t, handler.PreCall, "/api/webhooks/pre-call", map[string]string{"bot_id": "bot-1"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestFunctionCallWebhook_UnknownFunction(t *testing.T) {
	handler, _ := newWebhookHandler(t)

	w := postWebhook(t, handler.FunctionCall, "/api/webhooks/in-call", FunctionCallPayload{
		CallID:       "call-1",
		BotID:        "bot-1",
		FunctionName: "doSomethingUnsupported",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp["error"] != "Unknown function" {
		t.Fatalf("expected Unknown function error, got %q", resp["error"])
	}
	if resp["message"] == "" {
		t.Fatal("expected a spoken message alongside the error")
	}
}

func TestFunctionCallWebhook_MissingMedicalID(t *testing.T) {
	handler, f := newWebhookHandler(t)
	f.runCallThrough(t, "call-1", "")

	w := postWebhook(t, handler.FunctionCall, "/api/webhooks/in-call", FunctionCallPayload{
		CallID:       "call-1",
		BotID:        "bot-1",
		FunctionName: FunctionGetPatientInfo,
		Parameters:   map[string]interface{}{},
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp["message"] != needMedicalID {
		t.Fatalf("expected spoken prompt for the medical id, got %q", resp["message"])
	}
}

func TestFunctionCallWebhook_UnknownCall(t *testing.T) {
	handler, _ := newWebhookHandler(t)

	w := postWebhook(t, handler.FunctionCall, "/api/webhooks/in-call", functionCall("missing", "MED-1"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestFunctionCallWebhook_LookupHitAndMiss(t *testing.T) {
	handler, f := newWebhookHandler(t)
	f.addPatient(t, "MED-1", "Jane", "+1555")
	if _, err := f.machine.ApplyPreCall(context.Background(), preCall("call-1", "bot-1", "+1777"), nil); err != nil {
		t.Fatalf("ApplyPreCall failed: %v", err)
	}

	hit := postWebhook(t, handler.FunctionCall, "/api/webhooks/in-call", functionCall("call-1", "MED-1"))
	if hit.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, hit.Code)
	}
	var hitResp LookupResponse
	_ = json.NewDecoder(hit.Body).Decode(&hitResp)
	if !hitResp.PatientFound || hitResp.PatientData == nil {
		t.Fatal("expected verified patient in response")
	}

	miss := postWebhook(t, handler.FunctionCall, "/api/webhooks/in-call", functionCall("call-1", "MED-404"))
	if miss.Code != http.StatusOK {
		t.Fatalf("expected status %d for lookup miss, got %d", http.StatusOK, miss.Code)
	}
	var missResp LookupResponse
	_ = json.NewDecoder(miss.Body).Decode(&missResp)
	if missResp.PatientFound {
		t.Fatal("expected patient_found false for unknown medical id")
	}
	if missResp.Message == "" {
		t.Fatal("expected re-identification prompt")
	}
}

func TestPostCallWebhook_UnknownCall(t *testing.T) {
	handler, _ := newWebhookHandler(t)

	w := postWebhook(t, handler.PostCall, "/api/webhooks/post-call", postCall("missing"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestPostCallWebhook_SuccessAndReplay(t *testing.T) {
	handler, f := newWebhookHandler(t)
	f.addPatient(t, "MED-1", "Jane", "+1555")
	f.runCallThrough(t, "call-1", "MED-1")

	first := postWebhook(t, handler.PostCall, "/api/webhooks/post-call", postCall("call-1"))
	if first.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, first.Code, first.Body.String())
	}
	var firstResp PostCallResponse
	if err := json.NewDecoder(first.Body).Decode(&firstResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !firstResp.Success || firstResp.CallID != "call-1" {
		t.Fatalf("unexpected response: %+v", firstResp)
	}
	if firstResp.Insights.ReasonForCall == "" {
		t.Fatal("expected insights in response")
	}

	// Provider redelivery gets the same success acknowledgment.
	replay := postWebhook(t, handler.PostCall, "/api/webhooks/post-call", postCall("call-1"))
	if replay.Code != http.StatusOK {
		t.Fatalf("expected status %d on replay, got %d", http.StatusOK, replay.Code)
	}
	var replayResp PostCallResponse
	_ = json.NewDecoder(replay.Body).Decode(&replayResp)
	if !replayResp.Success {
		t.Fatal("expected replay to be acknowledged")
	}

	patient, _ := f.patients.GetByMedicalID(context.Background(), "MED-1")
	if len(patient.Notes) != 1 {
		t.Fatalf("expected exactly one note after replay, got %d", len(patient.Notes))
	}
}
