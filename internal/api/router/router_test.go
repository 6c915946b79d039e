package router

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medintake/intake-ai-platform/internal/appointments"
	"github.com/medintake/intake-ai-platform/internal/calllifecycle"
	"github.com/medintake/intake-ai-platform/internal/calls"
	"github.com/medintake/intake-ai-platform/internal/http/middleware"
	"github.com/medintake/intake-ai-platform/internal/patients"
	"github.com/medintake/intake-ai-platform/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "test-secret"

func newTestRouter(t *testing.T) (http.Handler, *patients.InMemoryRepository) {
	t.Helper()
	logger := logging.Default()

	patientRepo := patients.NewInMemoryRepository()
	apptRepo := appointments.NewInMemoryRepository()
	callRepo := calls.NewInMemoryRepository()

	machine := calllifecycle.NewMachine(callRepo, patientRepo, apptRepo, logger)
	registry := prometheus.NewRegistry()

	return New(&Config{
		Logger:              logger,
		PatientsHandler:     patients.NewHandler(patientRepo, nil, logger),
		AppointmentsHandler: appointments.NewHandler(apptRepo, logger),
		CallsHandler:        calls.NewHandler(callRepo, nil, logger),
		WebhookHandler:      calllifecycle.NewHandler(machine, nil, nil, logger),
		WebhookSecret:       testWebhookSecret,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}), patientRepo
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHealthEndpoint(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPatientCRUDThroughRouter(t *testing.T) {
	handler, _ := newTestRouter(t)

	create := `{"firstName":"Jane","lastName":"Doe","phone":"+15550100"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/patients", strings.NewReader(create)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	var created patients.Patient
	require.NoError(t, json.Unmarshal(body["patient"], &created))
	require.NotEmpty(t, created.MedicalID)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patients/"+created.MedicalID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	var patient patients.Patient
	require.NoError(t, json.Unmarshal(body["patient"], &patient))
	assert.Equal(t, "Jane", patient.FirstName)
}

func TestWebhookRequiresSignature(t *testing.T) {
	handler, _ := newTestRouter(t)

	body := `{"call_id":"call-1","bot_id":"bot-1","phone_number":"+15550100"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/webhooks/pre-call", strings.NewReader(body)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	handler, _ := newTestRouter(t)

	body := `{"call_id":"call-1","bot_id":"bot-1","phone_number":"+15550100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/pre-call", strings.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAcceptsSignedPreCall(t *testing.T) {
	handler, _ := newTestRouter(t)

	body := `{"call_id":"call-1","bot_id":"bot-1","phone_number":"+15550100"}`
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/pre-call", strings.NewReader(body))
	req.Header.Set(middleware.SignatureHeader, sign(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Welcome to our medical practice")
}

func TestUnknownRoute(t *testing.T) {
	handler, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
