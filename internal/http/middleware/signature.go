package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/medintake/intake-ai-platform/internal/openmic"
	"github.com/medintake/intake-ai-platform/pkg/logging"
)

// SignatureHeader carries the provider's HMAC-SHA256 hex digest of the body.
const SignatureHeader = "X-OpenMic-Signature"

const maxWebhookBody = 1 << 20

// VerifyWebhookSignature authenticates inbound OpenMic webhooks. The
// signature header is always required; the digest itself is only checked
// when a shared secret is configured. The request body is re-attached for
// downstream handlers.
func VerifyWebhookSignature(secret string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(SignatureHeader)
			if signature == "" {
				logger.Warn("webhook rejected: missing signature header", "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "Missing webhook signature")
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				logger.Error("webhook rejected: unreadable body", "path", r.URL.Path, "error", err)
				writeJSONError(w, http.StatusBadRequest, "Invalid request body")
				return
			}
			_ = r.Body.Close()

			if secret != "" && !openmic.VerifySignature(body, signature, secret) {
				logger.Warn("webhook rejected: invalid signature", "path", r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "Invalid webhook signature")
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
