package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnidesk/ingest-server-go/internal/util"
)

func TestSignatureMiddleware(t *testing.T) {
	const secret = "test-signing-secret-with-enough-length"
	const body = `{"key":{"id":"ABC123"}}`

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ := io.ReadAll(r.Body)
		w.Write(got)
	})

	t.Run("valid signature passes body through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/i1", strings.NewReader(body))
		req.Header.Set("X-Webhook-Signature", util.HmacSHA256(secret, body))
		rec := httptest.NewRecorder()

		NewSignatureMiddleware(secret).Handler(echo).ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		// The handler downstream must still see the full body.
		assert.Equal(t, body, rec.Body.String())
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/i1", strings.NewReader(body))
		rec := httptest.NewRecorder()

		NewSignatureMiddleware(secret).Handler(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signature is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/i1", strings.NewReader(body))
		req.Header.Set("X-Webhook-Signature", util.HmacSHA256("another-secret", body))
		rec := httptest.NewRecorder()

		NewSignatureMiddleware(secret).Handler(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty secret bypasses verification", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp/i1", strings.NewReader(body))
		rec := httptest.NewRecorder()

		NewSignatureMiddleware("").Handler(echo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
