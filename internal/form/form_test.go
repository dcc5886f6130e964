package form

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cedarbackend/internal/data"
)

func setupDB(t *testing.T) {
	t.Helper()
	require.NoError(t, data.InitDB(filepath.Join(t.TempDir(), "form_test.db")))
	t.Cleanup(data.CloseDB)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload interface{}, ip string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = ip

	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func resetThrottle() {
	ipSubmitMu.Lock()
	ipLastSubmit = make(map[string]time.Time)
	ipSubmitMu.Unlock()
}

func TestContactHandlerSaves(t *testing.T) {
	setupDB(t)
	resetThrottle()

	rec := postJSON(t, ContactHandler, "/api/contact", map[string]string{
		"name":    "Mori Larch",
		"email":   "spore@example.com",
		"message": "Do you ship liquid cultures in winter?",
	}, "10.0.0.1:1234")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	db, err := data.GetDB()
	require.NoError(t, err)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM contact_messages`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestContactHandlerValidation(t *testing.T) {
	setupDB(t)
	resetThrottle()

	rec := postJSON(t, ContactHandler, "/api/contact", map[string]string{
		"name":    "",
		"email":   "spore@example.com",
		"message": "hi",
	}, "10.0.0.2:1234")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resetThrottle()
	rec = postJSON(t, ContactHandler, "/api/contact", map[string]string{
		"name":    "Mori",
		"email":   "not-an-email",
		"message": "hi",
	}, "10.0.0.2:1234")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContactHandlerHoneypot(t *testing.T) {
	setupDB(t)
	resetThrottle()

	rec := postJSON(t, ContactHandler, "/api/contact", map[string]string{
		"name":    "Bot",
		"email":   "bot@example.com",
		"message": "spam",
		"website": "https://spam.example",
	}, "10.0.0.3:1234")

	// Honeypot submissions look successful but store nothing.
	require.Equal(t, http.StatusOK, rec.Code)

	db, err := data.GetDB()
	require.NoError(t, err)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM contact_messages`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestContactHandlerRateLimit(t *testing.T) {
	setupDB(t)
	resetThrottle()

	payload := map[string]string{
		"name":    "Mori",
		"email":   "spore@example.com",
		"message": "first",
	}
	rec := postJSON(t, ContactHandler, "/api/contact", payload, "10.0.0.4:1234")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, ContactHandler, "/api/contact", payload, "10.0.0.4:1234")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSubscribeHandlerDeduplicates(t *testing.T) {
	setupDB(t)
	resetThrottle()

	rec := postJSON(t, SubscribeHandler, "/api/newsletter", map[string]string{
		"email": "Spore@Example.com",
	}, "10.0.0.5:1234")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resetThrottle()
	rec = postJSON(t, SubscribeHandler, "/api/newsletter", map[string]string{
		"email": "spore@example.com",
	}, "10.0.0.6:1234")
	require.Equal(t, http.StatusOK, rec.Code, "resubscribing is a silent no-op")

	count, err := data.CountSubscribers()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "emails are lowercased and deduplicated")
}

func TestSubscribeHandlerRejectsBadEmail(t *testing.T) {
	setupDB(t)
	resetThrottle()

	rec := postJSON(t, SubscribeHandler, "/api/newsletter", map[string]string{
		"email": "nope",
	}, "10.0.0.7:1234")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
