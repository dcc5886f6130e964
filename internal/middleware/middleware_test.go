package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDAddedToResponse(t *testing.T) {
	handler := RequestID(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, getRequestID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSessionTokenRequired(t *testing.T) {
	handler := RequestID(SessionToken(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionTokenHeader, "tok_123")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionTokenStoredInContext(t *testing.T) {
	var got string
	handler := SessionToken(func(w http.ResponseWriter, r *http.Request) {
		got = GetSessionToken(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionTokenHeader, "tok_456")
	handler(httptest.NewRecorder(), req)
	assert.Equal(t, "tok_456", got)
}

func TestTokenRateLimit(t *testing.T) {
	handler := RequestID(SessionToken(TokenRateLimit(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(SessionTokenHeader, "tok_rate")
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	tokenRateMu.Lock()
	tokenRateLimiter["tok_rate"] = time.Now().Add(-time.Second)
	tokenRateMu.Unlock()
	assert.Equal(t, http.StatusOK, send())
}

func TestErrorHandlingRecoversPanics(t *testing.T) {
	handler := RequestID(ErrorHandling(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "internal_error", apiErr.Code)
}

func TestWriteAPISuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	WriteAPISuccess(rec, req, map[string]string{"hello": "world"})

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestParseJSONRequestStrict(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"email":"a@b.co"}`)))
	req.Header.Set("Content-Type", "application/json")
	var p payload
	require.NoError(t, ParseJSONRequest(req, &p))
	assert.Equal(t, "a@b.co", p.Email)

	// Wrong content type
	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
	assert.Error(t, ParseJSONRequest(req, &p))

	// Unknown fields rejected
	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"email":"a@b.co","extra":1}`)))
	req.Header.Set("Content-Type", "application/json")
	assert.Error(t, ParseJSONRequest(req, &p))
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS("https://shop.example", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/cart", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "preflight short-circuits")
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), SessionTokenHeader)

	req = httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
