// mock_stripe.go - mock Stripe payment intent confirmation endpoint
package testing

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// MockStripeService fakes the payment intent confirm endpoint.
type MockStripeService struct {
	Server *httptest.Server
	mu     sync.RWMutex

	// Configuration for failure simulation
	ShouldDecline   bool
	DeclineCode     string
	DeclineMessage  string
	ResourceMissing bool
	IntentStatus    string

	// Counters and captures
	ConfirmCalls int
	LastIntentID string
	LastForm     url.Values
}

func NewMockStripeService() *MockStripeService {
	mock := &MockStripeService{IntentStatus: "succeeded"}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/payment_intents/", mock.handleConfirm)

	mock.Server = httptest.NewServer(mux)
	return mock
}

func (m *MockStripeService) Close() {
	m.Server.Close()
}

func (m *MockStripeService) URL() string {
	return m.Server.URL
}

func (m *MockStripeService) handleConfirm(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/payment_intents/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] != "confirm" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	intentID := parts[0]

	r.ParseForm()

	m.mu.Lock()
	m.ConfirmCalls++
	m.LastIntentID = intentID
	m.LastForm = r.PostForm
	missing := m.ResourceMissing
	decline := m.ShouldDecline
	declineCode := m.DeclineCode
	declineMessage := m.DeclineMessage
	status := m.IntentStatus
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	if missing {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"type":    "invalid_request_error",
				"code":    "resource_missing",
				"message": "No such payment_intent: '" + intentID + "'",
			},
		})
		return
	}

	if decline {
		if declineCode == "" {
			declineCode = "card_declined"
		}
		if declineMessage == "" {
			declineMessage = "Your card was declined."
		}
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"type":         "card_error",
				"code":         "card_declined",
				"decline_code": declineCode,
				"message":      declineMessage,
			},
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"id":     intentID,
		"status": status,
	})
}
