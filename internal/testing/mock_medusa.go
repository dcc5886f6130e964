// mock_medusa.go - mock Medusa Store API with failure simulation
package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockMedusaService provides a mock Medusa Store API for testing.
type MockMedusaService struct {
	Server *httptest.Server
	Carts  map[string]*MockCart
	mu     sync.RWMutex

	// Configuration for failure simulation
	ShouldFailCreateCart bool
	ShouldFailAddItem    bool
	CompleteReturnsCart  bool
	CompleteError        string
	OmitClientSecret     bool
	RequirePublishable   string

	// Counters for tracking
	RequestCount     int
	CreateCartCalls  int
	AddItemCalls     int
	CompleteCalls    int
	SessionInitCalls int
}

// MockCart is the remote cart state the mock accumulates across calls.
type MockCart struct {
	ID                  string
	Email               string
	ShippingAddress     map[string]interface{}
	BillingAddress      map[string]interface{}
	LineItems           []MockLineItem
	ShippingMethodID    string
	PaymentCollectionID string
	HasStripeSession    bool
	Completed           bool
}

type MockLineItem struct {
	VariantID string
	Quantity  int
}

// NewMockMedusaService creates a mock Store API server.
func NewMockMedusaService() *MockMedusaService {
	mock := &MockMedusaService{
		Carts: make(map[string]*MockCart),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/store/carts", mock.handleCreateCart)
	mux.HandleFunc("/store/carts/", mock.handleCartSubpath)
	mux.HandleFunc("/store/shipping-options", mock.handleShippingOptions)
	mux.HandleFunc("/store/payment-collections", mock.handleCreateCollection)
	mux.HandleFunc("/store/payment-collections/", mock.handleCollectionSubpath)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// Close shuts down the mock server.
func (m *MockMedusaService) Close() {
	m.Server.Close()
}

// URL returns the mock server's base URL.
func (m *MockMedusaService) URL() string {
	return m.Server.URL
}

// Requests returns how many Store API calls the mock has seen.
func (m *MockMedusaService) Requests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// Cart returns the accumulated state for a cart id.
func (m *MockMedusaService) Cart(id string) (*MockCart, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.Carts[id]
	return c, ok
}

func (m *MockMedusaService) track(r *http.Request) bool {
	m.mu.Lock()
	m.RequestCount++
	key := m.RequirePublishable
	m.mu.Unlock()

	if key != "" && r.Header.Get("x-publishable-api-key") != key {
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMedusaError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
		"type":    "invalid_data",
	})
}

func (m *MockMedusaService) handleCreateCart(w http.ResponseWriter, r *http.Request) {
	if !m.track(r) {
		writeMedusaError(w, http.StatusUnauthorized, "unauthorized", "Publishable API key required")
		return
	}
	if r.Method != http.MethodPost {
		writeMedusaError(w, http.StatusMethodNotAllowed, "not_allowed", "POST only")
		return
	}

	m.mu.Lock()
	m.CreateCartCalls++
	fail := m.ShouldFailCreateCart
	m.mu.Unlock()

	if fail {
		writeMedusaError(w, http.StatusInternalServerError, "unknown", "An unknown error occurred.")
		return
	}

	cart := &MockCart{ID: fmt.Sprintf("cart_%d", time.Now().UnixNano())}
	m.mu.Lock()
	m.Carts[cart.ID] = cart
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cart": map[string]string{"id": cart.ID},
	})
}

// handleCartSubpath dispatches /store/carts/{id}[/line-items|/shipping-methods|/complete].
func (m *MockMedusaService) handleCartSubpath(w http.ResponseWriter, r *http.Request) {
	if !m.track(r) {
		writeMedusaError(w, http.StatusUnauthorized, "unauthorized", "Publishable API key required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/store/carts/")
	parts := strings.SplitN(rest, "/", 2)
	cartID := parts[0]

	m.mu.Lock()
	cart, ok := m.Carts[cartID]
	m.mu.Unlock()
	if !ok {
		writeMedusaError(w, http.StatusNotFound, "not_found", "Cart not found")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch action {
	case "":
		if r.Method == http.MethodGet {
			m.writeCart(w, cart)
			return
		}
		m.handleUpdateCart(w, r, cart)
	case "line-items":
		m.handleAddLineItem(w, r, cart)
	case "shipping-methods":
		m.handleAddShippingMethod(w, r, cart)
	case "complete":
		m.handleComplete(w, cart)
	default:
		writeMedusaError(w, http.StatusNotFound, "not_found", "Unknown cart action")
	}
}

func (m *MockMedusaService) handleUpdateCart(w http.ResponseWriter, r *http.Request, cart *MockCart) {
	var body struct {
		Email           string                 `json:"email"`
		ShippingAddress map[string]interface{} `json:"shipping_address"`
		BillingAddress  map[string]interface{} `json:"billing_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMedusaError(w, http.StatusBadRequest, "invalid_data", "Invalid body")
		return
	}

	m.mu.Lock()
	if body.Email != "" {
		cart.Email = body.Email
	}
	if body.ShippingAddress != nil {
		cart.ShippingAddress = body.ShippingAddress
	}
	if body.BillingAddress != nil {
		cart.BillingAddress = body.BillingAddress
	}
	m.mu.Unlock()

	m.writeCart(w, cart)
}

func (m *MockMedusaService) handleAddLineItem(w http.ResponseWriter, r *http.Request, cart *MockCart) {
	m.mu.Lock()
	m.AddItemCalls++
	fail := m.ShouldFailAddItem
	m.mu.Unlock()

	if fail {
		writeMedusaError(w, http.StatusBadRequest, "invalid_data", "Variant does not have a price")
		return
	}

	var body struct {
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.VariantID == "" || body.Quantity < 1 {
		writeMedusaError(w, http.StatusBadRequest, "invalid_data", "variant_id and quantity >= 1 required")
		return
	}

	m.mu.Lock()
	cart.LineItems = append(cart.LineItems, MockLineItem{VariantID: body.VariantID, Quantity: body.Quantity})
	m.mu.Unlock()

	m.writeCart(w, cart)
}

func (m *MockMedusaService) handleAddShippingMethod(w http.ResponseWriter, r *http.Request, cart *MockCart) {
	var body struct {
		OptionID string `json:"option_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OptionID == "" {
		writeMedusaError(w, http.StatusBadRequest, "invalid_data", "option_id required")
		return
	}

	m.mu.Lock()
	cart.ShippingMethodID = body.OptionID
	m.mu.Unlock()

	m.writeCart(w, cart)
}

func (m *MockMedusaService) handleComplete(w http.ResponseWriter, cart *MockCart) {
	m.mu.Lock()
	m.CompleteCalls++
	asCart := m.CompleteReturnsCart
	completeErr := m.CompleteError
	cart.Completed = !asCart
	email := cart.Email
	m.mu.Unlock()

	if asCart {
		if completeErr == "" {
			completeErr = "Payment authorization is missing"
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"type":  "cart",
			"cart":  map[string]string{"id": cart.ID},
			"error": completeErr,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type": "order",
		"order": map[string]string{
			"id":    "order_" + cart.ID,
			"email": email,
		},
	})
}

func (m *MockMedusaService) handleShippingOptions(w http.ResponseWriter, r *http.Request) {
	if !m.track(r) {
		writeMedusaError(w, http.StatusUnauthorized, "unauthorized", "Publishable API key required")
		return
	}
	if r.URL.Query().Get("cart_id") == "" {
		writeMedusaError(w, http.StatusBadRequest, "invalid_data", "cart_id required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shipping_options": []map[string]interface{}{
			{"id": "so_standard", "name": "Standard Shipping", "amount": 999},
			{"id": "so_express", "name": "Express Shipping", "amount": 1999},
		},
	})
}

func (m *MockMedusaService) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	if !m.track(r) {
		writeMedusaError(w, http.StatusUnauthorized, "unauthorized", "Publishable API key required")
		return
	}

	var body struct {
		CartID string `json:"cart_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CartID == "" {
		writeMedusaError(w, http.StatusBadRequest, "invalid_data", "cart_id required")
		return
	}

	m.mu.Lock()
	cart, ok := m.Carts[body.CartID]
	if ok {
		cart.PaymentCollectionID = "paycol_" + body.CartID
	}
	m.mu.Unlock()
	if !ok {
		writeMedusaError(w, http.StatusNotFound, "not_found", "Cart not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_collection": map[string]string{"id": cart.PaymentCollectionID},
	})
}

func (m *MockMedusaService) handleCollectionSubpath(w http.ResponseWriter, r *http.Request) {
	if !m.track(r) {
		writeMedusaError(w, http.StatusUnauthorized, "unauthorized", "Publishable API key required")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/store/payment-collections/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[1] != "payment-sessions" {
		writeMedusaError(w, http.StatusNotFound, "not_found", "Unknown collection action")
		return
	}
	collectionID := parts[0]

	m.mu.Lock()
	m.SessionInitCalls++
	found := false
	for _, cart := range m.Carts {
		if cart.PaymentCollectionID == collectionID {
			cart.HasStripeSession = true
			found = true
			break
		}
	}
	m.mu.Unlock()

	if !found {
		writeMedusaError(w, http.StatusNotFound, "not_found", "Payment collection not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_collection": map[string]string{"id": collectionID},
	})
}

// writeCart renders the cart in the GET /store/carts/:id shape, including the
// region country list and any payment collection with its Stripe session.
func (m *MockMedusaService) writeCart(w http.ResponseWriter, cart *MockCart) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload := map[string]interface{}{
		"id":            cart.ID,
		"email":         cart.Email,
		"currency_code": "cad",
		"region": map[string]interface{}{
			"id": "reg_mock",
			"countries": []map[string]string{
				{"iso_2": "ca", "display_name": "Canada"},
				{"iso_2": "us", "display_name": "United States"},
			},
		},
	}
	if cart.ShippingAddress != nil {
		payload["shipping_address"] = cart.ShippingAddress
	}
	if cart.BillingAddress != nil {
		payload["billing_address"] = cart.BillingAddress
	}
	if cart.PaymentCollectionID != "" {
		collection := map[string]interface{}{"id": cart.PaymentCollectionID}
		if cart.HasStripeSession {
			session := map[string]interface{}{
				"provider_id": "pp_stripe_stripe",
				"data":        map[string]string{},
			}
			if !m.OmitClientSecret {
				session["data"] = map[string]string{
					"client_secret": "pi_mock_" + cart.ID + "_secret_test",
				}
			}
			collection["payment_sessions"] = []interface{}{session}
		}
		payload["payment_collection"] = collection
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"cart": payload})
}
