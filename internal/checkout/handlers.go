// internal/checkout/handlers.go
package checkout

import (
	"errors"
	"net/http"
	"sync"

	"cedarbackend/internal/cart"
	"cedarbackend/internal/catalog"
	"cedarbackend/internal/commerce"
	"cedarbackend/internal/middleware"
	"cedarbackend/internal/payment"
)

// Handlers exposes the checkout machine over HTTP. One machine per cart
// session, created lazily on the first start and kept until the session's
// cart is swept.
type Handlers struct {
	Registry  *cart.Registry
	Catalog   *catalog.Service
	Client    *commerce.Client
	Confirmer payment.Confirmer

	// Configured gates every route; a false return means the store runs in
	// browse-only mode (commerce env vars absent) and checkout answers 503.
	Configured func() bool

	// OnOrderPlaced is copied onto each machine; main wires it to the local
	// order record and the outcome metric.
	OnOrderPlaced func(orderID string, remoteCart *commerce.Cart, subtotalMinor int64)

	mu       sync.Mutex
	machines map[string]*Machine
}

func NewHandlers(reg *cart.Registry, cat *catalog.Service, client *commerce.Client, confirmer payment.Confirmer, configured func() bool) *Handlers {
	return &Handlers{
		Registry:   reg,
		Catalog:    cat,
		Client:     client,
		Confirmer:  confirmer,
		Configured: configured,
		machines:   make(map[string]*Machine),
	}
}

// machineFor returns the session's machine, creating one when absent. The
// caller has already resolved the cart, so the session is known-live.
func (h *Handlers) machineFor(token string, c *cart.Cart) *Machine {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.machines[token]; ok {
		return m
	}

	// Piggyback machine cleanup on creation: machines whose cart session was
	// swept have no way to be reached again.
	for tok := range h.machines {
		if !h.Registry.Contains(tok) {
			delete(h.machines, tok)
		}
	}

	m := NewMachine(h.Client, h.Confirmer, h.Catalog, c)
	m.OnOrderPlaced = h.OnOrderPlaced
	h.machines[token] = m
	return m
}

// session resolves the cart and machine for the request, writing the 503 or
// 401 itself when the store is not configured or the session is unknown.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*Machine, bool) {
	if h.Configured != nil && !h.Configured() {
		middleware.WriteAPIError(w, r, http.StatusServiceUnavailable, "configuration_error",
			"Checkout is not configured on this server", "")
		return nil, false
	}

	token := middleware.GetSessionToken(r.Context())
	c, ok := h.Registry.Get(token)
	if !ok {
		middleware.WriteAPIError(w, r, http.StatusUnauthorized, "unknown_session",
			"Session not found or expired", "")
		return nil, false
	}
	return h.machineFor(token, c), true
}

// respond writes the machine outcome: validation problems are a 400 with the
// machine unchanged, reentrancy is a 409, and everything else returns the
// state snapshot for the frontend to render (including the error state).
func respond(w http.ResponseWriter, r *http.Request, m *Machine, err error) {
	var vErr *ValidationError
	var sErr *WrongStepError

	switch {
	case err == nil:
		middleware.WriteAPISuccess(w, r, m.Snapshot())
	case errors.Is(err, ErrEmptyCart):
		middleware.WriteAPISuccess(w, r, map[string]interface{}{
			"redirect": "/shop",
		})
	case errors.Is(err, ErrBusy):
		middleware.WriteAPIError(w, r, http.StatusConflict, "checkout_busy",
			"A checkout step is already in progress", "")
	case errors.As(err, &vErr):
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "validation_error",
			vErr.Msg, "")
	case errors.As(err, &sErr):
		middleware.WriteAPIError(w, r, http.StatusConflict, "invalid_step",
			sErr.Error(), "")
	default:
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error",
			"Checkout failed unexpectedly", err.Error())
	}
}

// Start handles POST /api/checkout/start.
func (h *Handlers) Start(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, r, m, m.Start(r.Context()))
}

// State handles GET /api/checkout/state.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	middleware.WriteAPISuccess(w, r, m.Snapshot())
}

// SubmitEmail handles POST /api/checkout/email.
func (h *Handlers) SubmitEmail(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}
	respond(w, r, m, m.SubmitEmail(r.Context(), req.Email))
}

// SubmitAddress handles POST /api/checkout/address.
func (h *Handlers) SubmitAddress(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Address commerce.Address `json:"address"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}
	respond(w, r, m, m.SubmitAddress(r.Context(), req.Address))
}

// SubmitShipping handles POST /api/checkout/shipping.
func (h *Handlers) SubmitShipping(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		OptionID string `json:"optionId"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}
	respond(w, r, m, m.SubmitShipping(r.Context(), req.OptionID))
}

// Pay handles POST /api/checkout/pay.
func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}

	var req struct {
		Card payment.CardInput `json:"card"`
	}
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}
	respond(w, r, m, m.Pay(r.Context(), req.Card))
}

// Retry handles POST /api/checkout/retry.
func (h *Handlers) Retry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, r, m, m.Retry())
}
