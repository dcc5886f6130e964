// internal/checkout/machine.go
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cedarbackend/internal/cart"
	"cedarbackend/internal/catalog"
	"cedarbackend/internal/commerce"
	"cedarbackend/internal/logger"
	"cedarbackend/internal/middleware"
	"cedarbackend/internal/payment"
)

// Step is the current position in the checkout flow.
type Step string

const (
	StepSync     Step = "sync"
	StepEmail    Step = "email"
	StepAddress  Step = "address"
	StepShipping Step = "shipping"
	StepPay      Step = "pay"
	StepComplete Step = "complete"
	StepError    Step = "error"
)

// ErrEmptyCart signals that checkout was entered with nothing in the cart.
// The caller redirects back to the shop; this is a normal exit, not the
// error state.
var ErrEmptyCart = errors.New("cart is empty")

// ErrBusy means another transition is still in flight for this session.
var ErrBusy = errors.New("a checkout step is already in progress")

// ValidationError is a missing or malformed form field. It is surfaced
// inline; the machine does not advance and does not enter the error state.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// WrongStepError means an operation was invoked out of order.
type WrongStepError struct {
	Current Step
	Wanted  Step
}

func (e *WrongStepError) Error() string {
	return fmt.Sprintf("operation requires step %q, checkout is at %q", e.Wanted, e.Current)
}

const stripeSecretHint = "Could not initialize Stripe. Check that the region has Stripe enabled."

// State is a read-only snapshot of the checkout session, shaped for the
// frontend.
type State struct {
	Step             Step                      `json:"step"`
	RemoteCartID     string                    `json:"remoteCartId,omitempty"`
	Email            string                    `json:"email,omitempty"`
	Countries        []commerce.Country        `json:"countries,omitempty"`
	ShippingOptions  []commerce.ShippingOption `json:"shippingOptions,omitempty"`
	SelectedOptionID string                    `json:"selectedOptionId,omitempty"`
	ClientSecret     string                    `json:"clientSecret,omitempty"`
	OrderID          string                    `json:"orderId,omitempty"`
	Error            string                    `json:"error,omitempty"`
}

// Machine drives one checkout session: it materializes the local cart into a
// remote cart, walks the email/address/shipping/payment steps against the
// commerce backend, and finishes with a payment confirmation and cart
// completion. Every remote failure is caught at the transition boundary and
// lands the machine in the error state; retry is a manual reset to sync.
type Machine struct {
	client    *commerce.Client
	confirmer payment.Confirmer
	catalog   *catalog.Service
	cart      *cart.Cart

	// OnOrderPlaced is invoked once after a successful completion, before the
	// local cart is cleared.
	OnOrderPlaced func(orderID string, remoteCart *commerce.Cart, subtotalMinor int64)

	mu       sync.Mutex
	inFlight bool

	step             Step
	remoteCartID     string
	email            string
	address          commerce.Address
	countries        []commerce.Country
	shippingOptions  []commerce.ShippingOption
	selectedOptionID string
	clientSecret     string
	remoteCart       *commerce.Cart
	orderID          string
	lastError        string
}

// NewMachine builds a checkout machine bound to one cart session.
func NewMachine(client *commerce.Client, confirmer payment.Confirmer, cat *catalog.Service, c *cart.Cart) *Machine {
	return &Machine{
		client:    client,
		confirmer: confirmer,
		catalog:   cat,
		cart:      c,
		step:      StepSync,
	}
}

// begin claims the transition lock; transitions never overlap within a
// session.
func (m *Machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return ErrBusy
	}
	m.inFlight = true
	return nil
}

func (m *Machine) end() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

func (m *Machine) currentStep() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// fail records the message and moves to the error state.
func (m *Machine) fail(msg string) {
	logger.LogWarn("Checkout failed: %s", msg)
	middleware.CountCheckoutOutcome("error")
	m.mu.Lock()
	m.lastError = msg
	m.step = StepError
	m.mu.Unlock()
}

func (m *Machine) failErr(err error) {
	m.fail(err.Error())
}

// Snapshot returns the session state for the frontend.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Step:             m.step,
		RemoteCartID:     m.remoteCartID,
		Email:            m.email,
		Countries:        m.countries,
		ShippingOptions:  m.shippingOptions,
		SelectedOptionID: m.selectedOptionID,
		ClientSecret:     m.clientSecret,
		OrderID:          m.orderID,
		Error:            m.lastError,
	}
}

// Start runs the sync step: an empty cart exits back to the shop without any
// backend call, an unresolvable variant is an error before the remote cart
// exists, otherwise the remote cart is created and every line item added in
// sequence so a failure is attributable to one item.
func (m *Machine) Start(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if got := m.currentStep(); got != StepSync {
		return &WrongStepError{Current: got, Wanted: StepSync}
	}

	items := m.cart.Items()
	if len(items) == 0 {
		return ErrEmptyCart
	}

	variantIDs := make([]string, len(items))
	for i := range items {
		variantIDs[i] = catalog.ResolveVariantID(items[i].Product, items[i].VariantID)
		if variantIDs[i] == "" {
			m.fail("Some items are missing a variant. Try removing and re-adding them.")
			return nil
		}
	}

	cartID, err := m.client.CreateCart(ctx)
	if err != nil {
		m.failErr(err)
		return nil
	}

	for i := range items {
		if err := m.client.AddLineItem(ctx, cartID, variantIDs[i], items[i].Quantity); err != nil {
			m.failErr(err)
			return nil
		}
	}

	m.mu.Lock()
	m.remoteCartID = cartID
	m.step = StepEmail
	m.mu.Unlock()
	return nil
}

// SubmitEmail records the customer email on the remote cart and advances to
// the address step. The region country list is fetched for the address form;
// its absence is tolerated.
func (m *Machine) SubmitEmail(ctx context.Context, email string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if got := m.currentStep(); got != StepEmail {
		return &WrongStepError{Current: got, Wanted: StepEmail}
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Msg: "Email is required."}
	}

	if err := m.client.UpdateCart(ctx, m.remoteCartID, commerce.CartUpdate{Email: email}); err != nil {
		m.failErr(err)
		return nil
	}

	var countries []commerce.Country
	if remote, err := m.client.GetCartWithPayment(ctx, m.remoteCartID); err == nil && remote.Region != nil {
		countries = remote.Region.Countries
	}

	m.mu.Lock()
	m.email = email
	m.countries = countries
	m.step = StepAddress
	m.mu.Unlock()
	return nil
}

// SubmitAddress writes the same address as shipping and billing, then enters
// the shipping step and loads its options, auto-selecting the first one.
func (m *Machine) SubmitAddress(ctx context.Context, addr commerce.Address) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if got := m.currentStep(); got != StepAddress {
		return &WrongStepError{Current: got, Wanted: StepAddress}
	}

	addr.CountryCode = strings.ToLower(strings.TrimSpace(addr.CountryCode))
	if addr.Address1 == "" || addr.City == "" || addr.CountryCode == "" || addr.PostalCode == "" {
		return &ValidationError{Msg: "Please fill in address, city, country and postal code."}
	}

	update := commerce.CartUpdate{
		ShippingAddress: &addr,
		BillingAddress:  &addr,
	}
	if err := m.client.UpdateCart(ctx, m.remoteCartID, update); err != nil {
		m.failErr(err)
		return nil
	}

	options, err := m.client.ShippingOptions(ctx, m.remoteCartID)
	if err != nil {
		m.failErr(err)
		return nil
	}

	m.mu.Lock()
	m.address = addr
	m.shippingOptions = options
	if len(options) > 0 {
		m.selectedOptionID = options[0].ID
	}
	m.step = StepShipping
	m.mu.Unlock()
	return nil
}

// SubmitShipping attaches the chosen shipping method, bootstraps the payment
// collection and Stripe session, and advances to payment once a client
// secret is in hand.
func (m *Machine) SubmitShipping(ctx context.Context, optionID string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if got := m.currentStep(); got != StepShipping {
		return &WrongStepError{Current: got, Wanted: StepShipping}
	}

	m.mu.Lock()
	if optionID == "" {
		optionID = m.selectedOptionID
	}
	known := false
	for _, opt := range m.shippingOptions {
		if opt.ID == optionID {
			known = true
			break
		}
	}
	m.mu.Unlock()

	if optionID == "" || !known {
		return &ValidationError{Msg: "Please choose a shipping method."}
	}

	if err := m.client.AddShippingMethod(ctx, m.remoteCartID, optionID); err != nil {
		m.failErr(err)
		return nil
	}

	remote, secret, err := m.initPayment(ctx)
	if err != nil {
		m.failErr(err)
		return nil
	}
	if secret == "" {
		m.fail(stripeSecretHint)
		return nil
	}

	m.mu.Lock()
	m.selectedOptionID = optionID
	m.remoteCart = remote
	m.clientSecret = secret
	m.step = StepPay
	m.mu.Unlock()
	return nil
}

// initPayment ensures the remote cart has a payment collection with a Stripe
// session and returns the refreshed cart plus the session's client secret.
func (m *Machine) initPayment(ctx context.Context) (*commerce.Cart, string, error) {
	remote, err := m.client.GetCartWithPayment(ctx, m.remoteCartID)
	if err != nil {
		return nil, "", err
	}

	switch {
	case remote.PaymentCollection == nil || remote.PaymentCollection.ID == "":
		collectionID, err := m.client.CreatePaymentCollection(ctx, m.remoteCartID)
		if err != nil {
			return nil, "", err
		}
		if err := m.client.InitStripePaymentSession(ctx, collectionID); err != nil {
			return nil, "", err
		}
	case len(remote.PaymentCollection.PaymentSessions) == 0:
		if err := m.client.InitStripePaymentSession(ctx, remote.PaymentCollection.ID); err != nil {
			return nil, "", err
		}
	}

	remote, err = m.client.GetCartWithPayment(ctx, m.remoteCartID)
	if err != nil {
		return nil, "", err
	}
	return remote, remote.StripeClientSecret(), nil
}

// Pay confirms the payment with the processor and completes the remote cart.
// An order result clears the local cart and finishes the flow; anything else
// lands in the error state with the local cart intact, since the remote cart
// may hold an authorized payment without an order (no automatic
// compensation).
func (m *Machine) Pay(ctx context.Context, card payment.CardInput) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if got := m.currentStep(); got != StepPay {
		return &WrongStepError{Current: got, Wanted: StepPay}
	}

	m.mu.Lock()
	secret := m.clientSecret
	remote := m.remoteCart
	m.mu.Unlock()

	if err := m.confirmer.ConfirmCardPayment(ctx, secret, card, payment.BillingFromCart(remote)); err != nil {
		m.failErr(err)
		return nil
	}

	result, err := m.client.CompleteCart(ctx, m.remoteCartID)
	if err != nil {
		m.failErr(err)
		return nil
	}

	if !result.IsOrder() {
		msg := result.Error
		if msg == "" {
			msg = "Could not complete order."
		}
		m.fail(msg)
		return nil
	}

	orderID := orderIDFromResult(result)
	subtotal := m.cart.Subtotal()

	if m.OnOrderPlaced != nil {
		m.OnOrderPlaced(orderID, remote, subtotal)
	}

	m.cart.Clear()

	m.mu.Lock()
	m.orderID = orderID
	m.step = StepComplete
	m.mu.Unlock()

	middleware.CountCheckoutOutcome("order")
	logger.LogInfo("Checkout complete: order %s for remote cart %s", orderID, m.remoteCartID)
	return nil
}

// Retry resets the session back to sync for a fresh attempt. The remote cart
// is abandoned; a new one is created on the next Start.
func (m *Machine) Retry() error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.step = StepSync
	m.remoteCartID = ""
	m.email = ""
	m.address = commerce.Address{}
	m.countries = nil
	m.shippingOptions = nil
	m.selectedOptionID = ""
	m.clientSecret = ""
	m.remoteCart = nil
	m.lastError = ""
	return nil
}

func orderIDFromResult(result *commerce.CompleteResult) string {
	var order struct {
		ID string `json:"id"`
	}
	if len(result.Order) > 0 {
		if err := json.Unmarshal(result.Order, &order); err == nil {
			return order.ID
		}
	}
	return ""
}
