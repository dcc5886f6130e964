// internal/payment/stripe.go
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cedarbackend/internal/commerce"
	"cedarbackend/internal/logger"
)

const defaultStripeAPIBase = "https://api.stripe.com"

// CardInput is the tokenized card handed up by the browser: either a payment
// method id ("pm_...") or a card token ("tok_..."). Raw card numbers never
// touch this service.
type CardInput struct {
	Token string `json:"token"`
}

// BillingDetails are attached to the payment method on confirmation, derived
// from the remote cart's billing address when available.
type BillingDetails struct {
	Name    string
	Email   string
	Address *commerce.Address
}

// Confirmer confirms a card payment against a client secret.
type Confirmer interface {
	ConfirmCardPayment(ctx context.Context, clientSecret string, card CardInput, billing *BillingDetails) error
}

// ConfirmError is a failure reported by Stripe, with the processor's message
// and code plus a remediation hint for key mismatches.
type ConfirmError struct {
	Code    string
	Message string
	Hint    string
}

func (e *ConfirmError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Hint != "" {
		msg += " " + e.Hint
	}
	return msg
}

const keyMismatchHint = "Ensure STRIPE_PUBLISHABLE_KEY is from the same Stripe " +
	"account as the backend STRIPE_SECRET_KEY."

// StripeConfirmer confirms payment intents over the Stripe HTTP API.
type StripeConfirmer struct {
	secretKey  string
	apiBase    string
	httpClient *http.Client
}

func NewStripeConfirmer(secretKey string) *StripeConfirmer {
	return NewStripeConfirmerWithBase(secretKey, defaultStripeAPIBase)
}

// NewStripeConfirmerWithBase allows pointing at a mock server in tests.
func NewStripeConfirmerWithBase(secretKey, apiBase string) *StripeConfirmer {
	return &StripeConfirmer{
		secretKey: secretKey,
		apiBase:   strings.TrimRight(apiBase, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// intentIDFromClientSecret extracts the payment intent id from a client
// secret of the form "pi_xxx_secret_yyy".
func intentIDFromClientSecret(clientSecret string) (string, error) {
	parts := strings.SplitN(clientSecret, "_secret_", 2)
	if len(parts) != 2 || !strings.HasPrefix(parts[0], "pi_") {
		return "", fmt.Errorf("client secret is not a payment intent secret")
	}
	return parts[0], nil
}

// ConfirmCardPayment confirms the payment intent behind the client secret.
// One attempt, no automatic retry: a failed confirmation is surfaced to the
// user, who decides whether to try again.
func (s *StripeConfirmer) ConfirmCardPayment(ctx context.Context, clientSecret string, card CardInput, billing *BillingDetails) error {
	intentID, err := intentIDFromClientSecret(clientSecret)
	if err != nil {
		return err
	}
	if card.Token == "" {
		return fmt.Errorf("missing card token")
	}

	form := url.Values{}
	form.Set("client_secret", clientSecret)

	if strings.HasPrefix(card.Token, "pm_") {
		form.Set("payment_method", card.Token)
	} else {
		form.Set("payment_method_data[type]", "card")
		form.Set("payment_method_data[card][token]", card.Token)
		if billing != nil {
			setBillingDetails(form, billing)
		}
	}

	confirmURL := fmt.Sprintf("%s/v1/payment_intents/%s/confirm", s.apiBase, intentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, confirmURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating Stripe confirm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logger.LogInfo("Confirming payment intent %s", intentID)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing Stripe confirm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading Stripe response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return confirmErrorFromBody(body, resp.StatusCode)
	}

	var intent struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &intent); err != nil {
		return fmt.Errorf("parsing Stripe confirm response: %w", err)
	}

	switch intent.Status {
	case "succeeded", "requires_capture", "processing":
		logger.LogInfo("Payment intent %s confirmed (status %s)", intentID, intent.Status)
		return nil
	default:
		return &ConfirmError{
			Message: fmt.Sprintf("payment not completed, intent status is %q", intent.Status),
		}
	}
}

func setBillingDetails(form url.Values, billing *BillingDetails) {
	if billing.Name != "" {
		form.Set("payment_method_data[billing_details][name]", billing.Name)
	}
	if billing.Email != "" {
		form.Set("payment_method_data[billing_details][email]", billing.Email)
	}
	if addr := billing.Address; addr != nil {
		if addr.Address1 != "" {
			form.Set("payment_method_data[billing_details][address][line1]", addr.Address1)
		}
		if addr.City != "" {
			form.Set("payment_method_data[billing_details][address][city]", addr.City)
		}
		if addr.PostalCode != "" {
			form.Set("payment_method_data[billing_details][address][postal_code]", addr.PostalCode)
		}
		if addr.CountryCode != "" {
			form.Set("payment_method_data[billing_details][address][country]", strings.ToUpper(addr.CountryCode))
		}
		if addr.Province != "" {
			form.Set("payment_method_data[billing_details][address][state]", addr.Province)
		}
	}
}

// BillingFromCart builds billing details from the remote cart's billing
// address when it carries one.
func BillingFromCart(c *commerce.Cart) *BillingDetails {
	if c == nil {
		return nil
	}
	billing := &BillingDetails{Email: c.Email}
	if addr := c.BillingAddress; addr != nil {
		billing.Address = addr
		billing.Name = strings.TrimSpace(addr.FirstName + " " + addr.LastName)
	}
	if billing.Name == "" && billing.Email == "" && billing.Address == nil {
		return nil
	}
	return billing
}

func confirmErrorFromBody(body []byte, status int) error {
	var parsed struct {
		Error struct {
			Type        string `json:"type"`
			Code        string `json:"code"`
			Message     string `json:"message"`
			DeclineCode string `json:"decline_code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		return &ConfirmError{Message: fmt.Sprintf("Stripe returned status %d: %s", status, string(body))}
	}

	confErr := &ConfirmError{
		Code:    parsed.Error.Code,
		Message: parsed.Error.Message,
	}
	if parsed.Error.DeclineCode != "" {
		confErr.Code = parsed.Error.DeclineCode
	}

	// resource_missing on a payment intent means the publishable key the
	// browser used and this server's secret key belong to different accounts.
	if parsed.Error.Code == "resource_missing" ||
		strings.Contains(strings.ToLower(parsed.Error.Message), "payment_intent") {
		confErr.Hint = keyMismatchHint
	}
	return confErr
}
