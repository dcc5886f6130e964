// internal/commerce/client.go
package commerce

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"cedarbackend/internal/logger"
)

const (
	// StripeProviderID is the Medusa payment provider id for Stripe cards.
	StripeProviderID     = "pp_stripe_stripe"
	stripeProviderPrefix = "pp_stripe_"
)

// Client issues requests against the Medusa Store API. Every request carries
// the publishable API key header; no response is cached and no call is
// retried, idempotency is the backend's concern.
type Client struct {
	baseURL        string
	publishableKey string
	regionID       string
	httpClient     *http.Client
}

// NewClient builds a Store API client for the given backend.
func NewClient(baseURL, publishableKey, regionID string) *Client {
	return &Client{
		baseURL:        baseURL,
		publishableKey: publishableKey,
		regionID:       regionID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		},
	}
}

// RegionID returns the region the client scopes carts to.
func (c *Client) RegionID() string {
	return c.regionID
}

func (c *Client) do(ctx context.Context, op, method, path string, payload, out interface{}) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshaling request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-publishable-api-key", c.publishableKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: executing request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(op, resp)
		logger.LogError("Medusa API error: %v", apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// CreateCart creates a remote cart scoped to the configured region and
// returns its id.
func (c *Client) CreateCart(ctx context.Context) (string, error) {
	payload := map[string]string{"region_id": c.regionID}
	var out struct {
		Cart struct {
			ID string `json:"id"`
		} `json:"cart"`
	}
	if err := c.do(ctx, "createCart", http.MethodPost, "/store/carts", payload, &out); err != nil {
		return "", err
	}
	if out.Cart.ID == "" {
		return "", fmt.Errorf("createCart: no cart id in response")
	}
	logger.LogInfo("Created remote cart %s", out.Cart.ID)
	return out.Cart.ID, nil
}

// AddLineItem adds a variant to the remote cart. Quantity is coerced to an
// integer of at least 1.
func (c *Client) AddLineItem(ctx context.Context, cartID, variantID string, quantity int) error {
	if quantity < 1 {
		quantity = 1
	}
	payload := map[string]interface{}{
		"variant_id": variantID,
		"quantity":   quantity,
	}
	path := fmt.Sprintf("/store/carts/%s/line-items", cartID)
	return c.do(ctx, "addCartLineItem", http.MethodPost, path, payload, nil)
}

// UpdateCart sets email and/or addresses on the remote cart.
func (c *Client) UpdateCart(ctx context.Context, cartID string, update CartUpdate) error {
	path := fmt.Sprintf("/store/carts/%s", cartID)
	return c.do(ctx, "updateCart", http.MethodPost, path, update, nil)
}

// ShippingOptions lists the fulfillment options available for the cart.
func (c *Client) ShippingOptions(ctx context.Context, cartID string) ([]ShippingOption, error) {
	path := "/store/shipping-options?cart_id=" + url.QueryEscape(cartID)

	// The endpoint has returned both a bare array and a wrapped object across
	// Medusa versions; accept either.
	var raw json.RawMessage
	if err := c.do(ctx, "getShippingOptions", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	var list []ShippingOption
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		ShippingOptions []ShippingOption `json:"shipping_options"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("getShippingOptions: decoding response: %w", err)
	}
	return wrapped.ShippingOptions, nil
}

// AddShippingMethod attaches the chosen shipping option to the cart. Required
// before completion.
func (c *Client) AddShippingMethod(ctx context.Context, cartID, optionID string) error {
	payload := map[string]string{"option_id": optionID}
	path := fmt.Sprintf("/store/carts/%s/shipping-methods", cartID)
	return c.do(ctx, "addShippingMethodToCart", http.MethodPost, path, payload, nil)
}

// GetCartWithPayment fetches the cart including its payment collection and
// sessions, plus the region country list for the address form.
func (c *Client) GetCartWithPayment(ctx context.Context, cartID string) (*Cart, error) {
	var out struct {
		Cart Cart `json:"cart"`
	}
	path := fmt.Sprintf("/store/carts/%s", cartID)
	if err := c.do(ctx, "getCart", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Cart, nil
}

// CreatePaymentCollection creates a payment collection for the cart and
// returns its id.
func (c *Client) CreatePaymentCollection(ctx context.Context, cartID string) (string, error) {
	payload := map[string]string{"cart_id": cartID}
	var out struct {
		PaymentCollection struct {
			ID string `json:"id"`
		} `json:"payment_collection"`
	}
	if err := c.do(ctx, "createPaymentCollection", http.MethodPost, "/store/payment-collections", payload, &out); err != nil {
		return "", err
	}
	if out.PaymentCollection.ID == "" {
		return "", fmt.Errorf("createPaymentCollection: no collection id in response")
	}
	return out.PaymentCollection.ID, nil
}

// InitStripePaymentSession registers a Stripe payment session on the
// collection.
func (c *Client) InitStripePaymentSession(ctx context.Context, paymentCollectionID string) error {
	payload := map[string]string{"provider_id": StripeProviderID}
	path := fmt.Sprintf("/store/payment-collections/%s/payment-sessions", paymentCollectionID)
	return c.do(ctx, "initStripePaymentSession", http.MethodPost, path, payload, nil)
}

// CompleteCart attempts to finalize the order. A non-2xx status is an error;
// a 2xx response is the discriminated order-or-cart result.
func (c *Client) CompleteCart(ctx context.Context, cartID string) (*CompleteResult, error) {
	var out CompleteResult
	path := fmt.Sprintf("/store/carts/%s/complete", cartID)
	if err := c.do(ctx, "completeCart", http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	logger.LogInfo("completeCart for %s returned type=%s", cartID, out.Type)
	return &out, nil
}
