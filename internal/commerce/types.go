package commerce

import "encoding/json"

// Address is the Medusa Store API address shape, used verbatim for both
// shipping_address and billing_address.
type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Address1    string `json:"address_1,omitempty"`
	Address2    string `json:"address_2,omitempty"`
	Company     string `json:"company,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	City        string `json:"city,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Province    string `json:"province,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// Country is one entry of a region's country list, used to populate the
// address form.
type Country struct {
	ISO2        string `json:"iso_2"`
	DisplayName string `json:"display_name,omitempty"`
}

type Region struct {
	ID        string    `json:"id"`
	Countries []Country `json:"countries,omitempty"`
}

// PaymentSession carries the payment provider's session data. For Stripe the
// data object holds the client secret the browser confirms against.
type PaymentSession struct {
	ProviderID string `json:"provider_id"`
	Data       struct {
		ClientSecret string `json:"client_secret,omitempty"`
	} `json:"data"`
}

type PaymentCollection struct {
	ID              string           `json:"id"`
	PaymentSessions []PaymentSession `json:"payment_sessions,omitempty"`
}

// Cart is the remote cart as returned by GET /store/carts/:id, including the
// nested payment collection and region country list.
type Cart struct {
	ID                string             `json:"id"`
	Email             string             `json:"email,omitempty"`
	CurrencyCode      string             `json:"currency_code,omitempty"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	Region            *Region            `json:"region,omitempty"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
}

// StripeClientSecret returns the client secret of the first Stripe payment
// session on the cart, or "" when none is present.
func (c *Cart) StripeClientSecret() string {
	if c == nil || c.PaymentCollection == nil {
		return ""
	}
	for _, s := range c.PaymentCollection.PaymentSessions {
		if len(s.ProviderID) >= len(stripeProviderPrefix) &&
			s.ProviderID[:len(stripeProviderPrefix)] == stripeProviderPrefix {
			if s.Data.ClientSecret != "" {
				return s.Data.ClientSecret
			}
		}
	}
	return ""
}

// ShippingOption is a fulfillment method offered for the cart's region.
// Amount is in minor units and only set for flat-price options.
type ShippingOption struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

// CartUpdate is the payload for POST /store/carts/:id.
type CartUpdate struct {
	Email           string   `json:"email,omitempty"`
	ShippingAddress *Address `json:"shipping_address,omitempty"`
	BillingAddress  *Address `json:"billing_address,omitempty"`
}

// CompleteResult is the discriminated result of completing a cart: either the
// order was placed (Type "order") or the cart came back with an error
// (Type "cart").
type CompleteResult struct {
	Type  string          `json:"type"`
	Order json.RawMessage `json:"order,omitempty"`
	Cart  json.RawMessage `json:"cart,omitempty"`
	Error string          `json:"error,omitempty"`
}

// IsOrder reports whether completion produced an order.
func (r *CompleteResult) IsOrder() bool {
	return r != nil && r.Type == "order"
}
