package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, NewClient(server.URL, "pk_test", "reg_test")
}

func TestCreateCart(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/store/carts", r.URL.Path)
		assert.Equal(t, "pk_test", r.Header.Get("x-publishable-api-key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "reg_test", body["region_id"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"cart": map[string]string{"id": "cart_123"},
		})
	})

	id, err := client.CreateCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cart_123", id)
}

func TestCreateCartMissingID(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cart":{}}`))
	})

	_, err := client.CreateCart(context.Background())
	assert.Error(t, err)
}

func TestAddLineItemCoercesQuantity(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store/carts/cart_123/line-items", r.URL.Path)

		var body struct {
			VariantID string `json:"variant_id"`
			Quantity  int    `json:"quantity"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "variant_x", body.VariantID)
		assert.Equal(t, 1, body.Quantity)

		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.AddLineItem(context.Background(), "cart_123", "variant_x", 0))
}

func TestShippingOptionsWrapped(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cart_123", r.URL.Query().Get("cart_id"))
		w.Write([]byte(`{"shipping_options":[{"id":"so_1","name":"Standard","amount":999}]}`))
	})

	options, err := client.ShippingOptions(context.Background(), "cart_123")
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "so_1", options[0].ID)
	assert.Equal(t, int64(999), options[0].Amount)
}

func TestShippingOptionsBareArray(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"so_1"},{"id":"so_2"}]`))
	})

	options, err := client.ShippingOptions(context.Background(), "cart_123")
	require.NoError(t, err)
	assert.Len(t, options, 2)
}

func TestAPIErrorDecoding(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Variant does not have a price","code":"invalid_data","type":"invalid_data"}`))
	})

	err := client.AddLineItem(context.Background(), "cart_123", "variant_x", 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_data", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "Variant does not have a price")
	assert.Empty(t, apiErr.Hint)
}

func TestAPIErrorUnknown500GetsHint(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"An unknown error occurred."}`))
	})

	err := client.UpdateCart(context.Background(), "cart_123", CartUpdate{Email: "a@b.co"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Hint, "MEDUSA_REGION_ID")
}

func TestCompleteCartOrderResult(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store/carts/cart_123/complete", r.URL.Path)
		w.Write([]byte(`{"type":"order","order":{"id":"order_9"}}`))
	})

	result, err := client.CompleteCart(context.Background(), "cart_123")
	require.NoError(t, err)
	assert.True(t, result.IsOrder())
}

func TestCompleteCartCartResult(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"cart","cart":{"id":"cart_123"},"error":"Payment authorization is missing"}`))
	})

	result, err := client.CompleteCart(context.Background(), "cart_123")
	require.NoError(t, err)
	assert.False(t, result.IsOrder())
	assert.Equal(t, "Payment authorization is missing", result.Error)
}

func TestStripeClientSecret(t *testing.T) {
	cart := &Cart{
		PaymentCollection: &PaymentCollection{
			ID: "paycol_1",
			PaymentSessions: []PaymentSession{
				{ProviderID: "pp_system_default"},
				{ProviderID: "pp_stripe_stripe"},
			},
		},
	}
	cart.PaymentCollection.PaymentSessions[1].Data.ClientSecret = "pi_1_secret_2"

	assert.Equal(t, "pi_1_secret_2", cart.StripeClientSecret())
	assert.Equal(t, "", (&Cart{}).StripeClientSecret())
	assert.Equal(t, "", (*Cart)(nil).StripeClientSecret())
}

func TestGetCartWithPayment(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cart":{
			"id":"cart_123","email":"a@b.co","currency_code":"cad",
			"region":{"id":"reg_test","countries":[{"iso_2":"ca","display_name":"Canada"}]},
			"payment_collection":{"id":"paycol_1","payment_sessions":[
				{"provider_id":"pp_stripe_stripe","data":{"client_secret":"pi_x_secret_y"}}
			]}
		}}`))
	})

	cart, err := client.GetCartWithPayment(context.Background(), "cart_123")
	require.NoError(t, err)
	assert.Equal(t, "cart_123", cart.ID)
	assert.Equal(t, "cad", cart.CurrencyCode)
	require.NotNil(t, cart.Region)
	assert.Equal(t, "ca", cart.Region.Countries[0].ISO2)
	assert.Equal(t, "pi_x_secret_y", cart.StripeClientSecret())
}
