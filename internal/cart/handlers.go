// internal/cart/handlers.go
package cart

import (
	"net/http"

	"cedarbackend/internal/catalog"
	"cedarbackend/internal/middleware"
	"cedarbackend/internal/money"
)

// Handlers exposes the cart over HTTP. Every route except session creation
// expects the session token header and operates on that session's cart.
type Handlers struct {
	Registry *Registry
	Catalog  *catalog.Service
}

// itemView is one cart line shaped for the frontend, prices preformatted.
type itemView struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type cartView struct {
	Items     []itemView `json:"items"`
	ItemCount int        `json:"itemCount"`
	Subtotal  string     `json:"subtotal"`
	Open      bool       `json:"open"`
}

func viewOf(c *Cart) cartView {
	items := c.Items()
	view := cartView{
		Items:     make([]itemView, 0, len(items)),
		ItemCount: c.ItemCount(),
		Subtotal:  money.Format(c.Subtotal()),
		Open:      c.IsOpen(),
	}
	for i := range items {
		unit := items[i].UnitPrice()
		view.Items = append(view.Items, itemView{
			ProductID: items[i].Product.ID,
			VariantID: items[i].VariantID,
			Name:      items[i].DisplayName(),
			Quantity:  items[i].Quantity,
			UnitPrice: money.Format(unit),
			LineTotal: money.Format(unit * int64(items[i].Quantity)),
		})
	}
	return view
}

// NewSession handles POST /api/cart: creates a session and returns its token.
func (h *Handlers) NewSession(w http.ResponseWriter, r *http.Request) {
	token, c := h.Registry.NewSession()
	middleware.WriteAPISuccess(w, r, map[string]interface{}{
		"token": token,
		"cart":  viewOf(c),
	})
}

// sessionCart resolves the request's cart or writes the 401 itself.
func (h *Handlers) sessionCart(w http.ResponseWriter, r *http.Request) (*Cart, bool) {
	token := middleware.GetSessionToken(r.Context())
	c, ok := h.Registry.Get(token)
	if !ok {
		middleware.WriteAPIError(w, r, http.StatusUnauthorized, "unknown_session",
			"Session not found or expired", "")
		return nil, false
	}
	return c, true
}

// State handles GET /api/cart.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}
	middleware.WriteAPISuccess(w, r, viewOf(c))
}

type itemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// AddItem handles POST /api/cart/items.
func (h *Handlers) AddItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}

	product, ok := h.Catalog.Product(req.ProductID)
	if !ok {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "unknown_product",
			"Product not found", "")
		return
	}

	c.AddItem(product, req.Quantity, req.VariantID)
	middleware.WriteAPISuccess(w, r, viewOf(c))
}

// UpdateItem handles POST /api/cart/items/update.
func (h *Handlers) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}

	c.UpdateQuantity(req.ProductID, req.Quantity, req.VariantID)
	middleware.WriteAPISuccess(w, r, viewOf(c))
}

// RemoveItem handles POST /api/cart/items/remove.
func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	var req itemRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request",
			"Invalid request body", err.Error())
		return
	}

	c.RemoveItem(req.ProductID, req.VariantID)
	middleware.WriteAPISuccess(w, r, viewOf(c))
}

// OpenPanel handles POST /api/cart/open.
func (h *Handlers) OpenPanel(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}
	c.Open()
	middleware.WriteAPISuccess(w, r, viewOf(c))
}

// ClosePanel handles POST /api/cart/close.
func (h *Handlers) ClosePanel(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}
	c.Close()
	middleware.WriteAPISuccess(w, r, viewOf(c))
}
