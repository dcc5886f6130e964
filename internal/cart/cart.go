// internal/cart/cart.go
package cart

import (
	"sync"

	"cedarbackend/internal/catalog"
)

// Item is one line in the cart: a product plus quantity, optionally pinned to
// a specific variant. Lines are unique per (product id, variant id).
type Item struct {
	Product   *catalog.Product `json:"product"`
	Quantity  int              `json:"quantity"`
	VariantID string           `json:"variantId,omitempty"`
}

// UnitPrice returns the price for one unit of this line, using the variant
// price when the variant id resolves and the base product price otherwise.
func (i *Item) UnitPrice() int64 {
	return i.Product.VariantPrice(i.VariantID)
}

// DisplayName includes the variant title when one is pinned.
func (i *Item) DisplayName() string {
	if i.VariantID != "" {
		for _, v := range i.Product.Variants {
			if v.ID == i.VariantID && v.Title != "" {
				return i.Product.Name + " - " + v.Title
			}
		}
	}
	return i.Product.Name
}

// Cart holds the set of items a visitor intends to buy plus the open/closed
// state of the cart side panel. One cart per browser session; the mutex
// covers the rare concurrent request from the same session.
type Cart struct {
	mu    sync.Mutex
	items []Item
	open  bool
}

func New() *Cart {
	return &Cart{}
}

func lineMatches(it *Item, productID, variantID string) bool {
	return it.Product.ID == productID && it.VariantID == variantID
}

// AddItem upserts a line by (product id, variant id): an existing line gets
// its quantity incremented, a new one is appended. Always opens the panel.
func (c *Cart) AddItem(p *catalog.Product, quantity int, variantID string) {
	if quantity < 1 {
		quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if lineMatches(&c.items[i], p.ID, variantID) {
			c.items[i].Quantity += quantity
			c.open = true
			return
		}
	}
	c.items = append(c.items, Item{Product: p, Quantity: quantity, VariantID: variantID})
	c.open = true
}

// RemoveItem deletes the matching line; no-op when absent.
func (c *Cart) RemoveItem(productID, variantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.items[:0]
	for i := range c.items {
		if !lineMatches(&c.items[i], productID, variantID) {
			kept = append(kept, c.items[i])
		}
	}
	c.items = kept
}

// UpdateQuantity replaces a line's quantity; zero or less removes the line.
func (c *Cart) UpdateQuantity(productID string, quantity int, variantID string) {
	if quantity <= 0 {
		c.RemoveItem(productID, variantID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if lineMatches(&c.items[i], productID, variantID) {
			c.items[i].Quantity = quantity
			return
		}
	}
}

// Clear empties the cart. Called after successful order completion.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a snapshot of the current lines.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Subtotal recomputes the sum of line totals on every call, never cached.
func (c *Cart) Subtotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sum int64
	for i := range c.items {
		sum += c.items[i].UnitPrice() * int64(c.items[i].Quantity)
	}
	return sum
}

// ItemCount is the sum of quantities across all lines.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for i := range c.items {
		count += c.items[i].Quantity
	}
	return count
}

func (c *Cart) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
}

func (c *Cart) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

func (c *Cart) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
