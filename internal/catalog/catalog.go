// internal/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"cedarbackend/internal/logger"
)

// Category is a storefront product category.
type Category string

const (
	CategoryFresh         Category = "fresh"
	CategoryLiquidCulture Category = "liquid-culture"
	CategoryGrainSpawn    Category = "grain-spawn"
	CategoryGrowKit       Category = "grow-kit"
	CategorySupplies      Category = "supplies"
)

// StockLevel is the coarse availability shown on product cards.
type StockLevel string

const (
	StockInStock StockLevel = "in_stock"
	StockLimited StockLevel = "limited"
	StockOut     StockLevel = "out"
)

// Variant is a purchasable configuration of a product (e.g. a size), with its
// own id and price in minor currency units.
type Variant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price int64  `json:"price"`
}

// Product is a storefront product. Price is in minor currency units and
// mirrors the first variant's price.
type Product struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       int64      `json:"price"`
	Category    Category   `json:"category"`
	Stock       StockLevel `json:"stock"`
	SpeciesSlug string     `json:"speciesSlug,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	// VariantID is set for single-variant products; multi-variant products
	// list every option in Variants and leave VariantID empty.
	VariantID string    `json:"variantId,omitempty"`
	Variants  []Variant `json:"variants,omitempty"`
}

// VariantPrice returns the price of the given variant, falling back to the
// base product price when the id does not resolve.
func (p *Product) VariantPrice(variantID string) int64 {
	if variantID != "" {
		for _, v := range p.Variants {
			if v.ID == variantID {
				return v.Price
			}
		}
	}
	return p.Price
}

// ResolveVariantID picks the variant to order: the explicit id when given,
// else the product's single variant id, else the first listed variant.
// Returns "" when nothing resolves.
func ResolveVariantID(p *Product, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p == nil {
		return ""
	}
	if p.VariantID != "" {
		return p.VariantID
	}
	if len(p.Variants) > 0 {
		return p.Variants[0].ID
	}
	return ""
}

// Service holds the product catalog. Products come from a static JSON file,
// the Medusa Store API, or both (Medusa wins on id collision).
type Service struct {
	mu         sync.RWMutex
	byID       map[string]*Product
	bySlug     map[string]*Product
	lastLoaded time.Time
}

func NewService() *Service {
	return &Service{
		byID:   make(map[string]*Product),
		bySlug: make(map[string]*Product),
	}
}

// LoadFromFile loads the static catalog JSON file (an array of products).
func (s *Service) LoadFromFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return fmt.Errorf("failed to parse catalog file: %w", err)
	}

	s.Replace(products)
	logger.LogInfo("Loaded %d products from catalog file %s", len(products), path)
	return nil
}

// Replace swaps in a new product set.
func (s *Service) Replace(products []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]*Product, len(products))
	s.bySlug = make(map[string]*Product, len(products))
	for i := range products {
		p := &products[i]
		s.byID[p.ID] = p
		if p.Slug != "" {
			s.bySlug[p.Slug] = p
		}
	}
	s.lastLoaded = time.Now()
}

// Merge upserts products without dropping the existing set.
func (s *Service) Merge(products []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range products {
		p := &products[i]
		s.byID[p.ID] = p
		if p.Slug != "" {
			s.bySlug[p.Slug] = p
		}
	}
	s.lastLoaded = time.Now()
}

// Product looks up a product by id.
func (s *Service) Product(id string) (*Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}

// BySlug looks up a product by its URL slug.
func (s *Service) BySlug(slug string) (*Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.bySlug[slug]
	return p, ok
}

// All returns the catalog sorted by name.
func (s *Service) All() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Product, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of products loaded.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// ListHandler serves GET /api/products.
func (s *Service) ListHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"products": s.All()})
}

// DetailHandler serves GET /api/products/{slug}.
func (s *Service) DetailHandler(w http.ResponseWriter, r *http.Request) {
	logger.LogHTTPRequest(r)

	slug := r.PathValue("slug")
	p, ok := s.BySlug(slug)
	if !ok {
		http.Error(w, "Product not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"product": p})
}
