// internal/catalog/medusa.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cedarbackend/internal/logger"
)

// Loosely typed Store API product shapes. Prices and metadata are optional
// depending on how the backend is configured, so everything is narrowed here
// at the boundary.
type medusaVariant struct {
	ID              string  `json:"id"`
	Title           *string `json:"title"`
	CalculatedPrice *struct {
		CalculatedAmount           *float64 `json:"calculated_amount"`
		CalculatedAmountWithTax    *float64 `json:"calculated_amount_with_tax"`
		CalculatedAmountWithoutTax *float64 `json:"calculated_amount_without_tax"`
	} `json:"calculated_price"`
	Prices []struct {
		Amount float64 `json:"amount"`
	} `json:"prices"`
}

type medusaCollection struct {
	ID     string  `json:"id"`
	Handle *string `json:"handle"`
	Title  *string `json:"title"`
}

type medusaProduct struct {
	ID          string                 `json:"id"`
	Title       *string                `json:"title"`
	Handle      *string                `json:"handle"`
	Description *string                `json:"description"`
	Variants    []medusaVariant        `json:"variants"`
	Metadata    map[string]interface{} `json:"metadata"`
	Collection  *medusaCollection      `json:"collection"`
}

type medusaProductsResponse struct {
	Products []medusaProduct `json:"products"`
}

// FetchMedusaProducts pulls products from the Medusa Store API and maps them
// to the catalog Product type. One product per entry; multi-variant products
// keep their full variant list for the storefront selector.
func FetchMedusaProducts(ctx context.Context, baseURL, publishableKey, regionID string) ([]Product, error) {
	params := url.Values{}
	params.Set("fields",
		"*variants.calculated_price,*variants.id,*variants.title,id,title,handle,description,metadata,*collection")
	if regionID != "" {
		params.Set("region_id", regionID)
	} else {
		params.Set("country_code", "ca")
	}

	reqURL := fmt.Sprintf("%s/store/products?%s", baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating products request: %w", err)
	}
	req.Header.Set("x-publishable-api-key", publishableKey)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing products request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("products request returned status %d: %s", resp.StatusCode, string(body))
	}

	var data medusaProductsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding products response: %w", err)
	}

	products := make([]Product, 0, len(data.Products))
	for _, m := range data.Products {
		products = append(products, mapMedusaProduct(m))
	}
	logger.LogInfo("Fetched %d products from Medusa", len(products))
	return products, nil
}

func mapMedusaProduct(m medusaProduct) Product {
	variants := make([]Variant, 0, len(m.Variants))
	for _, v := range m.Variants {
		title := "Variant"
		if v.Title != nil && strings.TrimSpace(*v.Title) != "" {
			title = strings.TrimSpace(*v.Title)
		}
		variants = append(variants, Variant{
			ID:    v.ID,
			Title: title,
			Price: variantAmount(v),
		})
	}

	firstPrice := int64(0)
	if len(variants) > 0 {
		firstPrice = variants[0].Price
	}

	p := Product{
		ID:          m.ID,
		Slug:        slugFromHandle(m.Handle, m.ID),
		Name:        stringOr(m.Title, "Product"),
		Description: stringOr(m.Description, ""),
		Price:       firstPrice,
		Category:    CategoryFresh,
		Stock:       StockInStock,
	}

	if cat, ok := m.Metadata["category"].(string); ok && cat != "" {
		p.Category = Category(cat)
	}
	if stock, ok := m.Metadata["stock"].(string); ok && stock != "" {
		p.Stock = StockLevel(stock)
	}
	if species, ok := m.Metadata["speciesSlug"].(string); ok && species != "" {
		p.SpeciesSlug = species
	} else {
		p.SpeciesSlug = speciesSlugFromCollection(m.Collection)
	}
	if tags, ok := m.Metadata["tags"].([]interface{}); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				p.Tags = append(p.Tags, s)
			}
		}
	}

	if len(variants) == 1 {
		p.VariantID = variants[0].ID
	} else if len(variants) > 1 {
		p.Variants = variants
	}
	return p
}

// Store API v2 returns calculated amounts in minor units already; older price
// lists do too. Rounding guards against float drift in the JSON decode.
func variantAmount(v medusaVariant) int64 {
	if cp := v.CalculatedPrice; cp != nil {
		switch {
		case cp.CalculatedAmount != nil:
			return int64(math.Round(*cp.CalculatedAmount))
		case cp.CalculatedAmountWithoutTax != nil:
			return int64(math.Round(*cp.CalculatedAmountWithoutTax))
		case cp.CalculatedAmountWithTax != nil:
			return int64(math.Round(*cp.CalculatedAmountWithTax))
		}
	}
	if len(v.Prices) > 0 {
		return int64(math.Round(v.Prices[0].Amount))
	}
	return 0
}

func slugFromHandle(handle *string, fallback string) string {
	if handle == nil {
		return fallback
	}
	s := strings.Trim(*handle, "/")
	if s == "" {
		return fallback
	}
	return s
}

func stringOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return strings.TrimSpace(*s)
}

// speciesSlugFromCollection maps a Medusa collection to the species slug used
// by the storefront's left-hand filter.
func speciesSlugFromCollection(c *medusaCollection) string {
	if c == nil {
		return ""
	}
	handle := strings.ReplaceAll(strings.ToLower(stringOr(c.Handle, "")), "_", "-")
	title := strings.ToLower(stringOr(c.Title, ""))
	if strings.Contains(handle, "black-pearl-king") || strings.Contains(title, "black pearl king") {
		return "black-pearl-king-oyster"
	}
	return ""
}
