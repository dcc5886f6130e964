// test_helpers.go - shared setup for integration tests
package testing

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cedarbackend/internal/cart"
	"cedarbackend/internal/catalog"
	"cedarbackend/internal/checkout"
	"cedarbackend/internal/commerce"
	"cedarbackend/internal/data"
	"cedarbackend/internal/payment"
)

const testPublishableKey = "pk_test_mock"

// TestSuite wires a full stack against mock backends: sqlite in a temp dir,
// a file-loaded catalog, a cart session, and a checkout machine pointed at
// the mock Medusa and Stripe servers.
type TestSuite struct {
	Medusa    *MockMedusaService
	Stripe    *MockStripeService
	Catalog   *catalog.Service
	Registry  *cart.Registry
	Cart      *cart.Cart
	Token     string
	Client    *commerce.Client
	Confirmer *payment.StripeConfirmer
	Machine   *checkout.Machine
}

// NewTestSuite builds the stack. Mock servers and the database are torn down
// via t.Cleanup.
func NewTestSuite(t *testing.T) *TestSuite {
	t.Helper()

	testDir := filepath.Join(os.TempDir(), fmt.Sprintf("cedartest_%d_%d",
		time.Now().UnixNano(), os.Getpid()))
	if err := os.MkdirAll(testDir, 0755); err != nil {
		t.Fatalf("Failed to create test directory: %v", err)
	}

	dbPath := filepath.Join(testDir, "test.db")
	if err := data.InitDB(dbPath); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	catalogPath := filepath.Join(testDir, "catalog.json")
	if err := writeTestCatalog(catalogPath); err != nil {
		t.Fatalf("Failed to write test catalog: %v", err)
	}

	cat := catalog.NewService()
	if err := cat.LoadFromFile(catalogPath); err != nil {
		t.Fatalf("Failed to load test catalog: %v", err)
	}

	medusa := NewMockMedusaService()
	medusa.RequirePublishable = testPublishableKey
	stripe := NewMockStripeService()

	registry := cart.NewRegistry(45 * time.Minute)
	token, c := registry.NewSession()

	client := commerce.NewClient(medusa.URL(), testPublishableKey, "reg_mock")
	confirmer := payment.NewStripeConfirmerWithBase("sk_test_mock", stripe.URL())

	suite := &TestSuite{
		Medusa:    medusa,
		Stripe:    stripe,
		Catalog:   cat,
		Registry:  registry,
		Cart:      c,
		Token:     token,
		Client:    client,
		Confirmer: confirmer,
		Machine:   checkout.NewMachine(client, confirmer, cat, c),
	}

	t.Cleanup(func() {
		medusa.Close()
		stripe.Close()
		data.CloseDB()
		os.RemoveAll(testDir)
	})

	return suite
}

// MustProduct fetches a catalog product or fails the test.
func (ts *TestSuite) MustProduct(t *testing.T, id string) *catalog.Product {
	t.Helper()
	p, ok := ts.Catalog.Product(id)
	if !ok {
		t.Fatalf("Test catalog is missing product %q", id)
	}
	return p
}

// writeTestCatalog creates a small catalog: two single-variant products, one
// multi-variant product, and one product with no variant at all.
func writeTestCatalog(path string) error {
	products := []catalog.Product{
		{
			ID:        "prod_fresh_oyster",
			Slug:      "fresh-golden-oyster",
			Name:      "Fresh Golden Oyster Mushrooms",
			Price:     1250,
			Category:  catalog.CategoryFresh,
			Stock:     catalog.StockInStock,
			VariantID: "variant_fresh_oyster",
		},
		{
			ID:        "prod_lions_mane_kit",
			Slug:      "lions-mane-grow-kit",
			Name:      "Lion's Mane Grow Kit",
			Price:     3495,
			Category:  catalog.CategoryGrowKit,
			Stock:     catalog.StockInStock,
			VariantID: "variant_lions_mane_kit",
		},
		{
			ID:       "prod_reishi_culture",
			Slug:     "reishi-liquid-culture",
			Name:     "Reishi Liquid Culture",
			Price:    1800,
			Category: catalog.CategoryLiquidCulture,
			Stock:    catalog.StockLimited,
			Variants: []catalog.Variant{
				{ID: "variant_reishi_10cc", Title: "10cc", Price: 1800},
				{ID: "variant_reishi_20cc", Title: "20cc", Price: 3200},
			},
		},
		{
			ID:       "prod_unsynced",
			Slug:     "unsynced-product",
			Name:     "Unsynced Product",
			Price:    999,
			Category: catalog.CategorySupplies,
			Stock:    catalog.StockInStock,
			// No variant ids at all; cannot be ordered.
		},
	}

	raw, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
