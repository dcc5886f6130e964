package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariantPrice(t *testing.T) {
	p := &Product{
		Price: 1800,
		Variants: []Variant{
			{ID: "v_small", Price: 1800},
			{ID: "v_large", Price: 3200},
		},
	}

	assert.Equal(t, int64(3200), p.VariantPrice("v_large"))
	assert.Equal(t, int64(1800), p.VariantPrice(""))
	assert.Equal(t, int64(1800), p.VariantPrice("v_unknown"))
}

func TestResolveVariantID(t *testing.T) {
	single := &Product{VariantID: "v_only"}
	multi := &Product{Variants: []Variant{{ID: "v_first"}, {ID: "v_second"}}}
	bare := &Product{}

	assert.Equal(t, "v_explicit", ResolveVariantID(single, "v_explicit"))
	assert.Equal(t, "v_only", ResolveVariantID(single, ""))
	assert.Equal(t, "v_first", ResolveVariantID(multi, ""))
	assert.Equal(t, "", ResolveVariantID(bare, ""))
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	products := []Product{
		{ID: "p1", Slug: "fresh-oyster", Name: "Fresh Oyster", Price: 1250},
		{ID: "p2", Slug: "grow-kit", Name: "Grow Kit", Price: 3495},
	}
	raw, err := json.Marshal(products)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	s := NewService()
	require.NoError(t, s.LoadFromFile(path))

	assert.Equal(t, 2, s.Count())
	p, ok := s.BySlug("fresh-oyster")
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID)
}

func TestLoadFromFileMissing(t *testing.T) {
	s := NewService()
	assert.Error(t, s.LoadFromFile(filepath.Join(t.TempDir(), "nope.json")))
}

func TestMergeUpsertsWithoutDropping(t *testing.T) {
	s := NewService()
	s.Replace([]Product{
		{ID: "p1", Slug: "one", Name: "One", Price: 100},
	})

	s.Merge([]Product{
		{ID: "p1", Slug: "one", Name: "One Updated", Price: 150},
		{ID: "p2", Slug: "two", Name: "Two", Price: 200},
	})

	assert.Equal(t, 2, s.Count())
	p, _ := s.Product("p1")
	assert.Equal(t, "One Updated", p.Name)
	assert.Equal(t, int64(150), p.Price)
}

func TestAllSortedByName(t *testing.T) {
	s := NewService()
	s.Replace([]Product{
		{ID: "p1", Name: "Zinnia"},
		{ID: "p2", Name: "Agarikon"},
		{ID: "p3", Name: "Morel"},
	})

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, "Agarikon", all[0].Name)
	assert.Equal(t, "Morel", all[1].Name)
	assert.Equal(t, "Zinnia", all[2].Name)
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestMapMedusaProductSingleVariant(t *testing.T) {
	m := medusaProduct{
		ID:     "prod_med",
		Title:  strPtr("Blue Oyster Block"),
		Handle: strPtr("/blue-oyster-block/"),
		Variants: []medusaVariant{
			{
				ID:    "variant_med",
				Title: strPtr("Default"),
				CalculatedPrice: &struct {
					CalculatedAmount           *float64 `json:"calculated_amount"`
					CalculatedAmountWithTax    *float64 `json:"calculated_amount_with_tax"`
					CalculatedAmountWithoutTax *float64 `json:"calculated_amount_without_tax"`
				}{CalculatedAmount: floatPtr(2750)},
			},
		},
		Metadata: map[string]interface{}{
			"category": "grow-kit",
			"stock":    "limited",
			"tags":     []interface{}{"gourmet", "beginner"},
		},
	}

	p := mapMedusaProduct(m)
	assert.Equal(t, "blue-oyster-block", p.Slug)
	assert.Equal(t, "variant_med", p.VariantID)
	assert.Empty(t, p.Variants, "single-variant products carry only the id")
	assert.Equal(t, int64(2750), p.Price)
	assert.Equal(t, CategoryGrowKit, p.Category)
	assert.Equal(t, StockLimited, p.Stock)
	assert.Equal(t, []string{"gourmet", "beginner"}, p.Tags)
}

func TestMapMedusaProductMultiVariant(t *testing.T) {
	m := medusaProduct{
		ID: "prod_multi",
		Variants: []medusaVariant{
			{ID: "v1", Title: strPtr("10cc"), Prices: []struct {
				Amount float64 `json:"amount"`
			}{{Amount: 1800.4}}},
			{ID: "v2", Title: strPtr("20cc"), Prices: []struct {
				Amount float64 `json:"amount"`
			}{{Amount: 3200}}},
		},
	}

	p := mapMedusaProduct(m)
	assert.Empty(t, p.VariantID)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, int64(1800), p.Variants[0].Price, "float amounts are rounded")
	assert.Equal(t, int64(1800), p.Price, "base price mirrors the first variant")
}

func TestSpeciesSlugFromCollection(t *testing.T) {
	assert.Equal(t, "black-pearl-king-oyster", speciesSlugFromCollection(&medusaCollection{
		Handle: strPtr("black_pearl_king"),
	}))
	assert.Equal(t, "black-pearl-king-oyster", speciesSlugFromCollection(&medusaCollection{
		Title: strPtr("Black Pearl King Oyster"),
	}))
	assert.Equal(t, "", speciesSlugFromCollection(&medusaCollection{Handle: strPtr("shiitake")}))
	assert.Equal(t, "", speciesSlugFromCollection(nil))
}

func TestFetchMedusaProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pk_test", r.Header.Get("x-publishable-api-key"))
		assert.Equal(t, "reg_test", r.URL.Query().Get("region_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[
			{"id":"prod_1","title":"Shiitake Kit","handle":"shiitake-kit",
			 "variants":[{"id":"v_1","title":"Default","calculated_price":{"calculated_amount":2999}}]}
		]}`))
	}))
	defer server.Close()

	products, err := FetchMedusaProducts(context.Background(), server.URL, "pk_test", "reg_test")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "shiitake-kit", products[0].Slug)
	assert.Equal(t, int64(2999), products[0].Price)
}

func TestFetchMedusaProductsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := FetchMedusaProducts(context.Background(), server.URL, "pk_bad", "reg_test")
	assert.Error(t, err)
}
