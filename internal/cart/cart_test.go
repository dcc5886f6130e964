package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cedarbackend/internal/catalog"
)

func oyster() *catalog.Product {
	return &catalog.Product{
		ID:        "prod_oyster",
		Name:      "Fresh Golden Oyster Mushrooms",
		Price:     1250,
		VariantID: "variant_oyster",
	}
}

func kit() *catalog.Product {
	return &catalog.Product{
		ID:        "prod_kit",
		Name:      "Lion's Mane Grow Kit",
		Price:     3495,
		VariantID: "variant_kit",
	}
}

func culture() *catalog.Product {
	return &catalog.Product{
		ID:    "prod_culture",
		Name:  "Reishi Liquid Culture",
		Price: 1800,
		Variants: []catalog.Variant{
			{ID: "variant_10cc", Title: "10cc", Price: 1800},
			{ID: "variant_20cc", Title: "20cc", Price: 3200},
		},
	}
}

func TestAddItemUpsertsByProductAndVariant(t *testing.T) {
	c := New()

	c.AddItem(oyster(), 1, "")
	c.AddItem(oyster(), 2, "")

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestAddItemDistinctVariantsAreDistinctLines(t *testing.T) {
	c := New()
	p := culture()

	c.AddItem(p, 1, "variant_10cc")
	c.AddItem(p, 1, "variant_20cc")

	require.Len(t, c.Items(), 2)
	assert.Equal(t, 2, c.ItemCount())
}

func TestAddItemCoercesQuantityToOne(t *testing.T) {
	c := New()

	c.AddItem(oyster(), 0, "")
	c.AddItem(kit(), -5, "")

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestAddItemOpensPanel(t *testing.T) {
	c := New()
	require.False(t, c.IsOpen())

	c.AddItem(oyster(), 1, "")
	assert.True(t, c.IsOpen())

	c.Close()
	assert.False(t, c.IsOpen())
}

func TestSubtotalRecomputed(t *testing.T) {
	c := New()

	c.AddItem(oyster(), 2, "")
	c.AddItem(kit(), 1, "")
	assert.Equal(t, int64(5995), c.Subtotal())

	c.UpdateQuantity("prod_oyster", 1, "")
	assert.Equal(t, int64(4745), c.Subtotal())

	c.RemoveItem("prod_kit", "")
	assert.Equal(t, int64(1250), c.Subtotal())
}

func TestSubtotalUsesVariantPrice(t *testing.T) {
	c := New()

	c.AddItem(culture(), 1, "variant_20cc")
	assert.Equal(t, int64(3200), c.Subtotal())
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	c := New()

	c.AddItem(oyster(), 2, "")
	c.UpdateQuantity("prod_oyster", 0, "")

	assert.Empty(t, c.Items())
	assert.Equal(t, int64(0), c.Subtotal())
}

func TestRemoveItemAbsentIsNoop(t *testing.T) {
	c := New()
	c.AddItem(oyster(), 1, "")

	c.RemoveItem("prod_unknown", "")
	assert.Len(t, c.Items(), 1)
}

func TestClearEmptiesCart(t *testing.T) {
	c := New()
	c.AddItem(oyster(), 3, "")

	c.Clear()
	assert.Equal(t, 0, c.ItemCount())
	assert.Equal(t, int64(0), c.Subtotal())
}

func TestItemDisplayNameIncludesVariantTitle(t *testing.T) {
	c := New()
	c.AddItem(culture(), 1, "variant_20cc")

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Reishi Liquid Culture - 20cc", items[0].DisplayName())
}

func TestRegistrySessions(t *testing.T) {
	r := NewRegistry(time.Minute)

	token, c := r.NewSession()
	require.NotEmpty(t, token)

	got, ok := r.Get(token)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = r.Get("bogus")
	assert.False(t, ok)

	assert.True(t, r.Contains(token))
	assert.False(t, r.Contains("bogus"))

	r.Drop(token)
	_, ok = r.Get(token)
	assert.False(t, ok)
	assert.False(t, r.Contains(token))
}

func TestRegistrySweepEvictsIdleSessions(t *testing.T) {
	r := NewRegistry(time.Nanosecond)

	token, _ := r.NewSession()
	time.Sleep(5 * time.Millisecond)

	removed := r.sweep()
	assert.Equal(t, 1, removed)

	_, ok := r.Get(token)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}
