package cart

import (
	"testing"

	"thehub/pkg/traffic"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	raw := `{
		"id": 12,
		"user_id": null,
		"items": [
			{"id": 1, "cart_id": 12, "product_id": 3, "quantity": 2, "product": {"id": 3, "name": "Case", "price": 10.5, "images": ["a.png", ""]}},
			{"id": 2, "product": {"id": 4, "name": "Cable", "price_value": 5}, "quantity": "3"},
			{"id": 3, "product_id": 5, "quantity": 0},
			{"id": 4, "quantity": 1},
			{"product_id": "p9", "quantity": 1, "product": {"name": "No id", "priceNumber": 2}},
			"garbage"
		]
	}`
	view := Normalize(traffic.JSONPayload([]byte(raw)))

	assert.Equal(t, "12", view.CartID)
	assert.Empty(t, view.UserID)
	require.Len(t, view.Items, 3)

	first := view.Items[0]
	assert.Equal(t, "1", first.ID)
	assert.Equal(t, "12", first.CartID)
	assert.Equal(t, "3", first.ProductID)
	assert.Equal(t, []string{"a.png"}, first.Product.Images)
	assert.Equal(t, "a.png", first.Product.Image)
	assert.InDelta(t, 21.0, first.Subtotal, 1e-9)

	second := view.Items[1]
	assert.Equal(t, "4", second.ProductID)
	assert.Equal(t, 3, second.Quantity)
	assert.InDelta(t, 15.0, second.Subtotal, 1e-9)

	third := view.Items[2]
	assert.Equal(t, "p9", third.ID)
	assert.Equal(t, "p9", third.Product.ID)
	assert.InDelta(t, 2.0, third.Subtotal, 1e-9)

	totals := view.Totals()
	assert.Equal(t, 6, totals.Items)
	assert.InDelta(t, 38.0, totals.Price, 1e-9)
}

func TestNormalize_NonObject(t *testing.T) {
	for _, p := range []traffic.Payload{
		{},
		traffic.TextPayload("oops"),
		traffic.JSONPayload([]byte(`[]`)),
		traffic.JSONPayload([]byte(`null`)),
	} {
		view := Normalize(p)
		assert.Empty(t, view.CartID)
		assert.Empty(t, view.Items)
	}
}
