package shipping_test

import (
	"testing"

	"github.com/smallbiznis/atelier/internal/shipping"
	"github.com/stretchr/testify/assert"
)

func TestQuoteTiers(t *testing.T) {
	cases := []struct {
		subtotal float64
		cost     float64
		total    float64
		message  string
	}{
		{0, 3.90, 3.90, "Plus que 50.00 € pour la livraison offerte !"},
		{25.00, 3.90, 28.90, "Plus que 25.00 € pour la livraison offerte !"},
		{29.99, 3.90, 33.89, "Plus que 20.01 € pour la livraison offerte !"},
		{30.00, 5.90, 35.90, "Plus que 20.00 € pour la livraison offerte !"},
		{49.99, 5.90, 55.89, "Plus que 0.01 € pour la livraison offerte !"},
		{50.00, 0, 50.00, "🎉 Livraison offerte !"},
		{120.50, 0, 120.50, "🎉 Livraison offerte !"},
	}

	for _, tc := range cases {
		q := shipping.QuoteFor(tc.subtotal)
		assert.Equal(t, tc.cost, q.ShippingCost, "cost for %.2f", tc.subtotal)
		assert.Equal(t, tc.total, q.Total, "total for %.2f", tc.subtotal)
		assert.Equal(t, tc.message, q.Message, "message for %.2f", tc.subtotal)
		assert.Equal(t, 50.0, q.FreeShippingThreshold)
	}
}

func TestQuoteIsStable(t *testing.T) {
	assert.Equal(t, shipping.QuoteFor(37.3), shipping.QuoteFor(37.3))
}

func TestQuoteTotalMatchesRoundedSum(t *testing.T) {
	for s := 0.0; s < 80; s += 0.37 {
		q := shipping.QuoteFor(s)
		assert.Equal(t, shipping.Round2(s+q.ShippingCost), q.Total)
	}
}

func TestQuoteCart(t *testing.T) {
	empty := shipping.QuoteCart(nil)
	assert.Equal(t, 0.0, empty.ShippingCost)
	assert.Equal(t, 0.0, empty.Total)
	assert.Equal(t, "Votre panier est vide", empty.Message)

	q := shipping.QuoteCart([]shipping.Line{
		{Price: 25, Quantity: 1},
		{Price: 12.5, Quantity: 2},
		{Price: 99, Quantity: 0},
	})
	assert.Equal(t, 50.0, q.Subtotal)
	assert.Equal(t, 0.0, q.ShippingCost)
}

func TestQuoteCartFreeItemsAreNotEmpty(t *testing.T) {
	q := shipping.QuoteCart([]shipping.Line{{Price: 0, Quantity: 2}})
	assert.Equal(t, 0.0, q.Subtotal)
	assert.Equal(t, 3.90, q.ShippingCost)
	assert.Equal(t, 3.90, q.Total)
	assert.Equal(t, "Plus que 50.00 € pour la livraison offerte !", q.Message)

	zeroQty := shipping.QuoteCart([]shipping.Line{{Price: 18, Quantity: 0}, {Price: 4, Quantity: -1}})
	assert.Equal(t, "Votre panier est vide", zeroQty.Message)
	assert.Equal(t, 0.0, zeroQty.Total)
}

func TestCartSubtotalRounds(t *testing.T) {
	assert.Equal(t, 0.3, shipping.CartSubtotal([]shipping.Line{{Price: 0.1, Quantity: 3}}))
}
