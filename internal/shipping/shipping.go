// Package shipping prices delivery from the cart subtotal using fixed tiers.
package shipping

import (
	"fmt"
	"math"
)

const (
	FreeShippingThreshold = 50.00

	smallOrderLimit = 30.00
	smallOrderCost  = 3.90
	mediumOrderCost = 5.90

	freeShippingMessage = "🎉 Livraison offerte !"
	emptyCartMessage    = "Votre panier est vide"
)

// Quote is the shipping cost and total for one subtotal.
type Quote struct {
	Subtotal              float64 `json:"subtotal"`
	ShippingCost          float64 `json:"shippingCost"`
	Total                 float64 `json:"total"`
	FreeShippingThreshold float64 `json:"freeShippingThreshold"`
	Message               string  `json:"message"`
}

// Line is one cart entry.
type Line struct {
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// QuoteFor maps a subtotal to its tier. Boundaries are inclusive on the
// upper tier: 30.00 pays 5.90 and 50.00 ships free.
func QuoteFor(subtotal float64) Quote {
	if subtotal < 0 {
		subtotal = 0
	}

	var cost float64
	switch {
	case subtotal < smallOrderLimit:
		cost = smallOrderCost
	case subtotal < FreeShippingThreshold:
		cost = mediumOrderCost
	default:
		cost = 0
	}

	message := freeShippingMessage
	if cost > 0 {
		message = fmt.Sprintf("Plus que %.2f € pour la livraison offerte !", Round2(FreeShippingThreshold-subtotal))
	}

	return Quote{
		Subtotal:              Round2(subtotal),
		ShippingCost:          Round2(cost),
		Total:                 Round2(subtotal + cost),
		FreeShippingThreshold: FreeShippingThreshold,
		Message:               message,
	}
}

// CartSubtotal sums price × quantity over lines, ignoring non-positive quantities.
func CartSubtotal(lines []Line) float64 {
	var sum float64
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		sum += line.Price * float64(line.Quantity)
	}
	return Round2(sum)
}

// QuoteCart quotes a whole cart. A cart with no line of positive quantity
// is empty and costs nothing to ship; free items still count as content.
func QuoteCart(lines []Line) Quote {
	if !hasItems(lines) {
		return Quote{
			FreeShippingThreshold: FreeShippingThreshold,
			Message:               emptyCartMessage,
		}
	}
	return QuoteFor(CartSubtotal(lines))
}

func hasItems(lines []Line) bool {
	for _, line := range lines {
		if line.Quantity > 0 {
			return true
		}
	}
	return false
}

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
