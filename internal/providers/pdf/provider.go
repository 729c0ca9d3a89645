// Package pdf renders printable order documents.
package pdf

import (
	"context"
	"io"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("pdf",
	fx.Provide(New),
)

type Provider interface {
	PackingSlip(ctx context.Context, data PackingSlipData) (io.Reader, error)
}

type PackingSlipData struct {
	ShopName    string
	ShopURL     string
	SellerEmail string

	OrderID   string
	OrderDate time.Time
	Status    string

	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string

	Items []PackingSlipItem

	Subtotal     string
	ShippingCost string
	Total        string
}

type PackingSlipItem struct {
	Name      string
	Quantity  int
	UnitPrice string
	Amount    string
}
