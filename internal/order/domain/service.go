package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/smallbiznis/atelier/internal/workflow"
)

type Service interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	UpdateStatus(ctx context.Context, req StatusRequest) (*StatusResponse, error)
	MarkPayment(ctx context.Context, reference, status string) error
	Stats(ctx context.Context) (Stats, error)
	PackingSlip(ctx context.Context, id string) (io.Reader, error)
}

// Gate carries the admin confirmation prompts for each target status.
var Gate = workflow.NewGate(map[string]string{
	StatusPending:   "Mettre en attente ? Un email sera envoyé au client.",
	StatusConfirmed: "Confirmer la commande ? Un email sera envoyé au client.",
	StatusShipped:   "Marquer comme expédiée ? Un email sera envoyé au client.",
	StatusDelivered: "Marquer comme livrée ? Un email sera envoyé au client.",
}, "Modifier le statut ? Un email sera envoyé au client.")

type Customer struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"max=64"`
	Address string `json:"address" validate:"required"`
}

type CheckoutItem struct {
	ProductID string `json:"id" validate:"required"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// CheckoutRequest is the storefront cart. Prices and totals are always
// recomputed from the catalog; the cart only contributes ids and quantities.
type CheckoutRequest struct {
	Customer         Customer       `json:"customer"`
	Items            []CheckoutItem `json:"items" validate:"required,min=1,dive"`
	PaymentReference string         `json:"paymentIntentId" validate:"max=255"`
}

type CheckoutResponse struct {
	Success bool     `json:"success"`
	OrderID string   `json:"orderId"`
	Message string   `json:"message"`
	Order   Response `json:"order"`
}

type StatusRequest struct {
	ID        string `json:"-"`
	Status    string `json:"status"`
	Confirmed bool   `json:"confirmed"`
}

// StatusResponse either reports the applied change or asks for
// confirmation, in which case nothing was written.
type StatusResponse struct {
	ConfirmationRequired bool      `json:"confirmation_required"`
	Prompt               string    `json:"prompt,omitempty"`
	From                 string    `json:"from"`
	To                   string    `json:"to"`
	Order                *Response `json:"order,omitempty"`
}

type ItemResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type Response struct {
	ID               string         `json:"id"`
	CustomerName     string         `json:"customer_name"`
	CustomerEmail    string         `json:"customer_email"`
	CustomerPhone    string         `json:"customer_phone"`
	CustomerAddress  string         `json:"customer_address"`
	Subtotal         float64        `json:"subtotal"`
	ShippingCost     float64        `json:"shipping_cost"`
	Total            float64        `json:"total"`
	Status           string         `json:"status"`
	PaymentReference string         `json:"payment_reference,omitempty"`
	PaymentStatus    string         `json:"payment_status"`
	Items            []ItemResponse `json:"items"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

var (
	ErrInvalidCustomer      = errors.New("invalid_customer")
	ErrInvalidItems         = errors.New("invalid_items")
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidPaymentStatus = errors.New("invalid_payment_status")
	ErrNotFound             = errors.New("not_found")
	ErrInsufficientStock    = errors.New("insufficient_stock")
)

// FieldError names the request field that failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Err.Error() + ": " + e.Field }

func (e *FieldError) Unwrap() error { return e.Err }

// StockError reports the first product whose stock cannot cover the cart.
type StockError struct {
	ProductName string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Stock insuffisant pour %s", e.ProductName)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
