package domain

import "time"

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
)

const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
	PaymentFailed = "failed"
)

type Order struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	CustomerName     string    `json:"customer_name" gorm:"type:varchar(255);not null"`
	CustomerEmail    string    `json:"customer_email" gorm:"type:varchar(255);not null"`
	CustomerPhone    *string   `json:"customer_phone,omitempty" gorm:"type:varchar(64)"`
	CustomerAddress  string    `json:"customer_address" gorm:"type:text;not null"`
	Subtotal         float64   `json:"subtotal" gorm:"type:numeric(10,2);not null"`
	ShippingCost     float64   `json:"shipping_cost" gorm:"type:numeric(10,2);not null"`
	Total            float64   `json:"total" gorm:"type:numeric(10,2);not null"`
	Status           string    `json:"status" gorm:"type:varchar(32);not null"`
	PaymentReference *string   `json:"payment_reference,omitempty" gorm:"type:varchar(255)"`
	PaymentStatus    string    `json:"payment_status" gorm:"type:varchar(32);not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem snapshots the product name and unit price at checkout.
type OrderItem struct {
	ID          int64   `json:"id" gorm:"primaryKey"`
	OrderID     int64   `json:"order_id" gorm:"not null;index"`
	ProductID   int64   `json:"product_id" gorm:"not null"`
	ProductName string  `json:"product_name" gorm:"type:varchar(255);not null"`
	Quantity    int     `json:"quantity" gorm:"not null"`
	Price       float64 `json:"price" gorm:"type:numeric(10,2);not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// StockRow is the product state read during checkout.
type StockRow struct {
	ID    int64
	Name  string
	Price float64
	Stock int
}

type Stats struct {
	TotalProducts int64   `json:"total_products"`
	OngoingOrders int64   `json:"ongoing_orders"`
	TotalRevenue  float64 `json:"total_revenue"`
	OutOfStock    int64   `json:"out_of_stock"`
}
