package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	InsertItem(ctx context.Context, db *gorm.DB, item *OrderItem) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	List(ctx context.Context, db *gorm.DB) ([]Order, error)
	Items(ctx context.Context, db *gorm.DB, orderIDs []int64) ([]OrderItem, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status string, now time.Time) error
	UpdatePaymentStatus(ctx context.Context, db *gorm.DB, reference, status string, now time.Time) (int64, error)

	ProductsForCheckout(ctx context.Context, db *gorm.DB, ids []int64) ([]StockRow, error)
	DecrementStock(ctx context.Context, db *gorm.DB, productID int64, quantity int) (bool, error)

	Stats(ctx context.Context, db *gorm.DB) (Stats, error)
}
