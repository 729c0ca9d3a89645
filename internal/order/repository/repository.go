package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/atelier/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const orderColumns = `id, customer_name, customer_email, customer_phone, customer_address,
	subtotal, shipping_cost, total, status, payment_reference, payment_status, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.CustomerAddress,
		order.Subtotal,
		order.ShippingCost,
		order.Total,
		order.Status,
		order.PaymentReference,
		order.PaymentStatus,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.OrderItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_items (id, order_id, product_id, product_name, quantity, price)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.OrderID,
		item.ProductID,
		item.ProductName,
		item.Quantity,
		item.Price,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`,
		id,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Items(ctx context.Context, db *gorm.DB, orderIDs []int64) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	if len(orderIDs) == 0 {
		return items, nil
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, product_id, product_name, quantity, price
		 FROM order_items WHERE order_id IN ? ORDER BY order_id ASC, id ASC`,
		orderIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id int64, status string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		now,
		id,
	).Error
}

func (r *repo) UpdatePaymentStatus(ctx context.Context, db *gorm.DB, reference, status string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET payment_status = ?, updated_at = ? WHERE payment_reference = ?`,
		status,
		now,
		reference,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ProductsForCheckout(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.StockRow, error) {
	var items []domain.StockRow
	if len(ids) == 0 {
		return items, nil
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, price, stock FROM products WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DecrementStock only succeeds when enough stock remains at write time.
func (r *repo) DecrementStock(ctx context.Context, db *gorm.DB, productID int64, quantity int) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?`,
		quantity,
		productID,
		quantity,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB) (domain.Stats, error) {
	var stats domain.Stats
	conn := db.WithContext(ctx)
	if err := conn.Raw(`SELECT COUNT(*) FROM products`).Scan(&stats.TotalProducts).Error; err != nil {
		return stats, err
	}
	if err := conn.Raw(`SELECT COUNT(*) FROM orders WHERE status <> ?`, domain.StatusDelivered).Scan(&stats.OngoingOrders).Error; err != nil {
		return stats, err
	}
	if err := conn.Raw(`SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = ?`, domain.StatusDelivered).Scan(&stats.TotalRevenue).Error; err != nil {
		return stats, err
	}
	if err := conn.Raw(`SELECT COUNT(*) FROM products WHERE stock = 0`).Scan(&stats.OutOfStock).Error; err != nil {
		return stats, err
	}
	return stats, nil
}
