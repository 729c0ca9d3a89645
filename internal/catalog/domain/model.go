package domain

import "time"

type Product struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Category    string    `json:"category" gorm:"type:varchar(191);not null;index"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	Price       float64   `json:"price" gorm:"type:numeric(10,2);not null"`
	Stock       int       `json:"stock" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

type ProductImage struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	ProductID    int64     `json:"product_id" gorm:"not null;index"`
	Path         string    `json:"path" gorm:"type:varchar(512);not null"`
	DisplayOrder int       `json:"display_order" gorm:"not null"`
	IsPrimary    bool      `json:"is_primary" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
}

func (ProductImage) TableName() string { return "product_images" }

// ProductTag is a stone or color linked to a product.
type ProductTag struct {
	ProductID int64
	ID        int64
	Name      string
}

type TagKind string

const (
	Stones TagKind = "stones"
	Colors TagKind = "colors"
)

type ListFilter struct {
	InStockOnly bool
	Category    string
	Limit       int
}
