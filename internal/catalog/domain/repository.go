package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	Delete(ctx context.Context, db *gorm.DB, id int64) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Product, error)
	Categories(ctx context.Context, db *gorm.DB) ([]string, error)

	Images(ctx context.Context, db *gorm.DB, productIDs []int64) ([]ProductImage, error)
	FindImage(ctx context.Context, db *gorm.DB, id int64) (*ProductImage, error)
	InsertImage(ctx context.Context, db *gorm.DB, image *ProductImage) error
	DeleteImages(ctx context.Context, db *gorm.DB, productID int64, ids []int64) (int64, error)
	UpdateImagePosition(ctx context.Context, db *gorm.DB, productID, id int64, displayOrder int, isPrimary bool) error

	Tags(ctx context.Context, db *gorm.DB, kind TagKind, productIDs []int64) ([]ProductTag, error)
	CountTags(ctx context.Context, db *gorm.DB, kind TagKind, ids []int64) (int64, error)
	ReplaceTags(ctx context.Context, db *gorm.DB, kind TagKind, productID int64, ids []int64) error
}
