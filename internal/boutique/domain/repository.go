package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, image *Image) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Image, error)
	List(ctx context.Context, db *gorm.DB) ([]Image, error)
	MaxDisplayOrder(ctx context.Context, db *gorm.DB) (int, error)
	UpdateDisplayOrder(ctx context.Context, db *gorm.DB, id int64, order int) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id int64) error
}
