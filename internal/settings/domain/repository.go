package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	GetSetting(ctx context.Context, db *gorm.DB, key string) (*Setting, error)
	ListSettings(ctx context.Context, db *gorm.DB) ([]Setting, error)
	UpsertSetting(ctx context.Context, db *gorm.DB, setting *Setting) error

	ListCategories(ctx context.Context, db *gorm.DB) ([]Category, error)
	FindCategory(ctx context.Context, db *gorm.DB, id int64) (*Category, error)
	InsertCategory(ctx context.Context, db *gorm.DB, c *Category) error
	UpdateCategory(ctx context.Context, db *gorm.DB, c *Category) error
	DeleteCategory(ctx context.Context, db *gorm.DB, id int64) (bool, error)

	ListTags(ctx context.Context, db *gorm.DB, kind TagKind) ([]Tag, error)
	InsertTag(ctx context.Context, db *gorm.DB, kind TagKind, tag *Tag) error
	DeleteTag(ctx context.Context, db *gorm.DB, kind TagKind, id int64) (bool, error)
}
