package domain

import "time"

type Setting struct {
	Key       string    `gorm:"column:setting_key;primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Setting) TableName() string { return "settings" }

type Category struct {
	ID          int64     `gorm:"primaryKey"`
	Name        string    `gorm:"type:varchar(191);not null;uniqueIndex"`
	Slug        string    `gorm:"type:varchar(191);not null;uniqueIndex"`
	Emoji       string    `gorm:"type:varchar(16);not null"`
	Description *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (Category) TableName() string { return "categories" }

// Tag is a stone or a color: a named reference value attached to products.
type Tag struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"type:varchar(191);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
}

type TagKind string

const (
	TagStone TagKind = "stones"
	TagColor TagKind = "colors"
)
