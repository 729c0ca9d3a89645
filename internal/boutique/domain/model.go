package domain

import "time"

type Image struct {
	ID           int64     `gorm:"primaryKey"`
	Path         string    `gorm:"not null"`
	DisplayOrder int       `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (Image) TableName() string { return "boutique_images" }
