package repository

import (
	"context"

	"github.com/smallbiznis/atelier/internal/boutique/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, image *domain.Image) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO boutique_images (id, path, display_order, created_at) VALUES (?, ?, ?, ?)`,
		image.ID,
		image.Path,
		image.DisplayOrder,
		image.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Image, error) {
	var image domain.Image
	err := db.WithContext(ctx).Raw(
		`SELECT id, path, display_order, created_at FROM boutique_images WHERE id = ?`,
		id,
	).Scan(&image).Error
	if err != nil {
		return nil, err
	}
	if image.ID == 0 {
		return nil, nil
	}
	return &image, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Image, error) {
	var items []domain.Image
	err := db.WithContext(ctx).Raw(
		`SELECT id, path, display_order, created_at FROM boutique_images ORDER BY display_order ASC, id ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MaxDisplayOrder(ctx context.Context, db *gorm.DB) (int, error) {
	var max int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(display_order), 0) FROM boutique_images`,
	).Scan(&max).Error
	return max, err
}

func (r *repo) UpdateDisplayOrder(ctx context.Context, db *gorm.DB, id int64, order int) (int64, error) {
	res := db.WithContext(ctx).Exec(`UPDATE boutique_images SET display_order = ? WHERE id = ?`, order, id)
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(`DELETE FROM boutique_images WHERE id = ?`, id).Error
}
