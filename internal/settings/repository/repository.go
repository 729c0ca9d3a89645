package repository

import (
	"context"
	"fmt"

	"github.com/smallbiznis/atelier/internal/settings/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) GetSetting(ctx context.Context, db *gorm.DB, key string) (*domain.Setting, error) {
	var s domain.Setting
	err := db.WithContext(ctx).Where("setting_key = ?", key).Limit(1).Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.Key == "" {
		return nil, nil
	}
	return &s, nil
}

func (r *repo) ListSettings(ctx context.Context, db *gorm.DB) ([]domain.Setting, error) {
	var items []domain.Setting
	if err := db.WithContext(ctx).Order("setting_key ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertSetting(ctx context.Context, db *gorm.DB, setting *domain.Setting) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var items []domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, emoji, description, created_at FROM categories ORDER BY name ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindCategory(ctx context.Context, db *gorm.DB, id int64) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, emoji, description, created_at FROM categories WHERE id = ?`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) InsertCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO categories (id, name, slug, emoji, description, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.Name,
		c.Slug,
		c.Emoji,
		c.Description,
		c.CreatedAt,
	).Error
}

func (r *repo) UpdateCategory(ctx context.Context, db *gorm.DB, c *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`UPDATE categories SET name = ?, slug = ?, emoji = ?, description = ? WHERE id = ?`,
		c.Name,
		c.Slug,
		c.Emoji,
		c.Description,
		c.ID,
	).Error
}

func (r *repo) DeleteCategory(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM categories WHERE id = ?`, id)
	return res.RowsAffected > 0, res.Error
}

func tagTable(kind domain.TagKind) (string, error) {
	switch kind {
	case domain.TagStone, domain.TagColor:
		return string(kind), nil
	default:
		return "", domain.ErrInvalidKind
	}
}

func (r *repo) ListTags(ctx context.Context, db *gorm.DB, kind domain.TagKind) ([]domain.Tag, error) {
	table, err := tagTable(kind)
	if err != nil {
		return nil, err
	}
	var items []domain.Tag
	err = db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT id, name, created_at FROM %s ORDER BY name ASC`, table),
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertTag(ctx context.Context, db *gorm.DB, kind domain.TagKind, tag *domain.Tag) error {
	table, err := tagTable(kind)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`INSERT INTO %s (id, name, created_at) VALUES (?, ?, ?)`, table),
		tag.ID,
		tag.Name,
		tag.CreatedAt,
	).Error
}

func (r *repo) DeleteTag(ctx context.Context, db *gorm.DB, kind domain.TagKind, id int64) (bool, error) {
	table, err := tagTable(kind)
	if err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	return res.RowsAffected > 0, res.Error
}
