package repository

import (
	"context"
	"fmt"

	"github.com/smallbiznis/atelier/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, name, category, description, price, stock, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Category,
		product.Description,
		product.Price,
		product.Stock,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products SET name = ?, category = ?, description = ?, price = ?, stock = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Category,
		product.Description,
		product.Price,
		product.Stock,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM products WHERE id = ?`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, category, description, price, stock, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})
	if filter.InStockOnly {
		stmt = stmt.Where("stock > 0")
	}
	if filter.Category != "" {
		stmt = stmt.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Categories(ctx context.Context, db *gorm.DB) ([]string, error) {
	var items []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT category FROM products ORDER BY category ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Images(ctx context.Context, db *gorm.DB, productIDs []int64) ([]domain.ProductImage, error) {
	var items []domain.ProductImage
	if len(productIDs) == 0 {
		return items, nil
	}
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, path, display_order, is_primary, created_at
		 FROM product_images WHERE product_id IN ?
		 ORDER BY product_id ASC, display_order ASC, id ASC`,
		productIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindImage(ctx context.Context, db *gorm.DB, id int64) (*domain.ProductImage, error) {
	var img domain.ProductImage
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, path, display_order, is_primary, created_at
		 FROM product_images WHERE id = ?`,
		id,
	).Scan(&img).Error
	if err != nil {
		return nil, err
	}
	if img.ID == 0 {
		return nil, nil
	}
	return &img, nil
}

func (r *repo) InsertImage(ctx context.Context, db *gorm.DB, image *domain.ProductImage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO product_images (id, product_id, path, display_order, is_primary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		image.ID,
		image.ProductID,
		image.Path,
		image.DisplayOrder,
		image.IsPrimary,
		image.CreatedAt,
	).Error
}

func (r *repo) DeleteImages(ctx context.Context, db *gorm.DB, productID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`DELETE FROM product_images WHERE product_id = ? AND id IN ?`,
		productID,
		ids,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) UpdateImagePosition(ctx context.Context, db *gorm.DB, productID, id int64, displayOrder int, isPrimary bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE product_images SET display_order = ?, is_primary = ? WHERE product_id = ? AND id = ?`,
		displayOrder,
		isPrimary,
		productID,
		id,
	).Error
}

type tagTable struct {
	link   string
	column string
	lookup string
}

func tableFor(kind domain.TagKind) (tagTable, error) {
	switch kind {
	case domain.Stones:
		return tagTable{link: "product_stones", column: "stone_id", lookup: "stones"}, nil
	case domain.Colors:
		return tagTable{link: "product_colors", column: "color_id", lookup: "colors"}, nil
	default:
		return tagTable{}, fmt.Errorf("unknown tag kind %q", kind)
	}
}

func (r *repo) Tags(ctx context.Context, db *gorm.DB, kind domain.TagKind, productIDs []int64) ([]domain.ProductTag, error) {
	var items []domain.ProductTag
	if len(productIDs) == 0 {
		return items, nil
	}
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Raw(
		fmt.Sprintf(
			`SELECT l.product_id AS product_id, t.id AS id, t.name AS name
			 FROM %s l JOIN %s t ON t.id = l.%s
			 WHERE l.product_id IN ?
			 ORDER BY t.name ASC`,
			t.link, t.lookup, t.column,
		),
		productIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountTags(ctx context.Context, db *gorm.DB, kind domain.TagKind, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id IN ?`, t.lookup),
		ids,
	).Scan(&n).Error
	return n, err
}

func (r *repo) ReplaceTags(ctx context.Context, db *gorm.DB, kind domain.TagKind, productID int64, ids []int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Exec(
		fmt.Sprintf(`DELETE FROM %s WHERE product_id = ?`, t.link),
		productID,
	).Error; err != nil {
		return err
	}
	for _, id := range ids {
		if err := db.WithContext(ctx).Exec(
			fmt.Sprintf(`INSERT INTO %s (product_id, %s) VALUES (?, ?)`, t.link, t.column),
			productID,
			id,
		).Error; err != nil {
			return err
		}
	}
	return nil
}
