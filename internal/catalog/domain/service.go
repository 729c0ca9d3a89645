package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/atelier/internal/imageorder"
)

// AllCategories is the storefront filter value meaning "no filter".
const AllCategories = "Tous"

const FeaturedLimit = 3

type Service interface {
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Featured(ctx context.Context) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Categories(ctx context.Context) ([]string, error)

	AdminList(ctx context.Context) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	DeleteImage(ctx context.Context, imageID string) (*Response, error)
	ReorderImages(ctx context.Context, productID string, positions []ImagePosition) (*Response, error)
}

type ListRequest struct {
	Category string
}

// ProductFields are the editable scalar fields and relations of a product.
type ProductFields struct {
	Name        string
	Category    string
	Description *string
	Price       float64
	Stock       int
	StoneIDs    []string
	ColorIDs    []string
}

type CreateRequest struct {
	ProductFields
	Images []imageorder.Upload
}

// UpdateRequest carries the product fields together with the image editor
// commit: ids removed in the editor, new files and the final order.
type UpdateRequest struct {
	ID string
	ProductFields
	DeletedImageIDs []string
	NewImages       []imageorder.Upload
	ImageOrder      []imageorder.PlanEntry
}

type ImagePosition struct {
	ID           string `json:"id"`
	DisplayOrder int    `json:"display_order"`
	IsPrimary    bool   `json:"is_primary"`
}

type ImageResponse struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	DisplayOrder int    `json:"display_order"`
	IsPrimary    bool   `json:"is_primary"`
}

type Response struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Price        float64         `json:"price"`
	Stock        int             `json:"stock"`
	StoneIDs     []string        `json:"stone_ids"`
	StoneNames   []string        `json:"stone_names"`
	Stones       string          `json:"stones"`
	ColorIDs     []string        `json:"color_ids"`
	ColorNames   []string        `json:"color_names"`
	Colors       string          `json:"colors"`
	Images       []ImageResponse `json:"images"`
	ImagePaths   []string        `json:"image_paths"`
	PrimaryImage string          `json:"primary_image,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidStock    = errors.New("invalid_stock")
	ErrInvalidStone    = errors.New("invalid_stone")
	ErrInvalidColor    = errors.New("invalid_color")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidReorder  = errors.New("invalid_reorder")
	ErrNotFound        = errors.New("not_found")
	ErrImageNotFound   = errors.New("image_not_found")
)
