package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	GetTheme(ctx context.Context) (ThemeResponse, error)
	SetTheme(ctx context.Context, theme string) (ThemeResponse, error)

	AllSettings(ctx context.Context) (map[string]string, error)
	PutSetting(ctx context.Context, key, value string) error

	ListCategories(ctx context.Context) ([]CategoryResponse, error)
	CreateCategory(ctx context.Context, req CategoryRequest) (*CategoryResponse, error)
	UpdateCategory(ctx context.Context, id string, req CategoryRequest) (*CategoryResponse, error)
	DeleteCategory(ctx context.Context, id string) error

	ListTags(ctx context.Context, kind TagKind) ([]TagResponse, error)
	CreateTag(ctx context.Context, kind TagKind, name string) (*TagResponse, error)
	DeleteTag(ctx context.Context, kind TagKind, id string) error
}

type ThemeResponse struct {
	Theme    string `json:"theme"`
	Resolved string `json:"resolved"`
}

type CategoryRequest struct {
	Name        string  `json:"name"`
	Emoji       string  `json:"emoji"`
	Description *string `json:"description"`
}

type CategoryResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Emoji       string    `json:"emoji"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type TagResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

const DefaultCategoryEmoji = "✨"

var (
	ErrInvalidTheme   = errors.New("invalid_theme")
	ErrInvalidKey     = errors.New("invalid_key")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidKind    = errors.New("invalid_kind")
	ErrNotFound       = errors.New("not_found")
	ErrCategoryExists = errors.New("category_exists")
	ErrStoneExists    = errors.New("stone_exists")
	ErrColorExists    = errors.New("color_exists")
)

// ErrExists returns the duplicate-name error for kind.
func ErrExists(kind TagKind) error {
	if kind == TagColor {
		return ErrColorExists
	}
	return ErrStoneExists
}
