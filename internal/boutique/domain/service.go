package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	List(ctx context.Context) ([]Response, error)
	Upload(ctx context.Context, req UploadRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	Reorder(ctx context.Context, positions []Position) error
}

type UploadRequest struct {
	Filename string
	Content  []byte
}

// Position is one entry of a reorder request.
type Position struct {
	ID           string `json:"id"`
	DisplayOrder int    `json:"display_order"`
}

type Response struct {
	ID           string    `json:"id"`
	ImagePath    string    `json:"image_path"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	ErrMissingImage  = errors.New("missing_image")
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidFormat = errors.New("invalid_format")
	ErrNotFound      = errors.New("not_found")
)
