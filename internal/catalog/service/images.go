package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/smallbiznis/atelier/internal/catalog/domain"
	"github.com/smallbiznis/atelier/internal/imageorder"
	"github.com/smallbiznis/atelier/internal/media"
	"github.com/smallbiznis/atelier/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Update saves the product fields and applies the image editor commit in a
// single transaction. New blobs are written before the transaction and
// removed again when it fails; blobs of deleted images are removed once it
// has committed.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	productID, err := parseID(req.ID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	fields, stoneIDs, colorIDs, err := normalizeFields(req.ProductFields)
	if err != nil {
		return nil, err
	}
	deletedIDs, err := parseIDs(req.DeletedImageIDs)
	if err != nil {
		return nil, imageorder.ErrUnknownImage
	}

	current, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}
	images, err := s.repo.Images(ctx, s.db, []int64{productID})
	if err != nil {
		return nil, err
	}

	if len(images)-len(deletedIDs)+len(req.NewImages) > imageorder.MaxSlots {
		return nil, imageorder.ErrTooManyImages
	}
	uploads, err := processUploads(req.NewImages)
	if err != nil {
		return nil, err
	}

	existing := make([]imageorder.Image, 0, len(images))
	pathByID := make(map[int64]string, len(images))
	for _, img := range images {
		existing = append(existing, imageorder.Image{ID: img.ID, Path: img.Path})
		pathByID[img.ID] = img.Path
	}
	state, err := imageorder.Replay(existing, deletedIDs, uploads, req.ImageOrder)
	if err != nil {
		return nil, err
	}
	commit := state.Commit()

	now := s.clock.Now()
	paths, err := s.putBlobs(ctx, productID, commit.Placements, now)
	if err != nil {
		return nil, err
	}

	product := *current
	product.Name = fields.Name
	product.Category = fields.Category
	product.Description = fields.Description
	product.Price = fields.Price
	product.Stock = fields.Stock
	product.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, &product); err != nil {
			return err
		}
		n, err := s.repo.DeleteImages(ctx, tx, productID, commit.Delete)
		if err != nil {
			return err
		}
		if n != int64(len(commit.Delete)) {
			return imageorder.ErrUnknownImage
		}
		if err := s.insertPlacements(ctx, tx, productID, commit.Placements, paths, now); err != nil {
			return err
		}
		for _, pos := range commit.Reorder {
			if err := s.repo.UpdateImagePosition(ctx, tx, productID, pos.ImageID, pos.DisplayOrder, pos.IsPrimary); err != nil {
				return err
			}
		}
		return s.replaceTags(ctx, tx, productID, stoneIDs, colorIDs)
	})
	if err != nil {
		s.removePaths(ctx, paths)
		return nil, err
	}

	removed := make([]string, 0, len(commit.Delete))
	for _, id := range commit.Delete {
		removed = append(removed, pathByID[id])
	}
	s.removePaths(ctx, removed)
	s.invalidate(ctx)

	s.log.Info("product updated",
		zap.Int64("product_id", productID),
		zap.Int("images_added", len(paths)),
		zap.Int("images_deleted", len(removed)),
	)
	return s.load(ctx, s.db, productID)
}

// DeleteImage removes one image, renumbers the rest densely and makes the
// first remaining image primary.
func (s *Service) DeleteImage(ctx context.Context, imageID string) (*domain.Response, error) {
	id, err := parseID(imageID)
	if err != nil {
		return nil, domain.ErrImageNotFound
	}

	var image *domain.ProductImage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		image, err = s.repo.FindImage(ctx, tx, id)
		if err != nil {
			return err
		}
		if image == nil {
			return domain.ErrImageNotFound
		}
		if _, err := s.repo.DeleteImages(ctx, tx, image.ProductID, []int64{id}); err != nil {
			return err
		}
		remaining, err := s.repo.Images(ctx, tx, []int64{image.ProductID})
		if err != nil {
			return err
		}
		for i, img := range remaining {
			if err := s.repo.UpdateImagePosition(ctx, tx, image.ProductID, img.ID, i, i == 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.removePaths(ctx, []string{image.Path})
	s.invalidate(ctx)
	s.log.Info("product image deleted",
		zap.Int64("product_id", image.ProductID),
		zap.Int64("image_id", id),
	)
	return s.load(ctx, s.db, image.ProductID)
}

// ReorderImages applies explicit positions. Every image of the product must
// be listed once, orders must run 0..n-1 and only order 0 is primary.
func (s *Service) ReorderImages(ctx context.Context, productID string, positions []domain.ImagePosition) (*domain.Response, error) {
	pid, err := parseID(productID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.repo.FindByID(ctx, tx, pid)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}
		images, err := s.repo.Images(ctx, tx, []int64{pid})
		if err != nil {
			return err
		}
		parsed, err := validatePositions(images, positions)
		if err != nil {
			return err
		}
		for _, pos := range parsed {
			if err := s.repo.UpdateImagePosition(ctx, tx, pid, pos.ImageID, pos.DisplayOrder, pos.IsPrimary); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return s.load(ctx, s.db, pid)
}

func validatePositions(images []domain.ProductImage, positions []domain.ImagePosition) ([]imageorder.Position, error) {
	if len(positions) != len(images) {
		return nil, domain.ErrInvalidReorder
	}
	known := make(map[int64]struct{}, len(images))
	for _, img := range images {
		known[img.ID] = struct{}{}
	}

	out := make([]imageorder.Position, 0, len(positions))
	seen := make(map[int64]struct{}, len(positions))
	for _, pos := range positions {
		id, err := parseID(pos.ID)
		if err != nil {
			return nil, domain.ErrInvalidReorder
		}
		if _, ok := known[id]; !ok {
			return nil, domain.ErrImageNotFound
		}
		if _, dup := seen[id]; dup {
			return nil, domain.ErrInvalidReorder
		}
		seen[id] = struct{}{}
		out = append(out, imageorder.Position{
			Kind:         imageorder.KindExisting,
			ImageID:      id,
			DisplayOrder: pos.DisplayOrder,
			IsPrimary:    pos.IsPrimary,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	for i, pos := range out {
		if pos.DisplayOrder != i || pos.IsPrimary != (i == 0) {
			return nil, domain.ErrInvalidReorder
		}
	}
	return out, nil
}

// processUploads validates and resizes editor files. The returned uploads
// carry the processed bytes and a filename whose extension matches them.
func processUploads(files []imageorder.Upload) ([]imageorder.Upload, error) {
	out := make([]imageorder.Upload, 0, len(files))
	for _, file := range files {
		res, err := media.Process(file.Filename, file.Content, media.ProductFit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.Filename, err)
		}
		base := strings.TrimSuffix(path.Base(file.Filename), path.Ext(file.Filename))
		out = append(out, imageorder.Upload{
			Filename:    base + res.Ext,
			ContentType: res.ContentType,
			Content:     res.Content,
		})
	}
	return out, nil
}

// putBlobs stores every placement and returns the public paths in the same
// order. On error the blobs already written are removed.
func (s *Service) putBlobs(ctx context.Context, productID int64, placements []imageorder.Placement, now time.Time) ([]string, error) {
	paths := make([]string, 0, len(placements))
	for _, p := range placements {
		key := storage.ProductImageKey(productID, path.Ext(p.Upload.Filename), now)
		publicPath, err := s.store.Put(ctx, key, p.Upload.ContentType, bytes.NewReader(p.Upload.Content))
		if err != nil {
			s.removePaths(ctx, paths)
			return nil, fmt.Errorf("store image: %w", err)
		}
		paths = append(paths, publicPath)
	}
	return paths, nil
}

func (s *Service) insertPlacements(ctx context.Context, tx *gorm.DB, productID int64, placements []imageorder.Placement, paths []string, now time.Time) error {
	for i, p := range placements {
		if err := s.repo.InsertImage(ctx, tx, &domain.ProductImage{
			ID:           s.genID.Generate().Int64(),
			ProductID:    productID,
			Path:         paths[i],
			DisplayOrder: p.DisplayOrder,
			IsPrimary:    p.IsPrimary,
			CreatedAt:    now,
		}); err != nil {
			return err
		}
	}
	return nil
}

// removePaths deletes blobs best effort; failures only leave orphan files.
func (s *Service) removePaths(ctx context.Context, paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		key, err := s.store.KeyFromPath(p)
		if err != nil {
			s.log.Warn("skip blob removal", zap.String("path", p), zap.Error(err))
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("blob removal failed", zap.String("path", p), zap.Error(err))
		}
	}
}
