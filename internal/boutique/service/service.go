package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/boutique/domain"
	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/media"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheNamespace = "boutique"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Store storage.Store
	Cache *cache.Loader `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	store storage.Store
	cache *cache.Loader
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("boutique.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		store: p.Store,
		cache: p.Cache,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	return cache.Load(ctx, s.cache, cacheNamespace, "list", func(ctx context.Context) ([]domain.Response, error) {
		items, err := s.repo.List(ctx, s.db)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Response, 0, len(items))
		for _, item := range items {
			out = append(out, toResponse(item))
		}
		return out, nil
	})
}

// Upload resizes the image into the gallery box and appends it after the
// current last position.
func (s *Service) Upload(ctx context.Context, req domain.UploadRequest) (*domain.Response, error) {
	if len(req.Content) == 0 {
		return nil, domain.ErrMissingImage
	}
	res, err := media.Process(req.Filename, req.Content, media.BoutiqueFit)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	key := storage.BoutiqueImageKey(res.Ext, now)
	publicPath, err := s.store.Put(ctx, key, res.ContentType, bytes.NewReader(res.Content))
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	image := domain.Image{
		ID:        s.genID.Generate().Int64(),
		Path:      publicPath,
		CreatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		max, err := s.repo.MaxDisplayOrder(ctx, tx)
		if err != nil {
			return err
		}
		image.DisplayOrder = max + 1
		return s.repo.Insert(ctx, tx, &image)
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.log.Warn("blob removal failed", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}

	s.invalidate(ctx)
	obslogger.WithContext(ctx, s.log).Info("boutique image uploaded",
		zap.Int64("image_id", image.ID),
		zap.Int("display_order", image.DisplayOrder),
	)
	resp := toResponse(image)
	return &resp, nil
}

// Delete removes the blob first and the row afterwards. A failed blob
// removal is logged and does not keep the row.
func (s *Service) Delete(ctx context.Context, id string) error {
	imageID, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}
	image, err := s.repo.FindByID(ctx, s.db, imageID)
	if err != nil {
		return err
	}
	if image == nil {
		return domain.ErrNotFound
	}

	if key, err := s.store.KeyFromPath(image.Path); err != nil {
		s.log.Warn("skip blob removal", zap.String("path", image.Path), zap.Error(err))
	} else if err := s.store.Delete(ctx, key); err != nil {
		s.log.Warn("blob removal failed", zap.String("path", image.Path), zap.Error(err))
	}

	if err := s.repo.Delete(ctx, s.db, imageID); err != nil {
		return err
	}
	s.invalidate(ctx)
	obslogger.WithContext(ctx, s.log).Info("boutique image deleted", zap.Int64("image_id", imageID))
	return nil
}

// Reorder applies every position in one transaction; an unknown id rolls
// the whole batch back.
func (s *Service) Reorder(ctx context.Context, positions []domain.Position) error {
	if positions == nil {
		return domain.ErrInvalidFormat
	}
	type update struct {
		id    int64
		order int
	}
	updates := make([]update, 0, len(positions))
	for _, p := range positions {
		id, err := parseID(p.ID)
		if err != nil {
			return err
		}
		if p.DisplayOrder < 0 {
			return domain.ErrInvalidFormat
		}
		updates = append(updates, update{id: id, order: p.DisplayOrder})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			rows, err := s.repo.UpdateDisplayOrder(ctx, tx, u.id, u.order)
			if err != nil {
				return err
			}
			if rows == 0 {
				return domain.ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheNamespace)
}

func toResponse(image domain.Image) domain.Response {
	return domain.Response{
		ID:           strconv.FormatInt(image.ID, 10),
		ImagePath:    image.Path,
		DisplayOrder: image.DisplayOrder,
		CreatedAt:    image.CreatedAt,
	}
}

func parseID(value string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id.Int64() <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}
