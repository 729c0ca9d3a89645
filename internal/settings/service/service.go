package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/settings/domain"
	dbpkg "github.com/smallbiznis/atelier/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	cacheNamespace = "settings"
	maxKeyLength   = 191
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Cache *cache.Loader `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	cache *cache.Loader
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("settings.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

// GetTheme reads the persisted theme on every call so a restart never
// resets the storefront look.
func (s *Service) GetTheme(ctx context.Context) (domain.ThemeResponse, error) {
	setting, err := s.repo.GetSetting(ctx, s.db, domain.ThemeSettingKey)
	if err != nil {
		return domain.ThemeResponse{}, err
	}
	theme := domain.ThemeAuto
	if setting != nil && domain.ValidTheme(setting.Value) {
		theme = setting.Value
	}
	return domain.ThemeResponse{Theme: theme, Resolved: domain.Resolve(theme, s.clock.Now())}, nil
}

func (s *Service) SetTheme(ctx context.Context, theme string) (domain.ThemeResponse, error) {
	theme = strings.TrimSpace(theme)
	if !domain.ValidTheme(theme) {
		return domain.ThemeResponse{}, domain.ErrInvalidTheme
	}
	if err := s.repo.UpsertSetting(ctx, s.db, &domain.Setting{
		Key:       domain.ThemeSettingKey,
		Value:     theme,
		UpdatedAt: s.clock.Now(),
	}); err != nil {
		return domain.ThemeResponse{}, err
	}
	s.log.Info("theme updated", zap.String("theme", theme))
	return domain.ThemeResponse{Theme: theme, Resolved: domain.Resolve(theme, s.clock.Now())}, nil
}

func (s *Service) AllSettings(ctx context.Context) (map[string]string, error) {
	items, err := s.repo.ListSettings(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		out[item.Key] = item.Value
	}
	return out, nil
}

func (s *Service) PutSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLength {
		return domain.ErrInvalidKey
	}
	if key == domain.ThemeSettingKey && !domain.ValidTheme(value) {
		return domain.ErrInvalidTheme
	}
	return s.repo.UpsertSetting(ctx, s.db, &domain.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: s.clock.Now(),
	})
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.CategoryResponse, error) {
	return cache.Load(ctx, s.cache, cacheNamespace, "categories", func(ctx context.Context) ([]domain.CategoryResponse, error) {
		items, err := s.repo.ListCategories(ctx, s.db)
		if err != nil {
			return nil, err
		}
		resp := make([]domain.CategoryResponse, 0, len(items))
		for i := range items {
			resp = append(resp, categoryResponse(&items[i]))
		}
		return resp, nil
	})
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryRequest) (*domain.CategoryResponse, error) {
	c := &domain.Category{
		ID:        s.genID.Generate().Int64(),
		CreatedAt: s.clock.Now(),
	}
	if err := applyCategory(c, req); err != nil {
		return nil, err
	}
	if err := s.repo.InsertCategory(ctx, s.db, c); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCategoryExists
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheNamespace)
	resp := categoryResponse(c)
	return &resp, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, req domain.CategoryRequest) (*domain.CategoryResponse, error) {
	categoryID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.FindCategory(ctx, s.db, categoryID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	if err := applyCategory(c, req); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCategory(ctx, s.db, c); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCategoryExists
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheNamespace)
	resp := categoryResponse(c)
	return &resp, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	categoryID, err := parseID(id)
	if err != nil {
		return err
	}
	ok, err := s.repo.DeleteCategory(ctx, s.db, categoryID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.cache.Invalidate(ctx, cacheNamespace)
	return nil
}

func (s *Service) ListTags(ctx context.Context, kind domain.TagKind) ([]domain.TagResponse, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	return cache.Load(ctx, s.cache, cacheNamespace, string(kind), func(ctx context.Context) ([]domain.TagResponse, error) {
		items, err := s.repo.ListTags(ctx, s.db, kind)
		if err != nil {
			return nil, err
		}
		resp := make([]domain.TagResponse, 0, len(items))
		for _, item := range items {
			resp = append(resp, domain.TagResponse{
				ID:        snowflake.ID(item.ID).String(),
				Name:      item.Name,
				CreatedAt: item.CreatedAt,
			})
		}
		return resp, nil
	})
}

func (s *Service) CreateTag(ctx context.Context, kind domain.TagKind, name string) (*domain.TagResponse, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	tag := &domain.Tag{
		ID:        s.genID.Generate().Int64(),
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.InsertTag(ctx, s.db, kind, tag); err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, domain.ErrExists(kind)
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheNamespace)
	return &domain.TagResponse{
		ID:        snowflake.ID(tag.ID).String(),
		Name:      tag.Name,
		CreatedAt: tag.CreatedAt,
	}, nil
}

func (s *Service) DeleteTag(ctx context.Context, kind domain.TagKind, id string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	tagID, err := parseID(id)
	if err != nil {
		return err
	}
	ok, err := s.repo.DeleteTag(ctx, s.db, kind, tagID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.cache.Invalidate(ctx, cacheNamespace)
	return nil
}

func applyCategory(c *domain.Category, req domain.CategoryRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ErrInvalidName
	}
	c.Name = name
	c.Slug = slug.Make(name)
	if c.Slug == "" {
		return domain.ErrInvalidName
	}
	c.Emoji = strings.TrimSpace(req.Emoji)
	if c.Emoji == "" {
		c.Emoji = domain.DefaultCategoryEmoji
	}
	c.Description = nil
	if req.Description != nil {
		if d := strings.TrimSpace(*req.Description); d != "" {
			c.Description = &d
		}
	}
	return nil
}

func categoryResponse(c *domain.Category) domain.CategoryResponse {
	resp := domain.CategoryResponse{
		ID:        snowflake.ID(c.ID).String(),
		Name:      c.Name,
		Slug:      c.Slug,
		Emoji:     c.Emoji,
		CreatedAt: c.CreatedAt,
	}
	if c.Description != nil {
		resp.Description = *c.Description
	}
	return resp
}

func validKind(kind domain.TagKind) error {
	if kind != domain.TagStone && kind != domain.TagColor {
		return domain.ErrInvalidKind
	}
	return nil
}

func parseID(id string) (int64, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed <= 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed.Int64(), nil
}
