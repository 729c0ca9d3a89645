package service

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/smallbiznis/atelier/internal/catalog/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/imageorder"
	"github.com/smallbiznis/atelier/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheNamespace = "catalog"

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
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		store: p.Store,
		cache: p.Cache,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	category := strings.TrimSpace(req.Category)
	if category == domain.AllCategories {
		category = ""
	}
	return cache.Load(ctx, s.cache, cacheNamespace, "list:"+category, func(ctx context.Context) ([]domain.Response, error) {
		return s.list(ctx, domain.ListFilter{InStockOnly: true, Category: category})
	})
}

func (s *Service) Featured(ctx context.Context) ([]domain.Response, error) {
	return cache.Load(ctx, s.cache, cacheNamespace, "featured", func(ctx context.Context) ([]domain.Response, error) {
		return s.list(ctx, domain.ListFilter{InStockOnly: true, Limit: domain.FeaturedLimit})
	})
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return cache.Load(ctx, s.cache, cacheNamespace, "categories", func(ctx context.Context) ([]string, error) {
		items, err := s.repo.Categories(ctx, s.db)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []string{}
		}
		return items, nil
	})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	resp, err := cache.Load(ctx, s.cache, cacheNamespace, "product:"+id, func(ctx context.Context) (domain.Response, error) {
		item, err := s.load(ctx, s.db, productID)
		if err != nil {
			return domain.Response{}, err
		}
		return *item, nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AdminList returns every product including those out of stock.
func (s *Service) AdminList(ctx context.Context) ([]domain.Response, error) {
	return s.list(ctx, domain.ListFilter{})
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	fields, stoneIDs, colorIDs, err := normalizeFields(req.ProductFields)
	if err != nil {
		return nil, err
	}
	if len(req.Images) > imageorder.MaxSlots {
		return nil, imageorder.ErrTooManyImages
	}
	uploads, err := processUploads(req.Images)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	product := domain.Product{
		ID:          s.genID.Generate().Int64(),
		Name:        fields.Name,
		Category:    fields.Category,
		Description: fields.Description,
		Price:       fields.Price,
		Stock:       fields.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	state := imageorder.Initialize(nil).AppendNew(uploads...)
	commit := state.Commit()
	paths, err := s.putBlobs(ctx, product.ID, commit.Placements, now)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Create(ctx, tx, &product); err != nil {
			return err
		}
		if err := s.insertPlacements(ctx, tx, product.ID, commit.Placements, paths, now); err != nil {
			return err
		}
		return s.replaceTags(ctx, tx, product.ID, stoneIDs, colorIDs)
	})
	if err != nil {
		s.removePaths(ctx, paths)
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.Int("images", len(paths)),
	)
	return s.load(ctx, s.db, product.ID)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	productID, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}

	var images []domain.ProductImage
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		images, err = s.repo.Images(ctx, tx, []int64{productID})
		if err != nil {
			return err
		}
		deleted, err := s.repo.Delete(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(images))
	for _, img := range images {
		paths = append(paths, img.Path)
	}
	s.removePaths(ctx, paths)
	s.invalidate(ctx)
	s.log.Info("product deleted", zap.Int64("product_id", productID))
	return nil
}

func (s *Service) list(ctx context.Context, filter domain.ListFilter) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, s.db, items)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id int64) (*domain.Response, error) {
	item, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	resp, err := s.enrich(ctx, db, []domain.Product{*item})
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

// enrich attaches images, stones and colors to products with one query
// per relation.
func (s *Service) enrich(ctx context.Context, db *gorm.DB, items []domain.Product) ([]domain.Response, error) {
	resp := make([]domain.Response, 0, len(items))
	if len(items) == 0 {
		return resp, nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	images, err := s.repo.Images(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	stones, err := s.repo.Tags(ctx, db, domain.Stones, ids)
	if err != nil {
		return nil, err
	}
	colors, err := s.repo.Tags(ctx, db, domain.Colors, ids)
	if err != nil {
		return nil, err
	}

	imagesBy := make(map[int64][]domain.ProductImage, len(items))
	for _, img := range images {
		imagesBy[img.ProductID] = append(imagesBy[img.ProductID], img)
	}
	stonesBy := groupTags(stones)
	colorsBy := groupTags(colors)

	for i := range items {
		resp = append(resp, toResponse(&items[i], imagesBy[items[i].ID], stonesBy[items[i].ID], colorsBy[items[i].ID]))
	}
	return resp, nil
}

func groupTags(tags []domain.ProductTag) map[int64][]domain.ProductTag {
	out := make(map[int64][]domain.ProductTag)
	for _, tag := range tags {
		out[tag.ProductID] = append(out[tag.ProductID], tag)
	}
	return out
}

func toResponse(p *domain.Product, images []domain.ProductImage, stones, colors []domain.ProductTag) domain.Response {
	resp := domain.Response{
		ID:         strconv.FormatInt(p.ID, 10),
		Name:       p.Name,
		Category:   p.Category,
		Price:      p.Price,
		Stock:      p.Stock,
		StoneIDs:   []string{},
		StoneNames: []string{},
		ColorIDs:   []string{},
		ColorNames: []string{},
		Images:     []domain.ImageResponse{},
		ImagePaths: []string{},
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.Description != nil {
		resp.Description = *p.Description
	}
	for _, tag := range stones {
		resp.StoneIDs = append(resp.StoneIDs, strconv.FormatInt(tag.ID, 10))
		resp.StoneNames = append(resp.StoneNames, tag.Name)
	}
	for _, tag := range colors {
		resp.ColorIDs = append(resp.ColorIDs, strconv.FormatInt(tag.ID, 10))
		resp.ColorNames = append(resp.ColorNames, tag.Name)
	}
	resp.Stones = strings.Join(resp.StoneNames, ", ")
	resp.Colors = strings.Join(resp.ColorNames, ", ")

	for _, img := range images {
		resp.Images = append(resp.Images, domain.ImageResponse{
			ID:           strconv.FormatInt(img.ID, 10),
			Path:         img.Path,
			DisplayOrder: img.DisplayOrder,
			IsPrimary:    img.IsPrimary,
		})
		resp.ImagePaths = append(resp.ImagePaths, img.Path)
		if img.IsPrimary && resp.PrimaryImage == "" {
			resp.PrimaryImage = img.Path
		}
	}
	if resp.PrimaryImage == "" && len(resp.ImagePaths) > 0 {
		resp.PrimaryImage = resp.ImagePaths[0]
	}
	return resp
}

func normalizeFields(in domain.ProductFields) (domain.ProductFields, []int64, []int64, error) {
	out := domain.ProductFields{
		Name:     strings.TrimSpace(in.Name),
		Category: strings.TrimSpace(in.Category),
		Price:    math.Round(in.Price*100) / 100,
		Stock:    in.Stock,
	}
	if out.Name == "" {
		return out, nil, nil, domain.ErrInvalidName
	}
	if out.Category == "" || out.Category == domain.AllCategories {
		return out, nil, nil, domain.ErrInvalidCategory
	}
	if math.IsNaN(in.Price) || math.IsInf(in.Price, 0) || out.Price < 0 {
		return out, nil, nil, domain.ErrInvalidPrice
	}
	if out.Stock < 0 {
		return out, nil, nil, domain.ErrInvalidStock
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc != "" {
			out.Description = &desc
		}
	}

	stoneIDs, err := parseIDs(in.StoneIDs)
	if err != nil {
		return out, nil, nil, domain.ErrInvalidStone
	}
	colorIDs, err := parseIDs(in.ColorIDs)
	if err != nil {
		return out, nil, nil, domain.ErrInvalidColor
	}
	return out, stoneIDs, colorIDs, nil
}

func (s *Service) replaceTags(ctx context.Context, tx *gorm.DB, productID int64, stoneIDs, colorIDs []int64) error {
	if err := s.checkTags(ctx, tx, domain.Stones, stoneIDs, domain.ErrInvalidStone); err != nil {
		return err
	}
	if err := s.checkTags(ctx, tx, domain.Colors, colorIDs, domain.ErrInvalidColor); err != nil {
		return err
	}
	if err := s.repo.ReplaceTags(ctx, tx, domain.Stones, productID, stoneIDs); err != nil {
		return err
	}
	return s.repo.ReplaceTags(ctx, tx, domain.Colors, productID, colorIDs)
}

func (s *Service) checkTags(ctx context.Context, tx *gorm.DB, kind domain.TagKind, ids []int64, invalid error) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := s.repo.CountTags(ctx, tx, kind, ids)
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return invalid
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.cache.Invalidate(ctx, cacheNamespace)
}

func parseID(value string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id.Int64() <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

// parseIDs parses and deduplicates ids keeping their first position.
func parseIDs(values []string) ([]int64, error) {
	out := make([]int64, 0, len(values))
	seen := make(map[int64]struct{}, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
