package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/boutique/domain"
	"github.com/smallbiznis/atelier/internal/boutique/repository"
	"github.com/smallbiznis/atelier/internal/boutique/service"
	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/storage"
	"github.com/smallbiznis/atelier/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   domain.Service
	db    *gorm.DB
	root  string
	clock *clock.FakeClock
}

func newFixture(t *testing.T, wrap func(storage.Store) storage.Store) fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	root := t.TempDir()
	local, err := storage.NewLocal(root, "/uploads")
	require.NoError(t, err)
	var store storage.Store = local
	if wrap != nil {
		store = wrap(local)
	}

	db := dbtest.New(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC))
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Store: store,
		Cache: cache.NewLoader(cache.NewMemoryStore(), time.Minute, zap.NewNop()),
	})
	return fixture{svc: svc, db: db, root: root, clock: clk}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func (f fixture) upload(t *testing.T) *domain.Response {
	t.Helper()
	f.clock.Advance(time.Second)
	resp, err := f.svc.Upload(context.Background(), domain.UploadRequest{Filename: "vitrine.jpg", Content: jpegBytes(t, 2400, 1200)})
	require.NoError(t, err)
	return resp
}

func TestUploadAppendsAfterLastImage(t *testing.T) {
	f := newFixture(t, nil)

	first := f.upload(t)
	second := f.upload(t)

	assert.Equal(t, 1, first.DisplayOrder)
	assert.Equal(t, 2, second.DisplayOrder)
	assert.True(t, strings.HasPrefix(first.ImagePath, "/uploads/boutique/boutique-"))

	stored := filepath.Join(f.root, strings.TrimPrefix(first.ImagePath, "/uploads/"))
	file, err := os.Open(stored)
	require.NoError(t, err)
	defer file.Close()
	cfg, _, err := image.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
}

func TestUploadRejectsMissingOrInvalidImage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Upload(ctx, domain.UploadRequest{Filename: "vide.jpg"})
	assert.ErrorIs(t, err, domain.ErrMissingImage)

	_, err = f.svc.Upload(ctx, domain.UploadRequest{Filename: "notes.txt", Content: []byte("bonjour")})
	assert.Error(t, err)
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM boutique_images`)
}

func TestReorderIsAtomic(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := f.upload(t)
	b := f.upload(t)

	err := f.svc.Reorder(ctx, []domain.Position{
		{ID: a.ID, DisplayOrder: 2},
		{ID: "999", DisplayOrder: 1},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	items, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, a.ID, items[0].ID)

	require.NoError(t, f.svc.Reorder(ctx, []domain.Position{
		{ID: a.ID, DisplayOrder: 2},
		{ID: b.ID, DisplayOrder: 1},
	}))
	items, err = f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, []string{items[0].ID, items[1].ID})

	assert.ErrorIs(t, f.svc.Reorder(ctx, nil), domain.ErrInvalidFormat)
	assert.ErrorIs(t, f.svc.Reorder(ctx, []domain.Position{{ID: "abc", DisplayOrder: 1}}), domain.ErrInvalidID)
}

func TestDeleteRemovesBlobAndRow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	img := f.upload(t)

	require.NoError(t, f.svc.Delete(ctx, img.ID))
	_, err := os.Stat(filepath.Join(f.root, strings.TrimPrefix(img.ImagePath, "/uploads/")))
	assert.True(t, os.IsNotExist(err))
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM boutique_images`)

	assert.ErrorIs(t, f.svc.Delete(ctx, img.ID), domain.ErrNotFound)
}

type failingDelete struct {
	storage.Store
}

func (failingDelete) Delete(context.Context, string) error {
	return errors.New("bucket unavailable")
}

func TestDeleteKeepsGoingWhenBlobRemovalFails(t *testing.T) {
	f := newFixture(t, func(s storage.Store) storage.Store { return failingDelete{Store: s} })
	img := f.upload(t)

	require.NoError(t, f.svc.Delete(context.Background(), img.ID))
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM boutique_images`)
}
