package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/settings/domain"
	"github.com/smallbiznis/atelier/internal/settings/repository"
	"github.com/smallbiznis/atelier/internal/settings/service"
	"github.com/smallbiznis/atelier/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T, now time.Time) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return service.New(service.Params{
		DB:    dbtest.New(t),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(now),
		Repo:  repository.Provide(),
		Cache: cache.NewLoader(cache.NewMemoryStore(), time.Minute, zap.NewNop()),
	})
}

func TestThemeDefaultsToAutoAndPersists(t *testing.T) {
	svc := newService(t, time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC))
	ctx := context.Background()

	got, err := svc.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeResponse{Theme: "auto", Resolved: "halloween"}, got)

	_, err = svc.SetTheme(ctx, "disco")
	assert.ErrorIs(t, err, domain.ErrInvalidTheme)

	got, err = svc.SetTheme(ctx, "rose")
	require.NoError(t, err)
	assert.Equal(t, "rose", got.Resolved)

	got, err = svc.SetTheme(ctx, "noel")
	require.NoError(t, err)

	got, err = svc.GetTheme(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeResponse{Theme: "noel", Resolved: "noel"}, got)

	all, err := svc.AllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theme": "noel"}, all)
}

func TestPutSetting(t *testing.T) {
	svc := newService(t, time.Now())
	ctx := context.Background()

	require.NoError(t, svc.PutSetting(ctx, "shop_banner", "Soldes d'hiver"))
	require.NoError(t, svc.PutSetting(ctx, "shop_banner", "Nouvelle collection"))
	assert.ErrorIs(t, svc.PutSetting(ctx, " ", "x"), domain.ErrInvalidKey)
	assert.ErrorIs(t, svc.PutSetting(ctx, "theme", "disco"), domain.ErrInvalidTheme)

	all, err := svc.AllSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Nouvelle collection", all["shop_banner"])
}

func TestCategoriesLifecycle(t *testing.T) {
	svc := newService(t, time.Now())
	ctx := context.Background()

	created, err := svc.CreateCategory(ctx, domain.CategoryRequest{Name: " Bracelets de cheville "})
	require.NoError(t, err)
	assert.Equal(t, "Bracelets de cheville", created.Name)
	assert.Equal(t, "bracelets-de-cheville", created.Slug)
	assert.Equal(t, "✨", created.Emoji)

	_, err = svc.CreateCategory(ctx, domain.CategoryRequest{Name: "Bracelets de cheville"})
	assert.ErrorIs(t, err, domain.ErrCategoryExists)

	_, err = svc.CreateCategory(ctx, domain.CategoryRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.CreateCategory(ctx, domain.CategoryRequest{Name: "Bracelets", Emoji: "📿"})
	require.NoError(t, err)

	list, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Bracelets", list[0].Name)

	desc := "Pour les oreilles"
	updated, err := svc.UpdateCategory(ctx, created.ID, domain.CategoryRequest{Name: "Boucles", Emoji: "💎", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "boucles", updated.Slug)
	assert.Equal(t, "Pour les oreilles", updated.Description)

	list, err = svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Boucles", list[0].Name, "cache invalidated on update")
	assert.Equal(t, "Bracelets", list[1].Name)

	require.NoError(t, svc.DeleteCategory(ctx, created.ID))
	assert.ErrorIs(t, svc.DeleteCategory(ctx, created.ID), domain.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteCategory(ctx, "abc"), domain.ErrInvalidID)

	_, err = svc.UpdateCategory(ctx, created.ID, domain.CategoryRequest{Name: "X"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTags(t *testing.T) {
	svc := newService(t, time.Now())
	ctx := context.Background()

	stone, err := svc.CreateTag(ctx, domain.TagStone, "Améthyste")
	require.NoError(t, err)
	_, err = svc.CreateTag(ctx, domain.TagStone, "Améthyste")
	assert.ErrorIs(t, err, domain.ErrStoneExists)

	_, err = svc.CreateTag(ctx, domain.TagColor, "Violet")
	require.NoError(t, err)
	_, err = svc.CreateTag(ctx, domain.TagColor, "Violet")
	assert.ErrorIs(t, err, domain.ErrColorExists)

	_, err = svc.CreateTag(ctx, domain.TagKind("metals"), "Or")
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	stones, err := svc.ListTags(ctx, domain.TagStone)
	require.NoError(t, err)
	require.Len(t, stones, 1)
	assert.Equal(t, "Améthyste", stones[0].Name)

	require.NoError(t, svc.DeleteTag(ctx, domain.TagStone, stone.ID))
	stones, err = svc.ListTags(ctx, domain.TagStone)
	require.NoError(t, err)
	assert.Empty(t, stones)

	colors, err := svc.ListTags(ctx, domain.TagColor)
	require.NoError(t, err)
	assert.Len(t, colors, 1)
}
