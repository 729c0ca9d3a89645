package imageorder_test

import (
	"encoding/json"
	"testing"

	"github.com/smallbiznis/atelier/internal/imageorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayMatchesPlan(t *testing.T) {
	plan := []imageorder.PlanEntry{
		{Kind: imageorder.KindNew, Index: 1},
		{Kind: imageorder.KindExisting, ID: "3"},
		{Kind: imageorder.KindNew, Index: 0},
		{Kind: imageorder.KindExisting, ID: "1"},
	}
	s, err := imageorder.Replay(existing(1, 2, 3), []int64{2}, []imageorder.Upload{upload("X"), upload("Y")}, plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y", "C", "X", "A"}, labels(s))

	commit := s.Commit()
	assert.Equal(t, []int64{2}, commit.Delete)
	assert.Equal(t, "Y", commit.Placements[0].Upload.Filename)
	assert.True(t, commit.Placements[0].IsPrimary)
	assert.Equal(t, []imageorder.Position{
		{Kind: imageorder.KindExisting, ImageID: 3, DisplayOrder: 1},
		{Kind: imageorder.KindExisting, ImageID: 1, DisplayOrder: 3},
	}, commit.Reorder)
}

func TestReplayWithoutPlanAppends(t *testing.T) {
	s, err := imageorder.Replay(existing(1, 2), nil, []imageorder.Upload{upload("X")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "X"}, labels(s))
}

func TestReplayRejectsBadInput(t *testing.T) {
	uploads := []imageorder.Upload{upload("X")}

	_, err := imageorder.Replay(existing(1), []int64{9}, nil, nil)
	assert.ErrorIs(t, err, imageorder.ErrUnknownImage)

	_, err = imageorder.Replay(existing(1), nil, uploads, []imageorder.PlanEntry{{Kind: imageorder.KindExisting, ID: "1"}})
	assert.ErrorIs(t, err, imageorder.ErrInvalidPlan, "plan must cover every slot")

	_, err = imageorder.Replay(existing(1), nil, uploads, []imageorder.PlanEntry{
		{Kind: imageorder.KindExisting, ID: "1"},
		{Kind: imageorder.KindExisting, ID: "1"},
	})
	assert.ErrorIs(t, err, imageorder.ErrInvalidPlan)

	_, err = imageorder.Replay(existing(1), nil, uploads, []imageorder.PlanEntry{
		{Kind: imageorder.KindExisting, ID: "1"},
		{Kind: imageorder.KindNew, Index: 4},
	})
	assert.ErrorIs(t, err, imageorder.ErrInvalidPlan)

	many := make([]imageorder.Upload, imageorder.MaxSlots)
	_, err = imageorder.Replay(existing(1), nil, many, nil)
	assert.ErrorIs(t, err, imageorder.ErrTooManyImages)
}

func TestPlanEntryDecodesNumericAndStringIDs(t *testing.T) {
	var plan []imageorder.PlanEntry
	payload := `[{"kind":"existing","id":12},{"kind":"new","index":0},{"kind":"existing","id":"7"},{"kind":"existing","id":1234567890123456789}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &plan))
	assert.Equal(t, []imageorder.PlanEntry{
		{Kind: imageorder.KindExisting, ID: "12"},
		{Kind: imageorder.KindNew, Index: 0},
		{Kind: imageorder.KindExisting, ID: "7"},
		{Kind: imageorder.KindExisting, ID: "1234567890123456789"},
	}, plan)

	var bad []imageorder.PlanEntry
	assert.Error(t, json.Unmarshal([]byte(`[{"kind":"existing","id":true}]`), &bad))
}

func TestReplayAcceptsDecodedNumericPlan(t *testing.T) {
	var plan []imageorder.PlanEntry
	require.NoError(t, json.Unmarshal([]byte(`[{"kind":"new","index":0},{"kind":"existing","id":1}]`), &plan))
	s, err := imageorder.Replay(existing(1), nil, []imageorder.Upload{upload("X")}, plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "A"}, labels(s))
}
