package imageorder_test

import (
	"math/rand"
	"testing"

	"github.com/smallbiznis/atelier/internal/imageorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func existing(ids ...int64) []imageorder.Image {
	out := make([]imageorder.Image, 0, len(ids))
	for _, id := range ids {
		out = append(out, imageorder.Image{ID: id})
	}
	return out
}

func upload(name string) imageorder.Upload {
	return imageorder.Upload{Filename: name, ContentType: "image/jpeg", Content: []byte(name)}
}

func labels(s imageorder.State) []string {
	out := []string{}
	for _, slot := range s.Slots() {
		if slot.Kind == imageorder.KindNew {
			out = append(out, slot.Upload.Filename)
			continue
		}
		out = append(out, string(rune('A'+slot.Image.ID-1)))
	}
	return out
}

func assertDenseLayout(t *testing.T, s imageorder.State) {
	t.Helper()
	for i, pos := range s.Layout() {
		require.Equal(t, i, pos.DisplayOrder)
		require.Equal(t, i == 0, pos.IsPrimary)
	}
}

func TestAppendThenMoveSwaps(t *testing.T) {
	s := imageorder.Initialize(existing(1, 2, 3))
	s = s.AppendNew(upload("F"))
	assert.Equal(t, []string{"A", "B", "C", "F"}, labels(s))

	s = s.Move(3, 0)
	assert.Equal(t, []string{"F", "B", "C", "A"}, labels(s))

	layout := s.Layout()
	assert.True(t, layout[0].IsPrimary)
	assert.Equal(t, imageorder.KindNew, layout[0].Kind)
	assert.Equal(t, int64(1), layout[3].ImageID)
	assert.Equal(t, 3, layout[3].DisplayOrder)
	assertDenseLayout(t, s)
}

func TestMoveOutOfBoundsIsNoop(t *testing.T) {
	s := imageorder.Initialize(existing(1, 2))
	assert.Equal(t, labels(s), labels(s.Move(-1, 0)))
	assert.Equal(t, labels(s), labels(s.Move(0, 2)))
	assert.Equal(t, labels(s), labels(s.Move(1, 1)))
}

func TestTransitionsDoNotMutateReceiver(t *testing.T) {
	base := imageorder.Initialize(existing(1, 2, 3))
	_ = base.Move(0, 2)
	_ = base.RemoveExisting(2)
	_ = base.AppendNew(upload("X"))

	assert.Equal(t, []string{"A", "B", "C"}, labels(base))
	assert.Empty(t, base.Deleted())
}

func TestRemoveExistingIsQueuedUntilCommit(t *testing.T) {
	s := imageorder.Initialize(existing(1, 2, 3))
	s = s.RemoveExisting(1)
	s = s.RemoveExisting(42)
	s = s.RemoveExisting(3)

	assert.Equal(t, []string{"B"}, labels(s))
	assertDenseLayout(t, s)

	commit := s.Commit()
	assert.Equal(t, []int64{1, 3}, commit.Delete)
	require.Len(t, commit.Reorder, 1)
	assert.Equal(t, imageorder.Position{Kind: imageorder.KindExisting, ImageID: 2, DisplayOrder: 0, IsPrimary: true}, commit.Reorder[0])

	fresh := imageorder.Initialize(existing(2))
	assert.Empty(t, fresh.Commit().Delete, "initialize resets pending deletions")
}

func TestRemoveNewIgnoresPersistedSlots(t *testing.T) {
	s := imageorder.Initialize(existing(1)).AppendNew(upload("X"), upload("Y"))
	assert.Equal(t, []string{"A", "X", "Y"}, labels(s.RemoveNew(0)))

	s = s.RemoveNew(1)
	assert.Equal(t, []string{"A", "Y"}, labels(s))
	assert.Empty(t, s.Deleted())
	assertDenseLayout(t, s)
}

func TestCommitKeepsUploadRelativeOrder(t *testing.T) {
	s := imageorder.Initialize(existing(1)).
		AppendNew(upload("X"), upload("Y")).
		Move(2, 0)

	commit := s.Commit()
	assert.Equal(t, []string{"Y", "X"}, []string{commit.Uploads[0].Filename, commit.Uploads[1].Filename})
	require.Len(t, commit.Placements, 2)
	assert.Equal(t, 0, commit.Placements[0].DisplayOrder)
	assert.True(t, commit.Placements[0].IsPrimary)
	assert.Equal(t, 1, commit.Placements[1].DisplayOrder)
	assert.Equal(t, []imageorder.Position{{Kind: imageorder.KindExisting, ImageID: 1, DisplayOrder: 2}}, commit.Reorder)
}

func TestEmptySequence(t *testing.T) {
	s := imageorder.Initialize(existing(1)).RemoveExisting(1)
	assert.Empty(t, s.Layout())
	c := s.Commit()
	assert.Empty(t, c.Reorder)
	assert.Empty(t, c.Uploads)
	assert.False(t, c.Empty())
	assert.True(t, imageorder.Initialize(nil).Commit().Empty())
}

func TestRandomEditsKeepLayoutDense(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := imageorder.Initialize(existing(1, 2, 3, 4))
	removed := map[int64]bool{}
	for step := 0; step < 500; step++ {
		switch rng.Intn(4) {
		case 0:
			if s.Len() < imageorder.MaxSlots {
				s = s.AppendNew(upload("n"))
			}
		case 1:
			s = s.Move(rng.Intn(s.Len()+2)-1, rng.Intn(s.Len()+2)-1)
		case 2:
			id := int64(rng.Intn(5) + 1)
			before := s.Len()
			s = s.RemoveExisting(id)
			if s.Len() < before {
				removed[id] = true
			}
		case 3:
			s = s.RemoveNew(rng.Intn(s.Len() + 1))
		}
		assertDenseLayout(t, s)
	}
	for _, id := range s.Commit().Delete {
		assert.True(t, removed[id])
	}
	assert.Len(t, s.Commit().Delete, len(removed))
}
