// Package imageorder merges a product's persisted images and newly selected
// files into one ordered sequence and turns that sequence into the writes
// needed to persist it.
//
// State is immutable: every transition returns a new State and leaves the
// receiver untouched, so an editing session can keep history or retry a
// commit without copying by hand.
package imageorder

// MaxSlots is the number of images a product may carry. State does not
// enforce it; callers check before appending.
const MaxSlots = 10

type Kind string

const (
	KindExisting Kind = "existing"
	KindNew      Kind = "new"
)

// Image is an already persisted product image.
type Image struct {
	ID   int64
	Path string
}

// Upload is a file selected in the editor and not yet stored.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Slot is one entry of the working sequence.
type Slot struct {
	Kind   Kind
	Image  Image
	Upload Upload
}

// Position is the derived placement of a slot.
type Position struct {
	Kind         Kind
	ImageID      int64
	DisplayOrder int
	IsPrimary    bool
}

// Placement is a new upload together with the order it must be stored at.
type Placement struct {
	Upload       Upload
	DisplayOrder int
	IsPrimary    bool
}

// Commit lists the writes that make storage match the working sequence.
// Apply Delete first, then store Placements, then Reorder.
type Commit struct {
	Delete     []int64
	Uploads    []Upload
	Placements []Placement
	Reorder    []Position
}

// Empty reports whether applying the commit would change nothing.
func (c Commit) Empty() bool {
	return len(c.Delete) == 0 && len(c.Uploads) == 0 && len(c.Reorder) == 0
}

type State struct {
	slots   []Slot
	deleted []int64
}

// Initialize seeds a session from the product's images in their current
// order. Pass nil for a new product.
func Initialize(existing []Image) State {
	slots := make([]Slot, 0, len(existing))
	for _, img := range existing {
		slots = append(slots, Slot{Kind: KindExisting, Image: img})
	}
	return State{slots: slots}
}

func (s State) Len() int { return len(s.slots) }

// Slots returns a copy of the working sequence.
func (s State) Slots() []Slot {
	out := make([]Slot, len(s.slots))
	copy(out, s.slots)
	return out
}

// Deleted returns the ids queued for deletion since Initialize.
func (s State) Deleted() []int64 {
	out := make([]int64, len(s.deleted))
	copy(out, s.deleted)
	return out
}

// AppendNew adds each upload to the end of the sequence.
func (s State) AppendNew(uploads ...Upload) State {
	next := s.clone(len(uploads))
	for _, u := range uploads {
		next.slots = append(next.slots, Slot{Kind: KindNew, Upload: u})
	}
	return next
}

// Move swaps the slots at from and to. Out-of-range indexes leave the
// sequence unchanged.
func (s State) Move(from, to int) State {
	if !s.inRange(from) || !s.inRange(to) || from == to {
		return s
	}
	next := s.clone(0)
	next.slots[from], next.slots[to] = next.slots[to], next.slots[from]
	return next
}

// RemoveExisting drops the persisted image from the sequence and queues its
// deletion. Ids not present in the sequence are ignored.
func (s State) RemoveExisting(imageID int64) State {
	idx := s.indexOfExisting(imageID)
	if idx < 0 {
		return s
	}
	next := s.clone(0)
	next.slots = append(next.slots[:idx], next.slots[idx+1:]...)
	next.deleted = append(next.deleted, imageID)
	return next
}

// RemoveNew drops a not yet stored upload. Indexes that are out of range or
// point at a persisted image leave the sequence unchanged.
func (s State) RemoveNew(index int) State {
	if !s.inRange(index) || s.slots[index].Kind != KindNew {
		return s
	}
	next := s.clone(0)
	next.slots = append(next.slots[:index], next.slots[index+1:]...)
	return next
}

// Layout derives display order and primary flag for every slot: order is
// the index and only index 0 is primary.
func (s State) Layout() []Position {
	out := make([]Position, len(s.slots))
	for i, slot := range s.slots {
		out[i] = Position{
			Kind:         slot.Kind,
			ImageID:      slot.Image.ID,
			DisplayOrder: i,
			IsPrimary:    i == 0,
		}
	}
	return out
}

// Commit derives the writes for the current sequence.
func (s State) Commit() Commit {
	c := Commit{Delete: s.Deleted()}
	for i, slot := range s.slots {
		switch slot.Kind {
		case KindNew:
			c.Uploads = append(c.Uploads, slot.Upload)
			c.Placements = append(c.Placements, Placement{
				Upload:       slot.Upload,
				DisplayOrder: i,
				IsPrimary:    i == 0,
			})
		case KindExisting:
			c.Reorder = append(c.Reorder, Position{
				Kind:         KindExisting,
				ImageID:      slot.Image.ID,
				DisplayOrder: i,
				IsPrimary:    i == 0,
			})
		}
	}
	return c
}

func (s State) clone(extra int) State {
	slots := make([]Slot, len(s.slots), len(s.slots)+extra)
	copy(slots, s.slots)
	deleted := make([]int64, len(s.deleted), len(s.deleted)+1)
	copy(deleted, s.deleted)
	return State{slots: slots, deleted: deleted}
}

func (s State) inRange(i int) bool {
	return i >= 0 && i < len(s.slots)
}

func (s State) indexOfExisting(id int64) int {
	for i, slot := range s.slots {
		if slot.Kind == KindExisting && slot.Image.ID == id {
			return i
		}
	}
	return -1
}
