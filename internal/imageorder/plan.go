package imageorder

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	ErrTooManyImages = errors.New("too_many_images")
	ErrUnknownImage  = errors.New("unknown_image")
	ErrInvalidPlan   = errors.New("invalid_image_order")
)

// PlanEntry is one element of the final order posted by the editor. An
// existing entry names a persisted image id; a new entry names the position
// of the file among the uploaded files.
type PlanEntry struct {
	Kind  Kind   `json:"kind"`
	ID    string `json:"id,omitempty"`
	Index int    `json:"index,omitempty"`
}

// UnmarshalJSON accepts the id either as a JSON number or as a string.
// Numbers keep their literal text so large ids are not rounded.
func (e *PlanEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  Kind            `json:"kind"`
		ID    json.RawMessage `json:"id"`
		Index int             `json:"index"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id := strings.TrimSpace(string(raw.ID))
	switch {
	case id == "" || id == "null":
		id = ""
	case strings.HasPrefix(id, `"`):
		var str string
		if err := json.Unmarshal(raw.ID, &str); err != nil {
			return err
		}
		id = str
	default:
		var num json.Number
		if err := json.Unmarshal(raw.ID, &num); err != nil {
			return ErrInvalidPlan
		}
		id = num.String()
	}
	*e = PlanEntry{Kind: raw.Kind, ID: id, Index: raw.Index}
	return nil
}

// Replay rebuilds an editing session on the server: it starts from the
// persisted images, applies the queued deletions, appends the uploads and
// swaps slots until the sequence matches plan. An empty plan keeps existing
// images first and uploads after them in the order received.
func Replay(existing []Image, deleted []int64, uploads []Upload, plan []PlanEntry) (State, error) {
	state := Initialize(existing)
	for _, id := range deleted {
		if state.indexOfExisting(id) < 0 {
			return State{}, ErrUnknownImage
		}
		state = state.RemoveExisting(id)
	}

	if state.Len()+len(uploads) > MaxSlots {
		return State{}, ErrTooManyImages
	}
	state = state.AppendNew(uploads...)

	if len(plan) == 0 {
		return state, nil
	}
	if len(plan) != state.Len() {
		return State{}, ErrInvalidPlan
	}

	// Map each plan entry to the slot it names, rejecting duplicates.
	uploadSlot := make([]int, len(uploads))
	for i := range uploads {
		uploadSlot[i] = state.Len() - len(uploads) + i
	}
	seen := make(map[int]struct{}, len(plan))
	targets := make([]int, len(plan))
	for i, entry := range plan {
		idx, err := state.resolve(entry, uploadSlot)
		if err != nil {
			return State{}, err
		}
		if _, dup := seen[idx]; dup {
			return State{}, ErrInvalidPlan
		}
		seen[idx] = struct{}{}
		targets[i] = idx
	}

	// Walk positions left to right, swapping the wanted slot into place and
	// tracking where displaced slots went.
	where := make([]int, state.Len())
	at := make([]int, state.Len())
	for i := range where {
		where[i] = i
		at[i] = i
	}
	for pos, original := range targets {
		cur := where[original]
		if cur == pos {
			continue
		}
		state = state.Move(cur, pos)
		displaced := at[pos]
		where[displaced], where[original] = cur, pos
		at[cur], at[pos] = displaced, original
	}
	return state, nil
}

func (s State) resolve(entry PlanEntry, uploadSlot []int) (int, error) {
	switch entry.Kind {
	case KindExisting:
		id, err := strconv.ParseInt(strings.TrimSpace(entry.ID), 10, 64)
		if err != nil {
			return 0, ErrInvalidPlan
		}
		idx := s.indexOfExisting(id)
		if idx < 0 {
			return 0, ErrUnknownImage
		}
		return idx, nil
	case KindNew:
		if entry.Index < 0 || entry.Index >= len(uploadSlot) {
			return 0, ErrInvalidPlan
		}
		return uploadSlot[entry.Index], nil
	default:
		return 0, ErrInvalidPlan
	}
}
