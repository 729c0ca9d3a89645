// Package workflow holds the confirmation gate shared by admin status changes.
package workflow

import "errors"

var (
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrStatusUnchanged = errors.New("status_unchanged")
)

// Gate validates a requested status and decides whether it may be applied.
// Any known status may follow any other; the only guard is the explicit
// admin confirmation.
type Gate struct {
	prompts  map[string]string
	fallback string
}

// Decision is the outcome of a status request. When Apply is false the
// caller must not write anything and should show Prompt.
type Decision struct {
	Apply  bool   `json:"apply"`
	From   string `json:"from"`
	To     string `json:"to"`
	Prompt string `json:"prompt"`
}

// NewGate builds a gate over the given statuses, each mapped to the
// question asked before switching to it.
func NewGate(prompts map[string]string, fallback string) Gate {
	copied := make(map[string]string, len(prompts))
	for k, v := range prompts {
		copied[k] = v
	}
	return Gate{prompts: copied, fallback: fallback}
}

// Valid reports whether status is known to the gate.
func (g Gate) Valid(status string) bool {
	_, ok := g.prompts[status]
	return ok
}

// Prompt returns the confirmation question for a target status.
func (g Gate) Prompt(target string) string {
	if p, ok := g.prompts[target]; ok && p != "" {
		return p
	}
	return g.fallback
}

// Decide checks the target and returns whether to apply it now.
func (g Gate) Decide(current, target string, confirmed bool) (Decision, error) {
	if !g.Valid(target) {
		return Decision{}, ErrInvalidStatus
	}
	if current == target {
		return Decision{}, ErrStatusUnchanged
	}
	return Decision{
		Apply:  confirmed,
		From:   current,
		To:     target,
		Prompt: g.Prompt(target),
	}, nil
}
