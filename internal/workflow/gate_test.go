package workflow_test

import (
	"testing"

	"github.com/smallbiznis/atelier/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderGate() workflow.Gate {
	return workflow.NewGate(map[string]string{
		"pending":   "Mettre en attente ?",
		"confirmed": "Confirmer la commande ?",
		"shipped":   "",
	}, "Modifier le statut ?")
}

func TestDecideRequiresConfirmation(t *testing.T) {
	g := orderGate()

	d, err := g.Decide("pending", "confirmed", false)
	require.NoError(t, err)
	assert.False(t, d.Apply)
	assert.Equal(t, "Confirmer la commande ?", d.Prompt)

	d, err = g.Decide("pending", "confirmed", true)
	require.NoError(t, err)
	assert.True(t, d.Apply)
	assert.Equal(t, "pending", d.From)
	assert.Equal(t, "confirmed", d.To)
}

func TestDecideAllowsBackwardMoves(t *testing.T) {
	d, err := orderGate().Decide("shipped", "pending", true)
	require.NoError(t, err)
	assert.True(t, d.Apply)
}

func TestDecideRejects(t *testing.T) {
	g := orderGate()
	_, err := g.Decide("pending", "cancelled", true)
	assert.ErrorIs(t, err, workflow.ErrInvalidStatus)

	_, err = g.Decide("pending", "pending", true)
	assert.ErrorIs(t, err, workflow.ErrStatusUnchanged)
}

func TestPromptFallback(t *testing.T) {
	g := orderGate()
	assert.Equal(t, "Modifier le statut ?", g.Prompt("shipped"))
	assert.Equal(t, "Modifier le statut ?", g.Prompt("unknown"))
}
