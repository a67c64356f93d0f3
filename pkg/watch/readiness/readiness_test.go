package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yaklabco/kiln/pkg/watch/wtarget"
)

func TestGateBecomesReadyOnlyWhenComplete(t *testing.T) {
	orders := [][]wtarget.ID{
		{wtarget.Main, wtarget.Renderer, wtarget.Preload},
		{wtarget.Preload, wtarget.Main, wtarget.Renderer},
		{wtarget.Renderer, wtarget.Preload, wtarget.Main},
	}

	for _, order := range orders {
		gate := New(wtarget.Main, wtarget.Renderer, wtarget.Preload)
		for i, id := range order {
			assert.False(t, gate.IsReady(), "ready before %v", id)
			gate.MarkReady(id)
			assert.Equal(t, i == len(order)-1, gate.IsReady())
		}
	}
}

func TestGateWithoutPreload(t *testing.T) {
	gate := New(wtarget.Main, wtarget.Renderer)

	assert.False(t, gate.Requires(wtarget.Preload))
	assert.False(t, gate.MarkReady(wtarget.Preload))
	assert.False(t, gate.IsReady())

	gate.MarkReady(wtarget.Renderer)
	assert.Equal(t, []wtarget.ID{wtarget.Main}, gate.Pending())
	gate.MarkReady(wtarget.Main)

	assert.True(t, gate.IsReady())
	assert.Empty(t, gate.Pending())
	assert.Equal(t, []wtarget.ID{wtarget.Main, wtarget.Renderer}, gate.Ready())
}

func TestGateMarkReadyIsIdempotent(t *testing.T) {
	gate := New(wtarget.Main, wtarget.Main)
	assert.True(t, gate.MarkReady(wtarget.Main))
	assert.True(t, gate.MarkReady(wtarget.Main))
	assert.True(t, gate.IsReady())
	assert.Len(t, gate.Ready(), 1)
}

func TestEmptyGateIsReady(t *testing.T) {
	assert.True(t, New().IsReady())
}
