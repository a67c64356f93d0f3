// Package readiness tracks whether every required unit has built at least once.
package readiness

import (
	"github.com/samber/lo"
	"github.com/yaklabco/kiln/pkg/watch/wtarget"
)

// Gate is a predicate over the configured targets. Readiness is recomputed on
// every query; nothing but the per-target flags is stored.
type Gate struct {
	targets map[wtarget.ID]*wtarget.Target
	order   []wtarget.ID
}

// New returns a gate requiring every one of ids. Duplicates are ignored. A
// gate with no targets is always ready.
func New(ids ...wtarget.ID) *Gate {
	order := lo.Uniq(ids)
	targets := make(map[wtarget.ID]*wtarget.Target, len(order))
	for _, id := range order {
		targets[id] = wtarget.New(id)
	}

	return &Gate{targets: targets, order: order}
}

// Requires reports whether id is part of the required set.
func (g *Gate) Requires(id wtarget.ID) bool {
	_, ok := g.targets[id]
	return ok
}

// MarkReady records a successful compile for id. It is idempotent and
// permanent. It reports false if id is not part of the required set.
func (g *Gate) MarkReady(id wtarget.ID) bool {
	target, ok := g.targets[id]
	if !ok {
		return false
	}
	target.MarkCompiled()
	return true
}

// IsReady reports whether every required target has compiled at least once.
func (g *Gate) IsReady() bool {
	return lo.EveryBy(g.order, func(id wtarget.ID) bool {
		return g.targets[id].EverCompiledSuccessfully()
	})
}

// Ready returns the required targets that have compiled, in configured order.
func (g *Gate) Ready() []wtarget.ID {
	return lo.Filter(g.order, func(id wtarget.ID, _ int) bool {
		return g.targets[id].EverCompiledSuccessfully()
	})
}

// Pending returns the required targets that have not yet compiled, in
// configured order.
func (g *Gate) Pending() []wtarget.ID {
	return lo.Reject(g.order, func(id wtarget.ID, _ int) bool {
		return g.targets[id].EverCompiledSuccessfully()
	})
}
