// Package wtarget defines the independently compiled units of the application
// and the per-session record of whether each has ever built successfully.
package wtarget

import (
	"fmt"
	"strings"
	"sync"
)

// ID identifies a compiled unit.
type ID int

const (
	Main     ID = iota // privileged back-end process
	Renderer           // UI / front-end
	Preload            // optional bridge script
)

// All lists every known unit in build order.
var All = []ID{Main, Renderer, Preload} //nolint:gochecknoglobals // fixed lookup table

func (id ID) String() string {
	switch id {
	case Main:
		return "main"
	case Renderer:
		return "renderer"
	case Preload:
		return "preload"
	default:
		return fmt.Sprintf("ID(%d)", int(id))
	}
}

// Parse returns the ID whose String() matches name, case-insensitively.
func Parse(name string) (ID, error) {
	for _, id := range All {
		if strings.EqualFold(id.String(), name) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown watch target %q", name)
}

// Target is one configured unit. EverCompiledSuccessfully only ever moves
// from false to true.
type Target struct {
	ID ID

	mu                       sync.Mutex
	everCompiledSuccessfully bool
}

// New returns a target that has not yet compiled.
func New(id ID) *Target {
	return &Target{ID: id}
}

// MarkCompiled records a successful compile. It reports whether this was the
// first one.
func (t *Target) MarkCompiled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	first := !t.everCompiledSuccessfully
	t.everCompiledSuccessfully = true
	return first
}

// EverCompiledSuccessfully reports whether the target has compiled at least once.
func (t *Target) EverCompiledSuccessfully() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.everCompiledSuccessfully
}
