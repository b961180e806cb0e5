package system

import (
	"slices"
	"time"
)

// Runner executes systems in phase order each tick. Systems sharing a phase
// keep their registration order.
type Runner struct {
	systems []System
	sorted  bool
	tick    uint64
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Tick returns the number of the tick currently running (or last run).
func (r *Runner) Tick() uint64 { return r.tick }

// Step advances the tick counter and runs every system once.
func (r *Runner) Step(dt time.Duration) {
	r.ensureSorted()
	r.tick++
	for _, s := range r.systems {
		s.Update(dt)
	}
}

// StepPhase runs only the systems of one phase without advancing the tick.
// Used on shutdown to flush the persist phase a last time.
func (r *Runner) StepPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		slices.SortStableFunc(r.systems, func(a, b System) int {
			return int(a.Phase()) - int(b.Phase())
		})
		r.sorted = true
	}
}
