package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain peer and local command queues
	PhasePreUpdate               // 1: deliver last tick's events
	PhaseUpdate                  // 2: vehicles, effects
	PhasePostUpdate              // 3: derived state
	PhasePersist                 // 4: ledger flush
	PhaseCleanup                 // 5: recycle freed entity slots
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
