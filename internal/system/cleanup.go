package system

import (
	"time"

	"github.com/locogo/server/internal/core/entity"
	coresys "github.com/locogo/server/internal/core/system"
)

// CleanupSystem returns the slots freed this tick to their free lists.
// Phase 5 (Cleanup).
type CleanupSystem struct {
	store *entity.Store
}

func NewCleanupSystem(store *entity.Store) *CleanupSystem {
	return &CleanupSystem{store: store}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.store.Recycle()
}
