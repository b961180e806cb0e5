package system

import (
	"time"

	"github.com/locogo/server/internal/core/entity"
	coresys "github.com/locogo/server/internal/core/system"
	"go.uber.org/zap"
)

// EffectSystem counts down short-lived effects and frees them when they
// expire. Money popups float upwards while they live. Phase 2 (Update).
type EffectSystem struct {
	store *entity.Store
	log   *zap.Logger
}

func NewEffectSystem(store *entity.Store, log *zap.Logger) *EffectSystem {
	return &EffectSystem{store: store, log: log}
}

func (s *EffectSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *EffectSystem) Update(_ time.Duration) {
	s.decay(entity.CategoryMoney)
	s.decay(entity.CategoryMisc)
}

func (s *EffectSystem) decay(cat entity.Category) {
	for r := range s.store.All(cat) {
		if r.Lifetime <= 1 {
			if err := s.store.Free(r.ID); err != nil {
				s.log.Warn("特效釋放失敗", zap.Uint16("id", uint16(r.ID)), zap.Error(err))
			}
			continue
		}
		r.Lifetime--
		if r.Subtype == entity.MiscMoneyPopup && r.Lifetime&1 == 0 {
			pos := r.Position()
			pos.Z++
			_ = s.store.MoveTo(r.ID, pos)
		}
	}
}
