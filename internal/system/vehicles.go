package system

import (
	"time"

	"github.com/locogo/server/internal/core/entity"
	coresys "github.com/locogo/server/internal/core/system"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
)

// VehicleSystem ages every vehicle and moves placed ones along their heading.
// A vehicle turns around when the tile ahead carries no track or station.
// Phase 2 (Update).
type VehicleSystem struct {
	store *entity.Store
	tiles *world.TileMap
	log   *zap.Logger
}

func NewVehicleSystem(store *entity.Store, tiles *world.TileMap, log *zap.Logger) *VehicleSystem {
	return &VehicleSystem{store: store, tiles: tiles, log: log}
}

func (s *VehicleSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

var headingStep = [4][2]int16{{1, 0}, {0, 1}, {-1, 0}, {0, -1}}

func (s *VehicleSystem) Update(_ time.Duration) {
	for v := range s.store.All(entity.CategoryVehicle) {
		v.Age++
		pos := v.Position()
		if pos.IsNull() || v.Speed <= 0 {
			continue
		}
		step := headingStep[v.Heading&3]
		next := world.Pos3{X: pos.X + step[0]*v.Speed, Y: pos.Y + step[1]*v.Speed, Z: pos.Z}
		if !s.passable(next.Tile()) {
			v.Heading = (v.Heading + 2) & 3
			continue
		}
		if err := s.store.MoveTo(v.ID, next); err != nil {
			s.log.Warn("車輛移動失敗", zap.Uint16("vehicle", uint16(v.ID)), zap.Error(err))
		}
	}
}

func (s *VehicleSystem) passable(t world.Tile) bool {
	if _, ok := s.tiles.Find(t, world.ElementTrack); ok {
		return true
	}
	_, ok := s.tiles.Find(t, world.ElementStation)
	return ok
}
