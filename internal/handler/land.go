package handler

import (
	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/core/entity"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
)

// TileArgs addresses one tile.
type TileArgs struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
}

// ClearLand empties a tile. Track is removed through nested track_remove
// commands so its refund and ownership rules apply; signals, roads and
// stations are removed directly after an ownership check. A vehicle standing
// on the tile blocks clearing.
func ClearLand(tx *command.Transaction, a TileArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	tile := world.Tile{X: a.X, Y: a.Y}
	if err := onMap(tile, deps); err != nil {
		return 0, err
	}
	tx.SetExpenditure(finance.ExpConstruction)

	for r := range deps.Entities.Near(tile.Pos(0)) {
		if r.Category == entity.CategoryVehicle && r.Position().Tile() == tile {
			return 0, command.Fail(messages.ErrInvalidTarget)
		}
	}

	total := deps.Prices.ClearTile
	var direct []world.ElementKind
	// Copy: nested removals modify the tile's element slice.
	elements := append([]world.Element(nil), deps.World.Tiles.Elements(tile)...)
	for _, e := range elements {
		if e.Kind == world.ElementTrack {
			cost, err := tx.Execute(command.Invocation{
				Kind:  command.KindTrackRemove,
				Flags: flags,
				Args:  TrackArgs{X: a.X, Y: a.Y, Z: e.Z, Piece: e.Subtype},
			})
			if err != nil {
				return 0, err
			}
			total += cost
			continue
		}
		ref := world.Ref(tile, e)
		if err := command.CheckOwnership(tx.Company(), e.Owner, &ref); err != nil {
			return 0, err
		}
		total += deps.Prices.ClearTile
		direct = append(direct, e.Kind)
	}

	tx.SetPosition(centre(tile, 0))
	if flags.Has(command.FlagApply) {
		for _, k := range direct {
			deps.World.Tiles.Remove(tile, k)
		}
	}
	return total, nil
}
