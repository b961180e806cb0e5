package handler

import (
	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
)

// TrackArgs addresses one track piece.
type TrackArgs struct {
	X     int16 `json:"x"` // tile
	Y     int16 `json:"y"`
	Z     int16 `json:"z"`
	Piece uint8 `json:"piece"`
}

func (a TrackArgs) tile() world.Tile { return world.Tile{X: a.X, Y: a.Y} }

// onMap rejects tiles outside the map before any unit arithmetic on them.
func onMap(t world.Tile, deps *Deps) error {
	if !deps.Entities.InMap(t) {
		return command.Fail(messages.ErrInvalidTarget)
	}
	return nil
}

// centre is the popup anchor for a tile.
func centre(t world.Tile, z int16) world.Pos3 {
	p := t.Pos(z)
	p.X += world.TileSize / 2
	p.Y += world.TileSize / 2
	return p
}

// TrackPlace builds a track piece. Another company's track, road or station
// on the tile is an ownership conflict naming that element.
func TrackPlace(tx *command.Transaction, a TrackArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	tile := a.tile()
	if err := onMap(tile, deps); err != nil {
		return 0, err
	}
	tx.SetExpenditure(finance.ExpConstruction)
	tx.SetPosition(centre(tile, a.Z))

	for _, e := range deps.World.Tiles.Elements(tile) {
		if e.Kind == world.ElementSignal {
			continue
		}
		ref := world.Ref(tile, e)
		if err := command.CheckOwnership(tx.Company(), e.Owner, &ref); err != nil {
			return 0, err
		}
	}
	if existing, ok := deps.World.Tiles.Find(tile, world.ElementTrack); ok && existing.Subtype == a.Piece {
		return 0, command.Fail(messages.ErrAlreadyBuiltHere)
	}

	if flags.Has(command.FlagApply) {
		deps.World.Tiles.Place(tile, world.Element{
			Kind:    world.ElementTrack,
			Owner:   tx.Company(),
			Z:       a.Z,
			Subtype: a.Piece,
		})
	}
	return deps.Prices.TrackPiece, nil
}

// TrackRemove removes a track piece, refunding part of its cost.
func TrackRemove(tx *command.Transaction, a TrackArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	tile := a.tile()
	if err := onMap(tile, deps); err != nil {
		return 0, err
	}
	tx.SetExpenditure(finance.ExpConstruction)
	tx.SetPosition(centre(tile, a.Z))

	track, ok := deps.World.Tiles.Find(tile, world.ElementTrack)
	if !ok {
		return 0, command.Fail(messages.ErrNothingHere)
	}
	ref := world.Ref(tile, track)
	if err := command.CheckOwnership(tx.Company(), track.Owner, &ref); err != nil {
		return 0, err
	}
	if flags.Has(command.FlagApply) {
		deps.World.Tiles.Remove(tile, world.ElementTrack)
	}
	return deps.Prices.TrackRemove, nil
}
