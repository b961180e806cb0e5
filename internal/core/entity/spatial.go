package entity

import (
	"fmt"

	"github.com/locogo/server/internal/world"
)

// noCell marks a free record that is on no spatial list.
const noCell = ^uint32(0)

// spatialIndex maps coarse quadrants to the head of an intrusive list
// threaded through Record.nextInCell. The last cell is reserved for null and
// out-of-bounds positions. Cell size is shared with renderers via CellIndex.
type spatialIndex struct {
	quadrant int32
	perAxis  int32
	heads    []ID
}

func newSpatialIndex(quadrant, mapTiles int) (spatialIndex, error) {
	if quadrant <= 0 || mapTiles <= 0 {
		return spatialIndex{}, fmt.Errorf("spatial grid %d/%d invalid", quadrant, mapTiles)
	}
	// A tile must never straddle two cells, or per-tile lookups through Near
	// would miss entities in the neighbouring cell.
	if quadrant%world.TileSize != 0 {
		return spatialIndex{}, fmt.Errorf("quadrant size %d is not a multiple of tile size %d", quadrant, world.TileSize)
	}
	if mapTiles > world.MaxMapTiles {
		return spatialIndex{}, fmt.Errorf("map of %d tiles exceeds %d", mapTiles, world.MaxMapTiles)
	}
	extent := mapTiles * world.TileSize
	perAxis := (extent + quadrant - 1) / quadrant
	heads := make([]ID, perAxis*perAxis+1)
	for i := range heads {
		heads[i] = Null
	}
	return spatialIndex{quadrant: int32(quadrant), perAxis: int32(perAxis), heads: heads}, nil
}

func (g *spatialIndex) nullCell() uint32 { return uint32(len(g.heads) - 1) }

// cellIndex is the deterministic quadrant hash: row-major quadrant index,
// with the reserved cell for anything not on the map.
func (g *spatialIndex) cellIndex(p world.Pos3) uint32 {
	if p.IsNull() || p.X < 0 || p.Y < 0 {
		return g.nullCell()
	}
	qx := int32(p.X) / g.quadrant
	qy := int32(p.Y) / g.quadrant
	if qx >= g.perAxis || qy >= g.perAxis {
		return g.nullCell()
	}
	return uint32(qy*g.perAxis + qx)
}
