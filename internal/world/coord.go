package world

import "math"

// TileSize is the number of map units per tile edge.
const TileSize = 32

// MaxMapTiles is the largest map edge whose unit coordinates fit an int16.
const MaxMapTiles = math.MaxInt16 / TileSize

// NullCoord marks an unplaced position (vehicle in depot, picked up, ...).
const NullCoord int16 = math.MinInt16

// Pos3 is a map position in map units.
type Pos3 struct {
	X, Y, Z int16
}

// NullPos is the position of an entity that is not on the map.
var NullPos = Pos3{X: NullCoord, Y: NullCoord, Z: 0}

func (p Pos3) IsNull() bool { return p.X == NullCoord }

// Tile returns the tile coordinates containing p.
func (p Pos3) Tile() Tile {
	return Tile{X: int16(floorDiv(int32(p.X), TileSize)), Y: int16(floorDiv(int32(p.Y), TileSize))}
}

// Tile is a tile coordinate.
type Tile struct {
	X, Y int16
}

// Pos returns the map position of the tile's north corner at height z.
func (t Tile) Pos(z int16) Pos3 {
	return Pos3{X: t.X * TileSize, Y: t.Y * TileSize, Z: z}
}

func floorDiv(v, d int32) int32 {
	if v < 0 {
		return (v - d + 1) / d
	}
	return v / d
}
