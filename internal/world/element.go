package world

import (
	"fmt"

	"github.com/locogo/server/internal/company"
)

// ElementKind is the kind of a map element that can be owned.
type ElementKind uint8

const (
	ElementNone ElementKind = iota
	ElementTrack
	ElementRoad
	ElementStation
	ElementSignal
)

func (k ElementKind) String() string {
	switch k {
	case ElementNone:
		return "none"
	case ElementTrack:
		return "track"
	case ElementRoad:
		return "road"
	case ElementStation:
		return "station"
	case ElementSignal:
		return "signal"
	default:
		return fmt.Sprintf("ElementKind(%d)", uint8(k))
	}
}

// Element is one owned object placed on a tile.
type Element struct {
	Kind    ElementKind
	Owner   company.ID
	Z       int16
	Subtype uint8  // track piece / road piece / signal type
	Name    string // station name, empty for other kinds
}

// ElementRef points at a map element for error reporting.
type ElementRef struct {
	Kind    ElementKind
	Tile    Tile
	Z       int16
	Subtype uint8
	Name    string
}

// TileMap holds owned elements keyed by tile. One element per tile and kind.
// Accessed only from the game loop goroutine; no locks.
type TileMap struct {
	tiles map[Tile][]Element
}

func NewTileMap() *TileMap {
	return &TileMap{tiles: make(map[Tile][]Element)}
}

// Elements returns the elements on a tile. The slice must not be modified.
func (m *TileMap) Elements(t Tile) []Element {
	return m.tiles[t]
}

// Find returns the element of the given kind on a tile.
func (m *TileMap) Find(t Tile, kind ElementKind) (Element, bool) {
	for _, e := range m.tiles[t] {
		if e.Kind == kind {
			return e, true
		}
	}
	return Element{}, false
}

// Place stores an element, replacing an existing element of the same kind.
func (m *TileMap) Place(t Tile, e Element) {
	els := m.tiles[t]
	for i := range els {
		if els[i].Kind == e.Kind {
			els[i] = e
			return
		}
	}
	m.tiles[t] = append(els, e)
}

// Remove deletes the element of the given kind and reports whether it existed.
func (m *TileMap) Remove(t Tile, kind ElementKind) bool {
	els := m.tiles[t]
	for i := range els {
		if els[i].Kind == kind {
			els = append(els[:i], els[i+1:]...)
			if len(els) == 0 {
				delete(m.tiles, t)
			} else {
				m.tiles[t] = els
			}
			return true
		}
	}
	return false
}

// Ref builds an error-reporting reference to an element.
func Ref(t Tile, e Element) ElementRef {
	return ElementRef{Kind: e.Kind, Tile: t, Z: e.Z, Subtype: e.Subtype, Name: e.Name}
}
