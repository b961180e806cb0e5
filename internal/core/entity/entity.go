package entity

import (
	"fmt"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/world"
)

// ID is the slot index of a record in the store. Null is the list terminator
// and the "no entity" value.
type ID uint16

const Null ID = 0xFFFF

func (id ID) IsNull() bool { return id == Null }

// Category selects the intrusive list a live record is threaded on.
type Category uint8

const (
	CategoryNone Category = iota // free slot
	CategoryVehicle
	CategoryMisc
	CategoryMoney
	categoryCount
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryVehicle:
		return "vehicle"
	case CategoryMisc:
		return "misc"
	case CategoryMoney:
		return "money"
	default:
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
}

// BaseKind is the record discriminator. Money popups are misc records kept on
// their own list.
type BaseKind uint8

const (
	BaseNone BaseKind = iota
	BaseVehicle
	BaseMisc
)

func (c Category) base() BaseKind {
	switch c {
	case CategoryVehicle:
		return BaseVehicle
	case CategoryMisc, CategoryMoney:
		return BaseMisc
	default:
		return BaseNone
	}
}

// Misc subtypes.
const (
	MiscExhaust uint8 = iota
	MiscSmoke
	MiscExplosion
	MiscSplash
	MiscFireball
	MiscMoneyPopup
)

// SpriteBounds is rendering metadata; the core stores it but never reads it.
type SpriteBounds struct {
	Width     uint8
	HeightNeg uint8
	HeightPos uint8
	Left      int16
	Top       int16
	Right     int16
	Bottom    int16
}

// Record is one fixed-layout entity slot.
type Record struct {
	ID       ID
	Category Category
	Base     BaseKind
	Subtype  uint8

	nextInCategory ID
	nextInCell     ID
	cell           uint32
	pos            world.Pos3

	Sprite   SpriteBounds
	Owner    company.ID
	Amount   finance.Money // money popup value, vehicle purchase price
	Lifetime uint16        // ticks left for effects
	Age      uint32        // ticks since creation
	Speed    int16         // map units per tick for vehicles
	Heading  uint8         // 0=+x 1=+y 2=-x 3=-y
}

// Position returns the record's map position. Use Store.MoveTo to change it.
func (r *Record) Position() world.Pos3 { return r.pos }

// Live reports whether the record is allocated.
func (r *Record) Live() bool { return r.Category != CategoryNone }

// NextInCategory returns the next id on the record's category list.
func (r *Record) NextInCategory() ID { return r.nextInCategory }

// NextInCell returns the next id on the record's spatial cell list.
func (r *Record) NextInCell() ID { return r.nextInCell }
