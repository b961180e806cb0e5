package entity

import (
	"errors"
	"fmt"
	"iter"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
)

var (
	ErrPoolExhausted = errors.New("entity pool exhausted")
	ErrNotLive       = errors.New("entity not live")
	ErrBadCategory   = errors.New("invalid entity category")
)

// Options fixes the pool geometry at startup. Capacity and reserves are part
// of the save format and must not change between runs of the same world.
type Options struct {
	Capacity     int  // total slots
	MoneyReserve int  // slots set aside for money popups, taken from the top of the array
	GeneralFloor int  // vehicle/misc creation fails once general free slots would drop to this
	MaxMisc      int  // cap on live misc effects
	QuadrantSize int  // spatial cell edge in map units
	MapTiles     int  // map edge in tiles
	Immediate    bool // return freed slots to the free list at once instead of at tick end
}

// freeList is an intrusive stack threaded through nextInCategory of free slots.
type freeList struct {
	head  ID
	count int
}

// Store is the pooled entity arena. Records never move; ids are slot indices.
// Accessed only from the game loop goroutine; no locks.
type Store struct {
	records []Record

	heads  [categoryCount]ID
	counts [categoryCount]int

	general    freeList
	money      freeList
	quarantine freeList
	moneyStart ID // ids >= moneyStart belong to the money reserve

	floor    int
	maxMisc  int
	mapTiles int
	spatial  spatialIndex

	immediate bool
	log       *zap.Logger
}

// New allocates the whole pool. No further heap allocation happens in
// Create, Free, MoveTo or iteration.
func New(opts Options, log *zap.Logger) (*Store, error) {
	if opts.Capacity <= 0 || opts.Capacity >= int(Null) {
		return nil, fmt.Errorf("entity capacity %d out of range", opts.Capacity)
	}
	if opts.MoneyReserve < 0 || opts.MoneyReserve >= opts.Capacity {
		return nil, fmt.Errorf("money reserve %d out of range", opts.MoneyReserve)
	}
	if opts.GeneralFloor < 0 || opts.GeneralFloor >= opts.Capacity-opts.MoneyReserve {
		return nil, fmt.Errorf("general floor %d out of range", opts.GeneralFloor)
	}
	sp, err := newSpatialIndex(opts.QuadrantSize, opts.MapTiles)
	if err != nil {
		return nil, err
	}
	maxMisc := opts.MaxMisc
	if maxMisc <= 0 {
		maxMisc = opts.Capacity
	}

	s := &Store{
		records:    make([]Record, opts.Capacity),
		moneyStart: ID(opts.Capacity - opts.MoneyReserve),
		floor:      opts.GeneralFloor,
		maxMisc:    maxMisc,
		mapTiles:   opts.MapTiles,
		spatial:    sp,
		immediate:  opts.Immediate,
		log:        log,
	}
	for i := range s.heads {
		s.heads[i] = Null
	}
	s.general.head, s.money.head, s.quarantine.head = Null, Null, Null
	// Push in reverse so the lowest ids are handed out first.
	for i := opts.Capacity - 1; i >= 0; i-- {
		id := ID(i)
		s.records[i] = Record{ID: id, nextInCell: Null, cell: noCell}
		s.push(s.homeList(id), id)
	}
	return s, nil
}

func (s *Store) homeList(id ID) *freeList {
	if id >= s.moneyStart {
		return &s.money
	}
	return &s.general
}

func (s *Store) push(l *freeList, id ID) {
	s.records[id].nextInCategory = l.head
	l.head = id
	l.count++
}

func (s *Store) pop(l *freeList) ID {
	id := l.head
	l.head = s.records[id].nextInCategory
	l.count--
	return id
}

// Create allocates a record on the given category list. The record starts
// unplaced (null position, linked on the reserved spatial cell).
func (s *Store) Create(cat Category) (*Record, error) {
	var id ID
	switch cat {
	case CategoryMoney:
		switch {
		case s.money.count > 0:
			id = s.pop(&s.money)
		case s.general.count > 0:
			id = s.pop(&s.general)
		default:
			return nil, ErrPoolExhausted
		}
	case CategoryVehicle, CategoryMisc:
		if cat == CategoryMisc && s.counts[CategoryMisc] >= s.maxMisc {
			return nil, ErrPoolExhausted
		}
		if s.general.count <= s.floor {
			return nil, ErrPoolExhausted
		}
		id = s.pop(&s.general)
	default:
		return nil, fmt.Errorf("create %s: %w", cat, ErrBadCategory)
	}

	r := &s.records[id]
	*r = Record{
		ID:             id,
		Category:       cat,
		Base:           cat.base(),
		nextInCategory: s.heads[cat],
		nextInCell:     Null,
		cell:           noCell,
		pos:            world.NullPos,
		Owner:          company.Null,
	}
	s.heads[cat] = id
	s.counts[cat]++
	s.link(r, s.spatial.nullCell())
	return r, nil
}

// CanCreate reports whether Create(cat) would succeed now. Query passes use
// it so they can fail without allocating.
func (s *Store) CanCreate(cat Category) bool {
	switch cat {
	case CategoryMoney:
		return s.money.count > 0 || s.general.count > 0
	case CategoryMisc:
		return s.counts[CategoryMisc] < s.maxMisc && s.general.count > s.floor
	case CategoryVehicle:
		return s.general.count > s.floor
	default:
		return false
	}
}

// Free unlinks a live record from its category and cell lists and releases
// its slot. Freeing a slot that is not live is reported, not fatal.
func (s *Store) Free(id ID) error {
	r := s.Get(id)
	if r == nil || !r.Live() {
		s.log.Warn("釋放非存活實體", zap.Uint16("id", uint16(id)))
		return fmt.Errorf("free %d: %w", id, ErrNotLive)
	}
	s.unlink(r)
	cat := r.Category
	s.unlinkCategory(cat, id)
	s.counts[cat]--

	*r = Record{ID: id, nextInCell: Null, cell: noCell}
	if s.immediate {
		s.push(s.homeList(id), id)
	} else {
		s.push(&s.quarantine, id)
	}
	return nil
}

// Recycle returns quarantined slots to their free lists. Called once per tick
// after all systems ran, so an id freed this tick cannot alias a new entity
// until the next tick.
func (s *Store) Recycle() int {
	n := 0
	for s.quarantine.count > 0 {
		id := s.pop(&s.quarantine)
		s.push(s.homeList(id), id)
		n++
	}
	return n
}

func (s *Store) unlinkCategory(cat Category, id ID) {
	next := s.records[id].nextInCategory
	if s.heads[cat] == id {
		s.heads[cat] = next
		return
	}
	for cur := s.heads[cat]; cur != Null; cur = s.records[cur].nextInCategory {
		if s.records[cur].nextInCategory == id {
			s.records[cur].nextInCategory = next
			return
		}
	}
}

// Get returns the record for id, or nil when id is out of range or Null.
// Free slots are returned too; check Live.
func (s *Store) Get(id ID) *Record {
	if int(id) >= len(s.records) {
		return nil
	}
	return &s.records[id]
}

// Live returns the record only when it is allocated.
func (s *Store) Live(id ID) *Record {
	r := s.Get(id)
	if r == nil || !r.Live() {
		return nil
	}
	return r
}

// FirstOf returns the head of a category list.
func (s *Store) FirstOf(cat Category) ID {
	if cat >= categoryCount {
		return Null
	}
	return s.heads[cat]
}

// Next returns the id after id on its category list, Null at the end or when
// id is not live.
func (s *Store) Next(id ID) ID {
	r := s.Live(id)
	if r == nil {
		return Null
	}
	return r.nextInCategory
}

// Count returns the number of live records in a category.
func (s *Store) Count(cat Category) int {
	if cat >= categoryCount {
		return 0
	}
	return s.counts[cat]
}

// FreeCount returns slots available to general (vehicle/misc) allocation.
func (s *Store) FreeCount() int { return s.general.count }

// MoneyReserveFree returns reserved money popup slots still free.
func (s *Store) MoneyReserveFree() int { return s.money.count }

// Quarantined returns slots freed this tick and not yet recycled.
func (s *Store) Quarantined() int { return s.quarantine.count }

func (s *Store) Capacity() int { return len(s.records) }

// All iterates a category list. The next id is read before yielding so the
// current record may be freed by the loop body. Iteration stops early if the
// captured next record is freed or moved to another list meanwhile; restart
// from FirstOf in that case.
func (s *Store) All(cat Category) iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		if cat == CategoryNone || cat >= categoryCount {
			return
		}
		id := s.heads[cat]
		for id != Null {
			r := &s.records[id]
			if r.Category != cat {
				return
			}
			next := r.nextInCategory
			if !yield(r) {
				return
			}
			id = next
		}
	}
}

// MoveTo updates the record's position and rethreads it onto the spatial
// cell the new position falls into.
func (s *Store) MoveTo(id ID, pos world.Pos3) error {
	r := s.Live(id)
	if r == nil {
		return fmt.Errorf("move %d: %w", id, ErrNotLive)
	}
	cell := s.spatial.cellIndex(pos)
	if cell != r.cell {
		s.unlink(r)
		s.link(r, cell)
	}
	r.pos = pos
	return nil
}

// Near iterates the records sharing pos's spatial cell. Same early-stop rule
// as All.
func (s *Store) Near(pos world.Pos3) iter.Seq[*Record] {
	cell := s.spatial.cellIndex(pos)
	return func(yield func(*Record) bool) {
		id := s.spatial.heads[cell]
		for id != Null {
			r := &s.records[id]
			if r.cell != cell {
				return
			}
			next := r.nextInCell
			if !yield(r) {
				return
			}
			id = next
		}
	}
}

// InMap reports whether t lies on the map the grid was sized for.
func (s *Store) InMap(t world.Tile) bool {
	return t.X >= 0 && t.Y >= 0 && int(t.X) < s.mapTiles && int(t.Y) < s.mapTiles
}

// CellIndex exposes the spatial hash so renderers can share the grid.
func (s *Store) CellIndex(pos world.Pos3) uint32 { return s.spatial.cellIndex(pos) }

func (s *Store) link(r *Record, cell uint32) {
	r.nextInCell = s.spatial.heads[cell]
	s.spatial.heads[cell] = r.ID
	r.cell = cell
}

func (s *Store) unlink(r *Record) {
	if r.cell == noCell {
		return
	}
	heads := s.spatial.heads
	if heads[r.cell] == r.ID {
		heads[r.cell] = r.nextInCell
	} else {
		for cur := heads[r.cell]; cur != Null; cur = s.records[cur].nextInCell {
			if s.records[cur].nextInCell == r.ID {
				s.records[cur].nextInCell = r.nextInCell
				break
			}
		}
	}
	r.nextInCell = Null
	r.cell = noCell
}
