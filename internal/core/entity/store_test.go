package entity

import (
	"errors"
	"testing"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Capacity == 0 {
		opts.Capacity = 64
	}
	if opts.QuadrantSize == 0 {
		opts.QuadrantSize = 32
	}
	if opts.MapTiles == 0 {
		opts.MapTiles = 16
	}
	s, err := New(opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func collect(s *Store, cat Category) []ID {
	var ids []ID
	for r := range s.All(cat) {
		ids = append(ids, r.ID)
	}
	return ids
}

func contains(ids []ID, id ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestCreateFreeCreateKeepsThreeVehicles(t *testing.T) {
	for _, immediate := range []bool{false, true} {
		s := newTestStore(t, Options{Immediate: immediate})

		var ids [3]ID
		for i := range ids {
			r, err := s.Create(CategoryVehicle)
			if err != nil {
				t.Fatalf("create %d: %v", i, err)
			}
			ids[i] = r.ID
		}
		if err := s.Free(ids[1]); err != nil {
			t.Fatalf("free: %v", err)
		}
		r, err := s.Create(CategoryVehicle)
		if err != nil {
			t.Fatalf("create after free: %v", err)
		}

		got := collect(s, CategoryVehicle)
		if len(got) != 3 {
			t.Fatalf("immediate=%v: expected 3 vehicles, got %v", immediate, got)
		}
		if !contains(got, ids[0]) || !contains(got, ids[2]) || !contains(got, r.ID) {
			t.Fatalf("immediate=%v: list %v missing expected ids", immediate, got)
		}
		if !immediate && contains(got, ids[1]) {
			t.Fatalf("quarantined id %d handed out in the same tick", ids[1])
		}
		if immediate && r.ID != ids[1] {
			t.Fatalf("expected freed slot %d reused, got %d", ids[1], r.ID)
		}
		if s.Count(CategoryVehicle) != 3 {
			t.Fatalf("count = %d", s.Count(CategoryVehicle))
		}
	}
}

func TestCreateNeverReturnsLiveID(t *testing.T) {
	s := newTestStore(t, Options{Capacity: 32})
	live := map[ID]bool{}
	for round := 0; round < 5; round++ {
		for {
			r, err := s.Create(CategoryMisc)
			if errors.Is(err, ErrPoolExhausted) {
				break
			}
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if live[r.ID] {
				t.Fatalf("round %d: id %d returned while live", round, r.ID)
			}
			if r.ID != ID(indexOf(s, r)) {
				t.Fatalf("record id %d does not match slot", r.ID)
			}
			live[r.ID] = true
		}
		// Free every other record, then recycle as the tick end would.
		n := 0
		for r := range s.All(CategoryMisc) {
			if n%2 == 0 {
				delete(live, r.ID)
				if err := s.Free(r.ID); err != nil {
					t.Fatalf("free: %v", err)
				}
			}
			n++
		}
		s.Recycle()
	}
}

func indexOf(s *Store, r *Record) int {
	for i := range s.records {
		if &s.records[i] == r {
			return i
		}
	}
	return -1
}

func TestReusedSlotHasNoResidualLinks(t *testing.T) {
	s := newTestStore(t, Options{Immediate: true})
	a, _ := s.Create(CategoryMisc)
	b, _ := s.Create(CategoryMisc)
	if err := s.MoveTo(a.ID, world.Pos3{X: 40, Y: 40}); err != nil {
		t.Fatalf("move: %v", err)
	}
	freed := a.ID
	if err := s.Free(freed); err != nil {
		t.Fatalf("free: %v", err)
	}
	v, err := s.Create(CategoryVehicle)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.ID != freed {
		t.Fatalf("expected slot %d reused, got %d", freed, v.ID)
	}
	if !v.Position().IsNull() {
		t.Fatalf("reused record kept old position %+v", v.Position())
	}
	if v.NextInCategory() != Null {
		t.Fatalf("reused record should be alone on vehicle list, next=%d", v.NextInCategory())
	}
	if got := collect(s, CategoryMisc); len(got) != 1 || got[0] != b.ID {
		t.Fatalf("misc list = %v, want [%d]", got, b.ID)
	}
	for r := range s.Near(world.Pos3{X: 40, Y: 40}) {
		t.Fatalf("old cell still lists %d", r.ID)
	}
}

func TestGeneralFloorAndMoneyReserve(t *testing.T) {
	s := newTestStore(t, Options{Capacity: 10, MoneyReserve: 2, GeneralFloor: 1})

	vehicles := 0
	for {
		_, err := s.Create(CategoryVehicle)
		if errors.Is(err, ErrPoolExhausted) {
			break
		}
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		vehicles++
	}
	if vehicles != 7 {
		t.Fatalf("expected 7 vehicles above floor, got %d", vehicles)
	}
	if s.FreeCount() != 1 {
		t.Fatalf("free count = %d, want 1", s.FreeCount())
	}

	pos := world.Pos3{X: 10, Y: 10}
	for i := 0; i < 3; i++ {
		if _, err := s.SpawnMoneyPopup(pos, 0, 100); err != nil {
			t.Fatalf("money popup %d: %v", i, err)
		}
	}
	if _, err := s.SpawnMoneyPopup(pos, 0, 100); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if s.Count(CategoryMoney) != 3 {
		t.Fatalf("money count = %d", s.Count(CategoryMoney))
	}
}

func TestMaxMisc(t *testing.T) {
	s := newTestStore(t, Options{MaxMisc: 2})
	for i := 0; i < 2; i++ {
		if _, err := s.Create(CategoryMisc); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := s.Create(CategoryMisc); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("expected misc cap, got %v", err)
	}
	if _, err := s.Create(CategoryVehicle); err != nil {
		t.Fatalf("vehicles are not capped by misc limit: %v", err)
	}
}

func TestCreateRejectsNoneCategory(t *testing.T) {
	s := newTestStore(t, Options{})
	if _, err := s.Create(CategoryNone); !errors.Is(err, ErrBadCategory) {
		t.Fatalf("expected ErrBadCategory, got %v", err)
	}
}

func TestFreeNotLiveIsReported(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s, err := New(Options{Capacity: 8, QuadrantSize: 32, MapTiles: 4}, zap.New(core))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Free(3); !errors.Is(err, ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}
	if err := s.Free(Null); !errors.Is(err, ErrNotLive) {
		t.Fatalf("expected ErrNotLive for Null, got %v", err)
	}
	if logs.Len() != 2 {
		t.Fatalf("expected 2 warnings, got %d", logs.Len())
	}
	r, _ := s.Create(CategoryMisc)
	if err := s.Free(r.ID); err != nil {
		t.Fatalf("free: %v", err)
	}
	if err := s.Free(r.ID); !errors.Is(err, ErrNotLive) {
		t.Fatalf("double free should fail, got %v", err)
	}
}

func TestGetBounds(t *testing.T) {
	s := newTestStore(t, Options{Capacity: 8})
	if s.Get(Null) != nil {
		t.Fatalf("Get(Null) should be nil")
	}
	if s.Get(8) != nil {
		t.Fatalf("Get(capacity) should be nil")
	}
	if r := s.Get(7); r == nil || r.Live() {
		t.Fatalf("Get(7) should return a free record")
	}
	if s.Live(7) != nil {
		t.Fatalf("Live(7) should be nil for free slot")
	}
}

func TestFreeCurrentDuringIteration(t *testing.T) {
	s := newTestStore(t, Options{})
	for i := 0; i < 5; i++ {
		if _, err := s.Create(CategoryVehicle); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	visited := 0
	for r := range s.All(CategoryVehicle) {
		visited++
		if err := s.Free(r.ID); err != nil {
			t.Fatalf("free during iteration: %v", err)
		}
	}
	if visited != 5 {
		t.Fatalf("visited %d, want 5", visited)
	}
	if s.FirstOf(CategoryVehicle) != Null || s.Count(CategoryVehicle) != 0 {
		t.Fatalf("vehicle list not empty")
	}
	if s.Quarantined() != 5 {
		t.Fatalf("quarantined = %d", s.Quarantined())
	}
	before := s.FreeCount()
	if n := s.Recycle(); n != 5 {
		t.Fatalf("recycled %d", n)
	}
	if s.FreeCount() != before+5 {
		t.Fatalf("free count %d after recycle", s.FreeCount())
	}
}

func TestSpatialConsistency(t *testing.T) {
	s := newTestStore(t, Options{})
	r, _ := s.Create(CategoryVehicle)
	other, _ := s.Create(CategoryVehicle)

	a := world.Pos3{X: 5, Y: 5}
	b := world.Pos3{X: 100, Y: 5}
	if err := s.MoveTo(r.ID, a); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := s.MoveTo(other.ID, world.Pos3{X: 31, Y: 0}); err != nil {
		t.Fatalf("move: %v", err)
	}
	near := nearIDs(s, a)
	if !contains(near, r.ID) || !contains(near, other.ID) {
		t.Fatalf("cell at %v = %v, want both", a, near)
	}

	if err := s.MoveTo(r.ID, b); err != nil {
		t.Fatalf("move: %v", err)
	}
	if contains(nearIDs(s, a), r.ID) {
		t.Fatalf("old cell still contains %d", r.ID)
	}
	if !contains(nearIDs(s, b), r.ID) {
		t.Fatalf("new cell missing %d", r.ID)
	}
	if r.Position() != b {
		t.Fatalf("position = %+v", r.Position())
	}

	// Same-cell move keeps membership.
	if err := s.MoveTo(r.ID, world.Pos3{X: 101, Y: 6}); err != nil {
		t.Fatalf("move: %v", err)
	}
	if !contains(nearIDs(s, b), r.ID) {
		t.Fatalf("same-cell move lost membership")
	}
}

func nearIDs(s *Store, p world.Pos3) []ID {
	var ids []ID
	for r := range s.Near(p) {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestUnplacedEntitiesShareReservedCell(t *testing.T) {
	s := newTestStore(t, Options{MapTiles: 4})
	r, _ := s.Create(CategoryMisc)
	if !contains(nearIDs(s, world.NullPos), r.ID) {
		t.Fatalf("new record should sit on the null cell")
	}
	outside := world.Pos3{X: 4 * world.TileSize, Y: 0}
	if s.CellIndex(outside) != s.CellIndex(world.NullPos) {
		t.Fatalf("out-of-bounds position must hash to reserved cell")
	}
	if s.CellIndex(world.Pos3{X: -1, Y: 0}) != s.CellIndex(world.NullPos) {
		t.Fatalf("negative position must hash to reserved cell")
	}
	if s.CellIndex(world.Pos3{X: 0, Y: 0}) == s.CellIndex(world.Pos3{X: 32, Y: 0}) {
		t.Fatalf("adjacent quadrants share a cell")
	}
}

func TestMoveToNotLive(t *testing.T) {
	s := newTestStore(t, Options{})
	if err := s.MoveTo(1, world.Pos3{}); !errors.Is(err, ErrNotLive) {
		t.Fatalf("expected ErrNotLive, got %v", err)
	}
}

func TestMoneyPopupFields(t *testing.T) {
	s := newTestStore(t, Options{MoneyReserve: 4})
	pos := world.Pos3{X: 64, Y: 64, Z: 16}
	id, err := s.SpawnMoneyPopup(pos, company.ID(2), -250)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	r := s.Live(id)
	if r.Category != CategoryMoney || r.Base != BaseMisc || r.Subtype != MiscMoneyPopup {
		t.Fatalf("unexpected kind %+v", r)
	}
	if r.Amount != -250 || r.Owner != 2 || r.Lifetime != MoneyPopupLifetime {
		t.Fatalf("unexpected payload %+v", r)
	}
	if int(id) < s.Capacity()-4 {
		t.Fatalf("popup should come from the reserve, got id %d", id)
	}
	if !contains(nearIDs(s, pos), id) {
		t.Fatalf("popup not on its cell")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	cases := []Options{
		{Capacity: 0, QuadrantSize: 32, MapTiles: 4},
		{Capacity: int(Null), QuadrantSize: 32, MapTiles: 4},
		{Capacity: 8, MoneyReserve: 8, QuadrantSize: 32, MapTiles: 4},
		{Capacity: 8, GeneralFloor: 8, QuadrantSize: 32, MapTiles: 4},
		{Capacity: 8, QuadrantSize: 0, MapTiles: 4},
		{Capacity: 8, QuadrantSize: 48, MapTiles: 4},
		{Capacity: 8, QuadrantSize: 32, MapTiles: 1024},
	}
	for i, c := range cases {
		if _, err := New(c, zap.NewNop()); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestNextWalksCategoryList(t *testing.T) {
	s := newTestStore(t, Options{})
	for range 3 {
		if _, err := s.Create(CategoryMisc); err != nil {
			t.Fatal(err)
		}
	}
	var walked []ID
	for id := s.FirstOf(CategoryMisc); id != Null; id = s.Next(id) {
		walked = append(walked, id)
	}
	if got := collect(s, CategoryMisc); len(walked) != 3 || len(got) != 3 {
		t.Fatalf("walked %v, iterated %v", walked, got)
	}
	if s.Next(Null) != Null {
		t.Fatalf("Next(Null) should be Null")
	}
}

func TestTileNeverStraddlesCells(t *testing.T) {
	for _, q := range []int{32, 64, 96, 512} {
		s := newTestStore(t, Options{QuadrantSize: q, MapTiles: 40})
		for x := int16(0); x < 40; x++ {
			tile := world.Tile{X: x, Y: x}
			lo := tile.Pos(0)
			hi := world.Pos3{X: lo.X + world.TileSize - 1, Y: lo.Y + world.TileSize - 1}
			if s.CellIndex(lo) != s.CellIndex(hi) {
				t.Fatalf("quadrant %d: tile %v spans cells %d and %d", q, tile, s.CellIndex(lo), s.CellIndex(hi))
			}
		}
	}
}

func TestInMap(t *testing.T) {
	s := newTestStore(t, Options{MapTiles: 16})
	for _, c := range []struct {
		tile world.Tile
		want bool
	}{
		{world.Tile{X: 0, Y: 0}, true},
		{world.Tile{X: 15, Y: 15}, true},
		{world.Tile{X: 16, Y: 0}, false},
		{world.Tile{X: 0, Y: -1}, false},
		{world.Tile{X: 1024, Y: 1}, false},
	} {
		if got := s.InMap(c.tile); got != c.want {
			t.Errorf("InMap(%v) = %v, want %v", c.tile, got, c.want)
		}
	}
}
