package system

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/core/entity"
	"github.com/locogo/server/internal/core/event"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/netsync"
	"github.com/locogo/server/internal/persist"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap/zaptest"
)

type tileArgs struct {
	X int16 `json:"x"`
	Y int16 `json:"y"`
}

type calls struct {
	companies []company.ID
	args      []tileArgs
}

func newDispatcher(t *testing.T, c *calls, bus *event.Bus, ledger command.Ledger) *command.Dispatcher {
	t.Helper()
	b := command.NewBuilder()
	b.Bind(command.KindClearLand, command.Bind(func(tx *command.Transaction, a tileArgs, flags command.Flags) (finance.Money, error) {
		if flags.Has(command.FlagApply) {
			c.companies = append(c.companies, tx.Company())
			c.args = append(c.args, a)
		}
		return 20, nil
	}))
	return command.NewDispatcher(b.Build(), command.Deps{Ledger: ledger, Bus: bus, Log: zaptest.NewLogger(t)})
}

func newStore(t *testing.T) *entity.Store {
	t.Helper()
	s, err := entity.New(entity.Options{Capacity: 32, MoneyReserve: 4, QuadrantSize: 64, MapTiles: 32}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("entity.New: %v", err)
	}
	return s
}

func TestInputDrainsLocalThenRemote(t *testing.T) {
	var c calls
	d := newDispatcher(t, &c, nil, nil)
	local := make(chan Request, 4)
	remote := make(chan netsync.Remote, 4)
	in := NewInputSystem(d, local, remote, func() company.ID { return 0 }, 10, zaptest.NewLogger(t))

	remote <- netsync.Remote{Peer: "b", Company: 2, Inv: command.Invocation{Kind: command.KindClearLand, Flags: command.FlagApply, Args: tileArgs{2, 2}}}
	local <- Request{Company: 0, Inv: command.Invocation{Kind: command.KindClearLand, Flags: command.FlagApply, Args: tileArgs{1, 1}}}
	in.Update(0)

	if len(c.companies) != 2 || c.companies[0] != 0 || c.companies[1] != 2 {
		t.Fatalf("ran for %v", c.companies)
	}
}

func TestInputRejectsSpoofedLocalCompany(t *testing.T) {
	var c calls
	d := newDispatcher(t, &c, nil, nil)
	remote := make(chan netsync.Remote, 1)
	in := NewInputSystem(d, nil, remote, func() company.ID { return 1 }, 10, zaptest.NewLogger(t))

	remote <- netsync.Remote{Peer: "x", Company: 1, Inv: command.Invocation{Kind: command.KindClearLand, Flags: command.FlagApply}}
	in.Update(0)
	if len(c.companies) != 0 {
		t.Fatalf("spoofed command executed")
	}
}

func TestInputCapsPerTick(t *testing.T) {
	var c calls
	d := newDispatcher(t, &c, nil, nil)
	local := make(chan Request, 8)
	in := NewInputSystem(d, local, nil, func() company.ID { return 0 }, 3, zaptest.NewLogger(t))
	for range 5 {
		local <- Request{Inv: command.Invocation{Kind: command.KindClearLand, Flags: command.FlagApply}}
	}
	in.Update(0)
	if len(c.companies) != 3 {
		t.Fatalf("first tick ran %d", len(c.companies))
	}
	in.Update(0)
	if len(c.companies) != 5 {
		t.Fatalf("second tick ran %d total", len(c.companies))
	}
}

func TestLocalQueueHTTP(t *testing.T) {
	var c calls
	d := newDispatcher(t, &c, nil, nil)
	q := NewLocalQueue(d.Table(), 3, 1)

	post := func(body string) int {
		rec := httptest.NewRecorder()
		q.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/command", bytes.NewBufferString(body)))
		return rec.Code
	}
	if code := post(`{"kind":"clear_land","args":{"x":4,"y":9}}`); code != http.StatusAccepted {
		t.Fatalf("status %d", code)
	}
	if code := post(`{"kind":"clear_land"}`); code != http.StatusServiceUnavailable {
		t.Fatalf("full queue status %d", code)
	}
	if code := post(`{"kind":"warp_drive"}`); code != http.StatusBadRequest {
		t.Fatalf("unknown kind status %d", code)
	}

	req := <-q.C()
	if req.Company != 3 || !req.Inv.Flags.Has(command.FlagApply) {
		t.Fatalf("request %+v", req)
	}
	if a, ok := req.Inv.Args.(tileArgs); !ok || a != (tileArgs{4, 9}) {
		t.Fatalf("args %#v", req.Inv.Args)
	}

	rec := httptest.NewRecorder()
	q.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/command", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET status %d", rec.Code)
	}
}

func TestVehicleSystemMovesAndTurns(t *testing.T) {
	store := newStore(t)
	tiles := world.NewTileMap()
	for x := int16(0); x < 3; x++ {
		tiles.Place(world.Tile{X: x, Y: 0}, world.Element{Kind: world.ElementTrack, Owner: 0})
	}
	v, _ := store.Create(entity.CategoryVehicle)
	v.Speed = 16
	store.MoveTo(v.ID, world.Pos3{X: 40, Y: 8})
	parked, _ := store.Create(entity.CategoryVehicle)
	parked.Speed = 16

	sys := NewVehicleSystem(store, tiles, zaptest.NewLogger(t))
	sys.Update(0)
	if p := v.Position(); p.X != 56 {
		t.Fatalf("position after one tick %+v", p)
	}
	sys.Update(0) // 72 is tile 2
	sys.Update(0) // 88 is tile 2
	sys.Update(0) // 104 is tile 3: no track, turn around
	if v.Heading != 2 || v.Position().X != 88 {
		t.Fatalf("heading %d pos %+v", v.Heading, v.Position())
	}
	sys.Update(0)
	if v.Position().X != 72 {
		t.Fatalf("did not drive back: %+v", v.Position())
	}
	if v.Age != 5 || parked.Age != 5 {
		t.Fatalf("ages %d %d", v.Age, parked.Age)
	}
	if !parked.Position().IsNull() {
		t.Fatalf("unplaced vehicle moved")
	}
}

func TestEffectSystemExpiresPopups(t *testing.T) {
	store := newStore(t)
	id, err := store.SpawnMoneyPopup(world.Pos3{X: 10, Y: 10, Z: 0}, 0, 500)
	if err != nil {
		t.Fatalf("SpawnMoneyPopup: %v", err)
	}
	smoke, _ := store.Create(entity.CategoryMisc)
	smoke.Subtype = entity.MiscSmoke
	smoke.Lifetime = 2

	sys := NewEffectSystem(store, zaptest.NewLogger(t))
	cleanup := NewCleanupSystem(store)
	for range 4 {
		sys.Update(0)
		cleanup.Update(0)
	}
	r := store.Live(id)
	if r == nil || r.Lifetime != entity.MoneyPopupLifetime-4 || r.Position().Z != 2 {
		t.Fatalf("popup %+v", r)
	}
	if store.Count(entity.CategoryMisc) != 0 {
		t.Fatalf("smoke still live")
	}

	for range entity.MoneyPopupLifetime {
		sys.Update(0)
	}
	if store.Count(entity.CategoryMoney) != 0 {
		t.Fatalf("popup still live")
	}
	if store.Quarantined() != 1 {
		t.Fatalf("quarantined %d", store.Quarantined())
	}
	cleanup.Update(0)
	if store.Quarantined() != 0 || store.MoneyReserveFree() != 4 {
		t.Fatalf("recycle left quarantine=%d money=%d", store.Quarantined(), store.MoneyReserveFree())
	}
}

func TestPersistenceFlushesPaymentsAndCommands(t *testing.T) {
	log := zaptest.NewLogger(t)
	bus := event.NewBus()
	ledger := finance.NewLedger(log)
	ledger.Open(0, 1000)
	store := persist.NewMemoryStore()
	sys := NewPersistenceSystem(ledger, store, bus, log, 2)

	var c calls
	d := newDispatcher(t, &c, bus, ledger)
	d.Run(0, command.Invocation{Kind: command.KindClearLand, Flags: command.FlagApply})
	d.Run(0, command.Invocation{Kind: command.KindTrackPlace, Flags: command.FlagApply})
	NewEventSystem(bus).Update(0)

	sys.Update(0)
	if len(store.Payments()) != 0 {
		t.Fatalf("flushed before the interval")
	}
	sys.Update(0)
	ps := store.Payments()
	if len(ps) != 1 || ps[0].Amount != 20 || ps[0].Balance != 980 {
		t.Fatalf("payments %+v", ps)
	}
	cmds := store.Commands()
	if len(cmds) != 2 {
		t.Fatalf("commands %+v", cmds)
	}
	outcomes := map[string]string{}
	for _, r := range cmds {
		outcomes[r.Command] = r.Outcome
	}
	if outcomes["clear_land"] != "settled" || outcomes["track_place"] != command.ReasonUnbound.String() {
		t.Fatalf("outcomes %v", outcomes)
	}
}

func TestPersistenceRequeuesOnFailure(t *testing.T) {
	log := zaptest.NewLogger(t)
	ledger := finance.NewLedger(log)
	ledger.Open(1, 1000)
	store := persist.NewMemoryStore()
	sys := NewPersistenceSystem(ledger, store, event.NewBus(), log, 1)

	ledger.ApplyPayment(1, 100, finance.ExpConstruction)
	store.FailWith(errors.New("disk full"))
	sys.Update(0)
	if len(store.Payments()) != 0 {
		t.Fatalf("payments written despite failure")
	}

	store.FailWith(nil)
	ledger.ApplyPayment(1, 50, finance.ExpConstruction)
	sys.Flush()
	ps := store.Payments()
	if len(ps) != 2 || ps[0].Amount != 100 || ps[1].Amount != 50 {
		t.Fatalf("payments after retry %+v", ps)
	}
}

type countingLedger struct{ calls []finance.Money }

func (l *countingLedger) ApplyPayment(_ company.ID, amount finance.Money, _ finance.Expenditure) {
	l.calls = append(l.calls, amount)
}

func TestLocalQueueCannotSkipSettlement(t *testing.T) {
	for _, flags := range []string{"8", "16", "24"} {
		var c calls
		ledger := &countingLedger{}
		d := newDispatcher(t, &c, nil, ledger)
		q := NewLocalQueue(d.Table(), 0, 4)
		in := NewInputSystem(d, q.C(), nil, func() company.ID { return 0 }, 10, zaptest.NewLogger(t))

		rec := httptest.NewRecorder()
		body := `{"kind":"clear_land","flags":` + flags + `,"args":{"x":1,"y":1}}`
		q.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/command", bytes.NewBufferString(body)))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("flags %s: status %d", flags, rec.Code)
		}
		in.Update(0)

		if len(c.args) != 1 {
			t.Fatalf("flags %s: applied %d times", flags, len(c.args))
		}
		if len(ledger.calls) != 1 || ledger.calls[0] != 20 {
			t.Fatalf("flags %s: ledger calls %v, want one payment of 20", flags, ledger.calls)
		}
	}
}
