package command

import (
	"fmt"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/core/entity"
	"github.com/locogo/server/internal/core/event"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
)

// GameState is the pause/speed controller and mode information the
// dispatcher consults. *world.State implements it.
type GameState interface {
	LocalCompany() company.ID
	IsNetworked() bool
	IsPaused() bool
	UnpauseSuppressed() bool
	Unpause()
	CostsSuppressed() bool
	CompanyName(company.ID) string
}

// Ledger receives the settlement of top-level commands.
type Ledger interface {
	ApplyPayment(c company.ID, amount finance.Money, e finance.Expenditure)
}

// Affordability checks (and may clamp) a top-level predicted cost.
type Affordability interface {
	Check(c company.ID, cost finance.Money) (finance.Money, error)
}

// EffectSpawner creates the floating cost popup.
type EffectSpawner interface {
	SpawnMoneyPopup(pos world.Pos3, owner company.ID, amount finance.Money) (entity.ID, error)
}

// Presenter shows failures to the local player.
type Presenter interface {
	ShowError(title, msg messages.StringID, args messages.Args)
	ShowCompanyError(title, msg messages.StringID, args messages.Args, owner company.ID)
}

// NetworkSync receives local top-level commits before they execute.
type NetworkSync interface {
	Submit(c company.ID, inv Invocation) error
}

// LegacyRunner executes script-bound command bodies.
type LegacyRunner interface {
	RunLegacy(handle string, tx *Transaction, args any, flags Flags) (finance.Money, error)
}

// TickSource stamps events with the current simulation tick.
type TickSource interface {
	Tick() uint64
}

// Deps holds the collaborators injected into the dispatcher. Sync, Legacy,
// Bus and Ticks are optional.
type Deps struct {
	Game      GameState
	Ledger    Ledger
	Afford    Affordability
	Effects   EffectSpawner
	Presenter Presenter
	Sync      NetworkSync
	Legacy    LegacyRunner
	Bus       *event.Bus
	Ticks     TickSource
	Log       *zap.Logger
}

// Dispatcher runs commands through the query/apply transaction.
// Single-goroutine (game loop) access only; nesting is call-stack re-entrancy.
type Dispatcher struct {
	table *Table
	deps  Deps
	log   *zap.Logger
}

func NewDispatcher(table *Table, deps Deps) *Dispatcher {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{table: table, deps: deps, log: log}
}

// Table returns the command table the dispatcher was built with.
func (d *Dispatcher) Table() *Table { return d.table }

// Run starts a fresh transaction for c and executes inv at top level.
func (d *Dispatcher) Run(c company.ID, inv Invocation) (finance.Money, error) {
	return d.Execute(d.NewTransaction(c), inv)
}

// Execute dispatches one invocation. At depth 0 it is a top-level command:
// it may unpause the game, is handed to network sync, settles its cost with
// the ledger and reports failures. Nested calls only return cost or failure.
func (d *Dispatcher) Execute(tx *Transaction, inv Invocation) (finance.Money, error) {
	desc, ok := d.table.Lookup(inv.Kind)
	if !ok {
		f := FailWith(ReasonUnbound, messages.ErrNotImplemented, messages.Args{})
		if tx.depth > 0 {
			return 0, f
		}
		tx.depth++
		return 0, d.reportFailure(tx, &Descriptor{Kind: inv.Kind, Title: messages.TitleCantDoThis}, inv, f)
	}
	apply := inv.Flags.Has(FlagApply)

	if tx.depth == 0 {
		tx.expenditure = desc.Expenditure
		if apply {
			if f := d.gate(tx, desc, inv); f != nil {
				return 0, f
			}
		}
	}

	tx.pending = nil
	tx.depth++
	d.log.Debug("執行指令",
		zap.Stringer("kind", inv.Kind),
		zap.Int("depth", tx.depth),
		zap.Stringer("company", tx.company),
		zap.Bool("apply", apply),
	)

	// Query pass.
	predicted, err := d.call(tx, desc, inv.Args, inv.Flags&^FlagApply)
	if err == nil && tx.depth == 1 && predicted != 0 &&
		!inv.Flags.Has(FlagGhost) && !inv.Flags.Has(FlagAlreadyCharged) && d.deps.Afford != nil {
		predicted, err = d.deps.Afford.Check(tx.company, predicted)
		if err != nil {
			err = &Failure{
				Reason:  ReasonInsufficientFunds,
				Message: messages.ErrNotEnoughCash,
				Args:    messages.Args{Amount: predicted},
				Owner:   company.Null,
				Err:     err,
			}
		}
	}
	if err != nil {
		f := d.record(tx, err)
		if apply {
			return 0, d.reportFailure(tx, desc, inv, f)
		}
		tx.depth--
		return 0, f
	}
	if !apply {
		tx.depth--
		return predicted, nil
	}

	// Apply pass.
	actual, err := d.call(tx, desc, inv.Args, inv.Flags|FlagApply)
	if err != nil {
		return 0, d.reportFailure(tx, desc, inv, d.record(tx, err))
	}

	cost := min(predicted, actual)
	if d.deps.Game != nil && d.deps.Game.CostsSuppressed() {
		cost = 0
	}

	tx.depth--
	if tx.depth != 0 {
		return cost, nil
	}

	charged := !inv.Flags.Has(FlagAlreadyCharged) && !inv.Flags.Has(FlagGhost)
	if charged {
		d.settle(tx, cost)
	}
	d.emitSettled(tx, inv, cost, charged)
	return cost, nil
}

// gate runs the top-level commit checks: unpausing and network hand-off.
func (d *Dispatcher) gate(tx *Transaction, desc *Descriptor, inv Invocation) *Failure {
	g := d.deps.Game
	if g == nil || tx.company != g.LocalCompany() {
		return nil
	}
	if desc.Unpauses && !inv.Flags.Has(FlagAllowWhilePaused) && !g.UnpauseSuppressed() && g.IsPaused() {
		g.Unpause()
		if g.IsPaused() {
			f := FailWith(ReasonPauseBlocked, messages.ErrCantDoWhilePaused, messages.Args{})
			d.log.Debug("遊戲暫停中，拒絕指令", zap.Stringer("kind", inv.Kind))
			if !inv.Flags.Has(FlagSilent) && d.deps.Presenter != nil {
				d.deps.Presenter.ShowError(d.title(desc, inv), f.Message, f.Args)
			}
			d.emitRejected(tx, inv, f)
			return f
		}
	}
	if g.IsNetworked() && d.deps.Sync != nil && !inv.Flags.Has(FlagGhost) {
		if err := d.deps.Sync.Submit(tx.company, inv); err != nil {
			d.log.Warn("網路同步提交失敗", zap.Stringer("kind", inv.Kind), zap.Error(err))
			f := FailWith(ReasonValidation, messages.ErrNotImplemented, messages.Args{})
			f.Err = err
			d.emitRejected(tx, inv, f)
			return f
		}
	}
	return nil
}

// call invokes the bound handler with panic recovery so a faulty body cannot
// unbalance the nesting depth.
func (d *Dispatcher) call(tx *Transaction, desc *Descriptor, args any, flags Flags) (cost finance.Money, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("指令處理器 panic 已恢復",
				zap.Stringer("kind", desc.Kind),
				zap.Any("panic", rec),
			)
			cost = 0
			err = &Failure{
				Reason:  ReasonValidation,
				Message: messages.Null,
				Owner:   company.Null,
				Err:     fmt.Errorf("handler panic for %s: %v", desc.Kind, rec),
			}
		}
	}()
	switch {
	case desc.Handler.IsNative():
		return desc.Handler.native(tx, args, flags)
	case desc.Handler.IsLegacy() && d.deps.Legacy != nil:
		return d.deps.Legacy.RunLegacy(desc.Handler.legacy, tx, args, flags)
	default:
		return 0, FailWith(ReasonUnbound, messages.ErrNotImplemented, messages.Args{})
	}
}

// record stores the failure on the transaction's error channel.
func (d *Dispatcher) record(tx *Transaction, err error) *Failure {
	f := AsFailure(err)
	tx.pending = f
	return f
}

func (d *Dispatcher) settle(tx *Transaction, cost finance.Money) {
	if d.deps.Ledger != nil {
		d.deps.Ledger.ApplyPayment(tx.company, cost, tx.expenditure)
	}
	if cost == 0 || d.deps.Effects == nil || d.deps.Game == nil {
		return
	}
	if tx.company != d.deps.Game.LocalCompany() || tx.position.IsNull() {
		return
	}
	if _, err := d.deps.Effects.SpawnMoneyPopup(tx.position, tx.company, cost); err != nil {
		d.log.Debug("無法建立金額浮動文字", zap.Error(err))
	}
}

func (d *Dispatcher) tick() uint64 {
	if d.deps.Ticks == nil {
		return 0
	}
	return d.deps.Ticks.Tick()
}

func (d *Dispatcher) emitSettled(tx *Transaction, inv Invocation, cost finance.Money, charged bool) {
	event.Emit(d.deps.Bus, event.CommandSettled{
		Tick:        d.tick(),
		Command:     inv.Kind.String(),
		Company:     tx.company,
		Cost:        cost,
		Expenditure: tx.expenditure,
		Charged:     charged,
	})
}

func (d *Dispatcher) emitRejected(tx *Transaction, inv Invocation, f *Failure) {
	event.Emit(d.deps.Bus, event.CommandRejected{
		Tick:    d.tick(),
		Command: inv.Kind.String(),
		Company: tx.company,
		Reason:  f.Reason.String(),
		Message: f.Message.String(),
	})
}

func (d *Dispatcher) title(desc *Descriptor, inv Invocation) messages.StringID {
	if inv.Title != 0 {
		return inv.Title
	}
	return desc.Title
}
