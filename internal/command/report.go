package command

import (
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
	"go.uber.org/zap"
)

// reportFailure is the error path: it unwinds one nesting level and, for a
// top-level failure of the local company, shows the error. Nested failures
// are returned to the parent body unchanged.
func (d *Dispatcher) reportFailure(tx *Transaction, desc *Descriptor, inv Invocation, f *Failure) error {
	tx.depth--
	if tx.depth != 0 {
		return f
	}
	d.emitRejected(tx, inv, f)

	g := d.deps.Game
	if g == nil || tx.company != g.LocalCompany() || inv.Flags.Has(FlagSilent) || d.deps.Presenter == nil {
		return f
	}
	title := d.title(desc, inv)
	if f.Reason != ReasonOwnership {
		d.deps.Presenter.ShowError(title, f.Message, f.Args)
		return f
	}

	msg, args := ownershipMessage(f)
	args.Company = g.CompanyName(f.Owner)
	d.log.Debug("所有權衝突",
		zap.Stringer("kind", inv.Kind),
		zap.Stringer("owner", f.Owner),
		zap.Stringer("message", msg),
	)
	d.deps.Presenter.ShowCompanyError(title, msg, args, f.Owner)
	return f
}

// ownershipMessage picks the contextual message for the contested element.
func ownershipMessage(f *Failure) (messages.StringID, messages.Args) {
	if f.Contested == nil {
		return messages.BelongsTo, messages.Args{}
	}
	switch f.Contested.Kind {
	case world.ElementTrack:
		return messages.OwnedTrack, messages.Args{}
	case world.ElementRoad:
		return messages.OwnedRoad, messages.Args{}
	case world.ElementStation:
		return messages.OwnedStation, messages.Args{Name: f.Contested.Name}
	case world.ElementSignal:
		return messages.OwnedSignal, messages.Args{}
	default:
		return messages.BelongsTo, messages.Args{}
	}
}
