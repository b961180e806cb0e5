package command

import (
	"encoding/json"
	"fmt"

	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
)

// NativeFunc is a command body. With FlagApply cleared it must only compute
// the cost or fail; with FlagApply set it performs the mutation.
type NativeFunc func(tx *Transaction, args any, flags Flags) (finance.Money, error)

// Handler is either a native Go body or a legacy script handle.
type Handler struct {
	native NativeFunc
	legacy string
	decode func(json.RawMessage) (any, error)
}

func (h Handler) IsNative() bool { return h.native != nil }
func (h Handler) IsLegacy() bool { return h.legacy != "" }
func (h Handler) Bound() bool    { return h.native != nil || h.legacy != "" }

// LegacyHandle returns the script function name for legacy handlers.
func (h Handler) LegacyHandle() string { return h.legacy }

// Bind wraps a typed body. The payload is asserted to A (nil means the zero
// A); a mismatch is a validation failure, never a panic.
func Bind[A any](fn func(tx *Transaction, args A, flags Flags) (finance.Money, error)) Handler {
	return Handler{
		native: func(tx *Transaction, args any, flags Flags) (finance.Money, error) {
			if args == nil {
				var zero A
				return fn(tx, zero, flags)
			}
			a, ok := args.(A)
			if !ok {
				if p, okp := args.(*A); okp && p != nil {
					a = *p
				} else {
					return 0, FailWith(ReasonValidation, messages.ErrInvalidTarget, messages.Args{})
				}
			}
			return fn(tx, a, flags)
		},
		decode: func(raw json.RawMessage) (any, error) {
			var a A
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
			}
			return a, nil
		},
	}
}

// LegacyArgs is the payload of script-bound commands.
type LegacyArgs map[string]any

// Legacy binds a kind to a script function.
func Legacy(handle string) Handler {
	return Handler{
		legacy: handle,
		decode: func(raw json.RawMessage) (any, error) {
			a := LegacyArgs{}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &a); err != nil {
					return nil, err
				}
			}
			return a, nil
		},
	}
}

// Descriptor is one immutable command table entry.
type Descriptor struct {
	Kind        Kind
	Unpauses    bool
	Expenditure finance.Expenditure
	Title       messages.StringID
	Handler     Handler
}

// DecodeArgs turns a network or journal payload into the handler's argument type.
func (d *Descriptor) DecodeArgs(raw json.RawMessage) (any, error) {
	if d.Handler.decode == nil {
		return nil, fmt.Errorf("%s: no argument decoder", d.Kind)
	}
	return d.Handler.decode(raw)
}

// Table maps kinds to descriptors. Built once by Builder, read-only after.
type Table struct {
	entries [kindCount]Descriptor
}

// Lookup returns the descriptor for a kind in O(1).
func (t *Table) Lookup(k Kind) (*Descriptor, bool) {
	if k >= kindCount {
		return nil, false
	}
	return &t.entries[k], true
}

// Bound counts kinds with a handler.
func (t *Table) Bound() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].Handler.Bound() {
			n++
		}
	}
	return n
}

// Builder assembles a Table at startup.
type Builder struct {
	entries [kindCount]Descriptor
	built   bool
}

func NewBuilder() *Builder {
	b := &Builder{}
	for i := range b.entries {
		b.entries[i] = Descriptor{
			Kind:        Kind(i),
			Expenditure: finance.ExpMiscellaneous,
			Title:       messages.TitleCantDoThis,
		}
	}
	return b
}

// Describe sets the static attributes of a kind, keeping any bound handler.
func (b *Builder) Describe(k Kind, unpauses bool, exp finance.Expenditure, title messages.StringID) error {
	if k >= kindCount {
		return fmt.Errorf("describe: kind %d out of range", k)
	}
	e := &b.entries[k]
	e.Unpauses = unpauses
	e.Expenditure = exp
	e.Title = title
	return nil
}

// Bind attaches a handler to a kind. Native handlers win over legacy ones so
// ported bodies replace script handles without editing the data file.
func (b *Builder) Bind(k Kind, h Handler) error {
	if k >= kindCount {
		return fmt.Errorf("bind: kind %d out of range", k)
	}
	if b.built {
		return fmt.Errorf("bind %s: table already built", k)
	}
	e := &b.entries[k]
	if e.Handler.IsNative() && h.IsLegacy() {
		return nil
	}
	e.Handler = h
	return nil
}

// Build freezes the table.
func (b *Builder) Build() *Table {
	b.built = true
	t := &Table{entries: b.entries}
	return t
}
