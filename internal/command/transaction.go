package command

import (
	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
	"github.com/locogo/server/internal/world"
)

// Transaction is the state of one top-level invocation and every command it
// triggers. Bodies receive it by reference and use it for sub-commands,
// floating-cost placement, ledger bucketing and error context.
type Transaction struct {
	d *Dispatcher

	depth       int
	company     company.ID
	position    world.Pos3
	expenditure finance.Expenditure

	pending *Failure
}

// NewTransaction starts a transaction for the company issuing a command.
func (d *Dispatcher) NewTransaction(c company.ID) *Transaction {
	return &Transaction{
		d:           d,
		company:     c,
		position:    world.NullPos,
		expenditure: finance.ExpMiscellaneous,
	}
}

// Execute runs a sub-command (or the top-level command when depth is 0).
func (tx *Transaction) Execute(inv Invocation) (finance.Money, error) {
	return tx.d.Execute(tx, inv)
}

func (tx *Transaction) Depth() int                           { return tx.depth }
func (tx *Transaction) Company() company.ID                  { return tx.company }
func (tx *Transaction) Position() world.Pos3                 { return tx.position }
func (tx *Transaction) Expenditure() finance.Expenditure     { return tx.expenditure }
func (tx *Transaction) SetPosition(p world.Pos3)             { tx.position = p }
func (tx *Transaction) SetExpenditure(e finance.Expenditure) { tx.expenditure = e }

// Lookup resolves a kind against the dispatcher's table, for bodies that
// build sub-command payloads from data.
func (tx *Transaction) Lookup(k Kind) (*Descriptor, bool) { return tx.d.table.Lookup(k) }

// Pending returns the failure recorded on the error channel, if any.
func (tx *Transaction) Pending() *Failure { return tx.pending }

// Invocation is a caller-filled command request. A zero Title uses the
// descriptor's default error title.
type Invocation struct {
	Kind  Kind
	Flags Flags
	Args  any
	Title messages.StringID
}
