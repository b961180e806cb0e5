package event

import (
	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
)

// CommandSettled is emitted after a top-level command completed its apply
// pass. Charged is false for ghost and already-charged invocations.
type CommandSettled struct {
	Tick        uint64
	Command     string
	Company     company.ID
	Cost        finance.Money
	Expenditure finance.Expenditure
	Charged     bool
}

// CommandRejected is emitted when a top-level commit fails.
type CommandRejected struct {
	Tick    uint64
	Command string
	Company company.ID
	Reason  string
	Message string
}
