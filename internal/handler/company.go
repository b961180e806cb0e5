package handler

import (
	"strings"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
)

// RenameArgs carries a new company name.
type RenameArgs struct {
	Name string `json:"name"`
}

const maxCompanyName = 32

func CompanyRename(tx *command.Transaction, a RenameArgs, flags command.Flags, deps *Deps) (finance.Money, error) {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return 0, command.Fail(messages.ErrEmptyName)
	}
	if len(name) > maxCompanyName {
		return 0, command.Fail(messages.ErrInvalidTarget)
	}
	if id, used := deps.World.Companies.FindByName(name); used && id != tx.Company() {
		return 0, command.Fail(messages.ErrNameInUse)
	}
	if deps.World.Companies.Get(tx.Company()) == nil {
		return 0, command.Fail(messages.ErrInvalidTarget)
	}
	if flags.Has(command.FlagApply) {
		if err := deps.World.Companies.Rename(tx.Company(), name); err != nil {
			return 0, err
		}
	}
	return 0, nil
}
