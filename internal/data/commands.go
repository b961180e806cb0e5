package data

import (
	"fmt"
	"os"

	"github.com/locogo/server/internal/command"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/messages"
	"gopkg.in/yaml.v3"
)

// CommandEntry is one row of commands.yaml.
type CommandEntry struct {
	Name        string `yaml:"name"`
	Unpauses    bool   `yaml:"unpauses"`
	Expenditure string `yaml:"expenditure"`
	Title       string `yaml:"title"`
	Legacy      string `yaml:"legacy"` // Lua function name; empty when a native body is bound
}

// LoadCommandTable reads commands.yaml and applies every row to b: static
// attributes always, a legacy binding when the row names one. Returns the
// number of rows applied.
func LoadCommandTable(path string, b *command.Builder) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read command table: %w", err)
	}
	var entries []CommandEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("parse command table: %w", err)
	}
	seen := make(map[command.Kind]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		kind, err := command.ParseKind(e.Name)
		if err != nil {
			return 0, fmt.Errorf("command table row %d: %w", i, err)
		}
		if seen[kind] {
			return 0, fmt.Errorf("command table row %d: duplicate %s", i, kind)
		}
		seen[kind] = true

		exp := finance.ExpMiscellaneous
		if e.Expenditure != "" {
			if exp, err = finance.ParseExpenditure(e.Expenditure); err != nil {
				return 0, fmt.Errorf("command %s: %w", kind, err)
			}
		}
		title := messages.TitleCantDoThis
		if e.Title != "" {
			if title, err = messages.ParseStringID(e.Title); err != nil {
				return 0, fmt.Errorf("command %s: %w", kind, err)
			}
		}
		if err := b.Describe(kind, e.Unpauses, exp, title); err != nil {
			return 0, err
		}
		if e.Legacy != "" {
			if err := b.Bind(kind, command.Legacy(e.Legacy)); err != nil {
				return 0, err
			}
		}
	}
	return len(entries), nil
}
