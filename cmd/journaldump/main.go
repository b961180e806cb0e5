// journaldump summarises the compressed command journal.
//
// Produces a YAML report on stdout: per company, the number of settled and
// rejected commands, the total charged per expenditure and the most common
// rejection reasons. With -raw every entry is printed as one JSON line.
//
// Usage:
//
//	go run ./cmd/journaldump -dir var/journal
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/journal"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Report structures
// ---------------------------------------------------------------------------

type Report struct {
	Files     int             `yaml:"files"`
	Entries   int             `yaml:"entries"`
	FirstTick uint64          `yaml:"first_tick"`
	LastTick  uint64          `yaml:"last_tick"`
	Companies []CompanyReport `yaml:"companies"`
}

type CompanyReport struct {
	Company  string                   `yaml:"company"`
	Settled  int                      `yaml:"settled"`
	Rejected int                      `yaml:"rejected"`
	Spent    map[string]finance.Money `yaml:"spent,omitempty"`
	Reasons  []ReasonCount            `yaml:"reasons,omitempty"`
}

type ReasonCount struct {
	Reason string `yaml:"reason"`
	Count  int    `yaml:"count"`
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	dir := flag.String("dir", "var/journal", "journal directory")
	raw := flag.Bool("raw", false, "print entries as JSON lines instead of a summary")
	flag.Parse()

	files, err := journal.Files(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list %s: %v\n", *dir, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "no journal files in %s\n", *dir)
		os.Exit(1)
	}

	if *raw {
		enc := json.NewEncoder(os.Stdout)
		for _, f := range files {
			if err := journal.ReadFile(f, func(e journal.Entry) error { return enc.Encode(e) }); err != nil {
				fmt.Fprintf(os.Stderr, "read %s: %v\n", f, err)
				os.Exit(1)
			}
		}
		return
	}

	rep, err := summarise(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		os.Exit(1)
	}
	enc.Close()
}

type tally struct {
	settled, rejected int
	spent             map[string]finance.Money
	reasons           map[string]int
}

func summarise(files []string) (*Report, error) {
	rep := &Report{Files: len(files)}
	byCompany := map[company.ID]*tally{}

	for _, f := range files {
		err := journal.ReadFile(f, func(e journal.Entry) error {
			if rep.Entries == 0 || e.Tick < rep.FirstTick {
				rep.FirstTick = e.Tick
			}
			rep.LastTick = max(rep.LastTick, e.Tick)
			rep.Entries++

			t := byCompany[e.Company]
			if t == nil {
				t = &tally{spent: map[string]finance.Money{}, reasons: map[string]int{}}
				byCompany[e.Company] = t
			}
			if e.Outcome == "settled" {
				t.settled++
				if e.Charged {
					t.spent[e.Expenditure] += e.Cost
				}
				return nil
			}
			t.rejected++
			t.reasons[e.Reason]++
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
	}

	ids := make([]company.ID, 0, len(byCompany))
	for id := range byCompany {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		t := byCompany[id]
		cr := CompanyReport{Company: id.String(), Settled: t.settled, Rejected: t.rejected}
		if len(t.spent) > 0 {
			cr.Spent = t.spent
		}
		for r, n := range t.reasons {
			cr.Reasons = append(cr.Reasons, ReasonCount{Reason: r, Count: n})
		}
		sort.Slice(cr.Reasons, func(i, j int) bool {
			if cr.Reasons[i].Count != cr.Reasons[j].Count {
				return cr.Reasons[i].Count > cr.Reasons[j].Count
			}
			return cr.Reasons[i].Reason < cr.Reasons[j].Reason
		})
		rep.Companies = append(rep.Companies, cr)
	}
	return rep, nil
}
