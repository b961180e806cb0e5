package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/core/event"
	"github.com/locogo/server/internal/finance"
	"go.uber.org/zap"
)

// Entry is one journaled top-level command outcome.
type Entry struct {
	Tick        uint64        `json:"tick"`
	Outcome     string        `json:"outcome"` // "settled" or "rejected"
	Command     string        `json:"command"`
	Company     company.ID    `json:"company"`
	Cost        finance.Money `json:"cost,omitempty"`
	Expenditure string        `json:"expenditure,omitempty"`
	Charged     bool          `json:"charged,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Message     string        `json:"message,omitempty"`
	At          time.Time     `json:"at"`
}

const filePrefix = "commands"

// Journal records command outcomes published on the event bus.
type Journal struct {
	w   *Writer
	log *zap.Logger
}

func New(dir string, log *zap.Logger) *Journal {
	return &Journal{w: NewWriter(dir, filePrefix), log: log}
}

// Attach subscribes the journal to the bus.
func (j *Journal) Attach(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.CommandSettled) {
		j.write(Entry{
			Tick:        ev.Tick,
			Outcome:     "settled",
			Command:     ev.Command,
			Company:     ev.Company,
			Cost:        ev.Cost,
			Expenditure: ev.Expenditure.String(),
			Charged:     ev.Charged,
		})
	})
	event.Subscribe(bus, func(ev event.CommandRejected) {
		j.write(Entry{
			Tick:    ev.Tick,
			Outcome: "rejected",
			Command: ev.Command,
			Company: ev.Company,
			Reason:  ev.Reason,
			Message: ev.Message,
		})
	})
}

func (j *Journal) write(e Entry) {
	e.At = j.w.now().UTC()
	if err := j.w.Write(e); err != nil {
		j.log.Error("寫入指令日誌失敗", zap.String("command", e.Command), zap.Error(err))
	}
}

func (j *Journal) Close() error { return j.w.Close() }

// Files lists the journal files in dir in chronological order.
func Files(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, filePrefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile decodes every entry of one journal file in order. fn returning an
// error stops the scan.
func ReadFile(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
