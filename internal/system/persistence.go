package system

import (
	"context"
	"time"

	"github.com/locogo/server/internal/core/event"
	coresys "github.com/locogo/server/internal/core/system"
	"github.com/locogo/server/internal/finance"
	"github.com/locogo/server/internal/persist"
	"go.uber.org/zap"
)

// PersistenceSystem periodically writes queued ledger payments and the
// command log to the store. Phase 4 (Persist).
type PersistenceSystem struct {
	ledger    *finance.Ledger
	store     persist.Store
	log       *zap.Logger
	commands  []persist.CommandRecord
	tickCount int
	interval  int // flush every N ticks
}

// NewPersistenceSystem subscribes to the command events on bus so every
// top-level outcome lands in the command log.
func NewPersistenceSystem(ledger *finance.Ledger, store persist.Store, bus *event.Bus, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	s := &PersistenceSystem{
		ledger:   ledger,
		store:    store,
		log:      log,
		interval: intervalTicks,
	}
	event.Subscribe(bus, func(ev event.CommandSettled) {
		outcome := "settled"
		if !ev.Charged {
			outcome = "free"
		}
		s.commands = append(s.commands, persist.CommandRecord{
			Tick: ev.Tick, Command: ev.Command, Company: ev.Company, Cost: ev.Cost, Outcome: outcome,
		})
	})
	event.Subscribe(bus, func(ev event.CommandRejected) {
		s.commands = append(s.commands, persist.CommandRecord{
			Tick: ev.Tick, Command: ev.Command, Company: ev.Company, Outcome: ev.Reason,
		})
	})
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.Flush()
}

// Flush writes everything queued so far. Called for graceful shutdown too.
// Failed payment batches go back to the ledger and are retried next flush.
func (s *PersistenceSystem) Flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if ps := s.ledger.DrainPending(); len(ps) > 0 {
		if err := s.store.WritePayments(ctx, ps); err != nil {
			s.ledger.Requeue(ps)
			s.log.Error("寫入帳本失敗，下次重試", zap.Int("payments", len(ps)), zap.Error(err))
		} else {
			s.log.Debug("帳本已寫入", zap.Int("payments", len(ps)))
		}
	}

	if len(s.commands) > 0 {
		if err := s.store.WriteCommands(ctx, s.commands); err != nil {
			s.log.Error("寫入指令紀錄失敗，下次重試", zap.Int("commands", len(s.commands)), zap.Error(err))
			return
		}
		s.commands = s.commands[:0]
	}
}
