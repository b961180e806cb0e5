package persist

import (
	"context"
	"sync"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
)

// CommandRecord is one settled or rejected top-level command.
type CommandRecord struct {
	Tick    uint64
	Command string
	Company company.ID
	Cost    finance.Money
	Outcome string // "settled", "free" or the rejection reason
}

// Store persists ledger payments and the command log.
type Store interface {
	WritePayments(ctx context.Context, ps []finance.Payment) error
	WriteCommands(ctx context.Context, rs []CommandRecord) error
	// LoadBalances returns the last recorded balance of every company.
	LoadBalances(ctx context.Context) (map[company.ID]finance.Money, error)
	Close()
}

// MemoryStore keeps everything in process. Used when ledger.driver is
// "memory" and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	payments []finance.Payment
	commands []CommandRecord
	fail     error
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// FailWith makes subsequent writes return err (nil to recover).
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *MemoryStore) WritePayments(_ context.Context, ps []finance.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.payments = append(m.payments, ps...)
	return nil
}

func (m *MemoryStore) WriteCommands(_ context.Context, rs []CommandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.commands = append(m.commands, rs...)
	return nil
}

func (m *MemoryStore) LoadBalances(context.Context) (map[company.ID]finance.Money, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[company.ID]finance.Money)
	for _, p := range m.payments {
		out[p.Company] = p.Balance
	}
	return out, nil
}

func (m *MemoryStore) Payments() []finance.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]finance.Payment(nil), m.payments...)
}

func (m *MemoryStore) Commands() []CommandRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CommandRecord(nil), m.commands...)
}

func (m *MemoryStore) Close() {}
