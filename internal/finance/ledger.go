package finance

import (
	"errors"
	"time"

	"github.com/locogo/server/internal/company"
	"go.uber.org/zap"
)

// ErrInsufficientFunds is returned by Check when a company cannot pay.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Payment is one settled command cost, queued for the persist phase.
type Payment struct {
	Company     company.ID
	Amount      Money
	Expenditure Expenditure
	Balance     Money // balance after the payment
	At          time.Time
}

type account struct {
	cash   Money
	spent  [ExpenditureCount]Money
	active bool
}

// Ledger is the authoritative in-memory company finance book.
// Accessed only from the game loop goroutine; no locks.
type Ledger struct {
	accounts [company.MaxCompanies]account
	pending  []Payment
	now      func() time.Time
	log      *zap.Logger
}

func NewLedger(log *zap.Logger) *Ledger {
	return &Ledger{
		pending: make([]Payment, 0, 64),
		now:     time.Now,
		log:     log,
	}
}

// Open activates a company account with its starting cash.
func (l *Ledger) Open(id company.ID, cash Money) {
	if int(id) >= company.MaxCompanies {
		return
	}
	l.accounts[id] = account{cash: cash, active: true}
}

// Cash returns the current balance of a company.
func (l *Ledger) Cash(id company.ID) Money {
	if int(id) >= company.MaxCompanies {
		return 0
	}
	return l.accounts[id].cash
}

// Spent returns the accumulated amount booked against one expenditure bucket.
func (l *Ledger) Spent(id company.ID, e Expenditure) Money {
	if int(id) >= company.MaxCompanies || e >= ExpenditureCount {
		return 0
	}
	return l.accounts[id].spent[e]
}

// ApplyPayment debits amount (credits when negative) and books it against
// the expenditure bucket. Neutral and unknown companies are ignored.
func (l *Ledger) ApplyPayment(id company.ID, amount Money, e Expenditure) {
	if int(id) >= company.MaxCompanies || !l.accounts[id].active {
		l.log.Debug("略過無帳戶公司付款", zap.Stringer("company", id), zap.Int64("amount", int64(amount)))
		return
	}
	acc := &l.accounts[id]
	acc.cash -= amount
	if e < ExpenditureCount {
		acc.spent[e] += amount
	}
	l.pending = append(l.pending, Payment{
		Company:     id,
		Amount:      amount,
		Expenditure: e,
		Balance:     acc.cash,
		At:          l.now(),
	})
}

// Check is the affordability step run on a top-level query pass. Refunds and
// inactive (AI placeholder / neutral) companies always pass unchanged.
func (l *Ledger) Check(id company.ID, cost Money) (Money, error) {
	if cost <= 0 || int(id) >= company.MaxCompanies || !l.accounts[id].active {
		return cost, nil
	}
	if l.accounts[id].cash < cost {
		return cost, ErrInsufficientFunds
	}
	return cost, nil
}

// DrainPending hands the queued payments to the caller and resets the queue.
func (l *Ledger) DrainPending() []Payment {
	if len(l.pending) == 0 {
		return nil
	}
	out := make([]Payment, len(l.pending))
	copy(out, l.pending)
	l.pending = l.pending[:0]
	return out
}

// Requeue puts back payments whose persistence failed so the next flush retries.
func (l *Ledger) Requeue(ps []Payment) {
	l.pending = append(ps, l.pending...)
}
