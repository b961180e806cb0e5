package persist

import (
	"context"
	"fmt"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
)

// PaymentRepo is the Postgres Store.
type PaymentRepo struct {
	db *DB
}

func NewPaymentRepo(db *DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

// WritePayments atomically writes a batch of payments in a single transaction.
// On failure nothing is written and the caller requeues the batch.
func (r *PaymentRepo) WritePayments(ctx context.Context, ps []finance.Payment) error {
	if len(ps) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("payments begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range ps {
		if _, err := tx.Exec(ctx,
			`INSERT INTO payments (company, amount, expenditure, balance, paid_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			int16(p.Company), int64(p.Amount), p.Expenditure.String(), int64(p.Balance), p.At,
		); err != nil {
			return fmt.Errorf("payments insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PaymentRepo) WriteCommands(ctx context.Context, rs []CommandRecord) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("command log begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range rs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO command_log (tick, command, company, cost, outcome)
			 VALUES ($1, $2, $3, $4, $5)`,
			int64(c.Tick), c.Command, int16(c.Company), int64(c.Cost), c.Outcome,
		); err != nil {
			return fmt.Errorf("command log insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PaymentRepo) LoadBalances(ctx context.Context) (map[company.ID]finance.Money, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT DISTINCT ON (company) company, balance
		 FROM payments ORDER BY company, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	out := make(map[company.ID]finance.Money)
	for rows.Next() {
		var c int16
		var bal int64
		if err := rows.Scan(&c, &bal); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out[company.ID(c)] = finance.Money(bal)
	}
	return out, rows.Err()
}

// CountCommands returns the number of logged commands.
func (r *PaymentRepo) CountCommands(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM command_log`).Scan(&n)
	return n, err
}

func (r *PaymentRepo) Close() { r.db.Close() }
