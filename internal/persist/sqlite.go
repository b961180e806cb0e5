package persist

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/locogo/server/internal/company"
	"github.com/locogo/server/internal/finance"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded Store for single-machine games.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragma: %w", err)
		}
	}
	if err := RunSQLiteMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) WritePayments(ctx context.Context, ps []finance.Payment) error {
	if len(ps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("payments begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO payments (company, amount, expenditure, balance, paid_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("payments prepare: %w", err)
	}
	defer stmt.Close()
	for _, p := range ps {
		if _, err := stmt.ExecContext(ctx,
			int(p.Company), int64(p.Amount), p.Expenditure.String(), int64(p.Balance), p.At.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("payments insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) WriteCommands(ctx context.Context, rs []CommandRecord) error {
	if len(rs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("command log begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO command_log (tick, command, company, cost, outcome) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("command log prepare: %w", err)
	}
	defer stmt.Close()
	for _, c := range rs {
		if _, err := stmt.ExecContext(ctx, int64(c.Tick), c.Command, int(c.Company), int64(c.Cost), c.Outcome); err != nil {
			return fmt.Errorf("command log insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadBalances(ctx context.Context) (map[company.ID]finance.Money, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company, balance FROM payments
		 WHERE id IN (SELECT MAX(id) FROM payments GROUP BY company)`)
	if err != nil {
		return nil, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()

	out := make(map[company.ID]finance.Money)
	for rows.Next() {
		var c int
		var bal int64
		if err := rows.Scan(&c, &bal); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out[company.ID(c)] = finance.Money(bal)
	}
	return out, rows.Err()
}

// CountCommands returns the number of logged commands.
func (s *SQLiteStore) CountCommands(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM command_log`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() { _ = s.db.Close() }
