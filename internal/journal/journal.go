// Package journal is the sqlite-backed trading journal: executed trades
// with notes and tags, plus the per-symbol stats the analytics views read.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "modernc.org/sqlite"

	"quotedesk/internal/metrics"
	"quotedesk/internal/quote"
)

// Trade is one executed order.
type Trade struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id" validate:"required"`
	Symbol     string    `json:"symbol" validate:"required"`
	Side       string    `json:"side" validate:"required,oneof=buy sell"`
	Quantity   float64   `json:"quantity" validate:"required,gt=0"`
	Price      float64   `json:"price" validate:"required,gt=0"`
	ExecutedAt time.Time `json:"executed_at" validate:"required"`
	Notes      string    `json:"notes,omitempty"`
	Tags       string    `json:"tags,omitempty"`
}

// SymbolStats summarizes a user's trades in one symbol.
type SymbolStats struct {
	Symbol     string  `json:"symbol"`
	Trades     int     `json:"trades"`
	BoughtQty  float64 `json:"bought_qty"`
	SoldQty    float64 `json:"sold_qty"`
	NetQty     float64 `json:"net_qty"`
	GrossSpent float64 `json:"gross_spent"`
	GrossTaken float64 `json:"gross_taken"`
}

var validate = validator.New()

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database and migrates it.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/journal.db"
	}
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: ping sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			executed_at INTEGER NOT NULL,
			notes TEXT,
			tags TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_user_symbol ON trades(user_id, symbol);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_executed ON trades(executed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("journal: migrate: %w", err)
		}
	}
	return nil
}

// Insert validates and stores a trade, returning its id.
func (s *Store) Insert(ctx context.Context, t Trade) (int64, error) {
	t.Symbol = quote.NormalizeSymbol(t.Symbol)
	t.Side = strings.ToLower(strings.TrimSpace(t.Side))
	if err := validate.Struct(t); err != nil {
		metrics.JournalOps.WithLabelValues("insert", "invalid").Inc()
		return 0, fmt.Errorf("journal: invalid trade: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (user_id, symbol, side, quantity, price, executed_at, notes, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Symbol, t.Side, t.Quantity, t.Price, t.ExecutedAt.UTC().UnixMilli(), t.Notes, t.Tags)
	metrics.JournalOps.WithLabelValues("insert", status(err)).Inc()
	if err != nil {
		return 0, fmt.Errorf("journal: insert: %w", err)
	}
	return res.LastInsertId()
}

// List returns a user's trades, newest first, optionally filtered by
// symbol. limit <= 0 means a sane default.
func (s *Store) List(ctx context.Context, userID, symbol string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT id, user_id, symbol, side, quantity, price, executed_at, notes, tags
	      FROM trades WHERE user_id = ?`
	args := []any{userID}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, quote.NormalizeSymbol(symbol))
	}
	q += ` ORDER BY executed_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	metrics.JournalOps.WithLabelValues("list", status(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		var execMs int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Side, &t.Quantity, &t.Price, &execMs, &t.Notes, &t.Tags); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		t.ExecutedAt = time.UnixMilli(execMs).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes one of the user's trades. Deleting someone else's trade
// is a no-op that reports false.
func (s *Store) Delete(ctx context.Context, userID string, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ? AND user_id = ?`, id, userID)
	metrics.JournalOps.WithLabelValues("delete", status(err)).Inc()
	if err != nil {
		return false, fmt.Errorf("journal: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats aggregates a user's trades per symbol.
func (s *Store) Stats(ctx context.Context, userID string) ([]SymbolStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol,
		        COUNT(*),
		        COALESCE(SUM(CASE WHEN side = 'buy' THEN quantity ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN side = 'sell' THEN quantity ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN side = 'buy' THEN quantity * price ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN side = 'sell' THEN quantity * price ELSE 0 END), 0)
		 FROM trades WHERE user_id = ? GROUP BY symbol ORDER BY symbol`, userID)
	metrics.JournalOps.WithLabelValues("stats", status(err)).Inc()
	if err != nil {
		return nil, fmt.Errorf("journal: stats: %w", err)
	}
	defer rows.Close()

	var out []SymbolStats
	for rows.Next() {
		var st SymbolStats
		if err := rows.Scan(&st.Symbol, &st.Trades, &st.BoughtQty, &st.SoldQty, &st.GrossSpent, &st.GrossTaken); err != nil {
			return nil, fmt.Errorf("journal: scan stats: %w", err)
		}
		st.NetQty = st.BoughtQty - st.SoldQty
		out = append(out, st)
	}
	return out, rows.Err()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
