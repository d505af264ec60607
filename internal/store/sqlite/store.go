package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/volatiletech/null"

	"sma-backtest/internal/backtest"
	"sma-backtest/internal/model"
)

// ErrNotFound is returned when no run has the requested id.
var ErrNotFound = errors.New("run not found")

// Run is a stored backtest together with where its data came from.
type Run struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Source    string           `json:"source"`
	Symbol    string           `json:"symbol,omitempty"`
	Bars      int              `json:"bars"`
	Result    *backtest.Result `json:"result"`
}

// Summary is a stored run without its trades and equity curve.
type Summary struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Source    string               `json:"source"`
	Symbol    string               `json:"symbol,omitempty"`
	Bars      int                  `json:"bars"`
	Params    model.StrategyParams `json:"params"`
	Stats     backtest.Stats       `json:"stats"`
}

// Store persists backtest runs in a single SQLite file.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewRunID returns a fresh random run identifier.
func NewRunID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Open opens or creates the database at path in WAL mode and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	s := &Store{db: db, logger: log.With().Str("component", "sqlite").Logger()}
	s.logger.Info().Str("path", path).Msg("opened database")
	return s, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id               TEXT    PRIMARY KEY,
			created_at       INTEGER NOT NULL,
			source           TEXT    NOT NULL,
			symbol           TEXT    NOT NULL DEFAULT '',
			bars             INTEGER NOT NULL,
			params           TEXT    NOT NULL,
			stats            TEXT    NOT NULL,
			total_return_pct REAL    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trades (
			run_id     TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq        INTEGER NOT NULL,
			side       TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			price      REAL    NOT NULL,
			size       REAL    NOT NULL,
			value      REAL    NOT NULL,
			commission REAL    NOT NULL,
			pnl        REAL,
			PRIMARY KEY (run_id, seq)
		);

		CREATE TABLE IF NOT EXISTS equity (
			run_id TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq    INTEGER NOT NULL,
			ts     INTEGER NOT NULL,
			equity REAL    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`)
	return err
}

// SaveRun writes a run with its trades and equity curve in one transaction. An empty
// ID is filled with a new one.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run == nil || run.Result == nil {
		return errors.New("sqlite save: nil run")
	}
	if run.ID == "" {
		id, err := NewRunID()
		if err != nil {
			return fmt.Errorf("sqlite save: %w", err)
		}
		run.ID = id
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	params, err := json.Marshal(run.Result.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	stats, err := json.Marshal(run.Result.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, source, symbol, bars, params, stats, total_return_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UnixNano(), run.Source, run.Symbol, run.Bars, string(params), string(stats), run.Result.Stats.TotalReturnPct); err != nil {
		return fmt.Errorf("sqlite insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, seq, side, ts, price, size, value, commission, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare trades: %w", err)
	}
	defer tradeStmt.Close()
	for i, t := range run.Result.Trades {
		if _, err := tradeStmt.ExecContext(ctx, run.ID, i, string(t.Side), t.Time.UnixNano(), t.Price, t.Size, t.Value, t.Commission, t.PnL); err != nil {
			return fmt.Errorf("sqlite insert trade %d: %w", i, err)
		}
	}

	eqStmt, err := tx.PrepareContext(ctx, `INSERT INTO equity (run_id, seq, ts, equity) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite prepare equity: %w", err)
	}
	defer eqStmt.Close()
	for i, p := range run.Result.Equity {
		if _, err := eqStmt.ExecContext(ctx, run.ID, i, p.Time.UnixNano(), p.Equity); err != nil {
			return fmt.Errorf("sqlite insert equity %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	s.logger.Debug().
		Str("id", run.ID).
		Int("trades", len(run.Result.Trades)).
		Int("equity", len(run.Result.Equity)).
		Dur("duration", time.Since(start)).
		Msg("saved run")
	return nil
}

// GetRun loads a run with its trades and equity curve.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	sum, err := s.GetSummary(ctx, id)
	if err != nil {
		return nil, err
	}
	trades, err := s.trades(ctx, id)
	if err != nil {
		return nil, err
	}
	equity, err := s.equity(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Run{
		ID:        sum.ID,
		CreatedAt: sum.CreatedAt,
		Source:    sum.Source,
		Symbol:    sum.Symbol,
		Bars:      sum.Bars,
		Result: &backtest.Result{
			Params: sum.Params,
			Trades: trades,
			Equity: equity,
			Stats:  sum.Stats,
		},
	}, nil
}

// GetSummary loads a run without its series.
func (s *Store) GetSummary(ctx context.Context, id string) (*Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, source, symbol, bars, params, stats
		FROM runs WHERE id = ?
	`, id)
	sum, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite read run %s: %w", id, err)
	}
	return sum, nil
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, source, symbol, bars, params, stats
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite list runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan run: %w", err)
		}
		out = append(out, *sum)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its series.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*Summary, error) {
	var (
		sum           Summary
		createdAt     int64
		params, stats string
	)
	if err := row.Scan(&sum.ID, &createdAt, &sum.Source, &sum.Symbol, &sum.Bars, &params, &stats); err != nil {
		return nil, err
	}
	sum.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(params), &sum.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if err := json.Unmarshal([]byte(stats), &sum.Stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats: %w", err)
	}
	return &sum, nil
}

func (s *Store) trades(ctx context.Context, id string) ([]model.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT side, ts, price, size, value, commission, pnl
		FROM trades WHERE run_id = ? ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	trades := []model.Trade{}
	for rows.Next() {
		var (
			t    model.Trade
			side string
			ts   int64
			pnl  null.Float64
		)
		if err := rows.Scan(&side, &ts, &t.Price, &t.Size, &t.Value, &t.Commission, &pnl); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		t.Side = model.Side(side)
		t.Time = time.Unix(0, ts).UTC()
		t.PnL = pnl
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *Store) equity(ctx context.Context, id string) ([]model.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, equity FROM equity WHERE run_id = ? ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite query equity: %w", err)
	}
	defer rows.Close()

	points := []model.EquityPoint{}
	for rows.Next() {
		var (
			p  model.EquityPoint
			ts int64
		)
		if err := rows.Scan(&ts, &p.Equity); err != nil {
			return nil, fmt.Errorf("sqlite scan equity: %w", err)
		}
		p.Time = time.Unix(0, ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
