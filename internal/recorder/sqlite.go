package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"SetupScanner/internal/backtest"
	"SetupScanner/internal/scan"
)

const dateLayout = "2006-01-02"

// SQLiteRecorder persists results to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets report queries read while a scheduled scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			duration_ms INTEGER,
			scanned     INTEGER,
			setups      INTEGER,
			failures    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_ts ON scan_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS setups (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id             INTEGER NOT NULL REFERENCES scan_runs(id),
			rank_no            INTEGER,
			symbol             TEXT NOT NULL,
			bar_date           TEXT,
			close              REAL,
			score              REAL,
			consolidation_bars INTEGER,
			range_high         REAL,
			range_low          REAL,
			position_in_range  REAL,
			momentum           TEXT,
			force_index        REAL,
			norm_price         REAL,
			fader              TEXT,
			volume_ratio       REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_setups_symbol ON setups(symbol, bar_date)`,

		`CREATE TABLE IF NOT EXISTS backtest_summaries (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      INTEGER NOT NULL,
			holding_period INTEGER,
			entry_policy   TEXT,
			exit_policy    TEXT,
			symbols        INTEGER,
			trades         INTEGER,
			wins           INTEGER,
			losses         INTEGER,
			truncated      INTEGER,
			early_exits    INTEGER,
			win_rate       REAL,
			mean_return    REAL,
			total_return   REAL,
			median_return  REAL,
			best_return    REAL,
			worst_return   REAL
		)`,

		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      INTEGER NOT NULL REFERENCES backtest_summaries(id),
			symbol      TEXT NOT NULL,
			signal_date TEXT,
			entry_date  TEXT,
			entry_price REAL,
			exit_date   TEXT,
			exit_price  REAL,
			return_pct  REAL,
			score       REAL,
			momentum    TEXT,
			exit_reason TEXT,
			truncated   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_backtest_trades_run ON backtest_trades(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan stores the run header and every ranked setup in one transaction.
func (r *SQLiteRecorder) RecordScan(res *scan.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	out, err := tx.Exec(`INSERT INTO scan_runs
		(timestamp, duration_ms, scanned, setups, failures)
		VALUES (?,?,?,?,?)`,
		res.StartedAt.Unix(), res.Duration.Milliseconds(), res.Scanned, len(res.Setups), len(res.Failures),
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	runID, err := out.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO setups
		(run_id, rank_no, symbol, bar_date, close, score, consolidation_bars, range_high, range_low,
		 position_in_range, momentum, force_index, norm_price, fader, volume_ratio)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, s := range res.Setups {
		var bars int
		var hi, lo float64
		if s.Range != nil {
			bars, hi, lo = s.Range.Duration(), s.Range.High, s.Range.Low
		}
		if _, err := stmt.Exec(runID, i+1, s.Symbol, s.Time.Format(dateLayout), s.Close, s.Score,
			bars, hi, lo, s.PositionInRange, s.Momentum.String(), s.ForceIndex, s.NormPrice,
			s.Fader.String(), s.VolumeRatio); err != nil {
			return fmt.Errorf("insert setup %s: %w", s.Symbol, err)
		}
	}
	return tx.Commit()
}

// RecordBacktest stores the summary row and all trades in one transaction.
func (r *SQLiteRecorder) RecordBacktest(res *backtest.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	st := res.Stats
	out, err := tx.Exec(`INSERT INTO backtest_summaries
		(timestamp, holding_period, entry_policy, exit_policy, symbols, trades, wins, losses, truncated,
		 early_exits, win_rate, mean_return, total_return, median_return, best_return, worst_return)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		res.StartedAt.Unix(), res.HoldingPeriod, string(res.Entry), string(res.Exit), len(res.Symbols),
		st.Trades, st.Wins, st.Losses, st.Truncated, st.EarlyExits,
		st.WinRate, st.MeanReturn, st.TotalReturn, st.Median, st.Best, st.Worst,
	)
	if err != nil {
		return fmt.Errorf("insert backtest summary: %w", err)
	}
	runID, err := out.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO backtest_trades
		(run_id, symbol, signal_date, entry_date, entry_price, exit_date, exit_price,
		 return_pct, score, momentum, exit_reason, truncated)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sb := range res.Symbols {
		for _, t := range sb.Trades {
			if _, err := stmt.Exec(runID, t.Symbol, t.SignalTime.Format(dateLayout),
				t.EntryTime.Format(dateLayout), t.EntryPrice, t.ExitTime.Format(dateLayout), t.ExitPrice,
				t.ReturnPct, t.Score, t.Momentum.String(), string(t.ExitReason), t.Truncated); err != nil {
				return fmt.Errorf("insert trade %s: %w", t.Symbol, err)
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
