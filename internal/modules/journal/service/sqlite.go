package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fx_bot/internal/models"
)

// SQLite: журнал в одном файле; одно соединение, WAL.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	stmts := append([]string{`PRAGMA journal_mode=WAL`, `PRAGMA busy_timeout=5000`}, schema...)
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLite) SaveSnapshots(ctx context.Context, snaps []models.ProfitSnapshot) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("SQLite.SaveSnapshots: %w", err)
		}
	}()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, sn := range snaps {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO trade_profits (trade_id, instrument, profit_pips, profit_usd, ts) VALUES (?, ?, ?, ?, ?)`,
				sn.TradeID, string(sn.Instrument), sn.ProfitPips, sn.ProfitUSD, sn.Time.UTC(),
			); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) LastSnapshot(ctx context.Context, tradeID string) (snap models.ProfitSnapshot, ok bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("SQLite.LastSnapshot: %w", err)
		}
	}()
	var inst string
	row := s.db.QueryRowContext(ctx,
		`SELECT trade_id, instrument, profit_pips, profit_usd, ts FROM trade_profits
		 WHERE trade_id = ? ORDER BY ts DESC, rowid DESC LIMIT 1`, tradeID)
	err = row.Scan(&snap.TradeID, &inst, &snap.ProfitPips, &snap.ProfitUSD, &snap.Time)
	if err == sql.ErrNoRows {
		return models.ProfitSnapshot{}, false, nil
	}
	if err != nil {
		return models.ProfitSnapshot{}, false, err
	}
	snap.Instrument = models.Instrument(inst)
	return snap, true, nil
}

func (s *SQLite) RecordOutcome(ctx context.Context, o models.TradeOutcome) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("SQLite.RecordOutcome: %w", err)
		}
	}()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trade_history (trade_id, instrument, final_profit_pips, final_profit_usd, close_ts)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (trade_id) DO UPDATE SET
		   final_profit_pips = excluded.final_profit_pips,
		   final_profit_usd = excluded.final_profit_usd,
		   close_ts = excluded.close_ts`,
		o.TradeID, string(o.Instrument), o.FinalProfitPips, o.FinalProfitUSD, o.CloseTime.UTC(),
	)
	return err
}

func (s *SQLite) Outcomes(ctx context.Context, instrument models.Instrument, limit int) (out []models.TradeOutcome, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("SQLite.Outcomes: %w", err)
		}
	}()
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_id, instrument, final_profit_pips, final_profit_usd, close_ts FROM trade_history
		 WHERE (? = '' OR instrument = ?) ORDER BY close_ts DESC, trade_id DESC LIMIT ?`,
		string(instrument), string(instrument), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o    models.TradeOutcome
			inst string
			ts   time.Time
		)
		if err := rows.Scan(&o.TradeID, &inst, &o.FinalProfitPips, &o.FinalProfitUSD, &ts); err != nil {
			return nil, err
		}
		o.Instrument = models.Instrument(inst)
		o.CloseTime = ts
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLite) UpsertCandles(ctx context.Context, candles []models.Candle) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("SQLite.UpsertCandles: %w", err)
		}
	}()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO candles (instrument, timeframe, ts, open, high, low, close, volume)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (instrument, timeframe, ts) DO UPDATE SET
			   open = excluded.open, high = excluded.high, low = excluded.low,
			   close = excluded.close, volume = excluded.volume`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range candles {
			if _, err := stmt.ExecContext(ctx,
				string(c.Instrument), c.Timeframe, c.Time.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// CandleCount: сколько свечей пары в журнале.
func (s *SQLite) CandleCount(ctx context.Context, instrument models.Instrument, timeframe string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM candles WHERE instrument = ? AND timeframe = ?`,
		string(instrument), timeframe).Scan(&n)
	return n, err
}

func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx, err: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
