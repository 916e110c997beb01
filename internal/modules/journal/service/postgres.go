package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fx_bot/internal/models"
	"fx_bot/pkg/db"
)

// Postgres: журнал в общей базе, с которой читает переобучение модели.
type Postgres struct {
	db *db.PgTxManager
}

func NewPostgres(ctx context.Context, m *db.PgTxManager) (*Postgres, error) {
	p := &Postgres{db: m}
	err := m.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, q := range schema {
			if _, err := tx.Exec(ctxTx, q); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return p, nil
}

func (p *Postgres) SaveSnapshots(ctx context.Context, snaps []models.ProfitSnapshot) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.SaveSnapshots: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range snaps {
			batch.Queue(
				`INSERT INTO trade_profits (trade_id, instrument, profit_pips, profit_usd, ts) VALUES ($1, $2, $3, $4, $5)`,
				s.TradeID, string(s.Instrument), s.ProfitPips, s.ProfitUSD, s.Time.UTC(),
			)
		}
		return tx.SendBatch(ctxTx, batch).Close()
	})
}

func (p *Postgres) LastSnapshot(ctx context.Context, tradeID string) (snap models.ProfitSnapshot, ok bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.LastSnapshot: %w", err)
		}
	}()
	var inst string
	err = p.db.Conn().QueryRow(ctx,
		`SELECT trade_id, instrument, profit_pips, profit_usd, ts FROM trade_profits
		 WHERE trade_id = $1 ORDER BY ts DESC LIMIT 1`, tradeID,
	).Scan(&snap.TradeID, &inst, &snap.ProfitPips, &snap.ProfitUSD, &snap.Time)
	if err == pgx.ErrNoRows {
		return models.ProfitSnapshot{}, false, nil
	}
	if err != nil {
		return models.ProfitSnapshot{}, false, err
	}
	snap.Instrument = models.Instrument(inst)
	return snap, true, nil
}

func (p *Postgres) RecordOutcome(ctx context.Context, o models.TradeOutcome) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.RecordOutcome: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`INSERT INTO trade_history (trade_id, instrument, final_profit_pips, final_profit_usd, close_ts)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (trade_id) DO UPDATE SET
			   final_profit_pips = excluded.final_profit_pips,
			   final_profit_usd = excluded.final_profit_usd,
			   close_ts = excluded.close_ts`,
			o.TradeID, string(o.Instrument), o.FinalProfitPips, o.FinalProfitUSD, o.CloseTime.UTC(),
		)
		return err
	})
}

func (p *Postgres) Outcomes(ctx context.Context, instrument models.Instrument, limit int) (out []models.TradeOutcome, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.Outcomes: %w", err)
		}
	}()
	rows, err := p.db.Conn().Query(ctx,
		`SELECT trade_id, instrument, final_profit_pips, final_profit_usd, close_ts FROM trade_history
		 WHERE ($1 = '' OR instrument = $1) ORDER BY close_ts DESC, trade_id DESC LIMIT $2`,
		string(instrument), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o    models.TradeOutcome
			inst string
		)
		if err := rows.Scan(&o.TradeID, &inst, &o.FinalProfitPips, &o.FinalProfitUSD, &o.CloseTime); err != nil {
			return nil, err
		}
		o.Instrument = models.Instrument(inst)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertCandles(ctx context.Context, candles []models.Candle) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.UpsertCandles: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range candles {
			batch.Queue(
				`INSERT INTO candles (instrument, timeframe, ts, open, high, low, close, volume)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				 ON CONFLICT (instrument, timeframe, ts) DO UPDATE SET
				   open = excluded.open, high = excluded.high, low = excluded.low,
				   close = excluded.close, volume = excluded.volume`,
				string(c.Instrument), c.Timeframe, c.Time.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume,
			)
		}
		return tx.SendBatch(ctxTx, batch).Close()
	})
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
