package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/trade"
)

// SQLite is the default single-file store.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and applies Schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

const insertTradeSQL = `
	INSERT INTO trades
	(datetime, symbol, expiry, strike, "right", action, quantity, price, commission, fees, multiplier, tag)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func tradeArgs(t trade.Trade) []any {
	r := t.Record()
	return []any{
		r[trade.ColDatetime], r[trade.ColSymbol], r[trade.ColExpiry], r[trade.ColStrike],
		r[trade.ColRight], r[trade.ColAction], t.Quantity, r[trade.ColPrice],
		r[trade.ColCommission], r[trade.ColFees], t.Multiplier, nullable(t.Tag),
	}
}

// InsertTrade stores t under a new id and returns it. t.ID is ignored.
func (j *SQLite) InsertTrade(ctx context.Context, t trade.Trade) (int64, error) {
	res, err := j.db.ExecContext(ctx, insertTradeSQL, tradeArgs(t)...)
	if err != nil {
		return 0, fmt.Errorf("insert trade: %w", err)
	}
	return res.LastInsertId()
}

// InsertTrades stores every trade in one transaction: all or nothing.
func (j *SQLite) InsertTrades(ctx context.Context, ts []trade.Trade) (int, error) {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertTradeSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range ts {
		if _, err := stmt.ExecContext(ctx, tradeArgs(t)...); err != nil {
			return 0, fmt.Errorf("insert trade %d of %d: %w", i+1, len(ts), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ts), nil
}

// UpdateTrade replaces every column of the trade with id t.ID.
func (j *SQLite) UpdateTrade(ctx context.Context, t trade.Trade) error {
	args := append(tradeArgs(t), t.ID)
	res, err := j.db.ExecContext(ctx, `
		UPDATE trades SET
			datetime = ?, symbol = ?, expiry = ?, strike = ?, "right" = ?, action = ?,
			quantity = ?, price = ?, commission = ?, fees = ?, multiplier = ?, tag = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update trade %d: %w", t.ID, err)
	}
	return checkAffected(res, t.ID)
}

// DeleteTrade removes one trade.
func (j *SQLite) DeleteTrade(ctx context.Context, id int64) error {
	res, err := j.db.ExecContext(ctx, `DELETE FROM trades WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trade %d: %w", id, err)
	}
	return checkAffected(res, id)
}

func checkAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// RecordMark appends a mark observation.
func (j *SQLite) RecordMark(ctx context.Context, m market.Mark) error {
	k := m.Contract
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO price_updates (symbol, expiry, strike, "right", mark, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		k.Symbol, k.ExpiryString(), k.Strike.String(), string(k.Right),
		m.Price.String(), m.ObservedAt.UTC().Format(markTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("record mark %s: %w", k, err)
	}
	return nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
