package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/trade"
	"github.com/shopspring/decimal"
)

const tradeColumns = `id, datetime, symbol, expiry, strike, "right", action, quantity, price, commission, fees, multiplier, tag`

// GetTrade returns the raw row for one trade.
func (j *SQLite) GetTrade(ctx context.Context, id int64) (trade.Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get trade %d: %w", id, err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("get trade %d: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, notFound(id)
	}
	return recs[0], nil
}

// ListTrades returns the trades inside w ordered by (datetime, id).
func (j *SQLite) ListTrades(ctx context.Context, w Window) ([]trade.Record, error) {
	var (
		where []string
		args  []any
	)
	if !w.From.IsZero() {
		where = append(where, "datetime >= ?")
		args = append(args, w.From.UTC().Format(trade.TimeLayout))
	}
	if !w.To.IsZero() {
		where = append(where, "datetime <= ?")
		args = append(args, w.To.UTC().Format(trade.TimeLayout))
	}

	q := `SELECT ` + tradeColumns + ` FROM trades`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY datetime ASC, id ASC"

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades %s: %w", w, err)
	}
	return scanRecords(rows)
}

// scanRecords turns every row into a Record keyed by column name. It closes
// rows.
func scanRecords(rows *sql.Rows) ([]trade.Record, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []trade.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(trade.Record, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestMark returns the newest observation for key; ties on updated_at go to
// the later insert.
func (j *SQLite) LatestMark(ctx context.Context, key market.ContractKey) (market.Mark, bool, error) {
	var price, updated string
	err := j.db.QueryRowContext(ctx, `
		SELECT mark, updated_at
		FROM price_updates
		WHERE symbol = ? AND expiry = ? AND strike = ? AND "right" = ?
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`,
		key.Symbol, key.ExpiryString(), key.Strike.String(), string(key.Right),
	).Scan(&price, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return market.Mark{}, false, nil
	}
	if err != nil {
		return market.Mark{}, false, fmt.Errorf("latest mark %s: %w", key, err)
	}
	return parseMark(key, price, updated)
}

func parseMark(key market.ContractKey, price, updated string) (market.Mark, bool, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return market.Mark{}, false, fmt.Errorf("mark %s: bad price %q: %w", key, price, err)
	}
	at, err := time.Parse(markTimeLayout, updated)
	if err != nil {
		if at, err = trade.ParseTime(updated); err != nil {
			return market.Mark{}, false, fmt.Errorf("mark %s: %w", key, err)
		}
	}
	return market.Mark{Contract: key, Price: p, ObservedAt: at.UTC()}, true, nil
}
