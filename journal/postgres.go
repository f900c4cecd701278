package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rustyeddy/optrack/market"
	"github.com/rustyeddy/optrack/trade"
)

// Postgres stores trades and marks in PostgreSQL. Money columns are NUMERIC
// and cross the wire as text.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenPostgres connects to dsn and applies PostgresSchema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := NewPostgres(pool)
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the tables and indexes if they are missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range PostgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

const pgInsertTrade = `
	INSERT INTO trades
	(datetime, symbol, expiry, strike, "right", action, quantity, price, commission, fees, multiplier, tag)
	VALUES ($1, $2, $3::DATE, $4::NUMERIC, $5, $6, $7, $8::NUMERIC, $9::NUMERIC, $10::NUMERIC, $11, $12)
	RETURNING id`

func pgTradeArgs(t trade.Trade) []any {
	return []any{
		t.Time.UTC(), t.Contract.Symbol, t.Contract.ExpiryString(), t.Contract.Strike.String(),
		string(t.Contract.Right), t.Action.Code(), t.Quantity, t.Price.String(),
		t.Commission.String(), t.Fees.String(), t.Multiplier, nullable(t.Tag),
	}
}

func (p *Postgres) InsertTrade(ctx context.Context, t trade.Trade) (int64, error) {
	var id int64
	if err := p.pool.QueryRow(ctx, pgInsertTrade, pgTradeArgs(t)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert trade: %w", err)
	}
	return id, nil
}

// InsertTrades stores every trade in one transaction.
func (p *Postgres) InsertTrades(ctx context.Context, ts []trade.Trade) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, t := range ts {
		batch.Queue(pgInsertTrade, pgTradeArgs(t)...)
	}
	br := tx.SendBatch(ctx, batch)
	for i := range ts {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return 0, fmt.Errorf("insert trade %d of %d: %w", i+1, len(ts), err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("insert trades: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ts), nil
}

func (p *Postgres) UpdateTrade(ctx context.Context, t trade.Trade) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE trades SET
			datetime = $1, symbol = $2, expiry = $3::DATE, strike = $4::NUMERIC, "right" = $5,
			action = $6, quantity = $7, price = $8::NUMERIC, commission = $9::NUMERIC,
			fees = $10::NUMERIC, multiplier = $11, tag = $12
		WHERE id = $13`, append(pgTradeArgs(t), t.ID)...)
	if err != nil {
		return fmt.Errorf("update trade %d: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(t.ID)
	}
	return nil
}

func (p *Postgres) DeleteTrade(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trade %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

const pgTradeColumns = `id, datetime, symbol, expiry::TEXT AS expiry, strike::TEXT AS strike, "right",
	action, quantity, price::TEXT AS price, commission::TEXT AS commission, fees::TEXT AS fees,
	multiplier, tag`

func (p *Postgres) GetTrade(ctx context.Context, id int64) (trade.Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+pgTradeColumns+` FROM trades WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get trade %d: %w", id, err)
	}
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, fmt.Errorf("get trade %d: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, notFound(id)
	}
	return recs[0], nil
}

func (p *Postgres) ListTrades(ctx context.Context, w Window) ([]trade.Record, error) {
	var (
		where []string
		args  []any
	)
	if !w.From.IsZero() {
		args = append(args, w.From.UTC())
		where = append(where, fmt.Sprintf("datetime >= $%d", len(args)))
	}
	if !w.To.IsZero() {
		args = append(args, w.To.UTC())
		where = append(where, fmt.Sprintf("datetime <= $%d", len(args)))
	}
	q := `SELECT ` + pgTradeColumns + ` FROM trades`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY datetime ASC, id ASC"

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades %s: %w", w, err)
	}
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]trade.Record, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []trade.Record
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(trade.Record, len(fields))
		for i, f := range fields {
			rec[f.Name] = vals[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) RecordMark(ctx context.Context, m market.Mark) error {
	k := m.Contract
	_, err := p.pool.Exec(ctx, `
		INSERT INTO price_updates (symbol, expiry, strike, "right", mark, updated_at)
		VALUES ($1, $2::DATE, $3::NUMERIC, $4, $5::NUMERIC, $6)`,
		k.Symbol, k.ExpiryString(), k.Strike.String(), string(k.Right),
		m.Price.String(), m.ObservedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record mark %s: %w", k, err)
	}
	return nil
}

func (p *Postgres) LatestMark(ctx context.Context, key market.ContractKey) (market.Mark, bool, error) {
	var (
		price   string
		updated time.Time
	)
	err := p.pool.QueryRow(ctx, `
		SELECT mark::TEXT, updated_at
		FROM price_updates
		WHERE symbol = $1 AND expiry = $2::DATE AND strike = $3::NUMERIC AND "right" = $4
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`,
		key.Symbol, key.ExpiryString(), key.Strike.String(), string(key.Right),
	).Scan(&price, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return market.Mark{}, false, nil
	}
	if err != nil {
		return market.Mark{}, false, fmt.Errorf("latest mark %s: %w", key, err)
	}
	return parseMark(key, price, updated.UTC().Format(markTimeLayout))
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
