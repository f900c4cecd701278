package journal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rustyeddy/optrack/trade"
)

// CSVHeader is the column order written by WriteTradesCSV.
var CSVHeader = []string{
	trade.ColID, trade.ColDatetime, trade.ColSymbol, trade.ColExpiry, trade.ColStrike,
	trade.ColRight, trade.ColAction, trade.ColQuantity, trade.ColPrice,
	trade.ColCommission, trade.ColFees, trade.ColMultiplier, trade.ColTag,
}

// requiredCSV lists columns a CSV must carry, each with its accepted aliases.
var requiredCSV = [][]string{
	{trade.ColDatetime, "trade_datetime", "timestamp"},
	{trade.ColSymbol},
	{trade.ColExpiry},
	{trade.ColStrike},
	{trade.ColRight, "option_type"},
	{trade.ColAction},
	{trade.ColQuantity},
	{trade.ColPrice},
}

// ErrMissingColumns is returned (wrapped) by ReadTradesCSV when the header
// lacks a required column.
var ErrMissingColumns = errors.New("csv missing required columns")

// ReadTradesCSV reads a header row and then one raw record per line. Values
// are left as strings for trade.Normalize; empty cells are dropped.
func ReadTradesCSV(r io.Reader) ([]trade.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	if missing := missingColumns(header); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var out []trade.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rec := make(trade.Record, len(header))
		for i, v := range row {
			if i >= len(header) || strings.TrimSpace(v) == "" {
				continue
			}
			rec[header[i]] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

func missingColumns(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, names := range requiredCSV {
		found := false
		for _, n := range names {
			if have[n] {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, names[0])
		}
	}
	return missing
}

// WriteTradesCSV writes trades in CSVHeader order. The output reads back with
// ReadTradesCSV.
func WriteTradesCSV(w io.Writer, trades []trade.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range trades {
		id := ""
		if t.ID != 0 {
			id = strconv.FormatInt(t.ID, 10)
		}
		if err := cw.Write([]string{
			id,
			t.Time.UTC().Format(trade.TimeLayout),
			t.Contract.Symbol,
			t.Contract.ExpiryString(),
			t.Contract.Strike.String(),
			string(t.Contract.Right),
			t.Action.Code(),
			strconv.FormatInt(t.Quantity, 10),
			t.Price.String(),
			t.Commission.String(),
			t.Fees.String(),
			strconv.FormatInt(t.Multiplier, 10),
			t.Tag,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
