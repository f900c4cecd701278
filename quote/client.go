// Package quote looks up option marks from an HTTP option-chain service.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/optrack/market"
	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds a single chain request.
const DefaultTimeout = 10 * time.Second

// Client fetches option chains. The service is expected to answer
// GET {base}/v1/markets/options/chains?symbol=SPY&expiration=2025-01-17.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client; a zero timeout means DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Option is one row of a chain. Missing prices are invalid NullDecimals.
type Option struct {
	Symbol     string              `json:"symbol"`
	Underlying string              `json:"underlying"`
	Strike     decimal.Decimal     `json:"strike"`
	OptionType string              `json:"option_type"` // "call" or "put"
	Expiration string              `json:"expiration_date"`
	Bid        decimal.NullDecimal `json:"bid"`
	Ask        decimal.NullDecimal `json:"ask"`
	Last       decimal.NullDecimal `json:"last"`
}

// Right maps OptionType to a market.Right.
func (o Option) Right() (market.Right, error) {
	return market.ParseRight(o.OptionType)
}

// chainResponse accepts "option" as either an array or a single object;
// the service collapses one-element lists.
type chainResponse struct {
	Options *struct {
		Option json.RawMessage `json:"option"`
	} `json:"options"`
}

func (r chainResponse) options() ([]Option, error) {
	if r.Options == nil || len(r.Options.Option) == 0 || string(r.Options.Option) == "null" {
		return nil, nil
	}
	raw := bytes.TrimSpace(r.Options.Option)
	if raw[0] == '{' {
		var one Option
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, err
		}
		return []Option{one}, nil
	}
	var many []Option
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, err
	}
	return many, nil
}

// Chain fetches every option for symbol expiring on expiry.
func (c *Client) Chain(ctx context.Context, symbol string, expiry time.Time) ([]Option, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("expiration", expiry.Format(market.DateLayout))
	apiURL := fmt.Sprintf("%s/v1/markets/options/chains?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("chain fetched", "symbol", symbol, "expiry", expiry.Format(market.DateLayout),
		"status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var cr chainResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	opts, err := cr.options()
	if err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return opts, nil
}

// Mark looks up the chain for key and returns the contract's mark. ok is
// false when the contract is not listed or has no usable price.
func (c *Client) Mark(ctx context.Context, key market.ContractKey) (decimal.Decimal, bool, error) {
	opts, err := c.Chain(ctx, key.Symbol, key.Expiry)
	if err != nil {
		return decimal.Zero, false, err
	}
	o, ok := Find(opts, key)
	if !ok {
		return decimal.Zero, false, nil
	}
	m, ok := PickMark(o)
	return m, ok, nil
}

// Find returns the option matching key's strike and right.
func Find(opts []Option, key market.ContractKey) (Option, bool) {
	for _, o := range opts {
		r, err := o.Right()
		if err != nil {
			continue
		}
		if r == key.Right && o.Strike.Equal(key.Strike) {
			return o, true
		}
	}
	return Option{}, false
}

// PickMark is the midpoint when both sides are quoted and not crossed, else
// the last trade, else nothing.
func PickMark(o Option) (decimal.Decimal, bool) {
	if positive(o.Bid) && positive(o.Ask) && o.Ask.Decimal.GreaterThanOrEqual(o.Bid.Decimal) {
		return o.Bid.Decimal.Add(o.Ask.Decimal).Div(decimal.NewFromInt(2)), true
	}
	if positive(o.Last) {
		return o.Last.Decimal, true
	}
	return decimal.Zero, false
}

func positive(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}
