package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gotrader/schwab/pkg/pool"
)

// Quote fetches the quote for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	quotes, err := c.Quotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote returned for %q", symbol)
	}
	return &q, nil
}

// Quotes fetches quotes for a batch of symbols in a single call. The result
// is keyed by symbol; symbols the provider does not recognize are absent.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return map[string]Quote{}, nil
	}
	q := url.Values{}
	q.Set("symbols", strings.Join(symbols, ","))

	var out map[string]Quote
	if err := c.getJSON(ctx, c.MarketDataURL+"/quotes?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("fetching quotes: %w", err)
	}
	return out, nil
}

// PriceHistoryParams narrows a candle request. Zero values are omitted so the
// provider's defaults apply.
type PriceHistoryParams struct {
	PeriodType    string // day, month, year, ytd
	Period        int
	FrequencyType string // minute, daily, weekly, monthly
	Frequency     int
	StartDate     time.Time
	EndDate       time.Time
	ExtendedHours bool
	PreviousClose bool
}

func (p PriceHistoryParams) values(symbol string) url.Values {
	v := url.Values{}
	v.Set("symbol", symbol)
	if p.PeriodType != "" {
		v.Set("periodType", p.PeriodType)
	}
	if p.Period > 0 {
		v.Set("period", strconv.Itoa(p.Period))
	}
	if p.FrequencyType != "" {
		v.Set("frequencyType", p.FrequencyType)
	}
	if p.Frequency > 0 {
		v.Set("frequency", strconv.Itoa(p.Frequency))
	}
	if !p.StartDate.IsZero() {
		v.Set("startDate", strconv.FormatInt(p.StartDate.UnixMilli(), 10))
	}
	if !p.EndDate.IsZero() {
		v.Set("endDate", strconv.FormatInt(p.EndDate.UnixMilli(), 10))
	}
	if p.ExtendedHours {
		v.Set("needExtendedHoursData", "true")
	}
	if p.PreviousClose {
		v.Set("needPreviousClose", "true")
	}
	return v
}

// PriceHistory fetches candles for one symbol.
func (c *Client) PriceHistory(ctx context.Context, symbol string, params PriceHistoryParams) (*PriceHistory, error) {
	var out PriceHistory
	if err := c.getJSON(ctx, c.MarketDataURL+"/pricehistory?"+params.values(symbol).Encode(), &out); err != nil {
		return nil, fmt.Errorf("fetching price history for %s: %w", symbol, err)
	}
	if out.Symbol == "" {
		out.Symbol = symbol
	}
	return &out, nil
}

// PriceHistories fetches candles for many symbols using a bounded worker
// pool. Symbols that fail are logged and skipped rather than aborting the
// batch. Progress is reported via progressCb, which receives a value from
// 0.0 to 1.0.
func (c *Client) PriceHistories(
	ctx context.Context,
	symbols []string,
	params PriceHistoryParams,
	numWorkers int,
	progressCb func(float64),
) (map[string]*PriceHistory, error) {
	if len(symbols) == 0 {
		if progressCb != nil {
			progressCb(1.0)
		}
		return map[string]*PriceHistory{}, nil
	}

	histories := make(map[string]*PriceHistory, len(symbols))
	var mu sync.Mutex

	var processedCount atomic.Int64
	totalSymbols := float64(len(symbols))

	workerFunc := func(ctx context.Context, symbol string) error {
		// Defer the counter increment to guarantee it runs even if a fetch fails.
		defer func() {
			count := processedCount.Add(1)
			if progressCb != nil {
				progressCb(float64(count) / totalSymbols)
			}
		}()

		history, fetchErr := c.PriceHistory(ctx, symbol, params)
		if fetchErr != nil {
			log.Warn().Err(fetchErr).Str("symbol", symbol).Msg("Failed to fetch price history")
			return nil // Don't treat as a fatal error for the pool
		}
		mu.Lock()
		histories[symbol] = history
		mu.Unlock()
		return nil
	}

	_ = pool.Run(ctx, symbols, numWorkers, workerFunc)

	return histories, ctx.Err()
}

// SearchInstruments looks up securities by symbol. projection defaults to
// "symbol-search"; "fundamental" and the -regex variants are also accepted
// by the provider.
func (c *Client) SearchInstruments(ctx context.Context, symbol, projection string) ([]Instrument, error) {
	if projection == "" {
		projection = "symbol-search"
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("projection", projection)

	var out struct {
		Instruments []Instrument `json:"instruments"`
	}
	if err := c.getJSON(ctx, c.MarketDataURL+"/instruments?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("searching instruments: %w", err)
	}
	return out.Instruments, nil
}

// MarketHours reports session hours for the given markets (equity, option,
// bond, future, forex) on a date, today when date is empty.
func (c *Client) MarketHours(ctx context.Context, markets []string, date string) (MarketHours, error) {
	q := url.Values{}
	q.Set("markets", strings.Join(markets, ","))
	if date != "" {
		q.Set("date", date)
	}

	var out MarketHours
	if err := c.getJSON(ctx, c.MarketDataURL+"/markets?"+q.Encode(), &out); err != nil {
		return nil, fmt.Errorf("fetching market hours: %w", err)
	}
	return out, nil
}

// Movers lists the top movers for an index such as $DJI or $SPX. sort may be
// VOLUME, TRADES, PERCENT_CHANGE_UP, or PERCENT_CHANGE_DOWN.
func (c *Client) Movers(ctx context.Context, index, sort string) ([]Screener, error) {
	u := c.MarketDataURL + "/movers/" + url.PathEscape(index)
	if sort != "" {
		q := url.Values{}
		q.Set("sort", sort)
		u += "?" + q.Encode()
	}

	var out struct {
		Screeners []Screener `json:"screeners"`
	}
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, fmt.Errorf("fetching movers for %s: %w", index, err)
	}
	return out.Screeners, nil
}
