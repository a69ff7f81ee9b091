package goldapi

import (
	"context"
	"fmt"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/metrics"
	"gold-monitor/internal/models"
	"gold-monitor/internal/services/convert"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// Daily series skip weekends and holidays; these windows still hold two trading days.
	currentWindowDays    = 7
	historicalWindowDays = 10
	// Used when nothing falls in the window before the requested date.
	fullHistoryDays = 3660
)

var (
	spread  = decimal.RequireFromString("0.002")
	hundred = decimal.NewFromInt(100)

	purity22k = decimal.RequireFromString("0.9167")
	purity21k = decimal.RequireFromString("0.875")
	purity20k = decimal.RequireFromString("0.8333")
	purity18k = decimal.RequireFromString("0.75")
)

// MultiCurrencies are the quote currencies of GetMultiCurrencyPrice.
var MultiCurrencies = []string{"USD", "EUR", "GBP"}

// GetCurrentPrice returns the latest quote in currency per troy ounce.
func (c *Client) GetCurrentPrice(ctx context.Context, metal models.Metal, currency string) (*models.PriceSnapshot, error) {
	points, err := c.fetchSeries(ctx, metal, currency, currentWindowDays, nil)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, apperr.New(apperr.KindNoData, "no price data for %s/%s", metal, currency)
	}
	if len(points) < 2 {
		return nil, apperr.New(apperr.KindInsufficientData, "need two data points for %s/%s to compute change, got %d", metal, currency, len(points))
	}

	latest, previous := points[0], points[1]
	price, ok := parsePrice(latest.price)
	if !ok || !price.IsPositive() {
		return nil, apperr.New(apperr.KindUpstream, "GoldAPI returned an unusable price for %s/%s on %s", metal, currency, latest.date)
	}
	prev, ok := parsePrice(previous.price)
	if !ok || !prev.IsPositive() {
		return nil, apperr.New(apperr.KindInsufficientData, "previous close for %s/%s on %s is unusable", metal, currency, previous.date)
	}

	snap := newSnapshot(metal, currency, latest, price)
	fillChange(snap, prev)
	return snap, nil
}

// GetHistoricalPrice returns the quote for date, or for the closest earlier date, or for the
// oldest date the upstream has. It only fails when the upstream fails or has no data at all;
// an unusable price is replaced by the current price and, failing that, by zero.
func (c *Client) GetHistoricalPrice(ctx context.Context, metal models.Metal, currency string, date models.Date) (*models.PriceSnapshot, error) {
	points, err := c.fetchSeries(ctx, metal, currency, historicalWindowDays, &date)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		// The date predates the data or follows a long gap.
		points, err = c.fetchSeries(ctx, metal, currency, fullHistoryDays, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(points) == 0 {
		return nil, apperr.New(apperr.KindNoData, "no historical data for %s/%s", metal, currency)
	}

	dates := make([]models.Date, len(points))
	for i, p := range points {
		dates[i] = p.date
	}
	idx := resolveDate(dates, date)
	found := points[idx]

	price, ok := parsePrice(found.price)
	if !ok {
		price = c.substitutePrice(ctx, metal, currency, found.date)
	}

	snap := newSnapshot(metal, currency, found, price)
	requested, resolved := date, found.date
	snap.RequestedDate = &requested
	snap.ResolvedDate = &resolved
	if !found.date.Equal(date) {
		snap.UsedFallbackDate = true
		snap.Degrade(fmt.Sprintf("no data for %s, using %s", date, found.date))
		metrics.RecordDegraded("fallback_date")
	}
	if !ok {
		if price.IsZero() {
			snap.Degrade(fmt.Sprintf("price for %s unusable and current price unavailable, reporting zero", found.date))
		} else {
			snap.Degrade(fmt.Sprintf("price for %s unusable, substituted current price", found.date))
		}
	}

	// points are newest-first, so the previous trading day sits right after idx.
	if idx+1 < len(points) {
		if prev, ok := parsePrice(points[idx+1].price); ok && prev.IsPositive() {
			fillChange(snap, prev)
		}
	}
	return snap, nil
}

func (c *Client) substitutePrice(ctx context.Context, metal models.Metal, currency string, date models.Date) decimal.Decimal {
	current, err := c.GetCurrentPrice(ctx, metal, currency)
	if err != nil {
		c.logger.Printf("[%s] historical price on %s unusable and current price failed: %v", metal, date, err)
		metrics.RecordDegraded("zero_price")
		return decimal.Zero
	}
	c.logger.Printf("[%s] historical price on %s unusable, substituting current price %s", metal, date, current.Price)
	metrics.RecordDegraded("current_price_substitute")
	return current.Price
}

// GetHistoricalData returns up to days of the most recent daily closes, oldest first.
// Asking for more days than the upstream has is not an error.
func (c *Client) GetHistoricalData(ctx context.Context, metal models.Metal, currency string, days int) ([]models.HistoricalPoint, error) {
	if days < 1 {
		return nil, apperr.New(apperr.KindInvalidParameter, "days must be at least 1, got %d", days)
	}
	points, err := c.fetchSeries(ctx, metal, currency, days, nil)
	if err != nil {
		return nil, err
	}
	if len(points) > days {
		points = points[:days]
	}

	series := make([]models.HistoricalPoint, 0, len(points))
	for i := len(points) - 1; i >= 0; i-- {
		price, ok := parsePrice(points[i].price)
		if !ok {
			c.logger.Printf("[%s] skipping %s: unusable price", metal, points[i].date)
			continue
		}
		series = append(series, models.HistoricalPoint{Date: points[i].date, Price: price})
	}
	return series, nil
}

// GetMultiCurrencyPrice fetches USD, EUR and GBP quotes concurrently. A currency that
// fails is left out; an empty result is still a valid answer.
func (c *Client) GetMultiCurrencyPrice(ctx context.Context, metal models.Metal) []*models.PriceSnapshot {
	results := make([]*models.PriceSnapshot, len(MultiCurrencies))

	g, gctx := errgroup.WithContext(ctx)
	for i, currency := range MultiCurrencies {
		i, currency := i, currency
		g.Go(func() error {
			snap, err := c.GetCurrentPrice(gctx, metal, currency)
			if err != nil {
				c.logger.Printf("[%s] multi-currency %s failed: %v", metal, currency, err)
				return nil
			}
			results[i] = snap
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*models.PriceSnapshot, 0, len(results))
	for _, snap := range results {
		if snap != nil {
			out = append(out, snap)
		}
	}
	return out
}

// GetPriceWithConversion fetches the current price in base and converts it to target
// and unit, currency first.
func (c *Client) GetPriceWithConversion(ctx context.Context, metal models.Metal, base, target string, unit models.Unit) (*models.PriceSnapshot, error) {
	if !convert.IsSupportedUnit(unit) {
		return nil, apperr.New(apperr.KindUnsupportedUnit, "unsupported unit %q", unit)
	}
	snap, err := c.GetCurrentPrice(ctx, metal, base)
	if err != nil {
		return nil, err
	}
	if err := c.ConvertSnapshot(ctx, snap, target, unit); err != nil {
		return nil, err
	}
	return snap, nil
}

// ConvertSnapshot converts the monetary fields of snap, which must be per troy ounce,
// to target currency and then to unit. A failed currency conversion leaves the
// values in the original currency and marks the snapshot degraded.
func (c *Client) ConvertSnapshot(ctx context.Context, snap *models.PriceSnapshot, target string, unit models.Unit) error {
	if snap.Currency != target {
		if c.converter == nil {
			snap.Degrade(fmt.Sprintf("no currency converter, prices left in %s", snap.Currency))
		} else if degraded, note := c.converter.ConvertAllBestEffort(ctx, snap.Currency, target,
			&snap.Price, &snap.Ask, &snap.Bid, &snap.Change, &snap.PreviousClose,
			&snap.PriceGram24k, &snap.PriceGram22k, &snap.PriceGram21k, &snap.PriceGram20k, &snap.PriceGram18k,
		); degraded {
			snap.Degrade(note)
		}
		snap.Currency = target
	}

	if unit != models.Ounce {
		for _, v := range []*decimal.Decimal{&snap.Price, &snap.Ask, &snap.Bid, &snap.Change, &snap.PreviousClose} {
			converted, err := convert.ConvertUnit(*v, unit)
			if err != nil {
				return err
			}
			*v = converted
		}
	}
	snap.Unit = unit
	return nil
}

// ConvertSeries converts a per-ounce series from base to target and unit in place.
// It reports whether the currency step fell back to unconverted prices.
func (c *Client) ConvertSeries(ctx context.Context, series []models.HistoricalPoint, base, target string, unit models.Unit) (degraded bool, note string, err error) {
	if base != target && len(series) > 0 {
		if c.converter == nil {
			return true, fmt.Sprintf("no currency converter, prices left in %s", base), nil
		}
		values := make([]*decimal.Decimal, len(series))
		for i := range series {
			values[i] = &series[i].Price
		}
		degraded, note = c.converter.ConvertAllBestEffort(ctx, base, target, values...)
	}
	if unit != models.Ounce {
		for i := range series {
			converted, err := convert.ConvertUnit(series[i].Price, unit)
			if err != nil {
				return degraded, note, err
			}
			series[i].Price = converted
		}
	}
	return degraded, note, nil
}

func newSnapshot(metal models.Metal, currency string, p point, price decimal.Decimal) *models.PriceSnapshot {
	snap := &models.PriceSnapshot{
		Metal:      metal,
		Currency:   currency,
		Unit:       models.Ounce,
		Price:      price,
		ObservedAt: p.observedAt(),
	}
	snap.Timestamp = snap.ObservedAt.Unix()

	if ask, ok := parsePrice(p.ask); ok {
		snap.Ask = ask
	} else {
		snap.Ask = price.Mul(decimal.NewFromInt(1).Add(spread))
	}
	if bid, ok := parsePrice(p.bid); ok {
		snap.Bid = bid
	} else {
		snap.Bid = price.Mul(decimal.NewFromInt(1).Sub(spread))
	}

	perGram := price.Div(convert.GramsPerOunce)
	snap.PriceGram24k = perGram
	snap.PriceGram22k = perGram.Mul(purity22k)
	snap.PriceGram21k = perGram.Mul(purity21k)
	snap.PriceGram20k = perGram.Mul(purity20k)
	snap.PriceGram18k = perGram.Mul(purity18k)
	return snap
}

func fillChange(snap *models.PriceSnapshot, previous decimal.Decimal) {
	snap.PreviousClose = previous
	snap.Change = snap.Price.Sub(previous)
	snap.ChangePercent = snap.Change.Div(previous).Mul(hundred)
}
