package convert

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/cache"
	"gold-monitor/internal/metrics"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// RatesTTL bounds how long a fetched rate table is reused.
const RatesTTL = time.Hour

// Converter converts prices between currencies using an FX rates service
// shaped like open.er-api.com: GET {base}/latest/{CUR} -> {"rates": {...}}.
type Converter struct {
	baseURL string
	client  *resty.Client
	store   *cache.Cache
	logger  *log.Logger
}

type ratesResponse struct {
	Result          string                     `json:"result"`
	Base            string                     `json:"base_code"`
	Rates           map[string]decimal.Decimal `json:"rates"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
	ErrorType       string                     `json:"error-type"`
}

func NewConverter(baseURL string, timeout time.Duration, store *cache.Cache) *Converter {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")

	return &Converter{
		baseURL: baseURL,
		client:  client,
		store:   store,
		logger:  log.New(os.Stdout, "[Converter] ", log.LstdFlags),
	}
}

// Rates returns the rate table for base, from the shared cache when fresh.
func (c *Converter) Rates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	key := "fx:" + base
	if c.store != nil {
		if v, ok := c.store.Get(key); ok {
			if rates, ok := v.(map[string]decimal.Decimal); ok {
				metrics.RecordCacheHit("fx")
				return rates, nil
			}
		}
		metrics.RecordCacheMiss("fx")
	}

	started := time.Now()
	rates, err := c.fetchRates(ctx, base)
	metrics.ObserveUpstream("fx", started, err)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		c.store.Set(key, rates, RatesTTL)
	}
	return rates, nil
}

func (c *Converter) fetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("base", base).
		Get(c.baseURL + "/latest/{base}")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "fetch exchange rates for %s", base)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apperr.Upstream(resp.StatusCode(), "FX API Error: %d %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}

	var body ratesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "decode exchange rates for %s", base)
	}
	if body.Result == "error" {
		return nil, apperr.New(apperr.KindUpstream, "FX API Error: %s", body.ErrorType)
	}

	rates := body.Rates
	if len(rates) == 0 {
		rates = body.ConversionRates
	}
	if len(rates) == 0 {
		return nil, apperr.New(apperr.KindUpstream, "FX API returned no rates for %s", base)
	}
	return rates, nil
}

// Rate returns the multiplier from one currency to another.
func (c *Converter) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	rates, err := c.Rates(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, apperr.New(apperr.KindRateUnavailable, "no %s rate for base %s", to, from)
	}
	return rate, nil
}

// ConvertCurrency returns price in the target currency. Equal currencies never hit the network.
func (c *Converter) ConvertCurrency(ctx context.Context, price decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if from == to {
		return price, nil
	}
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return price.Mul(rate), nil
}

// ConvertCurrencyBestEffort converts price, or returns it unchanged with degraded=true
// when no rate could be obtained.
func (c *Converter) ConvertCurrencyBestEffort(ctx context.Context, price decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	converted, err := c.ConvertCurrency(ctx, price, from, to)
	if err != nil {
		c.warnFallback(from, to, err)
		return price, true
	}
	return converted, false
}

// ConvertAllBestEffort multiplies every value by the from->to rate in place, fetching the
// rate once. On failure the values are left unconverted and degraded is true.
func (c *Converter) ConvertAllBestEffort(ctx context.Context, from, to string, values ...*decimal.Decimal) (degraded bool, note string) {
	if from == to {
		return false, ""
	}
	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		c.warnFallback(from, to, err)
		return true, fmt.Sprintf("currency conversion %s->%s failed, prices left in %s: %v", from, to, from, err)
	}
	for _, v := range values {
		*v = v.Mul(rate)
	}
	return false, ""
}

func (c *Converter) warnFallback(from, to string, err error) {
	metrics.RecordDegraded("fx_fallback")
	c.logger.Printf("currency conversion fallback from=%s to=%s error=%v", from, to, err)
}
