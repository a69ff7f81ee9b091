package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/models"
	"gold-monitor/internal/services/convert"
	"gold-monitor/internal/services/news"
	"gold-monitor/internal/services/sentiment"

	"github.com/gin-gonic/gin"
)

const (
	typeCurrent         = "current"
	typeHistorical      = "historical"
	typeHistoricalRange = "historical-range"

	defaultDays = 30
	maxDays     = 60
)

type priceQuery struct {
	Metal    string `form:"metal"`
	Currency string `form:"currency" binding:"omitempty,alpha,len=3"`
	Unit     string `form:"unit"`
	Type     string `form:"type"`
	Date     string `form:"date"`
	// Kept as a string: a non-numeric value means the default, not a 400.
	Days string `form:"days"`
}

type sentimentQuery struct {
	Currency string `form:"currency" binding:"omitempty,alpha,len=3"`
	Days     string `form:"days"`
}

// priceRequest is a validated priceQuery with defaults applied.
type priceRequest struct {
	kind     string
	metal    models.Metal
	currency string
	unit     models.Unit
	date     models.Date
	days     int
}

func parsePriceRequest(c *gin.Context) (priceRequest, error) {
	var q priceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return priceRequest{}, apperr.Wrap(apperr.KindInvalidParameter, err, "Invalid currency parameter")
	}

	req := priceRequest{
		kind:     strings.ToLower(defaultString(q.Type, typeCurrent)),
		currency: models.NormalizeCurrency(defaultString(q.Currency, "USD")),
		unit:     models.NormalizeUnit(defaultString(q.Unit, string(models.Ounce))),
		days:     clampDays(q.Days),
	}

	metal, ok := models.ParseMetal(defaultString(q.Metal, string(models.Gold)))
	if !ok {
		return priceRequest{}, apperr.New(apperr.KindInvalidParameter, "Invalid metal parameter: %s", q.Metal)
	}
	req.metal = metal

	if !convert.IsSupportedUnit(req.unit) {
		return priceRequest{}, apperr.New(apperr.KindInvalidParameter, "Invalid unit parameter: %s", q.Unit)
	}

	switch req.kind {
	case typeCurrent, typeHistoricalRange:
	case typeHistorical:
		if strings.TrimSpace(q.Date) == "" {
			return priceRequest{}, apperr.New(apperr.KindInvalidParameter, "Date parameter is required")
		}
		date, err := models.ParseDate(q.Date)
		if err != nil {
			return priceRequest{}, apperr.Wrap(apperr.KindInvalidParameter, err, "Invalid date parameter, expected YYYYMMDD")
		}
		req.date = date
	default:
		return priceRequest{}, apperr.New(apperr.KindInvalidParameter, "Invalid type parameter")
	}
	return req, nil
}

// clampDays maps the days parameter into [1, maxDays]; empty or non-numeric means defaultDays.
func clampDays(s string) int {
	days, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultDays
	}
	if days < 1 {
		return 1
	}
	if days > maxDays {
		return maxDays
	}
	return days
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// GetPrice serves current, historical and historical-range prices.
func (h *APIHandler) GetPrice(c *gin.Context) {
	req, err := parsePriceRequest(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var res loadResult
	switch req.kind {
	case typeCurrent:
		res, err = h.loadCurrent(c.Request.Context(), req.metal, req.currency, req.unit)
	case typeHistorical:
		res, err = h.loadHistorical(c.Request.Context(), req.metal, req.currency, req.unit, req.date)
	case typeHistoricalRange:
		res, err = h.loadRange(c.Request.Context(), req.metal, req.currency, req.unit, req.days)
		if err == nil {
			res = seriesResult(res)
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, "data", res)
}

func (h *APIHandler) loadCurrent(ctx context.Context, metal models.Metal, currency string, unit models.Unit) (loadResult, error) {
	key := fmt.Sprintf("current:%s:%s:%s", metal, currency, unit)
	return h.load(ctx, "current", key, currentTTL, func(ctx context.Context) (any, error) {
		return h.prices.GetPriceWithConversion(ctx, metal, h.baseCurrency, currency, unit)
	})
}

func (h *APIHandler) loadHistorical(ctx context.Context, metal models.Metal, currency string, unit models.Unit, date models.Date) (loadResult, error) {
	key := fmt.Sprintf("historical:%s:%s:%s:%s", metal, currency, unit, date.Compact())
	return h.load(ctx, "historical", key, historicalTTL, func(ctx context.Context) (any, error) {
		snap, err := h.prices.GetHistoricalPrice(ctx, metal, h.baseCurrency, date)
		if err != nil {
			return nil, err
		}
		if err := h.prices.ConvertSnapshot(ctx, snap, currency, unit); err != nil {
			return nil, err
		}
		return snap, nil
	})
}

func (h *APIHandler) loadRange(ctx context.Context, metal models.Metal, currency string, unit models.Unit, days int) (loadResult, error) {
	key := fmt.Sprintf("range:%s:%s:%s:%d", metal, currency, unit, days)
	return h.load(ctx, "range", key, rangeTTL, func(ctx context.Context) (any, error) {
		points, err := h.prices.GetHistoricalData(ctx, metal, h.baseCurrency, days)
		if err != nil {
			return nil, err
		}
		series := &models.HistoricalSeries{Metal: metal, Currency: currency, Unit: unit, Days: days, Points: points}
		degraded, note, err := h.prices.ConvertSeries(ctx, series.Points, h.baseCurrency, currency, unit)
		if err != nil {
			return nil, err
		}
		if degraded {
			series.Degraded = true
			series.Notes = append(series.Notes, note)
		}
		return series, nil
	})
}

// seriesResult serves a range as a bare oldest-first array of points and lifts the
// degradation flag into the envelope.
func seriesResult(res loadResult) loadResult {
	series := res.value.(*models.HistoricalSeries)
	points := series.Points
	if points == nil {
		points = []models.HistoricalPoint{}
	}
	res.value = points
	res.degraded = series.Degraded
	res.notes = series.Notes
	return res
}

// GetMultiPrice returns the current price in every multi-currency quote that succeeded.
func (h *APIHandler) GetMultiPrice(c *gin.Context) {
	metal, ok := models.ParseMetal(c.DefaultQuery("metal", string(models.Gold)))
	if !ok {
		h.fail(c, apperr.New(apperr.KindInvalidParameter, "Invalid metal parameter: %s", c.Query("metal")))
		return
	}
	unit := models.NormalizeUnit(c.DefaultQuery("unit", string(models.Ounce)))
	if !convert.IsSupportedUnit(unit) {
		h.fail(c, apperr.New(apperr.KindInvalidParameter, "Invalid unit parameter: %s", c.Query("unit")))
		return
	}

	key := fmt.Sprintf("multi:%s:%s", metal, unit)
	res, err := h.load(c.Request.Context(), "multi", key, multiTTL, func(ctx context.Context) (any, error) {
		snaps := h.prices.GetMultiCurrencyPrice(ctx, metal)
		for _, snap := range snaps {
			if err := h.prices.ConvertSnapshot(ctx, snap, snap.Currency, unit); err != nil {
				return nil, err
			}
		}
		return snaps, nil
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, "data", res)
}

func (h *APIHandler) GetNews(c *gin.Context) {
	res, err := h.load(c.Request.Context(), "news", "gold_news", newsTTL, func(ctx context.Context) (any, error) {
		return h.news.Search(ctx, news.DefaultQuery, news.DefaultMax)
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respond(c, "articles", res)
}

// GetSentiment grades the market from the cached current price and range.
func (h *APIHandler) GetSentiment(c *gin.Context) {
	metal, ok := models.ParseMetal(c.DefaultQuery("metal", string(models.Gold)))
	if !ok {
		h.fail(c, apperr.New(apperr.KindInvalidParameter, "Invalid metal parameter: %s", c.Query("metal")))
		return
	}
	var q sentimentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, apperr.Wrap(apperr.KindInvalidParameter, err, "Invalid currency parameter"))
		return
	}
	currency := models.NormalizeCurrency(defaultString(q.Currency, "USD"))
	days := clampDays(q.Days)
	ctx := c.Request.Context()

	current, err := h.loadCurrent(ctx, metal, currency, models.Ounce)
	if err != nil {
		h.fail(c, err)
		return
	}
	history, err := h.loadRange(ctx, metal, currency, models.Ounce, days)
	if err != nil {
		h.fail(c, err)
		return
	}

	snap := current.value.(*models.PriceSnapshot)
	series := history.value.(*models.HistoricalSeries)
	result := sentiment.Analyze(snap.ChangePercent.InexactFloat64(), series.Points)

	res := loadResult{value: result, cached: current.cached && history.cached}
	if res.cached {
		res.age = max(current.age, history.age)
		res.expiresIn = min(current.expiresIn, history.expiresIn)
	}
	h.respond(c, "data", res)
}
