package sentiment

import (
	"gold-monitor/internal/models"

	"github.com/shopspring/decimal"
)

// Weights of the short-term change and the longer trend in the combined score.
const (
	dailyWeight = 0.3
	trendWeight = 0.7
)

// Result is what the dashboard gauge shows.
type Result struct {
	Label         string  `json:"label"`
	Description   string  `json:"description"`
	Gauge         int     `json:"gauge"`
	TrendPercent  float64 `json:"trendPercent"`
	ChangePercent float64 `json:"changePercent"`
	Combined      float64 `json:"combined"`
	Days          int     `json:"days"`

	// Unset when the series is shorter than the indicator period.
	MA7   *float64 `json:"ma7,omitempty"`
	RSI14 *float64 `json:"rsi14,omitempty"`
}

// TrendPercent is the change from the first to the last point of an ascending series.
func TrendPercent(series []models.HistoricalPoint) float64 {
	if len(series) < 2 {
		return 0
	}
	oldest, newest := series[0].Price, series[len(series)-1].Price
	if oldest.IsZero() {
		return 0
	}
	return newest.Sub(oldest).Div(oldest).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// Analyze blends the latest change percent with the series trend and grades it.
func Analyze(changePercent float64, series []models.HistoricalPoint) Result {
	trend := TrendPercent(series)
	combined := changePercent*dailyWeight + trend*trendWeight

	score := combined
	if score == 0 {
		score = changePercent
	}

	r := Result{
		TrendPercent:  trend,
		ChangePercent: changePercent,
		Combined:      combined,
		Days:          len(series),
	}
	prices := closes(series)
	if ma, ok := MovingAverage(prices, maPeriod); ok {
		r.MA7 = &ma
	}
	if rsi, ok := RSI(prices, rsiPeriod); ok {
		r.RSI14 = &rsi
	}
	switch {
	case score > 2:
		r.Label, r.Description, r.Gauge = "Strong Bullish", "Strong upward momentum", 90
	case score > 0.5:
		r.Label, r.Description, r.Gauge = "Bullish", "Positive price movement", 70
	case score < -2:
		r.Label, r.Description, r.Gauge = "Strong Bearish", "Strong downward pressure", 10
	case score < -0.5:
		r.Label, r.Description, r.Gauge = "Bearish", "Negative price movement", 30
	default:
		r.Label, r.Description, r.Gauge = "Neutral", "Stable, no clear trend", 50
	}
	return r
}
