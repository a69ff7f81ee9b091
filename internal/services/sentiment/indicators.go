package sentiment

import "gold-monitor/internal/models"

const (
	maPeriod  = 7
	rsiPeriod = 14
)

// MovingAverage returns the simple average of the last period prices.
func MovingAverage(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	sum := 0.0
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period), true
}

// RSI returns the relative strength index at the last price, with Wilder smoothing
// after the first period changes.
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}
	p := float64(period)

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		if change := prices[i] - prices[i-1]; change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(prices); i++ {
		gain, loss := 0.0, 0.0
		if change := prices[i] - prices[i-1]; change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

func closes(series []models.HistoricalPoint) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Price.InexactFloat64()
	}
	return out
}
