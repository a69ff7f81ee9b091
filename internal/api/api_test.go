package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/cache"
	"gold-monitor/internal/config"
	"gold-monitor/internal/models"
	"gold-monitor/internal/services/goldapi"
	"gold-monitor/internal/services/sentiment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakePrices answers every call with fixed data and counts upstream-equivalent calls.
type fakePrices struct {
	calls   atomic.Int32
	err     error
	release chan struct{}

	mu       sync.Mutex
	lastDays int
}

func (f *fakePrices) GetPriceWithConversion(ctx context.Context, metal models.Metal, _, target string, unit models.Unit) (*models.PriceSnapshot, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.PriceSnapshot{
		Metal:         metal,
		Currency:      target,
		Unit:          unit,
		Price:         decimal.NewFromInt(2050),
		ChangePercent: decimal.NewFromInt(1),
	}, nil
}

func (f *fakePrices) GetHistoricalPrice(_ context.Context, metal models.Metal, currency string, date models.Date) (*models.PriceSnapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	resolved := date
	return &models.PriceSnapshot{
		Metal:         metal,
		Currency:      currency,
		Unit:          models.Ounce,
		Price:         decimal.NewFromInt(1900),
		RequestedDate: &date,
		ResolvedDate:  &resolved,
	}, nil
}

func (f *fakePrices) GetHistoricalData(_ context.Context, _ models.Metal, _ string, days int) ([]models.HistoricalPoint, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastDays = days
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n := min(days, 5)
	points := make([]models.HistoricalPoint, n)
	for i := range points {
		points[i] = models.HistoricalPoint{Date: models.NewDate(2024, 1, i+1), Price: decimal.NewFromInt(int64(100 + i))}
	}
	return points, nil
}

func (f *fakePrices) GetMultiCurrencyPrice(_ context.Context, metal models.Metal) []*models.PriceSnapshot {
	f.calls.Add(1)
	return []*models.PriceSnapshot{
		{Metal: metal, Currency: "USD", Unit: models.Ounce, Price: decimal.NewFromInt(2050)},
		{Metal: metal, Currency: "GBP", Unit: models.Ounce, Price: decimal.NewFromInt(1610)},
	}
}

func (f *fakePrices) ConvertSnapshot(_ context.Context, snap *models.PriceSnapshot, target string, unit models.Unit) error {
	snap.Currency = target
	snap.Unit = unit
	return nil
}

func (f *fakePrices) ConvertSeries(_ context.Context, _ []models.HistoricalPoint, base, target string, _ models.Unit) (bool, string, error) {
	if base != target {
		return true, "currency conversion failed", nil
	}
	return false, "", nil
}

func (f *fakePrices) days() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDays
}

type fakeNews struct {
	calls    atomic.Int32
	articles []models.NewsArticle
	err      error
}

func (f *fakeNews) Search(context.Context, string, int) ([]models.NewsArticle, error) {
	f.calls.Add(1)
	return f.articles, f.err
}

type envelope struct {
	Success   bool                 `json:"success"`
	Data      json.RawMessage      `json:"data"`
	Articles  []models.NewsArticle `json:"articles"`
	Error     string               `json:"error"`
	Cached    bool                 `json:"cached"`
	CacheAge  *int64               `json:"cacheAge"`
	ExpiresIn *int64               `json:"expiresIn"`
	Degraded  bool                 `json:"degraded"`
	Notes     []string             `json:"notes"`
	Timestamp int64                `json:"timestamp"`
}

func newTestRouter(prices PriceService, news NewsSearcher, cfg *config.Config) (*gin.Engine, *testClock) {
	gin.SetMode(gin.TestMode)
	clock := &testClock{t: time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)}
	store := cache.New(cache.WithClock(clock.Now))

	r := gin.New()
	r.Use(RequestID(), CORS())
	SetupRoutes(r.Group("/api/v1"), store, prices, news, cfg, WithClock(clock.Now))
	return r, clock
}

func testConfig() *config.Config {
	return &config.Config{BaseCurrency: "USD"}
}

func get(t *testing.T, r http.Handler, path string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestCurrentPriceCachedOnSecondRequest(t *testing.T) {
	prices := &fakePrices{}
	r, clock := newTestRouter(prices, &fakeNews{}, testConfig())

	w, body := get(t, r, "/api/v1/price?type=current&metal=XAU&currency=USD&unit=oz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.False(t, body.Cached)
	assert.Nil(t, body.CacheAge)
	assert.Equal(t, clock.Now().UnixMilli(), body.Timestamp)

	var snap models.PriceSnapshot
	require.NoError(t, json.Unmarshal(body.Data, &snap))
	assert.Equal(t, "2050", snap.Price.String())

	_, body = get(t, r, "/api/v1/price?type=current&metal=XAU&currency=USD&unit=oz")
	assert.True(t, body.Cached)
	require.NotNil(t, body.CacheAge)
	require.NotNil(t, body.ExpiresIn)
	assert.Equal(t, int64(0), *body.CacheAge)
	assert.Equal(t, int64(86400), *body.ExpiresIn)
	assert.Equal(t, int32(1), prices.calls.Load())
}

func TestCurrentPriceDefaults(t *testing.T) {
	prices := &fakePrices{}
	r, _ := newTestRouter(prices, &fakeNews{}, testConfig())

	_, body := get(t, r, "/api/v1/price")
	require.True(t, body.Success)
	var snap models.PriceSnapshot
	require.NoError(t, json.Unmarshal(body.Data, &snap))
	assert.Equal(t, models.Gold, snap.Metal)
	assert.Equal(t, "USD", snap.Currency)
	assert.Equal(t, models.Ounce, snap.Unit)

	// Same key after normalization.
	_, body = get(t, r, "/api/v1/price?metal=xau&currency=usd&unit=OZ&type=current")
	assert.True(t, body.Cached)
}

func TestCacheAgeAndExpiry(t *testing.T) {
	prices := &fakePrices{}
	r, clock := newTestRouter(prices, &fakeNews{}, testConfig())

	get(t, r, "/api/v1/price")
	clock.Advance(90*time.Minute + 500*time.Millisecond)

	_, body := get(t, r, "/api/v1/price")
	require.True(t, body.Cached)
	assert.Equal(t, int64(5400), *body.CacheAge)
	assert.Equal(t, int64(86400-5401), *body.ExpiresIn)

	clock.Advance(24 * time.Hour)
	_, body = get(t, r, "/api/v1/price")
	assert.False(t, body.Cached)
	assert.Equal(t, int32(2), prices.calls.Load())
}

func TestCurrentPriceEndToEnd(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/timeseries/XAU/USD", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"date":"2024-01-05","price":2050.5},{"date":"2024-01-04","price":"2040.5"}]}`)
	}))
	defer upstream.Close()

	client := goldapi.NewClient(upstream.URL, "test-key", time.Second, nil)
	r, _ := newTestRouter(client, &fakeNews{}, testConfig())

	_, body := get(t, r, "/api/v1/price?type=current&metal=XAU&currency=USD&unit=oz")
	require.True(t, body.Success, body.Error)
	assert.False(t, body.Cached)
	assert.Equal(t, int32(1), hits.Load())

	var snap models.PriceSnapshot
	require.NoError(t, json.Unmarshal(body.Data, &snap))
	assert.Equal(t, "2050.5", snap.Price.String())
	assert.Equal(t, "10", snap.Change.String())

	_, body = get(t, r, "/api/v1/price?type=current&metal=XAU&currency=USD&unit=oz")
	assert.True(t, body.Cached)
	assert.Equal(t, int64(0), *body.CacheAge)
	assert.Equal(t, int64(86400), *body.ExpiresIn)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHistoricalPrice(t *testing.T) {
	prices := &fakePrices{}
	r, _ := newTestRouter(prices, &fakeNews{}, testConfig())

	w, body := get(t, r, "/api/v1/price?type=historical&date=2024-01-03&currency=EUR")
	require.Equal(t, http.StatusOK, w.Code)
	var snap models.PriceSnapshot
	require.NoError(t, json.Unmarshal(body.Data, &snap))
	assert.Equal(t, "EUR", snap.Currency)
	require.NotNil(t, snap.RequestedDate)
	assert.Equal(t, "2024-01-03", snap.RequestedDate.String())

	// The compact form shares the cache entry.
	_, body = get(t, r, "/api/v1/price?type=historical&date=20240103&currency=EUR")
	assert.True(t, body.Cached)
	assert.Equal(t, int64(30*24*3600), *body.ExpiresIn)
	assert.Equal(t, int32(1), prices.calls.Load())
}

func TestHistoricalRange(t *testing.T) {
	tests := []struct {
		name string
		days string
		want int
	}{
		{"default", "", 30},
		{"non-numeric", "abc", 30},
		{"clamped high", "500", 60},
		{"clamped low", "0", 1},
		{"in range", "7", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := &fakePrices{}
			r, _ := newTestRouter(prices, &fakeNews{}, testConfig())

			_, body := get(t, r, "/api/v1/price?type=historical-range&days="+tt.days)
			require.True(t, body.Success, body.Error)
			assert.Equal(t, tt.want, prices.days())

			var points []models.HistoricalPoint
			require.NoError(t, json.Unmarshal(body.Data, &points), string(body.Data))
			assert.Len(t, points, min(tt.want, 5))
			for i := 1; i < len(points); i++ {
				assert.True(t, points[i-1].Date.Before(points[i].Date), "oldest first")
			}
			assert.False(t, body.Degraded)
			assert.Nil(t, body.Notes)
		})
	}
}

func TestHistoricalRangeDataIsPointArray(t *testing.T) {
	r, _ := newTestRouter(&fakePrices{}, &fakeNews{}, testConfig())

	_, body := get(t, r, "/api/v1/price?type=historical-range&days=3")
	require.True(t, body.Success, body.Error)

	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body.Data, &raw), string(body.Data))
	require.Len(t, raw, 3)
	assert.Len(t, raw[0], 2)
	assert.Contains(t, raw[0], "date")
	assert.Contains(t, raw[0], "price")
}

func TestHistoricalRangeMarksDegradedConversion(t *testing.T) {
	r, _ := newTestRouter(&fakePrices{}, &fakeNews{}, testConfig())

	_, body := get(t, r, "/api/v1/price?type=historical-range&currency=EUR")
	require.True(t, body.Success, body.Error)
	var points []models.HistoricalPoint
	require.NoError(t, json.Unmarshal(body.Data, &points))
	assert.NotEmpty(t, points)
	assert.True(t, body.Degraded)
	assert.Equal(t, []string{"currency conversion failed"}, body.Notes)

	// A cache hit carries the same flag.
	_, body = get(t, r, "/api/v1/price?type=historical-range&currency=EUR")
	assert.True(t, body.Cached)
	assert.True(t, body.Degraded)
}

func TestInvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   string
	}{
		{"unknown type", "type=weekly", "Invalid type parameter"},
		{"missing date", "type=historical", "Date parameter is required"},
		{"bad date", "type=historical&date=2024-13-45", "Invalid date parameter"},
		{"unknown metal", "metal=XXX", "Invalid metal parameter"},
		{"unknown unit", "unit=stone", "Invalid unit parameter"},
		{"malformed currency", "currency=US1", "Invalid currency parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := &fakePrices{}
			r, _ := newTestRouter(prices, &fakeNews{}, testConfig())

			w, body := get(t, r, "/api/v1/price?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, body.Success)
			assert.Contains(t, body.Error, tt.err)
			assert.NotZero(t, body.Timestamp)
			assert.Equal(t, int32(0), prices.calls.Load())
		})
	}
}

func TestUpstreamFailureIsNotCached(t *testing.T) {
	prices := &fakePrices{err: apperr.Upstream(http.StatusTooManyRequests, "GoldAPI Error: 429 Too Many Requests")}
	r, _ := newTestRouter(prices, &fakeNews{}, testConfig())

	w, body := get(t, r, "/api/v1/price")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "GoldAPI Error: 429 Too Many Requests", body.Error)
	assert.Nil(t, body.Data)

	get(t, r, "/api/v1/price")
	assert.Equal(t, int32(2), prices.calls.Load())
}

func TestSingleflightCollapsesColdMisses(t *testing.T) {
	prices := &fakePrices{release: make(chan struct{})}
	cfg := testConfig()
	cfg.CacheSingleflight = true
	r, _ := newTestRouter(prices, &fakeNews{}, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/price", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(prices.release)
	wg.Wait()

	assert.Equal(t, int32(1), prices.calls.Load())
}

func TestSingleflightSurvivesLeaderDisconnect(t *testing.T) {
	prices := &fakePrices{release: make(chan struct{})}
	cfg := testConfig()
	cfg.CacheSingleflight = true
	r, _ := newTestRouter(prices, &fakeNews{}, cfg)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/price", nil).WithContext(leaderCtx)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}()
	require.Eventually(t, func() bool { return prices.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	follower := httptest.NewRecorder()
	followerDone := make(chan struct{})
	go func() {
		defer close(followerDone)
		r.ServeHTTP(follower, httptest.NewRequest(http.MethodGet, "/api/v1/price", nil))
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	time.Sleep(20 * time.Millisecond)
	close(prices.release)
	<-leaderDone
	<-followerDone

	assert.Equal(t, http.StatusOK, follower.Code, follower.Body.String())
	assert.Equal(t, int32(1), prices.calls.Load())
}

func TestMultiPrice(t *testing.T) {
	prices := &fakePrices{}
	r, _ := newTestRouter(prices, &fakeNews{}, testConfig())

	_, body := get(t, r, "/api/v1/price/multi?metal=XAU&unit=gram")
	require.True(t, body.Success)
	var snaps []models.PriceSnapshot
	require.NoError(t, json.Unmarshal(body.Data, &snaps))
	require.Len(t, snaps, 2)
	assert.Equal(t, "GBP", snaps[1].Currency)
	assert.Equal(t, models.Gram, snaps[1].Unit)

	_, body = get(t, r, "/api/v1/price/multi?metal=XAU&unit=gram")
	assert.True(t, body.Cached)
}

func TestNews(t *testing.T) {
	news := &fakeNews{articles: []models.NewsArticle{{Title: "Gold climbs", URL: "https://example.com/a", Source: "Wire"}}}
	r, _ := newTestRouter(&fakePrices{}, news, testConfig())

	_, body := get(t, r, "/api/v1/news")
	require.True(t, body.Success)
	assert.False(t, body.Cached)
	require.Len(t, body.Articles, 1)
	assert.Equal(t, "Gold climbs", body.Articles[0].Title)

	_, body = get(t, r, "/api/v1/news")
	assert.True(t, body.Cached)
	assert.Equal(t, int64(3600), *body.ExpiresIn)
	assert.Equal(t, int32(1), news.calls.Load())
}

func TestNewsNotConfigured(t *testing.T) {
	news := &fakeNews{err: apperr.New(apperr.KindUpstream, "API key not configured")}
	r, _ := newTestRouter(&fakePrices{}, news, testConfig())

	w, body := get(t, r, "/api/v1/news")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "API key not configured", body.Error)
}

func TestSentiment(t *testing.T) {
	prices := &fakePrices{}
	r, _ := newTestRouter(prices, &fakeNews{}, testConfig())

	_, body := get(t, r, "/api/v1/sentiment?metal=XAU&currency=USD")
	require.True(t, body.Success, body.Error)
	assert.False(t, body.Cached)

	var result sentiment.Result
	require.NoError(t, json.Unmarshal(body.Data, &result))
	// 100 -> 104 over five points is a 4% trend; 1*0.3 + 4*0.7 = 3.1.
	assert.Equal(t, "Strong Bullish", result.Label)
	assert.Equal(t, 90, result.Gauge)
	assert.Equal(t, 5, result.Days)

	// Reuses the price endpoint's cache entries.
	_, body = get(t, r, "/api/v1/price?type=historical-range")
	assert.True(t, body.Cached)
	_, body = get(t, r, "/api/v1/sentiment?metal=XAU&currency=USD")
	assert.True(t, body.Cached)
	assert.Equal(t, int32(2), prices.calls.Load())
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(&fakePrices{}, &fakeNews{}, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/price", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	r, _ := newTestRouter(&fakePrices{}, &fakeNews{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/price", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w, _ = get(t, r, "/api/v1/price")
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}
