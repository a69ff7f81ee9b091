package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/cache"
	"gold-monitor/internal/config"
	"gold-monitor/internal/metrics"
	"gold-monitor/internal/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

const (
	currentTTL    = 24 * time.Hour
	historicalTTL = 30 * 24 * time.Hour
	rangeTTL      = 24 * time.Hour
	multiTTL      = 24 * time.Hour
	newsTTL       = time.Hour
)

// PriceService is what the handlers need from the GoldAPI client.
type PriceService interface {
	GetPriceWithConversion(ctx context.Context, metal models.Metal, base, target string, unit models.Unit) (*models.PriceSnapshot, error)
	GetHistoricalPrice(ctx context.Context, metal models.Metal, currency string, date models.Date) (*models.PriceSnapshot, error)
	GetHistoricalData(ctx context.Context, metal models.Metal, currency string, days int) ([]models.HistoricalPoint, error)
	GetMultiCurrencyPrice(ctx context.Context, metal models.Metal) []*models.PriceSnapshot
	ConvertSnapshot(ctx context.Context, snap *models.PriceSnapshot, target string, unit models.Unit) error
	ConvertSeries(ctx context.Context, series []models.HistoricalPoint, base, target string, unit models.Unit) (bool, string, error)
}

type NewsSearcher interface {
	Search(ctx context.Context, query string, max int) ([]models.NewsArticle, error)
}

type APIHandler struct {
	store        *cache.Cache
	prices       PriceService
	news         NewsSearcher
	baseCurrency string
	// nil unless CACHE_SINGLEFLIGHT is on
	flight *singleflight.Group
	now    func() time.Time
	logger *log.Logger
}

type Option func(*APIHandler)

// WithClock sets the clock behind envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *APIHandler) {
		h.now = now
	}
}

func SetupRoutes(r *gin.RouterGroup, store *cache.Cache, prices PriceService, news NewsSearcher, cfg *config.Config, opts ...Option) *APIHandler {
	handler := &APIHandler{
		store:        store,
		prices:       prices,
		news:         news,
		baseCurrency: cfg.BaseCurrency,
		now:          time.Now,
		logger:       log.New(os.Stdout, "[API] ", log.LstdFlags),
	}
	if cfg.CacheSingleflight {
		handler.flight = &singleflight.Group{}
	}
	for _, opt := range opts {
		opt(handler)
	}

	// Prices
	r.GET("/price", handler.GetPrice)
	r.GET("/price/multi", handler.GetMultiPrice)

	// Dashboard extras
	r.GET("/news", handler.GetNews)
	r.GET("/sentiment", handler.GetSentiment)

	return handler
}

// loadResult is a value plus where it came from.
type loadResult struct {
	value     any
	cached    bool
	age       time.Duration
	expiresIn time.Duration

	// Set for best-effort payloads that carry no flag of their own.
	degraded bool
	notes    []string
}

// load returns the cached value under key or calls fetch and caches its result for ttl.
// Failed fetches are not cached.
func (h *APIHandler) load(ctx context.Context, purpose, key string, ttl time.Duration, fetch func(context.Context) (any, error)) (loadResult, error) {
	if res, ok := h.lookup(key); ok {
		metrics.RecordCacheHit(purpose)
		return res, nil
	}
	metrics.RecordCacheMiss(purpose)

	fetchAndStore := func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		h.store.Set(key, v, ttl)
		return v, nil
	}

	if h.flight == nil {
		v, err := fetchAndStore(ctx)
		if err != nil {
			return loadResult{}, err
		}
		return loadResult{value: v}, nil
	}

	v, err, _ := h.flight.Do(key, func() (any, error) {
		// A call that finished between our miss and Do has already stored the value.
		if v, ok := h.store.Get(key); ok {
			return v, nil
		}
		// The fetch is shared, so one caller going away must not fail the others.
		// The upstream client timeout still bounds it.
		return fetchAndStore(context.WithoutCancel(ctx))
	})
	if err != nil {
		return loadResult{}, err
	}
	return loadResult{value: v}, nil
}

func (h *APIHandler) lookup(key string) (loadResult, bool) {
	v, ok := h.store.Get(key)
	if !ok {
		return loadResult{}, false
	}
	age, _ := h.store.Age(key)
	left, _ := h.store.TimeUntilExpiry(key)
	return loadResult{value: v, cached: true, age: age, expiresIn: left}, true
}

// respond writes the success envelope with the payload under field.
func (h *APIHandler) respond(c *gin.Context, field string, res loadResult) {
	body := gin.H{
		"success":   true,
		field:       res.value,
		"cached":    res.cached,
		"timestamp": h.now().UnixMilli(),
	}
	if res.cached {
		body["cacheAge"] = int64(res.age / time.Second)
		body["expiresIn"] = int64(res.expiresIn / time.Second)
	}
	if res.degraded {
		body["degraded"] = true
		body["notes"] = res.notes
	}
	c.JSON(http.StatusOK, body)
}

func (h *APIHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Printf("[%s] %s %s failed: %v", requestID(c), c.Request.Method, c.Request.URL.RequestURI(), err)
	}
	c.JSON(status, gin.H{
		"success":   false,
		"error":     err.Error(),
		"cached":    false,
		"timestamp": h.now().UnixMilli(),
	})
}

func statusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidParameter, apperr.KindUnsupportedUnit:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
