package goldapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/metrics"
	"gold-monitor/internal/models"
	"gold-monitor/internal/services/convert"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Client reads daily price series from a GoldAPI-style upstream:
//
//	GET {base}/timeseries/{metal}/{currency}?days=N[&end=YYYY-MM-DD]
//	x-access-token: <key>
//
// The upstream answers newest-first. Prices may be numbers or numeric strings.
type Client struct {
	baseURL   string
	apiKey    string
	client    *resty.Client
	converter *convert.Converter
	logger    *log.Logger
}

type seriesResponse struct {
	Metal    string        `json:"metal"`
	Currency string        `json:"currency"`
	Data     []seriesPoint `json:"data"`
	Error    string        `json:"error"`
}

type seriesPoint struct {
	Date      string          `json:"date"`
	Price     json.RawMessage `json:"price"`
	Close     json.RawMessage `json:"close"`
	Ask       json.RawMessage `json:"ask"`
	Bid       json.RawMessage `json:"bid"`
	Timestamp int64           `json:"timestamp"`
}

// point is a seriesPoint with its date parsed. Price fields stay raw until used,
// so one malformed value does not spoil the whole series.
type point struct {
	date      models.Date
	price     json.RawMessage
	ask       json.RawMessage
	bid       json.RawMessage
	timestamp int64
}

func NewClient(baseURL, apiKey string, timeout time.Duration, converter *convert.Converter) *Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		client:    client,
		converter: converter,
		logger:    log.New(os.Stdout, "[GoldAPI] ", log.LstdFlags),
	}
}

// fetchSeries returns up to days points, newest-first, with unique dates.
// A nil end asks for the most recent window.
func (c *Client) fetchSeries(ctx context.Context, metal models.Metal, currency string, days int, end *models.Date) ([]point, error) {
	if c.apiKey == "" {
		return nil, apperr.New(apperr.KindUpstream, "GOLD_API_KEY is not configured")
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("x-access-token", c.apiKey).
		SetPathParams(map[string]string{"metal": string(metal), "currency": currency}).
		SetQueryParam("days", strconv.Itoa(days))
	if end != nil {
		req.SetQueryParam("end", end.String())
	}

	started := time.Now()
	resp, err := req.Get(c.baseURL + "/timeseries/{metal}/{currency}")
	if err != nil {
		metrics.ObserveUpstream("goldapi", started, err)
		return nil, apperr.Wrap(apperr.KindUpstream, err, "GoldAPI request failed")
	}
	if resp.StatusCode() != http.StatusOK {
		err = apperr.Upstream(resp.StatusCode(), "GoldAPI Error: %d %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
		metrics.ObserveUpstream("goldapi", started, err)
		return nil, err
	}

	var body seriesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		err = apperr.Wrap(apperr.KindUpstream, err, "GoldAPI returned malformed JSON")
		metrics.ObserveUpstream("goldapi", started, err)
		return nil, err
	}
	if body.Error != "" {
		err = apperr.New(apperr.KindUpstream, "GoldAPI Error: %s", body.Error)
		metrics.ObserveUpstream("goldapi", started, err)
		return nil, err
	}
	metrics.ObserveUpstream("goldapi", started, nil)

	return c.normalize(metal, body.Data), nil
}

func (c *Client) normalize(metal models.Metal, data []seriesPoint) []point {
	points := make([]point, 0, len(data))
	seen := make(map[string]bool, len(data))
	for _, sp := range data {
		d, err := models.ParseDate(sp.Date)
		if err != nil {
			c.logger.Printf("[%s] skipping point with bad date %q", metal, sp.Date)
			continue
		}
		if seen[d.String()] {
			continue
		}
		seen[d.String()] = true

		price := sp.Price
		if isEmpty(price) {
			price = sp.Close
		}
		points = append(points, point{date: d, price: price, ask: sp.Ask, bid: sp.Bid, timestamp: sp.Timestamp})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[j].date.Before(points[i].date)
	})
	return points
}

func isEmpty(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// parsePrice accepts a JSON number or a numeric string.
func parsePrice(raw json.RawMessage) (decimal.Decimal, bool) {
	if isEmpty(raw) {
		return decimal.Zero, false
	}
	s := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (p point) observedAt() time.Time {
	if p.timestamp > 0 {
		return time.Unix(p.timestamp, 0).UTC()
	}
	return p.date.Time
}
