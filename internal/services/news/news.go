package news

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gold-monitor/internal/apperr"
	"gold-monitor/internal/metrics"
	"gold-monitor/internal/models"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultQuery = "gold price market"
	DefaultMax   = 5
)

// Client searches GNews for gold market headlines.
type Client struct {
	baseURL string
	apiKey  string
	client  *resty.Client
}

type searchResponse struct {
	TotalArticles int `json:"totalArticles"`
	Articles      []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
	Errors []string `json:"errors"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetTimeout(timeout)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Search returns at most max English articles matching query.
func (c *Client) Search(ctx context.Context, query string, max int) ([]models.NewsArticle, error) {
	if !c.Configured() {
		return nil, apperr.New(apperr.KindUpstream, "API key not configured")
	}

	started := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      query,
			"lang":   "en",
			"max":    strconv.Itoa(max),
			"apikey": c.apiKey,
		}).
		Get(c.baseURL + "/search")
	if err != nil {
		metrics.ObserveUpstream("gnews", started, err)
		return nil, apperr.Wrap(apperr.KindUpstream, err, "GNews request failed")
	}
	if resp.StatusCode() != http.StatusOK {
		err = apperr.Upstream(resp.StatusCode(), "GNews API error: %d", resp.StatusCode())
		metrics.ObserveUpstream("gnews", started, err)
		return nil, err
	}

	var body searchResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		err = apperr.Wrap(apperr.KindUpstream, err, "GNews returned malformed JSON")
		metrics.ObserveUpstream("gnews", started, err)
		return nil, err
	}
	metrics.ObserveUpstream("gnews", started, nil)

	articles := make([]models.NewsArticle, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, models.NewsArticle{
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
			Description: a.Description,
		})
	}
	return articles, nil
}
