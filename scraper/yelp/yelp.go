package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	"golang.org/x/oauth2"

	"yelp-pins/config"
	"yelp-pins/metrics"
	"yelp-pins/models"
	"yelp-pins/utils"
)

// maxBodyBytes caps how much of a search response is read.
const maxBodyBytes = 8 << 20

// Client issues signed search requests against the Yelp v2 API.
type Client struct {
	cfg     *config.Config
	logger  *utils.Logger
	metrics *metrics.Metrics
	http    *http.Client
	retry   *utils.RetryConfig
}

// New creates a Client whose HTTP transport signs every request according
// to cfg.AuthMode.
func New(cfg *config.Config, logger *utils.Logger, m *metrics.Metrics) *Client {
	logger = logger.With("yelp")
	return &Client{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		http:    newHTTPClient(cfg),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
			Retryable:   retryable,
		},
	}
}

func newHTTPClient(cfg *config.Config) *http.Client {
	var c *http.Client
	switch cfg.AuthMode {
	case config.AuthBearer:
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
		c = oauth2.NewClient(context.Background(), src)
	default:
		oc := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
		c = oc.Client(oauth1.NoContext, oauth1.NewToken(cfg.Token, cfg.TokenSecret))
	}
	c.Timeout = cfg.HTTPTimeout
	return c
}

// retryable reports whether another attempt could succeed: transport
// failures, throttling and server errors.
func retryable(err error) bool {
	var fe *models.FetchError
	if !errors.As(err, &fe) {
		return true
	}
	if errors.Is(fe.Err, context.Canceled) {
		return false
	}
	return fe.StatusCode == 0 || fe.StatusCode == http.StatusTooManyRequests || fe.StatusCode >= 500
}

// SearchParams builds the query for one location. The "search" mode sends
// categories/radius, the "filter" mode category_filter/radius_filter.
func (c *Client) SearchParams(loc models.SearchLocation) url.Values {
	params := url.Values{}
	ll := formatCoord(loc.Latitude) + "," + formatCoord(loc.Longitude)
	params.Set("ll", ll)

	switch c.cfg.SearchMode {
	case config.SearchModeFilter:
		params.Set("category_filter", c.cfg.SearchCategory)
		params.Set("radius_filter", c.cfg.SearchRadius)
	default:
		params.Set("categories", c.cfg.SearchCategory)
		params.Set("radius", c.cfg.SearchRadius)
	}
	return params
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Search performs a single search request for loc.
func (c *Client) Search(ctx context.Context, loc models.SearchLocation) (*models.SearchResponse, error) {
	u, err := url.Parse(c.cfg.SearchURL)
	if err != nil {
		return nil, &models.FetchError{Location: loc, Err: fmt.Errorf("parse search url: %w", err)}
	}
	q := u.Query()
	for k, v := range c.SearchParams(loc) {
		q[k] = v
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &models.FetchError{Location: loc, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.do(req, loc)
	if c.metrics != nil {
		c.metrics.ObserveSearch(start, err)
	}
	return resp, err
}

func (c *Client) do(req *http.Request, loc models.SearchLocation) (*models.SearchResponse, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, &models.FetchError{Location: loc, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.FetchError{Location: loc, StatusCode: res.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var out models.SearchResponse
	decodeErr := json.Unmarshal(body, &out)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := http.StatusText(res.StatusCode)
		if decodeErr == nil && out.Error != nil {
			msg = out.Error.ID + ": " + out.Error.Text
		}
		return nil, &models.FetchError{Location: loc, StatusCode: res.StatusCode, Err: errors.New(msg)}
	}
	if decodeErr != nil {
		return nil, &models.FetchError{Location: loc, StatusCode: res.StatusCode, Err: fmt.Errorf("decode body: %w", decodeErr)}
	}
	return &out, nil
}

// FetchAll searches every location, spacing request starts by the
// configured interval, and returns the responses in location order.
// Under the abort policy the first failure cancels outstanding searches;
// under skip the failed location is logged and left out.
func (c *Client) FetchAll(ctx context.Context, locs []models.SearchLocation) ([]*models.SearchResponse, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := utils.NewWorkerPool(c.cfg.MaxConcurrency, c.cfg.RequestInterval)
	results := make([]*models.SearchResponse, len(locs))

	var mu sync.Mutex
	var firstErr error

	for i, loc := range locs {
		i, loc := i, loc
		pool.Submit(runCtx, func() {
			c.logger.Info("Searching %s around (%v, %v)", c.cfg.SearchCategory, loc.Latitude, loc.Longitude)

			var resp *models.SearchResponse
			err := c.retry.Do(runCtx, "search", func() error {
				var err error
				resp, err = c.Search(runCtx, loc)
				return err
			})
			if err != nil {
				if c.cfg.SkipErrors() {
					c.logger.Warn("Skipping location (%v, %v): %v", loc.Latitude, loc.Longitude, err)
					return
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}

			c.logger.Info("Location (%v, %v): %d businesses", loc.Latitude, loc.Longitude, len(resp.Businesses))
			results[i] = resp
		})
	}
	pool.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.SearchResponse, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// Flatten collects the businesses of all responses in order. With dedupe
// set, a business id seen in an earlier response is dropped.
func Flatten(responses []*models.SearchResponse, dedupe bool) []models.Business {
	seen := utils.NewIDSet()
	var out []models.Business
	for _, r := range responses {
		for _, b := range r.Businesses {
			if dedupe && b.ID != "" && !seen.Add(b.ID) {
				continue
			}
			out = append(out, b)
		}
	}
	return out
}
