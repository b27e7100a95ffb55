package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/tle"
)

const (
	leoLabsTLEPath = "/catalog/tles"

	defaultLeoLabsTimeout           = 30 * time.Second
	defaultLeoLabsRequestsPerMinute = 60
)

// LeoLabsOptions configure the LeoLabs catalog client.
type LeoLabsOptions struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
}

// LeoLabsClient pulls the latest element sets from the LeoLabs API. The
// feed is JSON with the TLE lines embedded per object.
type LeoLabsClient struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

type leoLabsTLE struct {
	CatalogNumber int    `json:"catalogNumber"`
	Name          string `json:"name"`
	Line1         string `json:"line1"`
	Line2         string `json:"line2"`
}

type leoLabsTLEResponse struct {
	TLEs []leoLabsTLE `json:"tles"`
}

// NewLeoLabsClient creates a LeoLabs client authenticating with the
// account API key.
func NewLeoLabsClient(opts LeoLabsOptions, logger zerolog.Logger) *LeoLabsClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultLeoLabsTimeout
	}
	perMinute := opts.RequestsPerMinute
	if perMinute == 0 {
		perMinute = defaultLeoLabsRequestsPerMinute
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(timeout)
	client.SetHeader("Authorization", "basic "+opts.APIKey)

	return &LeoLabsClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		logger:  logger.With().Str("component", "leolabs").Logger(),
	}
}

// Source identifies every set this client returns.
func (c *LeoLabsClient) Source() domain.Source {
	return domain.SourceLeoLabs
}

// Fetch pulls the latest element set per catalog number.
func (c *LeoLabsClient) Fetch(ctx context.Context, objectIDs []int) ([]tle.ElementSet, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("catalogNumbers", joinObjectIDs(objectIDs)).
		SetQueryParam("latest", "true").
		Get(leoLabsTLEPath)
	if err != nil {
		return nil, fmt.Errorf("leolabs query: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("leolabs query: status %d", resp.StatusCode())
	}

	var payload leoLabsTLEResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("leolabs response: %w", err)
	}

	sets := make([]tle.ElementSet, 0, len(payload.TLEs))
	for _, item := range payload.TLEs {
		sets = append(sets, tle.ElementSet{
			Name:  item.Name,
			Line1: item.Line1,
			Line2: item.Line2,
		})
	}

	c.logger.Debug().Int("objects", len(objectIDs)).Int("sets", len(sets)).Msg("catalog fetched")
	return sets, nil
}

var _ ElementSetSource = (*LeoLabsClient)(nil)
