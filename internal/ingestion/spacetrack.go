package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/tle"
)

// Space-Track serves 3LE text behind a form-login session; the session
// cookie lives in the resty client's jar.
const (
	spaceTrackLoginPath = "/ajaxauth/login"
	spaceTrackQueryPath = "/basicspacedata/query/class/tle_latest/ORDINAL/1/NORAD_CAT_ID/%s/format/3le"

	defaultSpaceTrackTimeout = 30 * time.Second
	// Space-Track throttles aggressively; stay under their published
	// 30 requests/minute ceiling by default.
	defaultSpaceTrackRequestsPerMinute = 20
)

// SpaceTrackOptions configure the Space-Track catalog client.
type SpaceTrackOptions struct {
	BaseURL           string
	Username          string
	Password          string
	Timeout           time.Duration
	RequestsPerMinute int
}

// SpaceTrackClient pulls the latest element sets from Space-Track.
type SpaceTrackClient struct {
	client   *resty.Client
	limiter  *rate.Limiter
	username string
	password string
	logger   zerolog.Logger

	mu            sync.Mutex
	authenticated bool
}

// NewSpaceTrackClient creates a Space-Track client. The session is
// established lazily on the first fetch.
func NewSpaceTrackClient(opts SpaceTrackOptions, logger zerolog.Logger) *SpaceTrackClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultSpaceTrackTimeout
	}
	perMinute := opts.RequestsPerMinute
	if perMinute == 0 {
		perMinute = defaultSpaceTrackRequestsPerMinute
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(timeout)

	return &SpaceTrackClient{
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		username: opts.Username,
		password: opts.Password,
		logger:   logger.With().Str("component", "spacetrack").Logger(),
	}
}

// Source identifies every set this client returns.
func (c *SpaceTrackClient) Source() domain.Source {
	return domain.SourceSpaceTrack
}

// Fetch pulls the latest element set per catalog number as 3LE text.
// An expired session is re-established once before giving up.
func (c *SpaceTrackClient) Fetch(ctx context.Context, objectIDs []int) ([]tle.ElementSet, error) {
	if len(objectIDs) == 0 {
		return nil, nil
	}

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	path := fmt.Sprintf(spaceTrackQueryPath, joinObjectIDs(objectIDs))
	resp, err := c.query(ctx, path)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		c.logger.Debug().Msg("session expired, re-authenticating")
		c.resetSession()
		if err := c.ensureSession(ctx); err != nil {
			return nil, err
		}
		if resp, err = c.query(ctx, path); err != nil {
			return nil, err
		}
	}

	if resp.IsError() {
		return nil, fmt.Errorf("spacetrack query: status %d", resp.StatusCode())
	}

	sets := tle.SplitCatalog(string(resp.Body()))
	c.logger.Debug().Int("objects", len(objectIDs)).Int("sets", len(sets)).Msg("catalog fetched")
	return sets, nil
}

func (c *SpaceTrackClient) query(ctx context.Context, path string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, fmt.Errorf("spacetrack query: %w", err)
	}
	return resp, nil
}

func (c *SpaceTrackClient) ensureSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authenticated {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"identity": c.username,
			"password": c.password,
		}).
		Post(spaceTrackLoginPath)
	if err != nil {
		return fmt.Errorf("spacetrack login: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("spacetrack login: status %d", resp.StatusCode())
	}

	c.authenticated = true
	c.logger.Debug().Msg("session established")
	return nil
}

func (c *SpaceTrackClient) resetSession() {
	c.mu.Lock()
	c.authenticated = false
	c.mu.Unlock()
}

var _ ElementSetSource = (*SpaceTrackClient)(nil)
