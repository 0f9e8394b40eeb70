package te

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"olt-pricewatch/internal/models"
)

// Client talks to the Ticket Evolution API with signed GETs, bounded retries
// and a client-side rate limiter so batch fan-out cannot trip TE's 429s.
type Client struct {
	baseURL    *url.URL
	token      string
	signer     *Signer
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int

	// backoff schedule between attempts; overridable in tests
	backoff func(attempt int) time.Duration
}

type ClientConfig struct {
	BaseURL    string // e.g. https://api.sandbox.ticketevolution.com/v9
	Token      string
	Secret     string
	MaxRetries int
	// RequestsPerSecond caps outbound calls; <=0 disables limiting.
	RequestsPerSecond float64
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Token == "" || cfg.Secret == "" {
		return nil, fmt.Errorf("te: token and secret are required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("te: parse base url: %w", err)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &Client{
		baseURL:    base,
		token:      cfg.Token,
		signer:     NewSigner(cfg.Secret),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
		maxRetries: cfg.MaxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second // 1s, 2s, 4s
		},
	}, nil
}

// get performs a signed GET against path (leading slash, no version prefix)
// and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	var lastErr *APIError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return &APIError{Kind: ErrTransport, Err: ctx.Err()}
			case <-time.After(c.backoff(attempt - 1)):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &APIError{Kind: ErrTransport, Err: err}
			}
		}

		apiErr := c.doOnce(ctx, path, params, out)
		if apiErr == nil {
			return nil
		}
		if apiErr.Kind == ErrPermanentHTTP || apiErr.Kind == ErrDecode {
			return apiErr
		}
		lastErr = apiErr
	}

	return &APIError{Kind: ErrRetryExhausted, StatusCode: lastErr.StatusCode, Err: lastErr.Err}
}

func (c *Client) doOnce(ctx context.Context, path string, params map[string]string, out interface{}) *APIError {
	signPath := c.baseURL.Path + path
	sig := c.signer.Sign(http.MethodGet, c.baseURL.Host, signPath, params)

	u := *c.baseURL
	u.Path = signPath
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &APIError{Kind: ErrTransport, Err: err}
	}
	req.Header.Set("X-Token", c.token)
	req.Header.Set("X-Signature", sig)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: ErrTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		kind := ErrPermanentHTTP
		if retryableStatus(resp.StatusCode) {
			kind = ErrTransport
		}
		return &APIError{Kind: kind, StatusCode: resp.StatusCode, Err: fmt.Errorf("te status: %s", resp.Status)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: ErrDecode, Err: err}
	}
	return nil
}

// GetListings fetches all listings for an event (type=event only).
func (c *Client) GetListings(ctx context.Context, eventID int64) (*models.TEListingsPayload, error) {
	var payload models.TEListingsPayload
	err := c.get(ctx, "/listings", map[string]string{
		"event_id": strconv.FormatInt(eventID, 10),
		"type":     "event",
	}, &payload)
	if err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetEvent fetches a single event by its TE id.
func (c *Client) GetEvent(ctx context.Context, eventID int64) (*models.TEEvent, error) {
	var ev models.TEEvent
	err := c.get(ctx, "/events/"+strconv.FormatInt(eventID, 10), nil, &ev)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetEventsByPerformer fetches one page of events for a performer.
// primaryOnly restricts to events where the performer is the headliner.
func (c *Client) GetEventsByPerformer(ctx context.Context, performerID int64, page, perPage int, primaryOnly bool) (*models.TEEventsPage, error) {
	params := map[string]string{
		"performer_id": strconv.FormatInt(performerID, 10),
		"page":         strconv.Itoa(page),
		"per_page":     strconv.Itoa(perPage),
	}
	if primaryOnly {
		params["primary_performer"] = "true"
	}
	var pg models.TEEventsPage
	if err := c.get(ctx, "/events", params, &pg); err != nil {
		return nil, err
	}
	return &pg, nil
}
