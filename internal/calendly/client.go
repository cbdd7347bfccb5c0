package calendly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/surveyops/booking-sync/pkg/logging"
)

const (
	defaultBaseURL = "https://api.calendly.com"
	defaultTimeout = 20 * time.Second

	// A sweep listing follows pagination cursors at most this many pages so a
	// bad cursor cannot loop a run forever.
	maxListPages = 10
)

// Config controls how the Calendly client behaves.
type Config struct {
	BaseURL      string
	Token        string
	Organization string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *logging.Logger
}

// Client wraps the Calendly REST endpoints the reconciliation engine needs.
type Client struct {
	baseURL      string
	token        string
	organization string
	httpClient   *http.Client
	logger       *logging.Logger
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("calendly: token is required")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        cfg.Token,
		organization: strings.TrimSpace(cfg.Organization),
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Event fetches one scheduled event by its absolute resource URI, as delivered
// in webhook payloads.
func (c *Client) Event(ctx context.Context, uri string) (*Event, error) {
	var out resourceEnvelope[Event]
	if err := c.get(ctx, uri, &out); err != nil {
		return nil, err
	}
	return &out.Resource, nil
}

// Invitee fetches one invitee by its absolute resource URI.
func (c *Client) Invitee(ctx context.Context, uri string) (*Invitee, error) {
	var out resourceEnvelope[Invitee]
	if err := c.get(ctx, uri, &out); err != nil {
		return nil, err
	}
	return &out.Resource, nil
}

// ListEvents lists the organization's scheduled events starting after
// minStart with the given status, following pagination.
func (c *Client) ListEvents(ctx context.Context, minStart time.Time, status string) ([]Event, error) {
	if c.organization == "" {
		return nil, errors.New("calendly: organization is required for listing")
	}
	query := url.Values{}
	query.Set("organization", c.organization)
	query.Set("min_start_time", minStart.UTC().Format(time.RFC3339))
	if status != "" {
		query.Set("status", status)
	}
	return collectPages[Event](ctx, c, c.baseURL+"/scheduled_events?"+query.Encode())
}

// EventInvitees lists the invitees of one scheduled event, following pagination.
func (c *Client) EventInvitees(ctx context.Context, eventURI string) ([]Invitee, error) {
	return collectPages[Invitee](ctx, c, strings.TrimRight(eventURI, "/")+"/invitees")
}

func collectPages[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var all []T
	next := first
	for page := 0; next != "" && page < maxListPages; page++ {
		var out collectionEnvelope[T]
		if err := c.get(ctx, next, &out); err != nil {
			return nil, err
		}
		all = append(all, out.Collection...)
		next = out.Pagination.NextPage
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, uri string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("calendly: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendly: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("calendly: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("calendly: unmarshal response: %w", err)
	}
	return nil
}

// APIError is a non-success response from the booking service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendly: status %d: %s", e.Status, e.Body)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
