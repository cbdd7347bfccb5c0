package salesforce

import (
	"bytes"
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
	defaultLoginURL   = "https://login.salesforce.com"
	defaultAPIVersion = "v60.0"
	defaultTimeout    = 20 * time.Second

	// AuthFlowClientCredentials and AuthFlowPassword select the OAuth grant
	// used against the token endpoint.
	AuthFlowClientCredentials = "client_credentials"
	AuthFlowPassword          = "password"
)

// Config controls how the Salesforce client behaves.
type Config struct {
	LoginURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	AuthFlow     string
	APIVersion   string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *logging.Logger
	TokenCache   TokenCache
}

// Client wraps the Salesforce REST endpoints the reconciliation engine needs:
// the OAuth token endpoint, the SOQL query endpoint and the Lead patch endpoint.
type Client struct {
	loginURL     string
	clientID     string
	clientSecret string
	username     string
	password     string
	authFlow     string
	apiVersion   string
	httpClient   *http.Client
	logger       *logging.Logger
	cache        TokenCache
}

type session struct {
	accessToken string
	instanceURL string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("salesforce: client id and secret are required")
	}
	authFlow := strings.ToLower(strings.TrimSpace(cfg.AuthFlow))
	if authFlow == "" {
		authFlow = AuthFlowClientCredentials
	}
	switch authFlow {
	case AuthFlowClientCredentials:
	case AuthFlowPassword:
		if strings.TrimSpace(cfg.Username) == "" || strings.TrimSpace(cfg.Password) == "" {
			return nil, errors.New("salesforce: username and password are required for the password grant")
		}
	default:
		return nil, fmt.Errorf("salesforce: unknown auth flow %q", cfg.AuthFlow)
	}
	loginURL := strings.TrimSpace(cfg.LoginURL)
	if loginURL == "" {
		loginURL = defaultLoginURL
	}
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
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
	cache := cfg.TokenCache
	if cache == nil {
		cache = NewMemoryTokenCache(0)
	}
	return &Client{
		loginURL:     strings.TrimRight(loginURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		username:     cfg.Username,
		password:     cfg.Password,
		authFlow:     authFlow,
		apiVersion:   apiVersion,
		httpClient:   httpClient,
		logger:       logger,
		cache:        cache,
	}, nil
}

// FindLeadByEmail returns the most recently created Lead with an exact email
// match, or nil when the query returns zero records. Zero records is not an
// error: the caller's retry loop distinguishes "not yet indexed" from a broken
// backend.
func (c *Client) FindLeadByEmail(ctx context.Context, email string) (*Lead, error) {
	sess, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	var out queryResponse
	q := leadByEmailQuery(email)
	err = c.withReauth(ctx, &sess, func(s session) error {
		endpoint := fmt.Sprintf("%s/services/data/%s/query?q=%s", s.instanceURL, c.apiVersion, url.QueryEscape(q))
		return c.doJSON(ctx, http.MethodGet, endpoint, s.accessToken, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, nil
	}
	rec := out.Records[0]
	return &Lead{
		ID:                    rec.ID,
		Name:                  rec.Name,
		SurveyScheduled:       rec.SurveyScheduled,
		SurveyPaymentComplete: rec.SurveyPaymentComplete,
	}, nil
}

// UpdateLeadSurvey overwrites the two managed fields on one Lead record in a
// single request. An empty surveyDate is written as the empty string; the
// backend has no null-date representation. The write is a full-field
// overwrite, so repeating it converges instead of corrupting.
func (c *Client) UpdateLeadSurvey(ctx context.Context, id, surveyDate string, paid bool) error {
	sess, err := c.session(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		FieldSurveyScheduled:       surveyDate,
		FieldSurveyPaymentComplete: paid,
	})
	if err != nil {
		return fmt.Errorf("salesforce: marshal patch body: %w", err)
	}
	return c.withReauth(ctx, &sess, func(s session) error {
		endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/Lead/%s", s.instanceURL, c.apiVersion, url.PathEscape(id))
		return c.doJSON(ctx, http.MethodPatch, endpoint, s.accessToken, body, nil)
	})
}

// withReauth runs one API call and, on a 401, drops the cached session,
// re-authenticates once and retries. Any other failure propagates.
func (c *Client) withReauth(ctx context.Context, sess *session, call func(session) error) error {
	err := call(*sess)
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}
	c.cache.Invalidate(ctx)
	fresh, authErr := c.authenticate(ctx)
	if authErr != nil {
		return authErr
	}
	*sess = fresh
	return call(fresh)
}

func (c *Client) session(ctx context.Context) (session, error) {
	if token, instanceURL, ok := c.cache.Get(ctx); ok {
		return session{accessToken: token, instanceURL: instanceURL}, nil
	}
	return c.authenticate(ctx)
}

func (c *Client) authenticate(ctx context.Context) (session, error) {
	form := url.Values{}
	form.Set("grant_type", c.authFlow)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	if c.authFlow == AuthFlowPassword {
		form.Set("username", c.username)
		form.Set("password", c.password)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return session{}, fmt.Errorf("salesforce: build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return session{}, fmt.Errorf("salesforce: auth request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return session{}, fmt.Errorf("salesforce: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return session{}, &APIError{Status: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	var auth authResponse
	if err := json.Unmarshal(data, &auth); err != nil {
		return session{}, fmt.Errorf("salesforce: unmarshal auth response: %w", err)
	}
	if auth.AccessToken == "" || auth.InstanceURL == "" {
		return session{}, errors.New("salesforce: auth response missing token or instance url")
	}

	c.cache.Put(ctx, auth.AccessToken, auth.InstanceURL)
	return session{accessToken: auth.AccessToken, instanceURL: auth.InstanceURL}, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint, token string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("salesforce: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("salesforce: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("salesforce: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: truncate(string(data), 300)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("salesforce: unmarshal response: %w", err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
