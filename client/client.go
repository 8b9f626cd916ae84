// Package client is the authenticated HTTP client for the Tipzed API.
// It attaches the static API key to every call and bearer credentials
// to private calls, rate-limits outbound traffic, and transparently
// retries a call once after a single-flight token refresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/tipzed/go-tipzed/session"
)

const (
	// DefaultTimeout is the fixed per-request timeout. A timed-out
	// request surfaces as a network error, never as a refresh trigger.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRequests / DefaultRateWindow bound outbound traffic to
	// the backend's observed policy of 5 requests per rolling second.
	DefaultMaxRequests = 5
	DefaultRateWindow  = time.Second

	headerAPIKey = "X-API-KEY"

	refreshPath = "/auth/token/refresh/"
)

// Config carries the static parameters of a Client.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration // falls back to DefaultTimeout
	MaxRequests  int           // rate-limit budget, falls back to DefaultMaxRequests
	RateWindow   time.Duration // rate-limit window, falls back to DefaultRateWindow
	PublicRoutes []string      // replaces the default public-route list when set
}

// Client issues JSON requests against the Tipzed API on behalf of the
// service packages (auth, creators, wallets, payments).
type Client struct {
	httpClient       *http.Client
	baseURL          string
	apiKey           string
	publicRoutes     []string
	session          *session.Manager
	limiter          *rateLimiter
	refresher        *refreshCoordinator
	onSessionExpired func()
	log              zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The replacement
// should carry its own timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client's logger. The default discards output.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// WithOnSessionExpired registers a callback fired after an
// unrecoverable refresh failure has torn down the session. The
// application typically routes the user back to its login entry point.
func WithOnSessionExpired(fn func()) Option {
	return func(c *Client) {
		c.onSessionExpired = fn
	}
}

// New creates a Client over the given session manager.
func New(cfg Config, sess *session.Manager, options ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("[client.New] BaseURL is required")
	}
	if sess == nil {
		return nil, errors.New("[client.New] session manager is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultRateWindow
	}
	if len(cfg.PublicRoutes) == 0 {
		cfg.PublicRoutes = defaultPublicRoutes
	}

	c := &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		publicRoutes: cfg.PublicRoutes,
		session:      sess,
		limiter:      newRateLimiter(cfg.MaxRequests, cfg.RateWindow),
		log:          zerolog.Nop(),
	}
	c.refresher = &refreshCoordinator{refresh: c.refreshTokens}

	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return c, nil
}

// request is the mutable per-call state.
type request struct {
	method  string
	path    string
	public  bool
	retried bool // set at most once; a second 401 is terminal
	headers map[string]string
}

// RequestOption adjusts a single request.
type RequestOption func(*request)

// Public sends the request without bearer credentials even though its
// path is not on the public-route list (e.g. reading a creator profile
// by slug, whose path shape is not prefix-classifiable).
func Public() RequestOption {
	return func(r *request) {
		r.public = true
	}
}

// WithHeader sets an extra header on the request.
func WithHeader(key, value string) RequestOption {
	return func(r *request) {
		if r.headers == nil {
			r.headers = make(map[string]string)
		}
		r.headers[key] = value
	}
}

// Do sends a JSON request and, when out is non-nil, decodes the
// response body into it. A 401 on a private, not-yet-retried call
// triggers a single-flight token refresh followed by exactly one
// retry; any other non-2xx status is returned as an *APIError. Network
// failures and timeouts are returned as-is and never trigger refresh.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, options ...RequestOption) error {
	req := &request{method: method, path: path}
	for _, opt := range options {
		opt(req)
	}
	if !req.public {
		req.public = isPublicPath(path, c.publicRoutes)
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.Do] marshal request body")
		}
		payload = b
	}

	logger := c.log.With().
		Str("request_id", uuid.NewString()).
		Str("method", method).
		Str("path", path).
		Logger()

	status, respBody, err := c.send(ctx, req, payload)
	if err != nil {
		return err
	}

	for status == http.StatusUnauthorized && !req.public {
		if req.retried {
			// Already retried once with a fresh token. Refreshing
			// again cannot help.
			logger.Warn().Msg("request rejected again after token refresh")
			return errors.Wrapf(ErrUnauthorized, "%s %s", method, path)
		}
		logger.Debug().Msg("access token rejected, refreshing")
		if _, err := c.refresher.await(ctx); err != nil {
			return err
		}
		req.retried = true
		status, respBody, err = c.send(ctx, req, payload)
		if err != nil {
			return err
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return apiError(status, respBody)
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrapf(err, "[Client.Do] decode %s %s response", method, path)
		}
	}
	return nil
}

// send pushes one attempt through the rate limiter and onto the wire,
// returning the status and the drained body.
func (c *Client) send(ctx context.Context, r *request, payload []byte) (int, []byte, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return 0, nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, bodyReader)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "[Client.send] build %s %s", r.method, r.path)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(headerAPIKey, c.apiKey)
	}
	for key, value := range r.headers {
		httpReq.Header.Set(key, value)
	}
	if !r.public {
		if token := c.session.AccessToken(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", r.method, r.path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrapf(err, "[Client.send] read %s %s response", r.method, r.path)
	}
	return resp.StatusCode, respBody, nil
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// refreshTokens exchanges the stored refresh token for a new access
// token. Invoked only by the refresh coordinator, so at most one call
// is outstanding. Any failure is unrecoverable locally: the session is
// cleared and the session-expired callback fires before returning.
//
// The exchange deliberately bypasses Do: it must not recurse into the
// 401 handling it backs.
func (c *Client) refreshTokens(ctx context.Context) (string, error) {
	refreshToken := c.session.RefreshToken()
	if refreshToken == "" {
		// Already logged out; there is no session left to tear down.
		return "", errors.Wrap(ErrSessionExpired, "no refresh token stored")
	}

	payload, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", errors.Wrap(err, "[Client.refreshTokens] marshal")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+refreshPath, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "[Client.refreshTokens] build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set(headerAPIKey, c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", c.endSession(errors.Wrapf(ErrSessionExpired, "refresh call failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.endSession(errors.Wrapf(ErrSessionExpired, "read refresh response: %v", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.endSession(errors.Wrapf(ErrSessionExpired, "refresh rejected with status %d", resp.StatusCode))
	}

	var parsed refreshResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", c.endSession(errors.Wrapf(ErrSessionExpired, "decode refresh response: %v", err))
	}
	if parsed.Access == "" {
		return "", c.endSession(errors.Wrap(ErrSessionExpired, "refresh response missing access token"))
	}

	if err := c.session.RotateAccessToken(parsed.Access); err != nil {
		return "", errors.Wrap(err, "[Client.refreshTokens] persist access token")
	}
	c.log.Debug().Msg("access token refreshed")
	return parsed.Access, nil
}

// endSession tears down local credentials after an unrecoverable auth
// failure and notifies the application, then hands the cause back for
// the coordinator to fan out to every queued waiter.
func (c *Client) endSession(cause error) error {
	if err := c.session.Clear(); err != nil {
		c.log.Err(err).Msg("clearing session after refresh failure")
	}
	c.log.Warn().Msg("session ended: refresh unrecoverable")
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
	return cause
}

func apiError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	if len(body) > 0 {
		// Best effort: error bodies are not guaranteed to carry the envelope.
		_ = json.Unmarshal(body, apiErr)
	}
	return apiErr
}
