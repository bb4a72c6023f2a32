package remotehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/semaphore"
)

// Per §6.3: base 1s, factor 2x, max 3 retries on 429/5xx — grounded on
// original_source/core/openlist_client.py's urllib3.Retry(total=3,
// status_forcelist=[429,500,502,503,504], backoff_factor=1).
const (
	maxRetries    = 3
	baseBackoff   = 1 * time.Second
	maxBackoff    = 30 * time.Second
	backoffFactor = 2.0

	// requestTimeout mirrors the Python client's default timeout=30.
	requestTimeout = 30 * time.Second

	// hostConnectionCap mirrors pool_connections=20, pool_maxsize=20.
	hostConnectionCap = 20
)

// TokenSource supplies bearer tokens for authenticated requests. httpClient
// wraps an oauth2.TokenSource obtained from Login so later requests reuse
// the token without repeating the login handshake.
type TokenSource interface {
	Token() (*oauth2.Token, error)
}

// staticTokenSource always returns the same token string, used after Login
// hands back a session token with no refresh semantics (the remote service
// speaks a login-once bearer token, not full OAuth2 refresh).
type staticTokenSource struct {
	token string
}

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

// httpClient is the HTTP/oauth2-backed implementation of Client (§6.3),
// generalizing the teacher's internal/graph bearer-token + retry pattern
// from the Microsoft Graph API to the abstract remote-host capability.
type httpClient struct {
	baseURL     string
	publicAlias string
	httpClient  *http.Client
	token       TokenSource
	logger      *zap.SugaredLogger
	sem         *semaphore.Weighted

	// sleepFunc allows tests to avoid real retry delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient constructs a Client against baseURL. publicAlias, when
// non-empty, replaces baseURL in derived download URLs (§6.3
// "public alias substitution").
func NewHTTPClient(baseURL, publicAlias string, logger *zap.SugaredLogger) Client {
	return &httpClient{
		baseURL:     trimTrailingSlash(baseURL),
		publicAlias: publicAlias,
		httpClient:  &http.Client{Timeout: requestTimeout},
		logger:      logger,
		sem:         semaphore.NewWeighted(hostConnectionCap),
		sleepFunc:   timeSleep,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type apiEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type loginData struct {
	Token string `json:"token"`
}

func (c *httpClient) Login(ctx context.Context, url, user, pass string) (string, error) {
	if url != "" {
		c.baseURL = trimTrailingSlash(url)
	}

	body, err := json.Marshal(loginRequest{Username: user, Password: pass})
	if err != nil {
		return "", fmt.Errorf("remotehost: encoding login request: %w", err)
	}

	env, err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, false)
	if err != nil {
		return "", fmt.Errorf("remotehost: login: %w", err)
	}

	var ld loginData
	if err := json.Unmarshal(env.Data, &ld); err != nil {
		return "", fmt.Errorf("remotehost: decoding login response: %w", err)
	}

	if ld.Token == "" {
		return "", fmt.Errorf("remotehost: login succeeded but returned no token")
	}

	c.token = staticTokenSource{token: ld.Token}
	c.logger.Infow("remote host login succeeded", "url", c.baseURL)

	return ld.Token, nil
}

type listRequest struct {
	Path    string `json:"path"`
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Refresh bool   `json:"refresh"`
}

type listContentEntry struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	IsDir    bool   `json:"is_dir"`
	Modified string `json:"modified"`
	Sign     string `json:"sign"`
	RawURL   string `json:"raw_url"`
}

type listData struct {
	Content []listContentEntry `json:"content"`
	Total   int                `json:"total"`
}

func (c *httpClient) ListDir(ctx context.Context, path string, page, perPage int, refresh bool) (ListResult, error) {
	body, err := json.Marshal(listRequest{Path: path, Page: page, PerPage: perPage, Refresh: refresh})
	if err != nil {
		return ListResult{}, fmt.Errorf("remotehost: encoding list request: %w", err)
	}

	env, err := c.doJSON(ctx, http.MethodPost, "/api/fs/list", body, true)
	if err != nil {
		return ListResult{}, fmt.Errorf("remotehost: list %q: %w", path, err)
	}

	var ld listData
	if err := json.Unmarshal(env.Data, &ld); err != nil {
		return ListResult{}, fmt.Errorf("remotehost: decoding list response: %w", err)
	}

	entries := make([]Entry, 0, len(ld.Content))
	for _, e := range ld.Content {
		entries = append(entries, Entry{
			Name:      e.Name,
			IsDir:     e.IsDir,
			Size:      e.Size,
			Modified:  parseTimeLenient(e.Modified),
			Signature: e.Sign,
			RawURL:    e.RawURL,
		})
	}

	return ListResult{Entries: entries, Total: ld.Total}, nil
}

type getRequest struct {
	Path string `json:"path"`
}

func (c *httpClient) GetFileInfo(ctx context.Context, path string) (*FileInfo, error) {
	body, err := json.Marshal(getRequest{Path: path})
	if err != nil {
		return nil, fmt.Errorf("remotehost: encoding get request: %w", err)
	}

	env, err := c.doJSON(ctx, http.MethodPost, "/api/fs/get", body, true)
	if err != nil {
		return nil, fmt.Errorf("remotehost: get file info %q: %w", path, err)
	}

	var e listContentEntry
	if err := json.Unmarshal(env.Data, &e); err != nil {
		return nil, fmt.Errorf("remotehost: decoding get response: %w", err)
	}

	return &FileInfo{
		Name:      e.Name,
		Size:      e.Size,
		Modified:  parseTimeLenient(e.Modified),
		Signature: e.Sign,
		RawURL:    e.RawURL,
	}, nil
}

type removeRequest struct {
	Names []string `json:"names"`
	Dir   string   `json:"dir"`
}

func (c *httpClient) Remove(ctx context.Context, paths []string) error {
	for _, p := range paths {
		dir, name := splitRemotePath(p)

		body, err := json.Marshal(removeRequest{Names: []string{name}, Dir: dir})
		if err != nil {
			return fmt.Errorf("remotehost: encoding remove request: %w", err)
		}

		if _, err := c.doJSON(ctx, http.MethodPost, "/api/fs/remove", body, true); err != nil {
			return fmt.Errorf("remotehost: remove %q: %w", p, err)
		}
	}

	return nil
}

func (c *httpClient) TestConnection(ctx context.Context) error {
	_, err := c.ListDir(ctx, "/", 1, 1, false)
	if err != nil {
		return fmt.Errorf("remotehost: connection test: %w", err)
	}

	return nil
}

// doJSON issues a POST with a JSON body, retrying on transient failures
// (§6.3 retry policy), and unwraps the {code, message, data} envelope the
// remote service's API uses. authed adds the bearer token header when a
// token has been established.
func (c *httpClient) doJSON(ctx context.Context, method, path string, body []byte, authed bool) (apiEnvelope, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return apiEnvelope{}, fmt.Errorf("remotehost: acquiring connection slot: %w", err)
	}
	defer c.sem.Release(1)

	resp, err := c.doRetry(ctx, method, path, body, authed)
	if err != nil {
		return apiEnvelope{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("reading response body: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apiEnvelope{}, fmt.Errorf("decoding response envelope: %w", err)
	}

	if env.Code != 0 && env.Code != http.StatusOK {
		return apiEnvelope{}, fmt.Errorf("remote returned code %d: %s", env.Code, env.Message)
	}

	return env, nil
}

// doRetry is the shared retry loop, generalized from the teacher's
// internal/graph Client.doRetry: exponential backoff on network errors and
// 429/5xx responses, honoring Retry-After on throttling.
func (c *httpClient) doRetry(ctx context.Context, method, path string, body []byte, authed bool) (*http.Response, error) {
	url := c.baseURL + path

	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, url, body, authed)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("request canceled: %w", ctx.Err())
			}

			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warnw("retrying after network error", "path", path, "attempt", attempt+1, "backoff", backoff, "error", err)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("request canceled: %w", sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("%s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		if isRetryable(resp.StatusCode) && attempt < maxRetries {
			backoff := c.retryBackoff(resp, attempt)
			resp.Body.Close()

			c.logger.Warnw("retrying after HTTP error", "path", path, "status", resp.StatusCode, "attempt", attempt+1, "backoff", backoff)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		errBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		return nil, fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, string(errBody))
	}
}

func (c *httpClient) doOnce(ctx context.Context, method, url string, body []byte, authed bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if authed && c.token != nil {
		tok, err := c.token.Token()
		if err != nil {
			return nil, fmt.Errorf("obtaining token: %w", err)
		}

		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	return c.httpClient.Do(req)
}

func (c *httpClient) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return c.calcBackoff(attempt)
}

func (c *httpClient) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * 0.25 * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand

	return time.Duration(backoff + jitter)
}

func isRetryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseTimeLenient(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}

	return time.Time{}
}

// splitRemotePath splits a remote path into its parent directory and base
// name the way the remove API expects (dir + names[]).
func splitRemotePath(p string) (dir, name string) {
	idx := lastSlash(p)
	if idx < 0 {
		return "/", p
	}

	if idx == 0 {
		return "/", p[1:]
	}

	return p[:idx], p[idx+1:]
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}

	return -1
}
