package docstore

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
	"sync"
	"time"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/logging"
)

// ErrUnauthenticated is returned by write operations when the client holds no
// session token, and wraps 401 responses from the store.
var ErrUnauthenticated = errors.New("docstore: not authenticated")

// StatusError reports a non-2xx response.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthenticated
	}
	return nil
}

// FeedMode selects how subscriptions receive snapshots.
type FeedMode string

const (
	FeedWebsocket FeedMode = "websocket"
	FeedPoll      FeedMode = "poll"
)

// Options configures a Client.
type Options struct {
	BaseURL      string
	Feed         FeedMode
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       logging.Logger
}

// Client talks to the CubeSpace document store.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	userAgent    string
	feed         FeedMode
	pollInterval time.Duration
	log          logging.Logger

	mu    sync.RWMutex
	token string
}

const (
	defaultBaseURL      = "127.0.0.1:7490"
	defaultUserAgent    = "cubespace/0.1"
	defaultPollInterval = 2 * time.Second
	requestTimeout      = 5 * time.Second
)

// NewClient builds a Client for the store at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	feed := opts.Feed
	if feed == "" {
		feed = FeedWebsocket
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	return &Client{
		baseURL:      base,
		http:         httpClient,
		userAgent:    defaultUserAgent,
		feed:         feed,
		pollInterval: interval,
		log:          log.With(logging.String("component", "docstore")),
	}, nil
}

// Token returns the current session token, if any.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// EnsureAuthenticated obtains an anonymous session token unless one is
// already held.
func (c *Client) EnsureAuthenticated(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if c.Token() != "" {
		return nil
	}
	var payload TokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/anonymous", nil, &payload); err != nil {
		return fmt.Errorf("anonymous sign-in: %w", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return fmt.Errorf("anonymous sign-in: empty token")
	}
	c.mu.Lock()
	c.token = payload.Token
	c.mu.Unlock()
	c.log.Debug(ctx, "authenticated anonymously")
	return nil
}

// LoginWithIdentityProvider asks the store for the visitor's identity
// profile. It returns nil without error when the store has none configured.
func (c *Client) LoginWithIdentityProvider(ctx context.Context) (*Profile, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	var payload Profile
	found, err := c.doStatus(ctx, http.MethodPost, "/api/auth/identity", nil, &payload)
	if err != nil {
		return nil, fmt.Errorf("identity sign-in: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &payload, nil
}

// CreateOwnerRecord writes an owner document and returns its id.
func (c *Client) CreateOwnerRecord(ctx context.Context, in OwnerInput) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	if c.Token() == "" {
		return "", ErrUnauthenticated
	}
	var payload OwnerCreated
	if err := c.do(ctx, http.MethodPost, "/api/owners", in, &payload); err != nil {
		return "", fmt.Errorf("create owner: %w", err)
	}
	if payload.OwnerID == "" {
		return "", fmt.Errorf("create owner: empty owner id")
	}
	return payload.OwnerID, nil
}

// CreateCubeRecord writes a cube document and returns its remote id.
func (c *Client) CreateCubeRecord(ctx context.Context, in CubeInput) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	if c.Token() == "" {
		return "", ErrUnauthenticated
	}
	var payload CubeCreated
	if err := c.do(ctx, http.MethodPost, "/api/cubes", in, &payload); err != nil {
		return "", fmt.Errorf("create cube: %w", err)
	}
	if payload.RemoteID == "" {
		return "", fmt.Errorf("create cube: empty remote id")
	}
	return payload.RemoteID, nil
}

// FetchCubes retrieves the complete cube collection.
func (c *Client) FetchCubes(ctx context.Context) ([]cube.RemoteCubeView, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload ListResponse[cube.RemoteCubeView]
	if err := c.do(ctx, http.MethodGet, "/api/cubes", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// FetchOwners retrieves the complete owner collection.
func (c *Client) FetchOwners(ctx context.Context) ([]cube.RemoteOwnerView, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var payload ListResponse[cube.RemoteOwnerView]
	if err := c.do(ctx, http.MethodGet, "/api/owners", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	_, err := c.doStatus(ctx, method, path, body, dest)
	return err
}

// doStatus performs the request and decodes the response into dest. It
// reports false when the store answered 204.
func (c *Client) doStatus(ctx context.Context, method, path string, body, dest any) (bool, error) {
	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var msg ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&msg)
		return false, &StatusError{Path: path, Code: resp.StatusCode, Message: msg.Error}
	}
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if dest == nil {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse store_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse store_url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
