package reputation

import (
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

	"github.com/sony/gobreaker"

	"scry-scanner/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL  = "https://api.neynar.com"
	DefaultTimeout  = 10 * time.Second
	DefaultCacheTTL = 5 * time.Minute

	bulkByAddressPath = "/v2/farcaster/user/bulk-by-address"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("reputation: api key not configured")

// Client looks up Farcaster users by verified address.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	cacheTTL time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedUser
}

type cachedUser struct {
	user    *user // nil when the address has no linked identity
	fetched time.Time
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithCacheTTL sets how long a lookup is reused. Zero disables caching.
func WithCacheTTL(d time.Duration) ClientOption {
	return func(c *Client) {
		c.cacheTTL = d
	}
}

// WithClock sets the time source used for cache expiry.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a reputation client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: DefaultTimeout},
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
		cache:    make(map[string]cachedUser),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "reputation",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// user is the subset of the Farcaster user record we read.
type user struct {
	FID               int64  `json:"fid"`
	Username          string `json:"username"`
	DisplayName       string `json:"display_name"`
	PfpURL            string `json:"pfp_url"`
	FollowerCount     int64  `json:"follower_count"`
	VerifiedAddresses struct {
		EthAddresses []string `json:"eth_addresses"`
	} `json:"verified_addresses"`
}

// Lookup returns the rated profile linked to address, or nil if none is linked.
// tokenCount is the number of tokens the address has created.
func (c *Client) Lookup(ctx context.Context, address string, tokenCount int) (*domain.CreatorProfile, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if address == "" {
		return nil, nil
	}

	key := strings.ToLower(address)
	u, ok := c.cached(key)
	if !ok {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, key)
		})
		if err != nil {
			return nil, err
		}
		u = res.(*user)
		c.store(key, u)
	}

	if u == nil || u.FID == 0 {
		return nil, nil
	}
	return toProfile(u, address, tokenCount), nil
}

func toProfile(u *user, address string, tokenCount int) *domain.CreatorProfile {
	verified := u.VerifiedAddresses.EthAddresses
	if verified == nil {
		verified = []string{}
	}
	rating, label := ComputeRating(u.FID, u.FollowerCount, tokenCount, IsVerified(address, verified))
	return &domain.CreatorProfile{
		FID:               u.FID,
		Username:          u.Username,
		DisplayName:       u.DisplayName,
		PfpURL:            u.PfpURL,
		FollowerCount:     u.FollowerCount,
		VerifiedAddresses: append([]string(nil), verified...),
		TokenCount:        tokenCount,
		Rating:            rating,
		RatingLabel:       label,
	}
}

// fetch returns the first user linked to the lowercased address, or nil.
func (c *Client) fetch(ctx context.Context, address string) (*user, error) {
	q := url.Values{}
	q.Set("addresses", address)
	reqURL := c.baseURL + bulkByAddressPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	// the API answers 404 for addresses with no linked user
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	var byAddress map[string][]user
	if err := json.NewDecoder(resp.Body).Decode(&byAddress); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	users := byAddress[address]
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (c *Client) cached(key string) (*user, bool) {
	if c.cacheTTL <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[key]
	if !ok || c.now().Sub(e.fetched) >= c.cacheTTL {
		return nil, false
	}
	return e.user, true
}

func (c *Client) store(key string, u *user) {
	if c.cacheTTL <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = cachedUser{user: u, fetched: c.now()}
}
