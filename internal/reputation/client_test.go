package reputation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bulkResponse = `{
  "0xcreator": [{
    "fid": 4200,
    "username": "maker",
    "display_name": "The Maker",
    "pfp_url": "https://example.com/p.png",
    "follower_count": 1200,
    "verified_addresses": {"eth_addresses": ["0xCreator"]}
  }]
}`

func newServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, bulkByAddressPath, r.URL.Path)
		assert.Equal(t, "0xcreator", r.URL.Query().Get("addresses"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestLookup(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, bulkResponse)
	c := NewClient("test-key", WithBaseURL(srv.URL))

	p, err := c.Lookup(context.Background(), "0xCREATOR", 3)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, int64(4200), p.FID)
	assert.Equal(t, "maker", p.Username)
	assert.Equal(t, "The Maker", p.DisplayName)
	assert.Equal(t, int64(1200), p.FollowerCount)
	assert.Equal(t, []string{"0xCreator"}, p.VerifiedAddresses)
	assert.Equal(t, 3, p.TokenCount)
	// 25 fid + 25 followers + 15 tokens + 20 verified
	assert.Equal(t, 85, p.Rating)
	assert.Equal(t, LabelTrusted, p.RatingLabel)
}

func TestLookup_NoLinkedUser(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, `{"0xcreator": []}`)
	c := NewClient("test-key", WithBaseURL(srv.URL))

	p, err := c.Lookup(context.Background(), "0xcreator", 1)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLookup_NotFoundStatus(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, `{"message":"No users found"}`)
	c := NewClient("test-key", WithBaseURL(srv.URL))

	p, err := c.Lookup(context.Background(), "0xcreator", 1)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestLookup_ServerError(t *testing.T) {
	srv, _ := newServer(t, http.StatusInternalServerError, "boom")
	c := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := c.Lookup(context.Background(), "0xcreator", 1)
	assert.ErrorContains(t, err, "http status 500")
}

func TestLookup_NotConfigured(t *testing.T) {
	c := NewClient("")
	_, err := c.Lookup(context.Background(), "0xcreator", 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLookup_CachesByAddress(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK, bulkResponse)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient("test-key", WithBaseURL(srv.URL), WithClock(func() time.Time { return now }))

	first, err := c.Lookup(context.Background(), "0xcreator", 1)
	require.NoError(t, err)
	second, err := c.Lookup(context.Background(), "0xCreator", 5)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	// rating is recomputed from the token count of each call
	assert.Equal(t, 1, first.TokenCount)
	assert.Equal(t, 5, second.TokenCount)
	assert.Greater(t, second.Rating, first.Rating)

	now = now.Add(DefaultCacheTTL)
	_, err = c.Lookup(context.Background(), "0xcreator", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
