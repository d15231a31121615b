package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scry-scanner/internal/chain/stub"
	"scry-scanner/internal/domain"
	"scry-scanner/internal/prediction"
	"scry-scanner/internal/scanner"
	"scry-scanner/internal/storage/memory"
	"scry-scanner/internal/tier"
)

func whole(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), domain.OneToken)
}

func ptr(v float64) *float64 { return &v }

type fakeReputation struct {
	mu      sync.Mutex
	profile *domain.CreatorProfile
	err     error
}

func (f *fakeReputation) set(p *domain.CreatorProfile, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile, f.err = p, err
}

func (f *fakeReputation) Lookup(_ context.Context, _ string, tokenCount int) (*domain.CreatorProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil || f.profile == nil {
		return nil, f.err
	}
	p := *f.profile
	p.TokenCount = tokenCount
	return &p, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	clock  *testClock
	source *stub.Client
	rep    *fakeReputation
	ledger *prediction.Ledger
	srv    *Server
	http   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	now := time.Now()

	source := stub.NewClient()
	for i, sym := range []string{"AAA", "BBB", "CCC"} {
		addr := "0x" + strings.ToLower(sym)
		supply := whole(int64(100 * (i + 1)))
		if sym == "CCC" {
			supply = big.NewInt(0)
		}
		source.Listed = append(source.Listed, domain.ListedToken{
			Creator:        "0xcreator",
			Token:          addr,
			Decimals:       18,
			Symbol:         sym,
			Name:           sym + " Token",
			CreatedAt:      now.Add(-time.Hour).Unix(),
			CurrentSupply:  supply,
			MaxSupply:      whole(1000),
			ReserveSymbol:  []string{"WETH", "USDC", "HUNT"}[i],
			ReserveBalance: whole(int64(3 - i)),
		})
		source.Steps[addr] = []domain.CurveStep{{RangeTo: whole(1000), Price: big.NewInt(10)}}
	}
	source.Changes["0xaaa"] = &domain.PriceChange{CurrentUSDRate: ptr(0.5), ChangePercent: ptr(12)}
	source.CreatorCounts["0xcreator"] = 3
	source.Balances["0xscry|0xwallet"] = whole(6000)

	rep := &fakeReputation{profile: &domain.CreatorProfile{FID: 7, Username: "maker", Rating: 90, RatingLabel: "Trusted"}}

	scan := scanner.New(scanner.Options{
		Listing:    source,
		Enrichment: source,
		Reputation: rep,
		CacheTTL:   time.Minute,
	})
	clock := &testClock{now: now}
	ledger := prediction.NewLedger(prediction.Options{
		Store:  memory.NewKVStore(),
		Config: prediction.DefaultConfig(),
		Clock:  clock.Now,
	})

	srv := NewServer(Options{
		CORSOrigins:  []string{"*"},
		Scanner:      scan,
		Ledger:       ledger,
		Tiers:        tier.DefaultRegistry(),
		Balances:     source,
		Creators:     source,
		Reputation:   rep,
		TierToken:    "0xscry",
		TierDecimals: 18,
		Logger:       zerolog.Nop(),
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	return &env{clock: clock, source: source, rep: rep, ledger: ledger, srv: srv, http: hs}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.http.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func tokenAddresses(t *testing.T, body map[string]interface{}) []string {
	t.Helper()
	list, ok := body["tokens"].([]interface{})
	require.True(t, ok, "tokens missing from %v", body)
	out := make([]string, 0, len(list))
	for _, item := range list {
		detail := item.(map[string]interface{})["detail"].(map[string]interface{})
		out = append(out, detail["address"].(string))
	}
	return out
}

func TestListTokens(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodGet, "/api/v1/tokens", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fetched", body["outcome"])
	assert.Equal(t, []string{"0xaaa", "0xbbb", "0xccc"}, tokenAddresses(t, body))

	_, body = e.do(t, http.MethodGet, "/api/v1/tokens", nil)
	assert.Equal(t, "cached", body["outcome"])
}

func TestListTokens_FilterAndSort(t *testing.T) {
	e := newEnv(t)

	_, body := e.do(t, http.MethodGet, "/api/v1/tokens?tags=active&sort=curve_desc", nil)
	assert.Equal(t, []string{"0xbbb", "0xaaa"}, tokenAddresses(t, body))
	assert.Equal(t, float64(3), body["total"])

	_, body = e.do(t, http.MethodGet, "/api/v1/tokens?reserve=other", nil)
	assert.Equal(t, []string{"0xccc"}, tokenAddresses(t, body))

	_, body = e.do(t, http.MethodGet, "/api/v1/tokens?search=bbb", nil)
	assert.Equal(t, []string{"0xbbb"}, tokenAddresses(t, body))
}

func TestListTokens_BadQuery(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodGet, "/api/v1/tokens?tags=moon", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/tokens?sort=random", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListTokens_ListingFailureDegrades(t *testing.T) {
	e := newEnv(t)
	e.source.SetError("bond_tokenCount", errors.New("gateway down"))
	e.source.SetError("bond_getList", errors.New("gateway down"))

	resp, body := e.do(t, http.MethodGet, "/api/v1/tokens", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "failed", body["outcome"])
	assert.Empty(t, tokenAddresses(t, body))
}

func TestSelectToken(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodGet, "/api/v1/tokens/0xaaa", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "free", body["tier"])
	assert.Nil(t, body["creator"], "free tier gets no creator profile")
	assert.Equal(t, true, body["zapAvailable"])

	resp, body = e.do(t, http.MethodGet, "/api/v1/tokens/0xbbb?balance=25000", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alpha", body["tier"])
	creator, ok := body["creator"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "maker", creator["username"])

	resp, _ = e.do(t, http.MethodGet, "/api/v1/tokens/0xnope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPredictionsLifecycle(t *testing.T) {
	e := newEnv(t)

	// prime the scanner so the token is known
	e.do(t, http.MethodGet, "/api/v1/tokens", nil)

	resp, body := e.do(t, http.MethodPost, "/api/v1/predictions", map[string]interface{}{
		"symbol": "AAA", "address": "0xaaa", "direction": "up", "stake": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "%v", body)
	assert.Equal(t, "10", body["stake"])
	assert.Equal(t, "0.5", body["entryPrice"])
	id := body["id"].(string)

	resp, _ = e.do(t, http.MethodPost, "/api/v1/predictions", map[string]interface{}{
		"symbol": "AAA", "address": "0xaaa", "direction": "down", "stake": 10,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	_, body = e.do(t, http.MethodGet, "/api/v1/predictions?view=active", nil)
	assert.Equal(t, float64(1), body["count"])

	resp, _ = e.do(t, http.MethodPost, "/api/v1/predictions/"+id+"/resolve", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "active predictions cannot be resolved")

	e.clock.Advance(25 * time.Hour)
	e.source.SetPriceChange("0xaaa", &domain.PriceChange{CurrentUSDRate: ptr(0.75)})

	resp, body = e.do(t, http.MethodPost, "/api/v1/predictions/"+id+"/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "win", body["result"])
	assert.Equal(t, "0.75", body["exitPrice"])
	assert.Equal(t, "19", body["payout"])

	e.source.SetPriceChange("0xaaa", &domain.PriceChange{CurrentUSDRate: ptr(0.1)})
	resp, body = e.do(t, http.MethodPost, "/api/v1/predictions/"+id+"/resolve", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "win", body["result"], "resolution is settled once")

	_, body = e.do(t, http.MethodGet, "/api/v1/predictions?view=history", nil)
	assert.Equal(t, float64(1), body["count"])

	resp, _ = e.do(t, http.MethodPost, "/api/v1/predictions/missing/resolve", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/v1/predictions?view=weird", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePrediction_NoPrice(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/predictions", map[string]interface{}{
		"symbol": "BBB", "address": "0xbbb", "direction": "up", "stake": 10,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCreatePrediction_BadDirection(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/predictions", map[string]interface{}{
		"symbol": "AAA", "address": "0xaaa", "direction": "sideways", "stake": 10,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResolve_IgnoresCallerPrice(t *testing.T) {
	e := newEnv(t)
	cfg := prediction.DefaultConfig()
	p, err := e.ledger.Create(context.Background(), "AAA", "0xaaa", domain.DirectionUp, cfg.MaxStake, decimal.NewFromInt(1))
	require.NoError(t, err)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/predictions/"+p.ID+"/resolve", map[string]interface{}{"price": "1000000"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	all, err := e.ledger.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Resolved)

	e.clock.Advance(cfg.Duration)
	resp, body := e.do(t, http.MethodPost, "/api/v1/predictions/"+p.ID+"/resolve", map[string]interface{}{"price": "1000000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// entry 1, current 0.5: up loses whatever the body claims
	assert.Equal(t, "loss", body["result"])
	assert.Equal(t, "0.5", body["exitPrice"])
	assert.Equal(t, "0", body["payout"])
}

func TestResolve_NoPriceAfterExpiry(t *testing.T) {
	e := newEnv(t)
	p, err := e.ledger.Create(context.Background(), "BBB", "0xbbb", domain.DirectionUp, decimal.NewFromInt(10), decimal.NewFromInt(1))
	require.NoError(t, err)

	e.clock.Advance(prediction.DefaultConfig().Duration + time.Minute)
	resp, _ := e.do(t, http.MethodPost, "/api/v1/predictions/"+p.ID+"/resolve", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestTier(t *testing.T) {
	e := newEnv(t)

	_, body := e.do(t, http.MethodGet, "/api/v1/tier?balance=1500&feature=spread", nil)
	assert.Equal(t, "scout", body["tier"].(map[string]interface{})["key"])
	upgrade := body["upgrade"].(map[string]interface{})
	assert.Equal(t, "Pro", upgrade["tier"])
	assert.Equal(t, "5000", upgrade["tokensNeeded"])

	_, body = e.do(t, http.MethodGet, "/api/v1/tier?wallet=0xwallet", nil)
	assert.Equal(t, "pro", body["tier"].(map[string]interface{})["key"])
	assert.Nil(t, body["upgrade"])

	resp, _ := e.do(t, http.MethodGet, "/api/v1/tier?balance=lots", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreator(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodGet, "/api/v1/creators/0xcreator", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), body["tokenCount"])

	_, body = e.do(t, http.MethodGet, "/api/v1/creators/0xcreator?tokens=9", nil)
	assert.Equal(t, float64(9), body["tokenCount"])

	e.rep.set(nil, nil)
	resp, _ = e.do(t, http.MethodGet, "/api/v1/creators/0xnobody", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	e.rep.set(nil, errors.New("upstream"))
	resp, _ = e.do(t, http.MethodGet, "/api/v1/creators/0xnobody", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodGet, "/api/v1/tokens", nil)

	resp, body := e.do(t, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["tokens"])
	assert.Equal(t, true, body["cacheFresh"])
}

func TestStream(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.srv.Hub().Run(ctx)

	e.do(t, http.MethodGet, "/api/v1/tokens", nil)

	wsURL := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first StreamMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "tokens", first.Type)
	assert.Len(t, first.Tokens, 3)

	require.Eventually(t, func() bool { return e.srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, _ := e.do(t, http.MethodPost, "/api/v1/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pushed StreamMessage
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "tokens", pushed.Type)
	assert.Len(t, pushed.Tokens, 3)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
