package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"scry-scanner/internal/domain"
	"scry-scanner/internal/filter"
	"scry-scanner/internal/prediction"
	"scry-scanner/internal/scanner"
	"scry-scanner/internal/storage"
	"scry-scanner/internal/tier"
)

// errNoPrice is returned when no current price is known for a token.
var errNoPrice = errors.New("no current price available for token")

// errNotExpired is returned when resolving a prediction before its expiry.
var errNotExpired = errors.New("prediction has not expired")

type tokensResponse struct {
	Tokens          []domain.ScannedToken `json:"tokens"`
	Count           int                   `json:"count"`
	Total           int                   `json:"total"`
	Outcome         scanner.LoadOutcome   `json:"outcome"`
	CacheAgeSeconds float64               `json:"cacheAgeSeconds"`
	Error           string                `json:"error,omitempty"`
}

// StreamMessage is pushed to stream clients on connect and after each refresh.
type StreamMessage struct {
	Type   string                `json:"type"`
	Tokens []domain.ScannedToken `json:"tokens"`
	At     int64                 `json:"at"` // Unix ms
}

// BroadcastTokens pushes a token set to stream clients.
func (s *Server) BroadcastTokens(tokens []domain.ScannedToken) {
	msg := StreamMessage{Type: "tokens", Tokens: tokens, At: time.Now().UnixMilli()}
	if err := s.hub.Broadcast(msg); err != nil {
		s.logger.Warn().Err(err).Msg("broadcast failed")
	}
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeTokens(w, s.opts.Scanner.FastLoad(r.Context()), q)
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	res := s.opts.Scanner.Refresh(r.Context())
	if res.Outcome != scanner.LoadFailed {
		s.BroadcastTokens(res.Tokens)
	}
	s.writeTokens(w, res, filter.Query{})
}

func (s *Server) writeTokens(w http.ResponseWriter, res scanner.LoadResult, q filter.Query) {
	tokens := filter.Apply(res.Tokens, q)
	resp := tokensResponse{
		Tokens:          tokens,
		Count:           len(tokens),
		Total:           len(res.Tokens),
		Outcome:         res.Outcome,
		CacheAgeSeconds: s.opts.Scanner.Cache().Age().Seconds(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseQuery(r *http.Request) (filter.Query, error) {
	v := r.URL.Query()
	tags, err := filter.ParseTags(v.Get("tags"))
	if err != nil {
		return filter.Query{}, err
	}
	sortKey, err := filter.ParseSort(v.Get("sort"))
	if err != nil {
		return filter.Query{}, err
	}
	return filter.Query{
		Search:  v.Get("search"),
		Reserve: v.Get("reserve"),
		Tags:    tags,
		Sort:    sortKey,
	}, nil
}

type selectionResponse struct {
	*scanner.Selection
	Tier string `json:"tier"`
}

func (s *Server) selectToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := mux.Vars(r)["address"]

	t, err := s.resolveTier(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if len(s.opts.Scanner.Tokens()) == 0 {
		s.opts.Scanner.FastLoad(ctx)
	}

	sel, err := s.opts.Scanner.Select(ctx, address, scanner.SelectOptions{
		WithCreator: t.Has(tier.FeaturePredictions),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionResponse{Selection: sel, Tier: t.Key})
}

func (s *Server) listPredictions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ledger := s.opts.Ledger

	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		p, err := ledger.ActiveFor(ctx, symbol)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"prediction": p})
		return
	}

	var (
		list []domain.Prediction
		err  error
	)
	switch view := r.URL.Query().Get("view"); view {
	case "", "all":
		list, err = ledger.All(ctx)
	case "active":
		list, err = ledger.Active(ctx)
	case "expired":
		list, err = ledger.ExpiredUnresolved(ctx)
	case "history":
		list, err = ledger.History(ctx)
	default:
		err = badRequest("unknown view %q", view)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"predictions": list, "count": len(list)})
}

type createPredictionRequest struct {
	Symbol    string           `json:"symbol"`
	Address   string           `json:"address"`
	Direction domain.Direction `json:"direction"`
	Stake     decimal.Decimal  `json:"stake"`
}

func (s *Server) createPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, badRequest("decode body: %v", err))
		return
	}
	if req.Symbol == "" {
		s.writeError(w, badRequest("symbol is required"))
		return
	}

	key := req.Address
	if key == "" {
		key = req.Symbol
	}
	price, ok := s.opts.Scanner.CurrentPrice(ctx, key)
	if !ok {
		s.writeError(w, errNoPrice)
		return
	}

	p, err := s.opts.Ledger.Open(ctx, req.Symbol, req.Address, req.Direction, req.Stake, price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// resolvePrediction settles an expired prediction at the enrichment source's
// current price. Callers cannot supply a price.
func (s *Server) resolvePrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	p, err := s.findPrediction(r, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if p.Resolved {
		writeJSON(w, http.StatusOK, p)
		return
	}
	if p.IsActive(s.opts.Ledger.Now().UnixMilli()) {
		s.writeError(w, errNotExpired)
		return
	}

	key := p.Token
	if key == "" {
		key = p.TokenSymbol
	}
	price, ok := s.opts.Scanner.CurrentPrice(ctx, key)
	if !ok {
		s.writeError(w, errNoPrice)
		return
	}

	resolved, err := s.opts.Ledger.Resolve(ctx, id, price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (s *Server) findPrediction(r *http.Request, id string) (*domain.Prediction, error) {
	all, err := s.opts.Ledger.All(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

type tierResponse struct {
	Tier    tier.Tier           `json:"tier"`
	Upgrade *tier.UpgradePrompt `json:"upgrade,omitempty"`
}

func (s *Server) getTier(w http.ResponseWriter, r *http.Request) {
	t, err := s.resolveTier(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := tierResponse{Tier: t}
	if feature := r.URL.Query().Get("feature"); feature != "" && !t.Has(feature) {
		if prompt, ok := s.opts.Tiers.UpgradePrompt(feature); ok {
			resp.Upgrade = &prompt
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveTier reads the tier from a balance query parameter (whole tokens) or
// from the on-chain balance of a wallet. With neither, the lowest tier applies.
func (s *Server) resolveTier(r *http.Request) (tier.Tier, error) {
	q := r.URL.Query()

	if b := q.Get("balance"); b != "" {
		balance, err := decimal.NewFromString(b)
		if err != nil {
			return tier.Tier{}, badRequest("invalid balance %q", b)
		}
		return s.opts.Tiers.TierFor(balance), nil
	}

	if wallet := q.Get("wallet"); wallet != "" {
		token := q.Get("token")
		if token == "" {
			token = s.opts.TierToken
		}
		if s.opts.Balances == nil || token == "" {
			return tier.Tier{}, badRequest("wallet tier lookup is not configured")
		}
		bal, err := s.opts.Balances.TokenBalance(r.Context(), token, wallet)
		if err != nil {
			s.logger.Warn().Err(err).Str("wallet", wallet).Msg("balance lookup failed")
			return s.opts.Tiers.TierFor(decimal.Zero), nil
		}
		return s.opts.Tiers.TierForBaseUnits(bal, s.opts.TierDecimals), nil
	}

	return s.opts.Tiers.TierFor(decimal.Zero), nil
}

func (s *Server) getCreator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := mux.Vars(r)["address"]

	if s.opts.Reputation == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "reputation lookup is not configured"})
		return
	}

	count := 0
	if v := r.URL.Query().Get("tokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, badRequest("invalid tokens %q", v))
			return
		}
		count = n
	} else if s.opts.Creators != nil {
		n, err := s.opts.Creators.GetCreatorTokenCount(ctx, address)
		if err != nil {
			s.logger.Warn().Err(err).Str("creator", address).Msg("creator token count failed")
		}
		count = n
	}

	profile, err := s.opts.Reputation.Lookup(ctx, address, count)
	if err != nil {
		s.logger.Warn().Err(err).Str("creator", address).Msg("reputation lookup failed")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "reputation lookup failed"})
		return
	}
	if profile == nil {
		s.writeError(w, storage.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	initial := StreamMessage{Type: "tokens", Tokens: s.opts.Scanner.Tokens(), At: time.Now().UnixMilli()}
	if err := s.hub.Serve(w, r, initial); err != nil {
		s.logger.Warn().Err(err).Msg("stream connect failed")
	}
}

type healthResponse struct {
	Status          string  `json:"status"`
	Tokens          int     `json:"tokens"`
	CacheFresh      bool    `json:"cacheFresh"`
	CacheAgeSeconds float64 `json:"cacheAgeSeconds"`
	Enriched        int     `json:"enriched"`
	StreamClients   int     `json:"streamClients"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	c := s.opts.Scanner.Cache()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		Tokens:          len(s.opts.Scanner.Tokens()),
		CacheFresh:      c.Fresh(),
		CacheAgeSeconds: c.Age().Seconds(),
		Enriched:        s.opts.Scanner.MemoSize(),
		StreamClients:   s.hub.Clients(),
	})
}

type errorBody struct {
	Error string `json:"error"`
}

type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return badRequestError{msg: fmt.Sprintf(format, args...)}
}

func statusFor(err error) int {
	var br badRequestError
	switch {
	case errors.As(err, &br),
		errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, filter.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, scanner.ErrTokenNotFound):
		return http.StatusNotFound
	case errors.Is(err, prediction.ErrActivePrediction),
		errors.Is(err, errNotExpired):
		return http.StatusConflict
	case errors.Is(err, errNoPrice):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
