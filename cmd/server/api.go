package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/observability"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/orchestrator"
	"solana-token-guard/internal/storage"
)

// accountOpener opens token accounts on ledgers the host owns.
type accountOpener interface {
	CreateAccount(account, mint, owner domain.Pubkey) error
}

// ServerOptions for creating a Server.
type ServerOptions struct {
	Engine  *orchestrator.Engine
	Feed    oracle.FeedSource // source of every transfer's price
	Adapter *oracle.Adapter

	// Optional
	Events   storage.EngineEventStore
	Accounts accountOpener
	Logger   *zap.Logger
	Now      func() time.Time
}

// Server exposes the engine over HTTP.
type Server struct {
	engine   *orchestrator.Engine
	feed     oracle.FeedSource
	adapter  *oracle.Adapter
	events   storage.EngineEventStore
	accounts accountOpener
	log      *zap.Logger
	now      func() time.Time
	replay   *replayGuard

	// mu serializes mutating operations; the engine assumes one in-flight
	// mutation per record.
	mu sync.Mutex
}

// NewServer creates a Server.
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		engine:   opts.Engine,
		feed:     opts.Feed,
		adapter:  opts.Adapter,
		events:   opts.Events,
		accounts: opts.Accounts,
		log:      opts.Logger,
		now:      opts.Now,
		replay:   newReplayGuard(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("http")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, s.accessLog, middleware.Recoverer)

	s.mountOps(r)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/vault", s.handleGetVault)
		r.Get("/price", s.handleGetPrice)
		r.Get("/holders/{authority}", s.handleGetHolder)
		if s.events != nil {
			r.Get("/holders/{authority}/events", s.handleHolderEvents)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/token/init", s.handleInitToken)
			r.Post("/holders/init", s.handleInitHolder)
			r.Post("/transfers", s.handleTransfer)
			r.Post("/claims", s.handleClaim)
			if s.accounts != nil {
				r.Post("/accounts", s.handleOpenAccount)
			}
		})
	})
	return r
}

// OpsRoutes returns the health and metrics endpoints alone.
func (s *Server) OpsRoutes() http.Handler {
	r := chi.NewRouter()
	s.mountOps(r)
	return r
}

func (s *Server) mountOps(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.Handler())
}

// Request bodies. Pubkeys are base58 strings. An omitted authority
// defaults to the authenticated signer.

type initTokenRequest struct {
	Authority domain.Pubkey `json:"authority"`
	Treasury  domain.Pubkey `json:"treasury"`
}

type initHolderRequest struct {
	Authority domain.Pubkey `json:"authority"`
}

type transferRequest struct {
	Authority domain.Pubkey `json:"authority"`
	From      domain.Pubkey `json:"from"`
	To        domain.Pubkey `json:"to"`
	Amount    uint64        `json:"amount"`
}

type claimRequest struct {
	Authority    domain.Pubkey `json:"authority"`
	TokenAccount domain.Pubkey `json:"token_account"`
}

type openAccountRequest struct {
	Account domain.Pubkey `json:"account"`
}

// Responses.

type holderResponse struct {
	Authority             string `json:"authority"`
	RewardsEarned         uint64 `json:"rewards_earned"`
	LastClaimTimestamp    int64  `json:"last_claim_timestamp"`
	LastTransferTimestamp int64  `json:"last_transfer_timestamp"`
	DailyTransactionCount uint64 `json:"daily_transaction_count"`
	LastTransactionDay    int64  `json:"last_transaction_day"`
}

func newHolderResponse(r *domain.HolderRecord) holderResponse {
	return holderResponse{
		Authority:             r.Authority.String(),
		RewardsEarned:         r.RewardsEarned,
		LastClaimTimestamp:    r.LastClaimTimestamp,
		LastTransferTimestamp: r.LastTransferTimestamp,
		DailyTransactionCount: r.DailyTransactionCount,
		LastTransactionDay:    r.LastTransactionDay,
	}
}

type vaultResponse struct {
	Mint                string `json:"mint"`
	Authority           string `json:"authority"`
	TotalRewardsIssued  uint64 `json:"total_rewards_issued"`
	LastUpdateTimestamp int64  `json:"last_update_timestamp"`
}

func (s *Server) newVaultResponse(v *domain.RewardsVault) vaultResponse {
	return vaultResponse{
		Mint:                s.engine.Mint().String(),
		Authority:           v.Authority.String(),
		TotalRewardsIssued:  v.TotalRewardsIssued,
		LastUpdateTimestamp: v.LastUpdateTimestamp,
	}
}

type priceResponse struct {
	Price       uint64 `json:"price"`
	Decimals    uint8  `json:"decimals"`
	Status      string `json:"status"`
	PublishSlot uint64 `json:"publish_slot"`
}

type transferResponse struct {
	Price  priceResponse  `json:"price"`
	Holder holderResponse `json:"holder"`
}

type claimResponse struct {
	Reward        uint64         `json:"reward"`
	HoldingPeriod uint64         `json:"holding_period"`
	Balance       uint64         `json:"balance"`
	Holder        holderResponse `json:"holder"`
	Vault         vaultResponse  `json:"vault"`
}

type eventResponse struct {
	EventID      string `json:"event_id"`
	Kind         string `json:"kind"`
	Outcome      string `json:"outcome"`
	Counterparty string `json:"counterparty,omitempty"`
	Amount       uint64 `json:"amount"`
	Price        uint64 `json:"price,omitempty"`
	Reward       uint64 `json:"reward,omitempty"`
	Stage        string `json:"stage,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	Sequence     uint64 `json:"sequence"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Stage     string `json:"stage,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) priceResponse(q domain.PriceQuote) priceResponse {
	return priceResponse{
		Price:       q.Price,
		Decimals:    s.engine.Policy().PriceDecimals,
		Status:      q.Status.String(),
		PublishSlot: q.PublishSlot,
	}
}

func (s *Server) handleInitToken(w http.ResponseWriter, r *http.Request) {
	var req initTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	principal := principalFrom(r.Context())
	if req.Authority.IsZero() {
		req.Authority = principal
	}

	s.mu.Lock()
	vault, err := s.engine.InitializeToken(r.Context(), principal, req.Authority, req.Treasury, s.now().Unix())
	s.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.newVaultResponse(vault))
}

func (s *Server) handleInitHolder(w http.ResponseWriter, r *http.Request) {
	var req initHolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	principal := principalFrom(r.Context())
	if req.Authority.IsZero() {
		req.Authority = principal
	}

	s.mu.Lock()
	rec, err := s.engine.InitializeRewards(r.Context(), principal, req.Authority, s.now().Unix())
	s.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newHolderResponse(rec))
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}
	principal := principalFrom(r.Context())
	if req.Authority.IsZero() {
		req.Authority = principal
	}

	// The price always comes from the watched feed, never from the caller.
	feed, err := s.feed.Fetch(r.Context())
	if err != nil {
		s.log.Warn("price feed unavailable", zap.Error(err))
		writeStatus(w, r, http.StatusServiceUnavailable, errorResponse{Error: "price feed unavailable"})
		return
	}

	s.mu.Lock()
	res, err := s.engine.SecureTransfer(r.Context(), orchestrator.TransferRequest{
		Principal:    principal,
		Authority:    req.Authority,
		From:         req.From,
		To:           req.To,
		RawPriceFeed: feed.Data,
		Amount:       req.Amount,
		Now:          s.now().Unix(),
	})
	s.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{
		Price:  s.priceResponse(res.Price),
		Holder: newHolderResponse(&res.Record),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	principal := principalFrom(r.Context())
	if req.Authority.IsZero() {
		req.Authority = principal
	}

	s.mu.Lock()
	res, err := s.engine.ClaimRewards(r.Context(), principal, req.Authority, req.TokenAccount, s.now().Unix())
	s.mu.Unlock()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		Reward:        res.Reward,
		HoldingPeriod: res.HoldingPeriod,
		Balance:       res.Balance,
		Holder:        newHolderResponse(&res.Record),
		Vault:         s.newVaultResponse(&res.Vault),
	})
}

// handleOpenAccount opens a token account of the engine's mint owned by
// the signer. Only mounted when the host runs its own ledger.
func (s *Server) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Account.IsZero() {
		writeStatus(w, r, http.StatusBadRequest, errorResponse{Error: "account is required"})
		return
	}
	owner := principalFrom(r.Context())

	s.mu.Lock()
	err := s.accounts.CreateAccount(req.Account, s.engine.Mint(), owner)
	s.mu.Unlock()
	if err != nil {
		writeStatus(w, r, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"account": req.Account.String(),
		"mint":    s.engine.Mint().String(),
		"owner":   owner.String(),
	})
}

func (s *Server) handleGetHolder(w http.ResponseWriter, r *http.Request) {
	authority, ok := pathPubkey(w, r, "authority")
	if !ok {
		return
	}
	rec, err := s.engine.Holder(r.Context(), authority)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newHolderResponse(rec))
}

func (s *Server) handleHolderEvents(w http.ResponseWriter, r *http.Request) {
	authority, ok := pathPubkey(w, r, "authority")
	if !ok {
		return
	}
	events, err := s.events.GetByAuthority(r.Context(), authority.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			EventID:      e.EventID,
			Kind:         e.Kind,
			Outcome:      e.Outcome,
			Counterparty: e.Counterparty,
			Amount:       e.Amount,
			Price:        e.Price,
			Reward:       e.Reward,
			Stage:        e.Stage,
			Reason:       e.Reason,
			Timestamp:    e.Timestamp,
			Sequence:     e.Sequence,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetVault(w http.ResponseWriter, r *http.Request) {
	vault, err := s.engine.Vault(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.newVaultResponse(vault))
}

// handleGetPrice evaluates the latest feed snapshot the way a transfer would.
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	f, err := s.feed.Fetch(r.Context())
	if err != nil {
		s.log.Warn("price feed unavailable", zap.Error(err))
		writeStatus(w, r, http.StatusServiceUnavailable, errorResponse{Error: "price feed unavailable"})
		return
	}
	q, err := s.adapter.GetNormalizedPrice(f.Data)
	if err != nil {
		writeStatus(w, r, http.StatusUnprocessableEntity, errorResponse{
			Error:  err.Error(),
			Stage:  string(orchestrator.StageOracle),
			Reason: oracle.RejectReason(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, s.priceResponse(q))
}

// statusFor maps engine and storage errors to HTTP status codes.
func statusFor(err error) int {
	var terr *orchestrator.TransferError
	if !errors.As(err, &terr) {
		if errors.Is(err, storage.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusInternalServerError
	}

	switch terr.Stage {
	case orchestrator.StageAuthorize:
		return http.StatusForbidden
	case orchestrator.StageState:
		if errors.Is(err, storage.ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case orchestrator.StageStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}
	var terr *orchestrator.TransferError
	if errors.As(err, &terr) {
		resp.Stage = string(terr.Stage)
		if terr.Stage == orchestrator.StageOracle {
			resp.Reason = oracle.RejectReason(err)
		}
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	writeStatus(w, r, status, resp)
}

func writeStatus(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.RequestID = requestIDFrom(r.Context())
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeBody decodes a JSON request body, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeStatus(w, r, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func pathPubkey(w http.ResponseWriter, r *http.Request, name string) (domain.Pubkey, bool) {
	pk, err := domain.ParsePubkey(chi.URLParam(r, name))
	if err != nil {
		writeStatus(w, r, http.StatusBadRequest, errorResponse{Error: "invalid " + name + ": " + err.Error()})
		return domain.Pubkey{}, false
	}
	return pk, true
}

// accessLog logs and counts every request by route pattern.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(status))
		s.log.Debug("request",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
