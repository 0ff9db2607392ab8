package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-guard/internal/config"
	"solana-token-guard/internal/domain"
	"solana-token-guard/internal/ledger"
	"solana-token-guard/internal/oracle"
	"solana-token-guard/internal/orchestrator"
	"solana-token-guard/internal/storage/memory"
)

const t0 int64 = 1704067200

var (
	mintAddr    = domain.MustPubkey("So11111111111111111111111111111111111111112")
	treasury    = testPubkey(0xA1)
	aliceWallet = testPubkey(0xA2)
)

func testPubkey(b byte) domain.Pubkey {
	var pk domain.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func testKey(seed byte) (ed25519.PrivateKey, domain.Pubkey) {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	var pk domain.Pubkey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return priv, pk
}

func dollarFeed() []byte {
	return oracle.EncodePriceAccount(oracle.PriceAccount{
		Exponent:       -8,
		AggPrice:       100_000_000,
		AggConfidence:  500_000,
		AggStatus:      domain.TradingStatusTrading,
		AggPublishSlot: 7,
	})
}

type failingFeed struct{}

func (failingFeed) Fetch(context.Context) (*oracle.Feed, error) {
	return nil, errors.New("rpc down")
}

type harness struct {
	handler  http.Handler
	deployer ed25519.PrivateKey
	alice    ed25519.PrivateKey
	deployPK domain.Pubkey
	alicePK  domain.Pubkey
	stamp    int64
}

func newHarness(t *testing.T, feed oracle.FeedSource) *harness {
	t.Helper()
	deployer, deployPK := testKey(1)
	alice, alicePK := testKey(2)

	policy := config.DefaultPolicy()
	book := ledger.NewMemory()
	require.NoError(t, book.CreateMint(mintAddr, deployPK, policy.Decimals))

	holders := memory.NewHolderRecordStore()
	vaults := memory.NewRewardsVaultStore()
	events := memory.NewEngineEventStore()
	engine, err := orchestrator.New(orchestrator.Options{
		Policy:  policy,
		Mint:    mintAddr,
		Holders: holders,
		Vaults:  vaults,
		Claims:  memory.NewClaimCommitter(holders, vaults),
		Ledger:  book,
		Events:  events,
	})
	require.NoError(t, err)

	adapter, err := oracle.NewAdapter(policy)
	require.NoError(t, err)

	server := NewServer(ServerOptions{
		Engine:   engine,
		Feed:     feed,
		Adapter:  adapter,
		Events:   events,
		Accounts: book,
		Now:      func() time.Time { return time.Unix(t0, 0) },
	})
	return &harness{
		handler:  server.Routes(),
		deployer: deployer,
		alice:    alice,
		deployPK: deployPK,
		alicePK:  alicePK,
	}
}

// signedRequest builds a POST of raw signed by key at unix time ts.
func signedRequest(key ed25519.PrivateKey, path string, raw []byte, ts int64) *http.Request {
	stamp := strconv.FormatInt(ts, 10)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(headerAuthority, base58.Encode(key.Public().(ed25519.PublicKey)))
	req.Header.Set(headerTimestamp, stamp)
	req.Header.Set(headerSignature, base58.Encode(ed25519.Sign(key, signingMessage(http.MethodPost, path, stamp, raw))))
	return req
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

// signed sends body signed by key. Each call gets a distinct timestamp so
// identical bodies produce distinct signatures.
func (h *harness) signed(t *testing.T, key ed25519.PrivateKey, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	h.stamp++
	return h.serve(signedRequest(key, path, raw, t0+h.stamp))
}

func (h *harness) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

// bootstrap opens accounts, initializes the token and both holders.
func (h *harness) bootstrap(t *testing.T) {
	t.Helper()
	steps := []struct {
		key  ed25519.PrivateKey
		path string
		body any
	}{
		{h.deployer, "/v1/accounts", map[string]string{"account": treasury.String()}},
		{h.deployer, "/v1/token/init", map[string]string{"treasury": treasury.String()}},
		{h.deployer, "/v1/holders/init", map[string]string{}},
		{h.alice, "/v1/accounts", map[string]string{"account": aliceWallet.String()}},
		{h.alice, "/v1/holders/init", map[string]string{}},
	}
	for _, s := range steps {
		rec := h.signed(t, s.key, s.path, s.body)
		require.Equal(t, http.StatusCreated, rec.Code, "%s: %s", s.path, rec.Body.String())
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_TransferFlow(t *testing.T) {
	h := newHarness(t, oracle.NewStaticFeedSource("feed", dollarFeed(), 7))
	h.bootstrap(t)

	vault := decode[vaultResponse](t, h.get("/v1/vault"))
	assert.Equal(t, h.deployPK.String(), vault.Authority)
	assert.Equal(t, mintAddr.String(), vault.Mint)
	assert.Equal(t, t0, vault.LastUpdateTimestamp)

	rec := h.signed(t, h.deployer, "/v1/transfers", map[string]any{
		"from":   treasury.String(),
		"to":     aliceWallet.String(),
		"amount": 1_000_000_000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))

	res := decode[transferResponse](t, rec)
	assert.Equal(t, uint64(1_000_000), res.Price.Price)
	assert.Equal(t, uint8(6), res.Price.Decimals)
	assert.Equal(t, "TRADING", res.Price.Status)
	assert.Equal(t, uint64(7), res.Price.PublishSlot)
	assert.Equal(t, uint64(1), res.Holder.DailyTransactionCount)
	assert.Equal(t, t0, res.Holder.LastTransferTimestamp)

	holder := decode[holderResponse](t, h.get("/v1/holders/"+h.deployPK.String()))
	assert.Equal(t, uint64(1), holder.DailyTransactionCount)

	events := decode[[]eventResponse](t, h.get("/v1/holders/"+h.deployPK.String()+"/events"))
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventKindTransfer, events[2].Kind)
	assert.Equal(t, domain.OutcomeOK, events[2].Outcome)
	assert.Equal(t, uint64(1_000_000), events[2].Price)
}

func TestServer_TransferRejections(t *testing.T) {
	h := newHarness(t, oracle.NewStaticFeedSource("feed", dollarFeed(), 7))
	h.bootstrap(t)

	tests := []struct {
		name   string
		key    ed25519.PrivateKey
		body   map[string]any
		status int
		stage  string
		reason string
	}{
		{
			name:   "below minimum",
			key:    h.deployer,
			body:   map[string]any{"from": treasury.String(), "to": aliceWallet.String(), "amount": 1},
			status: http.StatusUnprocessableEntity,
			stage:  "limits",
		},
		{
			name:   "signer is not the claimed authority",
			key:    h.alice,
			body:   map[string]any{"authority": h.deployPK.String(), "from": treasury.String(), "to": aliceWallet.String(), "amount": 1_000_000_000},
			status: http.StatusForbidden,
			stage:  "authorize",
		},
		{
			name:   "source account owned by someone else",
			key:    h.alice,
			body:   map[string]any{"from": treasury.String(), "to": aliceWallet.String(), "amount": 1_000_000_000},
			status: http.StatusForbidden,
			stage:  "authorize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.signed(t, tt.key, "/v1/transfers", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, tt.stage, resp.Stage)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.NotEmpty(t, resp.RequestID)
		})
	}

	// Rejections leave the record untouched.
	holder := decode[holderResponse](t, h.get("/v1/holders/"+h.deployPK.String()))
	assert.Equal(t, uint64(0), holder.DailyTransactionCount)
}

func TestServer_FeedUnavailable(t *testing.T) {
	h := newHarness(t, failingFeed{})
	h.bootstrap(t)

	rec := h.signed(t, h.deployer, "/v1/transfers", map[string]any{
		"from":   treasury.String(),
		"to":     aliceWallet.String(),
		"amount": 1_000_000_000,
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.get("/v1/price").Code)
}

func TestServer_HaltedFeed(t *testing.T) {
	halted := oracle.EncodePriceAccount(oracle.PriceAccount{
		Exponent:       -8,
		AggPrice:       100_000_000,
		AggStatus:      domain.TradingStatusHalted,
		AggPublishSlot: 8,
	})
	h := newHarness(t, oracle.NewStaticFeedSource("feed", halted, 8))
	h.bootstrap(t)

	rec := h.signed(t, h.deployer, "/v1/transfers", map[string]any{
		"from":   treasury.String(),
		"to":     aliceWallet.String(),
		"amount": 1_000_000_000,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "oracle", resp.Stage)
	assert.Equal(t, "not_trading", resp.Reason)
}

func TestServer_CallerCannotSupplyPrice(t *testing.T) {
	h := newHarness(t, oracle.NewStaticFeedSource("feed", dollarFeed(), 7))
	h.bootstrap(t)

	forged := oracle.EncodePriceAccount(oracle.PriceAccount{
		Exponent:       0,
		AggPrice:       1_000_000_000_000,
		AggStatus:      domain.TradingStatusTrading,
		AggPublishSlot: 9,
	})
	rec := h.signed(t, h.deployer, "/v1/transfers", map[string]any{
		"from":       treasury.String(),
		"to":         aliceWallet.String(),
		"amount":     1,
		"price_feed": forged,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// Without the field the watched price applies and one unit is below minimum.
	rec = h.signed(t, h.deployer, "/v1/transfers", map[string]any{
		"from":   treasury.String(),
		"to":     aliceWallet.String(),
		"amount": 1,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	assert.Equal(t, "limits", decode[errorResponse](t, rec).Stage)

	holder := decode[holderResponse](t, h.get("/v1/holders/"+h.deployPK.String()))
	assert.Equal(t, uint64(0), holder.DailyTransactionCount)
}

func TestServer_ReplayedRequestRejected(t *testing.T) {
	h := newHarness(t, oracle.NewStaticFeedSource("feed", dollarFeed(), 7))
	h.bootstrap(t)

	raw, err := json.Marshal(map[string]any{
		"from":   treasury.String(),
		"to":     aliceWallet.String(),
		"amount": 1_000_000_000,
	})
	require.NoError(t, err)

	req := signedRequest(h.deployer, "/v1/transfers", raw, t0)
	sig, stamp := req.Header.Get(headerSignature), req.Header.Get(headerTimestamp)
	rec := h.serve(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for i := 0; i < 2; i++ {
		again := httptest.NewRequest(http.MethodPost, "/v1/transfers", bytes.NewReader(raw))
		again.Header.Set(headerAuthority, h.deployPK.String())
		again.Header.Set(headerTimestamp, stamp)
		again.Header.Set(headerSignature, sig)
		assert.Equal(t, http.StatusUnauthorized, h.serve(again).Code)
	}

	holder := decode[holderResponse](t, h.get("/v1/holders/"+h.deployPK.String()))
	assert.Equal(t, uint64(1), holder.DailyTransactionCount)
}

func TestServer_Authentication(t *testing.T) {
	h := newHarness(t, oracle.NewStaticFeedSource("feed", dollarFeed(), 7))
	body := []byte(`{}`)

	t.Run("missing headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/holders/init", bytes.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("signature over another body", func(t *testing.T) {
		req := signedRequest(h.alice, "/v1/holders/init", []byte(`{"x":1}`), t0)
		req.Body = io.NopCloser(bytes.NewReader(body))
		assert.Equal(t, http.StatusUnauthorized, h.serve(req).Code)
	})

	t.Run("signature for another path", func(t *testing.T) {
		signedForClaims := signedRequest(h.alice, "/v1/claims", body, t0)
		req := httptest.NewRequest(http.MethodPost, "/v1/holders/init", bytes.NewReader(body))
		req.Header = signedForClaims.Header.Clone()
		assert.Equal(t, http.StatusUnauthorized, h.serve(req).Code)
	})

	t.Run("signed by another key", func(t *testing.T) {
		req := signedRequest(h.deployer, "/v1/holders/init", body, t0)
		req.Header.Set(headerAuthority, h.alicePK.String())
		assert.Equal(t, http.StatusUnauthorized, h.serve(req).Code)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		req := signedRequest(h.alice, "/v1/holders/init", body, t0)
		req.Header.Del(headerTimestamp)
		assert.Equal(t, http.StatusUnauthorized, h.serve(req).Code)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		stale := t0 - int64(maxClockSkew/time.Second) - 1
		assert.Equal(t, http.StatusUnauthorized, h.serve(signedRequest(h.alice, "/v1/holders/init", body, stale)).Code)
	})

	t.Run("future timestamp", func(t *testing.T) {
		ahead := t0 + int64(maxClockSkew/time.Second) + 1
		assert.Equal(t, http.StatusUnauthorized, h.serve(signedRequest(h.alice, "/v1/holders/init", body, ahead)).Code)
	})

	t.Run("valid signature", func(t *testing.T) {
		rec := h.signed(t, h.alice, "/v1/holders/init", map[string]string{})
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("duplicate init conflicts", func(t *testing.T) {
		rec := h.signed(t, h.alice, "/v1/holders/init", map[string]string{})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "state", decode[errorResponse](t, rec).Stage)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		rec := h.signed(t, h.alice, "/v1/holders/init", map[string]string{"color": "red"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_ClaimBeforeHoldingPeriod(t *testing.T) {
	h := newHarness(t, oracle.NewStaticFeedSource("feed", dollarFeed(), 7))
	h.bootstrap(t)

	rec := h.signed(t, h.alice, "/v1/claims", map[string]string{"token_account": aliceWallet.String()})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "state", decode[errorResponse](t, rec).Stage)
}

func TestServer_Reads(t *testing.T) {
	h := newHarness(t, oracle.NewStaticFeedSource("feed", dollarFeed(), 7))

	assert.Equal(t, http.StatusNotFound, h.get("/v1/vault").Code)
	assert.Equal(t, http.StatusNotFound, h.get("/v1/holders/"+h.alicePK.String()).Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/v1/holders/not-a-key").Code)

	price := decode[priceResponse](t, h.get("/v1/price"))
	assert.Equal(t, uint64(1_000_000), price.Price)

	assert.Equal(t, http.StatusOK, h.get("/healthz").Code)
	assert.Equal(t, http.StatusOK, h.get("/metrics").Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
	assert.Equal(t, http.StatusForbidden, statusFor(&orchestrator.TransferError{Stage: orchestrator.StageAuthorize, Err: errors.New("x")}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&orchestrator.TransferError{Stage: orchestrator.StageLedger, Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(&orchestrator.TransferError{Stage: orchestrator.StageStorage, Err: errors.New("x")}))
}
