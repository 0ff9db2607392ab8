package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-token-guard/internal/domain"
)

// Authentication headers. The signature covers signingMessage.
const (
	headerAuthority = "X-Authority"
	headerSignature = "X-Signature"
	headerTimestamp = "X-Timestamp"
	headerRequestID = "X-Request-ID"
)

const (
	maxBodyBytes = 1 << 20

	// maxClockSkew bounds how far X-Timestamp may be from the server clock.
	maxClockSkew = 5 * time.Minute

	maxRememberedSignatures = 100_000
)

// signingMessage is what a principal signs: method, path, unix timestamp
// and raw body, newline separated.
func signingMessage(method, path, timestamp string, body []byte) []byte {
	msg := make([]byte, 0, len(method)+len(path)+len(timestamp)+len(body)+3)
	msg = append(msg, method...)
	msg = append(msg, '\n')
	msg = append(msg, path...)
	msg = append(msg, '\n')
	msg = append(msg, timestamp...)
	msg = append(msg, '\n')
	return append(msg, body...)
}

// replayGuard remembers accepted signatures for as long as their timestamp
// could still pass the skew check.
type replayGuard struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

func newReplayGuard() *replayGuard {
	return &replayGuard{
		seen: expirable.NewLRU[string, struct{}](maxRememberedSignatures, nil, 2*maxClockSkew),
	}
}

// firstUse records sig and reports whether it had not been seen before.
func (g *replayGuard) firstUse(sig []byte) bool {
	key := string(sig)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen.Contains(key) {
		return false
	}
	g.seen.Add(key, struct{}{})
	return true
}

type ctxKey int

const (
	principalKey ctxKey = iota
	requestIDKey
)

func principalFrom(ctx context.Context) domain.Pubkey {
	pk, _ := ctx.Value(principalKey).(domain.Pubkey)
	return pk
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestID tags each request with the caller's X-Request-ID or a fresh UUID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// authenticate verifies the ed25519 signature of X-Authority over the
// request's signingMessage, rejects stale timestamps and reused signatures,
// and stores the signer as the request principal.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := domain.ParsePubkey(r.Header.Get(headerAuthority))
		if err != nil {
			writeStatus(w, r, http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + headerAuthority})
			return
		}
		if !principal.IsOnCurve() {
			writeStatus(w, r, http.StatusUnauthorized, errorResponse{Error: "authority is not an ed25519 public key"})
			return
		}
		sig, err := base58.Decode(r.Header.Get(headerSignature))
		if err != nil || len(sig) != ed25519.SignatureSize {
			writeStatus(w, r, http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + headerSignature})
			return
		}
		timestamp := r.Header.Get(headerTimestamp)
		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			writeStatus(w, r, http.StatusUnauthorized, errorResponse{Error: "missing or invalid " + headerTimestamp})
			return
		}
		if skew := s.now().Sub(time.Unix(ts, 0)); skew > maxClockSkew || skew < -maxClockSkew {
			writeStatus(w, r, http.StatusUnauthorized, errorResponse{Error: headerTimestamp + " outside the accepted window"})
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeStatus(w, r, status, errorResponse{Error: "read body: " + err.Error()})
			return
		}
		msg := signingMessage(r.Method, r.URL.Path, timestamp, body)
		if !ed25519.Verify(ed25519.PublicKey(principal[:]), msg, sig) {
			s.log.Warn("signature rejected", zap.String("authority", principal.String()), zap.String("request_id", requestIDFrom(r.Context())))
			writeStatus(w, r, http.StatusUnauthorized, errorResponse{Error: "signature verification failed"})
			return
		}
		if !s.replay.firstUse(sig) {
			s.log.Warn("signature reused", zap.String("authority", principal.String()), zap.String("request_id", requestIDFrom(r.Context())))
			writeStatus(w, r, http.StatusUnauthorized, errorResponse{Error: "signature already used"})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, principal)))
	})
}
