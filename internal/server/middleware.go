package server

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/calliope-fm/calliope/internal/services"
	"github.com/calliope-fm/calliope/internal/shared"
)

type ctxKey int

const identityKey ctxKey = iota

// identityFrom recovers the authenticated identity attached by
// [Server.authenticate].
func identityFrom(ctx context.Context) (services.Identity, bool) {
	id, ok := ctx.Value(identityKey).(services.Identity)
	return id, ok
}

// requestLogger attaches a request id and logs method, path, and duration.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := shared.GenerateRequestID()
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request",
				"id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
			)
		})
	}
}

// authenticate parses a bearer token when present and attaches the verified
// identity to the request context. Requests without a token pass through
// anonymous; handlers that need auth reject them with 401.
func authenticate(auth *services.AuthService, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respondJSON(w, http.StatusUnauthorized, errorBody{Error: "malformed authorization header"})
				return
			}

			id, err := auth.VerifyToken(raw)
			if err != nil {
				respondError(w, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}

// clientLimiter hands out one token bucket per remote address, dropping
// buckets idle for over an hour.
type clientLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientBucket
	limit    rate.Limit
	burst    int
	lastSeen time.Duration
}

type clientBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{
		clients:  make(map[string]*clientBucket),
		limit:    limit,
		burst:    burst,
		lastSeen: time.Hour,
	}
}

func (l *clientLimiter) allow(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.clients[host]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[host] = bucket
	}
	bucket.seen = time.Now()

	for k, b := range l.clients {
		if time.Since(b.seen) > l.lastSeen {
			delete(l.clients, k)
		}
	}
	return bucket.limiter.Allow()
}

// rateLimit rejects clients exceeding the configured request rate. A zero
// limit disables the middleware.
func rateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newClientLimiter(rate.Limit(limit), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(r.RemoteAddr) {
				respondJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
