package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/apicatalog/internal/policy"
	"github.com/example/apicatalog/internal/token"
)

type ctxKey int

const claimsKey ctxKey = iota

// claimsFrom returns the claims BearerAuth stored on the request.
func claimsFrom(ctx context.Context) (token.ClaimSet, bool) {
	cs, ok := ctx.Value(claimsKey).(token.ClaimSet)
	return cs, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// BearerAuth validates the access token and stores its claims in the
// request context.
func (a *App) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			a.Metrics.rejected("missing_token")
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token required")
			return
		}
		claims, err := a.Codec.Validate(raw)
		if err != nil {
			a.Metrics.rejected("invalid_token")
			a.Logger.DebugContext(r.Context(), "bearer token rejected", "err", err)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePolicy authenticates the request and then evaluates the named
// policy against its claims.
func (a *App) RequirePolicy(name string, next http.HandlerFunc) http.Handler {
	return a.BearerAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFrom(r.Context())
		ok, err := a.Policies.Authorize(name, claims)
		if errors.Is(err, policy.ErrUnknownPolicy) {
			a.Logger.ErrorContext(r.Context(), "route references an unregistered policy", "policy", name)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
			return
		}
		if !ok {
			a.Metrics.rejected("policy")
			a.Logger.InfoContext(r.Context(), "policy denied", "policy", name, "user", claims.Name())
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		next(w, r)
	}))
}

// Authenticated wraps a handler with BearerAuth only.
func (a *App) Authenticated(next http.HandlerFunc) http.Handler {
	return a.BearerAuth(next)
}

// CORS middleware handles CORS headers for the configured origins
func (a *App) CORS(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(a.AllowedOrigins))
	for _, o := range a.AllowedOrigins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", "X-Pagination")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out permit requests per window to each client address.
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	idle     time.Duration
}

func NewRateLimiter(permit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		every:    rate.Every(window / time.Duration(permit)),
		burst:    permit,
		idle:     3 * window,
	}
}

func (rl *RateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= 10000 {
			for k, v := range rl.limiters {
				if now.Sub(v.lastSeen) > rl.idle {
					delete(rl.limiters, k)
				}
			}
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit middleware enforces rate limits per client
func (a *App) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.rateLimiter == nil || a.rateLimiter.allow(clientIP(r), time.Now()) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(a.rateLimitWindow.Seconds())))
		writeError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")
	})
}

// Logging middleware logs requests
func (a *App) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		a.Logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// Recover turns a panic into a generic 500 and logs it.
func (a *App) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.Logger.ErrorContext(r.Context(), "panic serving request", "method", r.Method, "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SecurityHeaders middleware adds security headers
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}
