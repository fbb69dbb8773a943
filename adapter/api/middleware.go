package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// Request headers.
const (
	HeaderUserID        = "X-User-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
)

type actorCtxKey struct{}

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// actorFromContext returns the authenticated actor. Routes behind
// authenticated or adminOnly always have one.
func actorFromContext(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorCtxKey{}).(domain.Actor)
	return actor
}

// authenticator resolves the acting principal. A bearer token equal to the
// admin token grants the admin role; otherwise the caller is the user named
// by X-User-ID, as asserted by the gateway in front of this service.
type authenticator struct {
	adminToken string
}

func (a *authenticator) isAdmin(r *http.Request) bool {
	if a.adminToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(a.adminToken)) == 1
}

var (
	errNoCredentials = errors.New("missing credentials")
	errBadUserID     = errors.New("invalid " + HeaderUserID + " header")
)

func (a *authenticator) actor(r *http.Request) (domain.Actor, error) {
	var userID uuid.UUID
	if raw := r.Header.Get(HeaderUserID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return domain.Actor{}, errBadUserID
		}
		userID = id
	}
	if a.isAdmin(r) {
		return domain.Actor{UserID: userID, Role: domain.RoleAdmin}, nil
	}
	if userID == uuid.Nil {
		return domain.Actor{}, errNoCredentials
	}
	return domain.Actor{UserID: userID, Role: domain.RoleUser}, nil
}

// rejectActor answers a failed actor resolution: a malformed user id is a
// client error, anything else is unauthenticated.
func rejectActor(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadUserID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusUnauthorized, "missing or invalid credentials")
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.auth.actor(r)
		if err != nil {
			rejectActor(w, err)
			return
		}
		if !s.allow(w, r, actor) {
			return
		}
		next(w, r.WithContext(withActor(r.Context(), actor)))
	}
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.isAdmin(r) {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		actor, err := s.auth.actor(r)
		if err != nil {
			rejectActor(w, err)
			return
		}
		if !s.allow(w, r, actor) {
			return
		}
		next(w, r.WithContext(withActor(r.Context(), actor)))
	}
}

func (s *Server) allow(w http.ResponseWriter, r *http.Request, actor domain.Actor) bool {
	key := clientKey(r, actor)
	if s.limiter.Allow(key) {
		return true
	}
	s.metrics.Counter(observability.MetricHTTPLimited, 1)
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	return false
}

func clientKey(r *http.Request, actor domain.Actor) string {
	switch {
	case actor.IsAdmin():
		return "admin"
	case actor.UserID != uuid.Nil:
		return "user:" + actor.UserID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// clientLimiter keeps one token bucket per client key. A non-positive rate
// disables limiting.
type clientLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 10 * time.Minute

func newClientLimiter(perSecond float64, burst int) *clientLimiter {
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Allow reports whether one request for key may proceed now.
func (l *clientLimiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		l.evictIdle(now)
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *clientLimiter) evictIdle(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

// withRequestContext attaches request and correlation IDs and logs each request.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithRequestID(r.Context(), r.Header.Get(HeaderRequestID))
		ctx = observability.WithCorrelationID(ctx, r.Header.Get(HeaderCorrelationID))
		w.Header().Set(HeaderRequestID, observability.RequestIDFromContext(ctx))
		w.Header().Set(HeaderCorrelationID, observability.CorrelationIDFromContext(ctx))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		s.metrics.Counter(observability.MetricHTTPRequests, 1, observability.T("status", strconv.Itoa(rec.status)))
		s.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
