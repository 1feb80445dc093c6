package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Tiers holds the read and write limiters. A nil tier is not limited.
type Tiers struct {
	Read  *Limiter
	Write *Limiter
}

// NewTiers returns tiers allowing readPerMin and writePerMin requests per
// minute per client. A rate of 0 disables the tier. Bursts are a sixth of
// the rate, at least 1.
func NewTiers(readPerMin, writePerMin int) *Tiers {
	t := &Tiers{}
	if readPerMin > 0 {
		t.Read = NewLimiter(readPerMin, time.Minute, max(readPerMin/6, 1))
	}
	if writePerMin > 0 {
		t.Write = NewLimiter(writePerMin, time.Minute, max(writePerMin/6, 1))
	}
	return t
}

// Match returns the tier name and limiter for a request, or nil when the
// request is not limited.
func (t *Tiers) Match(method, path string) (string, *Limiter) {
	if path == "/api/health" {
		return "", nil
	}
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read", t.Read
	default:
		return "write", t.Write
	}
}

// Close stops every limiter.
func (t *Tiers) Close() {
	for _, l := range []*Limiter{t.Read, t.Write} {
		if l != nil {
			l.Close()
		}
	}
}

// Middleware rejects requests over their tier's budget with 429. reject
// writes the error body.
func (t *Tiers) Middleware(reject func(http.ResponseWriter, Result)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			name, l := t.Match(r.Method, r.URL.Path)
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			res := l.Allow(ClientIP(r) + ":" + name)
			rw := &responseWriter{ResponseWriter: w, result: res}
			if !res.Allowed {
				reject(rw, res)
				return
			}
			next.ServeHTTP(rw, r)
		})
	}
}

// WriteHeaders sets the X-RateLimit-* headers, plus Retry-After when the
// request was rejected.
func WriteHeaders(w http.ResponseWriter, res Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
	}
}

// responseWriter writes the rate limit headers before the first byte.
type responseWriter struct {
	http.ResponseWriter
	result      Result
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		WriteHeaders(rw.ResponseWriter, rw.result)
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// ClientIP returns the originating client address, honoring
// X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if strings.HasPrefix(addr, "[") {
		if host, _, ok := strings.Cut(addr, "]:"); ok {
			return host[1:]
		}
		return strings.Trim(addr, "[]")
	}
	if host, _, ok := strings.Cut(addr, ":"); ok {
		return host
	}
	return addr
}
