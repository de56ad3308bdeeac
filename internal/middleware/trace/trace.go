// Package trace assigns every request an id, carried in the context and
// echoed in the X-Request-ID response header.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"

	"github.com/google/uuid"
)

type contextKey struct{}

// HeaderRequestID is accepted from trusted callers and always echoed.
const HeaderRequestID = "X-Request-ID"

var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// Middleware stamps request ids and counts requests.
type Middleware struct {
	trustIncoming bool
	total         int64
}

// NewMiddleware creates the trace middleware. With trustIncoming set, a
// well-formed X-Request-ID from the caller is reused instead of minted.
func NewMiddleware(trustIncoming bool) *Middleware {
	return &Middleware{trustIncoming: trustIncoming}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&m.total, 1)

		id := ""
		if m.trustIncoming {
			if in := r.Header.Get(HeaderRequestID); validID.MatchString(in) {
				id = in
			}
		}
		if id == "" {
			id = GenerateRequestID()
		}

		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// TotalRequests returns how many requests passed through.
func (m *Middleware) TotalRequests() int64 {
	return atomic.LoadInt64(&m.total)
}

// GenerateRequestID returns a fresh random id.
func GenerateRequestID() string {
	return uuid.NewString()
}

// WithRequestID stores id in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

// FromRequest is GetRequestID for an *http.Request, in the shape the
// logging middleware takes.
func FromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}
