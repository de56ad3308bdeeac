package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		trust    bool
		incoming string
		wantSame bool
	}{
		{"mints when nothing sent", true, "", false},
		{"reuses valid incoming id", true, "edge-1234abcd", true},
		{"rejects malformed incoming id", true, "bad id with spaces", false},
		{"ignores incoming when untrusted", false, "edge-1234abcd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := NewMiddleware(tt.trust).Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = FromRequest(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
				t.Fatalf("context id %q, header id %q", seen, rec.Header().Get(HeaderRequestID))
			}
			if (seen == tt.incoming) != tt.wantSame {
				t.Fatalf("id = %q, incoming %q", seen, tt.incoming)
			}
			if !tt.wantSame {
				if _, err := uuid.Parse(seen); err != nil {
					t.Fatalf("minted id %q is not a uuid", seen)
				}
			}
		})
	}
}

func TestGetRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Fatalf("empty context gave %q", got)
	}
	ctx := WithRequestID(context.Background(), "abc")
	if got := GetRequestID(ctx); got != "abc" {
		t.Fatalf("GetRequestID = %q", got)
	}
}
