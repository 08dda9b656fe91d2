package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// echoUser writes the caller resolved by the middleware.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(UserFromContext(r.Context())))
})

func TestBearerAuthMiddleware(t *testing.T) {
	keys := map[string]string{"key-alice": "alice", "key-bob": "bob"}

	tests := []struct {
		name     string
		keys     map[string]string
		path     string
		headers  map[string]string
		wantCode int
		wantUser string
	}{
		{
			name:     "disabled without header",
			path:     "/api/v1/datasets",
			wantCode: http.StatusOK,
		},
		{
			name:     "disabled trusts user header",
			keys:     map[string]string{"": "alice", "key": ""},
			path:     "/api/v1/me/datasets/ds/records",
			headers:  map[string]string{UserHeader: "bob"},
			wantCode: http.StatusOK,
			wantUser: "bob",
		},
		{
			name:     "missing authorization",
			keys:     keys,
			path:     "/api/v1/datasets",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "basic scheme",
			keys:     keys,
			path:     "/api/v1/datasets",
			headers:  map[string]string{"Authorization": "Basic dXNlcjpwYXNz"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "unknown key ignores user header",
			keys:     keys,
			path:     "/api/v1/datasets",
			headers:  map[string]string{"Authorization": "Bearer wrong", UserHeader: "mallory"},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "key maps to alice",
			keys:     keys,
			path:     "/api/v1/datasets",
			headers:  map[string]string{"Authorization": "Bearer key-alice", UserHeader: "mallory"},
			wantCode: http.StatusOK,
			wantUser: "alice",
		},
		{
			name:     "key maps to bob",
			keys:     keys,
			path:     "/api/v1/datasets",
			headers:  map[string]string{"Authorization": "Bearer key-bob"},
			wantCode: http.StatusOK,
			wantUser: "bob",
		},
		{name: "health is exempt", keys: keys, path: "/health", wantCode: http.StatusOK},
		{name: "metrics is exempt", keys: keys, path: "/metrics", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			BearerAuthMiddleware(tt.keys)(echoUser).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				var resp ErrorResponse
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("decode error response: %v", err)
				}
				if resp.Code != CodeUnauthorized {
					t.Errorf("code = %s, want %s", resp.Code, CodeUnauthorized)
				}
				return
			}
			if got := rr.Body.String(); got != tt.wantUser {
				t.Errorf("user = %q, want %q", got, tt.wantUser)
			}
		})
	}
}
