package authclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/storage/memory"
	"github.com/rryowa/gymsession/internal/util"
)

// fakeAPI accepts a single valid access token on /api/data and rotates it on
// /api/token/refresh/.
type fakeAPI struct {
	mu          sync.Mutex
	validToken  string
	nextAccess  string
	nextRefresh string
	rotate      bool
	reject      bool
	alwaysDeny  bool
	seenAuth    []string

	refreshCalls atomic.Int32
	dataCalls    atomic.Int32
	unauthorized atomic.Int32

	// refreshGate, when set, holds refresh responses until closed.
	refreshGate chan struct{}
	// refreshStarted is closed on the first refresh call.
	refreshStarted chan struct{}
	startedOnce    sync.Once
	// denyTarget closes denied when unauthorized reaches it.
	denyTarget int32
	denied     chan struct{}
	deniedOnce sync.Once
}

func newFakeAPI(valid, next string) *fakeAPI {
	return &fakeAPI{
		validToken:     valid,
		nextAccess:     next,
		refreshStarted: make(chan struct{}),
		denied:         make(chan struct{}),
	}
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		var in models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Detail: "No active account found with the given credentials"})
			return
		}
		writeJSON(w, http.StatusOK, models.TokenPairResponse{AccessToken: "A1", RefreshToken: "R1"})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		f.startedOnce.Do(func() { close(f.refreshStarted) })
		if f.refreshGate != nil {
			<-f.refreshGate
		}

		var in models.TokenRefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&in)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.reject || in.RefreshToken == "" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Detail: "Token is invalid or expired"})
			return
		}
		f.validToken = f.nextAccess
		out := models.TokenRefreshResponse{AccessToken: f.nextAccess}
		if f.rotate {
			out.RefreshToken = f.nextRefresh
		}
		writeJSON(w, http.StatusOK, out)
	})
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		f.dataCalls.Add(1)
		auth := r.Header.Get(models.AuthorizationHeader)

		f.mu.Lock()
		f.seenAuth = append(f.seenAuth, auth)
		ok := !f.alwaysDeny && auth == models.BearerPrefix+f.validToken
		f.mu.Unlock()

		if !ok {
			if f.unauthorized.Add(1) == f.denyTarget {
				f.deniedOnce.Do(func() { close(f.denied) })
			}
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Detail: "Given token not valid for any token type"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"auth": auth})
	})
	return mux
}

func (f *fakeAPI) authCount(header string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, h := range f.seenAuth {
		if h == header {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, api *fakeAPI) (*Client, *memory.SessionStore) {
	t.Helper()

	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	client := newClientFor(t, srv.URL, zap.NewNop().Sugar())
	return client, client.store.(*memory.SessionStore)
}

func newClientFor(t *testing.T, baseURL string, log *zap.SugaredLogger) *Client {
	t.Helper()

	cfg := &util.ClientConfig{
		BaseURL:     baseURL,
		LoginPath:   "/api/token/",
		RefreshPath: "/api/token/refresh/",
	}
	httpClient := &http.Client{Timeout: 5 * time.Second}

	tokens, err := NewTokenAPI(cfg, httpClient, log)
	if err != nil {
		t.Fatalf("token api: %v", err)
	}

	client, err := NewClient(baseURL, memory.NewSessionStore(nil, log), tokens, httpClient, log, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(client.Close)

	return client
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// hookStore runs onClear and onSet before the wrapped operation.
type hookStore struct {
	*memory.SessionStore
	onClear func()
	onSet   func()
}

func (h *hookStore) Clear() {
	if h.onClear != nil {
		h.onClear()
	}
	h.SessionStore.Clear()
}

func (h *hookStore) Set(accessToken, refreshToken string) {
	if h.onSet != nil {
		h.onSet()
	}
	h.SessionStore.Set(accessToken, refreshToken)
}
