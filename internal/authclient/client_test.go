package authclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/models"
	"github.com/rryowa/gymsession/internal/storage/memory"
	"github.com/rryowa/gymsession/internal/util"
)

func TestSingleExpiredRequestRefreshesAndRetriesOnce(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	var out map[string]string
	if err := client.GetJSON(context.Background(), "/api/data", &out); err != nil {
		t.Fatalf("get: %v", err)
	}

	if out["auth"] != "Bearer A2" {
		t.Fatalf("expected retried call result with A2, got %q", out["auth"])
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected 1 refresh call, got %d", got)
	}
	if got := api.dataCalls.Load(); got != 2 {
		t.Fatalf("expected original call plus one retry, got %d", got)
	}
	if s := store.Get(); s.AccessToken != "A2" || s.RefreshToken != "R1" {
		t.Fatalf("unexpected session after refresh: %+v", s)
	}
}

func TestValidTokenDoesNotRefresh(t *testing.T) {
	api := newFakeAPI("A1", "A2")
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	if err := client.GetJSON(context.Background(), "/api/data", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := api.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh, got %d", got)
	}
}

func TestConcurrentFailuresShareOneRefresh(t *testing.T) {
	const n = 3

	api := newFakeAPI("A0", "A2")
	api.denyTarget = n
	api.refreshGate = api.denied
	client, _ := newTestClient(t, api)

	if err := client.Login(context.Background(), "coach", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.GetJSON(context.Background(), "/api/data", nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", got)
	}
	if got := api.authCount("Bearer A1"); got != n {
		t.Fatalf("expected %d attempts with A1, got %d", n, got)
	}
	if got := api.authCount("Bearer A2"); got != n {
		t.Fatalf("expected %d retries with A2, got %d", n, got)
	}
}

func TestRejectedRefreshFailsAllWaitersAndClearsSession(t *testing.T) {
	const n = 3

	api := newFakeAPI("A0", "A2")
	api.reject = true
	api.denyTarget = n
	api.refreshGate = api.denied
	client, store := newTestClient(t, api)

	expired := make(chan error, 1)
	client.OnSessionExpired(func(err error) {
		select {
		case expired <- err:
		default:
		}
	})

	if err := client.Login(context.Background(), "coach", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.GetJSON(context.Background(), "/api/data", nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected *AuthError, got %v", err)
		}
		if !errors.Is(err, ErrRefreshRejected) {
			t.Fatalf("expected ErrRefreshRejected, got %v", err)
		}
		if authErr.StatusCode != http.StatusUnauthorized || len(authErr.Body) == 0 {
			t.Fatalf("expected original 401 with body, got %d %q", authErr.StatusCode, authErr.Body)
		}
	}

	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 refresh call, got %d", got)
	}
	if s := store.Get(); !s.Empty() {
		t.Fatalf("expected empty session, got %+v", s)
	}
	if client.IsAuthenticated() {
		t.Fatal("client should not be authenticated")
	}

	select {
	case err := <-expired:
		if !errors.Is(err, ErrRefreshRejected) {
			t.Fatalf("unexpected expiry reason: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("session expired hook not called")
	}
}

func TestRetryRejectedAgainIsNotRefreshedTwice(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	api.alwaysDeny = true
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	err := client.GetJSON(context.Background(), "/api/data", nil)
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("expected ErrRetryExhausted, got %v", err)
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected 1 refresh call, got %d", got)
	}
	if got := api.dataCalls.Load(); got != 2 {
		t.Fatalf("expected 2 data calls, got %d", got)
	}
}

func TestMissingRefreshTokenFailsWithoutNetworkCall(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	client, store := newTestClient(t, api)
	store.Set("A1", "")

	err := client.GetJSON(context.Background(), "/api/data", nil)
	if !errors.Is(err, ErrRefreshRejected) || !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if got := api.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh network call, got %d", got)
	}
	if !store.Get().Empty() {
		t.Fatal("expected session to be cleared")
	}
}

func TestRotatedRefreshTokenIsStored(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	api.rotate = true
	api.nextRefresh = "R2"
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	if err := client.GetJSON(context.Background(), "/api/data", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if s := store.Get(); s.AccessToken != "A2" || s.RefreshToken != "R2" {
		t.Fatalf("expected rotated pair, got %+v", s)
	}
}

func TestClearThenRequestHasNoAuthorization(t *testing.T) {
	api := newFakeAPI("A1", "A2")
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	client.Logout()

	err := client.GetJSON(context.Background(), "/api/data", nil)
	if !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("expected ErrRefreshRejected for anonymous request, got %v", err)
	}
	if got := api.authCount(""); got != 1 {
		t.Fatalf("expected one request without Authorization, got %d", got)
	}
	if got := api.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh call, got %d", got)
	}
}

func TestLogoutDuringRefreshFailsWaitersAndDiscardsResult(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	api.refreshGate = make(chan struct{})
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	errs := make(chan error, 1)
	go func() {
		errs <- client.GetJSON(context.Background(), "/api/data", nil)
	}()

	<-api.refreshStarted
	waitFor(t, "refresh in flight", func() bool { return client.coordinator.State() == StateInFlight })

	client.Logout()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrSessionReset) {
			t.Fatalf("expected ErrSessionReset, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not failed on logout")
	}

	close(api.refreshGate)
	waitFor(t, "coordinator idle", func() bool { return client.coordinator.State() == StateIdle })

	if s := store.Get(); !s.Empty() {
		t.Fatalf("stale refresh result must be discarded, got %+v", s)
	}
}

func TestLogoutRacingRefreshDoesNotRestoreSession(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	api.refreshGate = make(chan struct{})
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	log := zap.NewNop().Sugar()
	store := &hookStore{SessionStore: memory.NewSessionStore(nil, log)}
	httpClient := &http.Client{Timeout: 5 * time.Second}
	tokens, err := NewTokenAPI(&util.ClientConfig{
		BaseURL:     srv.URL,
		LoginPath:   "/api/token/",
		RefreshPath: "/api/token/refresh/",
	}, httpClient, log)
	if err != nil {
		t.Fatalf("token api: %v", err)
	}
	client, err := NewClient(srv.URL, store, tokens, httpClient, log, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(client.Close)
	store.Set("A1", "R1")

	errs := make(chan error, 1)
	go func() { errs <- client.Refresh(context.Background()) }()
	<-api.refreshStarted

	store.onClear = func() {
		close(api.refreshGate)
		time.Sleep(100 * time.Millisecond)
	}
	client.Logout()

	if err := <-errs; !errors.Is(err, ErrSessionReset) {
		t.Fatalf("expected ErrSessionReset, got %v", err)
	}
	waitFor(t, "coordinator idle", func() bool { return client.coordinator.State() == StateIdle })

	if client.IsAuthenticated() || !store.Get().Empty() {
		t.Fatalf("session restored after logout: %+v", store.Get())
	}
}

func TestLoginDuringRefreshKeepsNewSession(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	api.refreshGate = make(chan struct{})
	client, store := newTestClient(t, api)
	store.Set("OLD", "ROLD")

	errs := make(chan error, 1)
	go func() {
		errs <- client.GetJSON(context.Background(), "/api/data", nil)
	}()

	<-api.refreshStarted
	if err := client.Login(context.Background(), "coach", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := <-errs; !errors.Is(err, ErrSessionReset) {
		t.Fatalf("expected ErrSessionReset, got %v", err)
	}

	close(api.refreshGate)
	waitFor(t, "coordinator idle", func() bool { return client.coordinator.State() == StateIdle })

	if s := store.Get(); s.AccessToken != "A1" || s.RefreshToken != "R1" {
		t.Fatalf("login session overwritten by stale refresh: %+v", s)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	api := newFakeAPI("A1", "A2")
	client, store := newTestClient(t, api)

	err := client.Login(context.Background(), "coach", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !store.Get().Empty() {
		t.Fatal("failed login must not store a session")
	}
}

func TestNetworkErrorIsNotAuthorizationFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	api := newFakeAPI("A1", "A2")
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	req := models.NewRequest(http.MethodGet, target+"/api/data", nil)
	_, err := client.Do(context.Background(), req)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		t.Fatalf("network error reported as auth failure: %v", err)
	}
	if got := api.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh, got %d", got)
	}
	if !store.Get().Authenticated() {
		t.Fatal("network error must not clear the session")
	}
}

func TestPostBodyIsReplayed(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
		calls  int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.TokenRefreshResponse{AccessToken: "A2"})
	})
	mux.HandleFunc("/api/change-password/", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		calls++
		mu.Unlock()
		if r.Header.Get(models.AuthorizationHeader) != "Bearer A2" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Detail: "expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newClientFor(t, srv.URL, zap.NewNop().Sugar())
	client.store.Set("A1", "R1")

	in := map[string]string{"old_password": "a", "new_password": "b"}
	if err := client.PostJSON(context.Background(), "/api/change-password/", in, nil); err != nil {
		t.Fatalf("post: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 || bodies[0] != bodies[1] || bodies[0] == "" {
		t.Fatalf("expected identical body on replay, got %q", bodies)
	}
}

func TestTransportReturnsFinal401(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	api.alwaysDeny = true
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	httpClient := &http.Client{Transport: client.Transport(nil)}
	resp, err := httpClient.Get(client.baseURL.String() + "/api/data")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected 1 refresh call, got %d", got)
	}
}

func TestTransportRefreshesTransparently(t *testing.T) {
	api := newFakeAPI("A0", "A2")
	client, store := newTestClient(t, api)
	store.Set("A1", "R1")

	httpClient := &http.Client{Transport: client.Transport(nil)}
	resp, err := httpClient.Get(client.baseURL.String() + "/api/data")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestClosedClientRejectsRequests(t *testing.T) {
	api := newFakeAPI("A1", "A2")
	client, _ := newTestClient(t, api)
	client.Close()

	if err := client.GetJSON(context.Background(), "/api/data", nil); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
	if err := client.Login(context.Background(), "coach", "secret"); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed on login, got %v", err)
	}
}
