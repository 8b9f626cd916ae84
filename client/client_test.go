package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tipzed/go-tipzed/client"
	"github.com/tipzed/go-tipzed/session"
)

// fakeBackend is an httptest server speaking just enough of the Tipzed
// API: a refresh endpoint plus a private wallet endpoint that accepts
// only the current access token.
type fakeBackend struct {
	server *httptest.Server

	mu           sync.Mutex
	validToken   string
	refreshToken string
	nextToken    string
	refreshFails bool
	alwaysReject bool

	refreshCalls atomic.Int32
	authHeaders  sync.Map // path -> last Authorization header seen
	apiKeys      sync.Map // path -> last X-API-KEY header seen
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		validToken:   "token-1",
		refreshToken: "refresh-1",
		nextToken:    "token-2",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token/refresh/", b.handleRefresh)
	mux.HandleFunc("/", b.handleAny)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)

	var body struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	fails := b.refreshFails
	expected := b.refreshToken
	next := b.nextToken
	if !fails && body.Refresh == expected {
		b.validToken = next
	}
	b.mu.Unlock()

	if fails || body.Refresh != expected {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"refresh token invalid"}`))
		return
	}

	// Widen the refresh window so concurrent 401s pile up behind it.
	time.Sleep(150 * time.Millisecond)
	_ = json.NewEncoder(w).Encode(map[string]string{"access": next})
}

func (b *fakeBackend) handleAny(w http.ResponseWriter, r *http.Request) {
	b.authHeaders.Store(r.URL.Path, r.Header.Get("Authorization"))
	b.apiKeys.Store(r.URL.Path, r.Header.Get("X-API-KEY"))

	if strings.Contains(r.URL.Path, "/creators/all/") || strings.Contains(r.URL.Path, "/creators/zed-dev/") {
		_, _ = w.Write([]byte(`{"status":"success","data":[]}`))
		return
	}

	b.mu.Lock()
	valid := "Bearer " + b.validToken
	reject := b.alwaysReject
	b.mu.Unlock()

	if reject || r.Header.Get("Authorization") != valid {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","message":"token expired"}`))
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "success",
		"data":   map[string]any{"balance": 1250.0},
	})
}

func (b *fakeBackend) authHeader(path string) string {
	v, _ := b.authHeaders.Load(path)
	s, _ := v.(string)
	return s
}

type fixture struct {
	backend *fakeBackend
	session *session.Manager
	client  *client.Client
	expired atomic.Int32
}

func newFixture(t *testing.T, options ...client.Option) *fixture {
	t.Helper()

	f := &fixture{backend: newFakeBackend(t)}

	var err error
	f.session, err = session.NewManager(session.NewMemoryStore())
	require.NoError(t, err)

	options = append([]client.Option{
		client.WithOnSessionExpired(func() { f.expired.Add(1) }),
	}, options...)

	f.client, err = client.New(client.Config{
		BaseURL: f.backend.server.URL,
		APIKey:  "test-api-key",
		// Generous budget so rate limiting never skews timing here;
		// the limiter has its own tests.
		MaxRequests: 1000,
		RateWindow:  time.Second,
	}, f.session, options...)
	require.NoError(t, err)
	return f
}

func (f *fixture) loginWithStaleToken(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.SetTokens("stale-token", "refresh-1"))
}

func TestClient_HeaderAttachment(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.SetTokens("token-1", "refresh-1"))
	ctx := context.Background()

	t.Run("private call carries bearer and api key", func(t *testing.T) {
		require.NoError(t, f.client.Do(ctx, http.MethodGet, "/wallets/me", nil, nil))
		require.Equal(t, "Bearer token-1", f.backend.authHeader("/wallets/me"))
		key, _ := f.backend.apiKeys.Load("/wallets/me")
		require.Equal(t, "test-api-key", key)
	})

	t.Run("public call carries no bearer", func(t *testing.T) {
		require.NoError(t, f.client.Do(ctx, http.MethodGet, "/creators/all/", nil, nil))
		require.Empty(t, f.backend.authHeader("/creators/all/"))
	})

	t.Run("Public option suppresses bearer on a private-looking path", func(t *testing.T) {
		require.NoError(t, f.client.Do(ctx, http.MethodGet, "/creators/zed-dev/", nil, nil, client.Public()))
		require.Empty(t, f.backend.authHeader("/creators/zed-dev/"))
	})
}

func TestClient_NoTokenMeansNoHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Logged out: the private call goes out bare and the backend's 401
	// becomes a terminal auth failure (no refresh token to use).
	err := f.client.Do(ctx, http.MethodGet, "/wallets/me", nil, nil)
	require.ErrorIs(t, err, client.ErrSessionExpired)
	require.Empty(t, f.backend.authHeader("/wallets/me"))
	require.EqualValues(t, 0, f.backend.refreshCalls.Load())
}

func TestClient_RefreshSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.loginWithStaleToken(t)

	const concurrent = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			var out struct {
				Data struct {
					Balance float64 `json:"balance"`
				} `json:"data"`
			}
			errs[i] = f.client.Do(context.Background(), http.MethodGet, "/wallets/me", nil, &out)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "request %d", i)
	}
	require.EqualValues(t, 1, f.backend.refreshCalls.Load(), "one refresh per expiry event")
	require.Equal(t, "token-2", f.session.AccessToken())
	require.EqualValues(t, 0, f.expired.Load())
}

func TestClient_RefreshFailureEndsSession(t *testing.T) {
	f := newFixture(t)
	f.loginWithStaleToken(t)
	require.NoError(t, f.session.SetUser(&session.User{ID: 1, Email: "x@example.com"}))
	f.backend.refreshFails = true

	const concurrent = 5
	var wg sync.WaitGroup
	errs := make([]error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.client.Do(context.Background(), http.MethodGet, "/wallets/me", nil, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.ErrorIsf(t, err, client.ErrSessionExpired, "request %d", i)
		require.True(t, client.IsAuthError(err))
	}
	require.EqualValues(t, 1, f.backend.refreshCalls.Load())
	require.EqualValues(t, 1, f.expired.Load())

	// Logged out for real: tokens and cached user are gone.
	require.Empty(t, f.session.AccessToken())
	require.Empty(t, f.session.RefreshToken())
	_, ok := f.session.User()
	require.False(t, ok)

	// A follow-up private call goes out with no Authorization header.
	_ = f.client.Do(context.Background(), http.MethodGet, "/wallets/transactions", nil, nil)
	require.Empty(t, f.backend.authHeader("/wallets/transactions"))
}

func TestClient_SecondUnauthorizedIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.loginWithStaleToken(t)
	// The refresh succeeds but the backend keeps rejecting, so the
	// retried request meets a second 401.
	f.backend.mu.Lock()
	f.backend.alwaysReject = true
	f.backend.mu.Unlock()

	err := f.client.Do(context.Background(), http.MethodGet, "/wallets/me", nil, nil)
	require.ErrorIs(t, err, client.ErrUnauthorized)
	require.EqualValues(t, 1, f.backend.refreshCalls.Load(), "a retried request never re-enters refresh")
}

func TestClient_APIErrorCarriesEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"status":"error","message":"short and stout"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	sess, err := session.NewManager(session.NewMemoryStore())
	require.NoError(t, err)
	c, err := client.New(client.Config{BaseURL: server.URL, PublicRoutes: []string{"/teapot"}}, sess)
	require.NoError(t, err)

	err = c.Do(context.Background(), http.MethodGet, "/teapot", nil, nil)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusTeapot, apiErr.StatusCode)
	require.Equal(t, "short and stout", apiErr.Message)
	require.False(t, client.IsAuthError(err))
}

func TestClient_NetworkErrorDoesNotRefresh(t *testing.T) {
	f := newFixture(t)
	f.loginWithStaleToken(t)
	f.backend.server.Close()

	err := f.client.Do(context.Background(), http.MethodGet, "/wallets/me", nil, nil)
	require.Error(t, err)
	require.False(t, client.IsAuthError(err))
	require.EqualValues(t, 0, f.backend.refreshCalls.Load())
	// The session survives a network failure.
	require.Equal(t, "stale-token", f.session.AccessToken())
}

func TestClient_New_Validation(t *testing.T) {
	sess, err := session.NewManager(session.NewMemoryStore())
	require.NoError(t, err)

	t.Run("base url required", func(t *testing.T) {
		_, err := client.New(client.Config{}, sess)
		require.Error(t, err)
	})

	t.Run("session required", func(t *testing.T) {
		_, err := client.New(client.Config{BaseURL: "http://localhost:8000"}, nil)
		require.Error(t, err)
	})
}
