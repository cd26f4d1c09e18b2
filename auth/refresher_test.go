package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/config"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestRefresher(store TokenStore, endpoints map[string]Endpoint, opts ...RefresherOption) *Refresher {
	r := NewRefresher(store, endpoints, zap.NewNop(), append([]RefresherOption{WithHTTPClient(http.DefaultClient)}, opts...)...)
	r.now = func() time.Time { return fixedNow }
	return r
}

func expiredToken(refresh string) Token {
	return Token{Access: "old-access", Refresh: refresh, Expires: fixedNow.Add(-time.Minute).UnixMilli()}
}

func TestRefresher_FormBody(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"new-access","refresh_token":"new-refresh","expires_in":7200}`)
	}))
	defer srv.Close()

	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), ProviderGoogle, expiredToken("old-refresh")))

	r := newTestRefresher(store, map[string]Endpoint{
		ProviderGoogle: {TokenURL: srv.URL, ClientID: "cid", ClientSecret: "secret"},
	})

	tok, err := r.Refresh(context.Background(), ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "new-access", tok.Access)
	assert.Equal(t, "new-refresh", tok.Refresh)
	assert.Equal(t, fixedNow.Add(2*time.Hour).UnixMilli(), tok.Expires)

	assert.Equal(t, "refresh_token", got.Get("grant_type"))
	assert.Equal(t, "old-refresh", got.Get("refresh_token"))
	assert.Equal(t, "cid", got.Get("client_id"))
	assert.Equal(t, "secret", got.Get("client_secret"))

	stored, err := store.Get(context.Background(), ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.Access)
}

func TestRefresher_JSONBodyKeepsRefreshToken(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"access_token":"fresh"}`)
	}))
	defer srv.Close()

	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), ProviderAnthropic, expiredToken("keep-me")))

	r := newTestRefresher(store, map[string]Endpoint{
		ProviderAnthropic: {TokenURL: srv.URL, ClientID: "anthropic-client", JSONBody: true},
	})

	tok, err := r.Refresh(context.Background(), ProviderAnthropic)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.Access)
	assert.Equal(t, "keep-me", tok.Refresh)
	assert.Equal(t, fixedNow.Add(time.Hour).UnixMilli(), tok.Expires, "expires_in defaults to one hour")

	assert.Equal(t, "refresh_token", body["grant_type"])
	assert.Equal(t, "anthropic-client", body["client_id"])
	_, hasSecret := body["client_secret"]
	assert.False(t, hasSecret)
}

func TestRefresher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		token   *Token
		wantErr error
	}{
		{
			name:    "rejected",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "invalid_grant", http.StatusBadRequest) },
			token:   ptr(expiredToken("r")),
			wantErr: ErrRefreshRejected,
		},
		{
			name:    "empty access token",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, `{"expires_in":10}`) },
			token:   ptr(expiredToken("r")),
			wantErr: ErrRefreshRejected,
		},
		{
			name:    "no stored token",
			handler: func(w http.ResponseWriter, r *http.Request) { t.Error("unexpected request") },
			wantErr: ErrTokenNotFound,
		},
		{
			name:    "no refresh token",
			handler: func(w http.ResponseWriter, r *http.Request) { t.Error("unexpected request") },
			token:   ptr(expiredToken("")),
			wantErr: ErrNoRefreshToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			store := NewMemoryTokenStore()
			if tt.token != nil {
				require.NoError(t, store.Save(context.Background(), ProviderOpenAI, *tt.token))
			}
			r := newTestRefresher(store, map[string]Endpoint{ProviderOpenAI: {TokenURL: srv.URL, ClientID: "c"}})

			_, err := r.Refresh(context.Background(), ProviderOpenAI)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRefresher_UnknownProvider(t *testing.T) {
	r := newTestRefresher(NewMemoryTokenStore(), map[string]Endpoint{})
	_, err := r.Refresh(context.Background(), "github")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRefresher_SkipsWhenAlreadyFresh(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	store := NewMemoryTokenStore()
	fresh := Token{Access: "still-good", Refresh: "r", Expires: fixedNow.Add(time.Hour).UnixMilli()}
	require.NoError(t, store.Save(context.Background(), ProviderOpenAI, fresh))

	r := newTestRefresher(store, map[string]Endpoint{ProviderOpenAI: {TokenURL: srv.URL}})
	tok, err := r.Refresh(context.Background(), ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "still-good", tok.Access)
	assert.Zero(t, calls.Load())
}

func TestRefresher_ConcurrentRefreshesCollapse(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = io.WriteString(w, `{"access_token":"shared","expires_in":60}`)
	}))
	defer srv.Close()

	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), ProviderOpenAI, expiredToken("r")))
	r := newTestRefresher(store, map[string]Endpoint{ProviderOpenAI: {TokenURL: srv.URL}})

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := r.Refresh(context.Background(), ProviderOpenAI)
			if err == nil {
				results[i] = tok.Access
			}
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// 等待其余 goroutine 进入 singleflight
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, got := range results {
		assert.Equal(t, "shared", got)
	}
}

func TestRefresher_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = io.WriteString(w, `{"access_token":"late"}`)
	}))
	defer srv.Close()
	defer close(release)

	store := NewMemoryTokenStore()
	require.NoError(t, store.Save(context.Background(), ProviderOpenAI, expiredToken("r")))
	r := newTestRefresher(store, map[string]Endpoint{ProviderOpenAI: {TokenURL: srv.URL}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := r.Refresh(ctx, ProviderOpenAI)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultEndpoints(t *testing.T) {
	cfg := config.DefaultCredentialsConfig()
	cfg.GoogleClientID = "google-client"

	eps := DefaultEndpoints(cfg)
	require.Len(t, eps, 3)
	assert.Equal(t, "https://console.anthropic.com/v1/oauth/token", eps[ProviderAnthropic].TokenURL)
	assert.True(t, eps[ProviderAnthropic].JSONBody)
	assert.Equal(t, "9d1c250a-e61b-44d9-88ed-5944d1962f5e", eps[ProviderAnthropic].ClientID)
	assert.Equal(t, "https://auth.openai.com/oauth/token", eps[ProviderOpenAI].TokenURL)
	assert.Equal(t, "chika-local", eps[ProviderOpenAI].ClientID)
	assert.Equal(t, "google-client", eps[ProviderGoogle].ClientID)
	assert.False(t, eps[ProviderGoogle].JSONBody)
}

func ptr[T any](v T) *T { return &v }
