package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/agent/collaboration"
	"github.com/ruipedro-pinheiro/CHIKA/api/handlers"
	"github.com/ruipedro-pinheiro/CHIKA/config"
	"github.com/ruipedro-pinheiro/CHIKA/llm"
)

const testAPIKey = "test-key"

// testConfig 只部署兜底 responder，不依赖任何外部服务
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Server.MetricsPort = 0
	cfg.Server.RateLimitRPS = 0
	cfg.Server.APIKeys = []string{testAPIKey}
	cfg.Server.CORSAllowedOrigins = nil
	cfg.Store.Type = "memory"
	cfg.Credentials.Store = "memory"
	cfg.Responders = config.RespondersConfig{}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(t.Context(), cfg, zap.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler(t.Context()))
	t.Cleanup(func() {
		s.hub.Close()
		ts.Close()
		s.release(context.Background())
	})
	return s, ts
}

func doRequest(t *testing.T, method, url, body string, withKey bool) (*http.Response, handlers.Response) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, url, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if withKey {
		req.Header.Set(headerAPIKey, testAPIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope handlers.Response
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &envelope), string(data))
	}
	return resp, envelope
}

func TestServer_PublicEndpoints(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	for _, path := range []string{"/health", "/healthz", "/ready", "/version"} {
		resp, _ := doRequest(t, http.MethodGet, ts.URL+path, "", false)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, resp.Header.Get(headerRequestID), path)
	}
}

func TestServer_RequiresAPIKey(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	resp, env := doRequest(t, http.MethodGet, ts.URL+"/api/v1/providers", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.Success)

	resp, env = doRequest(t, http.MethodGet, ts.URL+"/api/v1/providers", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Contains(t, mustJSON(t, env.Data), llm.FallbackResponder)
}

func TestServer_CollaborateAndList(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	resp, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/rooms/lobby/collaborate",
		`{"message":"hello there"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, env.Success)

	var result collaboration.Result
	require.NoError(t, json.Unmarshal([]byte(mustJSON(t, env.Data)), &result))
	assert.NotEmpty(t, result.Response)
	assert.True(t, result.State.Terminal())

	resp, env = doRequest(t, http.MethodGet, ts.URL+"/api/v1/rooms/lobby/discussions", "", true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/v1/discussions/does-not-exist", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RejectsUnknownResponder(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	resp, env := doRequest(t, http.MethodPost, ts.URL+"/api/v1/rooms/lobby/collaborate",
		`{"message":"hi","active_responders":["skynet"]}`, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t, testConfig())

	resp, _ := doRequest(t, http.MethodGet, ts.URL+"/api/v1/rooms/lobby/collaborate", "", true)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_WebSocketReceivesCompletion(t *testing.T) {
	s, ts := newTestServer(t, testConfig())

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/rooms/lobby/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{headerAPIKey: []string{testAPIKey}},
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return s.hub.Clients("lobby") == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/v1/rooms/lobby/collaborate",
		`{"message":"hello there"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		var ev collaboration.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, "lobby", ev.RoomID)
		if ev.Type == collaboration.EventCompleted {
			require.NotNil(t, ev.Result)
			assert.NotEmpty(t, ev.Result.Response)
			return
		}
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s, ts := newTestServer(t, testConfig())
	doRequest(t, http.MethodGet, ts.URL+"/health", "", false)

	w := httptest.NewRecorder()
	s.metricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "chika_http_requests_total")
	assert.Contains(t, body, "go_goroutines")
}

func TestServer_SQLStoreWithAutoMigrate(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Type = "sql"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Name = filepath.Join(t.TempDir(), "chika.db")
	cfg.Database.AutoMigrate = true

	_, ts := newTestServer(t, cfg)

	resp, _ := doRequest(t, http.MethodPost, ts.URL+"/api/v1/rooms/sql-room/collaborate",
		`{"message":"hello there"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	readyResp, err := http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	defer readyResp.Body.Close()
	assert.Equal(t, http.StatusOK, readyResp.StatusCode)

	var status handlers.HealthStatus
	require.NoError(t, json.NewDecoder(readyResp.Body).Decode(&status))
	assert.Equal(t, "pass", status.Checks["database"].Status)
	assert.Equal(t, "pass", status.Checks["store"].Status)
}

func TestNewServer_RedisUnavailable(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Type = "redis"
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := NewServer(t.Context(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
