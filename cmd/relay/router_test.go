package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-issue-relay/internal/application/facade"
	"go-issue-relay/internal/domain/event"
	"go-issue-relay/internal/infrastructure/gitlab"
	"go-issue-relay/internal/infrastructure/hub"
	"go-issue-relay/internal/infrastructure/logger"
	"go-issue-relay/internal/infrastructure/ratelimit"
	"go-issue-relay/internal/infrastructure/session"
	"go-issue-relay/internal/interfaces/rest/v1/handler"
	"go-issue-relay/internal/port/inbound"
	"go-issue-relay/internal/port/outbound"
	"go-issue-relay/internal/syncagent"
)

const testSecret = "s3cret"

// emptyTracker answers list calls with nothing.
type emptyTracker struct {
	outbound.IssueTracker
}

func (emptyTracker) ListIssues(context.Context, string, string) ([]gitlab.Issue, error) {
	return nil, nil
}

func (emptyTracker) ListCommits(context.Context, string) ([]gitlab.Commit, error) {
	return nil, nil
}

func newTestRelay(t *testing.T, staticDir string) (*hub.Hub, *httptest.Server) {
	t.Helper()
	return newLimitedTestRelay(t, staticDir, nil)
}

func newLimitedTestRelay(t *testing.T, staticDir string, limiter *ratelimit.Limiter) (*hub.Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	h := hub.New(log)
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { h.Stop(context.Background()) })

	store, err := session.OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	sessions := session.NewManager(store, session.NewTokenSigner("session-secret", time.Hour), session.ManagerOptions{
		CookieName: "relay_session",
		TTL:        time.Hour,
	}, log)

	trackerFor := func(string) outbound.IssueTracker { return emptyTracker{} }

	router := InitRouter(RouterDeps{
		Hub:                 h,
		Relay:               facade.NewRelayApplicationService(h, nil, log),
		Snapshots:           facade.NewSnapshotApplicationService(trackerFor, inbound.Credentials{Token: "t", ProjectID: "1"}, log),
		Issues:              facade.NewIssueApplicationService(trackerFor, "1", facade.WebhookSettings{}, log),
		OAuth:               gitlab.NewOAuth(gitlab.OAuthConfig{}),
		Sessions:            sessions,
		TrackerFor:          trackerFor,
		Limiter:             limiter,
		WebhookSecret:       testSecret,
		WebhookMaxBodyBytes: 1 << 20,
		SendBuffer:          16,
		StaticDir:           staticDir,
	}, log)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return h, srv
}

func dialRelay(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func postWebhook(t *testing.T, srv *httptest.Server, token, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhook", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(handler.HeaderProviderToken, token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRelay_TwoClientsFollowIssueLifecycle(t *testing.T) {
	h, srv := newTestRelay(t, "")

	clients := []*websocket.Conn{dialRelay(t, srv, "/ws"), dialRelay(t, srv, "/")}
	views := []*syncagent.View{syncagent.NewView(), syncagent.NewView()}

	for _, c := range clients {
		assert.JSONEq(t, `{"type":"welcome","message":"Hello client!"}`, string(readEvent(t, c)))
	}
	require.Eventually(t, func() bool { return h.ConnectionCount() == 2 }, time.Second, 10*time.Millisecond)

	// A forged delivery is rejected and reaches nobody.
	assert.Equal(t, http.StatusUnauthorized, postWebhook(t, srv, "forged",
		`{"object_kind":"issue","object_attributes":{"id":99,"title":"Forged","state":"opened"}}`))

	assert.Equal(t, http.StatusOK, postWebhook(t, srv, testSecret,
		`{"object_kind":"issue","object_attributes":{"id":7,"title":"Bug","state":"opened","action":"open"}}`))

	for i, c := range clients {
		ev, _, err := event.ParseMessage(readEvent(t, c))
		require.NoError(t, err)
		assert.Equal(t, "issue:7", ev.Key(), "first event after the welcome must be the real one")
		views[i].Apply(ev)
		require.Len(t, views[i].Issues(), 1)
	}

	assert.Equal(t, http.StatusOK, postWebhook(t, srv, testSecret,
		`{"object_kind":"issue","object_attributes":{"id":7,"title":"Bug","state":"closed","action":"close"}}`))

	for i, c := range clients {
		ev, _, err := event.ParseMessage(readEvent(t, c))
		require.NoError(t, err)
		assert.True(t, ev.IsClosedIssue())
		views[i].Apply(ev)
		assert.Empty(t, views[i].Issues())
	}
}

func TestRelay_PushDeliversCommitsInOrder(t *testing.T) {
	_, srv := newTestRelay(t, "")
	client := dialRelay(t, srv, "/ws")
	readEvent(t, client)

	assert.Equal(t, http.StatusOK, postWebhook(t, srv, testSecret,
		`{"object_kind":"push","commits":[{"id":"a","message":"one"},{"id":"b","message":"two"},{"id":"c","message":"three"}]}`))

	for _, want := range []string{"commit:a", "commit:b", "commit:c"} {
		ev, _, err := event.ParseMessage(readEvent(t, client))
		require.NoError(t, err)
		assert.Equal(t, want, ev.Key())
	}
}

func TestRelay_WebhookIsNotRateLimited(t *testing.T) {
	_, srv := newLimitedTestRelay(t, "", ratelimit.New(1, 2))
	client := dialRelay(t, srv, "/ws")
	readEvent(t, client)

	for i := 0; i < 30; i++ {
		require.Equal(t, http.StatusOK, postWebhook(t, srv, testSecret,
			`{"object_kind":"issue","object_attributes":{"id":1,"title":"Burst","state":"opened"}}`), "delivery %d", i)
	}
	assert.Equal(t, http.StatusUnauthorized, postWebhook(t, srv, "forged",
		`{"object_kind":"issue","object_attributes":{"id":1,"title":"Burst","state":"opened"}}`))

	for i := 0; i < 30; i++ {
		ev, _, err := event.ParseMessage(readEvent(t, client))
		require.NoError(t, err)
		assert.Equal(t, "issue:1", ev.Key())
	}

	// Control routes from the same address are still throttled.
	statuses := map[int]int{}
	for i := 0; i < 5; i++ {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/issues/1/close", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		statuses[resp.StatusCode]++
	}
	assert.NotZero(t, statuses[http.StatusTooManyRequests])
	assert.Equal(t, 5, statuses[http.StatusUnauthorized]+statuses[http.StatusTooManyRequests])
}

func TestRelay_OperationalRoutes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>relay</h1>"), 0o644))
	_, srv := newTestRelay(t, dir)

	get := func(path string) (*http.Response, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/hub/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"hub_running":true`)

	resp, body = get("/issues")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	resp, body = get("/me")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"loggedIn":false}`, body)

	resp, _ = get("/auth/gitlab")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, body = get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "relay")

	resp, _ = get("/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/issues/7/close", nil)
	require.NoError(t, err)
	postResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	postResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, postResp.StatusCode)
}

func TestSplitAddr(t *testing.T) {
	tests := []struct{ addr, host, port string }{
		{":8080", "", "8080"},
		{"127.0.0.1:9000", "127.0.0.1", "9000"},
		{"8080", "", "8080"},
	}
	for _, tt := range tests {
		host, port := splitAddr(tt.addr)
		assert.Equal(t, tt.host, host, tt.addr)
		assert.Equal(t, tt.port, port, tt.addr)
	}
}
